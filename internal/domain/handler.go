package domain

import (
	"context"
)

// ToolHandler processes requests for a group of related tools.
type ToolHandler interface {
	// Handle processes an MCP tool call request.
	// Returns the tool response or an error if processing fails.
	Handle(ctx context.Context, req *ToolRequest) (*ToolResponse, error)

	// ListTools returns the tools served by this handler, in declaration order.
	ListTools() []ToolDefinition

	// ToolName returns the identifier for this handler.
	ToolName() string
}
