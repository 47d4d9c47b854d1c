package domain

import "github.com/google/jsonschema-go/jsonschema"

// ProtocolVersion is the MCP revision advertised during initialize.
const ProtocolVersion = "2024-11-05"

// ToolDefinition represents an MCP tool definition.
// This describes a tool that can be called by MCP clients.
type ToolDefinition struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	InputSchema *jsonschema.Schema `json:"inputSchema"`
}

// ToolRequest represents an MCP tool call request.
// This is the request format when a client invokes a tool.
type ToolRequest struct {
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

// ToolResponse represents an MCP tool call response.
// This is the response format returned to the client after tool execution.
type ToolResponse struct {
	Content []ContentBlock `json:"content"`
	IsError bool           `json:"isError,omitempty"`
}

// ContentBlock represents a piece of content in the response.
type ContentBlock struct {
	Type string `json:"type"` // "text"
	Text string `json:"text"`
}

// NewTextResponse wraps a single text block in a ToolResponse.
func NewTextResponse(text string) *ToolResponse {
	return &ToolResponse{
		Content: []ContentBlock{{Type: "text", Text: text}},
	}
}
