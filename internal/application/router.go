package application

import (
	"context"

	"testrail-mcp-server/internal/domain"
)

// RequestRouter dispatches MCP tool requests to the ToolHandler that declares the tool.
// Tool names are matched exactly; the listing order is the handler
// registration order followed by each handler's declaration order.
type RequestRouter struct {
	handlers []domain.ToolHandler
	tools    map[string]domain.ToolHandler
}

// NewRequestRouter creates a new RequestRouter with the provided handlers.
// When two handlers declare the same tool name the first one wins.
func NewRequestRouter(handlers ...domain.ToolHandler) *RequestRouter {
	router := &RequestRouter{
		handlers: handlers,
		tools:    make(map[string]domain.ToolHandler),
	}

	for _, handler := range handlers {
		for _, tool := range handler.ListTools() {
			if _, exists := router.tools[tool.Name]; !exists {
				router.tools[tool.Name] = handler
			}
		}
	}

	return router
}

// Route dispatches a tool request to the handler that declares the tool.
// An undeclared tool fails with *domain.UnknownToolError before any handler runs.
func (r *RequestRouter) Route(ctx context.Context, req *domain.ToolRequest) (*domain.ToolResponse, error) {
	handler, exists := r.tools[req.Name]
	if !exists {
		return nil, &domain.UnknownToolError{Name: req.Name}
	}

	return handler.Handle(ctx, req)
}

// ListAllTools aggregates tool definitions from all registered handlers.
// This is used for MCP tool discovery (tools/list method).
func (r *RequestRouter) ListAllTools() []domain.ToolDefinition {
	var allTools []domain.ToolDefinition

	for _, handler := range r.handlers {
		allTools = append(allTools, handler.ListTools()...)
	}

	return allTools
}

// GetHandler returns the handler serving a specific tool name.
func (r *RequestRouter) GetHandler(toolName string) (domain.ToolHandler, bool) {
	handler, exists := r.tools[toolName]
	return handler, exists
}
