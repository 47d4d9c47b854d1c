package application

import (
	"context"

	"github.com/google/jsonschema-go/jsonschema"

	"testrail-mcp-server/internal/domain"
)

// ToolEcho is the demo tool. It never calls TestRail.
const ToolEcho = "echo"

// DemoHandler serves the echo tool used to check that a client is wired up.
type DemoHandler struct {
	spec toolSpec
}

// NewDemoHandler creates a new DemoHandler instance.
func NewDemoHandler() *DemoHandler {
	return &DemoHandler{
		spec: newToolSpec(ToolEcho, "Echoes the given message back to the caller", objectSchema(
			map[string]*jsonschema.Schema{
				"message": stringParam("The message to echo"),
			},
			"message",
		)),
	}
}

// ToolName returns the identifier for this handler.
func (h *DemoHandler) ToolName() string {
	return "demo"
}

// ListTools returns the echo tool definition.
func (h *DemoHandler) ListTools() []domain.ToolDefinition {
	return []domain.ToolDefinition{h.spec.definition}
}

// Handle echoes the message argument.
func (h *DemoHandler) Handle(_ context.Context, req *domain.ToolRequest) (*domain.ToolResponse, error) {
	if req.Name != ToolEcho {
		return nil, &domain.UnknownToolError{Name: req.Name}
	}

	var args domain.EchoRequest
	if err := decodeArguments(h.spec, req.Arguments, &args); err != nil {
		return nil, err
	}

	return domain.NewTextResponse(args.Message), nil
}
