package application

import (
	"context"
	"time"

	"github.com/google/jsonschema-go/jsonschema"

	"testrail-mcp-server/internal/domain"
	"testrail-mcp-server/internal/metrics"
)

// Tool name constants for TestRail project operations
const (
	ToolGetProjects   = "get-projects"
	ToolGetProject    = "get-project"
	ToolAddProject    = "add-project"
	ToolUpdateProject = "update-project"
	ToolDeleteProject = "delete-project"
)

const (
	descShowAnnouncement = "True if the announcement should be displayed on the project's overview page and false otherwise"
	descAnnouncement     = "The description/announcement of the project"
	descSuiteMode        = "The suite mode of the project (1 for single suite mode, 2 for single suite + baselines, 3 for multiple suites)"
	descProjectName      = "The name of the project"
)

// ProjectHandler implements ToolHandler for TestRail project operations.
// It validates arguments into typed requests, forwards them to the
// TestRail client and renders the raw upstream response.
type ProjectHandler struct {
	client domain.ProjectAPI
	mapper domain.ResponseMapper
	tools  []toolSpec
	byName map[string]toolSpec
}

// NewProjectHandler creates a new ProjectHandler instance.
func NewProjectHandler(client domain.ProjectAPI, mapper domain.ResponseMapper) *ProjectHandler {
	tools := projectTools()
	byName := make(map[string]toolSpec, len(tools))
	for _, spec := range tools {
		byName[spec.definition.Name] = spec
	}

	return &ProjectHandler{
		client: client,
		mapper: mapper,
		tools:  tools,
		byName: byName,
	}
}

// projectTools declares the project tools in their listing order.
func projectTools() []toolSpec {
	return []toolSpec{
		newToolSpec(ToolAddProject, "Adds new TestRail project", objectSchema(
			map[string]*jsonschema.Schema{
				"name":              stringParam(descProjectName),
				"show_announcement": booleanParam(descShowAnnouncement),
				"announcement":      stringParam(descAnnouncement),
				"suite_mode":        boundedIntegerParam(descSuiteMode, domain.SuiteModeSingle, domain.SuiteModeMultiple),
			},
			"name",
		)),
		newToolSpec(ToolDeleteProject, "Deletes a TestRail project", objectSchema(
			map[string]*jsonschema.Schema{
				"id": integerParam("The ID of the project to delete"),
			},
			"id",
		)),
		newToolSpec(ToolUpdateProject, "Updates a TestRail project", objectSchema(
			map[string]*jsonschema.Schema{
				"id":                integerParam("The ID of the project to update"),
				"name":              stringParam(descProjectName),
				"show_announcement": booleanParam(descShowAnnouncement),
				"announcement":      stringParam(descAnnouncement),
				"suite_mode":        boundedIntegerParam(descSuiteMode, domain.SuiteModeSingle, domain.SuiteModeMultiple),
			},
			"id", "name",
		)),
		newToolSpec(ToolGetProjects, "Returns the list of available TestRail projects.", objectSchema(
			map[string]*jsonschema.Schema{
				"is_completed": boundedIntegerParam("1 to return completed projects only. 0 to return active projects only", 0, 1),
				"limit":        minIntegerParam("The number of projects the response should return (The response size is 250 by default)", 1),
				"offset":       minIntegerParam("Where to start counting the projects from (the offset)", 0),
			},
		)),
		newToolSpec(ToolGetProject, "Returns given TestRail project.", objectSchema(
			map[string]*jsonschema.Schema{
				"id": integerParam("The ID of the project"),
			},
			"id",
		)),
	}
}

// ToolName returns the identifier for this handler.
func (h *ProjectHandler) ToolName() string {
	return "testrail"
}

// ListTools returns available tools for TestRail project operations.
func (h *ProjectHandler) ListTools() []domain.ToolDefinition {
	definitions := make([]domain.ToolDefinition, 0, len(h.tools))
	for _, spec := range h.tools {
		definitions = append(definitions, spec.definition)
	}
	return definitions
}

// Handle processes an MCP tool call request for project operations.
func (h *ProjectHandler) Handle(ctx context.Context, req *domain.ToolRequest) (resp *domain.ToolResponse, err error) {
	spec, ok := h.byName[req.Name]
	if !ok {
		return nil, &domain.UnknownToolError{Name: req.Name}
	}

	start := time.Now()
	defer func() { metrics.RecordToolCall(req.Name, time.Since(start), err) }()

	var upstream *domain.UpstreamResponse

	switch req.Name {
	case ToolGetProjects:
		var args domain.GetProjectsRequest
		if err := decodeArguments(spec, req.Arguments, &args); err != nil {
			return nil, err
		}
		upstream, err = h.client.GetProjects(ctx, args)
	case ToolGetProject:
		var args domain.ProjectIDRequest
		if err := decodeArguments(spec, req.Arguments, &args); err != nil {
			return nil, err
		}
		upstream, err = h.client.GetProject(ctx, args)
	case ToolAddProject:
		var args domain.AddProjectRequest
		if err := decodeArguments(spec, req.Arguments, &args); err != nil {
			return nil, err
		}
		upstream, err = h.client.AddProject(ctx, args)
	case ToolUpdateProject:
		var args domain.UpdateProjectRequest
		if err := decodeArguments(spec, req.Arguments, &args); err != nil {
			return nil, err
		}
		upstream, err = h.client.UpdateProject(ctx, args)
	case ToolDeleteProject:
		var args domain.ProjectIDRequest
		if err := decodeArguments(spec, req.Arguments, &args); err != nil {
			return nil, err
		}
		upstream, err = h.client.DeleteProject(ctx, args)
	}

	if err != nil {
		return nil, err
	}

	return h.mapper.MapToToolResponse(upstream)
}
