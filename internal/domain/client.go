package domain

import (
	"context"
	"net/http"
)

// UpstreamResponse is the raw answer of a TestRail endpoint.
type UpstreamResponse struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// ProjectAPI is the subset of the TestRail API exposed as tools.
// Every method performs exactly one HTTP request.
type ProjectAPI interface {
	GetProjects(ctx context.Context, req GetProjectsRequest) (*UpstreamResponse, error)
	GetProject(ctx context.Context, req ProjectIDRequest) (*UpstreamResponse, error)
	AddProject(ctx context.Context, req AddProjectRequest) (*UpstreamResponse, error)
	UpdateProject(ctx context.Context, req UpdateProjectRequest) (*UpstreamResponse, error)
	DeleteProject(ctx context.Context, req ProjectIDRequest) (*UpstreamResponse, error)
}

// TestRailClient defines the low-level operations of the HTTP bridge.
type TestRailClient interface {
	ProjectAPI

	// BaseURL returns the configured TestRail root URL.
	BaseURL() string

	// Do executes a request after adding the JSON headers.
	Do(req *http.Request) (*http.Response, error)
}
