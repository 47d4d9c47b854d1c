package infrastructure

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"testrail-mcp-server/internal/domain"
	"testrail-mcp-server/internal/metrics"
)

// APIPrefix is the TestRail API v2 route appended to the base URL.
const APIPrefix = "/index.php?/api/v2/"

// maxErrorBody bounds the amount of an error body kept in RequestFailedError.
const maxErrorBody = 4096

// TestRailClient handles TestRail API v2 interactions.
// It implements domain.TestRailClient; every project operation is a single
// HTTP round trip with no retries.
type TestRailClient struct {
	baseURL    string
	httpClient *http.Client
}

var _ domain.TestRailClient = (*TestRailClient)(nil)

// NewTestRailClient creates a new TestRail API client.
// The baseURL should be the root URL of the TestRail instance (e.g., "https://example.testrail.io").
// The httpClient should add authentication (see domain.NewAuthenticatedClient).
func NewTestRailClient(baseURL string, httpClient *http.Client) *TestRailClient {
	return &TestRailClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// BaseURL returns the configured base URL for the TestRail instance.
func (c *TestRailClient) BaseURL() string {
	return c.baseURL
}

// Do executes an HTTP request after setting the JSON headers.
func (c *TestRailClient) Do(req *http.Request) (*http.Response, error) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	return c.httpClient.Do(req)
}

// EndpointURL builds the full URL of an API path, appending query parameters
// when there are any.
func (c *TestRailClient) EndpointURL(path string, query url.Values) string {
	endpoint := c.baseURL + APIPrefix + path
	if encoded := query.Encode(); encoded != "" {
		endpoint += "?" + encoded
	}
	return endpoint
}

// GetProjects lists projects, passing the filters through as query parameters.
// TestRail API: GET get_projects
func (c *TestRailClient) GetProjects(ctx context.Context, req domain.GetProjectsRequest) (*domain.UpstreamResponse, error) {
	return c.get(ctx, "get_projects", "get_projects", req.Query())
}

// GetProject retrieves one project.
// TestRail API: GET get_project/{id}
func (c *TestRailClient) GetProject(ctx context.Context, req domain.ProjectIDRequest) (*domain.UpstreamResponse, error) {
	return c.get(ctx, "get_project", "get_project/"+strconv.Itoa(req.ID), nil)
}

// AddProject creates a project.
// TestRail API: POST add_project
func (c *TestRailClient) AddProject(ctx context.Context, req domain.AddProjectRequest) (*domain.UpstreamResponse, error) {
	return c.post(ctx, "add_project", "add_project", req)
}

// UpdateProject updates a project; the id is in both the path and the body.
// TestRail API: POST update_project/{id}
func (c *TestRailClient) UpdateProject(ctx context.Context, req domain.UpdateProjectRequest) (*domain.UpstreamResponse, error) {
	return c.post(ctx, "update_project", "update_project/"+strconv.Itoa(req.ID), req)
}

// DeleteProject deletes a project. TestRail answers with an empty body.
// TestRail API: POST delete_project/{id}
func (c *TestRailClient) DeleteProject(ctx context.Context, req domain.ProjectIDRequest) (*domain.UpstreamResponse, error) {
	return c.post(ctx, "delete_project", "delete_project/"+strconv.Itoa(req.ID), struct{}{})
}

// get issues a GET request against path.
func (c *TestRailClient) get(ctx context.Context, endpoint, path string, query url.Values) (*domain.UpstreamResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.EndpointURL(path, query), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	return c.execute(endpoint, req)
}

// post issues a POST request against path with body encoded as JSON.
func (c *TestRailClient) post(ctx context.Context, endpoint, path string, body interface{}) (*domain.UpstreamResponse, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.EndpointURL(path, nil), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	return c.execute(endpoint, req)
}

// execute sends the request, checks the status and reads the body.
// The status is always checked before the body is interpreted.
func (c *TestRailClient) execute(endpoint string, req *http.Request) (*domain.UpstreamResponse, error) {
	start := time.Now()

	resp, err := c.Do(req)
	if err != nil {
		metrics.RecordUpstreamRequest(req.Method, endpoint, 0, time.Since(start))
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return nil, fmt.Errorf("%s %s: %w", req.Method, endpoint, ctxErr)
		}
		return nil, fmt.Errorf("%w: %s %s: %v", domain.ErrUpstreamUnreachable, req.Method, endpoint, err)
	}
	defer resp.Body.Close()

	metrics.RecordUpstreamRequest(req.Method, endpoint, resp.StatusCode, time.Since(start))

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, domain.NewRequestFailedError(resp.StatusCode, statusText(resp), strings.TrimSpace(string(body)))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%s %s: %w", req.Method, endpoint, err)
		}
		return nil, fmt.Errorf("%w: failed to read response: %v", domain.ErrUpstreamUnreachable, err)
	}

	return &domain.UpstreamResponse{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}

// statusText returns the reason phrase of the response, e.g. "Not Found".
func statusText(resp *http.Response) string {
	if text := http.StatusText(resp.StatusCode); text != "" {
		return text
	}
	return resp.Status
}
