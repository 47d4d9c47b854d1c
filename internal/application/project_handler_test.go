package application

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"testrail-mcp-server/internal/domain"
	"testrail-mcp-server/internal/infrastructure"
)

// upstreamCall is one request seen by the fake TestRail server.
type upstreamCall struct {
	method   string
	rawQuery string
	body     string
}

type upstreamRecorder struct {
	mu     sync.Mutex
	calls  []upstreamCall
	status int
	body   string
}

func (u *upstreamRecorder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	u.mu.Lock()
	u.calls = append(u.calls, upstreamCall{method: r.Method, rawQuery: r.URL.RawQuery, body: string(body)})
	status, respBody := u.status, u.body
	u.mu.Unlock()

	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, _ = io.WriteString(w, respBody)
}

func (u *upstreamRecorder) snapshot() []upstreamCall {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]upstreamCall(nil), u.calls...)
}

// newBridgedHandler wires a ProjectHandler to a real client talking to a fake TestRail.
func newBridgedHandler(t *testing.T, upstream *upstreamRecorder) *ProjectHandler {
	t.Helper()
	server := httptest.NewServer(upstream)
	t.Cleanup(server.Close)

	httpClient, err := domain.NewAuthenticatedClient(&domain.Credentials{Username: "qa@example.com", APIKey: "secret"}, 5*time.Second)
	require.NoError(t, err)

	client := infrastructure.NewTestRailClient(server.URL, httpClient)
	return NewProjectHandler(client, domain.NewResponseMapper())
}

func callTool(h domain.ToolHandler, name string, args map[string]interface{}) (*domain.ToolResponse, error) {
	return h.Handle(context.Background(), &domain.ToolRequest{Name: name, Arguments: args})
}

func TestProjectHandler_UpstreamRequests(t *testing.T) {
	tests := []struct {
		name     string
		tool     string
		args     map[string]interface{}
		method   string
		rawQuery string
		wantBody string
		respond  string
		wantText string
	}{
		{
			name:     "get-projects with limit",
			tool:     ToolGetProjects,
			args:     map[string]interface{}{"limit": 10},
			method:   http.MethodGet,
			rawQuery: "/api/v2/get_projects?limit=10",
			respond:  `{"projects":[]}`,
			wantText: `Response details: {"projects":[]}`,
		},
		{
			name:     "get-projects without arguments",
			tool:     ToolGetProjects,
			args:     nil,
			method:   http.MethodGet,
			rawQuery: "/api/v2/get_projects",
			respond:  `[]`,
			wantText: `Response details: []`,
		},
		{
			name:     "get-projects completed filter",
			tool:     ToolGetProjects,
			args:     map[string]interface{}{"is_completed": 1, "offset": 0},
			method:   http.MethodGet,
			rawQuery: "/api/v2/get_projects?is_completed=1&offset=0",
			respond:  `[]`,
			wantText: `Response details: []`,
		},
		{
			name:     "get-project",
			tool:     ToolGetProject,
			args:     map[string]interface{}{"id": 3},
			method:   http.MethodGet,
			rawQuery: "/api/v2/get_project/3",
			respond:  `{"id": 3, "name": "Demo"}`,
			wantText: `Response details: {"id":3,"name":"Demo"}`,
		},
		{
			name:     "add-project",
			tool:     ToolAddProject,
			args:     map[string]interface{}{"name": "Demo"},
			method:   http.MethodPost,
			rawQuery: "/api/v2/add_project",
			wantBody: `{"name":"Demo"}`,
			respond:  `{"id":9,"name":"Demo"}`,
			wantText: `Response details: {"id":9,"name":"Demo"}`,
		},
		{
			name:     "add-project with options",
			tool:     ToolAddProject,
			args:     map[string]interface{}{"name": "Demo", "announcement": "hello", "show_announcement": true, "suite_mode": 3},
			method:   http.MethodPost,
			rawQuery: "/api/v2/add_project",
			wantBody: `{"name":"Demo","announcement":"hello","show_announcement":true,"suite_mode":3}`,
			respond:  `{"id":9}`,
			wantText: `Response details: {"id":9}`,
		},
		{
			name:     "update-project",
			tool:     ToolUpdateProject,
			args:     map[string]interface{}{"id": 7, "name": "Renamed"},
			method:   http.MethodPost,
			rawQuery: "/api/v2/update_project/7",
			wantBody: `{"id":7,"name":"Renamed"}`,
			respond:  `{"id":7,"name":"Renamed"}`,
			wantText: `Response details: {"id":7,"name":"Renamed"}`,
		},
		{
			name:     "update-project forwards every argument",
			tool:     ToolUpdateProject,
			args:     map[string]interface{}{"id": 7, "name": "R", "announcement": "a", "show_announcement": true, "suite_mode": 2},
			method:   http.MethodPost,
			rawQuery: "/api/v2/update_project/7",
			wantBody: `{"id":7,"name":"R","announcement":"a","show_announcement":true,"suite_mode":2}`,
			respond:  `{"id":7}`,
			wantText: `Response details: {"id":7}`,
		},
		{
			name:     "delete-project",
			tool:     ToolDeleteProject,
			args:     map[string]interface{}{"id": 5},
			method:   http.MethodPost,
			rawQuery: "/api/v2/delete_project/5",
			wantBody: `{}`,
			respond:  "",
			wantText: "Response details: ",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			upstream := &upstreamRecorder{body: tt.respond}
			handler := newBridgedHandler(t, upstream)

			resp, err := callTool(handler, tt.tool, tt.args)
			require.NoError(t, err)

			calls := upstream.snapshot()
			require.Len(t, calls, 1, "exactly one upstream request per invocation")
			assert.Equal(t, tt.method, calls[0].method)
			assert.Equal(t, tt.rawQuery, calls[0].rawQuery)
			if tt.wantBody != "" {
				assert.JSONEq(t, tt.wantBody, calls[0].body)
			}

			require.Len(t, resp.Content, 1)
			assert.Equal(t, "text", resp.Content[0].Type)
			assert.Equal(t, tt.wantText, resp.Content[0].Text)
		})
	}
}

func TestProjectHandler_InvalidArgumentsSkipUpstream(t *testing.T) {
	tests := []struct {
		name string
		tool string
		args map[string]interface{}
	}{
		{name: "get-project without id", tool: ToolGetProject, args: map[string]interface{}{}},
		{name: "get-project with string id", tool: ToolGetProject, args: map[string]interface{}{"id": "3"}},
		{name: "get-project with fractional id", tool: ToolGetProject, args: map[string]interface{}{"id": 1.5}},
		{name: "delete-project without id", tool: ToolDeleteProject, args: nil},
		{name: "add-project without name", tool: ToolAddProject, args: map[string]interface{}{"announcement": "x"}},
		{name: "add-project with suite mode 4", tool: ToolAddProject, args: map[string]interface{}{"name": "Demo", "suite_mode": 4}},
		{name: "add-project with suite mode 0", tool: ToolAddProject, args: map[string]interface{}{"name": "Demo", "suite_mode": 0}},
		{name: "add-project with string flag", tool: ToolAddProject, args: map[string]interface{}{"name": "Demo", "show_announcement": "yes"}},
		{name: "update-project without name", tool: ToolUpdateProject, args: map[string]interface{}{"id": 1}},
		{name: "update-project without id", tool: ToolUpdateProject, args: map[string]interface{}{"name": "x"}},
		{name: "get-projects is_completed 2", tool: ToolGetProjects, args: map[string]interface{}{"is_completed": 2}},
		{name: "get-projects limit 0", tool: ToolGetProjects, args: map[string]interface{}{"limit": 0}},
		{name: "get-projects negative offset", tool: ToolGetProjects, args: map[string]interface{}{"offset": -1}},
		{name: "add-project with unknown key", tool: ToolAddProject, args: map[string]interface{}{"name": "Demo", "default_role_id": 3}},
		{name: "update-project with unknown key", tool: ToolUpdateProject, args: map[string]interface{}{"id": 7, "name": "R", "is_completed": true}},
		{name: "get-projects with unknown filter", tool: ToolGetProjects, args: map[string]interface{}{"suite_id": 1}},
		{name: "delete-project with extra key", tool: ToolDeleteProject, args: map[string]interface{}{"id": 5, "force": true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			upstream := &upstreamRecorder{body: `{}`}
			handler := newBridgedHandler(t, upstream)

			_, err := callTool(handler, tt.tool, tt.args)
			require.Error(t, err)

			var validationErr *domain.ValidationError
			assert.True(t, errors.As(err, &validationErr), "expected ValidationError, got %T: %v", err, err)
			assert.ErrorIs(t, err, domain.ErrInvalidArguments)
			assert.Empty(t, upstream.snapshot(), "invalid arguments must not reach TestRail")
		})
	}
}

func TestProjectHandler_UnknownToolSkipsUpstream(t *testing.T) {
	upstream := &upstreamRecorder{body: `{}`}
	handler := newBridgedHandler(t, upstream)

	_, err := callTool(handler, "get-suites", map[string]interface{}{"project_id": 1})

	var unknown *domain.UnknownToolError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, "get-suites", unknown.Name)
	assert.Empty(t, upstream.snapshot())
}

func TestProjectHandler_UpstreamFailure(t *testing.T) {
	upstream := &upstreamRecorder{status: http.StatusBadRequest, body: `{"error":"Field :id is not a valid project."}`}
	handler := newBridgedHandler(t, upstream)

	resp, err := callTool(handler, ToolGetProject, map[string]interface{}{"id": 999})
	require.Error(t, err)
	assert.Nil(t, resp)

	var failed *domain.RequestFailedError
	require.True(t, errors.As(err, &failed))
	assert.Equal(t, http.StatusBadRequest, failed.StatusCode)
	assert.Equal(t, "Bad Request", failed.Status)
	assert.Len(t, upstream.snapshot(), 1)
}

func TestProjectHandler_TypedArguments(t *testing.T) {
	api := &fakeProjectAPI{}
	handler := NewProjectHandler(api, domain.NewResponseMapper())

	_, err := callTool(handler, ToolUpdateProject, map[string]interface{}{
		"id":                float64(4),
		"name":              "Renamed",
		"show_announcement": false,
		"suite_mode":        float64(domain.SuiteModeSingleBaselines),
	})
	require.NoError(t, err)

	assert.Equal(t, 4, api.lastUpdate.ID)
	assert.Equal(t, "Renamed", api.lastUpdate.Name)
	require.NotNil(t, api.lastUpdate.ShowAnnouncement)
	assert.False(t, *api.lastUpdate.ShowAnnouncement)
	require.NotNil(t, api.lastUpdate.SuiteMode)
	assert.Equal(t, domain.SuiteModeSingleBaselines, *api.lastUpdate.SuiteMode)
	assert.Nil(t, api.lastUpdate.Announcement)

	_, err = callTool(handler, ToolGetProjects, map[string]interface{}{"offset": 20})
	require.NoError(t, err)
	assert.Nil(t, api.lastGetProjects.Limit)
	require.NotNil(t, api.lastGetProjects.Offset)
	assert.Equal(t, 20, *api.lastGetProjects.Offset)
}

func TestProjectHandler_ToolSchemas(t *testing.T) {
	handler := NewProjectHandler(&fakeProjectAPI{}, domain.NewResponseMapper())
	assert.Equal(t, "testrail", handler.ToolName())

	required := map[string][]string{
		ToolAddProject:    {"name"},
		ToolDeleteProject: {"id"},
		ToolUpdateProject: {"id", "name"},
		ToolGetProjects:   {},
		ToolGetProject:    {"id"},
	}

	for _, tool := range handler.ListTools() {
		want, ok := required[tool.Name]
		require.True(t, ok, "unexpected tool %s", tool.Name)
		assert.ElementsMatch(t, want, tool.InputSchema.Required, tool.Name)
		assert.NotEmpty(t, tool.Description)

		// The schema must serialise as a JSON Schema object
		data, err := json.Marshal(tool)
		require.NoError(t, err)
		var decoded map[string]interface{}
		require.NoError(t, json.Unmarshal(data, &decoded))
		schema, ok := decoded["inputSchema"].(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, "object", schema["type"])
	}
}

func TestDemoHandler_Echo(t *testing.T) {
	handler := NewDemoHandler()
	assert.Equal(t, "demo", handler.ToolName())
	require.Len(t, handler.ListTools(), 1)

	resp, err := callTool(handler, ToolEcho, map[string]interface{}{"message": "hello"})
	require.NoError(t, err)
	assert.Equal(t, "hello", resp.Content[0].Text)

	_, err = callTool(handler, ToolEcho, map[string]interface{}{})
	assert.ErrorIs(t, err, domain.ErrInvalidArguments)

	_, err = callTool(handler, "shout", map[string]interface{}{"message": "hello"})
	assert.ErrorIs(t, err, domain.ErrUnknownTool)
}
