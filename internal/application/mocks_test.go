package application

import (
	"context"
	"sync"

	"testrail-mcp-server/internal/domain"
)

// mockTransport is a mock implementation of domain.Transport for testing.
type mockTransport struct {
	mu        sync.Mutex
	reqChan   chan *domain.Request
	responses []*domain.Response
	notify    chan *domain.Response
	started   bool
	closeOnce sync.Once
}

func newMockTransport() *mockTransport {
	return &mockTransport{
		reqChan: make(chan *domain.Request, 10),
		notify:  make(chan *domain.Response, 10),
	}
}

func (m *mockTransport) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.started = true
	return nil
}

func (m *mockTransport) Send(response *domain.Response) error {
	m.mu.Lock()
	m.responses = append(m.responses, response)
	m.mu.Unlock()

	select {
	case m.notify <- response:
	default:
	}
	return nil
}

func (m *mockTransport) Receive() <-chan *domain.Request {
	return m.reqChan
}

func (m *mockTransport) Close() error {
	m.closeOnce.Do(func() { close(m.reqChan) })
	return nil
}

func (m *mockTransport) getAllResponses() []*domain.Response {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]*domain.Response, len(m.responses))
	copy(result, m.responses)
	return result
}

// mockToolHandler is a mock implementation of domain.ToolHandler for testing.
type mockToolHandler struct {
	name     string
	tools    []domain.ToolDefinition
	response *domain.ToolResponse
	err      error
	block    chan struct{}

	mu    sync.Mutex
	calls []string
}

func (m *mockToolHandler) Handle(ctx context.Context, req *domain.ToolRequest) (*domain.ToolResponse, error) {
	m.mu.Lock()
	m.calls = append(m.calls, req.Name)
	m.mu.Unlock()

	if m.block != nil {
		select {
		case <-m.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if m.err != nil {
		return nil, m.err
	}
	return m.response, nil
}

func (m *mockToolHandler) ListTools() []domain.ToolDefinition {
	return m.tools
}

func (m *mockToolHandler) ToolName() string {
	return m.name
}

func (m *mockToolHandler) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// fakeProjectAPI records project calls without touching the network.
type fakeProjectAPI struct {
	mu       sync.Mutex
	calls    []string
	response *domain.UpstreamResponse
	err      error

	lastGetProjects domain.GetProjectsRequest
	lastID          int
	lastAdd         domain.AddProjectRequest
	lastUpdate      domain.UpdateProjectRequest
}

func (f *fakeProjectAPI) record(name string) (*domain.UpstreamResponse, error) {
	f.calls = append(f.calls, name)
	if f.err != nil {
		return nil, f.err
	}
	if f.response == nil {
		return &domain.UpstreamResponse{StatusCode: 200, Body: []byte(`{}`)}, nil
	}
	return f.response, nil
}

func (f *fakeProjectAPI) GetProjects(_ context.Context, req domain.GetProjectsRequest) (*domain.UpstreamResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastGetProjects = req
	return f.record("get_projects")
}

func (f *fakeProjectAPI) GetProject(_ context.Context, req domain.ProjectIDRequest) (*domain.UpstreamResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastID = req.ID
	return f.record("get_project")
}

func (f *fakeProjectAPI) AddProject(_ context.Context, req domain.AddProjectRequest) (*domain.UpstreamResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastAdd = req
	return f.record("add_project")
}

func (f *fakeProjectAPI) UpdateProject(_ context.Context, req domain.UpdateProjectRequest) (*domain.UpstreamResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastUpdate = req
	return f.record("update_project")
}

func (f *fakeProjectAPI) DeleteProject(_ context.Context, req domain.ProjectIDRequest) (*domain.UpstreamResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastID = req.ID
	return f.record("delete_project")
}

func (f *fakeProjectAPI) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func textTool(name string) domain.ToolDefinition {
	return domain.ToolDefinition{Name: name, Description: name, InputSchema: objectSchema(nil)}
}

func textResponse(text string) *domain.ToolResponse {
	return domain.NewTextResponse(text)
}
