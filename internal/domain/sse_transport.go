package domain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"testrail-mcp-server/internal/metrics"
)

// SSE endpoint paths
const (
	SSEPath      = "/sse"
	MessagesPath = "/messages"
)

const (
	sessionBufferSize = 32
	keepAliveInterval = 30 * time.Second
)

// ErrSessionNotFound is returned when a response targets a session that is gone.
var ErrSessionNotFound = errors.New("session not found")

// SSETransport implements Transport using HTTP with Server-Sent Events.
// It exposes two endpoints:
// 1. GET /sse opens an event stream for server-to-client messages
// 2. POST /messages?sessionId=<id> delivers client-to-server messages
//
// Every stream owns an entry in the session table and only receives the
// responses to requests posted with its own session id.
type SSETransport struct {
	config  HTTPConfig
	server  *http.Server
	router  chi.Router
	logger  *zap.Logger
	reqChan chan *Request
	mu      sync.Mutex
	closed  bool

	sessions   map[string]*sseSession
	sessionsMu sync.RWMutex

	keepAlive time.Duration
}

// sseSession represents an active SSE connection
type sseSession struct {
	id          string
	messageChan chan *Response
	done        chan struct{}
	closeOnce   sync.Once
}

func (s *sseSession) close() {
	s.closeOnce.Do(func() { close(s.done) })
}

// NewSSETransport creates a new SSETransport for the given listener settings.
func NewSSETransport(config HTTPConfig, logger *zap.Logger) *SSETransport {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.SessionPolicy == "" {
		config.SessionPolicy = SessionPolicyMulti
	}

	t := &SSETransport{
		config:    config,
		logger:    logger,
		reqChan:   make(chan *Request, 64),
		sessions:  make(map[string]*sseSession),
		keepAlive: keepAliveInterval,
	}
	t.router = t.routes()
	return t
}

// routes builds the chi router serving the transport endpoints.
func (t *SSETransport) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(t.logger))
	r.Use(middleware.Recoverer)

	r.Get("/health", t.handleHealth)
	r.Handle("/metrics", metrics.Handler())
	r.Get(SSEPath, t.handleSSE)
	r.Post(MessagesPath, t.handleMessage)

	return r
}

// Handler exposes the transport endpoints, mainly for httptest servers.
func (t *SSETransport) Handler() http.Handler {
	return t.router
}

// Start begins the HTTP server and starts listening for incoming requests.
func (t *SSETransport) Start(ctx context.Context) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return fmt.Errorf("transport is closed")
	}
	t.server = &http.Server{
		Addr:              t.config.Addr(),
		Handler:           t.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	server := t.server
	t.mu.Unlock()

	listener, err := net.Listen("tcp", server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", server.Addr, err)
	}

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			t.logger.Error("sse listener stopped", zap.Error(err), zap.String("addr", server.Addr))
		}
	}()

	go func() {
		<-ctx.Done()
		_ = t.Close()
	}()

	t.logger.Info("sse transport listening",
		zap.String("addr", server.Addr),
		zap.String("session_policy", t.config.SessionPolicy))

	return nil
}

// handleHealth reports liveness and the number of open sessions.
func (t *SSETransport) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status":   "ok",
		"sessions": t.SessionCount(),
	})
}

// SessionCount returns the number of open SSE sessions.
func (t *SSETransport) SessionCount() int {
	t.sessionsMu.RLock()
	defer t.sessionsMu.RUnlock()
	return len(t.sessions)
}

// handleSSE opens an event stream and registers a session for it.
func (t *SSETransport) handleSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	session, err := t.openSession()
	if err != nil {
		metrics.RejectedSessions.Inc()
		t.logger.Warn("sse session rejected", zap.Error(err), zap.String("remote_addr", r.RemoteAddr))
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	defer t.closeSession(session)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)

	// Tell the client where to post its messages
	fmt.Fprintf(w, "event: endpoint\ndata: %s?sessionId=%s\n\n", MessagesPath, session.id)
	flusher.Flush()

	t.logger.Info("sse session established", zap.String("session_id", session.id))

	ticker := time.NewTicker(t.keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			t.logger.Info("sse session disconnected", zap.String("session_id", session.id))
			return
		case <-session.done:
			return
		case response := <-session.messageChan:
			data, err := json.Marshal(response)
			if err != nil {
				t.logger.Error("failed to marshal response", zap.Error(err), zap.String("session_id", session.id))
				continue
			}
			fmt.Fprintf(w, "event: message\ndata: %s\n\n", data)
			flusher.Flush()
		case <-ticker.C:
			fmt.Fprint(w, ": keep-alive\n\n")
			flusher.Flush()
		}
	}
}

// openSession registers a new session, honouring the session policy.
func (t *SSETransport) openSession() (*sseSession, error) {
	t.sessionsMu.Lock()
	defer t.sessionsMu.Unlock()

	if t.config.SessionPolicy == SessionPolicyExclusive && len(t.sessions) > 0 {
		return nil, fmt.Errorf("another client session is already active")
	}

	session := &sseSession{
		id:          uuid.NewString(),
		messageChan: make(chan *Response, sessionBufferSize),
		done:        make(chan struct{}),
	}
	t.sessions[session.id] = session
	metrics.ActiveSessions.Inc()

	return session, nil
}

// closeSession removes a session from the table and releases its stream.
func (t *SSETransport) closeSession(session *sseSession) {
	t.sessionsMu.Lock()
	if _, ok := t.sessions[session.id]; ok {
		delete(t.sessions, session.id)
		metrics.ActiveSessions.Dec()
	}
	t.sessionsMu.Unlock()
	session.close()
}

// lookupSession returns the session registered under id.
func (t *SSETransport) lookupSession(id string) (*sseSession, bool) {
	t.sessionsMu.RLock()
	defer t.sessionsMu.RUnlock()
	session, ok := t.sessions[id]
	return session, ok
}

// handleMessage handles HTTP POST requests for client-to-server messages.
func (t *SSETransport) handleMessage(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("sessionId")
	if sessionID == "" {
		http.Error(w, "Missing sessionId parameter", http.StatusBadRequest)
		return
	}

	session, ok := t.lookupSession(sessionID)
	if !ok {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		t.sendErrorToSession(session, nil, ParseError, "Parse error", err.Error())
		w.WriteHeader(http.StatusAccepted)
		return
	}

	if req.JSONRPC != JSONRPCVersion {
		t.sendErrorToSession(session, req.ID, InvalidRequest, "Invalid Request", "invalid jsonrpc version")
		w.WriteHeader(http.StatusAccepted)
		return
	}

	req.SessionID = session.id

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		http.Error(w, "Transport closed", http.StatusServiceUnavailable)
		return
	}
	accepted := false
	select {
	case t.reqChan <- &req:
		accepted = true
	default:
	}
	t.mu.Unlock()

	if !accepted {
		t.sendErrorToSession(session, req.ID, InternalError, "Internal error", "request queue full")
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

// sendErrorToSession queues an error response produced by the transport itself.
func (t *SSETransport) sendErrorToSession(session *sseSession, id interface{}, code int, message string, data interface{}) {
	response := NewErrorResponse(id, session.id, &Error{
		Code:    code,
		Message: message,
		Data:    data,
	})

	select {
	case session.messageChan <- response:
	default:
		t.logger.Warn("dropping error response: session buffer full", zap.String("session_id", session.id))
	}
}

// Send queues a response on the stream of the session that sent the request.
func (t *SSETransport) Send(response *Response) error {
	t.mu.Lock()
	closed := t.closed
	t.mu.Unlock()
	if closed {
		return fmt.Errorf("transport is closed")
	}

	if response.JSONRPC == "" {
		response.JSONRPC = JSONRPCVersion
	}

	session, ok := t.lookupSession(response.SessionID)
	if !ok {
		return fmt.Errorf("%w: %q", ErrSessionNotFound, response.SessionID)
	}

	select {
	case session.messageChan <- response:
		return nil
	case <-session.done:
		return fmt.Errorf("%w: %q", ErrSessionNotFound, response.SessionID)
	default:
		return fmt.Errorf("session %s buffer full", response.SessionID)
	}
}

// Receive returns the channel for incoming JSON-RPC requests.
func (t *SSETransport) Receive() <-chan *Request {
	return t.reqChan
}

// Close shuts down the HTTP server and all SSE sessions.
func (t *SSETransport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	close(t.reqChan)
	server := t.server
	t.mu.Unlock()

	t.sessionsMu.Lock()
	for id, session := range t.sessions {
		session.close()
		delete(t.sessions, id)
		metrics.ActiveSessions.Dec()
	}
	t.sessionsMu.Unlock()

	if server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(ctx)
	}

	return nil
}

// requestLogger logs every HTTP request through zap.
func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			defer func() {
				logger.Debug("http request",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("duration", time.Since(start)),
					zap.String("remote_addr", r.RemoteAddr),
					zap.String("request_id", middleware.GetReqID(r.Context())))
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
