package application

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"testrail-mcp-server/internal/domain"
)

// Server identity reported during initialize
const (
	ServerName    = "testrail-mcp"
	ServerVersion = "1.0.0"
)

// Server is the main MCP server implementation.
// It drains requests from the transport, implements the MCP protocol
// methods and routes tool calls through the RequestRouter.
type Server struct {
	transport domain.Transport
	router    *RequestRouter
	mapper    domain.ResponseMapper
	config    *domain.Config
	logger    *StructuredLogger

	inflight sync.WaitGroup
	done     chan struct{}
}

// NewServer creates a new MCP server instance.
func NewServer(
	transport domain.Transport,
	router *RequestRouter,
	config *domain.Config,
	logger *StructuredLogger,
) *Server {
	if logger == nil {
		logger = NewStructuredLogger(nil)
	}
	return &Server{
		transport: transport,
		router:    router,
		mapper:    domain.NewResponseMapper(),
		config:    config,
		logger:    logger,
		done:      make(chan struct{}),
	}
}

// Start starts the transport layer and begins processing incoming requests.
func (s *Server) Start(ctx context.Context) error {
	if err := s.transport.Start(ctx); err != nil {
		s.logger.LogError("failed to start transport", err, map[string]interface{}{
			"transport_type": s.config.Transport.Type,
		})
		return fmt.Errorf("failed to start transport: %w", err)
	}

	s.logger.LogInfo("server started", map[string]interface{}{
		"transport_type": s.config.Transport.Type,
		"tools":          len(s.router.ListAllTools()),
	})

	go s.processRequests(ctx)

	return nil
}

// Done is closed once the transport stops delivering requests.
func (s *Server) Done() <-chan struct{} {
	return s.done
}

// processRequests hands every incoming request to its own goroutine so a
// slow TestRail call does not hold up other sessions.
func (s *Server) processRequests(ctx context.Context) {
	defer close(s.done)

	reqChan := s.transport.Receive()

	for {
		select {
		case <-ctx.Done():
			s.logger.LogInfo("server shutting down", nil)
			return
		case req, ok := <-reqChan:
			if !ok {
				// Channel closed, transport is shutting down
				return
			}

			s.inflight.Add(1)
			go func() {
				defer s.inflight.Done()
				s.handleRequest(ctx, req)
			}()
		}
	}
}

// handleRequest processes a single JSON-RPC request and sends its response.
func (s *Server) handleRequest(ctx context.Context, req *domain.Request) {
	response := s.Dispatch(ctx, req)
	if response == nil {
		return
	}

	if err := s.transport.Send(response); err != nil {
		s.logger.LogError("failed to send response", err, map[string]interface{}{
			"request_id": req.ID,
			"session_id": req.SessionID,
		})
	}
}

// Dispatch executes one JSON-RPC request and returns the response to send.
// Notifications yield a nil response.
func (s *Server) Dispatch(ctx context.Context, req *domain.Request) *domain.Response {
	s.logger.LogDebug("received request", map[string]interface{}{
		"method":     req.Method,
		"request_id": req.ID,
		"session_id": req.SessionID,
	})

	if err := s.validateRequest(req); err != nil {
		return domain.NewErrorResponse(req.ID, req.SessionID, &domain.Error{
			Code:    domain.InvalidRequest,
			Message: "Invalid Request",
			Data:    err.Error(),
		})
	}

	if req.IsNotification() {
		s.logger.LogDebug("notification received", map[string]interface{}{
			"method":     req.Method,
			"session_id": req.SessionID,
		})
		return nil
	}

	switch req.Method {
	case "initialize":
		return s.handleInitialize(req)
	case "ping":
		return domain.NewResultResponse(req, map[string]interface{}{})
	case "tools/list":
		return s.handleToolsList(req)
	case "tools/call":
		return s.handleToolsCall(ctx, req)
	default:
		return domain.NewErrorResponse(req.ID, req.SessionID, &domain.Error{
			Code:    domain.MethodNotFound,
			Message: "Method not found",
			Data:    fmt.Sprintf("unknown method: %s", req.Method),
		})
	}
}

// validateRequest validates the basic structure of a JSON-RPC request.
func (s *Server) validateRequest(req *domain.Request) error {
	if req.JSONRPC != domain.JSONRPCVersion {
		return fmt.Errorf("invalid jsonrpc version: %s", req.JSONRPC)
	}

	if req.Method == "" {
		return fmt.Errorf("method is required")
	}

	return nil
}

// handleInitialize handles the MCP initialize handshake.
func (s *Server) handleInitialize(req *domain.Request) *domain.Response {
	result := map[string]interface{}{
		"protocolVersion": domain.ProtocolVersion,
		"capabilities": map[string]interface{}{
			"tools":   map[string]interface{}{},
			"logging": map[string]interface{}{},
		},
		"serverInfo": map[string]interface{}{
			"name":    ServerName,
			"version": ServerVersion,
		},
	}

	return domain.NewResultResponse(req, result)
}

// handleToolsList handles the MCP tools/list method.
func (s *Server) handleToolsList(req *domain.Request) *domain.Response {
	return domain.NewResultResponse(req, map[string]interface{}{
		"tools": s.router.ListAllTools(),
	})
}

// handleToolsCall handles the MCP tools/call method.
func (s *Server) handleToolsCall(ctx context.Context, req *domain.Request) *domain.Response {
	toolReq, err := s.parseToolRequest(req.Params)
	if err != nil {
		return domain.NewErrorResponse(req.ID, req.SessionID, &domain.Error{
			Code:    domain.InvalidParams,
			Message: "Invalid params",
			Data:    err.Error(),
		})
	}

	toolResp, err := s.router.Route(ctx, toolReq)
	if err != nil {
		s.logger.LogError("tool execution failed", err, map[string]interface{}{
			"tool":       toolReq.Name,
			"request_id": req.ID,
			"session_id": req.SessionID,
		})
		return domain.NewErrorResponse(req.ID, req.SessionID, s.mapper.MapError(err))
	}

	s.logger.LogInfo("tool executed", map[string]interface{}{
		"tool":       toolReq.Name,
		"request_id": req.ID,
		"session_id": req.SessionID,
	})

	return domain.NewResultResponse(req, toolResp)
}

// parseToolRequest parses the params field into a ToolRequest.
func (s *Server) parseToolRequest(params interface{}) (*domain.ToolRequest, error) {
	if params == nil {
		return nil, fmt.Errorf("params is required for tools/call")
	}

	// Round-trip through JSON so both decoded maps and structs are accepted
	jsonData, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal params: %w", err)
	}

	var toolReq domain.ToolRequest
	if err := json.Unmarshal(jsonData, &toolReq); err != nil {
		return nil, fmt.Errorf("failed to unmarshal tool request: %w", err)
	}

	if toolReq.Name == "" {
		return nil, fmt.Errorf("tool name is required")
	}

	if toolReq.Arguments == nil {
		toolReq.Arguments = make(map[string]interface{})
	}

	return &toolReq, nil
}

// Close shuts the transport down and waits for in-flight requests.
func (s *Server) Close() error {
	s.logger.LogInfo("closing server", nil)
	err := s.transport.Close()
	s.inflight.Wait()
	return err
}
