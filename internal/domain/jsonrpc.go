package domain

import "strings"

// JSONRPCVersion is the only protocol version accepted on the wire.
const JSONRPCVersion = "2.0"

// Request represents a JSON-RPC 2.0 request message.
type Request struct {
	JSONRPC string      `json:"jsonrpc"` // Must be "2.0"
	ID      interface{} `json:"id,omitempty"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`

	// SessionID identifies the transport session that delivered the request.
	// Empty for the stdio transport.
	SessionID string `json:"-"`
}

// IsNotification reports whether the message expects no response.
func (r *Request) IsNotification() bool {
	return r.ID == nil && strings.HasPrefix(r.Method, "notifications/")
}

// Response represents a JSON-RPC 2.0 response message.
type Response struct {
	JSONRPC string      `json:"jsonrpc"` // Must be "2.0"
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *Error      `json:"error,omitempty"`

	// SessionID routes the response back to the session that sent the request.
	SessionID string `json:"-"`
}

// NewResultResponse builds a success response addressed to the request's session.
func NewResultResponse(req *Request, result interface{}) *Response {
	return &Response{
		JSONRPC:   JSONRPCVersion,
		ID:        req.ID,
		Result:    result,
		SessionID: req.SessionID,
	}
}

// NewErrorResponse builds an error response addressed to the given session.
func NewErrorResponse(id interface{}, sessionID string, rpcErr *Error) *Response {
	return &Response{
		JSONRPC:   JSONRPCVersion,
		ID:        id,
		Error:     rpcErr,
		SessionID: sessionID,
	}
}

// Error represents a JSON-RPC 2.0 error object.
type Error struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Error implements the error interface for Error.
func (e *Error) Error() string {
	return e.Message
}

// JSON-RPC 2.0 error codes
const (
	// Standard JSON-RPC 2.0 error codes
	ParseError     = -32700 // Invalid JSON received
	InvalidRequest = -32600 // Invalid JSON-RPC request structure
	MethodNotFound = -32601 // Unknown MCP method or tool
	InvalidParams  = -32602 // Invalid method parameters
	InternalError  = -32603 // Server internal error

	// Application-specific error codes
	ConfigurationError  = -32001 // Configuration validation failed
	AuthenticationError = -32002 // TestRail rejected the credentials
	APIError            = -32003 // TestRail returned a non-success status
	NetworkError        = -32004 // TestRail could not be reached
	RateLimitError      = -32005 // Rate limit exceeded
)
