package domain

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

// Transport defines the interface for MCP transport mechanisms.
// Implementations handle communication between MCP clients and the server
// using either stdio or SSE transport.
type Transport interface {
	// Start begins listening for incoming MCP messages.
	// Returns an error if the transport cannot be initialized.
	Start(ctx context.Context) error

	// Send transmits a JSON-RPC response to the session named in the response.
	// Returns an error if the response cannot be sent.
	Send(response *Response) error

	// Receive returns a channel for incoming JSON-RPC requests.
	// The channel is closed when the transport is shut down.
	Receive() <-chan *Request

	// Close gracefully shuts down the transport.
	// Returns an error if shutdown fails.
	Close() error
}

// StdioTransport implements Transport using stdin/stdout for communication.
// It reads newline-delimited JSON-RPC messages from stdin and writes
// responses to stdout. There is exactly one session for the process lifetime.
type StdioTransport struct {
	reader  *bufio.Reader
	writer  *bufio.Writer
	reqChan chan *Request
	mu      sync.Mutex
	closed  bool
}

// NewStdioTransport creates a new StdioTransport instance bound to the process streams.
func NewStdioTransport() *StdioTransport {
	return NewStdioTransportWithIO(os.Stdin, os.Stdout)
}

// NewStdioTransportWithIO creates a new StdioTransport with custom IO streams.
func NewStdioTransportWithIO(reader io.Reader, writer io.Writer) *StdioTransport {
	return &StdioTransport{
		reader:  bufio.NewReader(reader),
		writer:  bufio.NewWriter(writer),
		reqChan: make(chan *Request, 10),
	}
}

// Start begins reading JSON-RPC messages from stdin.
func (t *StdioTransport) Start(ctx context.Context) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return fmt.Errorf("transport is closed")
	}
	t.mu.Unlock()

	go t.readLoop(ctx)
	return nil
}

// readLoop continuously reads from stdin and parses JSON-RPC requests.
func (t *StdioTransport) readLoop(ctx context.Context) {
	defer close(t.reqChan)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := t.reader.ReadString('\n')
		line = strings.TrimSpace(line)
		if line != "" {
			if req := t.parseLine(line); req != nil {
				select {
				case t.reqChan <- req:
				case <-ctx.Done():
					return
				}
			}
		}

		if err != nil {
			// EOF or a broken pipe ends the only session
			return
		}
	}
}

// parseLine decodes one line, answering parse and version errors directly.
func (t *StdioTransport) parseLine(line string) *Request {
	var req Request
	if err := json.Unmarshal([]byte(line), &req); err != nil {
		t.sendError(nil, ParseError, "Parse error", err.Error())
		return nil
	}

	if req.JSONRPC != JSONRPCVersion {
		t.sendError(req.ID, InvalidRequest, "Invalid Request", "invalid jsonrpc version")
		return nil
	}

	return &req
}

// Send writes a JSON-RPC response to stdout as a single line.
func (t *StdioTransport) Send(response *Response) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return fmt.Errorf("transport is closed")
	}

	if response.JSONRPC == "" {
		response.JSONRPC = JSONRPCVersion
	}

	data, err := json.Marshal(response)
	if err != nil {
		return fmt.Errorf("failed to marshal response: %w", err)
	}

	if _, err := t.writer.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write response: %w", err)
	}

	if err := t.writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush response: %w", err)
	}

	return nil
}

// Receive returns the channel for incoming JSON-RPC requests.
func (t *StdioTransport) Receive() <-chan *Request {
	return t.reqChan
}

// Close marks the transport closed. The request channel is closed by readLoop.
func (t *StdioTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.closed = true
	return nil
}

// sendError sends an error response produced by the transport itself.
func (t *StdioTransport) sendError(id interface{}, code int, message string, data interface{}) {
	_ = t.Send(NewErrorResponse(id, "", &Error{
		Code:    code,
		Message: message,
		Data:    data,
	}))
}
