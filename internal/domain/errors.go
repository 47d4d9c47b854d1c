package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingConfiguration is returned when a required setting is absent at startup.
	ErrMissingConfiguration = errors.New("missing configuration")

	// ErrUnknownTool is returned when an invocation names an undeclared tool.
	ErrUnknownTool = errors.New("unknown tool")

	// ErrInvalidArguments is returned when tool arguments do not match the tool schema.
	ErrInvalidArguments = errors.New("invalid tool arguments")

	// ErrRequestFailed is returned when TestRail answers with a non-success status.
	ErrRequestFailed = errors.New("testrail request failed")

	// ErrUpstreamUnreachable is returned when the request never got a response.
	ErrUpstreamUnreachable = errors.New("testrail unreachable")
)

// UnknownToolError carries the name of the tool that could not be found.
type UnknownToolError struct {
	Name string
}

func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("Tool %s not found", e.Name)
}

func (e *UnknownToolError) Unwrap() error {
	return ErrUnknownTool
}

// ValidationError describes why the arguments of a known tool were rejected.
type ValidationError struct {
	Tool   string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid arguments for %s: %s", e.Tool, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidArguments
}

// RequestFailedError represents a non-success HTTP response from TestRail.
type RequestFailedError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *RequestFailedError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("Failed to make TestRail request: %s - %s", e.Status, e.Body)
	}
	return fmt.Sprintf("Failed to make TestRail request: %s", e.Status)
}

func (e *RequestFailedError) Unwrap() error {
	return ErrRequestFailed
}

// NewRequestFailedError creates a RequestFailedError for the given status.
func NewRequestFailedError(statusCode int, status string, body string) *RequestFailedError {
	return &RequestFailedError{
		StatusCode: statusCode,
		Status:     status,
		Body:       body,
	}
}
