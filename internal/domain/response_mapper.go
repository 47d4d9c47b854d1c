package domain

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
)

// ResponsePrefix labels every tool result.
const ResponsePrefix = "Response details: "

// DefaultResponseMapper is the default implementation of ResponseMapper.
type DefaultResponseMapper struct{}

// NewResponseMapper creates a new instance of DefaultResponseMapper.
func NewResponseMapper() ResponseMapper {
	return &DefaultResponseMapper{}
}

// MapToToolResponse renders the upstream body after the response prefix.
// JSON bodies are compacted; anything else, including an empty body, is
// passed through as text.
func (m *DefaultResponseMapper) MapToToolResponse(upstream *UpstreamResponse) (*ToolResponse, error) {
	if upstream == nil {
		return NewTextResponse(ResponsePrefix), nil
	}

	return NewTextResponse(ResponsePrefix + BodyText(upstream.Body)), nil
}

// BodyText returns the body as text, compacting it when it is valid JSON.
func BodyText(body []byte) string {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && json.Valid(trimmed) {
		var buf bytes.Buffer
		if err := json.Compact(&buf, trimmed); err == nil {
			return buf.String()
		}
	}
	return string(body)
}

// MapError converts an error to a JSON-RPC error object.
func (m *DefaultResponseMapper) MapError(err error) *Error {
	if err == nil {
		return nil
	}

	var rpcErr *Error
	if errors.As(err, &rpcErr) {
		return rpcErr
	}

	var unknownErr *UnknownToolError
	if errors.As(err, &unknownErr) {
		return &Error{
			Code:    MethodNotFound,
			Message: unknownErr.Error(),
			Data:    map[string]interface{}{"tool": unknownErr.Name},
		}
	}

	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return &Error{
			Code:    InvalidParams,
			Message: "Invalid parameters",
			Data:    validationErr.Error(),
		}
	}

	var failedErr *RequestFailedError
	if errors.As(err, &failedErr) {
		return mapRequestFailed(failedErr)
	}

	if errors.Is(err, ErrUpstreamUnreachable) || errors.Is(err, context.DeadlineExceeded) {
		return &Error{
			Code:    NetworkError,
			Message: "Network error",
			Data:    err.Error(),
		}
	}

	// Default to internal error for unknown error types
	return &Error{
		Code:    InternalError,
		Message: err.Error(),
	}
}

// mapRequestFailed maps TestRail status codes to JSON-RPC error codes.
func mapRequestFailed(failedErr *RequestFailedError) *Error {
	code := APIError
	switch failedErr.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		code = AuthenticationError
	case http.StatusTooManyRequests:
		code = RateLimitError
	}

	errorData := map[string]interface{}{
		"statusCode": failedErr.StatusCode,
		"status":     failedErr.Status,
	}
	if failedErr.Body != "" {
		errorData["body"] = failedErr.Body
	}

	return &Error{
		Code:    code,
		Message: failedErr.Error(),
		Data:    errorData,
	}
}
