package domain

// ResponseMapper converts TestRail responses to MCP tool responses.
type ResponseMapper interface {
	// MapToToolResponse renders an upstream response as a single text block.
	MapToToolResponse(upstream *UpstreamResponse) (*ToolResponse, error)

	// MapError converts a bridge or dispatch error to a JSON-RPC error.
	MapError(err error) *Error
}
