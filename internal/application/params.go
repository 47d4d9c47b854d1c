package application

import (
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"

	"testrail-mcp-server/internal/domain"
)

// property builders for tool input schemas

func stringParam(description string) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "string", Description: description}
}

func booleanParam(description string) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "boolean", Description: description}
}

func integerParam(description string) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "integer", Description: description}
}

func boundedIntegerParam(description string, minimum, maximum float64) *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:        "integer",
		Description: description,
		Minimum:     &minimum,
		Maximum:     &maximum,
	}
}

func minIntegerParam(description string, minimum float64) *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:        "integer",
		Description: description,
		Minimum:     &minimum,
	}
}

// objectSchema builds the top-level input schema of a tool.
// Keys outside properties are rejected so nothing the caller sent is dropped on decode.
func objectSchema(properties map[string]*jsonschema.Schema, required ...string) *jsonschema.Schema {
	if required == nil {
		required = []string{}
	}
	return &jsonschema.Schema{
		Type:                 "object",
		Properties:           properties,
		Required:             required,
		AdditionalProperties: &jsonschema.Schema{Not: &jsonschema.Schema{}},
	}
}

// toolSpec pairs a tool definition with its resolved schema.
type toolSpec struct {
	definition domain.ToolDefinition
	resolved   *jsonschema.Resolved
}

// newToolSpec resolves the input schema of a static tool definition.
// The schemas are compiled into the binary, so a resolve failure is a programming error.
func newToolSpec(name, description string, schema *jsonschema.Schema) toolSpec {
	resolved, err := schema.Resolve(nil)
	if err != nil {
		panic(fmt.Sprintf("tool %s: invalid input schema: %v", name, err))
	}
	return toolSpec{
		definition: domain.ToolDefinition{
			Name:        name,
			Description: description,
			InputSchema: schema,
		},
		resolved: resolved,
	}
}

// decodeArguments validates args against the tool schema and decodes them into out.
// Any failure is reported as a *domain.ValidationError.
func decodeArguments(spec toolSpec, args map[string]interface{}, out interface{}) error {
	if args == nil {
		args = map[string]interface{}{}
	}

	// Normalise through JSON so the validator sees float64 numbers, whatever the caller built
	raw, err := json.Marshal(args)
	if err != nil {
		return &domain.ValidationError{Tool: spec.definition.Name, Reason: err.Error()}
	}

	var instance map[string]interface{}
	if err := json.Unmarshal(raw, &instance); err != nil {
		return &domain.ValidationError{Tool: spec.definition.Name, Reason: err.Error()}
	}

	if err := spec.resolved.Validate(instance); err != nil {
		return &domain.ValidationError{Tool: spec.definition.Name, Reason: err.Error()}
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return &domain.ValidationError{Tool: spec.definition.Name, Reason: err.Error()}
	}

	return nil
}
