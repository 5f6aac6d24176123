// Package tools declares the tool surface exposed to the model: a uniform
// Tool interface, a thread-safe registry, and a dispatcher that validates
// arguments against each tool's JSON schema before execution.
package tools

import (
	"context"
	"encoding/json"
)

// Tool defines the interface for executable agent tools.
//
// The declaration (name, description, parameter schema) is provider-agnostic;
// the model runner adapts it into each provider's native tool description.
type Tool interface {
	// Name returns the tool name for model function calling.
	Name() string

	// Description returns a natural language description of what the tool
	// does, used by the model to decide when to call it.
	Description() string

	// Schema returns the JSON Schema defining the tool's parameters
	// (type:"object" with properties and an optional required list).
	Schema() json.RawMessage

	// Execute runs the tool with the given JSON parameters, which have
	// already been validated against Schema().
	Execute(ctx context.Context, params json.RawMessage) (*Result, error)
}

// Result contains the output from a tool execution. Errors the model should
// see (rather than dispatch failures) are communicated with IsError=true.
type Result struct {
	Content string `json:"content"`
	IsError bool   `json:"is_error,omitempty"`
}

func errorResult(message string) *Result {
	return &Result{Content: message, IsError: true}
}

func mustSchema(schema map[string]any) json.RawMessage {
	payload, err := json.Marshal(schema)
	if err != nil {
		return json.RawMessage(`{"type":"object"}`)
	}
	return payload
}
