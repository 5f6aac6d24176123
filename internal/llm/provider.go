// Package llm implements the provider-agnostic model runner: prompt-size
// validation against per-model token limits, retry with exponential backoff
// for transient upstream failure, JSON-mode generation, and tool-call
// dispatch through the tool registry.
package llm

import (
	"context"

	"github.com/builder6/builder6/internal/tools"
	"github.com/builder6/builder6/pkg/models"
)

// Provider is a single upstream model backend. Implementations live in the
// providers subpackage; tests use llmtest.Fake.
type Provider interface {
	// Name returns the provider identifier ("gemini", "openai", "anthropic").
	Name() string

	// DefaultModel returns the model used when a request leaves Model empty.
	DefaultModel() string

	// Generate issues a single generation request. Transient-failure retry
	// is the runner's job, not the provider's.
	Generate(ctx context.Context, req *Request) (*Response, error)

	// CountTokens returns a provider-native token count for the prompt, or
	// ok=false when the provider has no native tokenizer, in which case the
	// runner falls back to a character heuristic.
	CountTokens(model, prompt string) (int, bool)
}

// Request is a provider-agnostic generation request.
type Request struct {
	// Model is the upstream model name; empty selects the provider default.
	Model string

	// Prompt is the user-turn text.
	Prompt string

	// Tools, when non-empty, are declared to the provider in its native
	// tool format.
	Tools []tools.Tool

	// JSONMode asks the provider to return a JSON document. The Claude-like
	// provider implements this by prefilling the assistant turn with "{".
	JSONMode bool
}

// Usage reports upstream token accounting when the provider returns it.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Response is a provider-agnostic generation response.
type Response struct {
	// Content is the text of the model's reply, possibly empty when the
	// model only emitted tool calls.
	Content string `json:"content,omitempty"`

	// ToolCalls holds the provider's tool invocations mapped into the
	// universal shape.
	ToolCalls []models.ToolCall `json:"tool_calls,omitempty"`

	Provider string `json:"provider"`
	Model    string `json:"model"`
	Usage    *Usage `json:"usage,omitempty"`
}
