package tools

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/builder6/builder6/pkg/errkind"
)

// echoTool returns its "text" parameter.
type echoTool struct{}

func (echoTool) Name() string        { return "echo" }
func (echoTool) Description() string { return "Echo the given text." }

func (echoTool) Schema() json.RawMessage {
	return mustSchema(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"text": map[string]any{"type": "string"},
		},
		"required": []string{"text"},
	})
}

func (echoTool) Execute(ctx context.Context, params json.RawMessage) (*Result, error) {
	var input struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return errorResult(err.Error()), nil
	}
	return &Result{Content: input.Text}, nil
}

// noArgsTool accepts an empty object.
type noArgsTool struct{}

func (noArgsTool) Name() string        { return "ping" }
func (noArgsTool) Description() string { return "Reply with pong." }

func (noArgsTool) Schema() json.RawMessage {
	return mustSchema(map[string]any{"type": "object", "properties": map[string]any{}})
}

func (noArgsTool) Execute(ctx context.Context, params json.RawMessage) (*Result, error) {
	return &Result{Content: "pong"}, nil
}

func TestRegistryExecute(t *testing.T) {
	r := NewRegistry()
	r.Register(echoTool{})

	result, err := r.Execute(context.Background(), "echo", json.RawMessage(`{"text":"hello"}`))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.Content != "hello" || result.IsError {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestRegistryUnknownTool(t *testing.T) {
	r := NewRegistry()
	r.Register(echoTool{})

	_, err := r.Execute(context.Background(), "unknown_tool", json.RawMessage(`{}`))
	if err == nil {
		t.Fatal("expected error for unknown tool")
	}
	if !errkind.Is(err, errkind.ToolUnknown) {
		t.Fatalf("kind = %v", errkind.KindOf(err))
	}
	if got := err.Error(); !strings.Contains(got, "Unknown tool: unknown_tool") {
		t.Fatalf("message = %q", got)
	}
}

func TestRegistryValidatesArguments(t *testing.T) {
	r := NewRegistry()
	r.Register(echoTool{})

	cases := []struct {
		name string
		args string
	}{
		{"missing required", `{}`},
		{"wrong type", `{"text":42}`},
		{"malformed json", `{"text":`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := r.Execute(context.Background(), "echo", json.RawMessage(tc.args))
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !errkind.Is(err, errkind.ToolArgumentInvalid) {
				t.Fatalf("kind = %v", errkind.KindOf(err))
			}
		})
	}
}

func TestRegistryEmptyArgsDefaultToObject(t *testing.T) {
	r := NewRegistry()
	r.Register(noArgsTool{})

	result, err := r.Execute(context.Background(), "ping", nil)
	if err != nil {
		t.Fatalf("Execute with nil args: %v", err)
	}
	if result.Content != "pong" {
		t.Fatalf("content = %q", result.Content)
	}
}

func TestRegistryListSorted(t *testing.T) {
	r := NewRegistry()
	r.Register(noArgsTool{})
	r.Register(echoTool{})

	list := r.List()
	if len(list) != 2 || list[0].Name() != "echo" || list[1].Name() != "ping" {
		names := make([]string, len(list))
		for i, tool := range list {
			names[i] = tool.Name()
		}
		t.Fatalf("unexpected order: %v", names)
	}
}

func TestRegistryRegisterReplaces(t *testing.T) {
	r := NewRegistry()
	r.Register(echoTool{})
	r.Register(echoTool{})

	if got := len(r.List()); got != 1 {
		t.Fatalf("expected 1 tool after duplicate registration, got %d", got)
	}
}

func TestShellTool(t *testing.T) {
	tool := NewShellTool()

	result, err := tool.Execute(context.Background(), json.RawMessage(`{"command":"echo hello"}`))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected error result: %q", result.Content)
	}
	if !strings.Contains(result.Content, "hello") {
		t.Fatalf("content = %q", result.Content)
	}
}

func TestShellToolCommandFailure(t *testing.T) {
	tool := NewShellTool()

	result, err := tool.Execute(context.Background(), json.RawMessage(`{"command":"exit 3"}`))
	if err != nil {
		t.Fatalf("dispatch must succeed, got %v", err)
	}
	if !result.IsError {
		t.Fatal("failing command should produce an error result")
	}
}

func TestToolSchemasCompile(t *testing.T) {
	all := []Tool{
		NewShellTool(),
		NewWebFetchTool(),
		NewWebSearchTool(),
	}
	all = append(all, DockerTools(nil)...)
	all = append(all, GitHubTools(nil, func(ctx context.Context, containerID string) error { return nil })...)

	for _, tool := range all {
		if _, err := compileSchema(tool.Schema()); err != nil {
			t.Errorf("schema for %s does not compile: %v", tool.Name(), err)
		}
		if tool.Description() == "" {
			t.Errorf("tool %s has no description", tool.Name())
		}
	}
}
