package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/builder6/builder6/internal/tools"
	"github.com/builder6/builder6/pkg/errkind"
	"github.com/builder6/builder6/pkg/models"
)

// stubProvider serves scripted outcomes and records attempts.
type stubProvider struct {
	model    string
	outcomes []error
	content  string
	attempts int
}

func (s *stubProvider) Name() string { return "stub" }

func (s *stubProvider) DefaultModel() string {
	if s.model != "" {
		return s.model
	}
	return "stub-model"
}

func (s *stubProvider) CountTokens(model, prompt string) (int, bool) { return 0, false }

func (s *stubProvider) Generate(ctx context.Context, req *Request) (*Response, error) {
	var err error
	if s.attempts < len(s.outcomes) {
		err = s.outcomes[s.attempts]
	}
	s.attempts++
	if err != nil {
		return nil, err
	}
	content := s.content
	if content == "" {
		content = "ok"
	}
	return &Response{Content: content, Provider: s.Name(), Model: req.Model}, nil
}

// testService wires a deterministic runner: recorded sleeps, zero jitter.
func testService(provider Provider, registry *tools.Registry, policy RetryPolicy) (*Service, *[]time.Duration) {
	svc := NewService(provider, registry, policy, nil)
	var sleeps []time.Duration
	svc.sleep = func(d time.Duration) { sleeps = append(sleeps, d) }
	svc.jitter = func() time.Duration { return 0 }
	return svc, &sleeps
}

func transientErr() error {
	return errors.New("503 Service Unavailable: model is overloaded")
}

func TestTokenLimits(t *testing.T) {
	cases := []struct {
		model string
		limit int
	}{
		{"gemini-pro", 32760},
		{"gemini-1.5-pro", 2097152},
		{"gemini-1.5-flash", 1048576},
		{"gpt-4o", 128000},
		{"gpt-4o-mini", 128000},
		{"gpt-4-turbo", 128000},
		{"gpt-4", 8192},
		{"gpt-3.5-turbo", 16385},
		{"claude-3-opus-20240229", 200000},
		{"some-unknown-model", 100000},
	}
	for _, tc := range cases {
		if got := TokenLimit(tc.model); got != tc.limit {
			t.Errorf("TokenLimit(%q) = %d, want %d", tc.model, got, tc.limit)
		}
	}
}

func TestEstimateTokens(t *testing.T) {
	cases := []struct {
		length int
		want   int
	}{
		{0, 0},
		{1, 1},
		{4, 1},
		{5, 2},
		{135000, 33750},
	}
	for _, tc := range cases {
		if got := EstimateTokens(strings.Repeat("a", tc.length)); got != tc.want {
			t.Errorf("EstimateTokens(len %d) = %d, want %d", tc.length, got, tc.want)
		}
	}
}

func TestPromptTooLarge(t *testing.T) {
	provider := &stubProvider{model: "gemini-pro"}
	svc, _ := testService(provider, nil, DefaultRetryPolicy())

	_, err := svc.GenerateContent(context.Background(), strings.Repeat("a", 135000))
	if err == nil {
		t.Fatal("expected PromptTooLarge")
	}
	if !errkind.Is(err, errkind.PromptTooLarge) {
		t.Fatalf("kind = %v", errkind.KindOf(err))
	}
	want := "Prompt too large: 33750 tokens exceeds gemini-pro limit of 32760 tokens"
	if !strings.Contains(err.Error(), want) {
		t.Fatalf("message = %q, want %q", err.Error(), want)
	}
	if provider.attempts != 0 {
		t.Fatalf("no upstream call may be made, got %d attempts", provider.attempts)
	}
}

func TestRetrySucceedsAfterTransientFailures(t *testing.T) {
	// Two transient failures, success on the third attempt.
	provider := &stubProvider{outcomes: []error{transientErr(), transientErr(), nil}}
	svc, sleeps := testService(provider, nil, DefaultRetryPolicy())

	content, err := svc.GenerateContent(context.Background(), "hello")
	if err != nil {
		t.Fatalf("GenerateContent: %v", err)
	}
	if content != "ok" {
		t.Fatalf("content = %q", content)
	}
	if provider.attempts != 3 {
		t.Fatalf("attempts = %d, want 3", provider.attempts)
	}

	// Each retry sleeps twice: the preventive delay, then backoff+jitter.
	want := []time.Duration{
		100 * time.Millisecond, 1000 * time.Millisecond,
		100 * time.Millisecond, 2000 * time.Millisecond,
	}
	if len(*sleeps) != len(want) {
		t.Fatalf("sleeps = %v, want %v", *sleeps, want)
	}
	for i, d := range want {
		if (*sleeps)[i] != d {
			t.Fatalf("sleep[%d] = %v, want %v", i, (*sleeps)[i], d)
		}
	}
}

func TestRetryExhaustionIsFatal(t *testing.T) {
	policy := DefaultRetryPolicy()
	policy.MaxRetries = 3

	outcomes := make([]error, 10)
	for i := range outcomes {
		outcomes[i] = transientErr()
	}
	provider := &stubProvider{outcomes: outcomes}
	svc, _ := testService(provider, nil, policy)

	_, err := svc.GenerateContent(context.Background(), "hello")
	if !errkind.Is(err, errkind.ModelUpstreamFatal) {
		t.Fatalf("kind = %v", errkind.KindOf(err))
	}
	if provider.attempts != policy.MaxRetries+1 {
		t.Fatalf("attempts = %d, want %d", provider.attempts, policy.MaxRetries+1)
	}
}

func TestNonTransientErrorFailsImmediately(t *testing.T) {
	provider := &stubProvider{outcomes: []error{errors.New("401 invalid api key")}}
	svc, sleeps := testService(provider, nil, DefaultRetryPolicy())

	_, err := svc.GenerateContent(context.Background(), "hello")
	if !errkind.Is(err, errkind.ModelUpstreamFatal) {
		t.Fatalf("kind = %v", errkind.KindOf(err))
	}
	if provider.attempts != 1 {
		t.Fatalf("attempts = %d, want 1", provider.attempts)
	}
	if len(*sleeps) != 0 {
		t.Fatalf("no backoff expected, got %v", *sleeps)
	}
}

func TestBackoffDelayCapped(t *testing.T) {
	svc, _ := testService(&stubProvider{}, nil, DefaultRetryPolicy())

	want := []time.Duration{1000, 2000, 4000, 8000, 10000, 10000}
	for retry, ms := range want {
		if got := svc.backoffDelay(retry); got != ms*time.Millisecond {
			t.Errorf("backoffDelay(%d) = %v, want %v", retry, got, ms*time.Millisecond)
		}
	}
}

func TestIsTransient(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{errors.New("503 upstream"), true},
		{errors.New("Service Unavailable"), true},
		{errors.New("the model is overloaded, try again"), true},
		{errors.New("400 bad request"), false},
		{nil, false},
	}
	for _, tc := range cases {
		if got := IsTransient(tc.err); got != tc.want {
			t.Errorf("IsTransient(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}

func TestStripJSONFence(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"bare json", `{"a":1}`, `{"a":1}`},
		{"fenced", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"fenced no tag", "```\n[1,2]\n```", `[1,2]`},
		{"surrounding whitespace", "  \n```json\n{}\n```\n", `{}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := StripJSONFence(tc.in); got != tc.want {
				t.Fatalf("StripJSONFence(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestGenerateJSON(t *testing.T) {
	provider := &stubProvider{content: "```json\n[{\"description\":\"set up repo\"}]\n```"}
	svc, _ := testService(provider, nil, DefaultRetryPolicy())

	value, err := svc.GenerateJSON(context.Background(), "plan it")
	if err != nil {
		t.Fatalf("GenerateJSON: %v", err)
	}
	list, ok := value.([]any)
	if !ok || len(list) != 1 {
		t.Fatalf("value = %#v", value)
	}
}

func TestGenerateJSONParseFailure(t *testing.T) {
	provider := &stubProvider{content: "sorry, I cannot help with that"}
	svc, _ := testService(provider, nil, DefaultRetryPolicy())

	_, err := svc.GenerateJSON(context.Background(), "plan it")
	if !errkind.Is(err, errkind.PlanParseFailed) {
		t.Fatalf("kind = %v", errkind.KindOf(err))
	}
}

// recordingTool captures the params it was executed with.
type recordingTool struct {
	name   string
	params json.RawMessage
}

func (r *recordingTool) Name() string        { return r.name }
func (r *recordingTool) Description() string { return "records" }

func (r *recordingTool) Schema() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{"command":{"type":"string"}}}`)
}

func (r *recordingTool) Execute(ctx context.Context, params json.RawMessage) (*tools.Result, error) {
	r.params = params
	return &tools.Result{Content: "ran"}, nil
}

func TestExecuteToolCalls(t *testing.T) {
	registry := tools.NewRegistry()
	shell := &recordingTool{name: "run_shell_command"}
	registry.Register(shell)

	svc, _ := testService(&stubProvider{}, registry, DefaultRetryPolicy())

	results, err := svc.ExecuteToolCalls(context.Background(), []models.ToolCall{
		{ID: "call_1", Name: "run_shell_command", Arguments: json.RawMessage(`{"command":"ls -l"}`)},
		{ID: "call_2", Name: "unknown_tool", Arguments: json.RawMessage(`{}`)},
	})
	if err != nil {
		t.Fatalf("ExecuteToolCalls: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("len(results) = %d", len(results))
	}

	if results[0].ToolCallID != "call_1" || results[0].IsError || results[0].Content != "ran" {
		t.Fatalf("unexpected first result: %+v", results[0])
	}
	if string(shell.params) != `{"command":"ls -l"}` {
		t.Fatalf("tool params = %s", shell.params)
	}

	if !results[1].IsError {
		t.Fatal("unknown tool must produce an error result")
	}
	var payload map[string]string
	if err := json.Unmarshal([]byte(results[1].Content), &payload); err != nil {
		t.Fatalf("error payload is not JSON: %v", err)
	}
	if !strings.Contains(payload["error"], "Unknown tool: unknown_tool") {
		t.Fatalf("error payload = %q", payload["error"])
	}
}

func TestGenerateWithToolsDeclaresRegistry(t *testing.T) {
	registry := tools.NewRegistry()
	registry.Register(&recordingTool{name: "run_shell_command"})

	var declared int
	provider := &toolAwareProvider{onGenerate: func(req *Request) { declared = len(req.Tools) }}
	svc, _ := testService(provider, registry, DefaultRetryPolicy())

	if _, err := svc.GenerateWithTools(context.Background(), "do it"); err != nil {
		t.Fatalf("GenerateWithTools: %v", err)
	}
	if declared != 1 {
		t.Fatalf("declared tools = %d, want 1", declared)
	}
}

type toolAwareProvider struct {
	onGenerate func(*Request)
}

func (p *toolAwareProvider) Name() string                                 { return "stub" }
func (p *toolAwareProvider) DefaultModel() string                         { return "stub-model" }
func (p *toolAwareProvider) CountTokens(model, prompt string) (int, bool) { return 0, false }

func (p *toolAwareProvider) Generate(ctx context.Context, req *Request) (*Response, error) {
	if p.onGenerate != nil {
		p.onGenerate(req)
	}
	return &Response{Content: fmt.Sprintf("saw %d tools", len(req.Tools)), Provider: "stub"}, nil
}
