// Package llmtest provides a scriptable in-memory Provider for tests.
package llmtest

import (
	"context"
	"strings"
	"sync"

	"github.com/builder6/builder6/internal/llm"
)

// Fake is a scriptable llm.Provider. Responses are served in three tiers:
// an exact-substring match against the prompt, then the FIFO queue, then a
// default response. All prompts are recorded for assertions.
type Fake struct {
	mu sync.Mutex

	// ModelName overrides the default model reported to the runner.
	ModelName string

	// NativeTokens, when non-nil, is returned from CountTokens as a native
	// count.
	NativeTokens *int

	queue    []Scripted
	matchers []matcher
	prompts  []string
	defaults llm.Response
}

// Scripted is one canned generation outcome.
type Scripted struct {
	Response *llm.Response
	Err      error
}

type matcher struct {
	substring string
	scripted  Scripted
}

// NewFake creates a fake with an empty script.
func NewFake() *Fake {
	return &Fake{defaults: llm.Response{Content: "ok", Provider: "fake"}}
}

func (f *Fake) Name() string { return "fake" }

func (f *Fake) DefaultModel() string {
	if f.ModelName != "" {
		return f.ModelName
	}
	return "fake-model"
}

func (f *Fake) CountTokens(model, prompt string) (int, bool) {
	if f.NativeTokens != nil {
		return *f.NativeTokens, true
	}
	return 0, false
}

// Enqueue appends responses to the FIFO script.
func (f *Fake) Enqueue(responses ...*llm.Response) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range responses {
		f.queue = append(f.queue, Scripted{Response: r})
	}
}

// EnqueueError appends a failing generation to the FIFO script.
func (f *Fake) EnqueueError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queue = append(f.queue, Scripted{Err: err})
}

// RespondTo serves the given response whenever the prompt contains the
// substring, taking priority over the FIFO queue.
func (f *Fake) RespondTo(substring string, response *llm.Response) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.matchers = append(f.matchers, matcher{substring: substring, scripted: Scripted{Response: response}})
}

// Prompts returns every prompt seen so far, in order.
func (f *Fake) Prompts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.prompts))
	copy(out, f.prompts)
	return out
}

// CallCount returns the number of Generate invocations.
func (f *Fake) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

func (f *Fake) Generate(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.prompts = append(f.prompts, req.Prompt)

	for _, m := range f.matchers {
		if strings.Contains(req.Prompt, m.substring) {
			return f.serve(m.scripted, req)
		}
	}

	if len(f.queue) > 0 {
		next := f.queue[0]
		f.queue = f.queue[1:]
		return f.serve(next, req)
	}

	resp := f.defaults
	resp.Model = req.Model
	return &resp, nil
}

func (f *Fake) serve(s Scripted, req *llm.Request) (*llm.Response, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	resp := *s.Response
	if resp.Provider == "" {
		resp.Provider = "fake"
	}
	if resp.Model == "" {
		resp.Model = req.Model
	}
	return &resp, nil
}

// Text is a convenience constructor for a plain-text response.
func Text(content string) *llm.Response {
	return &llm.Response{Content: content, Provider: "fake"}
}
