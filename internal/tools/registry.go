package tools

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/builder6/builder6/internal/metrics"
	"github.com/builder6/builder6/pkg/errkind"
)

// Registry manages available tools with thread-safe registration, lookup,
// and schema-validated dispatch.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool by its name, replacing any existing registration.
func (r *Registry) Register(tool Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[tool.Name()] = tool
}

// Get returns a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[name]
	return tool, ok
}

// List returns all registered tools sorted by name, for stable provider
// declarations.
func (r *Registry) List() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tools := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		tools = append(tools, t)
	}
	sort.Slice(tools, func(i, j int) bool { return tools[i].Name() < tools[j].Name() })
	return tools
}

// Execute dispatches a tool invocation by exact name.
//
// Unknown names fail with errkind.ToolUnknown, and arguments that do not
// validate against the tool's declared schema fail with
// errkind.ToolArgumentInvalid. The caller (the ReAct loop) wraps either into
// a structured tool-result error rather than aborting.
func (r *Registry) Execute(ctx context.Context, name string, args json.RawMessage) (*Result, error) {
	r.mu.RLock()
	tool, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		metrics.ToolExecutions.WithLabelValues(name, metrics.OutcomeError).Inc()
		return nil, errkind.New(errkind.ToolUnknown, "Unknown tool: %s", name)
	}

	if len(args) == 0 {
		args = json.RawMessage(`{}`)
	}

	if err := validateArgs(tool, args); err != nil {
		metrics.ToolExecutions.WithLabelValues(name, metrics.OutcomeError).Inc()
		return nil, err
	}

	result, err := tool.Execute(ctx, args)
	outcome := metrics.OutcomeOK
	if err != nil || (result != nil && result.IsError) {
		outcome = metrics.OutcomeError
	}
	metrics.ToolExecutions.WithLabelValues(name, outcome).Inc()
	return result, err
}

var schemaCache sync.Map

// validateArgs checks args against the tool's declared parameter schema.
func validateArgs(tool Tool, args json.RawMessage) error {
	schema, err := compileSchema(tool.Schema())
	if err != nil {
		return errkind.Wrap(errkind.Internal, err, "compile schema for tool %s", tool.Name())
	}

	var decoded any
	if err := json.Unmarshal(args, &decoded); err != nil {
		return errkind.Wrap(errkind.ToolArgumentInvalid, err, "invalid arguments for tool %s", tool.Name())
	}

	if err := schema.Validate(decoded); err != nil {
		return errkind.Wrap(errkind.ToolArgumentInvalid, err, "arguments do not match schema for tool %s", tool.Name())
	}
	return nil
}

func compileSchema(schema json.RawMessage) (*jsonschema.Schema, error) {
	key := string(schema)
	if cached, ok := schemaCache.Load(key); ok {
		if compiled, ok := cached.(*jsonschema.Schema); ok {
			return compiled, nil
		}
	}

	compiled, err := jsonschema.CompileString("tool.schema.json", key)
	if err != nil {
		return nil, err
	}
	schemaCache.Store(key, compiled)
	return compiled, nil
}
