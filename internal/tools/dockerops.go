package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/builder6/builder6/internal/sandbox"
)

// containerRuntime is the supervisor surface the docker tools need.
// *sandbox.Supervisor satisfies it; tests substitute a fake.
type containerRuntime interface {
	CreateContainer(ctx context.Context, opts sandbox.CreateOptions) (*sandbox.Container, error)
	DestroyContainer(ctx context.Context, id string) error
	ExecuteScript(ctx context.Context, opts sandbox.ExecOptions) (string, error)
	ListContainers(groupID string) []*sandbox.Container
	CleanupIdleContainers(ctx context.Context) (int, error)
}

// DockerTools returns the container-management tool set backed by the
// supervisor.
func DockerTools(runtime containerRuntime) []Tool {
	return []Tool{
		&createContainerTool{runtime: runtime},
		&destroyContainerTool{runtime: runtime},
		&executeScriptTool{runtime: runtime},
		&listContainersTool{runtime: runtime},
		&cleanupContainersTool{runtime: runtime},
	}
}

type createContainerTool struct {
	runtime containerRuntime
}

func (t *createContainerTool) Name() string { return "dockerManager.createContainer" }

func (t *createContainerTool) Description() string {
	return "Create an isolated container for running scripts. Returns the container id."
}

func (t *createContainerTool) Schema() json.RawMessage {
	return mustSchema(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"group_id": map[string]any{
				"type":        "string",
				"description": "Quota group the container belongs to, typically the session id.",
			},
			"image": map[string]any{
				"type":        "string",
				"description": "Container image to run (optional, a default is used otherwise).",
			},
		},
		"required": []string{"group_id"},
	})
}

func (t *createContainerTool) Execute(ctx context.Context, params json.RawMessage) (*Result, error) {
	var input struct {
		GroupID string `json:"group_id"`
		Image   string `json:"image"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return errorResult(fmt.Sprintf("invalid parameters: %v", err)), nil
	}

	created, err := t.runtime.CreateContainer(ctx, sandbox.CreateOptions{
		GroupID: input.GroupID,
		Image:   input.Image,
	})
	if err != nil {
		return errorResult(err.Error()), nil
	}

	payload, _ := json.Marshal(created)
	return &Result{Content: string(payload)}, nil
}

type destroyContainerTool struct {
	runtime containerRuntime
}

func (t *destroyContainerTool) Name() string { return "dockerManager.destroyContainer" }

func (t *destroyContainerTool) Description() string {
	return "Stop and remove a container created earlier with dockerManager.createContainer."
}

func (t *destroyContainerTool) Schema() json.RawMessage {
	return mustSchema(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"container_id": map[string]any{
				"type":        "string",
				"description": "Id of the container to destroy.",
			},
		},
		"required": []string{"container_id"},
	})
}

func (t *destroyContainerTool) Execute(ctx context.Context, params json.RawMessage) (*Result, error) {
	var input struct {
		ContainerID string `json:"container_id"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return errorResult(fmt.Sprintf("invalid parameters: %v", err)), nil
	}

	if err := t.runtime.DestroyContainer(ctx, input.ContainerID); err != nil {
		return errorResult(err.Error()), nil
	}
	return &Result{Content: fmt.Sprintf("container %s destroyed", input.ContainerID)}, nil
}

type executeScriptTool struct {
	runtime containerRuntime
}

func (t *executeScriptTool) Name() string { return "dockerManager.executeScript" }

func (t *executeScriptTool) Description() string {
	return "Run a shell script inside a container and return its combined stdout and stderr."
}

func (t *executeScriptTool) Schema() json.RawMessage {
	return mustSchema(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"container_id": map[string]any{
				"type":        "string",
				"description": "Id of the container to run the script in.",
			},
			"script": map[string]any{
				"type":        "string",
				"description": "Shell script to execute.",
			},
			"timeout_seconds": map[string]any{
				"type":        "integer",
				"description": "Maximum execution time in seconds (default: 600).",
				"minimum":     1,
			},
		},
		"required": []string{"container_id", "script"},
	})
}

func (t *executeScriptTool) Execute(ctx context.Context, params json.RawMessage) (*Result, error) {
	var input struct {
		ContainerID    string `json:"container_id"`
		Script         string `json:"script"`
		TimeoutSeconds int    `json:"timeout_seconds"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return errorResult(fmt.Sprintf("invalid parameters: %v", err)), nil
	}

	output, err := t.runtime.ExecuteScript(ctx, sandbox.ExecOptions{
		ContainerID: input.ContainerID,
		Script:      input.Script,
		Timeout:     time.Duration(input.TimeoutSeconds) * time.Second,
	})
	if err != nil {
		return errorResult(err.Error()), nil
	}
	return &Result{Content: output}, nil
}

type listContainersTool struct {
	runtime containerRuntime
}

func (t *listContainersTool) Name() string { return "dockerManager.listContainers" }

func (t *listContainersTool) Description() string {
	return "List managed containers, optionally filtered by group id."
}

func (t *listContainersTool) Schema() json.RawMessage {
	return mustSchema(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"group_id": map[string]any{
				"type":        "string",
				"description": "Only list containers in this group (optional).",
			},
		},
	})
}

func (t *listContainersTool) Execute(ctx context.Context, params json.RawMessage) (*Result, error) {
	var input struct {
		GroupID string `json:"group_id"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return errorResult(fmt.Sprintf("invalid parameters: %v", err)), nil
	}

	containers := t.runtime.ListContainers(input.GroupID)
	payload, err := json.MarshalIndent(containers, "", "  ")
	if err != nil {
		return errorResult(fmt.Sprintf("encode containers: %v", err)), nil
	}
	return &Result{Content: string(payload)}, nil
}

type cleanupContainersTool struct {
	runtime containerRuntime
}

func (t *cleanupContainersTool) Name() string { return "dockerManager.cleanupIdleContainers" }

func (t *cleanupContainersTool) Description() string {
	return "Destroy containers that have been idle past the configured timeout."
}

func (t *cleanupContainersTool) Schema() json.RawMessage {
	return mustSchema(map[string]any{
		"type":       "object",
		"properties": map[string]any{},
	})
}

func (t *cleanupContainersTool) Execute(ctx context.Context, params json.RawMessage) (*Result, error) {
	cleaned, err := t.runtime.CleanupIdleContainers(ctx)
	if err != nil {
		return errorResult(err.Error()), nil
	}
	return &Result{Content: fmt.Sprintf("cleaned up %d idle containers", cleaned)}, nil
}
