package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// defaultShellTimeout bounds foreground commands that omit a timeout.
const defaultShellTimeout = 5 * time.Minute

// ShellTool runs shell commands on the host through /bin/sh.
type ShellTool struct {
	timeout time.Duration
}

// NewShellTool creates the run_shell_command tool.
func NewShellTool() *ShellTool {
	return &ShellTool{timeout: defaultShellTimeout}
}

func (t *ShellTool) Name() string { return "run_shell_command" }

func (t *ShellTool) Description() string {
	return "Run a shell command on the host and return its combined stdout and stderr."
}

func (t *ShellTool) Schema() json.RawMessage {
	return mustSchema(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"command": map[string]any{
				"type":        "string",
				"description": "Shell command to execute.",
			},
			"timeout_seconds": map[string]any{
				"type":        "integer",
				"description": "Timeout in seconds (default: 300).",
				"minimum":     0,
			},
		},
		"required": []string{"command"},
	})
}

func (t *ShellTool) Execute(ctx context.Context, params json.RawMessage) (*Result, error) {
	var input struct {
		Command        string `json:"command"`
		TimeoutSeconds int    `json:"timeout_seconds"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return errorResult(fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	command := strings.TrimSpace(input.Command)
	if command == "" {
		return errorResult("command is required"), nil
	}

	timeout := t.timeout
	if input.TimeoutSeconds > 0 {
		timeout = time.Duration(input.TimeoutSeconds) * time.Second
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, "/bin/sh", "-c", command)
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf

	err := cmd.Run()
	output := buf.String()
	if runCtx.Err() == context.DeadlineExceeded {
		return errorResult(fmt.Sprintf("command timed out after %s\n%s", timeout, output)), nil
	}
	if err != nil {
		return errorResult(fmt.Sprintf("command failed: %v\n%s", err, output)), nil
	}
	return &Result{Content: output}, nil
}
