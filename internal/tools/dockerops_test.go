package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/builder6/builder6/internal/sandbox"
	"github.com/builder6/builder6/pkg/errkind"
)

// fakeRuntime implements containerRuntime in memory.
type fakeRuntime struct {
	containers map[string]*sandbox.Container
	execOutput string
	execErr    error
	createErr  error
	nextID     int
}

func newFakeRuntime() *fakeRuntime {
	return &fakeRuntime{containers: map[string]*sandbox.Container{}, execOutput: "done\n"}
}

func (f *fakeRuntime) CreateContainer(ctx context.Context, opts sandbox.CreateOptions) (*sandbox.Container, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.nextID++
	c := &sandbox.Container{
		ID:      fmt.Sprintf("builder6-container-%04d", f.nextID),
		GroupID: opts.GroupID,
		Image:   opts.Image,
		Status:  sandbox.StatusRunning,
	}
	f.containers[c.ID] = c
	return c, nil
}

func (f *fakeRuntime) DestroyContainer(ctx context.Context, id string) error {
	if _, ok := f.containers[id]; !ok {
		return errkind.New(errkind.ContainerNotFound, "container %s not found", id)
	}
	delete(f.containers, id)
	return nil
}

func (f *fakeRuntime) ExecuteScript(ctx context.Context, opts sandbox.ExecOptions) (string, error) {
	if f.execErr != nil {
		return "", f.execErr
	}
	if _, ok := f.containers[opts.ContainerID]; !ok {
		return "", errkind.New(errkind.ContainerNotFound, "container %s not found", opts.ContainerID)
	}
	return f.execOutput, nil
}

func (f *fakeRuntime) ListContainers(groupID string) []*sandbox.Container {
	var out []*sandbox.Container
	for _, c := range f.containers {
		if groupID != "" && c.GroupID != groupID {
			continue
		}
		out = append(out, c)
	}
	return out
}

func (f *fakeRuntime) CleanupIdleContainers(ctx context.Context) (int, error) {
	return len(f.containers), nil
}

func dockerRegistry(runtime containerRuntime) *Registry {
	r := NewRegistry()
	for _, tool := range DockerTools(runtime) {
		r.Register(tool)
	}
	return r
}

func TestCreateContainerTool(t *testing.T) {
	runtime := newFakeRuntime()
	r := dockerRegistry(runtime)

	result, err := r.Execute(context.Background(), "dockerManager.createContainer", json.RawMessage(`{"group_id":"sess-1"}`))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected error result: %q", result.Content)
	}

	var created sandbox.Container
	if err := json.Unmarshal([]byte(result.Content), &created); err != nil {
		t.Fatalf("result is not a container: %v", err)
	}
	if created.GroupID != "sess-1" {
		t.Fatalf("group = %q", created.GroupID)
	}
	if !strings.HasPrefix(created.ID, "builder6-container-") {
		t.Fatalf("id = %q", created.ID)
	}
}

func TestCreateContainerToolQuotaError(t *testing.T) {
	runtime := newFakeRuntime()
	runtime.createErr = errkind.New(errkind.ContainerLimitReached, "container limit of 5 reached for group sess-1")
	r := dockerRegistry(runtime)

	result, err := r.Execute(context.Background(), "dockerManager.createContainer", json.RawMessage(`{"group_id":"sess-1"}`))
	if err != nil {
		t.Fatalf("quota failure must surface as a tool error result, got %v", err)
	}
	if !result.IsError || !strings.Contains(result.Content, "container limit") {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestCreateContainerToolRequiresGroup(t *testing.T) {
	r := dockerRegistry(newFakeRuntime())

	_, err := r.Execute(context.Background(), "dockerManager.createContainer", json.RawMessage(`{}`))
	if !errkind.Is(err, errkind.ToolArgumentInvalid) {
		t.Fatalf("expected ToolArgumentInvalid, got %v", err)
	}
}

func TestExecuteScriptTool(t *testing.T) {
	runtime := newFakeRuntime()
	runtime.execOutput = "hello from container\n"
	r := dockerRegistry(runtime)

	created, err := runtime.CreateContainer(context.Background(), sandbox.CreateOptions{GroupID: "g"})
	if err != nil {
		t.Fatal(err)
	}

	args, _ := json.Marshal(map[string]any{"container_id": created.ID, "script": "echo hello"})
	result, err := r.Execute(context.Background(), "dockerManager.executeScript", args)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.Content != "hello from container\n" {
		t.Fatalf("content = %q", result.Content)
	}
}

func TestExecuteScriptToolFailure(t *testing.T) {
	runtime := newFakeRuntime()
	runtime.execErr = errors.New("daemon unreachable")
	r := dockerRegistry(runtime)

	result, err := r.Execute(context.Background(), "dockerManager.executeScript",
		json.RawMessage(`{"container_id":"c1","script":"true"}`))
	if err != nil {
		t.Fatalf("runtime failure must surface as a tool error result, got %v", err)
	}
	if !result.IsError {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestDestroyContainerTool(t *testing.T) {
	runtime := newFakeRuntime()
	r := dockerRegistry(runtime)

	created, err := runtime.CreateContainer(context.Background(), sandbox.CreateOptions{GroupID: "g"})
	if err != nil {
		t.Fatal(err)
	}

	args, _ := json.Marshal(map[string]any{"container_id": created.ID})
	result, err := r.Execute(context.Background(), "dockerManager.destroyContainer", args)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected error result: %q", result.Content)
	}
	if len(runtime.containers) != 0 {
		t.Fatal("container was not destroyed")
	}
}

func TestListContainersTool(t *testing.T) {
	runtime := newFakeRuntime()
	r := dockerRegistry(runtime)

	if _, err := runtime.CreateContainer(context.Background(), sandbox.CreateOptions{GroupID: "g"}); err != nil {
		t.Fatal(err)
	}

	result, err := r.Execute(context.Background(), "dockerManager.listContainers", json.RawMessage(`{"group_id":"g"}`))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	var listed []*sandbox.Container
	if err := json.Unmarshal([]byte(result.Content), &listed); err != nil {
		t.Fatalf("result is not a container list: %v", err)
	}
	if len(listed) != 1 {
		t.Fatalf("len = %d", len(listed))
	}
}

func TestCleanupContainersTool(t *testing.T) {
	runtime := newFakeRuntime()
	r := dockerRegistry(runtime)

	if _, err := runtime.CreateContainer(context.Background(), sandbox.CreateOptions{GroupID: "g"}); err != nil {
		t.Fatal(err)
	}

	result, err := r.Execute(context.Background(), "dockerManager.cleanupIdleContainers", nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(result.Content, "1 idle containers") {
		t.Fatalf("content = %q", result.Content)
	}
}
