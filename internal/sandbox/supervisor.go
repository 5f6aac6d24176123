// Package sandbox supervises isolated Docker execution environments with
// per-group quotas, idle reaping, and streaming script execution.
package sandbox

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/google/uuid"

	"github.com/builder6/builder6/internal/metrics"
	"github.com/builder6/builder6/pkg/errkind"
)

const defaultExecTimeout = 10 * time.Minute

// Config holds supervisor settings.
type Config struct {
	// ContainerPrefix names created containers.
	ContainerPrefix string
	// GroupLimit caps containers per group id.
	GroupLimit int
	// IdleTimeout is the last-used age beyond which CleanupIdle destroys
	// a container.
	IdleTimeout time.Duration
	// DefaultImage is used when CreateContainer omits an image.
	DefaultImage string
	// SocketPath optionally overrides the Docker daemon socket.
	SocketPath string
}

// Supervisor owns the container registry and drives the Docker runtime.
type Supervisor struct {
	api      dockerAPI
	registry *registry
	config   Config
	logger   *slog.Logger
	now      func() time.Time
}

// New connects to the Docker daemon and returns a supervisor.
func New(config Config, logger *slog.Logger) (*Supervisor, error) {
	api, err := newDockerClient(config.SocketPath)
	if err != nil {
		return nil, fmt.Errorf("connect to docker: %w", err)
	}
	return newSupervisor(api, config, logger), nil
}

func newSupervisor(api dockerAPI, config Config, logger *slog.Logger) *Supervisor {
	if config.GroupLimit <= 0 {
		config.GroupLimit = 5
	}
	if config.IdleTimeout <= 0 {
		config.IdleTimeout = 10 * time.Minute
	}
	if config.DefaultImage == "" {
		config.DefaultImage = "debian:stable-slim"
	}
	if config.ContainerPrefix == "" {
		config.ContainerPrefix = "builder6-container-"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Supervisor{
		api:      api,
		registry: newRegistry(),
		config:   config,
		logger:   logger,
		now:      time.Now,
	}
}

// CreateOptions configures CreateContainer.
type CreateOptions struct {
	GroupID string
	Image   string
}

// CreateContainer starts a new container for the group, enforcing the group
// quota. The quota check and registration are atomic, so concurrent creates
// cannot overshoot the limit.
func (s *Supervisor) CreateContainer(ctx context.Context, opts CreateOptions) (*Container, error) {
	img := opts.Image
	if img == "" {
		img = s.config.DefaultImage
	}

	now := s.now()
	entry := &Container{
		ID:        s.config.ContainerPrefix + uuid.NewString(),
		GroupID:   opts.GroupID,
		Image:     img,
		Status:    StatusCreating,
		CreatedAt: now,
		LastUsed:  now,
	}

	if !s.registry.reserve(entry, s.config.GroupLimit) {
		return nil, errkind.New(errkind.ContainerLimitReached,
			"container limit of %d reached for group %s", s.config.GroupLimit, opts.GroupID)
	}

	if err := s.startContainer(ctx, entry.ID, img); err != nil {
		s.registry.remove(entry.ID)
		return nil, errkind.Wrap(errkind.ContainerCreationFailed, err, "create container for group %s", opts.GroupID)
	}

	s.registry.setStatus(entry.ID, StatusRunning)
	metrics.ContainersCreated.Inc()
	s.logger.Info("container created", "container_id", entry.ID, "group_id", opts.GroupID, "image", img)

	created, _ := s.registry.get(entry.ID)
	return created, nil
}

func (s *Supervisor) startContainer(ctx context.Context, name, img string) error {
	if rc, err := s.api.ImagePull(ctx, img, image.PullOptions{}); err == nil {
		_, _ = io.Copy(io.Discard, rc)
		rc.Close()
	}

	_, err := s.api.ContainerCreate(ctx, &container.Config{
		Image: img,
		// Keep the container alive so scripts can exec into it.
		Cmd: []string{"sleep", "infinity"},
		Labels: map[string]string{
			"builder6.managed": "true",
		},
	}, &container.HostConfig{}, nil, nil, name)
	if err != nil {
		return err
	}

	return s.api.ContainerStart(ctx, name, container.StartOptions{})
}

// ListContainers returns registered containers, filtered by group when
// groupID is non-empty, sorted by creation time.
func (s *Supervisor) ListContainers(groupID string) []*Container {
	containers := s.registry.list(groupID)
	sort.Slice(containers, func(i, j int) bool {
		return containers[i].CreatedAt.Before(containers[j].CreatedAt)
	})
	return containers
}

// DestroyContainer stops and removes a registered container. Stop errors are
// ignored in favour of best-effort removal. Unregistered ids fail with
// ContainerNotFound without touching the runtime.
func (s *Supervisor) DestroyContainer(ctx context.Context, id string) error {
	if _, ok := s.registry.get(id); !ok {
		return errkind.New(errkind.ContainerNotFound, "container %s not found", id)
	}

	if err := s.api.ContainerStop(ctx, id, container.StopOptions{}); err != nil {
		s.logger.Warn("container stop failed, removing anyway", "container_id", id, "error", err)
	}

	if err := s.api.ContainerRemove(ctx, id, container.RemoveOptions{Force: true}); err != nil {
		return errkind.Wrap(errkind.ContainerDestructionFailed, err, "remove container %s", id)
	}

	s.registry.remove(id)
	metrics.ContainersDestroyed.Inc()
	s.logger.Info("container destroyed", "container_id", id)
	return nil
}

// ExecOptions configures ExecuteScript.
type ExecOptions struct {
	ContainerID string
	Script      string
	Timeout     time.Duration
}

// ExecuteScript runs a shell script inside a registered container, streaming
// combined stdout and stderr into the returned string. The container is
// started first if it is not running. last-used advances only on success.
func (s *Supervisor) ExecuteScript(ctx context.Context, opts ExecOptions) (string, error) {
	if _, ok := s.registry.get(opts.ContainerID); !ok {
		return "", errkind.New(errkind.ContainerNotFound, "container %s not found", opts.ContainerID)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultExecTimeout
	}
	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	inspect, err := s.api.ContainerInspect(execCtx, opts.ContainerID)
	if err != nil {
		return "", errkind.Wrap(errkind.ContainerExecutionFailed, err, "inspect container %s", opts.ContainerID)
	}
	if inspect.State == nil || !inspect.State.Running {
		if err := s.api.ContainerStart(execCtx, opts.ContainerID, container.StartOptions{}); err != nil {
			return "", errkind.Wrap(errkind.ContainerExecutionFailed, err, "start container %s", opts.ContainerID)
		}
		s.registry.setStatus(opts.ContainerID, StatusRunning)
	}

	execID, err := s.api.ContainerExecCreate(execCtx, opts.ContainerID, container.ExecOptions{
		Cmd:          []string{"/bin/sh", "-c", opts.Script},
		AttachStdout: true,
		AttachStderr: true,
	})
	if err != nil {
		return "", errkind.Wrap(errkind.ContainerExecutionFailed, err, "exec create in %s", opts.ContainerID)
	}

	attach, err := s.api.ContainerExecAttach(execCtx, execID.ID, container.ExecAttachOptions{})
	if err != nil {
		return "", errkind.Wrap(errkind.ContainerExecutionFailed, err, "exec attach in %s", opts.ContainerID)
	}
	defer attach.Close()

	var buf bytes.Buffer
	if _, err := stdcopy.StdCopy(&buf, &buf, attach.Reader); err != nil {
		return "", errkind.Wrap(errkind.ContainerExecutionFailed, err, "stream exec output from %s", opts.ContainerID)
	}

	s.registry.touch(opts.ContainerID, s.now())
	return buf.String(), nil
}

// CleanupIdleContainers destroys every container whose last-used is older
// than the idle timeout and returns the number cleaned.
func (s *Supervisor) CleanupIdleContainers(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.config.IdleTimeout)
	cleaned := 0
	for _, id := range s.registry.idleBefore(cutoff) {
		if err := s.DestroyContainer(ctx, id); err != nil {
			s.logger.Warn("idle cleanup failed", "container_id", id, "error", err)
			continue
		}
		cleaned++
	}
	return cleaned, nil
}

// IngestDirectory enumerates files under path inside the container and
// returns the manifest as a single string, one path per line.
func (s *Supervisor) IngestDirectory(ctx context.Context, containerID, path string) (string, error) {
	if path == "" {
		path = "."
	}
	script := fmt.Sprintf("find %q -type f", path)
	return s.ExecuteScript(ctx, ExecOptions{ContainerID: containerID, Script: script})
}
