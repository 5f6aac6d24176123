// handlers.go contains the RunE handler functions for all CLI commands,
// including the shared wiring that assembles the store, model runner, tool
// registry, and orchestrator from configuration.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"

	"github.com/builder6/builder6/internal/config"
	"github.com/builder6/builder6/internal/githubsvc"
	"github.com/builder6/builder6/internal/llm"
	"github.com/builder6/builder6/internal/llm/providers"
	"github.com/builder6/builder6/internal/orchestrator"
	"github.com/builder6/builder6/internal/sandbox"
	"github.com/builder6/builder6/internal/store"
	"github.com/builder6/builder6/internal/tools"
)

// app holds the wired components behind every command.
type app struct {
	cfg        *config.Config
	logger     *slog.Logger
	store      store.Store
	supervisor *sandbox.Supervisor
	orch       *orchestrator.Orchestrator
}

func (a *app) Close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("closing store", "error", err)
		}
	}
}

// newApp loads configuration and assembles the full component graph. The
// container supervisor is optional: when the Docker daemon is unreachable the
// docker tool set is simply not registered.
func newApp(ctx context.Context, configPath string, debug bool) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if debug {
		cfg.DebugEnabled = true
	}

	logger := newLogger(cfg.DebugEnabled)
	slog.SetDefault(logger)

	st, err := store.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	provider, err := providers.New(ctx, cfg)
	if err != nil {
		st.Close()
		return nil, err
	}

	registry := tools.NewRegistry()
	registry.Register(tools.NewShellTool())
	registry.Register(tools.NewWebFetchTool())
	registry.Register(tools.NewWebSearchTool())

	supervisor, err := sandbox.New(sandbox.Config{
		ContainerPrefix: cfg.DockerContainerPrefix,
		GroupLimit:      cfg.DockerContainerLimit,
		IdleTimeout:     cfg.DockerIdleTimeout,
		DefaultImage:    cfg.DockerDefaultImage,
		SocketPath:      cfg.DockerSocketPath,
	}, logger)
	if err != nil {
		logger.Warn("docker unavailable, container tools disabled", "error", err)
	} else {
		for _, t := range tools.DockerTools(supervisor) {
			registry.Register(t)
		}
	}

	github := githubsvc.New(cfg.GithubToken, logger)
	var provisionGit tools.GitProvisioner
	if supervisor != nil {
		token := cfg.GithubToken
		provisionGit = func(ctx context.Context, containerID string) error {
			return githubsvc.ConfigureGitClientInContainer(ctx, supervisor, containerID, "builder6", token)
		}
	}
	for _, t := range tools.GitHubTools(github, provisionGit) {
		registry.Register(t)
	}

	runner := llm.NewService(provider, registry, llm.PolicyFromConfig(cfg), logger)

	return &app{
		cfg:        cfg,
		logger:     logger,
		store:      st,
		supervisor: supervisor,
		orch:       orchestrator.New(st, runner, logger),
	}, nil
}

func newLogger(debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func runPlan(ctx context.Context, configPath string, debug bool, prompt, repoURL string) error {
	a, err := newApp(ctx, configPath, debug)
	if err != nil {
		return err
	}
	defer a.Close()

	session, tasks, err := a.orch.StartPlanning(ctx, orchestrator.PlanRequest{
		Prompt:  prompt,
		RepoURL: repoURL,
	})
	if err != nil {
		return err
	}

	return printJSON(map[string]any{
		"session_id": session.ID,
		"status":     session.Status,
		"tasks":      tasks,
	})
}

func runRefine(ctx context.Context, configPath string, debug bool, sessionID, refinement string) error {
	a, err := newApp(ctx, configPath, debug)
	if err != nil {
		return err
	}
	defer a.Close()

	tasks, err := a.orch.RefinePlan(ctx, sessionID, refinement)
	if err != nil {
		return err
	}

	return printJSON(map[string]any{
		"session_id": sessionID,
		"tasks":      tasks,
	})
}

func runExecute(ctx context.Context, configPath string, debug bool, sessionID string) error {
	a, err := newApp(ctx, configPath, debug)
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := a.orch.ExecutePlan(ctx, sessionID)
	if err != nil {
		return err
	}
	return printJSON(result)
}

func runCleanupContainers(ctx context.Context, configPath string, debug bool) error {
	a, err := newApp(ctx, configPath, debug)
	if err != nil {
		return err
	}
	defer a.Close()

	if a.supervisor == nil {
		return fmt.Errorf("docker is not available")
	}
	count, err := a.supervisor.CleanupIdleContainers(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("destroyed %d idle containers\n", count)
	return nil
}

func runListSessions(ctx context.Context, configPath string, debug bool, limit int) error {
	a, err := newApp(ctx, configPath, debug)
	if err != nil {
		return err
	}
	defer a.Close()

	sessions, err := a.store.ListSessions(ctx, limit)
	if err != nil {
		return err
	}
	return printJSON(sessions)
}

// runEvaluation hands off to the external evaluation collaborator, a
// separately installed builder6-eval binary.
func runEvaluation(ctx context.Context, html bool) error {
	path, err := exec.LookPath("builder6-eval")
	if err != nil {
		return fmt.Errorf("evaluation collaborator not installed: builder6-eval not found in PATH")
	}

	args := []string{}
	if html {
		args = append(args, "--html")
	}
	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}
