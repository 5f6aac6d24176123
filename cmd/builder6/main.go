// Package main provides the CLI entry point for builder6, an autonomous
// coding agent that plans work with an LLM, executes the plan task by task
// through a ReAct loop, and acts on the world through sandboxed containers
// and a GitHub adapter.
//
// # Basic Usage
//
// Generate a plan for a goal:
//
//	builder6 plan --prompt "add a health endpoint" --repo-url https://github.com/acme/api
//
// Execute a confirmed plan:
//
//	builder6 execute --session-id <id>
//
// Housekeeping:
//
//	builder6 cleanup-containers
//	builder6 list-sessions --limit 10
//
// # Environment Variables
//
// Configuration can be provided via environment variables:
//
//   - BUILDER6_CONFIG: Path to configuration file
//   - GEMINI_API_KEY / OPENAI_API_KEY / ANTHROPIC_API_KEY: provider credentials
//   - GITHUB_TOKEN: GitHub credential
//   - DATABASE_URL: store connection string (postgresql://, sqlite://, memory://)
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	rootCmd := buildRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	var (
		configPath string
		debug      bool
	)

	rootCmd := &cobra.Command{
		Use:           "builder6",
		Short:         "Autonomous plan-and-execute coding agent",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv("BUILDER6_CONFIG"),
		"Path to YAML configuration file")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false,
		"Enable debug logging (verbose output)")

	rootCmd.AddCommand(
		buildPlanCmd(&configPath, &debug),
		buildExecuteCmd(&configPath, &debug),
		buildRefineCmd(&configPath, &debug),
		buildCleanupContainersCmd(&configPath, &debug),
		buildListSessionsCmd(&configPath, &debug),
		buildRunEvaluationCmd(),
	)
	return rootCmd
}
