// commands.go contains the cobra command definitions and their flag
// configurations. Each builder creates a command and wires it to its handler
// in handlers.go.
package main

import (
	"github.com/spf13/cobra"
)

// buildPlanCmd creates the "plan" command: generate a task plan for a goal
// and leave the session awaiting confirmation.
func buildPlanCmd(configPath *string, debug *bool) *cobra.Command {
	var (
		prompt  string
		repoURL string
	)

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Generate a task plan for a prompt",
		Example: `  builder6 plan --prompt "add a health endpoint" --repo-url https://github.com/acme/api`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlan(cmd.Context(), *configPath, *debug, prompt, repoURL)
		},
	}

	cmd.Flags().StringVarP(&prompt, "prompt", "p", "", "Goal to plan for")
	cmd.Flags().StringVarP(&repoURL, "repo-url", "r", "", "Repository the work targets")
	_ = cmd.MarkFlagRequired("prompt")

	return cmd
}

// buildExecuteCmd creates the "execute" command: run every pending task of a
// confirmed session and print the execution result.
func buildExecuteCmd(configPath *string, debug *bool) *cobra.Command {
	var sessionID string

	cmd := &cobra.Command{
		Use:   "execute",
		Short: "Execute a confirmed session plan",
		Example: `  builder6 execute --session-id 6f4c...`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExecute(cmd.Context(), *configPath, *debug, sessionID)
		},
	}

	cmd.Flags().StringVarP(&sessionID, "session-id", "s", "", "Session to execute")
	_ = cmd.MarkFlagRequired("session-id")

	return cmd
}

// buildRefineCmd creates the "refine" command: revise a session's plan with
// additional instructions before execution.
func buildRefineCmd(configPath *string, debug *bool) *cobra.Command {
	var (
		sessionID  string
		refinement string
	)

	cmd := &cobra.Command{
		Use:   "refine",
		Short: "Refine a session's plan before execution",
		Example: `  builder6 refine --session-id 6f4c... --prompt "also add tests"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRefine(cmd.Context(), *configPath, *debug, sessionID, refinement)
		},
	}

	cmd.Flags().StringVarP(&sessionID, "session-id", "s", "", "Session to refine")
	cmd.Flags().StringVarP(&refinement, "prompt", "p", "", "Refinement instructions")
	_ = cmd.MarkFlagRequired("session-id")
	_ = cmd.MarkFlagRequired("prompt")

	return cmd
}

// buildCleanupContainersCmd creates the "cleanup-containers" command.
func buildCleanupContainersCmd(configPath *string, debug *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup-containers",
		Short: "Destroy idle sandbox containers and print the count",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCleanupContainers(cmd.Context(), *configPath, *debug)
		},
	}
}

// buildListSessionsCmd creates the "list-sessions" command.
func buildListSessionsCmd(configPath *string, debug *bool) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list-sessions",
		Short: "List recent sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runListSessions(cmd.Context(), *configPath, *debug, limit)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of sessions to list")

	return cmd
}

// buildRunEvaluationCmd creates the "run-evaluation" command, which hands off
// to the external evaluation collaborator.
func buildRunEvaluationCmd() *cobra.Command {
	var html bool

	cmd := &cobra.Command{
		Use:   "run-evaluation",
		Short: "Run the external evaluation suite",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEvaluation(cmd.Context(), html)
		},
	}

	cmd.Flags().BoolVar(&html, "html", false, "Produce an HTML report")

	return cmd
}
