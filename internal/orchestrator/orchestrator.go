// Package orchestrator drives the plan-and-execute lifecycle: plan
// generation and refinement through the model runner, then strictly
// sequential task execution where each task runs its own ReAct loop.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/builder6/builder6/internal/llm"
	"github.com/builder6/builder6/internal/store"
	"github.com/builder6/builder6/pkg/errkind"
	"github.com/builder6/builder6/pkg/models"
)

const (
	// maxHistoryItems is the most-recent window of react entries included
	// verbatim in each prompt; older entries collapse to a summary line.
	maxHistoryItems = 5

	// maxLoopSteps is the hard safety bound on a task's ReAct loop.
	maxLoopSteps = 50

	// taskCompleteSentinel terminates a ReAct loop when it appears in the
	// model's reply.
	taskCompleteSentinel = "TASK_COMPLETE"
)

// modelRunner is the C3 surface the orchestrator needs. *llm.Service
// satisfies it.
type modelRunner interface {
	GenerateJSON(ctx context.Context, prompt string) (any, error)
	GenerateWithTools(ctx context.Context, prompt string) (*llm.Response, error)
	ExecuteToolCalls(ctx context.Context, calls []models.ToolCall) ([]models.ToolCallResult, error)
}

// Orchestrator owns session planning and execution.
type Orchestrator struct {
	store  store.Store
	runner modelRunner
	logger *slog.Logger
	now    func() time.Time
}

// New creates an orchestrator over a store and model runner.
func New(st store.Store, runner modelRunner, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		store:  st,
		runner: runner,
		logger: logger,
		now:    time.Now,
	}
}

// PlanRequest is the input to StartPlanning.
type PlanRequest struct {
	Prompt   string
	RepoURL  string
	Deadline *time.Time
}

// ExecutionResult is the outcome of ExecutePlan: the session's terminal
// status and the ordered log of every react entry produced.
type ExecutionResult struct {
	SessionID string              `json:"session_id"`
	Status    models.SessionStatus `json:"status"`
	Log       []models.ReactEntry  `json:"log"`
}

// StartPlanning creates a session, asks the model for an ordered task plan,
// persists each task, and advances the session to AWAITING_CONFIRMATION.
func (o *Orchestrator) StartPlanning(ctx context.Context, req PlanRequest) (*models.Session, []*models.Task, error) {
	session := &models.Session{
		Status:   models.SessionPlanning,
		Deadline: req.Deadline,
	}
	if err := o.store.CreateSession(ctx, session); err != nil {
		return nil, nil, err
	}

	value, err := o.runner.GenerateJSON(ctx, planningPrompt(req.Prompt, req.RepoURL))
	if err != nil {
		o.failSession(ctx, session.ID)
		return nil, nil, err
	}

	descriptions, err := parsePlanValue(value)
	if err != nil {
		o.failSession(ctx, session.ID)
		return nil, nil, err
	}

	tasks, err := o.insertPlan(ctx, session.ID, descriptions)
	if err != nil {
		return nil, nil, err
	}

	updated, err := o.persistPlan(ctx, session.ID, tasks, models.SessionAwaitingConfirmation)
	if err != nil {
		return nil, nil, err
	}

	o.logger.Info("plan created", "session_id", session.ID, "tasks", len(tasks))
	return updated, tasks, nil
}

// RefinePlan asks the model to revise a session's plan given refinement
// text. The prior plan is replaced, not merged: new tasks are inserted and
// the session's plan snapshot points only at them.
func (o *Orchestrator) RefinePlan(ctx context.Context, sessionID, refinement string) ([]*models.Task, error) {
	session, err := o.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	existing, err := o.store.ListTasks(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	prior := make([]string, 0, len(existing))
	for _, t := range existing {
		prior = append(prior, t.Description)
	}

	value, err := o.runner.GenerateJSON(ctx, refinementPrompt(prior, refinement))
	if err != nil {
		return nil, err
	}
	descriptions, err := parsePlanValue(value)
	if err != nil {
		return nil, err
	}

	tasks, err := o.insertPlan(ctx, session.ID, descriptions)
	if err != nil {
		return nil, err
	}
	if _, err := o.persistPlan(ctx, session.ID, tasks, models.SessionAwaitingConfirmation); err != nil {
		return nil, err
	}

	o.logger.Info("plan refined", "session_id", session.ID, "tasks", len(tasks))
	return tasks, nil
}

// ExecutePlan runs every pending task of a confirmed session in order.
// Requires status AWAITING_CONFIRMATION; any other status fails with
// SessionStateInvalid without mutating the session.
func (o *Orchestrator) ExecutePlan(ctx context.Context, sessionID string) (*ExecutionResult, error) {
	session, err := o.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status != models.SessionAwaitingConfirmation {
		return nil, errkind.New(errkind.SessionStateInvalid,
			"session %s is %s, expected %s", sessionID, session.Status, models.SessionAwaitingConfirmation)
	}

	if _, err := o.setSessionStatus(ctx, sessionID, models.SessionExecuting); err != nil {
		return nil, err
	}

	plan, err := o.loadPlan(ctx, session)
	if err != nil {
		return nil, err
	}

	result := &ExecutionResult{SessionID: sessionID}
	for {
		// Deadline is cooperative: checked only at iteration boundaries,
		// so a long tool call can overrun it by one task.
		if session.Deadline != nil && o.now().After(*session.Deadline) {
			return o.finish(ctx, result, models.SessionDeadlineExceeded)
		}

		next := nextPending(plan)
		if next == nil {
			return o.finish(ctx, result, models.SessionCompleted)
		}

		task, err := o.store.UpdateTaskStatus(ctx, next.ID, models.TaskInProgress)
		if err != nil {
			return nil, err
		}
		if task == nil {
			// The task vanished underneath the plan snapshot; skip it.
			next.Status = models.TaskFailed
			continue
		}

		entries, finalStatus, loopErr := o.runReactLoop(ctx, task)
		result.Log = append(result.Log, entries...)

		if _, err := o.store.UpdateTaskStatus(ctx, task.ID, finalStatus); err != nil {
			return nil, err
		}
		next.Status = finalStatus

		if loopErr != nil {
			// Model-runner failure after exhausted retries is fatal to
			// the session.
			res, ferr := o.finish(ctx, result, models.SessionFailed)
			if ferr != nil {
				return nil, ferr
			}
			return res, loopErr
		}
	}
}

// runReactLoop executes one task's ReAct loop: prompt, generate, dispatch
// tool calls, persist history, check termination. The history is persisted
// after every iteration, before the next generation request, so a crash
// loses at most the in-flight iteration.
func (o *Orchestrator) runReactLoop(ctx context.Context, task *models.Task) ([]models.ReactEntry, models.TaskStatus, error) {
	history, err := models.DecodeHistory(task.ReactHistory)
	if err != nil {
		return nil, models.TaskFailed, errkind.Wrap(errkind.Internal, err, "decode history for task %s", task.ID)
	}

	var produced []models.ReactEntry
	for {
		resp, err := o.runner.GenerateWithTools(ctx, reactPrompt(task.Description, history))
		if err != nil {
			return produced, models.TaskFailed, err
		}

		entry := models.ReactEntry{
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		}
		if len(resp.ToolCalls) > 0 {
			results, err := o.runner.ExecuteToolCalls(ctx, resp.ToolCalls)
			if err != nil {
				return produced, models.TaskFailed, err
			}
			entry.ToolResults = results
			for _, r := range results {
				entry.Observation = append(entry.Observation, r.Content)
			}
		}

		history = append(history, entry)
		produced = append(produced, entry)

		encoded, err := models.EncodeHistory(history)
		if err != nil {
			return produced, models.TaskFailed, errkind.Wrap(errkind.Internal, err, "encode history for task %s", task.ID)
		}
		if _, err := o.store.UpdateTask(ctx, task.ID, store.TaskUpdate{ReactHistory: &encoded}); err != nil {
			return produced, models.TaskFailed, err
		}

		if strings.Contains(resp.Content, taskCompleteSentinel) {
			return produced, models.TaskCompleted, nil
		}
		if len(history) > maxLoopSteps {
			o.logger.Warn("react loop hit safety bound", "task_id", task.ID, "steps", len(history))
			return produced, models.TaskFailed, nil
		}
	}
}

// loadPlan seeds execution from the session's plan snapshot, falling back to
// the task table when the snapshot is missing.
func (o *Orchestrator) loadPlan(ctx context.Context, session *models.Session) ([]models.PlanTask, error) {
	plan, err := models.DecodePlan(session.RawPlan)
	if err != nil {
		return nil, errkind.Wrap(errkind.PlanParseFailed, err, "decode plan for session %s", session.ID)
	}
	if len(plan) > 0 {
		return plan, nil
	}

	tasks, err := o.store.ListTasks(ctx, session.ID)
	if err != nil {
		return nil, err
	}
	return models.SnapshotPlan(tasks), nil
}

func nextPending(plan []models.PlanTask) *models.PlanTask {
	for i := range plan {
		if plan[i].Status == models.TaskPending {
			return &plan[i]
		}
	}
	return nil
}

func (o *Orchestrator) insertPlan(ctx context.Context, sessionID string, descriptions []string) ([]*models.Task, error) {
	tasks := make([]*models.Task, 0, len(descriptions))
	for _, description := range descriptions {
		task, err := o.store.InsertTask(ctx, sessionID, description, nil)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

func (o *Orchestrator) persistPlan(ctx context.Context, sessionID string, tasks []*models.Task, status models.SessionStatus) (*models.Session, error) {
	raw, err := models.EncodePlan(models.SnapshotPlan(tasks))
	if err != nil {
		return nil, errkind.Wrap(errkind.Internal, err, "encode plan for session %s", sessionID)
	}
	return o.store.UpdateSession(ctx, sessionID, store.SessionUpdate{
		Status:  &status,
		RawPlan: &raw,
	})
}

func (o *Orchestrator) setSessionStatus(ctx context.Context, sessionID string, status models.SessionStatus) (*models.Session, error) {
	return o.store.UpdateSession(ctx, sessionID, store.SessionUpdate{Status: &status})
}

func (o *Orchestrator) finish(ctx context.Context, result *ExecutionResult, status models.SessionStatus) (*ExecutionResult, error) {
	if _, err := o.setSessionStatus(ctx, result.SessionID, status); err != nil {
		return nil, err
	}
	result.Status = status
	o.logger.Info("execution finished", "session_id", result.SessionID, "status", status, "log_entries", len(result.Log))
	return result, nil
}

func (o *Orchestrator) failSession(ctx context.Context, sessionID string) {
	if _, err := o.setSessionStatus(ctx, sessionID, models.SessionFailed); err != nil {
		o.logger.Warn("failed to mark session failed", "session_id", sessionID, "error", err)
	}
}

// planningPrompt asks for an ordered JSON task list for a goal.
func planningPrompt(goal, repoURL string) string {
	var b strings.Builder
	b.WriteString("You are planning the work of an autonomous coding agent.\n")
	fmt.Fprintf(&b, "Goal: %s\n", goal)
	if repoURL != "" {
		fmt.Fprintf(&b, "Repository: %s\n", repoURL)
	}
	b.WriteString("Respond with a JSON array of task objects, each with a \"description\" string, ordered by execution.")
	return b.String()
}

// refinementPrompt asks for a revised plan given the prior task descriptions.
func refinementPrompt(prior []string, refinement string) string {
	var b strings.Builder
	b.WriteString("Revise the following task plan.\n")
	fmt.Fprintf(&b, "Current tasks: %s\n", strings.Join(prior, ", "))
	fmt.Fprintf(&b, "Refinement: %s\n", refinement)
	b.WriteString("Respond with the full revised plan as a JSON array of task objects, each with a \"description\" string.")
	return b.String()
}

// reactPrompt builds the compact per-iteration prompt: the task description,
// a summary line for older history, the most-recent window verbatim, and the
// termination instruction.
func reactPrompt(description string, history []models.ReactEntry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Task: %s\n", description)

	if len(history) > maxHistoryItems {
		fmt.Fprintf(&b, "%d earlier actions were taken and are omitted.\n", len(history)-maxHistoryItems)
	}

	start := 0
	if len(history) > maxHistoryItems {
		start = len(history) - maxHistoryItems
	}
	for _, entry := range history[start:] {
		line := entry.Content
		if line == "" {
			line = fmt.Sprintf("(executed %d tool calls)", len(entry.ToolCalls))
		}
		fmt.Fprintf(&b, "- %s\n", line)
	}

	fmt.Fprintf(&b, "Use the available tools as needed. When the task is finished, reply with %s.", taskCompleteSentinel)
	return b.String()
}

// parsePlanValue extracts ordered task descriptions from a decoded plan
// document: a JSON array of objects each carrying a "description" string.
func parsePlanValue(value any) ([]string, error) {
	list, ok := value.([]any)
	if !ok {
		return nil, errkind.New(errkind.PlanParseFailed, "plan must be a JSON array, got %T", value)
	}
	if len(list) == 0 {
		return nil, errkind.New(errkind.PlanParseFailed, "plan is empty")
	}

	descriptions := make([]string, 0, len(list))
	for i, item := range list {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, errkind.New(errkind.PlanParseFailed, "plan item %d is not an object", i)
		}
		description, ok := obj["description"].(string)
		if !ok || strings.TrimSpace(description) == "" {
			return nil, errkind.New(errkind.PlanParseFailed, "plan item %d has no description", i)
		}
		descriptions = append(descriptions, description)
	}
	return descriptions, nil
}
