// Package models defines the shared data model for builder6: sessions, tasks,
// plans, and the ReAct trace entries exchanged between the orchestrator, the
// model runner, and the persistence store.
package models

import (
	"encoding/json"
	"time"
)

// SessionStatus is the lifecycle state of a session.
type SessionStatus string

const (
	SessionOpen                 SessionStatus = "OPEN"
	SessionPlanning             SessionStatus = "PLANNING"
	SessionAwaitingConfirmation SessionStatus = "AWAITING_CONFIRMATION"
	SessionExecuting            SessionStatus = "EXECUTING"
	SessionCompleted            SessionStatus = "COMPLETED"
	SessionFailed               SessionStatus = "FAILED"
	SessionDeadlineExceeded     SessionStatus = "DEADLINE_EXCEEDED"
)

// Terminal reports whether the status permits no further transitions.
func (s SessionStatus) Terminal() bool {
	switch s {
	case SessionCompleted, SessionFailed, SessionDeadlineExceeded:
		return true
	}
	return false
}

// TaskStatus is the lifecycle state of a task.
type TaskStatus string

const (
	TaskPending    TaskStatus = "PENDING"
	TaskInProgress TaskStatus = "IN_PROGRESS"
	TaskCompleted  TaskStatus = "COMPLETED"
	TaskFailed     TaskStatus = "FAILED"
)

// Session is a unit of work bounded by a user prompt and optional deadline.
// RawPlan holds the serialized plan snapshot; its format is owned by this
// package (EncodePlan/DecodePlan) and opaque to the store.
type Session struct {
	ID        string        `json:"id"`
	Status    SessionStatus `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
	Deadline  *time.Time    `json:"deadline,omitempty"`
	RawPlan   string        `json:"raw_plan,omitempty"`
}

// Task is an ordered atomic step within a session's plan. Order is unique
// within the owning session, monotonically increasing from 0. ReactHistory
// holds the serialized ReAct trace (EncodeHistory/DecodeHistory).
type Task struct {
	ID           string     `json:"id"`
	SessionID    string     `json:"session_id"`
	Order        int        `json:"order"`
	Description  string     `json:"description"`
	Status       TaskStatus `json:"status"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	ReactHistory string     `json:"react_history,omitempty"`
}

// ToolCall is a model's request to execute a tool. The ID correlates the
// matching ToolCallResult within one ReAct iteration.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// ToolCallResult is the outcome of one tool dispatch, correlated back to the
// triggering call by ToolCallID. Failed dispatches set IsError and carry a
// structured {"error": message} payload in Content.
type ToolCallResult struct {
	ToolCallID string `json:"tool_call_id"`
	Content    string `json:"content"`
	IsError    bool   `json:"is_error,omitempty"`
}

// ReactEntry is one iteration of a task's ReAct loop. At least one of Content
// or ToolCalls is populated. Observation aggregates the tool-result payloads
// in dispatch order.
type ReactEntry struct {
	Content     string           `json:"content,omitempty"`
	ToolCalls   []ToolCall       `json:"tool_calls,omitempty"`
	ToolResults []ToolCallResult `json:"tool_results,omitempty"`
	Observation []string         `json:"observation,omitempty"`
}

// PlanTask is a task snapshot stored inside a session's RawPlan. Execution is
// seeded from the snapshot so status can be tracked without re-querying the
// task table between iterations.
type PlanTask struct {
	ID          string     `json:"id"`
	Description string     `json:"description"`
	Order       int        `json:"order"`
	Status      TaskStatus `json:"status"`
}

// SnapshotPlan converts a task list into plan snapshots preserving order.
func SnapshotPlan(tasks []*Task) []PlanTask {
	plan := make([]PlanTask, 0, len(tasks))
	for _, t := range tasks {
		plan = append(plan, PlanTask{
			ID:          t.ID,
			Description: t.Description,
			Order:       t.Order,
			Status:      t.Status,
		})
	}
	return plan
}

// EncodePlan serializes a plan snapshot for storage on a session.
func EncodePlan(plan []PlanTask) (string, error) {
	payload, err := json.Marshal(plan)
	if err != nil {
		return "", err
	}
	return string(payload), nil
}

// DecodePlan parses a session's RawPlan payload. An empty payload decodes to
// an empty plan.
func DecodePlan(raw string) ([]PlanTask, error) {
	if raw == "" {
		return nil, nil
	}
	var plan []PlanTask
	if err := json.Unmarshal([]byte(raw), &plan); err != nil {
		return nil, err
	}
	return plan, nil
}

// EncodeHistory serializes a ReAct trace for storage on a task.
func EncodeHistory(entries []ReactEntry) (string, error) {
	payload, err := json.Marshal(entries)
	if err != nil {
		return "", err
	}
	return string(payload), nil
}

// DecodeHistory parses a task's ReactHistory payload. An empty payload
// decodes to an empty trace.
func DecodeHistory(raw string) ([]ReactEntry, error) {
	if raw == "" {
		return nil, nil
	}
	var entries []ReactEntry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return nil, err
	}
	return entries, nil
}
