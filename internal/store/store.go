// Package store provides durable persistence for sessions and tasks with
// relational semantics and insertion-ordered task listing.
//
// Three implementations share the Store interface: PostgresStore (lib/pq),
// SQLiteStore (modernc.org/sqlite) for local runs, and MemoryStore for tests
// and development.
package store

import (
	"context"
	"strings"
	"time"

	"github.com/builder6/builder6/pkg/models"
)

// Store is the interface for session and task persistence.
//
// Each operation is individually atomic with respect to concurrent readers
// and writers on the same session. Task order monotonicity holds under
// concurrent inserts.
type Store interface {
	// Session CRUD. GetSession fails with errkind.SessionNotFound when
	// the id is unknown; UpdateSession likewise.
	CreateSession(ctx context.Context, session *models.Session) error
	GetSession(ctx context.Context, id string) (*models.Session, error)
	UpdateSession(ctx context.Context, id string, update SessionUpdate) (*models.Session, error)
	ListSessions(ctx context.Context, limit int) ([]*models.Session, error)

	// Task operations. ListTasks returns tasks in strictly ascending
	// order. InsertTask computes order = max(order)+1 when order is nil.
	// UpdateTaskStatus returns (nil, nil) when the task is absent.
	ListTasks(ctx context.Context, sessionID string) ([]*models.Task, error)
	InsertTask(ctx context.Context, sessionID, description string, order *int) (*models.Task, error)
	UpdateTask(ctx context.Context, id string, update TaskUpdate) (*models.Task, error)
	UpdateTaskStatus(ctx context.Context, id string, status models.TaskStatus) (*models.Task, error)

	Close() error
}

// SessionUpdate is a partial session mutation. Nil fields are left unchanged.
type SessionUpdate struct {
	Status   *models.SessionStatus
	RawPlan  *string
	Deadline *time.Time
}

// TaskUpdate is a partial task mutation. Nil fields are left unchanged.
// Any mutation advances the task's updated-at timestamp.
type TaskUpdate struct {
	Status       *models.TaskStatus
	Description  *string
	ReactHistory *string
}

// Open selects a Store implementation from the database URL scheme:
// postgresql:// and postgres:// open Postgres, sqlite:// opens SQLite, and
// memory:// opens the in-memory store.
func Open(databaseURL string) (Store, error) {
	switch {
	case strings.HasPrefix(databaseURL, "postgresql://"), strings.HasPrefix(databaseURL, "postgres://"):
		return NewPostgresStore(databaseURL)
	case strings.HasPrefix(databaseURL, "sqlite://"):
		return NewSQLiteStore(strings.TrimPrefix(databaseURL, "sqlite://"))
	default:
		return NewMemoryStore(), nil
	}
}
