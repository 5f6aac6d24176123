package store

import (
	"context"
	"database/sql"
	"fmt"
)

// schemaStatements creates the sessions and tasks tables idempotently.
// The serialized plan and react-history columns are opaque UTF-8 payloads;
// their format is owned by pkg/models and must round-trip exactly.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		status TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		deadline TIMESTAMPTZ,
		raw_plan TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS tasks (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
		task_order INTEGER NOT NULL,
		description TEXT NOT NULL,
		status TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		react_history TEXT NOT NULL DEFAULT '',
		UNIQUE (session_id, task_order)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_tasks_session_order ON tasks (session_id, task_order)`,
}

// sqliteSchemaStatements mirrors the Postgres schema with SQLite types.
var sqliteSchemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		status TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		deadline TIMESTAMP,
		raw_plan TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS tasks (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
		task_order INTEGER NOT NULL,
		description TEXT NOT NULL,
		status TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		react_history TEXT NOT NULL DEFAULT '',
		UNIQUE (session_id, task_order)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_tasks_session_order ON tasks (session_id, task_order)`,
}

func migrate(ctx context.Context, db *sql.DB, statements []string) error {
	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
