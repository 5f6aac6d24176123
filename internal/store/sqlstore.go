package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/builder6/builder6/pkg/errkind"
	"github.com/builder6/builder6/pkg/models"
)

// sqlStore implements Store on top of database/sql. It is shared by the
// Postgres and SQLite stores; the two differ only in placeholder style and
// schema bootstrap.
type sqlStore struct {
	db       *sql.DB
	bindDollar bool
	now      func() time.Time
}

// rebind rewrites $N placeholders to ? for drivers that want them.
func (s *sqlStore) rebind(query string) string {
	if s.bindDollar {
		return query
	}
	var b strings.Builder
	for i := 0; i < len(query); i++ {
		if query[i] == '$' {
			j := i + 1
			for j < len(query) && query[j] >= '0' && query[j] <= '9' {
				j++
			}
			if j > i+1 {
				b.WriteByte('?')
				i = j - 1
				continue
			}
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

func (s *sqlStore) CreateSession(ctx context.Context, session *models.Session) error {
	if session == nil {
		return errors.New("session is required")
	}
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	if session.Status == "" {
		session.Status = models.SessionOpen
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = s.now()
	}

	var deadline sql.NullTime
	if session.Deadline != nil {
		deadline = sql.NullTime{Time: *session.Deadline, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, s.rebind(
		`INSERT INTO sessions (id, status, created_at, deadline, raw_plan) VALUES ($1, $2, $3, $4, $5)`),
		session.ID, string(session.Status), session.CreatedAt, deadline, session.RawPlan,
	)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

func (s *sqlStore) GetSession(ctx context.Context, id string) (*models.Session, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT id, status, created_at, deadline, raw_plan FROM sessions WHERE id = $1`), id)
	session, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errkind.New(errkind.SessionNotFound, "session %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return session, nil
}

func (s *sqlStore) UpdateSession(ctx context.Context, id string, update SessionUpdate) (*models.Session, error) {
	sets := make([]string, 0, 3)
	args := make([]any, 0, 4)
	idx := 1

	if update.Status != nil {
		sets = append(sets, "status = $"+strconv.Itoa(idx))
		args = append(args, string(*update.Status))
		idx++
	}
	if update.RawPlan != nil {
		sets = append(sets, "raw_plan = $"+strconv.Itoa(idx))
		args = append(args, *update.RawPlan)
		idx++
	}
	if update.Deadline != nil {
		sets = append(sets, "deadline = $"+strconv.Itoa(idx))
		args = append(args, *update.Deadline)
		idx++
	}

	if len(sets) > 0 {
		args = append(args, id)
		query := "UPDATE sessions SET " + strings.Join(sets, ", ") + " WHERE id = $" + strconv.Itoa(idx)
		result, err := s.db.ExecContext(ctx, s.rebind(query), args...)
		if err != nil {
			return nil, fmt.Errorf("update session: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("update session: %w", err)
		}
		if affected == 0 {
			return nil, errkind.New(errkind.SessionNotFound, "session %s not found", id)
		}
	}

	return s.GetSession(ctx, id)
}

func (s *sqlStore) ListSessions(ctx context.Context, limit int) ([]*models.Session, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT id, status, created_at, deadline, raw_plan FROM sessions ORDER BY created_at DESC LIMIT $1`), limit)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*models.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("list sessions: %w", err)
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

func (s *sqlStore) ListTasks(ctx context.Context, sessionID string) ([]*models.Task, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT id, session_id, task_order, description, status, created_at, updated_at, react_history
		 FROM tasks WHERE session_id = $1 ORDER BY task_order ASC`), sessionID)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*models.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("list tasks: %w", err)
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

// InsertTask computes order = max(order)+1 inside a transaction so the
// re-read and insert are atomic under concurrent inserts on one session.
func (s *sqlStore) InsertTask(ctx context.Context, sessionID, description string, order *int) (*models.Task, error) {
	if strings.TrimSpace(description) == "" {
		return nil, errors.New("task description is required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	taskOrder := 0
	if order != nil {
		taskOrder = *order
	} else {
		row := tx.QueryRowContext(ctx, s.rebind(
			`SELECT COALESCE(MAX(task_order) + 1, 0) FROM tasks WHERE session_id = $1`), sessionID)
		if err := row.Scan(&taskOrder); err != nil {
			return nil, fmt.Errorf("insert task: compute order: %w", err)
		}
	}

	now := s.now()
	task := &models.Task{
		ID:          uuid.NewString(),
		SessionID:   sessionID,
		Order:       taskOrder,
		Description: description,
		Status:      models.TaskPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	_, err = tx.ExecContext(ctx, s.rebind(
		`INSERT INTO tasks (id, session_id, task_order, description, status, created_at, updated_at, react_history)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, '')`),
		task.ID, task.SessionID, task.Order, task.Description, string(task.Status), task.CreatedAt, task.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}
	return task, nil
}

func (s *sqlStore) UpdateTask(ctx context.Context, id string, update TaskUpdate) (*models.Task, error) {
	sets := make([]string, 0, 4)
	args := make([]any, 0, 5)
	idx := 1

	if update.Status != nil {
		sets = append(sets, "status = $"+strconv.Itoa(idx))
		args = append(args, string(*update.Status))
		idx++
	}
	if update.Description != nil {
		sets = append(sets, "description = $"+strconv.Itoa(idx))
		args = append(args, *update.Description)
		idx++
	}
	if update.ReactHistory != nil {
		sets = append(sets, "react_history = $"+strconv.Itoa(idx))
		args = append(args, *update.ReactHistory)
		idx++
	}

	sets = append(sets, "updated_at = $"+strconv.Itoa(idx))
	args = append(args, s.now())
	idx++

	args = append(args, id)
	query := "UPDATE tasks SET " + strings.Join(sets, ", ") + " WHERE id = $" + strconv.Itoa(idx)
	result, err := s.db.ExecContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}
	if affected == 0 {
		return nil, errkind.New(errkind.TaskNotFound, "task %s not found", id)
	}

	return s.getTask(ctx, id)
}

// UpdateTaskStatus returns (nil, nil) when the task is absent.
func (s *sqlStore) UpdateTaskStatus(ctx context.Context, id string, status models.TaskStatus) (*models.Task, error) {
	result, err := s.db.ExecContext(ctx, s.rebind(
		`UPDATE tasks SET status = $1, updated_at = $2 WHERE id = $3`),
		string(status), s.now(), id)
	if err != nil {
		return nil, fmt.Errorf("update task status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("update task status: %w", err)
	}
	if affected == 0 {
		return nil, nil
	}
	return s.getTask(ctx, id)
}

func (s *sqlStore) getTask(ctx context.Context, id string) (*models.Task, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT id, session_id, task_order, description, status, created_at, updated_at, react_history
		 FROM tasks WHERE id = $1`), id)
	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errkind.New(errkind.TaskNotFound, "task %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return task, nil
}

func (s *sqlStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*models.Session, error) {
	var (
		session  models.Session
		status   string
		deadline sql.NullTime
	)
	if err := row.Scan(&session.ID, &status, &session.CreatedAt, &deadline, &session.RawPlan); err != nil {
		return nil, err
	}
	session.Status = models.SessionStatus(status)
	if deadline.Valid {
		t := deadline.Time
		session.Deadline = &t
	}
	return &session, nil
}

func scanTask(row rowScanner) (*models.Task, error) {
	var (
		task   models.Task
		status string
	)
	if err := row.Scan(&task.ID, &task.SessionID, &task.Order, &task.Description, &status,
		&task.CreatedAt, &task.UpdatedAt, &task.ReactHistory); err != nil {
		return nil, err
	}
	task.Status = models.TaskStatus(status)
	return &task, nil
}
