package store

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/builder6/builder6/pkg/errkind"
	"github.com/builder6/builder6/pkg/models"
)

// MemoryStore provides an in-memory Store implementation for testing and
// local runs. A single mutex serializes all operations, which also gives
// per-session insertion-order monotonicity under concurrent inserts.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*models.Session
	tasks    map[string]*models.Task
	now      func() time.Time
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: map[string]*models.Session{},
		tasks:    map[string]*models.Task{},
		now:      time.Now,
	}
}

func (m *MemoryStore) CreateSession(ctx context.Context, session *models.Session) error {
	if session == nil {
		return errors.New("session is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	clone := cloneSession(session)
	if clone.ID == "" {
		clone.ID = uuid.NewString()
	}
	if clone.Status == "" {
		clone.Status = models.SessionOpen
	}
	if clone.CreatedAt.IsZero() {
		clone.CreatedAt = m.now()
	}
	// Reflect generated fields back to the caller.
	session.ID = clone.ID
	session.Status = clone.Status
	session.CreatedAt = clone.CreatedAt
	m.sessions[clone.ID] = clone
	return nil
}

func (m *MemoryStore) GetSession(ctx context.Context, id string) (*models.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	session, ok := m.sessions[id]
	if !ok {
		return nil, errkind.New(errkind.SessionNotFound, "session %s not found", id)
	}
	return cloneSession(session), nil
}

func (m *MemoryStore) UpdateSession(ctx context.Context, id string, update SessionUpdate) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.sessions[id]
	if !ok {
		return nil, errkind.New(errkind.SessionNotFound, "session %s not found", id)
	}
	if update.Status != nil {
		session.Status = *update.Status
	}
	if update.RawPlan != nil {
		session.RawPlan = *update.RawPlan
	}
	if update.Deadline != nil {
		deadline := *update.Deadline
		session.Deadline = &deadline
	}
	return cloneSession(session), nil
}

func (m *MemoryStore) ListSessions(ctx context.Context, limit int) ([]*models.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sessions := make([]*models.Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, cloneSession(s))
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.After(sessions[j].CreatedAt)
	})
	if limit > 0 && len(sessions) > limit {
		sessions = sessions[:limit]
	}
	return sessions, nil
}

func (m *MemoryStore) ListTasks(ctx context.Context, sessionID string) ([]*models.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var tasks []*models.Task
	for _, t := range m.tasks {
		if t.SessionID == sessionID {
			tasks = append(tasks, cloneTask(t))
		}
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].Order < tasks[j].Order })
	return tasks, nil
}

func (m *MemoryStore) InsertTask(ctx context.Context, sessionID, description string, order *int) (*models.Task, error) {
	if strings.TrimSpace(description) == "" {
		return nil, errors.New("task description is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	taskOrder := 0
	if order != nil {
		taskOrder = *order
	} else {
		next := 0
		for _, t := range m.tasks {
			if t.SessionID == sessionID && t.Order >= next {
				next = t.Order + 1
			}
		}
		taskOrder = next
	}

	now := m.now()
	task := &models.Task{
		ID:          uuid.NewString(),
		SessionID:   sessionID,
		Order:       taskOrder,
		Description: description,
		Status:      models.TaskPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	m.tasks[task.ID] = task
	return cloneTask(task), nil
}

func (m *MemoryStore) UpdateTask(ctx context.Context, id string, update TaskUpdate) (*models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	task, ok := m.tasks[id]
	if !ok {
		return nil, errkind.New(errkind.TaskNotFound, "task %s not found", id)
	}
	if update.Status != nil {
		task.Status = *update.Status
	}
	if update.Description != nil {
		task.Description = *update.Description
	}
	if update.ReactHistory != nil {
		task.ReactHistory = *update.ReactHistory
	}
	task.UpdatedAt = m.now()
	return cloneTask(task), nil
}

func (m *MemoryStore) UpdateTaskStatus(ctx context.Context, id string, status models.TaskStatus) (*models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	task, ok := m.tasks[id]
	if !ok {
		return nil, nil
	}
	task.Status = status
	task.UpdatedAt = m.now()
	return cloneTask(task), nil
}

func (m *MemoryStore) Close() error {
	return nil
}

func cloneSession(s *models.Session) *models.Session {
	clone := *s
	if s.Deadline != nil {
		deadline := *s.Deadline
		clone.Deadline = &deadline
	}
	return &clone
}

func cloneTask(t *models.Task) *models.Task {
	clone := *t
	return &clone
}
