package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/builder6/builder6/pkg/errkind"
	"github.com/builder6/builder6/pkg/models"
)

func TestMemoryStoreTaskOrdering(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	session := &models.Session{Status: models.SessionPlanning}
	if err := s.CreateSession(ctx, session); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	for i := 0; i < 5; i++ {
		if _, err := s.InsertTask(ctx, session.ID, "step", nil); err != nil {
			t.Fatalf("InsertTask: %v", err)
		}
	}

	tasks, err := s.ListTasks(ctx, session.ID)
	if err != nil {
		t.Fatalf("ListTasks: %v", err)
	}
	if len(tasks) != 5 {
		t.Fatalf("expected 5 tasks, got %d", len(tasks))
	}
	for i, task := range tasks {
		if task.Order != i {
			t.Errorf("task %d has order %d", i, task.Order)
		}
		if task.Status != models.TaskPending {
			t.Errorf("task %d inserted with status %s", i, task.Status)
		}
	}
}

func TestMemoryStoreConcurrentInserts(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	session := &models.Session{}
	if err := s.CreateSession(ctx, session); err != nil {
		t.Fatal(err)
	}

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.InsertTask(ctx, session.ID, "concurrent", nil); err != nil {
				t.Errorf("InsertTask: %v", err)
			}
		}()
	}
	wg.Wait()

	tasks, err := s.ListTasks(ctx, session.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(tasks) != n {
		t.Fatalf("expected %d tasks, got %d", n, len(tasks))
	}
	for i, task := range tasks {
		if task.Order != i {
			t.Fatalf("order sequence broken at %d: got %d", i, task.Order)
		}
	}
}

func TestMemoryStoreUpdateTaskStatus(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	s.now = time.Now

	session := &models.Session{}
	if err := s.CreateSession(ctx, session); err != nil {
		t.Fatal(err)
	}
	task, err := s.InsertTask(ctx, session.ID, "step", nil)
	if err != nil {
		t.Fatal(err)
	}

	before := task.UpdatedAt
	time.Sleep(time.Millisecond)

	updated, err := s.UpdateTaskStatus(ctx, task.ID, models.TaskInProgress)
	if err != nil {
		t.Fatalf("UpdateTaskStatus: %v", err)
	}
	if updated.Status != models.TaskInProgress {
		t.Fatalf("status = %s, want IN_PROGRESS", updated.Status)
	}
	if !updated.UpdatedAt.After(before) {
		t.Fatal("updated_at did not advance on status mutation")
	}

	// Absent task returns (nil, nil) rather than failing.
	missing, err := s.UpdateTaskStatus(ctx, "no-such-task", models.TaskCompleted)
	if err != nil {
		t.Fatalf("UpdateTaskStatus on missing task: %v", err)
	}
	if missing != nil {
		t.Fatalf("expected nil task, got %#v", missing)
	}
}

func TestMemoryStoreSessionNotFound(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	if _, err := s.GetSession(ctx, "missing"); !errkind.Is(err, errkind.SessionNotFound) {
		t.Fatalf("expected SessionNotFound, got %v", err)
	}

	status := models.SessionExecuting
	if _, err := s.UpdateSession(ctx, "missing", SessionUpdate{Status: &status}); !errkind.Is(err, errkind.SessionNotFound) {
		t.Fatalf("expected SessionNotFound, got %v", err)
	}
}

func TestMemoryStoreUpdateSessionPlan(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	deadline := time.Now().Add(time.Hour)
	session := &models.Session{Status: models.SessionPlanning, Deadline: &deadline}
	if err := s.CreateSession(ctx, session); err != nil {
		t.Fatal(err)
	}

	plan, _ := models.EncodePlan([]models.PlanTask{{ID: "t1", Description: "Task 1", Status: models.TaskPending}})
	status := models.SessionAwaitingConfirmation
	updated, err := s.UpdateSession(ctx, session.ID, SessionUpdate{Status: &status, RawPlan: &plan})
	if err != nil {
		t.Fatal(err)
	}
	if updated.Status != models.SessionAwaitingConfirmation {
		t.Fatalf("status = %s", updated.Status)
	}
	if updated.RawPlan != plan {
		t.Fatal("raw plan not stored")
	}
	if updated.Deadline == nil || !updated.Deadline.Equal(deadline) {
		t.Fatal("deadline lost on update")
	}

	decoded, err := models.DecodePlan(updated.RawPlan)
	if err != nil {
		t.Fatalf("stored plan does not parse: %v", err)
	}
	if len(decoded) != 1 || decoded[0].Description != "Task 1" {
		t.Fatalf("plan did not round-trip: %#v", decoded)
	}
}

func TestMemoryStoreExplicitOrder(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	session := &models.Session{}
	if err := s.CreateSession(ctx, session); err != nil {
		t.Fatal(err)
	}

	order := 7
	task, err := s.InsertTask(ctx, session.ID, "explicit", &order)
	if err != nil {
		t.Fatal(err)
	}
	if task.Order != 7 {
		t.Fatalf("order = %d, want 7", task.Order)
	}

	// Next implicit insert continues from the maximum.
	next, err := s.InsertTask(ctx, session.ID, "implicit", nil)
	if err != nil {
		t.Fatal(err)
	}
	if next.Order != 8 {
		t.Fatalf("order = %d, want 8", next.Order)
	}
}
