package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"
)

type recordingExecutor struct {
	order []string
	fail  map[string]error
}

func (r *recordingExecutor) Execute(ctx context.Context, task Task) error {
	if err, ok := r.fail[task.ID]; ok {
		return err
	}
	r.order = append(r.order, task.ID)
	return nil
}

func newTestScheduler(t *testing.T, store Store, exec Executor) *Scheduler {
	t.Helper()
	s, err := New(store)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s.Register(KindPromoteToOrg, exec); err != nil {
		t.Fatalf("Register: %v", err)
	}
	return s
}

func TestScheduleInsertsPendingTask(t *testing.T) {
	store := NewMemStore()
	s := newTestScheduler(t, store, &recordingExecutor{})

	id, err := s.Schedule(context.Background(), KindPromoteToOrg, "u1", "req1", time.Hour)
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	task, ok := store.Get(id)
	if !ok {
		t.Fatalf("task not stored")
	}
	if task.Executed {
		t.Fatalf("new task must be pending")
	}
	if until := time.Until(task.DueAt); until < 55*time.Minute {
		t.Fatalf("unexpected due time: %v", task.DueAt)
	}
}

func TestScheduleValidation(t *testing.T) {
	s := newTestScheduler(t, NewMemStore(), &recordingExecutor{})

	if _, err := s.Schedule(context.Background(), KindPromoteToOrg, "", "req1", 0); err == nil {
		t.Fatalf("expected error for missing subject")
	}
	if _, err := s.Schedule(context.Background(), KindPromoteToOrg, "u1", "", 0); err == nil {
		t.Fatalf("expected error for missing request")
	}
	if _, err := s.Schedule(context.Background(), Kind("mystery"), "u1", "req1", 0); err == nil {
		t.Fatalf("expected error for unregistered kind")
	}
}

func TestPollOnceExecutesInDueOrder(t *testing.T) {
	store := NewMemStore()
	exec := &recordingExecutor{}
	s := newTestScheduler(t, store, exec)

	now := time.Now().UTC()
	// Inserted out of order on purpose; the poll must sort by due time.
	tasks := []Task{
		{ID: "t-late", Kind: KindPromoteToOrg, SubjectID: "u1", RequestID: "r1", DueAt: now.Add(-time.Minute), CreatedAt: now},
		{ID: "t-early", Kind: KindPromoteToOrg, SubjectID: "u2", RequestID: "r2", DueAt: now.Add(-time.Hour), CreatedAt: now},
		{ID: "t-mid", Kind: KindPromoteToOrg, SubjectID: "u3", RequestID: "r3", DueAt: now.Add(-30 * time.Minute), CreatedAt: now},
	}
	for _, task := range tasks {
		if err := store.Insert(context.Background(), task); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}

	n, err := s.PollOnce(context.Background())
	if err != nil {
		t.Fatalf("PollOnce: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 executions, got %d", n)
	}
	want := []string{"t-early", "t-mid", "t-late"}
	for i, id := range want {
		if exec.order[i] != id {
			t.Fatalf("execution order %v, want %v", exec.order, want)
		}
	}
	for _, id := range want {
		if task, _ := store.Get(id); !task.Executed {
			t.Fatalf("task %s not marked executed", id)
		}
	}
}

func TestPollOnceIgnoresFutureTasks(t *testing.T) {
	store := NewMemStore()
	exec := &recordingExecutor{}
	s := newTestScheduler(t, store, exec)

	now := time.Now().UTC()
	future := Task{ID: "t-future", Kind: KindPromoteToOrg, SubjectID: "u1", RequestID: "r1", DueAt: now.Add(time.Hour), CreatedAt: now}
	if err := store.Insert(context.Background(), future); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	n, err := s.PollOnce(context.Background())
	if err != nil {
		t.Fatalf("PollOnce: %v", err)
	}
	if n != 0 || len(exec.order) != 0 {
		t.Fatalf("future task must not execute: n=%d order=%v", n, exec.order)
	}
	if task, _ := store.Get("t-future"); task.Executed {
		t.Fatalf("future task must remain pending")
	}
}

func TestFailedTaskStaysPendingAndBatchContinues(t *testing.T) {
	store := NewMemStore()
	exec := &recordingExecutor{fail: map[string]error{"t-bad": errors.New("boom")}}
	s := newTestScheduler(t, store, exec)

	now := time.Now().UTC()
	bad := Task{ID: "t-bad", Kind: KindPromoteToOrg, SubjectID: "u1", RequestID: "r1", DueAt: now.Add(-2 * time.Hour), CreatedAt: now}
	good := Task{ID: "t-good", Kind: KindPromoteToOrg, SubjectID: "u2", RequestID: "r2", DueAt: now.Add(-time.Hour), CreatedAt: now}
	for _, task := range []Task{bad, good} {
		if err := store.Insert(context.Background(), task); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}

	n, err := s.PollOnce(context.Background())
	if err != nil {
		t.Fatalf("PollOnce: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 execution, got %d", n)
	}
	if task, _ := store.Get("t-bad"); task.Executed {
		t.Fatalf("failed task must stay pending")
	}
	if task, _ := store.Get("t-good"); !task.Executed {
		t.Fatalf("later task must still run after a failure")
	}

	// Next poll retries the failed task.
	exec.fail = nil
	n, err = s.PollOnce(context.Background())
	if err != nil {
		t.Fatalf("PollOnce retry: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected retry execution, got %d", n)
	}
	if task, _ := store.Get("t-bad"); !task.Executed {
		t.Fatalf("retried task must be executed")
	}
}

func TestForcePollAllIgnoresDueGate(t *testing.T) {
	store := NewMemStore()
	exec := &recordingExecutor{}
	s := newTestScheduler(t, store, exec)

	now := time.Now().UTC()
	future := Task{ID: "t-future", Kind: KindPromoteToOrg, SubjectID: "u1", RequestID: "r1", DueAt: now.Add(time.Hour), CreatedAt: now}
	if err := store.Insert(context.Background(), future); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	n, err := s.ForcePollAll(context.Background())
	if err != nil {
		t.Fatalf("ForcePollAll: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected forced execution, got %d", n)
	}
	if task, _ := store.Get("t-future"); !task.Executed {
		t.Fatalf("forced task must be marked executed")
	}
}

func TestExecutedTaskNeverReenters(t *testing.T) {
	store := NewMemStore()
	exec := &recordingExecutor{}
	s := newTestScheduler(t, store, exec)

	now := time.Now().UTC()
	task := Task{ID: "t1", Kind: KindPromoteToOrg, SubjectID: "u1", RequestID: "r1", DueAt: now.Add(-time.Hour), CreatedAt: now}
	if err := store.Insert(context.Background(), task); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	if _, err := s.PollOnce(context.Background()); err != nil {
		t.Fatalf("PollOnce: %v", err)
	}
	n, err := s.PollOnce(context.Background())
	if err != nil {
		t.Fatalf("PollOnce: %v", err)
	}
	if n != 0 || len(exec.order) != 1 {
		t.Fatalf("executed task must not run again: n=%d order=%v", n, exec.order)
	}
}
