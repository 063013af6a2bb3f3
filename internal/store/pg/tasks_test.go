package pg

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/InsiderPhD/crAPIbara-Adoption-Agency-sub001/internal/scheduler"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewWithDB(db), mock
}

func TestTaskInsert(t *testing.T) {
	store, mock := newMockStore(t)

	due := time.Now().Add(time.Minute).UTC()
	mock.ExpectExec("insert into scheduled_tasks").
		WithArgs("task-1", "promote_to_org", "user-1", "req-1", due).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := store.Insert(context.Background(), scheduler.Task{
		ID:        "task-1",
		Kind:      scheduler.KindPromoteToOrg,
		SubjectID: "user-1",
		RequestID: "req-1",
		DueAt:     due,
	})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestTaskListDueOrdering(t *testing.T) {
	store, mock := newMockStore(t)

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "kind", "subject_id", "request_id", "due_at", "executed", "created_at"}).
		AddRow("task-a", "promote_to_org", "user-1", "req-1", now.Add(-2*time.Minute), false, now.Add(-10*time.Minute)).
		AddRow("task-b", "promote_to_org", "user-2", "req-2", now.Add(-time.Minute), false, now.Add(-10*time.Minute))
	mock.ExpectQuery("where executed = false and due_at <=").
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(rows)

	tasks, err := store.ListDue(context.Background(), now)
	if err != nil {
		t.Fatalf("ListDue: %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(tasks))
	}
	if tasks[0].ID != "task-a" || tasks[1].ID != "task-b" {
		t.Fatalf("unexpected order: %s, %s", tasks[0].ID, tasks[1].ID)
	}
	if tasks[0].Kind != scheduler.KindPromoteToOrg {
		t.Fatalf("unexpected kind: %s", tasks[0].Kind)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestTaskMarkExecuted(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("update scheduled_tasks set executed = true").
		WithArgs("task-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := store.MarkExecuted(context.Background(), "task-1"); err != nil {
		t.Fatalf("MarkExecuted: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestTaskMarkExecutedUnknown(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("update scheduled_tasks set executed = true").
		WithArgs("nope").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.MarkExecuted(context.Background(), "nope")
	if err != scheduler.ErrTaskNotFound {
		t.Fatalf("expected ErrTaskNotFound, got %v", err)
	}
}
