package pg

import (
	"context"
	"strings"
	"time"

	"github.com/InsiderPhD/crAPIbara-Adoption-Agency-sub001/internal/scheduler"
)

var _ scheduler.Store = (*Store)(nil)

func (s *Store) Insert(ctx context.Context, task scheduler.Task) error {
	_, err := s.db.ExecContext(ctx, `
		insert into scheduled_tasks (id, kind, subject_id, request_id, due_at, executed)
		values ($1, $2, $3, $4, $5, false)
	`, task.ID, string(task.Kind), task.SubjectID, task.RequestID, task.DueAt.UTC())
	return err
}

func (s *Store) ListDue(ctx context.Context, now time.Time) ([]scheduler.Task, error) {
	return s.listTasks(ctx, `
		select id, kind, subject_id, request_id, due_at, executed, created_at
		from scheduled_tasks
		where executed = false and due_at <= $1
		order by due_at asc, id asc
	`, now.UTC())
}

func (s *Store) ListPending(ctx context.Context) ([]scheduler.Task, error) {
	return s.listTasks(ctx, `
		select id, kind, subject_id, request_id, due_at, executed, created_at
		from scheduled_tasks
		where executed = false
		order by due_at asc, id asc
	`)
}

func (s *Store) MarkExecuted(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `
		update scheduled_tasks set executed = true where id = $1
	`, strings.TrimSpace(id))
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return scheduler.ErrTaskNotFound
	}
	return nil
}

func (s *Store) listTasks(ctx context.Context, query string, args ...any) ([]scheduler.Task, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []scheduler.Task
	for rows.Next() {
		var (
			t    scheduler.Task
			kind string
		)
		if err := rows.Scan(&t.ID, &kind, &t.SubjectID, &t.RequestID, &t.DueAt, &t.Executed, &t.CreatedAt); err != nil {
			return nil, err
		}
		t.Kind = scheduler.Kind(kind)
		out = append(out, t)
	}
	return out, rows.Err()
}
