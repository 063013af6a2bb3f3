package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/InsiderPhD/crAPIbara-Adoption-Agency-sub001/internal/ids"
	"github.com/InsiderPhD/crAPIbara-Adoption-Agency-sub001/internal/obs"
)

// Kind names a task type.
type Kind string

// KindPromoteToOrg promotes a user to the rescue role and materializes a
// provisional rescue organization.
const KindPromoteToOrg Kind = "promote_to_org"

// Task is a durable record of a delayed action. Tasks are never deleted; the
// executed flag flips false->true exactly once and the row doubles as an
// audit trail.
type Task struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	SubjectID string    `json:"subject_id"`
	RequestID string    `json:"request_id"`
	DueAt     time.Time `json:"due_at"`
	Executed  bool      `json:"executed"`
	CreatedAt time.Time `json:"created_at"`
}

// ErrTaskNotFound is returned by stores for unknown task ids.
var ErrTaskNotFound = errors.New("task not found")

// Store persists scheduled tasks with at-least-once semantics. ListDue and
// ListPending return tasks in ascending DueAt order.
type Store interface {
	Insert(ctx context.Context, task Task) error
	ListDue(ctx context.Context, now time.Time) ([]Task, error)
	ListPending(ctx context.Context) ([]Task, error)
	MarkExecuted(ctx context.Context, id string) error
}

// Executor performs the effect of one task. Execution must be idempotent
// against redelivery: a task may run again if the process crashed between
// execution and the executed mark.
type Executor interface {
	Execute(ctx context.Context, task Task) error
}

const defaultOpTimeout = 10 * time.Second

// Scheduler owns the deferred task queue: inserts, the poll loop, and the
// operator-facing force poll.
type Scheduler struct {
	store     Store
	executors map[Kind]Executor
	opTimeout time.Duration

	// pollMu makes PollOnce single-flight: overlapping pollers could race on
	// the same due task and double-execute it.
	pollMu sync.Mutex
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithOpTimeout bounds each store and executor call made during a poll.
func WithOpTimeout(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.opTimeout = d
		}
	}
}

// New constructs a Scheduler over the given store.
func New(store Store, opts ...Option) (*Scheduler, error) {
	if store == nil {
		return nil, errors.New("task store is required")
	}
	s := &Scheduler{
		store:     store,
		executors: make(map[Kind]Executor),
		opTimeout: defaultOpTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Register installs the executor for a task kind. Not safe to call once the
// poll loop is running.
func (s *Scheduler) Register(kind Kind, exec Executor) error {
	if exec == nil {
		return errors.New("executor is required")
	}
	if _, dup := s.executors[kind]; dup {
		return fmt.Errorf("executor for %s already registered", kind)
	}
	s.executors[kind] = exec
	return nil
}

// Schedule inserts a pending task due after the given delay. Safe to call
// concurrently with the poll loop: a freshly inserted task only becomes
// visible to a poll once its due time has passed.
func (s *Scheduler) Schedule(ctx context.Context, kind Kind, subjectID, requestID string, delay time.Duration) (string, error) {
	subjectID = strings.TrimSpace(subjectID)
	requestID = strings.TrimSpace(requestID)
	if subjectID == "" {
		return "", errors.New("subjectID is required")
	}
	if requestID == "" {
		return "", errors.New("requestID is required")
	}
	if _, ok := s.executors[kind]; !ok {
		return "", fmt.Errorf("no executor registered for kind %s", kind)
	}
	if delay < 0 {
		delay = 0
	}

	now := time.Now().UTC()
	task := Task{
		ID:        ids.New(),
		Kind:      kind,
		SubjectID: subjectID,
		RequestID: requestID,
		DueAt:     now.Add(delay),
		CreatedAt: now,
	}

	opCtx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()
	if err := s.store.Insert(opCtx, task); err != nil {
		return "", fmt.Errorf("insert task: %w", err)
	}
	return task.ID, nil
}

// PollOnce fetches every pending task whose due time has passed and executes
// each serially in ascending DueAt order. A task's failure is logged and
// leaves it pending for the next poll; it never aborts the batch or the
// caller. Returns the number of tasks executed to completion.
func (s *Scheduler) PollOnce(ctx context.Context) (int, error) {
	s.pollMu.Lock()
	defer s.pollMu.Unlock()

	listCtx, cancel := context.WithTimeout(ctx, s.opTimeout)
	due, err := s.store.ListDue(listCtx, time.Now().UTC())
	cancel()
	if err != nil {
		return 0, fmt.Errorf("list due tasks: %w", err)
	}
	return s.executeBatch(ctx, due), nil
}

// ForcePollAll executes every pending task regardless of its due time. It is
// the operator/test trigger; the per-task execution path is identical to
// PollOnce.
func (s *Scheduler) ForcePollAll(ctx context.Context) (int, error) {
	s.pollMu.Lock()
	defer s.pollMu.Unlock()

	listCtx, cancel := context.WithTimeout(ctx, s.opTimeout)
	pending, err := s.store.ListPending(listCtx)
	cancel()
	if err != nil {
		return 0, fmt.Errorf("list pending tasks: %w", err)
	}
	return s.executeBatch(ctx, pending), nil
}

func (s *Scheduler) executeBatch(ctx context.Context, batch []Task) int {
	executed := 0
	failed := 0
	for _, task := range batch {
		if err := s.executeOne(ctx, task); err != nil {
			failed++
			obs.LogEntry(map[string]any{
				"level":   "error",
				"msg":     "task execution failed",
				"task_id": task.ID,
				"kind":    string(task.Kind),
				"error":   err.Error(),
			})
			continue
		}
		executed++
	}
	obs.ObservePoll(executed, failed)
	return executed
}

// executeOne runs a single task and marks it executed on success. A failure
// at either step leaves the task pending; redelivery is the executor's
// problem to make idempotent.
func (s *Scheduler) executeOne(ctx context.Context, task Task) error {
	exec, ok := s.executors[task.Kind]
	if !ok {
		return fmt.Errorf("no executor registered for kind %s", task.Kind)
	}

	execCtx, cancel := context.WithTimeout(ctx, s.opTimeout)
	err := exec.Execute(execCtx, task)
	cancel()
	if err != nil {
		return err
	}

	markCtx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()
	if err := s.store.MarkExecuted(markCtx, task.ID); err != nil {
		return fmt.Errorf("mark executed: %w", err)
	}
	return nil
}

// Run polls on a fixed period until the context is cancelled. Poll errors are
// logged and never terminate the loop.
func (s *Scheduler) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.PollOnce(ctx); err != nil {
				obs.LogEntry(map[string]any{
					"level": "error",
					"msg":   "scheduler poll failed",
					"error": err.Error(),
				})
			}
		}
	}
}
