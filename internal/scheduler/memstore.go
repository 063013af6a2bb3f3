package scheduler

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemStore implements Store with in-process concurrency safety. Used by tests
// and when the API runs without a database DSN.
type MemStore struct {
	mu    sync.RWMutex
	tasks map[string]*Task
}

// NewMemStore creates an empty task store.
func NewMemStore() *MemStore {
	return &MemStore{tasks: make(map[string]*Task)}
}

var _ Store = (*MemStore)(nil)

func (m *MemStore) Insert(ctx context.Context, task Task) error {
	if strings.TrimSpace(task.ID) == "" {
		return ErrTaskNotFound
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := task
	m.tasks[task.ID] = &stored
	return nil
}

func (m *MemStore) ListDue(ctx context.Context, now time.Time) ([]Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Task
	for _, t := range m.tasks {
		if !t.Executed && !t.DueAt.After(now) {
			out = append(out, *t)
		}
	}
	sortTasks(out)
	return out, nil
}

func (m *MemStore) ListPending(ctx context.Context) ([]Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Task
	for _, t := range m.tasks {
		if !t.Executed {
			out = append(out, *t)
		}
	}
	sortTasks(out)
	return out, nil
}

func (m *MemStore) MarkExecuted(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[strings.TrimSpace(id)]
	if !ok {
		return ErrTaskNotFound
	}
	t.Executed = true
	return nil
}

// Get returns a task copy, mostly for tests and ops inspection.
func (m *MemStore) Get(id string) (Task, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tasks[strings.TrimSpace(id)]
	if !ok {
		return Task{}, false
	}
	return *t, true
}

func sortTasks(tasks []Task) {
	sort.Slice(tasks, func(i, j int) bool {
		if tasks[i].DueAt.Equal(tasks[j].DueAt) {
			return tasks[i].ID < tasks[j].ID
		}
		return tasks[i].DueAt.Before(tasks[j].DueAt)
	})
}
