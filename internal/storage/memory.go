// Package storage holds the in-memory run ledger used when no database is
// configured.
package storage

import (
	"context"
	"sync"
	"time"

	"github.com/dharsanguruparan/ReportDrop/internal/model"
)

// MemoryStore records pipeline runs in a map guarded by an RWMutex. Runs are
// kept until the process exits, up to limit entries; the oldest are evicted
// first.
type MemoryStore struct {
	mu    sync.RWMutex
	runs  map[string]*model.Run
	order []string
	limit int
}

// NewMemoryStore constructs a MemoryStore holding at most limit runs. A
// non-positive limit keeps 10000.
func NewMemoryStore(limit int) *MemoryStore {
	if limit <= 0 {
		limit = 10000
	}
	return &MemoryStore{
		runs:  make(map[string]*model.Run),
		limit: limit,
	}
}

// Create inserts a run.
func (m *MemoryStore) Create(_ context.Context, run *model.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	if run.CreatedAt.IsZero() {
		run.CreatedAt = now
	}
	run.UpdatedAt = now
	copy := *run
	if _, exists := m.runs[run.Token]; !exists {
		m.order = append(m.order, run.Token)
	}
	m.runs[run.Token] = &copy
	for len(m.order) > m.limit {
		delete(m.runs, m.order[0])
		m.order = m.order[1:]
	}
	return nil
}

// MarkState moves a run to state.
func (m *MemoryStore) MarkState(_ context.Context, token string, state model.RunState) error {
	return m.update(token, func(r *model.Run) { r.State = state })
}

// MarkFailed records a failure before rendering started.
func (m *MemoryStore) MarkFailed(_ context.Context, token, msg string) error {
	return m.update(token, func(r *model.Run) {
		r.State = model.StateFailed
		r.Message = msg
	})
}

// MarkRendered records the outcome of the render step.
func (m *MemoryStore) MarkRendered(_ context.Context, token string, state model.RunState, bytes int64, msg string) error {
	return m.update(token, func(r *model.Run) {
		r.State = state
		r.Bytes = bytes
		r.Message = msg
	})
}

// MarkArchived stores where the PDF was archived.
func (m *MemoryStore) MarkArchived(_ context.Context, token, key string, pages int) error {
	return m.update(token, func(r *model.Run) {
		r.ArchiveKey = key
		r.Pages = pages
	})
}

// Get returns a copy of a run.
func (m *MemoryStore) Get(_ context.Context, token string) (*model.Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	run, ok := m.runs[token]
	if !ok {
		return nil, model.ErrRunNotFound
	}
	copy := *run
	return &copy, nil
}

func (m *MemoryStore) update(token string, fn func(*model.Run)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[token]
	if !ok {
		return model.ErrRunNotFound
	}
	fn(run)
	run.UpdatedAt = time.Now().UTC()
	return nil
}
