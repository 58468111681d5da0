package store

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"
)

// Memory is an in-process Store used when no DATABASE_URL is configured
// and in tests.
type Memory struct {
	mu       sync.RWMutex
	nextID   int64
	nextEdit int64
	reports  map[int64]Report
	edits    map[int64][]Edit
}

func NewMemory() *Memory {
	return &Memory{
		reports: make(map[int64]Report),
		edits:   make(map[int64][]Edit),
	}
}

func (m *Memory) Ping(context.Context) error { return nil }
func (m *Memory) Close() error               { return nil }

func copyReport(r Report) Report {
	r.VersionHistory = slices.Clone(r.VersionHistory)
	if r.HTMLContent != nil {
		html := *r.HTMLContent
		r.HTMLContent = &html
	}
	return r
}

func (m *Memory) CreateReport(_ context.Context, r *Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	now := time.Now().UTC()
	r.ID = m.nextID
	r.CreatedAt, r.UpdatedAt = now, now
	if r.DocumentVersion < 1 {
		r.DocumentVersion = 1
	}
	m.reports[r.ID] = copyReport(*r)
	return nil
}

func (m *Memory) GetReport(_ context.Context, id int64) (Report, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.reports[id]
	if !ok {
		return Report{}, fmt.Errorf("report %d: %w", id, ErrNotFound)
	}
	return copyReport(r), nil
}

func (m *Memory) UpdateReport(_ context.Context, r Report, expectedVersion int, edit *Edit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.reports[r.ID]
	if !ok {
		return fmt.Errorf("report %d: %w", r.ID, ErrNotFound)
	}
	if cur.DocumentVersion != expectedVersion {
		return fmt.Errorf("report %d at version %d: %w", r.ID, expectedVersion, ErrConflict)
	}
	r.CreatedAt = cur.CreatedAt
	r.UpdatedAt = time.Now().UTC()
	m.reports[r.ID] = copyReport(r)
	if edit != nil {
		m.nextEdit++
		e := *edit
		e.ID = m.nextEdit
		e.CreatedAt = r.UpdatedAt
		m.edits[r.ID] = append(m.edits[r.ID], e)
	}
	return nil
}

func (m *Memory) ListEdits(_ context.Context, reportID int64, limit int) ([]Edit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if limit <= 0 {
		limit = 50
	}
	all := m.edits[reportID]
	out := make([]Edit, 0, min(limit, len(all)))
	for i := len(all) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, all[i])
	}
	return out, nil
}
