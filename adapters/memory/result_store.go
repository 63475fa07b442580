// Package memory provides an in-process ResultRepository used when no
// database is configured.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"gol50/domain/core"
	"gol50/domain/threshold"
	"gol50/internal/errors"
	"gol50/ports"
)

// ResultStore keeps the most recent result tables in memory
type ResultStore struct {
	mu       sync.RWMutex
	capacity int
	tables   map[core.RunID]*threshold.ResultTable
	order    []core.RunID
}

var _ ports.ResultRepository = (*ResultStore)(nil)

// NewResultStore keeps at most capacity runs, evicting the oldest
func NewResultStore(capacity int) *ResultStore {
	if capacity <= 0 {
		capacity = 100
	}
	return &ResultStore{capacity: capacity, tables: make(map[core.RunID]*threshold.ResultTable)}
}

func (s *ResultStore) Save(ctx context.Context, table *threshold.ResultTable) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tables[table.RunID]; !exists {
		s.order = append(s.order, table.RunID)
	}
	s.tables[table.RunID] = table
	for len(s.order) > s.capacity {
		delete(s.tables, s.order[0])
		s.order = s.order[1:]
	}
	return nil
}

func (s *ResultStore) Get(ctx context.Context, runID core.RunID) (*threshold.ResultTable, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	table, ok := s.tables[runID]
	if !ok {
		return nil, errors.NotFound(fmt.Sprintf("run %s", runID))
	}
	return table, nil
}

// List returns summaries newest first
func (s *ResultStore) List(ctx context.Context, limit, offset int) ([]ports.RunSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ports.RunSummary, 0, len(s.tables))
	for _, t := range s.tables {
		out = append(out, ports.RunSummary{
			RunID:     t.RunID,
			Model:     t.Model,
			Target:    t.Target,
			Mode:      string(t.Mode),
			RowCount:  len(t.Rows),
			CreatedAt: t.CreatedAt.Time(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}
