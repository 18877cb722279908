// Package store provides job record stores: an in-process map for tests and
// single-shot runs, and a SQLite store for durable deployments.
package store

import (
	"context"
	"sort"
	"sync"

	"docenhance/internal/job"
)

// Memory is an in-process job store. The zero value is not usable; call
// NewMemory.
type Memory struct {
	mu   sync.RWMutex
	recs map[string]*job.Record
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{recs: make(map[string]*job.Record)}
}

func (m *Memory) Put(_ context.Context, rec *job.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs[rec.Ref.Key()] = rec.Clone()
	return nil
}

func (m *Memory) Get(_ context.Context, key string) (*job.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.recs[key]
	if !ok {
		return nil, job.ErrNotFound
	}
	return rec.Clone(), nil
}

func (m *Memory) List(_ context.Context) ([]*job.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*job.Record, 0, len(m.recs))
	for _, rec := range m.recs {
		out = append(out, rec.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Ref.Key() < out[j].Ref.Key()
	})
	return out, nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.recs, key)
	return nil
}
