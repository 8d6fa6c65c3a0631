// Package memstore is an in-process memo repository. It is the default
// backend and the reference ordering for the SQL stores.
package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/samber/lo"

	"github.com/ZanzyTHEbar/mcp-memo-libsql-go/internal/apptype"
	"github.com/ZanzyTHEbar/mcp-memo-libsql-go/internal/graph"
)

type entry struct {
	memo apptype.Memo
	seq  uint64
}

// Store keeps memos in a map guarded by a RWMutex.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*entry
	nextSeq uint64
}

func New() *Store {
	return &Store{entries: make(map[string]*entry)}
}

func (s *Store) Name() string { return "memory" }

func (s *Store) Close() error { return nil }

// Save stores a copy of m. Replacing an id keeps its original CreatedAt
// and position.
func (s *Store) Save(_ context.Context, m *apptype.Memo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := clone(*m)
	if e, ok := s.entries[m.ID]; ok {
		cp.CreatedAt = e.memo.CreatedAt
		e.memo = cp
		return nil
	}
	s.nextSeq++
	s.entries[m.ID] = &entry{memo: cp, seq: s.nextSeq}
	return nil
}

// GetAll returns copies of every memo, most recent first; equal timestamps
// put the later insert first.
func (s *Store) GetAll(_ context.Context) ([]apptype.Memo, error) {
	s.mu.RLock()
	entries := lo.MapToSlice(s.entries, func(_ string, e *entry) entry {
		return entry{memo: clone(e.memo), seq: e.seq}
	})
	s.mu.RUnlock()
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if !a.memo.CreatedAt.Equal(b.memo.CreatedAt) {
			return a.memo.CreatedAt.After(b.memo.CreatedAt)
		}
		return a.seq > b.seq
	})
	return lo.Map(entries, func(e entry, _ int) apptype.Memo { return e.memo }), nil
}

func (s *Store) GetByID(_ context.Context, id string) (*apptype.Memo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	if !ok {
		return nil, nil
	}
	m := clone(e.memo)
	return &m, nil
}

func (s *Store) Delete(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[id]; !ok {
		return false, nil
	}
	delete(s.entries, id)
	return true, nil
}

// SearchByVector is graph.TopK over GetAll.
func (s *Store) SearchByVector(ctx context.Context, query []float32, limit int) ([]apptype.Memo, error) {
	all, err := s.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	return graph.TopK(query, all, limit)
}

// clone deep-copies the slices so callers cannot mutate stored state.
func clone(m apptype.Memo) apptype.Memo {
	if m.Tags != nil {
		m.Tags = append([]string(nil), m.Tags...)
	}
	if m.Embedding != nil {
		m.Embedding = append([]float32(nil), m.Embedding...)
	}
	return m
}
