// internal/profile/memory.go
//
// In-memory profile store. Used for guest mode (no remote sync: progression
// lives only in process memory, keyed by the anonymous ID) and in tests.
// State is lost when the process restarts.

package profile

import (
	"context"
	"sync"
)

// MemoryStore is a map-backed Store, safe for concurrent use.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record // keyed by UserID, stored by value
}

// NewMemoryStore constructs an empty in-memory Store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record)}
}

func (m *MemoryStore) Get(ctx context.Context, userID string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.records[userID]
	if !ok {
		return nil, ErrNotFound
	}
	out := r
	out.RecentWords = append([]string(nil), r.RecentWords...)
	return &out, nil
}

func (m *MemoryStore) Insert(ctx context.Context, r *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[r.UserID]; ok {
		return ErrExists
	}
	m.records[r.UserID] = clone(r)
	return nil
}

func (m *MemoryStore) Update(ctx context.Context, r *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[r.UserID]; !ok {
		return ErrNotFound
	}
	m.records[r.UserID] = clone(r)
	return nil
}

func (m *MemoryStore) Upsert(ctx context.Context, r *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[r.UserID] = clone(r)
	return nil
}

func clone(r *Record) Record {
	out := *r
	out.RecentWords = append([]string(nil), r.RecentWords...)
	return out
}
