// Package memory provides an in-memory key/value store used for tests and
// ephemeral environments.
package memory

import (
	"context"
	"sync"

	"signout/pkg/domain"
)

// Compile-time contract assertion ensuring memory.Store adheres to the domain persistence interface.
var _ domain.KeyValueStore = (*Store)(nil)

// Store keeps values in a map guarded by a RWMutex. Values are copied on the
// way in and out so callers cannot mutate stored bytes.
type Store struct {
	mu    sync.RWMutex
	items map[string][]byte
}

// NewStore constructs an empty in-memory store.
func NewStore() *Store {
	return &Store{items: make(map[string][]byte)}
}

// GetItem returns a copy of the value stored under key.
func (s *Store) GetItem(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.items[key]
	if !ok {
		return nil, false, nil
	}
	return cloneBytes(v), true, nil
}

// SetItem replaces the value stored under key.
func (s *Store) SetItem(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[key] = cloneBytes(value)
	return nil
}

// RemoveItem deletes key if present.
func (s *Store) RemoveItem(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, key)
	return nil
}

// Keys lists stored keys; used by tests and the reset command.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.items))
	for k := range s.items {
		out = append(out, k)
	}
	return out
}

// Driver returns the backend identifier.
func (s *Store) Driver() string { return "memory" }

// Close is a no-op for the in-memory store.
func (s *Store) Close() error { return nil }

func cloneBytes(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
