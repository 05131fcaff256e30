package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/aretw0/ferry/pkg/domain"
)

// Store implements ports.EntryStore in memory.
// Safe for concurrent use.
type Store struct {
	data map[string]*domain.Entry
	mu   sync.RWMutex
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		data: make(map[string]*domain.Entry),
	}
}

// Save persists the entry in memory.
func (s *Store) Save(ctx context.Context, key string, entry *domain.Entry) error {
	// Deep copy to ensure isolation, similar to serialization
	copied := entry.Clone()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = copied
	return nil
}

// Load retrieves the entry from memory.
func (s *Store) Load(ctx context.Context, key string) (*domain.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.data[key]
	if !ok {
		return nil, domain.ErrEntryNotFound
	}

	// Copy on read so the caller can't mutate store state by pointer
	return entry.Clone(), nil
}

// Delete removes the entry.
func (s *Store) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

// List returns the stored keys with the given prefix, sorted.
func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.data))
	for key := range s.data {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}
