// Package memory provides an in-process geocode cache with optional LRU
// eviction.
package memory

import (
	"context"
	"sync"

	"github.com/couchcryptid/geocode-cache-service/internal/domain"
	lru "github.com/hashicorp/golang-lru/v2"
)

// Store is a thread-safe cache of coordinates. Bounded stores evict the least
// recently used location; a maxEntries of zero or less never evicts.
type Store struct {
	bounded *lru.Cache[string, domain.Coordinates]

	mu      sync.RWMutex
	entries map[string]domain.Coordinates
}

// New creates a Store holding at most maxEntries locations.
func New(maxEntries int) *Store {
	if maxEntries <= 0 {
		return &Store{entries: make(map[string]domain.Coordinates)}
	}
	c, err := lru.New[string, domain.Coordinates](maxEntries)
	if err != nil {
		// lru.New only rejects non-positive sizes.
		panic(err)
	}
	return &Store{bounded: c}
}

// Read implements domain.Cache.
func (s *Store) Read(_ context.Context, key string) (domain.Coordinates, bool, error) {
	if s.bounded != nil {
		c, ok := s.bounded.Get(key)
		return c, ok, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.entries[key]
	return c, ok, nil
}

// Write implements domain.Cache. Provenance flags are not stored.
func (s *Store) Write(_ context.Context, key string, coords domain.Coordinates) error {
	value := domain.NewCoordinates(coords.Lat, coords.Lon)
	if s.bounded != nil {
		s.bounded.Add(key, value)
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = value
	return nil
}

// Len returns the number of cached locations.
func (s *Store) Len() int {
	if s.bounded != nil {
		return s.bounded.Len()
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
