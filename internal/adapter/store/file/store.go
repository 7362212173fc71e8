// Package file provides a geocode cache persisted as one JSON document per
// location on the local filesystem.
package file

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/couchcryptid/geocode-cache-service/internal/domain"
	"github.com/jonboulle/clockwork"
)

// Entry is the on-disk representation of a cached location.
type Entry struct {
	Location  string    `json:"location"`
	Lat       float64   `json:"lat"`
	Lon       float64   `json:"lon"`
	FetchedAt time.Time `json:"fetched_at"`
}

// Store implements domain.Cache on top of a directory.
type Store struct {
	dir   string
	clock clockwork.Clock
}

// New creates a Store rooted at dir, creating it if needed. An empty dir
// defaults to ~/.cache/geocode.
func New(dir string) (*Store, error) {
	return NewWithClock(dir, clockwork.NewRealClock())
}

// NewWithClock is New with an explicit time source for FetchedAt.
func NewWithClock(dir string, clock clockwork.Clock) (*Store, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve cache dir: %w", err)
		}
		dir = filepath.Join(home, ".cache", "geocode")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &Store{dir: dir, clock: clock}, nil
}

// Read implements domain.Cache.
func (s *Store) Read(_ context.Context, key string) (domain.Coordinates, bool, error) {
	data, err := os.ReadFile(s.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return domain.Coordinates{}, false, nil
	}
	if err != nil {
		return domain.Coordinates{}, false, fmt.Errorf("read cache entry: %w", err)
	}

	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return domain.Coordinates{}, false, fmt.Errorf("decode cache entry: %w", err)
	}
	// Guard against an md5 collision serving another location's coordinates.
	if e.Location != key {
		return domain.Coordinates{}, false, nil
	}
	return domain.NewCoordinates(e.Lat, e.Lon), true, nil
}

// Write implements domain.Cache. The entry is written to a temporary file and
// renamed into place so readers never observe a partial document.
func (s *Store) Write(_ context.Context, key string, coords domain.Coordinates) error {
	data, err := json.MarshalIndent(Entry{
		Location:  key,
		Lat:       coords.Lat,
		Lon:       coords.Lon,
		FetchedAt: s.clock.Now().UTC(),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, "*.tmp")
	if err != nil {
		return fmt.Errorf("write cache entry: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write cache entry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write cache entry: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path(key)); err != nil {
		return fmt.Errorf("write cache entry: %w", err)
	}
	return nil
}

// Dir returns the directory backing the store.
func (s *Store) Dir() string { return s.dir }

// path maps a location onto a filesystem-safe name.
func (s *Store) path(key string) string {
	sum := md5.Sum([]byte(key))
	return filepath.Join(s.dir, hex.EncodeToString(sum[:])+".json")
}
