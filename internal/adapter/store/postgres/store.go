// Package postgres provides a geocode cache backed by a PostgreSQL table.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/couchcryptid/geocode-cache-service/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
)

const (
	createTableSQL = `
CREATE TABLE IF NOT EXISTS geocode_cache (
	location   TEXT PRIMARY KEY,
	lat        DOUBLE PRECISION NOT NULL,
	lon        DOUBLE PRECISION NOT NULL,
	fetched_at TIMESTAMPTZ NOT NULL
)`

	selectSQL = `SELECT lat, lon FROM geocode_cache WHERE location = $1`

	upsertSQL = `
INSERT INTO geocode_cache (location, lat, lon, fetched_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (location) DO UPDATE
SET lat = EXCLUDED.lat, lon = EXCLUDED.lon, fetched_at = EXCLUDED.fetched_at`
)

// DB is the subset of *pgxpool.Pool used by Store.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store implements domain.Cache on the geocode_cache table.
type Store struct {
	db    DB
	clock clockwork.Clock
}

// New wraps an existing connection.
func New(db DB, clock clockwork.Clock) *Store {
	return &Store{db: db, clock: clock}
}

// Connect opens a pool for databaseURL and ensures the schema exists. The
// caller owns the returned pool.
func Connect(ctx context.Context, databaseURL string) (*Store, *pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("connect postgres: %w", err)
	}
	s := New(pool, clockwork.NewRealClock())
	if err := s.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return s, pool, nil
}

// EnsureSchema creates the cache table if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, createTableSQL); err != nil {
		return fmt.Errorf("create geocode_cache table: %w", err)
	}
	return nil
}

// Read implements domain.Cache.
func (s *Store) Read(ctx context.Context, key string) (domain.Coordinates, bool, error) {
	var lat, lon float64
	err := s.db.QueryRow(ctx, selectSQL, key).Scan(&lat, &lon)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Coordinates{}, false, nil
	}
	if err != nil {
		return domain.Coordinates{}, false, fmt.Errorf("select geocode_cache: %w", err)
	}
	return domain.NewCoordinates(lat, lon), true, nil
}

// Write implements domain.Cache.
func (s *Store) Write(ctx context.Context, key string, coords domain.Coordinates) error {
	if _, err := s.db.Exec(ctx, upsertSQL, key, coords.Lat, coords.Lon, s.clock.Now().UTC()); err != nil {
		return fmt.Errorf("upsert geocode_cache: %w", err)
	}
	return nil
}
