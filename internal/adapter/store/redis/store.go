// Package redis provides a geocode cache backed by Redis string keys.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/couchcryptid/geocode-cache-service/internal/domain"
	goredis "github.com/redis/go-redis/v9"
)

// KeyPrefix namespaces cache keys in a shared Redis database.
const KeyPrefix = "geocode:"

// Client is the subset of *redis.Client used by Store.
type Client interface {
	Get(ctx context.Context, key string) *goredis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *goredis.StatusCmd
}

type entry struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Store implements domain.Cache on Redis. Entries do not expire.
type Store struct {
	client Client
}

// New wraps an existing client.
func New(client Client) *Store {
	return &Store{client: client}
}

// Dial connects to addr and verifies the connection with PING.
func Dial(ctx context.Context, addr, password string, db int) (*Store, *goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("connect redis %s: %w", addr, err)
	}
	return New(client), client, nil
}

// Read implements domain.Cache.
func (s *Store) Read(ctx context.Context, key string) (domain.Coordinates, bool, error) {
	raw, err := s.client.Get(ctx, KeyPrefix+key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return domain.Coordinates{}, false, nil
	}
	if err != nil {
		return domain.Coordinates{}, false, fmt.Errorf("redis get: %w", err)
	}
	var e entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return domain.Coordinates{}, false, fmt.Errorf("decode cache entry: %w", err)
	}
	return domain.NewCoordinates(e.Lat, e.Lon), true, nil
}

// Write implements domain.Cache.
func (s *Store) Write(ctx context.Context, key string, coords domain.Coordinates) error {
	raw, err := json.Marshal(entry{Lat: coords.Lat, Lon: coords.Lon})
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}
	if err := s.client.Set(ctx, KeyPrefix+key, raw, 0).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}
