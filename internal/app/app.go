// Package app assembles the caching geocoder from configuration.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/geocode-cache-service/internal/adapter/google"
	"github.com/couchcryptid/geocode-cache-service/internal/adapter/mapbox"
	"github.com/couchcryptid/geocode-cache-service/internal/adapter/store/file"
	"github.com/couchcryptid/geocode-cache-service/internal/adapter/store/memory"
	"github.com/couchcryptid/geocode-cache-service/internal/adapter/store/postgres"
	"github.com/couchcryptid/geocode-cache-service/internal/adapter/store/redis"
	"github.com/couchcryptid/geocode-cache-service/internal/config"
	"github.com/couchcryptid/geocode-cache-service/internal/domain"
	"github.com/couchcryptid/geocode-cache-service/internal/observability"
)

// NewProvider returns the remote geocoder selected by cfg.Provider.
func NewProvider(cfg *config.Config, metrics *observability.Metrics, logger *slog.Logger) (domain.Geocoder, error) {
	switch cfg.Provider {
	case config.ProviderGoogle:
		return google.NewClient(cfg.GoogleAPIKey, cfg.GeocoderTimeout, metrics, logger).WithBaseURL(cfg.GeocoderBaseURL), nil
	case config.ProviderMapbox:
		return mapbox.NewClient(cfg.MapboxToken, cfg.GeocoderTimeout, metrics, logger).WithBaseURL(cfg.GeocoderBaseURL), nil
	default:
		return nil, fmt.Errorf("unsupported provider %q", cfg.Provider)
	}
}

// NewCache opens the cache backend selected by cfg.CacheBackend. The returned
// close function releases any connections and is never nil.
func NewCache(ctx context.Context, cfg *config.Config) (domain.Cache, func(), error) {
	noop := func() {}
	switch cfg.CacheBackend {
	case config.CacheMemory:
		return memory.New(cfg.CacheMemorySize), noop, nil
	case config.CacheFile:
		s, err := file.New(cfg.CacheDir)
		if err != nil {
			return nil, noop, err
		}
		return s, noop, nil
	case config.CachePostgres:
		s, pool, err := postgres.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, noop, err
		}
		return s, pool.Close, nil
	case config.CacheRedis:
		s, client, err := redis.Dial(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, noop, err
		}
		return s, func() { _ = client.Close() }, nil
	default:
		return nil, noop, fmt.Errorf("unsupported cache backend %q", cfg.CacheBackend)
	}
}

// NewGeocoder wires the configured provider behind the configured cache.
func NewGeocoder(ctx context.Context, cfg *config.Config, metrics *observability.Metrics, logger *slog.Logger) (*domain.CachingGeocoder, func(), error) {
	remote, err := NewProvider(cfg, metrics, logger)
	if err != nil {
		return nil, func() {}, err
	}
	cache, closeCache, err := NewCache(ctx, cfg)
	if err != nil {
		return nil, closeCache, err
	}

	opts := []domain.Option{
		domain.WithLogger(logger),
		domain.WithRecorder(metrics),
	}
	if cfg.SingleFlight {
		opts = append(opts, domain.WithSingleFlight(cfg.GeocoderTimeout))
	}
	logger.Info("geocoder configured",
		"provider", cfg.Provider,
		"cache_backend", cfg.CacheBackend,
		"singleflight", cfg.SingleFlight,
	)
	return domain.NewCachingGeocoder(remote, cache, opts...), closeCache, nil
}
