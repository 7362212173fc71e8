package domain

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"
)

// Cache lookup and write results reported to a CacheRecorder.
const (
	CacheHit   = "hit"
	CacheMiss  = "miss"
	CacheError = "error"

	WriteOK    = "ok"
	WriteError = "error"
)

// CacheRecorder receives cache lookup and write results, typically to feed
// metrics.
type CacheRecorder interface {
	RecordCacheLookup(result string)
	RecordCacheWrite(result string)
}

type nopRecorder struct{}

func (nopRecorder) RecordCacheLookup(string) {}
func (nopRecorder) RecordCacheWrite(string)  {}

// Option configures a CachingGeocoder.
type Option func(*CachingGeocoder)

// WithLogger sets the logger used to report degraded cache operations.
func WithLogger(logger *slog.Logger) Option {
	return func(c *CachingGeocoder) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithRecorder reports cache lookups and writes to r.
func WithRecorder(r CacheRecorder) Option {
	return func(c *CachingGeocoder) {
		if r != nil {
			c.recorder = r
		}
	}
}

// WithSingleFlight coalesces concurrent misses for the same location into a
// single provider call and cache write. The flight is detached from any one
// caller's cancellation and bounded by timeout instead (no bound when zero).
// Each caller still returns as soon as its own context is done. Only the
// caller that started the flight sees Cached() report true.
func WithSingleFlight(timeout time.Duration) Option {
	return func(c *CachingGeocoder) {
		c.flight = &singleflight.Group{}
		c.flightTimeout = timeout
	}
}

// CachingGeocoder is a cache-aside decorator around a Geocoder. Hits are
// served from the cache without a provider call; successful provider results
// are written back. Cache failures degrade to a plain provider passthrough
// and are never returned to the caller.
type CachingGeocoder struct {
	inner    Geocoder
	cache    Cache
	logger   *slog.Logger
	recorder CacheRecorder
	flight   *singleflight.Group

	flightTimeout time.Duration
}

// NewCachingGeocoder wraps inner with cache.
func NewCachingGeocoder(inner Geocoder, cache Cache, opts ...Option) *CachingGeocoder {
	c := &CachingGeocoder{
		inner:    inner,
		cache:    cache,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		recorder: nopRecorder{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Geocode resolves location, consulting the cache first.
func (c *CachingGeocoder) Geocode(ctx context.Context, location string) (Outcome, error) {
	if hit, ok := c.lookup(ctx, location); ok {
		return hit, nil
	}

	if c.flight == nil {
		return c.fetch(ctx, location)
	}
	return c.fetchShared(ctx, location)
}

// fetchShared joins or starts the flight for location.
func (c *CachingGeocoder) fetchShared(ctx context.Context, location string) (Outcome, error) {
	var led bool
	ch := c.flight.DoChan(location, func() (any, error) {
		led = true
		fctx := context.WithoutCancel(ctx)
		if c.flightTimeout > 0 {
			var cancel context.CancelFunc
			fctx, cancel = context.WithTimeout(fctx, c.flightTimeout)
			defer cancel()
		}
		return c.fetch(fctx, location)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		outcome := res.Val.(Outcome)
		// led is set before the result is delivered on ch.
		if coords, ok := outcome.(Coordinates); ok && !led {
			return NewCoordinates(coords.Lat, coords.Lon), nil
		}
		return outcome, nil
	}
}

// lookup reads location from the cache. Read failures count as misses.
func (c *CachingGeocoder) lookup(ctx context.Context, location string) (Coordinates, bool) {
	coords, ok, err := c.cache.Read(ctx, location)
	if err != nil {
		c.logger.Warn("geocode cache read failed, treating as miss",
			"location", location,
			"error", err,
		)
		c.recorder.RecordCacheLookup(CacheError)
		return Coordinates{}, false
	}
	if !ok {
		c.recorder.RecordCacheLookup(CacheMiss)
		return Coordinates{}, false
	}
	c.recorder.RecordCacheLookup(CacheHit)
	return cacheHit(coords.Lat, coords.Lon), true
}

// fetch asks the provider and persists a successful result.
func (c *CachingGeocoder) fetch(ctx context.Context, location string) (Outcome, error) {
	outcome, err := c.inner.Geocode(ctx, location)
	if err != nil {
		return nil, err
	}

	switch o := outcome.(type) {
	case Coordinates:
		if err := c.cache.Write(ctx, location, NewCoordinates(o.Lat, o.Lon)); err != nil {
			c.logger.Warn("geocode cache write failed",
				"location", location,
				"error", err,
			)
			c.recorder.RecordCacheWrite(WriteError)
			return NewCoordinates(o.Lat, o.Lon), nil
		}
		c.recorder.RecordCacheWrite(WriteOK)
		return persisted(o.Lat, o.Lon), nil
	case ErrorResult:
		return o, nil
	default:
		return nil, fmt.Errorf("geocode %q: unexpected outcome %T", location, outcome)
	}
}
