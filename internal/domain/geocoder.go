package domain

import (
	"context"
	"errors"
)

// ErrMissingCredentials is returned by providers configured without an API
// key or token. No request can be attempted until it is fixed.
var ErrMissingCredentials = errors.New("geocoder: missing provider credentials")

// Geocoder resolves a free-text location into an Outcome.
type Geocoder interface {
	// Geocode performs a single lookup. Provider failures are reported as an
	// ErrorResult outcome; the error return is reserved for failures that
	// prevent the lookup from being attempted.
	Geocode(ctx context.Context, location string) (Outcome, error)
}

// GeocoderFunc adapts a function to the Geocoder interface.
type GeocoderFunc func(ctx context.Context, location string) (Outcome, error)

// Geocode calls f(ctx, location).
func (f GeocoderFunc) Geocode(ctx context.Context, location string) (Outcome, error) {
	return f(ctx, location)
}

// Cache persists coordinates keyed by the raw location string.
type Cache interface {
	// Read returns the stored coordinates for key. A missing key is reported
	// as ok=false with a nil error.
	Read(ctx context.Context, key string) (coords Coordinates, ok bool, err error)

	// Write stores coordinates for key, replacing any previous value.
	Write(ctx context.Context, key string, coords Coordinates) error
}
