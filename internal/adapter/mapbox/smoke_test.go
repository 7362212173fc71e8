//go:build mapbox

package mapbox

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/couchcryptid/geocode-cache-service/internal/adapter/store/memory"
	"github.com/couchcryptid/geocode-cache-service/internal/domain"
	"github.com/couchcryptid/geocode-cache-service/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// These tests hit the real Mapbox API and require a valid MAPBOX_TOKEN env var.
// Run with: go test -tags=mapbox ./internal/adapter/mapbox/ -v -count=1

func smokeClient(t *testing.T) *Client {
	t.Helper()
	token := os.Getenv("MAPBOX_TOKEN")
	if token == "" {
		t.Fatal("MAPBOX_TOKEN must be set to run smoke tests")
	}
	return &Client{
		token:      token,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    "https://api.mapbox.com/geocoding/v5/mapbox.places",
		metrics:    observability.NewMetricsForTesting(),
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestSmoke_Geocode(t *testing.T) {
	c := smokeClient(t)

	out, err := c.Geocode(context.Background(), "Austin, TX")
	require.NoError(t, err)

	coords, ok := out.(domain.Coordinates)
	require.True(t, ok, "expected Coordinates, got %v", out)
	assert.InDelta(t, 30.27, coords.Lat, 0.1, "lat should be near Austin")
	assert.InDelta(t, -97.74, coords.Lon, 0.1, "lon should be near Austin")
}

func TestSmoke_CachingGeocoder(t *testing.T) {
	c := smokeClient(t)
	cached := domain.NewCachingGeocoder(c, memory.New(10))

	// First call: cache miss → real API call.
	r1, err := cached.Geocode(context.Background(), "Dallas, TX")
	require.NoError(t, err)
	assert.True(t, r1.(domain.Coordinates).Cached())

	// Second call: cache hit → no API call.
	r2, err := cached.Geocode(context.Background(), "Dallas, TX")
	require.NoError(t, err)
	assert.True(t, r2.(domain.Coordinates).FromCache())
	assert.Equal(t, r1.(domain.Coordinates).Lat, r2.(domain.Coordinates).Lat)
}
