package domain

import "fmt"

// Outcome is the result of a single geocode call. It is implemented only by
// Coordinates and ErrorResult.
type Outcome interface {
	outcome()
}

// Coordinates is a resolved WGS-84 position plus cache provenance.
type Coordinates struct {
	Lat float64
	Lon float64

	fromCache bool
	cached    bool
}

// NewCoordinates returns a position with no provenance flags set. Geocoding
// providers and cache stores use it to build results.
func NewCoordinates(lat, lon float64) Coordinates {
	return Coordinates{Lat: lat, Lon: lon}
}

// cacheHit builds a result served from the cache.
func cacheHit(lat, lon float64) Coordinates {
	return Coordinates{Lat: lat, Lon: lon, fromCache: true}
}

// persisted builds a fresh provider result that was written to the cache.
func persisted(lat, lon float64) Coordinates {
	return Coordinates{Lat: lat, Lon: lon, cached: true}
}

// FromCache reports whether the value was served from the cache.
func (c Coordinates) FromCache() bool { return c.fromCache }

// Cached reports whether a fresh provider result was persisted to the cache
// during the call that produced it. Always false when FromCache is true.
func (c Coordinates) Cached() bool { return c.cached }

func (c Coordinates) String() string {
	return fmt.Sprintf("%.6f,%.6f", c.Lat, c.Lon)
}

func (Coordinates) outcome() {}

// Status is a provider-reported failure code.
type Status string

// Provider failure statuses. The vocabulary follows the Google Geocoding API;
// other providers map their failures onto it.
const (
	StatusZeroResults    Status = "ZERO_RESULTS"
	StatusOverQueryLimit Status = "OVER_QUERY_LIMIT"
	StatusRequestDenied  Status = "REQUEST_DENIED"
	StatusInvalidRequest Status = "INVALID_REQUEST"
	StatusUnknownError   Status = "UNKNOWN_ERROR"
)

// ErrorResult describes why a provider could not resolve a location. It is
// never cached.
type ErrorResult struct {
	Status  Status
	Message string // optional provider detail
}

// NewErrorResult returns an ErrorResult for the given status.
func NewErrorResult(status Status, message string) ErrorResult {
	return ErrorResult{Status: status, Message: message}
}

func (e ErrorResult) String() string {
	if e.Message == "" {
		return string(e.Status)
	}
	return fmt.Sprintf("%s: %s", e.Status, e.Message)
}

func (ErrorResult) outcome() {}
