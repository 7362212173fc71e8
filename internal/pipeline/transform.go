package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/geocode-cache-service/internal/domain"
)

// GeocodeTransformer implements Transformer by resolving each request
// through a Geocoder, normally a CachingGeocoder.
type GeocodeTransformer struct {
	geocoder domain.Geocoder
	logger   *slog.Logger
}

// NewTransformer creates a GeocodeTransformer.
func NewTransformer(geocoder domain.Geocoder, logger *slog.Logger) *GeocodeTransformer {
	return &GeocodeTransformer{
		geocoder: geocoder,
		logger:   logger,
	}
}

// Transform parses a request, geocodes it, and serializes the answer.
// Provider failures are answered with an error response; only malformed
// requests and failures that prevent a lookup return an error.
func (t *GeocodeTransformer) Transform(ctx context.Context, raw domain.RawRequest) (domain.OutputMessage, error) {
	req, err := domain.ParseRawRequest(raw)
	if err != nil {
		return domain.OutputMessage{}, err
	}

	outcome, err := t.geocoder.Geocode(ctx, req.Location)
	if err != nil {
		return domain.OutputMessage{}, fmt.Errorf("geocode %q: %w", req.Location, err)
	}
	if e, ok := outcome.(domain.ErrorResult); ok {
		t.logger.Debug("geocode request unresolved", "location", req.Location, "status", e.Status)
	}

	return domain.SerializeResponse(domain.NewResponse(req.Location, outcome))
}
