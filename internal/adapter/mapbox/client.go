package mapbox

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/couchcryptid/geocode-cache-service/internal/domain"
	"github.com/couchcryptid/geocode-cache-service/internal/observability"
)

const providerName = "mapbox"

// Client implements domain.Geocoder using the Mapbox Geocoding API.
type Client struct {
	token      string
	httpClient *http.Client
	baseURL    string
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a Mapbox geocoding client.
func NewClient(token string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		token: token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: "https://api.mapbox.com/geocoding/v5/mapbox.places",
		metrics: metrics,
		logger:  logger,
	}
}

// WithBaseURL points the client at an alternate endpoint, such as a proxy or
// a test server. An empty url keeps the current endpoint.
func (c *Client) WithBaseURL(u string) *Client {
	if u != "" {
		c.baseURL = u
	}
	return c
}

// Geocode converts a free-text location to coordinates. Mapbox failures are
// mapped onto the domain status vocabulary.
func (c *Client) Geocode(ctx context.Context, location string) (domain.Outcome, error) {
	if c.token == "" {
		return nil, domain.ErrMissingCredentials
	}

	u := fmt.Sprintf("%s/%s.json", c.baseURL, url.PathEscape(location))
	params := url.Values{
		"access_token": {c.token},
		"limit":        {"1"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	start := time.Now()
	outcome, err := c.doRequest(req)
	if err != nil {
		return nil, err
	}

	label := "ok"
	if e, ok := outcome.(domain.ErrorResult); ok {
		label = string(e.Status)
		c.logger.Debug("mapbox geocode failed", "location", location, "status", e.Status, "message", e.Message)
	}
	c.metrics.ObserveRequest(providerName, label, time.Since(start))
	return outcome, nil
}

func (c *Client) doRequest(req *http.Request) (domain.Outcome, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return nil, fmt.Errorf("mapbox geocode request: %w", ctxErr)
		}
		return domain.NewErrorResult(domain.StatusUnknownError, err.Error()), nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return domain.NewErrorResult(statusForHTTP(resp.StatusCode),
			fmt.Sprintf("mapbox API error: status %d: %s", resp.StatusCode, body)), nil
	}

	var mapboxResp response
	if err := json.NewDecoder(resp.Body).Decode(&mapboxResp); err != nil {
		return domain.NewErrorResult(domain.StatusUnknownError, fmt.Sprintf("decode response: %v", err)), nil
	}

	if len(mapboxResp.Features) == 0 || len(mapboxResp.Features[0].Center) != 2 {
		return domain.NewErrorResult(domain.StatusZeroResults, ""), nil
	}

	// Mapbox uses lon,lat order.
	center := mapboxResp.Features[0].Center
	return domain.NewCoordinates(center[1], center[0]), nil
}

func statusForHTTP(code int) domain.Status {
	switch code {
	case http.StatusBadRequest, http.StatusNotFound, http.StatusUnprocessableEntity:
		return domain.StatusInvalidRequest
	case http.StatusUnauthorized, http.StatusForbidden:
		return domain.StatusRequestDenied
	case http.StatusTooManyRequests:
		return domain.StatusOverQueryLimit
	default:
		return domain.StatusUnknownError
	}
}

// Mapbox API response types.

type response struct {
	Features []feature `json:"features"`
}

type feature struct {
	Center    []float64 `json:"center"` // [lon, lat]
	PlaceName string    `json:"place_name"`
	Text      string    `json:"text"`
	Relevance float64   `json:"relevance"`
}
