// Package google implements domain.Geocoder against the Google Geocoding API.
package google

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

const (
	providerName   = "google"
	defaultBaseURL = "https://maps.googleapis.com/maps/api/geocode/json"
)

// Client implements domain.Geocoder using the Google Geocoding API.
type Client struct {
	apiKey     string
	httpClient *http.Client
	baseURL    string
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a Google geocoding client.
func NewClient(apiKey string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		apiKey: apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: defaultBaseURL,
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

// Geocode resolves a free-text address to coordinates. Provider statuses and
// transport failures are returned as a domain.ErrorResult.
func (c *Client) Geocode(ctx context.Context, location string) (domain.Outcome, error) {
	if c.apiKey == "" {
		return nil, domain.ErrMissingCredentials
	}

	params := url.Values{
		"address": {location},
		"key":     {c.apiKey},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	start := time.Now()
	outcome, err := c.do(req)
	if err != nil {
		return nil, err
	}
	c.metrics.ObserveRequest(providerName, outcomeLabel(outcome), time.Since(start))

	if e, ok := outcome.(domain.ErrorResult); ok {
		c.logger.Debug("google geocode failed", "location", location, "status", e.Status, "message", e.Message)
	}
	return outcome, nil
}

func (c *Client) do(req *http.Request) (domain.Outcome, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return nil, fmt.Errorf("google geocode request: %w", ctxErr)
		}
		return domain.NewErrorResult(domain.StatusUnknownError, err.Error()), nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return domain.NewErrorResult(statusForHTTP(resp.StatusCode),
			fmt.Sprintf("google API error: status %d: %s", resp.StatusCode, body)), nil
	}

	var gr response
	if err := json.NewDecoder(resp.Body).Decode(&gr); err != nil {
		return domain.NewErrorResult(domain.StatusUnknownError, fmt.Sprintf("decode response: %v", err)), nil
	}

	switch gr.Status {
	case statusOK:
		if len(gr.Results) == 0 {
			return domain.NewErrorResult(domain.StatusZeroResults, ""), nil
		}
		loc := gr.Results[0].Geometry.Location
		return domain.NewCoordinates(loc.Lat, loc.Lng), nil
	case "":
		return domain.NewErrorResult(domain.StatusUnknownError, "missing status in response"), nil
	default:
		return domain.NewErrorResult(domain.Status(gr.Status), gr.ErrorMessage), nil
	}
}

func statusForHTTP(code int) domain.Status {
	switch code {
	case http.StatusBadRequest:
		return domain.StatusInvalidRequest
	case http.StatusUnauthorized, http.StatusForbidden:
		return domain.StatusRequestDenied
	case http.StatusTooManyRequests:
		return domain.StatusOverQueryLimit
	default:
		return domain.StatusUnknownError
	}
}

func outcomeLabel(o domain.Outcome) string {
	if e, ok := o.(domain.ErrorResult); ok {
		return string(e.Status)
	}
	return "ok"
}

// Google Geocoding API response types.

const statusOK = "OK"

type response struct {
	Results      []result `json:"results"`
	Status       string   `json:"status"`
	ErrorMessage string   `json:"error_message,omitempty"`
}

type result struct {
	FormattedAddress string   `json:"formatted_address"`
	Geometry         geometry `json:"geometry"`
	PlaceID          string   `json:"place_id"`
}

type geometry struct {
	Location     latLng `json:"location"`
	LocationType string `json:"location_type"`
}

type latLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}
