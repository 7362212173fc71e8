package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/geocode-cache-service/internal/domain"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ReadinessFunc adapts a function to sharedobs.ReadinessChecker.
type ReadinessFunc func(ctx context.Context) error

// CheckReadiness calls f(ctx).
func (f ReadinessFunc) CheckReadiness(ctx context.Context) error { return f(ctx) }

// Server exposes the geocode API alongside health, readiness, and metrics
// endpoints.
type Server struct {
	httpServer *http.Server
	geocoder   domain.Geocoder
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /v1/geocode, /healthz, /readyz, and
// /metrics routes.
func NewServer(addr string, ready sharedobs.ReadinessChecker, geocoder domain.Geocoder, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		geocoder: geocoder,
		logger:   logger,
	}

	mux.HandleFunc("GET /v1/geocode", s.handleGeocode)
	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

// handleGeocode answers GET /v1/geocode?location=... with a GeocodeResponse.
// Provider failures are reported as 422 with the provider status in the body.
func (s *Server) handleGeocode(w http.ResponseWriter, r *http.Request) {
	location := r.URL.Query().Get("location")
	if location == "" {
		sharedobs.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": domain.ErrEmptyLocation.Error()})
		return
	}

	outcome, err := s.geocoder.Geocode(r.Context(), location)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			status = http.StatusGatewayTimeout
		case errors.Is(err, domain.ErrMissingCredentials):
			status = http.StatusServiceUnavailable
		}
		s.logger.Error("geocode request failed", "location", location, "error", err)
		sharedobs.WriteJSON(w, status, map[string]string{"error": err.Error()})
		return
	}

	resp := domain.NewResponse(location, outcome)
	if !resp.OK() {
		sharedobs.WriteJSON(w, http.StatusUnprocessableEntity, resp)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, resp)
}
