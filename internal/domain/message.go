package domain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrEmptyLocation is returned when a request carries no location.
var ErrEmptyLocation = errors.New("location is required")

// GeocodeRequest is a lookup request read from the request topic.
type GeocodeRequest struct {
	Location string `json:"location"`
}

// RawRequest is an unprocessed message from the request topic.
type RawRequest struct {
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	Commit    func(ctx context.Context) error
}

// GeocodeResponse is the serialized result of a lookup, shared by the HTTP
// API and the response topic. Exactly one of the coordinate block or Status
// is populated.
type GeocodeResponse struct {
	Location  string   `json:"location"`
	Lat       *float64 `json:"lat,omitempty"`
	Lon       *float64 `json:"lon,omitempty"`
	FromCache bool     `json:"from_cache,omitempty"`
	Cached    bool     `json:"cached,omitempty"`

	Status  Status `json:"status,omitempty"`
	Message string `json:"message,omitempty"`

	ResolvedAt time.Time `json:"resolved_at"`
}

// OK reports whether the response holds coordinates.
func (r GeocodeResponse) OK() bool {
	return r.Lat != nil && r.Lon != nil
}

// OutputMessage is the serialized form destined for the response topic.
type OutputMessage struct {
	Key     []byte
	Value   []byte
	Headers map[string]string
}

// ParseRawRequest decodes a request message. The value is either a JSON
// object with a "location" field or a bare location string. Anything that is
// not a well-formed JSON object, including text that merely starts with "{",
// is taken verbatim as the location.
func ParseRawRequest(raw RawRequest) (GeocodeRequest, error) {
	var req GeocodeRequest
	if isJSONObject(raw.Value) {
		if err := json.Unmarshal(raw.Value, &req); err != nil {
			return GeocodeRequest{}, fmt.Errorf("parse geocode request: %w", err)
		}
	} else {
		req.Location = string(raw.Value)
	}
	if strings.TrimSpace(req.Location) == "" {
		return GeocodeRequest{}, ErrEmptyLocation
	}
	return req, nil
}

func isJSONObject(b []byte) bool {
	return strings.HasPrefix(strings.TrimSpace(string(b)), "{") && json.Valid(b)
}

// NewResponse converts an outcome into its serialized representation.
func NewResponse(location string, outcome Outcome) GeocodeResponse {
	resp := GeocodeResponse{
		Location:   location,
		ResolvedAt: clock.Now().UTC(),
	}
	switch o := outcome.(type) {
	case Coordinates:
		lat, lon := o.Lat, o.Lon
		resp.Lat = &lat
		resp.Lon = &lon
		resp.FromCache = o.FromCache()
		resp.Cached = o.Cached()
	case ErrorResult:
		resp.Status = o.Status
		resp.Message = o.Message
	}
	return resp
}

// SerializeResponse marshals a response into an output message keyed by
// location.
func SerializeResponse(resp GeocodeResponse) (OutputMessage, error) {
	data, err := json.Marshal(resp)
	if err != nil {
		return OutputMessage{}, fmt.Errorf("serialize geocode response: %w", err)
	}
	outcome := "ok"
	if !resp.OK() {
		outcome = string(resp.Status)
	}
	return OutputMessage{
		Key:   []byte(resp.Location),
		Value: data,
		Headers: map[string]string{
			"outcome":     outcome,
			"resolved_at": resp.ResolvedAt.Format(time.RFC3339),
		},
	}, nil
}
