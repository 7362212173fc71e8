package pipeline_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/couchcryptid/geocode-cache-service/internal/domain"
	"github.com/couchcryptid/geocode-cache-service/internal/observability"
	"github.com/couchcryptid/geocode-cache-service/internal/pipeline"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockExtractor struct {
	batches [][]domain.RawRequest
	errs    []error
	index   atomic.Int64
}

func (m *mockExtractor) ExtractBatch(ctx context.Context, _ int) ([]domain.RawRequest, error) {
	i := int(m.index.Add(1) - 1)
	if i < len(m.errs) && m.errs[i] != nil {
		return nil, m.errs[i]
	}
	if i >= len(m.batches) {
		// block until context cancelled to simulate waiting for messages
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return m.batches[i], nil
}

type mockTransformer struct {
	err error
}

func (m *mockTransformer) Transform(_ context.Context, raw domain.RawRequest) (domain.OutputMessage, error) {
	if m.err != nil {
		return domain.OutputMessage{}, m.err
	}
	return domain.OutputMessage{Key: raw.Key, Value: raw.Value}, nil
}

type mockLoader struct {
	mu     sync.Mutex
	loaded []domain.OutputMessage
	err    error
}

func (m *mockLoader) LoadBatch(_ context.Context, msgs []domain.OutputMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.loaded = append(m.loaded, msgs...)
	return nil
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func request(location string) domain.RawRequest {
	return domain.RawRequest{Key: []byte(location), Value: []byte(location), Topic: "geocode-requests"}
}

func run(t *testing.T, p *pipeline.Pipeline) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, p.Run(ctx))
}

// --- pipeline ---

func TestPipeline_Run_HappyPath(t *testing.T) {
	ext := &mockExtractor{batches: [][]domain.RawRequest{{request("New York, NY"), request("Paris")}}}
	ldr := &mockLoader{}
	metrics := observability.NewMetricsForTesting()

	p := pipeline.New(ext, &mockTransformer{}, ldr, discard(), metrics, 10)
	run(t, p)

	require.Len(t, ldr.loaded, 2)
	assert.Equal(t, []byte("New York, NY"), ldr.loaded[0].Key)
	require.NoError(t, p.CheckReadiness(context.Background()))
	assert.InDelta(t, 2, testutil.ToFloat64(metrics.MessagesConsumed), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(metrics.MessagesProduced), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(metrics.PipelineRunning), 0)
}

func TestPipeline_Run_ContextCancellation(t *testing.T) {
	ldr := &mockLoader{}
	p := pipeline.New(&mockExtractor{}, &mockTransformer{}, ldr, discard(), observability.NewMetricsForTesting(), 10)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, p.Run(ctx))
	assert.Empty(t, ldr.loaded)
	assert.Error(t, p.CheckReadiness(context.Background()))
}

func TestPipeline_Run_TransformErrorCommitsAndSkips(t *testing.T) {
	var commits atomic.Int32
	raw := request("x")
	raw.Commit = func(context.Context) error {
		commits.Add(1)
		return nil
	}
	ext := &mockExtractor{batches: [][]domain.RawRequest{{raw}}}
	ldr := &mockLoader{}
	metrics := observability.NewMetricsForTesting()

	p := pipeline.New(ext, &mockTransformer{err: errors.New("bad data")}, ldr, discard(), metrics, 10)
	run(t, p)

	assert.Empty(t, ldr.loaded)
	assert.Equal(t, int32(1), commits.Load())
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.TransformErrors), 0)
	assert.Error(t, p.CheckReadiness(context.Background()))
}

func TestPipeline_Run_CommitsAfterLoad(t *testing.T) {
	var commits atomic.Int32
	raw := request("New York, NY")
	raw.Commit = func(context.Context) error {
		commits.Add(1)
		return nil
	}
	ext := &mockExtractor{batches: [][]domain.RawRequest{{raw}}}

	p := pipeline.New(ext, &mockTransformer{}, &mockLoader{}, discard(), observability.NewMetricsForTesting(), 10)
	run(t, p)

	assert.Equal(t, int32(1), commits.Load())
}

func TestPipeline_Run_LoadFailureDoesNotCommit(t *testing.T) {
	var commits atomic.Int32
	raw := request("New York, NY")
	raw.Commit = func(context.Context) error {
		commits.Add(1)
		return nil
	}
	ext := &mockExtractor{batches: [][]domain.RawRequest{{raw}}}
	ldr := &mockLoader{err: errors.New("broker unavailable")}

	p := pipeline.New(ext, &mockTransformer{}, ldr, discard(), observability.NewMetricsForTesting(), 10)
	run(t, p)

	assert.Zero(t, commits.Load())
	assert.Error(t, p.CheckReadiness(context.Background()))
}

func TestPipeline_Run_RecoversAfterExtractError(t *testing.T) {
	ext := &mockExtractor{
		batches: [][]domain.RawRequest{nil, {request("Paris")}},
		errs:    []error{errors.New("leader not available")},
	}
	ldr := &mockLoader{}

	p := pipeline.New(ext, &mockTransformer{}, ldr, discard(), observability.NewMetricsForTesting(), 10)
	run(t, p)

	require.Len(t, ldr.loaded, 1)
	assert.Equal(t, []byte("Paris"), ldr.loaded[0].Key)
}

// --- transformer ---

func TestGeocodeTransformer_Coordinates(t *testing.T) {
	g := domain.GeocoderFunc(func(_ context.Context, location string) (domain.Outcome, error) {
		assert.Equal(t, "New York, NY", location)
		return domain.NewCoordinates(40.7128, -74.0060), nil
	})

	out, err := pipeline.NewTransformer(g, discard()).Transform(context.Background(),
		domain.RawRequest{Value: []byte(`{"location":"New York, NY"}`)})
	require.NoError(t, err)

	assert.Equal(t, []byte("New York, NY"), out.Key)
	assert.Equal(t, "ok", out.Headers["outcome"])
	assert.Contains(t, string(out.Value), `"lat":40.7128`)
	assert.Contains(t, string(out.Value), `"lon":-74.006`)
}

func TestGeocodeTransformer_ErrorResultIsAnswered(t *testing.T) {
	g := domain.GeocoderFunc(func(context.Context, string) (domain.Outcome, error) {
		return domain.NewErrorResult(domain.StatusZeroResults, ""), nil
	})

	out, err := pipeline.NewTransformer(g, discard()).Transform(context.Background(),
		domain.RawRequest{Value: []byte("Nonexistent Place")})
	require.NoError(t, err)

	assert.Equal(t, "ZERO_RESULTS", out.Headers["outcome"])
	assert.Contains(t, string(out.Value), `"status":"ZERO_RESULTS"`)
	assert.NotContains(t, string(out.Value), `"lat"`)
}

func TestGeocodeTransformer_HardFailure(t *testing.T) {
	g := domain.GeocoderFunc(func(context.Context, string) (domain.Outcome, error) {
		return nil, domain.ErrMissingCredentials
	})

	_, err := pipeline.NewTransformer(g, discard()).Transform(context.Background(),
		domain.RawRequest{Value: []byte("Paris")})
	require.ErrorIs(t, err, domain.ErrMissingCredentials)
}

func TestGeocodeTransformer_EmptyLocation(t *testing.T) {
	called := false
	g := domain.GeocoderFunc(func(context.Context, string) (domain.Outcome, error) {
		called = true
		return nil, nil
	})

	_, err := pipeline.NewTransformer(g, discard()).Transform(context.Background(),
		domain.RawRequest{Value: []byte(`{"location":"  "}`)})
	require.ErrorIs(t, err, domain.ErrEmptyLocation)
	assert.False(t, called)
}
