package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/couchcryptid/geocode-cache-service/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- fake DB ---

type fakeRow struct {
	vals []float64
	err  error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for i, d := range dest {
		*(d.(*float64)) = r.vals[i]
	}
	return nil
}

type execCall struct {
	sql  string
	args []any
}

type fakeDB struct {
	rows    map[string][]float64
	execs   []execCall
	execErr error
	readErr error
}

func (f *fakeDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.execs = append(f.execs, execCall{sql: sql, args: args})
	if f.execErr != nil {
		return pgconn.CommandTag{}, f.execErr
	}
	if len(args) == 4 {
		f.rows[args[0].(string)] = []float64{args[1].(float64), args[2].(float64)}
	}
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (f *fakeDB) QueryRow(_ context.Context, _ string, args ...any) pgx.Row {
	if f.readErr != nil {
		return fakeRow{err: f.readErr}
	}
	vals, ok := f.rows[args[0].(string)]
	if !ok {
		return fakeRow{err: pgx.ErrNoRows}
	}
	return fakeRow{vals: vals}
}

func newFake() *fakeDB { return &fakeDB{rows: make(map[string][]float64)} }

var now = time.Date(2024, time.April, 26, 12, 0, 0, 0, time.UTC)

// --- tests ---

func TestStore_ReadMissing(t *testing.T) {
	s := New(newFake(), clockwork.NewFakeClockAt(now))

	_, ok, err := s.Read(context.Background(), "New York, NY")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_WriteThenRead(t *testing.T) {
	db := newFake()
	s := New(db, clockwork.NewFakeClockAt(now))

	require.NoError(t, s.Write(context.Background(), "New York, NY", domain.NewCoordinates(40.7128, -74.0060)))

	require.Len(t, db.execs, 1)
	assert.Contains(t, db.execs[0].sql, "ON CONFLICT (location) DO UPDATE")
	assert.Equal(t, []any{"New York, NY", 40.7128, -74.0060, now}, db.execs[0].args)

	got, ok, err := s.Read(context.Background(), "New York, NY")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, domain.NewCoordinates(40.7128, -74.0060), got)
}

func TestStore_ReadError(t *testing.T) {
	db := newFake()
	db.readErr = errors.New("connection reset")
	s := New(db, clockwork.NewRealClock())

	_, ok, err := s.Read(context.Background(), "x")
	require.Error(t, err)
	assert.False(t, ok)
	assert.Contains(t, err.Error(), "select geocode_cache")
}

func TestStore_WriteError(t *testing.T) {
	db := newFake()
	db.execErr = errors.New("read-only transaction")
	s := New(db, clockwork.NewRealClock())

	err := s.Write(context.Background(), "x", domain.NewCoordinates(1, 1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upsert geocode_cache")
}

func TestStore_EnsureSchema(t *testing.T) {
	db := newFake()
	s := New(db, clockwork.NewRealClock())

	require.NoError(t, s.EnsureSchema(context.Background()))
	require.Len(t, db.execs, 1)
	assert.Contains(t, db.execs[0].sql, "CREATE TABLE IF NOT EXISTS geocode_cache")
}

func TestStore_UnavailableDatabaseDegradesGeocoder(t *testing.T) {
	db := newFake()
	db.readErr = errors.New("dial tcp: connection refused")
	db.execErr = errors.New("dial tcp: connection refused")
	calls := 0
	g := domain.NewCachingGeocoder(domain.GeocoderFunc(func(context.Context, string) (domain.Outcome, error) {
		calls++
		return domain.NewCoordinates(40.7128, -74.0060), nil
	}), New(db, clockwork.NewRealClock()))

	out, err := g.Geocode(context.Background(), "New York, NY")
	require.NoError(t, err)
	coords := out.(domain.Coordinates)
	assert.False(t, coords.FromCache())
	assert.False(t, coords.Cached())
	assert.Equal(t, 1, calls)
}
