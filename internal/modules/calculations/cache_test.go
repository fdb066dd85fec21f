package calculations

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/tailrisk/internal/database"
	"github.com/aristath/tailrisk/internal/modules/tailrisk"
)

func newTestCache(t *testing.T, ttl time.Duration) *FitCache {
	t.Helper()
	db, err := database.New(database.Config{
		Path:    "file:" + uuid.NewString() + "?mode=memory&cache=shared",
		Profile: database.ProfileCache,
		Name:    "cache",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Migrate())
	return NewFitCache(db.Conn(), ttl)
}

func testSeries(instrument string, n int) tailrisk.ReturnSeries {
	ts := make([]time.Time, n)
	returns := make([]float64, n)
	start := time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC)
	for i := range returns {
		ts[i] = start.AddDate(0, 0, i)
		// deterministic, heavy-ish two-sided pattern
		x := float64(i%97+1) / 98
		returns[i] = 0.01 * (math.Pow(x, -0.4) - 1)
		if i%2 == 0 {
			returns[i] = -returns[i]
		}
	}
	return tailrisk.NewReturnSeries(instrument, ts, returns)
}

func sampleFit() *tailrisk.Fit {
	return &tailrisk.Fit{
		Instrument: "AAPL",
		N:          500,
		MeanReturn: 0.0004,
		Variance:   0.0003,
		Curve: tailrisk.HillCurve{
			KMin:       5,
			KMax:       6,
			Points:     []tailrisk.HillPoint{{K: 5, Alpha: 3, Gamma: 1.0 / 3, Threshold: 0.04}},
			Degenerate: []tailrisk.Diagnostic{{K: 6, Kind: "DegenerateTail", Reason: "flat"}},
		},
		Selection: tailrisk.Selection{Point: tailrisk.HillPoint{K: 5, Alpha: 3}, Strategy: "amse", Window: 23},
		Model:     tailrisk.TailModel{Xi: 1.0 / 3, Beta: 0.013, Threshold: 0.04, N: 500, NU: 5, ScaleMethod: "hill"},
	}
}

func TestFitCache_PutGet(t *testing.T) {
	cache := newTestCache(t, time.Hour)
	ctx := context.Background()

	_, ok, err := cache.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	want := sampleFit()
	require.NoError(t, cache.Put(ctx, "k1", want))

	got, ok, err := cache.Get(ctx, "k1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, want, got)
}

func TestFitCache_Expiry(t *testing.T) {
	cache := newTestCache(t, time.Minute)
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)
	cache.now = func() time.Time { return now }

	require.NoError(t, cache.Put(ctx, "k1", sampleFit()))

	now = now.Add(2 * time.Minute)
	_, ok, err := cache.Get(ctx, "k1")
	require.NoError(t, err)
	assert.False(t, ok)

	purged, err := cache.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)
}

func TestFitCache_DeleteInstrument(t *testing.T) {
	cache := newTestCache(t, time.Hour)
	ctx := context.Background()
	require.NoError(t, cache.Put(ctx, "k1", sampleFit()))

	require.NoError(t, cache.DeleteInstrument(ctx, "AAPL"))

	_, ok, err := cache.Get(ctx, "k1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFitKey(t *testing.T) {
	series := testSeries("AAPL", 200)
	key := FitKey(series, "fp1")

	assert.Len(t, key, 32)
	assert.Equal(t, key, FitKey(series, "fp1"))
	assert.NotEqual(t, key, FitKey(series, "fp2"))
	assert.NotEqual(t, key, FitKey(testSeries("MSFT", 200), "fp1"))

	changed := testSeries("AAPL", 200)
	changed.Observations[100].Return += 1e-12
	assert.NotEqual(t, key, FitKey(changed, "fp1"))
}

type countingFitter struct {
	next  tailrisk.Fitter
	calls int
}

func (c *countingFitter) Fit(ctx context.Context, series tailrisk.ReturnSeries) (*tailrisk.Fit, error) {
	c.calls++
	return c.next.Fit(ctx, series)
}

func TestCachedFitter(t *testing.T) {
	engine, err := tailrisk.NewEngine(tailrisk.DefaultConfig(), zerolog.Nop())
	require.NoError(t, err)
	counting := &countingFitter{next: engine}
	fitter := NewCachedFitter(counting, newTestCache(t, time.Hour), engine.Fingerprint(), zerolog.Nop())
	ctx := context.Background()
	series := testSeries("AAPL", 600)

	first, err := fitter.Fit(ctx, series)
	require.NoError(t, err)
	second, err := fitter.Fit(ctx, series)
	require.NoError(t, err)

	assert.Equal(t, 1, counting.calls)
	assert.Equal(t, first.Model, second.Model)
	assert.Equal(t, first.Selection.Point, second.Selection.Point)
}

func TestCachedFitter_FailuresAreNotCached(t *testing.T) {
	engine, err := tailrisk.NewEngine(tailrisk.DefaultConfig(), zerolog.Nop())
	require.NoError(t, err)
	counting := &countingFitter{next: engine}
	fitter := NewCachedFitter(counting, newTestCache(t, time.Hour), engine.Fingerprint(), zerolog.Nop())
	short := testSeries("SHORT", 20)

	for i := 0; i < 2; i++ {
		_, err := fitter.Fit(context.Background(), short)
		assert.True(t, errors.Is(err, tailrisk.ErrInsufficientData))
	}
	assert.Equal(t, 2, counting.calls)
}
