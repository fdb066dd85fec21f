package calculations

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockEvictor implements InstrumentEvictor for testing
type mockEvictor struct {
	deleted []string
	err     error
}

func (m *mockEvictor) DeleteInstrument(ctx context.Context, instrument string) error {
	if m.err != nil {
		return m.err
	}
	m.deleted = append(m.deleted, instrument)
	return nil
}

func TestStaleFitEvictor_FirstSightNeedsNoEviction(t *testing.T) {
	cache := &mockEvictor{}
	evictor := NewStaleFitEvictor(cache, zerolog.Nop())

	evicted, err := evictor.Sync(context.Background(), map[string]time.Time{"AAPL": time.Now()})

	require.NoError(t, err)
	assert.Zero(t, evicted)
	assert.Empty(t, cache.deleted)
}

func TestStaleFitEvictor_Sync(t *testing.T) {
	cache := &mockEvictor{}
	evictor := NewStaleFitEvictor(cache, zerolog.Nop())
	t0 := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	evicted, err := evictor.Sync(context.Background(), map[string]time.Time{"AAPL": t0, "MSFT": t0, "GONE": t0})
	require.NoError(t, err)
	assert.Zero(t, evicted)

	assert.Empty(t, evictor.stale(map[string]time.Time{"AAPL": t0, "MSFT": t0, "GONE": t0}))
	assert.Equal(t, []string{"MSFT"}, evictor.stale(map[string]time.Time{"AAPL": t0, "MSFT": t0.Add(time.Hour), "GONE": t0}))

	evicted, err = evictor.Sync(context.Background(), map[string]time.Time{"AAPL": t0, "MSFT": t0.Add(time.Hour)})
	require.NoError(t, err)
	assert.Equal(t, 2, evicted)
	assert.Equal(t, []string{"GONE", "MSFT"}, cache.deleted)
}

func TestStaleFitEvictor_SyncError(t *testing.T) {
	cache := &mockEvictor{}
	evictor := NewStaleFitEvictor(cache, zerolog.Nop())
	t0 := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	_, err := evictor.Sync(context.Background(), map[string]time.Time{"AAPL": t0})
	require.NoError(t, err)

	cache.err = errors.New("database is locked")
	_, err = evictor.Sync(context.Background(), map[string]time.Time{"AAPL": t0.Add(time.Minute)})

	assert.EqualError(t, err, "database is locked")
	assert.Equal(t, []string{"AAPL"}, evictor.stale(map[string]time.Time{"AAPL": t0.Add(time.Minute)}), "state is kept when eviction fails")
}
