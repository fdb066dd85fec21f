package comparison

import (
	"bytes"
	"encoding/csv"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/tailrisk/internal/modules/tailrisk"
)

func TestWriteSummaryCSV(t *testing.T) {
	short := Outcome{
		Instrument: "SHORT",
		Err:        &tailrisk.StageError{Instrument: "SHORT", Stage: tailrisk.StageOrderStatistics, Kind: tailrisk.ErrInsufficientData},
		MeanReturn: -0.001,
		Variance:   0.0002,
		StatsValid: true,
	}
	set := newComparableSet("run-1", "", 0.99, []Outcome{okOutcome("MSFT", 0.0005, 0.04, 0.055), short})

	var buf bytes.Buffer
	require.NoError(t, WriteSummaryCSV(&buf, set))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, summaryHeader, records[0])
	assert.Equal(t, []string{"MSFT", "0.0005", "0", "0.04", "0.055", "2", "1", "1", "OK"}, records[1])
	assert.Equal(t, []string{"SHORT", "-0.001", "0.0002", "", "", "1", "2", "2", "InsufficientData"}, records[2])
}

func TestSummaryRows_ReportsUndefinedES(t *testing.T) {
	heavy := okOutcome("HEAVY", 0, 0.09, 0)
	heavy.Result.Estimates[0].ES = tailrisk.Measure{Err: tailrisk.ErrUndefinedExpectedShortfall}
	set := newComparableSet("run-2", "", 0.99, []Outcome{heavy})

	rows := SummaryRows(set)

	require.Len(t, rows, 1)
	assert.Equal(t, "OK", rows[0].Status)
	assert.Nil(t, rows[0].ES)
	require.NotNil(t, rows[0].VaR)
	assert.InDelta(t, 0.09, *rows[0].VaR, 0)
	assert.True(t, errors.Is(heavy.Result.Estimates[0].ES.Err, tailrisk.ErrUndefinedExpectedShortfall))
	assert.Contains(t, rows[0].Error, "undefined expected shortfall")
}

func TestStore(t *testing.T) {
	store := NewStore()
	assert.Nil(t, store.Latest())

	set := newComparableSet("run-3", "", 0.99, nil)
	store.Save(set)

	assert.Same(t, set, store.Latest())
}
