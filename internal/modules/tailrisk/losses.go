package tailrisk

import (
	"math"
	"sort"
)

// PrepareLosses turns a return series into its descending loss sample.
//
// The series must hold at least minObservations values, and every return must be
// finite: bad values are rejected, never dropped. Equal losses keep chronological
// order so the sample (and everything derived from it) is reproducible.
func PrepareLosses(series ReturnSeries, minObservations int) (LossSample, error) {
	n := series.Len()
	if n < minObservations {
		err := newStageError(StageOrderStatistics, ErrInsufficientData,
			"%d observations, need at least %d", n, minObservations)
		err.Instrument = series.Instrument
		return LossSample{}, err
	}

	for i, obs := range series.Observations {
		if math.IsNaN(obs.Return) || math.IsInf(obs.Return, 0) {
			err := newStageError(StageOrderStatistics, ErrInvalidObservation,
				"observation %d at %s has non-finite return %v",
				i, obs.Timestamp.Format("2006-01-02"), obs.Return)
			err.Instrument = series.Instrument
			return LossSample{}, err
		}
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	obs := series.Observations
	sort.SliceStable(order, func(a, b int) bool {
		la, lb := -obs[order[a]].Return, -obs[order[b]].Return
		if la != lb {
			return la > lb
		}
		return obs[order[a]].Timestamp.Before(obs[order[b]].Timestamp)
	})

	losses := make([]float64, n)
	for i, idx := range order {
		losses[i] = -obs[idx].Return
	}

	return LossSample{instrument: series.Instrument, losses: losses}, nil
}

// newLossSample builds a sample from losses that are already sorted descending.
func newLossSample(instrument string, sorted []float64) LossSample {
	losses := make([]float64, len(sorted))
	copy(losses, sorted)
	return LossSample{instrument: instrument, losses: losses}
}
