package testing

import (
	"math/rand/v2"
	"time"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/aristath/tailrisk/internal/modules/tailrisk"
)

// FixtureStart is the first trading day of every fixture series.
var FixtureStart = time.Date(2021, 1, 4, 0, 0, 0, 0, time.UTC)

// NormalSeries returns n daily returns drawn from N(0, scale²) with a seeded PCG stream.
func NormalSeries(instrument string, n int, scale float64, seed uint64) tailrisk.ReturnSeries {
	r := rand.New(rand.NewPCG(seed, seed+1))
	ts := make([]time.Time, n)
	returns := make([]float64, n)
	for i := range returns {
		u := r.Float64()
		for u == 0 {
			u = r.Float64()
		}
		ts[i] = FixtureStart.AddDate(0, 0, i)
		returns[i] = scale * distuv.UnitNormal.Quantile(u)
	}
	return tailrisk.NewReturnSeries(instrument, ts, returns)
}

// NewSeriesFixtures returns a small universe: two usable instruments and one too short
// to estimate with the default configuration.
func NewSeriesFixtures() []tailrisk.ReturnSeries {
	return []tailrisk.ReturnSeries{
		NormalSeries("AAPL", 750, 0.015, 1),
		NormalSeries("MSFT", 750, 0.012, 2),
		NormalSeries("NEWCO", 40, 0.03, 3),
	}
}
