package tailrisk

import (
	"math"
	"math/rand/v2"
	"time"

	"gonum.org/v1/gonum/stat/distuv"
)

var fixtureStart = time.Date(2022, 1, 3, 0, 0, 0, 0, time.UTC)

func seriesFromReturns(instrument string, returns []float64) ReturnSeries {
	ts := make([]time.Time, len(returns))
	for i := range ts {
		ts[i] = fixtureStart.AddDate(0, 0, i)
	}
	return NewReturnSeries(instrument, ts, returns)
}

// uniforms draws n values in (0, 1) from a seeded PCG stream.
func uniforms(n int, seed uint64) []float64 {
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	out := make([]float64, n)
	for i := range out {
		u := r.Float64()
		for u == 0 {
			u = r.Float64()
		}
		out[i] = u
	}
	return out
}

func normalReturns(n int, seed uint64) []float64 {
	out := uniforms(n, seed)
	for i, u := range out {
		out[i] = distuv.UnitNormal.Quantile(u)
	}
	return out
}

// paretoLosses samples a Pareto(xm=1, alpha) loss distribution by inversion.
func paretoLosses(n int, alpha float64, seed uint64) []float64 {
	out := uniforms(n, seed)
	for i, u := range out {
		out[i] = math.Pow(1-u, -1/alpha)
	}
	return out
}

// gpdLosses samples a Generalized Pareto(xi, beta) distribution by inversion.
func gpdLosses(n int, xi, beta float64, seed uint64) []float64 {
	out := uniforms(n, seed)
	for i, u := range out {
		out[i] = beta / xi * (math.Pow(1-u, -xi) - 1)
	}
	return out
}

func negate(values []float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = -v
	}
	return out
}

// flatCurve builds a Hill curve with one point per k in [kMin, kMax] using alpha(k).
func flatCurve(kMin, kMax int, alpha func(k int) float64) HillCurve {
	curve := HillCurve{KMin: kMin, KMax: kMax}
	for k := kMin; k <= kMax; k++ {
		a := alpha(k)
		curve.Points = append(curve.Points, HillPoint{K: k, Alpha: a, Gamma: 1 / a, Threshold: 1 / float64(k)})
	}
	return curve
}
