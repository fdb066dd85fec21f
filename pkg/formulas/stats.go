package formulas

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Mean calculates the arithmetic mean of a slice of float64 values
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return stat.Mean(data, nil)
}

// PopVariance calculates the population variance (divisor n) of the data
func PopVariance(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return stat.PopVariance(data, nil)
}

// StdDev calculates the sample standard deviation of the data
func StdDev(data []float64) float64 {
	if len(data) < 2 {
		return 0
	}
	return stat.StdDev(data, nil)
}

// CalculateReturns converts prices to percentage returns
// Returns[i] = (Price[i+1] - Price[i]) / Price[i]
// A zero price produces a NaN return so callers reject it instead of reading a fake 0.
func CalculateReturns(prices []float64) []float64 {
	if len(prices) < 2 {
		return []float64{}
	}

	returns := make([]float64, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		if prices[i-1] == 0 {
			returns[i-1] = math.NaN()
			continue
		}
		returns[i-1] = (prices[i] - prices[i-1]) / prices[i-1]
	}

	return returns
}

// IntradayReturns computes (close - open) / open per session.
// Slices must have equal length; a zero open yields NaN.
func IntradayReturns(open, close []float64) []float64 {
	n := len(open)
	if len(close) < n {
		n = len(close)
	}

	returns := make([]float64, n)
	for i := 0; i < n; i++ {
		if open[i] == 0 {
			returns[i] = math.NaN()
			continue
		}
		returns[i] = (close[i] - open[i]) / open[i]
	}
	return returns
}

// AllFinite reports whether every value is neither NaN nor infinite.
func AllFinite(data []float64) bool {
	for _, v := range data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
