package formulas

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// HistoricalVaR returns the empirical p-quantile of the loss distribution, where
// losses are positive numbers (loss = -return).
//
// Args:
//   - losses: Loss observations in any order
//   - confidence: Confidence level (e.g., 0.99 for 99%)
//
// Returns:
//   - VaR expressed as a positive loss, 0 for empty input
func HistoricalVaR(losses []float64, confidence float64) float64 {
	if len(losses) == 0 {
		return 0
	}

	sorted := make([]float64, len(losses))
	copy(sorted, losses)
	sort.Float64s(sorted)

	return stat.Quantile(clampProbability(confidence), stat.Empirical, sorted, nil)
}

// HistoricalES returns the mean of the worst ceil(n*(1-confidence)) losses, at least one.
func HistoricalES(losses []float64, confidence float64) float64 {
	if len(losses) == 0 {
		return 0
	}

	sorted := make([]float64, len(losses))
	copy(sorted, losses)
	sort.Sort(sort.Reverse(sort.Float64Slice(sorted)))

	tailCount := int(math.Ceil(float64(len(sorted)) * (1 - clampProbability(confidence))))
	if tailCount < 1 {
		tailCount = 1
	}
	if tailCount > len(sorted) {
		tailCount = len(sorted)
	}

	return Mean(sorted[:tailCount])
}

func clampProbability(p float64) float64 {
	switch {
	case p < 0:
		return 0
	case p > 1:
		return 1
	default:
		return p
	}
}
