package tailrisk

import (
	"math"

	"github.com/aristath/tailrisk/pkg/formulas"
)

// SlopeSelector is the "eyeball" rule: smooth the Hill shape curve gamma(k), take the
// absolute gradient, smooth that again and pick the k where the curve is flattest.
type SlopeSelector struct {
	CurveSigma float64
	SlopeSigma float64
	TieEpsilon float64
}

// Name implements ThresholdSelector.
func (s SlopeSelector) Name() string { return SelectorSlope }

// Select implements ThresholdSelector.
func (s SlopeSelector) Select(curve HillCurve, n int) (Selection, error) {
	if curve.Len() < minUsablePoints {
		return Selection{}, unstable(curve)
	}

	ks := curve.Ks()
	smoothed := formulas.GaussianFilter(curve.Gammas(), s.CurveSigma)

	slope := formulas.Gradient(smoothed, ks)
	for i := range slope {
		slope[i] = math.Abs(slope[i])
	}
	scores := formulas.GaussianFilter(slope, s.SlopeSigma)

	best, ok := argminPreferLarger(scores, s.TieEpsilon)
	if !ok {
		return Selection{}, newStageError(StageThresholdSelection, ErrUnstableTail, "no finite slope on the Hill curve")
	}

	points := make([]SmoothedPoint, len(ks))
	for i, p := range curve.Points {
		points[i] = SmoothedPoint{K: p.K, Value: smoothed[i], Score: scores[i]}
	}

	chosen := curve.Points[best]
	return Selection{
		Point:     chosen,
		Strategy:  s.Name(),
		Score:     scores[best],
		Variance:  chosen.Alpha * chosen.Alpha / float64(chosen.K),
		Stability: math.Abs(chosen.Gamma - smoothed[best]),
		Window:    2*int(4*s.CurveSigma+0.5) + 1,
		Curve:     points,
	}, nil
}
