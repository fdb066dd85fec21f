package tailrisk

import (
	"fmt"
	"math"
)

// minMeanLogExcess absorbs rounding in the log sum when the top of the sample is flat.
const minMeanLogExcess = 1e-12

// BuildHillCurve computes the classical Hill estimator for every tail size k in
// [kMin, kMax]:
//
//	alpha(k) = ( (1/k) * sum_{i=1..k} ln X_(i) - ln X_(k+1) )^-1
//
// kMax is capped at n-1. A k whose log argument X_(k+1) is not strictly positive, or
// whose mean log excess is not positive (a flat top of the sample), is skipped and
// recorded as a DegenerateTail diagnostic. An empty window yields an empty curve; the
// selector decides whether that is fatal.
func BuildHillCurve(losses LossSample, kMin, kMax int) (HillCurve, error) {
	if kMin < 1 {
		return HillCurve{}, newStageError(StageHillCurve, ErrInvalidConfig, "k_min must be at least 1, got %d", kMin)
	}

	n := losses.Len()
	if kMax > n-1 {
		kMax = n - 1
	}

	curve := HillCurve{KMin: kMin, KMax: kMax}
	if kMax < kMin {
		return curve, nil
	}
	curve.Points = make([]HillPoint, 0, kMax-kMin+1)

	// Running sum of ln X_(i). Once a non-positive loss enters the top k every
	// larger k is degenerate too, because X_(k+1) <= X_(k).
	logSum := 0.0
	for k := 1; k <= kMax; k++ {
		if x := losses.OrderStatistic(k); x > 0 {
			logSum += math.Log(x)
		}
		if k < kMin {
			continue
		}

		next := losses.OrderStatistic(k + 1)
		if next <= 0 {
			curve.Degenerate = append(curve.Degenerate, degenerate(k, "X_(%d) = %.6g is not strictly positive", k+1, next))
			continue
		}

		gamma := logSum/float64(k) - math.Log(next)
		if !(gamma > minMeanLogExcess) || math.IsInf(gamma, 0) {
			curve.Degenerate = append(curve.Degenerate, degenerate(k, "mean log excess %.6g is not positive", gamma))
			continue
		}

		curve.Points = append(curve.Points, HillPoint{
			K:         k,
			Alpha:     1 / gamma,
			Gamma:     gamma,
			Threshold: next,
		})
	}

	return curve, nil
}

func degenerate(k int, format string, args ...interface{}) Diagnostic {
	return Diagnostic{
		K:      k,
		Kind:   kindNames[ErrDegenerateTail],
		Reason: fmt.Sprintf(format, args...),
	}
}
