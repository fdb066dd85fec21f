package tailrisk

import (
	"fmt"
	"math"

	"github.com/aristath/tailrisk/pkg/formulas"
)

// minUsablePoints is the smallest Hill curve a selector will work with.
const minUsablePoints = 3

// ThresholdSelector picks the tail size k (equivalently the threshold X_(k+1)) from a
// Hill curve. Implementations must be deterministic.
type ThresholdSelector interface {
	Name() string
	Select(curve HillCurve, n int) (Selection, error)
}

// NewSelector builds the selector named by cfg.Selector.
func NewSelector(cfg Config) (ThresholdSelector, error) {
	switch cfg.Selector {
	case SelectorAMSE, "":
		return AMSESelector{
			Window:     cfg.SmoothingWindow,
			Kernel:     cfg.SmoothingKernel,
			Rho:        cfg.SecondOrderRho,
			TieEpsilon: cfg.TieTolerance(),
		}, nil
	case SelectorSlope:
		return SlopeSelector{
			CurveSigma: cfg.CurveSigma,
			SlopeSigma: cfg.SlopeSigma,
			TieEpsilon: cfg.TieTolerance(),
		}, nil
	default:
		return nil, fmt.Errorf("%w: unknown threshold selector %q", ErrInvalidConfig, cfg.Selector)
	}
}

// AMSESelector smooths the Hill curve and minimises an estimate of the asymptotic
// mean squared error of alpha(k):
//
//	AMSE(k) = bias(k)^2 + alpha(k)^2 / k
//	bias(k) = k * |d alpha~/dk| / |rho|
//
// where alpha~ is the smoothed curve. Under second-order regular variation the Hill
// bias grows like k^-rho, so k times the local slope recovers it up to the factor
// -rho. Ties within TieEpsilon go to the larger k.
type AMSESelector struct {
	Window     int // total smoothing width in points; 0 = AutoWindow(n)
	Kernel     string
	Rho        float64
	TieEpsilon float64
}

// Name implements ThresholdSelector.
func (s AMSESelector) Name() string { return SelectorAMSE }

// Select implements ThresholdSelector.
func (s AMSESelector) Select(curve HillCurve, n int) (Selection, error) {
	if curve.Len() < minUsablePoints {
		return Selection{}, unstable(curve)
	}

	ks := curve.Ks()
	alphas := curve.Alphas()

	width := s.Window
	if width <= 0 {
		width = AutoWindow(n)
	}
	half := width / 2

	var smoothed []float64
	switch s.Kernel {
	case KernelGaussian:
		smoothed = formulas.GaussianFilter(alphas, math.Max(1, float64(half)/2))
	case KernelMovingAverage, "":
		smoothed = formulas.MovingAverage(alphas, half)
	default:
		return Selection{}, newStageError(StageThresholdSelection, ErrInvalidConfig, "unknown smoothing kernel %q", s.Kernel)
	}

	slope := formulas.Gradient(smoothed, ks)
	localVar := formulas.WindowVariance(alphas, half)

	rho := math.Abs(s.Rho)
	if rho == 0 {
		rho = 1
	}

	bias := make([]float64, len(ks))
	variance := make([]float64, len(ks))
	scores := make([]float64, len(ks))
	for i := range ks {
		bias[i] = ks[i] * math.Abs(slope[i]) / rho
		variance[i] = alphas[i] * alphas[i] / ks[i]
		scores[i] = bias[i]*bias[i] + variance[i]
	}

	best, ok := argminPreferLarger(scores, s.TieEpsilon)
	if !ok {
		return Selection{}, newStageError(StageThresholdSelection, ErrUnstableTail, "no finite AMSE score on the Hill curve")
	}

	points := make([]SmoothedPoint, len(ks))
	for i, p := range curve.Points {
		points[i] = SmoothedPoint{K: p.K, Value: smoothed[i], Score: scores[i]}
	}

	return Selection{
		Point:         curve.Points[best],
		Strategy:      s.Name(),
		Score:         scores[best],
		Bias:          bias[best],
		Variance:      variance[best],
		Stability:     math.Abs(alphas[best] - smoothed[best]),
		LocalVariance: localVar[best],
		Window:        2*half + 1,
		Curve:         points,
	}, nil
}

// argminPreferLarger returns the largest index whose score lies within eps of the
// minimum finite score.
func argminPreferLarger(scores []float64, eps float64) (int, bool) {
	minScore := math.Inf(1)
	for _, v := range scores {
		if !math.IsNaN(v) && v < minScore {
			minScore = v
		}
	}
	if math.IsInf(minScore, 1) {
		return 0, false
	}

	best := -1
	for i, v := range scores {
		if !math.IsNaN(v) && v <= minScore+eps {
			best = i
		}
	}
	return best, true
}

func unstable(curve HillCurve) error {
	return newStageError(StageThresholdSelection, ErrUnstableTail,
		"%d usable Hill points in k=[%d,%d] (%d degenerate), need at least %d",
		curve.Len(), curve.KMin, curve.KMax, len(curve.Degenerate), minUsablePoints)
}
