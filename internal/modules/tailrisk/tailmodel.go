package tailrisk

import (
	"math"

	"gonum.org/v1/gonum/optimize"

	"github.com/aristath/tailrisk/pkg/formulas"
)

// minMLEExceedances is the smallest exceedance count the likelihood fit accepts.
const minMLEExceedances = 5

// xiZeroTolerance treats shapes this close to zero as the exponential limit.
const xiZeroTolerance = 1e-9

// FitTailModel converts the selected Hill point into Generalized Pareto parameters
// under the peaks-over-threshold approximation:
//
//	xi = 1/alpha, u = X_(k+1), n_u = k
//
// The scale comes from the chosen method: "hill" uses beta = u*xi, "mle" maximises the
// GPD likelihood of the k exceedances over u with xi held fixed.
func FitTailModel(losses LossSample, sel Selection, method string) (TailModel, error) {
	k := sel.Point.K
	if k < 1 || k >= losses.Len() {
		return TailModel{}, newStageError(StageTailFit, ErrDegenerateFit,
			"selected k=%d outside sample of %d losses", k, losses.Len())
	}
	if !(sel.Point.Alpha > 0) || math.IsInf(sel.Point.Alpha, 0) {
		return TailModel{}, newStageError(StageTailFit, ErrDegenerateFit,
			"tail index %v is not a positive finite number", sel.Point.Alpha)
	}

	xi := 1 / sel.Point.Alpha
	u := sel.Point.Threshold

	var beta float64
	switch method {
	case ScaleHill, "":
		method = ScaleHill
		beta = u * xi
	case ScaleMLE:
		excess := losses.Largest(k)
		for i := range excess {
			excess[i] -= u
		}
		fitted, err := fitScaleMLE(excess, xi)
		if err != nil {
			return TailModel{}, err
		}
		beta = fitted
	default:
		return TailModel{}, newStageError(StageTailFit, ErrInvalidConfig, "unknown scale estimator %q", method)
	}

	model := TailModel{
		Xi:          xi,
		Beta:        beta,
		Threshold:   u,
		N:           losses.Len(),
		NU:          k,
		ScaleMethod: method,
	}
	if err := ValidateTailModel(model); err != nil {
		return TailModel{}, err
	}
	return model, nil
}

// ValidateTailModel rejects parameters outside the GPD domain the risk formulas need.
func ValidateTailModel(m TailModel) error {
	switch {
	case math.IsNaN(m.Xi) || math.IsInf(m.Xi, 0):
		return newStageError(StageTailFit, ErrDegenerateFit, "shape xi=%v is not finite", m.Xi)
	case math.IsNaN(m.Beta) || math.IsInf(m.Beta, 0):
		return newStageError(StageTailFit, ErrDegenerateFit, "scale beta=%v is not finite", m.Beta)
	case m.Xi <= -1:
		return newStageError(StageTailFit, ErrDegenerateFit, "shape xi=%.6g must exceed -1", m.Xi)
	case m.Beta <= 0:
		return newStageError(StageTailFit, ErrDegenerateFit, "scale beta=%.6g must be positive", m.Beta)
	case m.NU < 1 || m.NU > m.N:
		return newStageError(StageTailFit, ErrDegenerateFit, "exceedance count %d outside [1, %d]", m.NU, m.N)
	}
	return nil
}

// fitScaleMLE estimates the GPD scale for the exceedances with the shape fixed.
// The search runs on log(beta) so the scale stays positive.
func fitScaleMLE(excess []float64, xi float64) (float64, error) {
	if len(excess) < minMLEExceedances {
		return 0, newStageError(StageTailFit, ErrDegenerateFit,
			"%d exceedances, need at least %d for the likelihood fit", len(excess), minMLEExceedances)
	}

	guess := formulas.StdDev(excess)
	if !(guess > 0) {
		guess = formulas.Mean(excess)
	}
	if !(guess > 0) {
		return 0, newStageError(StageTailFit, ErrDegenerateFit, "exceedances carry no spread")
	}

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			return gpdNegLogLikelihood(excess, xi, math.Exp(x[0]))
		},
	}

	result, err := optimize.Minimize(problem, []float64{math.Log(guess)}, &optimize.Settings{}, &optimize.NelderMead{})
	if err != nil {
		return 0, newStageError(StageTailFit, ErrDegenerateFit, "likelihood fit failed: %v", err)
	}
	if math.IsInf(result.F, 1) || math.IsNaN(result.F) {
		return 0, newStageError(StageTailFit, ErrDegenerateFit, "likelihood fit ended outside the support (status %v)", result.Status)
	}

	return math.Exp(result.X[0]), nil
}

// gpdNegLogLikelihood is -log L for excesses y >= 0 of a GPD(xi, beta).
// Points outside the support make the likelihood zero (+Inf here).
func gpdNegLogLikelihood(y []float64, xi, beta float64) float64 {
	if !(beta > 0) {
		return math.Inf(1)
	}

	n := float64(len(y))
	if math.Abs(xi) < xiZeroTolerance {
		sum := 0.0
		for _, v := range y {
			sum += v
		}
		return n*math.Log(beta) + sum/beta
	}

	acc := 0.0
	for _, v := range y {
		z := 1 + xi*v/beta
		if z <= 0 {
			return math.Inf(1)
		}
		acc += math.Log(z)
	}
	return n*math.Log(beta) + (1+1/xi)*acc
}
