package tailrisk

import (
	"math"

	"github.com/aristath/tailrisk/pkg/formulas"
)

// ValueAtRisk returns the loss quantile at confidence p implied by the tail model:
//
//	VaR_p = u + (beta/xi) * ( (n/n_u * (1-p))^(-xi) - 1 )
//
// with the exponential limit u - beta*ln(n/n_u * (1-p)) when xi is zero.
func ValueAtRisk(m TailModel, p float64) (float64, error) {
	if !(p > 0 && p < 1) {
		return 0, newStageError(StageRisk, ErrInvalidConfig, "confidence level %v outside (0, 1)", p)
	}
	if err := ValidateTailModel(m); err != nil {
		return 0, err
	}

	ratio := float64(m.N) / float64(m.NU) * (1 - p)

	var v float64
	if math.Abs(m.Xi) < xiZeroTolerance {
		v = m.Threshold - m.Beta*math.Log(ratio)
	} else {
		v = m.Threshold + (m.Beta/m.Xi)*(math.Pow(ratio, -m.Xi)-1)
	}

	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, newStageError(StageRisk, ErrDegenerateFit, "VaR at p=%v is not finite", p)
	}
	return v, nil
}

// ExpectedShortfall returns the mean loss beyond VaR_p:
//
//	ES_p = VaR_p/(1-xi) + (beta - xi*u)/(1-xi)
//
// The tail mean does not exist for xi >= 1; that case is reported, never approximated.
func ExpectedShortfall(m TailModel, p float64) (float64, error) {
	v, err := ValueAtRisk(m, p)
	if err != nil {
		return 0, err
	}
	if m.Xi >= 1 {
		return 0, newStageError(StageRisk, ErrUndefinedExpectedShortfall,
			"shape xi=%.6g >= 1 has no finite tail mean", m.Xi)
	}

	es := v/(1-m.Xi) + (m.Beta-m.Xi*m.Threshold)/(1-m.Xi)
	if math.IsNaN(es) || math.IsInf(es, 0) {
		return 0, newStageError(StageRisk, ErrDegenerateFit, "ES at p=%v is not finite", p)
	}
	return es, nil
}

// Estimate computes VaR, ES and the variance baseline at confidence p. A failure in one
// measure never replaces or hides another.
func Estimate(m TailModel, p float64, variance float64) RiskEstimate {
	est := RiskEstimate{ConfidenceLevel: p}

	est.VaR.Value, est.VaR.Err = ValueAtRisk(m, p)
	est.ES.Value, est.ES.Err = ExpectedShortfall(m, p)

	if math.IsNaN(variance) || math.IsInf(variance, 0) {
		est.Variance.Err = newStageError(StageRisk, ErrInvalidObservation, "variance %v is not finite", variance)
	} else {
		est.Variance.Value = variance
	}
	return est
}

// EstimateAll computes one RiskEstimate per confidence level, in the given order.
func EstimateAll(m TailModel, levels []float64, variance float64) []RiskEstimate {
	out := make([]RiskEstimate, len(levels))
	for i, p := range levels {
		out[i] = Estimate(m, p, variance)
	}
	return out
}

// WithHistorical sets the empirical VaR and ES of the raw returns on every estimate.
// They are a model-free baseline next to the tail model figures.
func WithHistorical(estimates []RiskEstimate, returns []float64) []RiskEstimate {
	losses := make([]float64, len(returns))
	for i, r := range returns {
		losses[i] = -r
	}
	finite := len(losses) > 0 && formulas.AllFinite(losses)

	for i := range estimates {
		p := estimates[i].ConfidenceLevel
		hv, he := &Measure{}, &Measure{}
		switch {
		case !finite:
			hv.Err = newStageError(StageRisk, ErrInvalidObservation, "returns are empty or not finite")
			he.Err = hv.Err
		case !(p > 0 && p < 1):
			hv.Err = newStageError(StageRisk, ErrInvalidConfig, "confidence level %v outside (0, 1)", p)
			he.Err = hv.Err
		default:
			hv.Value = formulas.HistoricalVaR(losses, p)
			he.Value = formulas.HistoricalES(losses, p)
		}
		estimates[i].HistoricalVaR, estimates[i].HistoricalES = hv, he
	}
	return estimates
}
