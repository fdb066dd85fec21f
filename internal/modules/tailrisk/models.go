package tailrisk

import "time"

// Observation is a single dated return, expressed as a signed fraction (-0.02 = -2%).
type Observation struct {
	Timestamp time.Time `json:"timestamp" msgpack:"timestamp"`
	Return    float64   `json:"return" msgpack:"return"`
}

// ReturnSeries is the chronologically ordered return history of one instrument.
type ReturnSeries struct {
	Instrument   string        `json:"instrument" msgpack:"instrument"`
	Observations []Observation `json:"observations" msgpack:"observations"`
}

// NewReturnSeries pairs timestamps with returns. Extra entries on either side are ignored.
func NewReturnSeries(instrument string, timestamps []time.Time, returns []float64) ReturnSeries {
	n := len(returns)
	if len(timestamps) < n {
		n = len(timestamps)
	}

	obs := make([]Observation, n)
	for i := 0; i < n; i++ {
		obs[i] = Observation{Timestamp: timestamps[i], Return: returns[i]}
	}
	return ReturnSeries{Instrument: instrument, Observations: obs}
}

// Len returns the number of observations.
func (s ReturnSeries) Len() int {
	return len(s.Observations)
}

// Returns returns a copy of the raw return values in series order.
func (s ReturnSeries) Returns() []float64 {
	out := make([]float64, len(s.Observations))
	for i, o := range s.Observations {
		out[i] = o.Return
	}
	return out
}

// LossSample holds losses (-return) sorted in descending order.
// It is immutable once built; accessors hand out copies.
type LossSample struct {
	instrument string
	losses     []float64
}

// Instrument returns the identifier of the series the sample was built from.
func (l LossSample) Instrument() string { return l.instrument }

// Len returns the sample size n.
func (l LossSample) Len() int { return len(l.losses) }

// OrderStatistic returns X_(i), the i-th largest loss (1-based).
func (l LossSample) OrderStatistic(i int) float64 { return l.losses[i-1] }

// Largest returns a copy of the k largest losses, worst first.
func (l LossSample) Largest(k int) []float64 {
	if k > len(l.losses) {
		k = len(l.losses)
	}
	out := make([]float64, k)
	copy(out, l.losses[:k])
	return out
}

// Values returns a copy of all losses, worst first.
func (l LossSample) Values() []float64 {
	return l.Largest(len(l.losses))
}

// HillPoint is one point of the Hill plot.
type HillPoint struct {
	K         int     `json:"k" msgpack:"k"`
	Alpha     float64 `json:"alpha" msgpack:"alpha"`         // tail index estimate
	Gamma     float64 `json:"gamma" msgpack:"gamma"`         // 1/alpha, mean log excess
	Threshold float64 `json:"threshold" msgpack:"threshold"` // X_(k+1)
}

// Diagnostic records a tail size that was skipped while building the curve.
type Diagnostic struct {
	K      int    `json:"k" msgpack:"k"`
	Kind   string `json:"kind" msgpack:"kind"`
	Reason string `json:"reason" msgpack:"reason"`
}

// HillCurve is the sequence of usable Hill points ordered by k, plus the diagnostics
// for every k in [KMin, KMax] that could not be estimated.
type HillCurve struct {
	KMin       int          `json:"k_min" msgpack:"k_min"`
	KMax       int          `json:"k_max" msgpack:"k_max"`
	Points     []HillPoint  `json:"points" msgpack:"points"`
	Degenerate []Diagnostic `json:"degenerate,omitempty" msgpack:"degenerate"`
}

// Len returns the number of usable points.
func (c HillCurve) Len() int { return len(c.Points) }

// Ks returns the tail sizes of the usable points as floats.
func (c HillCurve) Ks() []float64 {
	out := make([]float64, len(c.Points))
	for i, p := range c.Points {
		out[i] = float64(p.K)
	}
	return out
}

// Alphas returns the tail index estimates of the usable points.
func (c HillCurve) Alphas() []float64 {
	out := make([]float64, len(c.Points))
	for i, p := range c.Points {
		out[i] = p.Alpha
	}
	return out
}

// Gammas returns the shape estimates (1/alpha) of the usable points.
func (c HillCurve) Gammas() []float64 {
	out := make([]float64, len(c.Points))
	for i, p := range c.Points {
		out[i] = p.Gamma
	}
	return out
}

// SmoothedPoint is the selector's view of one k: the smoothed statistic and the
// criterion value that was minimised.
type SmoothedPoint struct {
	K     int     `json:"k" msgpack:"k"`
	Value float64 `json:"value" msgpack:"value"`
	Score float64 `json:"score" msgpack:"score"`
}

// Selection is the chosen Hill point together with the diagnostics that justified it.
type Selection struct {
	Point         HillPoint       `json:"point" msgpack:"point"`
	Strategy      string          `json:"strategy" msgpack:"strategy"`
	Score         float64         `json:"score" msgpack:"score"`
	Bias          float64         `json:"bias" msgpack:"bias"`
	Variance      float64         `json:"variance" msgpack:"variance"`
	Stability     float64         `json:"stability" msgpack:"stability"`
	LocalVariance float64         `json:"local_variance" msgpack:"local_variance"`
	Window        int             `json:"window" msgpack:"window"`
	Curve         []SmoothedPoint `json:"curve" msgpack:"curve"`
}

// TailModel is the Generalized Pareto approximation of the loss tail above Threshold.
type TailModel struct {
	Xi          float64 `json:"xi" msgpack:"xi"`
	Beta        float64 `json:"beta" msgpack:"beta"`
	Threshold   float64 `json:"threshold" msgpack:"threshold"`
	N           int     `json:"n" msgpack:"n"`
	NU          int     `json:"n_u" msgpack:"n_u"`
	ScaleMethod string  `json:"scale_method" msgpack:"scale_method"`
}

// Measure is one risk figure, or the reason it could not be produced.
type Measure struct {
	Value float64
	Err   error
}

// Defined reports whether the measure carries a value.
func (m Measure) Defined() bool { return m.Err == nil }

// RiskEstimate bundles VaR, ES and the variance baseline at one confidence level.
// Each measure fails independently. HistoricalVaR and HistoricalES are the empirical
// figures of the raw series and are only set when the series was at hand.
type RiskEstimate struct {
	ConfidenceLevel float64
	VaR             Measure
	ES              Measure
	Variance        Measure
	HistoricalVaR   *Measure
	HistoricalES    *Measure
}

// Fit is everything derived from one return series up to the fitted tail model.
// Risk estimates at any confidence level are computed from it without refitting.
type Fit struct {
	Instrument string    `json:"instrument" msgpack:"instrument"`
	N          int       `json:"n" msgpack:"n"`
	MeanReturn float64   `json:"mean_return" msgpack:"mean_return"`
	Variance   float64   `json:"variance" msgpack:"variance"`
	Curve      HillCurve `json:"curve" msgpack:"curve"`
	Selection  Selection `json:"selection" msgpack:"selection"`
	Model      TailModel `json:"model" msgpack:"model"`
}

// Result is a fit plus the estimates requested for it.
type Result struct {
	Fit       *Fit
	Estimates []RiskEstimate
}

// EstimateAt returns the estimate for confidence level p, if it was requested.
func (r *Result) EstimateAt(p float64) (RiskEstimate, bool) {
	for _, e := range r.Estimates {
		if e.ConfidenceLevel == p {
			return e, true
		}
	}
	return RiskEstimate{}, false
}
