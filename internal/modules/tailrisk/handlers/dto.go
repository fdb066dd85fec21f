package handlers

import (
	"fmt"
	"strings"
	"time"

	"github.com/aristath/tailrisk/internal/modules/comparison"
	"github.com/aristath/tailrisk/internal/modules/tailrisk"
)

// ObservationDTO is one dated return in a request body.
type ObservationDTO struct {
	Date   string   `json:"date" validate:"required"`
	Return *float64 `json:"return" validate:"required"`
}

// SeriesDTO is an inline return series. Either Observations or undated Returns must be set.
type SeriesDTO struct {
	Instrument   string           `json:"instrument" validate:"required"`
	Observations []ObservationDTO `json:"observations" validate:"required_without=Returns,dive"`
	Returns      []float64        `json:"returns"`
}

// EstimateRequest is the body of POST /api/tailrisk/estimate.
type EstimateRequest struct {
	Series           SeriesDTO `json:"series"`
	ConfidenceLevels []float64 `json:"confidence_levels" validate:"omitempty,dive,gt=0,lt=1"`
	IncludeCurve     bool      `json:"include_curve"`
}

// CompareRequest is the body of POST /api/tailrisk/compare. Series are supplied inline,
// or Instruments are read from the price file directory.
type CompareRequest struct {
	Target           string      `json:"target"`
	Series           []SeriesDTO `json:"series" validate:"omitempty,dive"`
	Instruments      []string    `json:"instruments" validate:"omitempty,dive,required"`
	ConfidenceLevels []float64   `json:"confidence_levels" validate:"omitempty,dive,gt=0,lt=1"`
	RankLevel        float64     `json:"rank_level" validate:"gte=0,lt=1"`
	TimeoutSeconds   int         `json:"timeout_seconds" default:"30" validate:"gte=1,lte=120"`
}

var undatedStart = time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)

func (s SeriesDTO) toSeries() (tailrisk.ReturnSeries, error) {
	if len(s.Observations) == 0 {
		// undated returns keep their order on a synthetic daily calendar
		ts := make([]time.Time, len(s.Returns))
		for i := range ts {
			ts[i] = undatedStart.AddDate(0, 0, i)
		}
		return tailrisk.NewReturnSeries(s.Instrument, ts, s.Returns), nil
	}

	obs := make([]tailrisk.Observation, len(s.Observations))
	for i, o := range s.Observations {
		ts, err := parseDate(o.Date)
		if err != nil {
			return tailrisk.ReturnSeries{}, fmt.Errorf("observation %d of %s: %w", i, s.Instrument, err)
		}
		obs[i] = tailrisk.Observation{Timestamp: ts, Return: *o.Return}
	}
	return tailrisk.ReturnSeries{Instrument: s.Instrument, Observations: obs}, nil
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("date %q is neither YYYY-MM-DD nor RFC3339", s)
	}
	return t, nil
}

// EstimateDTO is one confidence level of a result. Undefined measures are null with
// the failure in the matching *_error field.
type EstimateDTO struct {
	ConfidenceLevel    float64  `json:"confidence_level"`
	VaR                *float64 `json:"var"`
	ES                 *float64 `json:"es"`
	Variance           *float64 `json:"variance"`
	HistoricalVaR      *float64 `json:"historical_var"`
	HistoricalES       *float64 `json:"historical_es"`
	VaRError           string   `json:"var_error,omitempty"`
	ESError            string   `json:"es_error,omitempty"`
	VarianceError      string   `json:"variance_error,omitempty"`
	HistoricalVaRError string   `json:"historical_var_error,omitempty"`
	HistoricalESError  string   `json:"historical_es_error,omitempty"`
}

// FitDTO summarises the fitted tail.
type FitDTO struct {
	Instrument   string  `json:"instrument"`
	Observations int     `json:"observations"`
	MeanReturn   float64 `json:"mean_return"`
	Variance     float64 `json:"variance"`
	Selector     string  `json:"selector"`
	K            int     `json:"k"`
	Alpha        float64 `json:"alpha"`
	Score        float64 `json:"score"`
	Window       int     `json:"window"`
	Threshold    float64 `json:"threshold"`
	Xi           float64 `json:"xi"`
	Beta         float64 `json:"beta"`
	ScaleMethod  string  `json:"scale_method"`
	Degenerate   int     `json:"degenerate_k"`
}

// ResultDTO is the response payload for one instrument.
type ResultDTO struct {
	Fit       FitDTO                   `json:"fit"`
	Estimates []EstimateDTO            `json:"estimates"`
	Curve     *tailrisk.HillCurve      `json:"curve,omitempty"`
	Smoothed  []tailrisk.SmoothedPoint `json:"smoothed,omitempty"`
}

// FailureDTO describes a pipeline failure.
type FailureDTO struct {
	Kind       string `json:"kind"`
	Stage      string `json:"stage,omitempty"`
	Instrument string `json:"instrument,omitempty"`
	Message    string `json:"message"`
}

// OutcomeDTO is one instrument of a comparison batch.
type OutcomeDTO struct {
	Instrument string          `json:"instrument"`
	Role       comparison.Role `json:"role"`
	Status     string          `json:"status"`
	DurationMS float64         `json:"duration_ms"`
	MeanReturn *float64        `json:"mean_return"`
	Rank       comparison.Rank `json:"rank"`
	Result     *ResultDTO      `json:"result,omitempty"`
	Error      *FailureDTO     `json:"error,omitempty"`
}

// ComparableSetDTO is the response payload of a comparison batch.
type ComparableSetDTO struct {
	RunID       string       `json:"run_id"`
	Target      string       `json:"target,omitempty"`
	RankLevel   float64      `json:"rank_level"`
	StartedAt   time.Time    `json:"started_at"`
	FinishedAt  time.Time    `json:"finished_at"`
	Instruments []OutcomeDTO `json:"instruments"`
}

func toResultDTO(result *tailrisk.Result, includeCurve bool) *ResultDTO {
	fit := result.Fit
	dto := &ResultDTO{
		Fit: FitDTO{
			Instrument:   fit.Instrument,
			Observations: fit.N,
			MeanReturn:   fit.MeanReturn,
			Variance:     fit.Variance,
			Selector:     fit.Selection.Strategy,
			K:            fit.Selection.Point.K,
			Alpha:        fit.Selection.Point.Alpha,
			Score:        fit.Selection.Score,
			Window:       fit.Selection.Window,
			Threshold:    fit.Model.Threshold,
			Xi:           fit.Model.Xi,
			Beta:         fit.Model.Beta,
			ScaleMethod:  fit.Model.ScaleMethod,
			Degenerate:   len(fit.Curve.Degenerate),
		},
		Estimates: make([]EstimateDTO, 0, len(result.Estimates)),
	}

	for _, est := range result.Estimates {
		e := EstimateDTO{ConfidenceLevel: est.ConfidenceLevel}
		e.VaR, e.VaRError = measure(est.VaR)
		e.ES, e.ESError = measure(est.ES)
		e.Variance, e.VarianceError = measure(est.Variance)
		if est.HistoricalVaR != nil {
			e.HistoricalVaR, e.HistoricalVaRError = measure(*est.HistoricalVaR)
		}
		if est.HistoricalES != nil {
			e.HistoricalES, e.HistoricalESError = measure(*est.HistoricalES)
		}
		dto.Estimates = append(dto.Estimates, e)
	}

	if includeCurve {
		curve := fit.Curve
		dto.Curve = &curve
		dto.Smoothed = fit.Selection.Curve
	}
	return dto
}

func measure(m tailrisk.Measure) (*float64, string) {
	if !m.Defined() {
		return nil, m.Err.Error()
	}
	v := m.Value
	return &v, ""
}

func toFailureDTO(err error) *FailureDTO {
	f := &FailureDTO{Kind: tailrisk.KindName(err), Message: err.Error()}
	if se, ok := tailrisk.AsStageError(err); ok {
		f.Stage = string(se.Stage)
		f.Instrument = se.Instrument
	}
	return f
}

func toComparableSetDTO(set *comparison.ComparableSet) ComparableSetDTO {
	dto := ComparableSetDTO{
		RunID:       set.RunID,
		Target:      set.Target,
		RankLevel:   set.RankLevel,
		StartedAt:   set.StartedAt,
		FinishedAt:  set.FinishedAt,
		Instruments: make([]OutcomeDTO, 0, set.Len()),
	}
	for _, o := range set.Outcomes() {
		out := OutcomeDTO{
			Instrument: o.Instrument,
			Role:       o.Role,
			Status:     o.Kind(),
			DurationMS: float64(o.Duration.Microseconds()) / 1000,
		}
		if o.StatsValid {
			mean := o.MeanReturn
			out.MeanReturn = &mean
		}
		out.Rank, _ = set.Rank(o.Instrument)
		if o.OK() {
			out.Result = toResultDTO(o.Result, false)
		} else {
			out.Error = toFailureDTO(o.Err)
		}
		dto.Instruments = append(dto.Instruments, out)
	}
	return dto
}
