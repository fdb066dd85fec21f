// Package tailrisk estimates Value at Risk and Expected Shortfall for a single return
// series with peaks-over-threshold extreme value theory. The tail threshold is chosen
// from a smoothed Hill plot.
//
// The pipeline runs strictly forward:
//
//	ReturnSeries -> LossSample -> HillCurve -> Selection -> TailModel -> RiskEstimate
//
// Every stage returns a fresh value and never mutates its input, so an Engine can be
// shared by any number of goroutines.
package tailrisk

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/tailrisk/pkg/formulas"
)

// Fitter produces a tail fit for one return series.
type Fitter interface {
	Fit(ctx context.Context, series ReturnSeries) (*Fit, error)
}

// Engine runs the per-instrument pipeline with a fixed configuration.
type Engine struct {
	cfg      Config
	selector ThresholdSelector
	log      zerolog.Logger
}

// Option customises an Engine.
type Option func(*Engine)

// WithSelector replaces the threshold selection policy named in the configuration.
func WithSelector(selector ThresholdSelector) Option {
	return func(e *Engine) {
		e.selector = selector
	}
}

// NewEngine validates cfg (after applying defaults) and builds an engine.
func NewEngine(cfg Config, log zerolog.Logger, opts ...Option) (*Engine, error) {
	if err := cfg.ApplyDefaults(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	selector, err := NewSelector(cfg)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:      cfg,
		selector: selector,
		log:      log.With().Str("component", "tailrisk_engine").Logger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Config returns the engine configuration with defaults applied.
func (e *Engine) Config() Config {
	cfg := e.cfg
	cfg.ConfidenceLevels = append([]float64(nil), e.cfg.ConfidenceLevels...)
	if e.cfg.TieEpsilon != nil {
		eps := *e.cfg.TieEpsilon
		cfg.TieEpsilon = &eps
	}
	return cfg
}

// SelectorName returns the name of the active threshold selection policy.
func (e *Engine) SelectorName() string {
	return e.selector.Name()
}

// Fingerprint identifies every setting that influences a Fit. Two engines with the
// same fingerprint produce identical fits for identical input.
func (e *Engine) Fingerprint() string {
	c := e.cfg
	return fmt.Sprintf("min=%d|k=%d-%d|kf=%g|sel=%s|w=%d|ker=%s|rho=%g|eps=%g|cs=%g|ss=%g|scale=%s",
		c.MinObservations, c.KMin, c.KMax, c.KMaxFraction, e.selector.Name(), c.SmoothingWindow,
		c.SmoothingKernel, c.SecondOrderRho, c.TieTolerance(), c.CurveSigma, c.SlopeSigma, c.ScaleEstimator)
}

// Fit runs order statistics, the Hill curve, threshold selection and the tail model
// fit. ctx is checked between stages; a cancelled context yields an Abandoned error.
func (e *Engine) Fit(ctx context.Context, series ReturnSeries) (*Fit, error) {
	instrument := series.Instrument
	if err := ctx.Err(); err != nil {
		return nil, Abandoned(StageOrderStatistics, instrument, err)
	}

	losses, err := PrepareLosses(series, e.cfg.MinObservations)
	if err != nil {
		return nil, tagInstrument(err, instrument)
	}
	n := losses.Len()

	if err := ctx.Err(); err != nil {
		return nil, Abandoned(StageHillCurve, instrument, err)
	}
	kMin, kMax := e.cfg.KRange(n)
	curve, err := BuildHillCurve(losses, kMin, kMax)
	if err != nil {
		return nil, tagInstrument(err, instrument)
	}
	if len(curve.Degenerate) > 0 {
		e.log.Debug().
			Str("instrument", instrument).
			Int("degenerate", len(curve.Degenerate)).
			Int("usable", curve.Len()).
			Msg("Skipped degenerate tail sizes")
	}

	if err := ctx.Err(); err != nil {
		return nil, Abandoned(StageThresholdSelection, instrument, err)
	}
	selection, err := e.selector.Select(curve, n)
	if err != nil {
		return nil, tagInstrument(err, instrument)
	}

	if err := ctx.Err(); err != nil {
		return nil, Abandoned(StageTailFit, instrument, err)
	}
	model, err := FitTailModel(losses, selection, e.cfg.ScaleEstimator)
	if err != nil {
		return nil, tagInstrument(err, instrument)
	}

	returns := series.Returns()
	fit := &Fit{
		Instrument: instrument,
		N:          n,
		MeanReturn: formulas.Mean(returns),
		Variance:   formulas.PopVariance(returns),
		Curve:      curve,
		Selection:  selection,
		Model:      model,
	}

	e.log.Debug().
		Str("instrument", instrument).
		Str("selector", selection.Strategy).
		Int("k", selection.Point.K).
		Float64("threshold", model.Threshold).
		Float64("alpha", selection.Point.Alpha).
		Float64("xi", model.Xi).
		Float64("beta", model.Beta).
		Msg("Fitted tail model")

	return fit, nil
}

// Estimate derives risk estimates from a fit. A nil or empty levels slice uses the
// configured confidence levels.
func (e *Engine) Estimate(fit *Fit, levels []float64) []RiskEstimate {
	if len(levels) == 0 {
		levels = e.cfg.ConfidenceLevels
	}

	estimates := EstimateAll(fit.Model, levels, fit.Variance)
	for i := range estimates {
		estimates[i].VaR.Err = tagInstrument(estimates[i].VaR.Err, fit.Instrument)
		estimates[i].ES.Err = tagInstrument(estimates[i].ES.Err, fit.Instrument)
		estimates[i].Variance.Err = tagInstrument(estimates[i].Variance.Err, fit.Instrument)
	}
	return estimates
}

// EstimateSeries is Estimate plus the historical baseline of the series the fit came from.
func (e *Engine) EstimateSeries(fit *Fit, series ReturnSeries, levels []float64) []RiskEstimate {
	estimates := WithHistorical(e.Estimate(fit, levels), series.Returns())
	for i := range estimates {
		estimates[i].HistoricalVaR.Err = tagInstrument(estimates[i].HistoricalVaR.Err, fit.Instrument)
		estimates[i].HistoricalES.Err = tagInstrument(estimates[i].HistoricalES.Err, fit.Instrument)
	}
	return estimates
}

// Run executes the whole pipeline for one series at the configured confidence levels.
func (e *Engine) Run(ctx context.Context, series ReturnSeries) (*Result, error) {
	fit, err := e.Fit(ctx, series)
	if err != nil {
		return nil, err
	}
	return &Result{Fit: fit, Estimates: e.EstimateSeries(fit, series, nil)}, nil
}
