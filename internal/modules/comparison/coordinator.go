// Package comparison runs the tail-risk pipeline for a batch of instruments and assembles
// the results into a ComparableSet for cross-instrument comparison.
package comparison

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/tailrisk/internal/modules/tailrisk"
	"github.com/aristath/tailrisk/pkg/formulas"
)

// ErrInvalidRequest is returned for batches that cannot be assembled into a ComparableSet.
var ErrInvalidRequest = errors.New("invalid batch request")

// Request describes one comparison batch.
type Request struct {
	// Target names the instrument under study; it must be one of Series. Empty means the
	// batch has no distinguished instrument (e.g. a scheduled summary).
	Target string
	Series []tailrisk.ReturnSeries
	// Unreadable lists instruments whose input could not be read. Each is recorded as a
	// failed outcome so the set still accounts for it.
	Unreadable map[string]error

	// ConfidenceLevels overrides the engine's configured levels when non-empty.
	ConfidenceLevels []float64
	// RankLevel is the confidence level used for VaR/ES ranks; 0 means the highest level.
	RankLevel float64
}

// Coordinator fans a batch out over a worker pool and joins the outcomes.
type Coordinator struct {
	engine *tailrisk.Engine
	fitter tailrisk.Fitter
	pool   *WorkerPool
	log    zerolog.Logger
}

// Option customises a Coordinator.
type Option func(*Coordinator)

// WithFitter replaces the engine as the source of fits (for example with a cache).
func WithFitter(f tailrisk.Fitter) Option {
	return func(c *Coordinator) {
		c.fitter = f
	}
}

// WithWorkers sets the worker pool size.
func WithWorkers(n int) Option {
	return func(c *Coordinator) {
		c.pool = NewWorkerPool(n)
	}
}

// NewCoordinator creates a batch coordinator backed by engine.
func NewCoordinator(engine *tailrisk.Engine, log zerolog.Logger, opts ...Option) *Coordinator {
	c := &Coordinator{
		engine: engine,
		fitter: engine,
		pool:   NewWorkerPool(0),
		log:    log.With().Str("component", "comparison").Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run evaluates every series independently and returns the assembled set. A failure
// in one instrument never aborts the others; it is recorded in that instrument's
// outcome. Run only fails for malformed requests.
func (c *Coordinator) Run(ctx context.Context, req Request) (*ComparableSet, error) {
	levels, rankLevel, err := c.resolveLevels(req)
	if err != nil {
		return nil, err
	}

	items, err := buildItems(req)
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	log := c.log.With().Str("run_id", runID).Logger()
	log.Info().
		Str("target", req.Target).
		Int("instruments", len(items)).
		Int("workers", c.pool.Workers()).
		Msg("Starting comparison batch")

	started := time.Now()
	outcomes := c.pool.EvaluateBatch(ctx, items, func(ctx context.Context, item batchItem) Outcome {
		return c.evaluate(ctx, item, levels)
	})
	for instrument, cause := range req.Unreadable {
		outcomes = append(outcomes, Outcome{
			Instrument: instrument,
			Role:       roleOf(instrument, req.Target),
			Err:        tailrisk.Unreadable(instrument, cause),
		})
	}
	finished := time.Now()

	set := newComparableSet(runID, req.Target, rankLevel, outcomes)
	set.StartedAt = started
	set.FinishedAt = finished

	BatchLatency.Observe(finished.Sub(started).Seconds())
	for _, o := range set.Outcomes() {
		observeOutcome(o)
		if !o.OK() {
			log.Warn().
				Err(o.Err).
				Str("instrument", o.Instrument).
				Str("kind", o.Kind()).
				Msg("Instrument failed")
		}
	}

	log.Info().
		Int("succeeded", len(set.Successes())).
		Int("failed", len(set.Failures())).
		Dur("duration", finished.Sub(started)).
		Msg("Comparison batch complete")

	return set, nil
}

func (c *Coordinator) evaluate(ctx context.Context, item batchItem, levels []float64) Outcome {
	start := time.Now()
	o := Outcome{
		Instrument: item.series.Instrument,
		Role:       item.role,
	}

	returns := item.series.Returns()
	if len(returns) > 0 && formulas.AllFinite(returns) {
		o.MeanReturn = formulas.Mean(returns)
		o.Variance = formulas.PopVariance(returns)
		o.StatsValid = true
	}

	fit, err := c.fitter.Fit(ctx, item.series)
	if err != nil {
		o.Err = err
	} else {
		o.Result = &tailrisk.Result{Fit: fit, Estimates: c.engine.EstimateSeries(fit, item.series, levels)}
	}

	o.Duration = time.Since(start)
	return o
}

func (c *Coordinator) resolveLevels(req Request) ([]float64, float64, error) {
	levels := req.ConfidenceLevels
	if len(levels) == 0 {
		levels = c.engine.Config().ConfidenceLevels
	}
	for _, p := range levels {
		if !(p > 0 && p < 1) {
			return nil, 0, fmt.Errorf("%w: confidence level %v outside (0, 1)", ErrInvalidRequest, p)
		}
	}

	rankLevel := req.RankLevel
	if rankLevel == 0 {
		sorted := append([]float64(nil), levels...)
		sort.Float64s(sorted)
		rankLevel = sorted[len(sorted)-1]
		return levels, rankLevel, nil
	}
	for _, p := range levels {
		if p == rankLevel {
			return levels, rankLevel, nil
		}
	}
	return nil, 0, fmt.Errorf("%w: rank level %v is not one of the requested confidence levels", ErrInvalidRequest, rankLevel)
}

func buildItems(req Request) ([]batchItem, error) {
	if len(req.Series) == 0 && len(req.Unreadable) == 0 {
		return nil, fmt.Errorf("%w: no series", ErrInvalidRequest)
	}

	seen := make(map[string]bool, len(req.Series)+len(req.Unreadable))
	for instrument := range req.Unreadable {
		if instrument == "" {
			return nil, fmt.Errorf("%w: unreadable input has no instrument identifier", ErrInvalidRequest)
		}
		seen[instrument] = true
	}
	items := make([]batchItem, 0, len(req.Series))
	for i, s := range req.Series {
		if s.Instrument == "" {
			return nil, fmt.Errorf("%w: series %d has no instrument identifier", ErrInvalidRequest, i)
		}
		if seen[s.Instrument] {
			return nil, fmt.Errorf("%w: duplicate instrument %q", ErrInvalidRequest, s.Instrument)
		}
		seen[s.Instrument] = true

		items = append(items, batchItem{series: s, role: roleOf(s.Instrument, req.Target)})
	}

	if req.Target != "" && !seen[req.Target] {
		return nil, fmt.Errorf("%w: target %q is not in the batch", ErrInvalidRequest, req.Target)
	}
	return items, nil
}

func roleOf(instrument, target string) Role {
	if instrument == target {
		return RoleTarget
	}
	return RoleComparison
}
