package calculations

import (
	"context"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/aristath/tailrisk/internal/modules/tailrisk"
)

var (
	once sync.Once

	CacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tailrisk",
			Subsystem: "fit_cache",
			Name:      "lookups_total",
			Help:      "Fit cache lookups by result",
		},
		[]string{"result"},
	)
)

// RegisterMetrics registers the cache collectors with the default registry.
func RegisterMetrics() {
	once.Do(func() {
		prometheus.MustRegister(CacheLookups)
	})
}

// CachedFitter serves fits from a FitCache and falls back to the wrapped fitter on a
// miss. Only successful fits are stored. Cache errors are logged and never fail a fit.
type CachedFitter struct {
	next        tailrisk.Fitter
	cache       *FitCache
	fingerprint string
	log         zerolog.Logger
}

// NewCachedFitter wraps next. fingerprint must identify every setting of next that
// influences its output (see tailrisk.Engine.Fingerprint).
func NewCachedFitter(next tailrisk.Fitter, cache *FitCache, fingerprint string, log zerolog.Logger) *CachedFitter {
	return &CachedFitter{
		next:        next,
		cache:       cache,
		fingerprint: fingerprint,
		log:         log.With().Str("component", "fit_cache").Logger(),
	}
}

// Fit implements tailrisk.Fitter.
func (f *CachedFitter) Fit(ctx context.Context, series tailrisk.ReturnSeries) (*tailrisk.Fit, error) {
	key := FitKey(series, f.fingerprint)

	cached, ok, err := f.cache.Get(ctx, key)
	switch {
	case err != nil:
		CacheLookups.WithLabelValues("error").Inc()
		f.log.Warn().Err(err).Str("instrument", series.Instrument).Msg("Fit cache read failed")
	case ok:
		CacheLookups.WithLabelValues("hit").Inc()
		f.log.Debug().Str("instrument", series.Instrument).Str("key", key[:8]).Msg("Using cached fit")
		return cached, nil
	default:
		CacheLookups.WithLabelValues("miss").Inc()
	}

	fit, err := f.next.Fit(ctx, series)
	if err != nil {
		return nil, err
	}

	if err := f.cache.Put(ctx, key, fit); err != nil {
		f.log.Warn().Err(err).Str("instrument", series.Instrument).Msg("Fit cache write failed")
	}
	return fit, nil
}
