package comparison

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	InstrumentOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tailrisk",
			Subsystem: "batch",
			Name:      "instrument_outcomes_total",
			Help:      "Per-instrument pipeline outcomes by kind",
		},
		[]string{"kind"},
	)

	InstrumentLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "tailrisk",
			Subsystem: "batch",
			Name:      "instrument_seconds",
			Help:      "Time spent fitting one instrument",
			Buckets:   prometheus.DefBuckets,
		},
	)

	BatchLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "tailrisk",
			Subsystem: "batch",
			Name:      "duration_seconds",
			Help:      "Wall time of a comparison batch",
			Buckets:   prometheus.DefBuckets,
		},
	)
)

// RegisterMetrics registers the batch collectors with the default registry.
func RegisterMetrics() {
	once.Do(func() {
		prometheus.MustRegister(InstrumentOutcomes, InstrumentLatency, BatchLatency)
	})
}

func observeOutcome(o Outcome) {
	InstrumentOutcomes.WithLabelValues(o.Kind()).Inc()
	if o.Duration > 0 {
		InstrumentLatency.Observe(o.Duration.Seconds())
	}
}
