package calculations

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// InstrumentEvictor drops every cached fit of one instrument.
type InstrumentEvictor interface {
	DeleteInstrument(ctx context.Context, instrument string) error
}

// StaleFitEvictor drops cached fits of instruments whose source file changed since it
// was last seen. Cache keys already hash the series content, so a stale entry can never
// be returned; eviction only reclaims its space before the TTL does.
type StaleFitEvictor struct {
	cache InstrumentEvictor
	log   zerolog.Logger

	mu   sync.Mutex
	seen map[string]time.Time
}

// NewStaleFitEvictor creates a new evictor
func NewStaleFitEvictor(cache InstrumentEvictor, log zerolog.Logger) *StaleFitEvictor {
	return &StaleFitEvictor{
		cache: cache,
		log:   log.With().Str("component", "fit_eviction").Logger(),
		seen:  make(map[string]time.Time),
	}
}

// Sync evicts changed and removed instruments and records the current modification times.
// It returns the number of instruments evicted.
func (e *StaleFitEvictor) Sync(ctx context.Context, modTimes map[string]time.Time) (int, error) {
	evict := e.stale(modTimes)

	for _, instrument := range evict {
		if err := e.cache.DeleteInstrument(ctx, instrument); err != nil {
			return 0, err
		}
		e.log.Debug().Str("instrument", instrument).Msg("Evicted cached fits")
	}

	e.mu.Lock()
	e.seen = make(map[string]time.Time, len(modTimes))
	for instrument, t := range modTimes {
		e.seen[instrument] = t
	}
	e.mu.Unlock()

	return len(evict), nil
}

// stale lists, in sorted order, the seen instruments whose file changed or disappeared.
// Instruments seen for the first time are never stale.
func (e *StaleFitEvictor) stale(modTimes map[string]time.Time) []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	var out []string
	for instrument, last := range e.seen {
		current, ok := modTimes[instrument]
		if !ok || !current.Equal(last) {
			out = append(out, instrument)
		}
	}
	sort.Strings(out)
	return out
}
