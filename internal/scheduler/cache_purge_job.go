package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// ExpiredPurger removes expired cache entries.
type ExpiredPurger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// FileTimes reports the modification time of every source file by instrument.
type FileTimes interface {
	ModTimes() (map[string]time.Time, error)
}

// FileEvictor drops cached fits of instruments whose source file changed.
type FileEvictor interface {
	Sync(ctx context.Context, modTimes map[string]time.Time) (int, error)
}

// CachePurgeJob deletes expired fits from the fit cache and, when a file source is
// attached, fits whose price file changed
type CachePurgeJob struct {
	JobBase
	cache   ExpiredPurger
	files   FileTimes
	evictor FileEvictor
}

// NewCachePurgeJob creates a new CachePurgeJob
func NewCachePurgeJob(cache ExpiredPurger) *CachePurgeJob {
	return &CachePurgeJob{
		JobBase: JobBase{log: zerolog.Nop()},
		cache:   cache,
	}
}

// WithFileEviction attaches a price file source and the evictor tracking it
func (j *CachePurgeJob) WithFileEviction(files FileTimes, evictor FileEvictor) *CachePurgeJob {
	j.files = files
	j.evictor = evictor
	return j
}

// Name returns the job name
func (j *CachePurgeJob) Name() string {
	return "fit_cache_purge"
}

// Run executes the cache purge job
func (j *CachePurgeJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	removed, err := j.cache.PurgeExpired(ctx)
	if err != nil {
		return fmt.Errorf("failed to purge fit cache: %w", err)
	}

	evicted := 0
	if j.files != nil && j.evictor != nil {
		modTimes, err := j.files.ModTimes()
		if err != nil {
			return fmt.Errorf("failed to read price file times: %w", err)
		}
		if evicted, err = j.evictor.Sync(ctx, modTimes); err != nil {
			return fmt.Errorf("failed to evict stale fits: %w", err)
		}
	}

	j.log.Info().
		Int64("expired", removed).
		Int("evicted_instruments", evicted).
		Msg("Fit cache purged")
	return nil
}
