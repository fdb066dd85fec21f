package di

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/tailrisk/internal/config"
	"github.com/aristath/tailrisk/internal/scheduler"
)

// RegisterJobs creates the background jobs and registers them with a new scheduler.
// The scheduler is not started.
func RegisterJobs(container *Container, cfg *config.Config, log zerolog.Logger) (*JobInstances, error) {
	sched := scheduler.New(log)
	jobs := &JobInstances{}

	jobs.CachePurge = scheduler.NewCachePurgeJob(container.FitCache)
	jobs.CachePurge.SetLogger(log.With().Str("job", "fit_cache_purge").Logger())
	if container.PriceFiles != nil {
		jobs.CachePurge.WithFileEviction(container.PriceFiles, container.Evictor)
	}
	if err := sched.AddJob(cfg.CachePurgeSchedule, jobs.CachePurge); err != nil {
		return nil, fmt.Errorf("failed to register cache purge job: %w", err)
	}

	jobs.WALCheckpoints = scheduler.NewCheckWALCheckpointsJob(container.CacheDB)
	jobs.WALCheckpoints.SetLogger(log.With().Str("job", "check_wal_checkpoints").Logger())
	if err := sched.AddJob("0 */30 * * * *", jobs.WALCheckpoints); err != nil {
		return nil, fmt.Errorf("failed to register WAL checkpoint job: %w", err)
	}

	if container.PriceFiles != nil {
		summaryCfg := scheduler.SummaryJobConfig{
			Source:     container.PriceFiles,
			Runner:     container.Coordinator,
			Store:      container.SummaryStore,
			OutputPath: cfg.SummaryFile,
		}
		if container.SummaryR2 != nil {
			summaryCfg.Publisher = container.SummaryR2
			summaryCfg.PublishKey = cfg.SummaryR2Key
		}
		jobs.Summary = scheduler.NewSummaryJob(summaryCfg)
		jobs.Summary.SetLogger(log.With().Str("job", "tail_risk_summary").Logger())
		if err := sched.AddJob(cfg.SummarySchedule, jobs.Summary); err != nil {
			return nil, fmt.Errorf("failed to register summary job: %w", err)
		}
	} else {
		log.Warn().Msg("RETURNS_DIR not set, summary job disabled")
	}

	container.Scheduler = sched
	return jobs, nil
}
