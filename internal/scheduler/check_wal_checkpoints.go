package scheduler

import (
	"github.com/rs/zerolog"

	"github.com/aristath/tailrisk/internal/database"
)

// walWarnFrames is the WAL size, in frames, above which a checkpoint is overdue.
const walWarnFrames = 1000

// CheckWALCheckpointsJob runs a passive WAL checkpoint and reports WAL growth
type CheckWALCheckpointsJob struct {
	JobBase
	databases []*database.DB
}

// NewCheckWALCheckpointsJob creates a new CheckWALCheckpointsJob. Nil databases are ignored.
func NewCheckWALCheckpointsJob(databases ...*database.DB) *CheckWALCheckpointsJob {
	return &CheckWALCheckpointsJob{
		JobBase:   JobBase{log: zerolog.Nop()},
		databases: databases,
	}
}

// Name returns the job name
func (j *CheckWALCheckpointsJob) Name() string {
	return "check_wal_checkpoints"
}

// Run executes the check WAL checkpoints job
func (j *CheckWALCheckpointsJob) Run() error {
	checkedCount := 0
	for _, db := range j.databases {
		if db == nil {
			continue
		}

		// PRAGMA wal_checkpoint returns: busy, log, checkpointed
		var busy, log, checkpointed int
		err := db.Conn().QueryRow("PRAGMA wal_checkpoint(PASSIVE)").Scan(&busy, &log, &checkpointed)
		if err != nil {
			j.log.Warn().
				Err(err).
				Str("database", db.Name()).
				Msg("Failed to check WAL checkpoint")
			continue
		}

		if log > walWarnFrames {
			j.log.Warn().
				Str("database", db.Name()).
				Int("wal_frames", log).
				Int("checkpointed", checkpointed).
				Msg("WAL file is large, checkpoint may be needed")
		} else {
			j.log.Debug().
				Str("database", db.Name()).
				Int("wal_frames", log).
				Msg("WAL checkpoint status OK")
		}

		checkedCount++
	}

	j.log.Info().
		Int("checked", checkedCount).
		Msg("WAL checkpoint check completed")

	return nil
}
