// Package scheduler runs background jobs on cron schedules.
package scheduler

import (
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Job represents a scheduled job
type Job interface {
	Run() error
	Name() string
}

// Scheduler manages background jobs
type Scheduler struct {
	cron *cron.Cron
	log  zerolog.Logger

	mu      sync.Mutex
	running map[string]bool
}

// New creates a new scheduler. Schedules take a leading seconds field.
func New(log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:    cron.New(cron.WithSeconds()),
		log:     log.With().Str("component", "scheduler").Logger(),
		running: make(map[string]bool),
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Int("jobs", len(s.cron.Entries())).Msg("Scheduler started")
}

// Stop stops the scheduler and waits for running jobs to finish
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info().Msg("Scheduler stopped")
}

// AddJob registers a new job with cron schedule
// Schedule examples:
//   - "0 */5 * * * *"      - Every 5 minutes
//   - "@hourly"            - Every hour
//   - "0 30 18 * * MON-FRI" - 18:30 on weekdays
//   - "@every 30s"         - Every 30 seconds
//
// A run that fires while the previous run of the same job is still going is skipped.
func (s *Scheduler) AddJob(schedule string, job Job) error {
	_, err := s.cron.AddFunc(schedule, func() {
		if !s.begin(job.Name()) {
			s.log.Warn().Str("job", job.Name()).Msg("Previous run still in progress, skipping")
			return
		}
		defer s.end(job.Name())

		s.execute(job)
	})
	if err != nil {
		return err
	}

	s.log.Info().
		Str("schedule", schedule).
		Str("job", job.Name()).
		Msg("Job registered")

	return nil
}

// RunNow executes a job immediately (outside schedule)
func (s *Scheduler) RunNow(job Job) error {
	s.log.Info().Str("job", job.Name()).Msg("Running job immediately")
	return job.Run()
}

func (s *Scheduler) execute(job Job) {
	s.log.Debug().Str("job", job.Name()).Msg("Running job")

	if err := job.Run(); err != nil {
		s.log.Error().
			Err(err).
			Str("job", job.Name()).
			Msg("Job failed")
		return
	}
	s.log.Debug().Str("job", job.Name()).Msg("Job completed")
}

func (s *Scheduler) begin(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running[name] {
		return false
	}
	s.running[name] = true
	return true
}

func (s *Scheduler) end(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.running, name)
}
