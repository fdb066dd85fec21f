package scheduler

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/tailrisk/internal/modules/comparison"
	"github.com/aristath/tailrisk/internal/modules/tailrisk"
)

// SeriesSource reads every stored return series.
type SeriesSource interface {
	LoadAll() ([]tailrisk.ReturnSeries, map[string]error, error)
}

// BatchRunner evaluates a comparison batch.
type BatchRunner interface {
	Run(ctx context.Context, req comparison.Request) (*comparison.ComparableSet, error)
}

// Publisher uploads a finished summary to remote storage.
type Publisher interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) error
}

// SummaryJob recomputes the tail-risk summary for every stored price file and publishes
// it to the store, the summary CSV file and remote storage, each when configured.
type SummaryJob struct {
	JobBase
	source     SeriesSource
	runner     BatchRunner
	store      *comparison.Store
	outputPath string
	publisher  Publisher
	publishKey string
	timeout    time.Duration
}

// SummaryJobConfig holds configuration for SummaryJob
type SummaryJobConfig struct {
	Source     SeriesSource
	Runner     BatchRunner
	Store      *comparison.Store
	OutputPath string
	Publisher  Publisher
	PublishKey string
	Timeout    time.Duration
}

// NewSummaryJob creates a new SummaryJob
func NewSummaryJob(cfg SummaryJobConfig) *SummaryJob {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &SummaryJob{
		JobBase:    JobBase{log: zerolog.Nop()},
		source:     cfg.Source,
		runner:     cfg.Runner,
		store:      cfg.Store,
		outputPath: cfg.OutputPath,
		publisher:  cfg.Publisher,
		publishKey: cfg.PublishKey,
		timeout:    timeout,
	}
}

// Name returns the job name
func (j *SummaryJob) Name() string {
	return "tail_risk_summary"
}

// Run executes the summary job
func (j *SummaryJob) Run() error {
	series, failed, err := j.source.LoadAll()
	if err != nil {
		return fmt.Errorf("failed to load price files: %w", err)
	}
	if len(series) == 0 && len(failed) == 0 {
		j.log.Warn().Msg("No price files found, summary not updated")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	set, err := j.runner.Run(ctx, comparison.Request{Series: series, Unreadable: failed})
	if err != nil {
		return fmt.Errorf("failed to run summary batch: %w", err)
	}

	if j.store != nil {
		j.store.Save(set)
	}

	if j.outputPath == "" && j.publisher == nil {
		j.logDone(set)
		return nil
	}

	var buf bytes.Buffer
	if err := comparison.WriteSummaryCSV(&buf, set); err != nil {
		return fmt.Errorf("failed to write summary: %w", err)
	}

	if j.outputPath != "" {
		if err := writeSummaryFile(j.outputPath, buf.Bytes()); err != nil {
			return err
		}
	}

	if j.publisher != nil {
		if err := j.publisher.Upload(ctx, j.publishKey, buf.Bytes(), "text/csv"); err != nil {
			return fmt.Errorf("failed to publish summary: %w", err)
		}
	}

	j.logDone(set)
	return nil
}

func (j *SummaryJob) logDone(set *comparison.ComparableSet) {
	j.log.Info().
		Str("run_id", set.RunID).
		Int("instruments", set.Len()).
		Int("failed", len(set.Failures())).
		Str("output", j.outputPath).
		Bool("published", j.publisher != nil).
		Msg("Tail-risk summary updated")
}

// writeSummaryFile replaces path atomically so readers never see a partial file.
func writeSummaryFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create summary directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".summary-*.csv")
	if err != nil {
		return fmt.Errorf("failed to create summary file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write summary file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close summary file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace summary file: %w", err)
	}
	return nil
}
