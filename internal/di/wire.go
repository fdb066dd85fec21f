package di

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/tailrisk/internal/config"
	tailriskhandlers "github.com/aristath/tailrisk/internal/modules/tailrisk/handlers"
)

// Wire initializes all dependencies and returns a fully configured container
// Order of operations:
// 1. Initialize databases
// 2. Initialize services
// 3. Register jobs
// 4. Build HTTP handlers
func Wire(cfg *config.Config, log zerolog.Logger) (*Container, *JobInstances, error) {
	// Step 1: Initialize databases
	container, err := InitializeDatabases(cfg, log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize databases: %w", err)
	}

	// Step 2: Initialize services
	if err := InitializeServices(container, cfg, log); err != nil {
		container.Close()
		return nil, nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	// Step 3: Register jobs
	jobs, err := RegisterJobs(container, cfg, log)
	if err != nil {
		container.Close()
		return nil, nil, fmt.Errorf("failed to register jobs: %w", err)
	}

	// Step 4: HTTP handlers. Optional collaborators stay untyped nil when unconfigured.
	var loader tailriskhandlers.SeriesLoader
	if container.PriceFiles != nil {
		loader = container.PriceFiles
	}
	var summary tailriskhandlers.SummaryRunner
	if jobs.Summary != nil {
		summary = jobs.Summary
	}
	container.TailRiskHandler = tailriskhandlers.NewHandler(
		container.Engine,
		container.Fitter,
		container.Coordinator,
		loader,
		container.SummaryStore,
		summary,
		log,
	)

	log.Info().Msg("Dependency injection wiring completed successfully")

	return container, jobs, nil
}
