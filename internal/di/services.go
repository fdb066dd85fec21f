package di

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/tailrisk/internal/clients/pricefiles"
	"github.com/aristath/tailrisk/internal/clients/r2"
	"github.com/aristath/tailrisk/internal/config"
	"github.com/aristath/tailrisk/internal/modules/calculations"
	"github.com/aristath/tailrisk/internal/modules/comparison"
	"github.com/aristath/tailrisk/internal/modules/tailrisk"
)

// InitializeServices builds the engine, the fit cache and the batch coordinator
func InitializeServices(container *Container, cfg *config.Config, log zerolog.Logger) error {
	comparison.RegisterMetrics()
	calculations.RegisterMetrics()

	engine, err := tailrisk.NewEngine(cfg.Engine, log)
	if err != nil {
		return fmt.Errorf("failed to create tail-risk engine: %w", err)
	}
	container.Engine = engine

	// The fitter consults the cache before running the pipeline
	container.FitCache = calculations.NewFitCache(container.CacheDB.Conn(), cfg.CacheTTL)
	container.Fitter = calculations.NewCachedFitter(engine, container.FitCache, engine.Fingerprint(), log)
	container.Evictor = calculations.NewStaleFitEvictor(container.FitCache, log)

	container.Coordinator = comparison.NewCoordinator(engine, log,
		comparison.WithFitter(container.Fitter),
		comparison.WithWorkers(cfg.Workers),
	)
	container.SummaryStore = comparison.NewStore()

	if cfg.ReturnsDir != "" {
		container.PriceFiles = pricefiles.NewLoader(cfg.ReturnsDir, log)
	}

	if cfg.SummaryR2.Enabled() {
		client, err := r2.NewR2Client(cfg.SummaryR2, log)
		if err != nil {
			return fmt.Errorf("failed to create R2 client: %w", err)
		}
		container.SummaryR2 = client
	}

	log.Info().
		Str("selector", engine.SelectorName()).
		Int("workers", cfg.Workers).
		Floats64("confidence_levels", engine.Config().ConfidenceLevels).
		Msg("Services initialized")

	return nil
}
