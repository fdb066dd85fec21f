package di

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/tailrisk/internal/config"
	"github.com/aristath/tailrisk/internal/database"
)

// InitializeDatabases opens the fit cache database and applies its schema
func InitializeDatabases(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	container := &Container{}

	// cache.db - Fitted tail models keyed by series content (ephemeral)
	cacheDB, err := database.New(database.Config{
		Path:    cfg.CacheDBPath(),
		Profile: database.ProfileCache,
		Name:    "cache",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cache database: %w", err)
	}
	if err := cacheDB.Migrate(); err != nil {
		cacheDB.Close()
		return nil, fmt.Errorf("failed to migrate cache database: %w", err)
	}
	container.CacheDB = cacheDB

	log.Info().Str("path", cacheDB.Path()).Msg("Cache database initialized")
	return container, nil
}
