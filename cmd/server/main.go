// Package main is the entry point of the tail-risk service.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aristath/tailrisk/internal/config"
	"github.com/aristath/tailrisk/internal/di"
	"github.com/aristath/tailrisk/internal/server"
	"github.com/aristath/tailrisk/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{
			Level:  "info",
			Pretty: true,
		})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})

	log.Info().
		Str("data_dir", cfg.DataDir).
		Str("returns_dir", cfg.ReturnsDir).
		Msg("Starting tail-risk service")

	container, jobs, err := di.Wire(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire dependencies")
	}
	defer container.Close()

	srv := server.New(server.Config{
		Log:      log,
		CacheDB:  container.CacheDB,
		Port:     cfg.Port,
		DevMode:  cfg.DevMode,
		TailRisk: container.TailRiskHandler,
		Runner:   container.Scheduler,
		Jobs:     jobs.All(),
	})

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	container.Scheduler.Start()

	// Publish a summary at startup instead of waiting for the first scheduled run
	if jobs.Summary != nil {
		go func() {
			if err := container.Scheduler.RunNow(jobs.Summary); err != nil {
				log.Error().Err(err).Msg("Initial summary run failed")
			}
		}()
	}

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	container.Scheduler.Stop()

	log.Info().Msg("Server stopped")
}
