// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/shirou/gopsutil/v3/cpu"

	"github.com/aristath/tailrisk/internal/clients/r2"
	"github.com/aristath/tailrisk/internal/modules/tailrisk"
)

// Config holds application configuration
type Config struct {
	DataDir            string // Base directory for the cache database and summary output (always absolute)
	ReturnsDir         string // Directory of per-instrument price CSV files; empty disables file endpoints and the summary job
	SummarySchedule    string // Cron schedule (with seconds) of the summary job
	SummaryFile        string // Where the summary job writes its CSV
	CachePurgeSchedule string
	CacheTTL           time.Duration
	Workers            int
	LogLevel           string
	Port               int
	DevMode            bool
	Engine             tailrisk.Config
	SummaryR2          r2.Config // Optional S3-compatible bucket the summary CSV is uploaded to
	SummaryR2Key       string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("TAILRISK_DATA_DIR", "./data")
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	levels, err := getEnvAsFloatList("CONFIDENCE_LEVELS", nil)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		DataDir:            absDataDir,
		ReturnsDir:         getEnv("RETURNS_DIR", ""),
		SummarySchedule:    getEnv("SUMMARY_SCHEDULE", "0 0 18 * * *"), // Daily at 18:00
		SummaryFile:        getEnv("SUMMARY_FILE", filepath.Join(absDataDir, "tail_risk_summary.csv")),
		CachePurgeSchedule: getEnv("CACHE_PURGE_SCHEDULE", "@every 1h"),
		CacheTTL:           time.Duration(getEnvAsInt("CACHE_TTL_HOURS", 24)) * time.Hour,
		Workers:            getEnvAsInt("WORKERS", 0),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		Port:               getEnvAsInt("GO_PORT", 8001),
		DevMode:            getEnvAsBool("DEV_MODE", false),
		Engine: tailrisk.Config{
			MinObservations:  getEnvAsInt("MIN_OBSERVATIONS", 0),
			KMin:             getEnvAsInt("HILL_K_MIN", 0),
			KMax:             getEnvAsInt("HILL_K_MAX", 0),
			KMaxFraction:     getEnvAsFloat("HILL_K_MAX_FRACTION", 0),
			Selector:         getEnv("THRESHOLD_SELECTOR", ""),
			SmoothingWindow:  getEnvAsInt("SMOOTHING_WINDOW", 0),
			SmoothingKernel:  getEnv("SMOOTHING_KERNEL", ""),
			ScaleEstimator:   getEnv("SCALE_ESTIMATOR", ""),
			ConfidenceLevels: levels,
		},
		SummaryR2: r2.Config{
			Endpoint:        getEnv("SUMMARY_R2_ENDPOINT", ""),
			AccessKeyID:     getEnv("R2_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("R2_SECRET_ACCESS_KEY", ""),
			Bucket:          getEnv("SUMMARY_R2_BUCKET", ""),
		},
		SummaryR2Key: getEnv("SUMMARY_R2_KEY", "tail_risk_summary.csv"),
	}

	if cfg.ReturnsDir != "" {
		if cfg.ReturnsDir, err = filepath.Abs(cfg.ReturnsDir); err != nil {
			return nil, fmt.Errorf("failed to resolve returns directory path: %w", err)
		}
	}

	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers()
	}

	// Unset engine fields take the engine's own defaults
	if err := cfg.Engine.ApplyDefaults(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if the configuration is usable
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("GO_PORT %d outside 1-65535", c.Port)
	}
	if c.Workers < 1 {
		return fmt.Errorf("WORKERS must be positive, got %d", c.Workers)
	}
	if c.CacheTTL < 0 {
		return fmt.Errorf("CACHE_TTL_HOURS must not be negative")
	}

	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	if _, err := parser.Parse(c.SummarySchedule); err != nil {
		return fmt.Errorf("invalid SUMMARY_SCHEDULE %q: %w", c.SummarySchedule, err)
	}
	if _, err := parser.Parse(c.CachePurgeSchedule); err != nil {
		return fmt.Errorf("invalid CACHE_PURGE_SCHEDULE %q: %w", c.CachePurgeSchedule, err)
	}

	if c.SummaryR2.Bucket != "" && !c.SummaryR2.Enabled() {
		return fmt.Errorf("SUMMARY_R2_BUCKET is set but the endpoint or credentials are missing")
	}

	if err := c.Engine.Validate(); err != nil {
		return fmt.Errorf("invalid engine configuration: %w", err)
	}
	return nil
}

// CacheDBPath returns the path of the fit cache database
func (c *Config) CacheDBPath() string {
	return filepath.Join(c.DataDir, "cache.db")
}

// defaultWorkers uses the logical CPU count, falling back to 4 when it is unavailable.
func defaultWorkers() int {
	n, err := cpu.Counts(true)
	if err != nil || n < 1 {
		return 4
	}
	return n
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

// getEnvAsFloatList parses a comma-separated list. Unlike the scalar helpers a malformed
// entry is an error, since silently dropping a confidence level changes the output.
func getEnvAsFloatList(key string, defaultValue []float64) ([]float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}

	parts := strings.Split(value, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		f, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid %s entry %q: %w", key, p, err)
		}
		out = append(out, f)
	}
	return out, nil
}
