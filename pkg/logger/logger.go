// Package logger builds the structured zerolog logger shared by the engine, the batch
// coordinator and the HTTP server.
package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config holds logger configuration
type Config struct {
	Level  string    // debug, info, warn, error
	Pretty bool      // Human readable console output
	Output io.Writer // Defaults to os.Stdout
}

// ParseLevel maps a configured level name to a zerolog level.
// Unknown or empty names fall back to info.
func ParseLevel(name string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// New creates a new structured logger and sets the global level.
func New(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(ParseLevel(cfg.Level))
	zerolog.TimeFieldFormat = time.RFC3339

	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: "15:04:05",
		}
	}

	return zerolog.New(out).
		With().
		Timestamp().
		Caller().
		Logger()
}

// Nop returns a disabled logger, used by tests and optional collaborators.
func Nop() zerolog.Logger {
	return zerolog.New(nil).Level(zerolog.Disabled)
}

// SetGlobalLogger sets the package-level logger
func SetGlobalLogger(l zerolog.Logger) {
	log.Logger = l
}
