// Package logging provides structured logging configuration using zerolog.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	// LevelDebug logs debug messages and above.
	LevelDebug LogLevel = "debug"

	// LevelInfo logs info messages and above.
	LevelInfo LogLevel = "info"

	// LevelWarn logs warning messages and above.
	LevelWarn LogLevel = "warn"

	// LevelError logs error messages only.
	LevelError LogLevel = "error"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel

	// Pretty enables human-readable console output (default: false for JSON).
	Pretty bool

	// Output is the writer to output logs to (default: os.Stderr).
	Output io.Writer
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Pretty: false,
		Output: os.Stderr,
	}
}

// Setup configures the global zerolog logger and returns it.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output, TimeFormat: time.DateTime}
	}

	logger := zerolog.New(output).With().Timestamp().Logger()
	log.Logger = logger

	return logger
}

// parseLevel converts LogLevel to zerolog.Level.
func parseLevel(level LogLevel) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(string(level))) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// NewLogger creates a new logger with the given component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// RunLogger returns the logger for one repricing pass. Every line it emits
// names the store and whether writes are suppressed, so interleaved runs
// against several stores stay separable.
func RunLogger(store string, dryRun bool) zerolog.Logger {
	return log.With().
		Str("component", "repricer").
		Str("store", store).
		Bool("dry_run", dryRun).
		Logger()
}

// Log Level Guidelines:
//
// Debug: request flow (method, path, page), call-limit state, pacing waits
//
// Info: run start/finish, fetched totals, variants updated or unchanged
//
// Warn: variants skipped for missing or invalid cost, call-limit throttling,
// 429 retries, Redis state errors (fallback to no delay)
//
// Error: fatal setup or fetch failures, per-variant update failures
//
// Context Fields:
//   - component: emitting package (shopify-client, ratelimit, repricer)
//   - store, dry_run: set once per run by RunLogger
//   - page: catalog page number
//   - variant_id, product_id: remote identifiers
//   - price, new_price: current and computed price text
//   - status: HTTP status code
//   - error_class: client, server, rate_limit, network
//   - calls_used, bucket_size: Shopify call-limit bucket
