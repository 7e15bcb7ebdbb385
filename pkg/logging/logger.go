// Package logging sets up the zerolog logger shared by every jokepool component.
//
// Setup is called once per process, from the CLI after the configuration is loaded.
// Components then take a child logger tagged with their name:
//
//	logger := logging.NewLogger(logging.ComponentPool)
//	logger.Info().Int("shortfall", 4).Msg("Topping up pool")
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ServiceName is attached to every line as the "service" field.
const ServiceName = "jokepool"

// Component names used for the "component" field.
const (
	ComponentCLI      = "jokepool"
	ComponentProvider = "provider"
	ComponentBatch    = "batch"
	ComponentPool     = "pool"
	ComponentHTTP     = "http"
)

// LogLevel is a level name as it appears in config files and LOG_LEVEL.
type LogLevel string

const (
	// LevelDebug adds provider attempts and per-request access lines.
	LevelDebug LogLevel = "debug"

	// LevelInfo adds top-up summaries and server lifecycle events.
	LevelInfo LogLevel = "info"

	// LevelWarn adds skipped items, rate limiting and empty top-ups.
	LevelWarn LogLevel = "warn"

	// LevelError keeps only an unreachable provider, store failures and misconfiguration.
	LevelError LogLevel = "error"
)

// Config is built from the log section of the jokepool config.
type Config struct {
	// Level defaults to info when empty or unknown.
	Level LogLevel

	// Pretty switches from one JSON object per line to zerolog's console format.
	// Meant for a terminal running the CLI, not for collected service logs.
	Pretty bool

	// Output receives the log lines. Nil means stderr, which keeps the CLI's
	// JSON results on stdout clean.
	Output io.Writer
}

// DefaultConfig logs JSON at info level to stderr.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Output: os.Stderr,
	}
}

// Setup installs the process-wide logger and level, and returns the logger.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(ParseLevel(cfg.Level))

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: out}
	}

	logger := zerolog.New(out).With().
		Timestamp().
		Str("service", ServiceName).
		Logger()
	log.Logger = logger

	return logger
}

// ParseLevel maps a level name to its zerolog level. Matching is case-insensitive,
// "warning" is accepted for warn and anything unrecognised falls back to info.
func ParseLevel(level LogLevel) zerolog.Level {
	switch LogLevel(strings.ToLower(strings.TrimSpace(string(level)))) {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelWarn, "warning":
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// NewLogger returns a child of the global logger tagged with component.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Levels by component:
//
//	provider  debug: each attempt       warn: 429 backoff, bad body, transport error
//	batch     info: batch start/finish  warn: skipped item
//	pool      info: top-up summary      warn: nothing added, cut short   error: unreachable
//	http      debug: access line        warn: request timeout            error: 500 causes
//	jokepool  info: wiring, listen/stop
//
// Common fields: attempt, status, outcome, shortfall, fetched, added, failed,
// duration, request_id.
