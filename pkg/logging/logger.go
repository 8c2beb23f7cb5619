// Package logging configures the process-wide zerolog logger.
package logging

import (
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
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

	// Service is added to every line when set.
	Service string
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:   LevelInfo,
		Output:  os.Stderr,
		Service: "nasa-media-proxy",
	}
}

// Setup configures the global zerolog logger and returns it.
// Output passes through a redacting writer so an api_key value that slips
// into a message or field is masked before it is written.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	out = &redactingWriter{w: out}
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: out}
	}

	ctx := zerolog.New(out).With().Timestamp()
	if cfg.Service != "" {
		ctx = ctx.Str("service", cfg.Service)
	}
	logger := ctx.Logger()

	log.Logger = logger
	return logger
}

// parseLevel converts LogLevel to zerolog.Level.
func parseLevel(level LogLevel) zerolog.Level {
	switch strings.ToLower(string(level)) {
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

var apiKeyPattern = regexp.MustCompile(`(?i)(api_key=)[^&\s"\\]+`)

// redactingWriter masks api_key query values in each write.
type redactingWriter struct {
	w io.Writer
}

func (r *redactingWriter) Write(p []byte) (int, error) {
	if !apiKeyPattern.Match(p) {
		return r.w.Write(p)
	}
	if _, err := r.w.Write(apiKeyPattern.ReplaceAll(p, []byte("${1}REDACTED"))); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Log Level Guidelines:
//
// Debug: cache hit/miss with key, window translation (pages, offset),
// upstream request (endpoint, query without credential).
//
// Info: startup and shutdown, config summary, retry success.
//
// Warn: cache backend errors (request continues upstream), quota
// throttling, upstream non-2xx, timeouts, retry exhaustion.
//
// Error: reconcile failures returned to callers, quota critical blocks,
// server failures.
//
// Context Fields:
//   - component: package-level logger name
//   - upstream: "api" or "images"
//   - endpoint: upstream path
//   - key: canonical cache key (never contains the credential)
//   - status: upstream HTTP status
//   - error_class: client, server, rate_limit, timeout, network
//   - remaining: upstream quota remaining
//   - request_id: inbound request id
