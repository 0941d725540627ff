// Package logger builds the service's zerolog loggers and carries them
// through contexts.
package logger

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Config selects the log level and sink. It mirrors config.LoggingConfig so
// this package stays import-free of the config layer.
type Config struct {
	Level     string
	Output    string // stdout (default), console, file
	FilePath  string
	MaxSizeMB int
	MaxFiles  int
}

type contextKey string

const (
	loggerKey        contextKey = "logger"
	correlationIDKey contextKey = "correlation_id"
)

// New creates a zerolog.Logger with the specified level and JSON output.
// If the level string is invalid, it defaults to info.
func New(level string) zerolog.Logger {
	return newWithWriter(level, os.Stdout)
}

// NewFromConfig creates a zerolog.Logger writing to the sink named by
// cfg.Output:
//   - "file": rotating file via lumberjack
//   - "console": human-readable zerolog.ConsoleWriter on stderr
//   - "stdout" or any other value: JSON on os.Stdout
func NewFromConfig(cfg Config) zerolog.Logger {
	var writer io.Writer
	switch cfg.Output {
	case "file":
		writer = NewFileWriter(FileConfig{
			Path:      cfg.FilePath,
			MaxSizeMB: cfg.MaxSizeMB,
			MaxFiles:  cfg.MaxFiles,
		})
	case "console":
		writer = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.DateTime}
	default:
		writer = os.Stdout
	}
	return newWithWriter(cfg.Level, writer)
}

func newWithWriter(level string, w io.Writer) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}

	return zerolog.New(w).
		Level(lvl).
		With().
		Timestamp().
		Str("service", "report-mailer").
		Logger()
}

// WithLogger stores a logger in the context.
func WithLogger(ctx context.Context, logger zerolog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// WithCorrelationID stores a correlation ID in the context.
func WithCorrelationID(ctx context.Context, correlationID string) context.Context {
	return context.WithValue(ctx, correlationIDKey, correlationID)
}

// CorrelationIDFromContext retrieves the correlation ID from the context.
// Returns an empty string if not set.
func CorrelationIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(correlationIDKey).(string); ok {
		return id
	}
	return ""
}

// FromContext retrieves the logger from the context, tagged with the
// correlation ID when one is present. Without a stored logger it returns a
// disabled logger so library code never writes to an unexpected sink.
func FromContext(ctx context.Context) zerolog.Logger {
	log := zerolog.Nop()
	if l, ok := ctx.Value(loggerKey).(zerolog.Logger); ok {
		log = l
	}

	if id := CorrelationIDFromContext(ctx); id != "" {
		log = log.With().Str("correlation_id", id).Logger()
	}
	return log
}

// NewCorrelationID generates a new UUID-based correlation ID.
func NewCorrelationID() string {
	return uuid.New().String()
}
