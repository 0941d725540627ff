// Package attachment provides read access to generated report archives,
// stored either on the local filesystem or in an S3-compatible bucket.
package attachment

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
)

// ErrNotFound is returned when a requested archive does not exist.
var ErrNotFound = errors.New("attachment: not found")

// Store defines the interface for archive storage backends.
type Store interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
}

// Config holds configuration for creating a Store.
type Config struct {
	Type       string `mapstructure:"type"` // "local" or "s3"
	Path       string `mapstructure:"path"` // base directory for local store
	S3Bucket   string `mapstructure:"s3_bucket"`
	S3Prefix   string `mapstructure:"s3_prefix"`
	S3Endpoint string `mapstructure:"s3_endpoint"`
	S3Region   string `mapstructure:"s3_region"`
}

// New creates a Store based on the provided configuration.
// If Type is empty or unsupported, it defaults to local storage and logs a warning.
func New(ctx context.Context, cfg Config, logger zerolog.Logger) (Store, error) {
	switch cfg.Type {
	case "local":
		return NewLocalStore(cfg.Path)
	case "s3":
		return NewS3StoreFromConfig(ctx, cfg)
	default:
		logger.Warn().
			Str("type", cfg.Type).
			Msg("unsupported or empty attachment store type, defaulting to local")
		return NewLocalStore(cfg.Path)
	}
}
