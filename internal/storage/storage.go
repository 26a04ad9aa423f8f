// Package storage persists captioned output videos locally or in S3.
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/dsaderholm/Vosk-Captions-Docker-API-Server/internal/config"
)

// ResultStore abstracts captioned-video storage backends.
type ResultStore interface {
	// SaveFile stores the file at srcPath under key. key format:
	// {YYYY-MM-DD}/{job_id}_{filename}
	SaveFile(ctx context.Context, key, srcPath string) error

	// LocalPath returns the local filesystem path if the file exists on disk.
	// Returns "" if not available locally.
	LocalPath(key string) string

	// URL returns a presigned URL for the result.
	// Returns "" for local-only backends.
	URL(ctx context.Context, key string) (string, error)

	// Exists checks if a result exists.
	Exists(ctx context.Context, key string) bool

	// Type returns "local" or "s3".
	Type() string
}

// New creates a ResultStore based on config. Returns an error if S3 is
// configured but unreachable.
func New(cfg config.S3Config, outputDir string, log zerolog.Logger) (ResultStore, error) {
	if !cfg.Enabled() {
		return NewLocalStore(outputDir), nil
	}

	s3store, err := NewS3Store(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("S3 init failed: %w", err)
	}

	// Startup validation: verify credentials and bucket access
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s3store.HeadBucket(ctx); err != nil {
		return nil, fmt.Errorf("S3 startup check failed (bucket=%q endpoint=%q): %w",
			cfg.Bucket, cfg.Endpoint, err)
	}
	log.Info().Str("bucket", cfg.Bucket).Str("endpoint", cfg.Endpoint).Msg("S3 connection verified")

	return s3store, nil
}

// ResultKey builds the storage key for a job result.
func ResultKey(jobID, filename string, now time.Time) string {
	return fmt.Sprintf("%s/%s_%s", now.UTC().Format("2006-01-02"), jobID, filename)
}
