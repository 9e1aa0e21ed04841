// Package bootstrap provides dependency initialization for vidframes.
package bootstrap

import (
	"fmt"
	"log/slog"

	"github.com/maauso/vidframes/internal/config"
	"github.com/maauso/vidframes/internal/job"
	"github.com/maauso/vidframes/internal/media"
	"github.com/maauso/vidframes/internal/pipeline"
	"github.com/maauso/vidframes/internal/sampler"
	"github.com/maauso/vidframes/internal/storage"
)

// Dependencies holds all initialized dependencies for a decode run.
type Dependencies struct {
	Service *pipeline.Service
	Store   storage.Storage
	Pool    *job.Pool
	Repo    job.Repository
	// Publish is true when frames are uploaded to S3 after sampling.
	Publish bool
}

// NewDependencies creates and initializes all dependencies for the application.
func NewDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	if logger == nil {
		logger = slog.Default()
	}

	// Initialize storage
	store, err := initStorage(cfg, logger)
	if err != nil {
		return nil, err
	}

	// Initialize decoder and sampler
	decoder := media.NewFFmpegDecoder(cfg.FFmpegPath, cfg.FFprobePath)
	smp := sampler.New(decoder,
		sampler.WithTolerance(cfg.SampleTolerance),
		sampler.WithLogger(logger),
	)

	// Initialize job repository and worker pool
	repo := job.NewMemoryRepository()
	pool := job.NewPool(job.NewExtractor(store), smp, store, repo, logger)
	pool.SetMaxWorkers(cfg.Workers())
	pool.SetDecodeTimeout(cfg.DecodeTimeout)

	svc := pipeline.NewService(store, pool, logger)
	svc.SetPublish(cfg.S3Enabled())

	return &Dependencies{
		Service: svc,
		Store:   store,
		Pool:    pool,
		Repo:    repo,
		Publish: cfg.S3Enabled(),
	}, nil
}

// initStorage creates the appropriate storage backend based on configuration.
func initStorage(cfg *config.Config, logger *slog.Logger) (storage.Storage, error) {
	if cfg.S3Enabled() {
		s3Cfg := storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Prefix:          cfg.S3Prefix,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		}
		s3Store, err := storage.NewS3Storage(cfg.TempDir, s3Cfg)
		if err != nil {
			return nil, fmt.Errorf("create S3 storage: %w", err)
		}
		logger.Debug("S3 publishing configured",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("region", cfg.S3Region),
			slog.String("prefix", cfg.S3Prefix),
		)
		return s3Store, nil
	}

	localStore, err := storage.NewLocalStorage(cfg.TempDir)
	if err != nil {
		return nil, fmt.Errorf("create local storage: %w", err)
	}
	logger.Debug("local storage configured",
		slog.String("temp_dir", localStore.TempDir()),
	)
	return localStore, nil
}
