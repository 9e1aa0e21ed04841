// Package pipeline runs a complete decode: it resolves and assembles the
// archive parts, enumerates media entries, drives the worker pool and
// optionally publishes the frames. Every scratch resource acquired on the
// way is released on all exit paths.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"github.com/maauso/vidframes/internal/archive"
	"github.com/maauso/vidframes/internal/job"
	"github.com/maauso/vidframes/internal/job/id"
	"github.com/maauso/vidframes/internal/progress"
	"github.com/maauso/vidframes/internal/sampler"
	"github.com/maauso/vidframes/internal/storage"
)

// LockFileName is created in the output directory while a run holds it.
const LockFileName = ".vidframes.lock"

// Runner executes the worker pool for a set of entries.
type Runner interface {
	Run(ctx context.Context, req job.RunRequest) ([]*job.Job, error)
}

// Request holds the inputs of one run.
type Request struct {
	// PartPath is any one fragment of the archive.
	PartPath string
	// OutputDir is the root of the per-video frame directories.
	OutputDir string
	// FPS is the target sampling rate.
	FPS float64
	// Overwrite disables resume.
	Overwrite bool
	// Reporter receives progress. Nil discards it.
	Reporter progress.Reporter
}

// Service orchestrates decode runs.
type Service struct {
	store   storage.Storage
	runner  Runner
	logger  *slog.Logger
	publish bool
}

// NewService creates a new Service.
func NewService(store storage.Storage, runner Runner, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  store,
		runner: runner,
		logger: logger,
	}
}

// SetPublish enables uploading each completed video's frames through the
// store's S3 support after the pool finishes.
func (s *Service) SetPublish(enabled bool) {
	s.publish = enabled
}

// Run performs one decode run. Fatal failures are returned as *StageError.
// Per-video failures are reported in the summary only. When the run is
// cancelled during sampling the partial summary is returned with the error.
func (s *Service) Run(ctx context.Context, req Request) (*Summary, error) {
	started := time.Now()
	reporter := req.Reporter
	if reporter == nil {
		reporter = progress.Nop{}
	}

	runID := id.GenerateRun()
	logger := s.logger.With(slog.String("run_id", runID))
	summary := &Summary{RunID: runID, OutputDir: req.OutputDir}

	reporter.Stage(progress.StageLock)
	unlock, err := lockOutput(req.OutputDir)
	if err != nil {
		return nil, stageErr(progress.StageLock, err)
	}
	defer func() {
		if err := unlock(); err != nil {
			logger.Warn("failed to release output lock", slog.String("error", err.Error()))
		}
	}()

	reporter.Stage(progress.StageResolve)
	parts, err := archive.Resolve(req.PartPath)
	if err != nil {
		return nil, stageErr(progress.StageResolve, err)
	}
	summary.Parts = parts
	logger.Info("resolved archive parts",
		slog.Int("parts", len(parts)),
		slog.String("order", strings.Join(archive.Names(parts), ", ")),
	)

	reporter.Stage(progress.StageAssemble)
	assembled, err := archive.Assemble(ctx, parts, s.store.TempDir(), logger)
	if err != nil {
		return nil, stageErr(progress.StageAssemble, err)
	}
	defer func() { _ = assembled.Release() }()
	summary.Merged = assembled.OwnsTempFile
	if assembled.OwnsTempFile {
		logger.Info("assembled split archive", slog.String("path", assembled.Path))
	}

	reporter.Stage(progress.StageOpen)
	reader, err := archive.Open(assembled, logger)
	if err != nil {
		return nil, stageErr(progress.StageOpen, err)
	}
	defer func() { _ = reader.Close() }()

	entries := reader.MediaEntries()
	logger.Info("found media entries", slog.Int("videos", len(entries)))

	reporter.Stage(progress.StageSample)
	jobs, err := s.runner.Run(ctx, job.RunRequest{
		RunID:      runID,
		Entries:    entries,
		OutputRoot: req.OutputDir,
		TargetFPS:  req.FPS,
		Overwrite:  req.Overwrite,
		Reporter:   reporter,
	})
	if err != nil {
		for _, j := range jobs {
			summary.Videos = append(summary.Videos, summarize(j))
		}
		summary.Duration = time.Since(started)
		return summary, stageErr(progress.StageSample, err)
	}

	if s.publish {
		reporter.Stage(progress.StagePublish)
		s.publishFrames(ctx, jobs, logger)
	}

	for _, j := range jobs {
		summary.Videos = append(summary.Videos, summarize(j))
	}
	summary.Duration = time.Since(started)

	logger.Info("run finished",
		slog.Int("videos", len(summary.Videos)),
		slog.Int("failed", summary.Failed()),
		slog.Int("new_frames", summary.NewFrames()),
		slog.Duration("duration", summary.Duration),
	)
	return summary, nil
}

// publishFrames uploads the frames of every completed video. Failures are
// logged and recorded on the job; they do not fail the run.
func (s *Service) publishFrames(ctx context.Context, jobs []*job.Job, logger *slog.Logger) {
	for _, j := range jobs {
		if j.GetStatus() != job.StatusCompleted {
			continue
		}
		keyPrefix := path.Join(j.LogicalName, sampler.FramesDirName)
		n, err := storage.PublishFrames(ctx, s.store, j.FramesDir, keyPrefix)
		j.SetPublished(n)
		if err != nil {
			logger.Error("failed to publish frames",
				slog.String("video", j.LogicalName),
				slog.Int("uploaded", n),
				slog.String("error", err.Error()),
			)
			j.SetPublishError(fmt.Sprintf("publish: %v", err))
			continue
		}
		logger.Info("published frames",
			slog.String("video", j.LogicalName),
			slog.Int("uploaded", n),
		)
	}
}

// Parts resolves the fragments of the archive containing partPath.
func (s *Service) Parts(partPath string) ([]archive.Fragment, error) {
	parts, err := archive.Resolve(partPath)
	if err != nil {
		return nil, stageErr(progress.StageResolve, err)
	}
	return parts, nil
}

// Entries lists the media entries of the archive containing partPath,
// assembling it if needed. The returned entries only carry metadata; the
// archive is closed and any merged file removed before returning.
func (s *Service) Entries(ctx context.Context, partPath string) ([]archive.MediaEntry, error) {
	parts, err := s.Parts(partPath)
	if err != nil {
		return nil, err
	}

	assembled, err := archive.Assemble(ctx, parts, s.store.TempDir(), s.logger)
	if err != nil {
		return nil, stageErr(progress.StageAssemble, err)
	}
	defer func() { _ = assembled.Release() }()

	reader, err := archive.Open(assembled, s.logger)
	if err != nil {
		return nil, stageErr(progress.StageOpen, err)
	}
	defer func() { _ = reader.Close() }()

	return reader.MediaEntries(), nil
}

// lockOutput creates dir and takes an exclusive lock inside it.
func lockOutput(dir string) (func() error, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	lock := flock.New(filepath.Join(dir, LockFileName))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, ErrRunLocked
	}
	return lock.Unlock, nil
}
