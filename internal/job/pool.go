package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/maauso/vidframes/internal/archive"
	"github.com/maauso/vidframes/internal/job/id"
	"github.com/maauso/vidframes/internal/media"
	"github.com/maauso/vidframes/internal/progress"
	"github.com/maauso/vidframes/internal/sampler"
)

// Materializer copies an archive entry to a private scratch file.
type Materializer interface {
	Materialize(ctx context.Context, entry archive.MediaEntry) (string, error)
}

// FrameSampler decodes one scratch file into a frame sequence.
type FrameSampler interface {
	Sample(ctx context.Context, req sampler.Request) (sampler.Result, error)
}

// ScratchCleaner removes scratch files.
type ScratchCleaner interface {
	CleanupTemp(ctx context.Context, paths []string) error
}

// RunRequest describes one pool run.
type RunRequest struct {
	// RunID groups the created jobs. Empty generates a new one.
	RunID string
	// Entries are dispatched in order.
	Entries    []archive.MediaEntry
	OutputRoot string
	TargetFPS  float64
	Overwrite  bool
	// Reporter receives per-video progress. Nil discards it.
	Reporter progress.Reporter
}

// Pool runs one worker goroutine per media entry with at most Bound of them
// in flight. Admission is a FIFO window: when the window is full the pool
// waits for the oldest dispatched worker before materializing the next
// entry, so no more than Bound scratch files exist at once.
type Pool struct {
	materializer Materializer
	sampler      FrameSampler
	scratch      ScratchCleaner
	repo         Repository
	logger       *slog.Logger

	// maxWorkers caps concurrent decodes.
	maxWorkers int
	// decodeTimeout bounds each decode; zero means no deadline.
	decodeTimeout time.Duration
}

// NewPool creates a Pool. Concurrency defaults to runtime.NumCPU().
func NewPool(materializer Materializer, fs FrameSampler, scratch ScratchCleaner, repo Repository, logger *slog.Logger) *Pool {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pool{
		materializer: materializer,
		sampler:      fs,
		scratch:      scratch,
		repo:         repo,
		logger:       logger,
		maxWorkers:   runtime.NumCPU(),
	}
}

// SetMaxWorkers configures the maximum number of concurrent workers.
// Non-positive values are ignored.
func (p *Pool) SetMaxWorkers(n int) {
	if n > 0 {
		p.maxWorkers = n
	}
}

// SetDecodeTimeout configures the per-video decode deadline.
// Zero disables it; negative values are ignored.
func (p *Pool) SetDecodeTimeout(d time.Duration) {
	if d >= 0 {
		p.decodeTimeout = d
	}
}

// Bound returns the admission bound for n entries: min(n, max workers).
func (p *Pool) Bound(n int) int {
	return min(n, p.maxWorkers)
}

// Run dispatches every entry and waits for all workers. Per-video failures
// are recorded on the returned jobs and never abort the run. Each worker's
// scratch file is removed exactly once after it finishes. The returned
// error is non-nil only when ctx was cancelled; jobs not yet dispatched are
// then marked CANCELLED.
func (p *Pool) Run(ctx context.Context, req RunRequest) ([]*Job, error) {
	runID := req.RunID
	if runID == "" {
		runID = id.GenerateRun()
	}
	reporter := req.Reporter
	if reporter == nil {
		reporter = progress.Nop{}
	}

	bound := p.Bound(len(req.Entries))
	p.logger.Info("starting worker pool",
		slog.String("run_id", runID),
		slog.Int("videos", len(req.Entries)),
		slog.Int("bound", bound),
	)
	reporter.Start(len(req.Entries))

	window := make([]chan struct{}, 0, bound)
	for seq, entry := range req.Entries {
		j := New(runID, seq, entry.Name, entry.LogicalName)
		p.save(ctx, j)

		if len(window) == bound {
			<-window[0]
			window = window[1:]
		}

		if err := ctx.Err(); err != nil {
			p.finish(ctx, j, reporter, func() error { return j.Cancel(err.Error()) })
			continue
		}

		scratch, err := p.materializer.Materialize(ctx, entry)
		if err != nil {
			p.logger.Error("failed to materialize entry",
				slog.String("job_id", j.ID),
				slog.String("entry", entry.Name),
				slog.String("error", err.Error()),
			)
			p.finish(ctx, j, reporter, func() error { return j.Fail(err.Error()) })
			continue
		}

		ej := ExtractionJob{
			ID:          j.ID,
			Seq:         seq,
			EntryName:   entry.Name,
			LogicalName: entry.LogicalName,
			ScratchPath: scratch,
			OutputRoot:  req.OutputRoot,
			TargetFPS:   req.TargetFPS,
			Overwrite:   req.Overwrite,
		}

		done := make(chan struct{})
		window = append(window, done)
		go func(ej ExtractionJob, j *Job) {
			defer close(done)
			p.work(ctx, ej, j, reporter)
		}(ej, j)
	}

	for _, done := range window {
		<-done
	}
	reporter.Finish()

	jobs, err := p.repo.ListByRun(context.WithoutCancel(ctx), runID)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return jobs, fmt.Errorf("run cancelled: %w", err)
	}
	return jobs, nil
}

// work samples one video. The scratch file is removed before the worker
// reports itself done to the dispatch loop.
func (p *Pool) work(ctx context.Context, ej ExtractionJob, j *Job, reporter progress.Reporter) {
	logger := p.logger.With(
		slog.String("job_id", ej.ID),
		slog.String("video", ej.LogicalName),
	)
	defer p.cleanup(ej.ScratchPath, logger)
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		logger.Error("worker panicked", slog.Any("panic", r))
		if !j.IsTerminal() {
			p.finish(ctx, j, reporter, func() error { return j.Fail(fmt.Sprintf("worker panic: %v", r)) })
		}
	}()

	if err := j.Start(); err != nil {
		logger.Error("failed to start job", slog.String("error", err.Error()))
		return
	}
	p.save(ctx, j)
	reporter.VideoStarted(ej.LogicalName)

	wctx, cancel := ctx, context.CancelFunc(func() {})
	if p.decodeTimeout > 0 {
		wctx, cancel = context.WithTimeout(ctx, p.decodeTimeout)
	}
	defer cancel()

	res, err := p.sampler.Sample(wctx, ej.SampleRequest())
	j.SetResult(res)

	var transition func() error
	switch {
	case err == nil:
		logger.Info("video sampled",
			slog.Int("emitted", res.Emitted),
			slog.Int("total_frames", res.Total),
			slog.Int("resumed_from", res.ResumedFrom),
			slog.Bool("degraded", res.Degraded),
		)
		transition = j.Complete
	case ctx.Err() != nil:
		logger.Warn("video cancelled", slog.String("error", err.Error()))
		transition = func() error { return j.Cancel(err.Error()) }
	case wctx.Err() != nil:
		logger.Error("decode timed out, decoder killed",
			slog.Duration("timeout", p.decodeTimeout),
			slog.Int("emitted", res.Emitted),
		)
		transition = func() error { return j.Timeout(err.Error()) }
	case errors.Is(err, media.ErrSourceOpen):
		logger.Error("cannot open video", slog.String("error", err.Error()))
		transition = func() error { return j.Fail(err.Error()) }
	default:
		logger.Error("sampling failed",
			slog.Int("emitted", res.Emitted),
			slog.String("error", err.Error()),
		)
		transition = func() error { return j.Fail(err.Error()) }
	}

	p.finish(ctx, j, reporter, transition)
}

// finish applies a terminal transition, persists the job and reports it.
func (p *Pool) finish(ctx context.Context, j *Job, reporter progress.Reporter, transition func() error) {
	if err := transition(); err != nil {
		p.logger.Error("invalid job transition",
			slog.String("job_id", j.ID),
			slog.String("status", string(j.GetStatus())),
			slog.String("error", err.Error()),
		)
	}
	p.save(ctx, j)
	reporter.VideoFinished(VideoStatus(j))
}

func (p *Pool) cleanup(path string, logger *slog.Logger) {
	if err := p.scratch.CleanupTemp(context.Background(), []string{path}); err != nil {
		logger.Warn("failed to remove scratch file",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
	}
}

func (p *Pool) save(ctx context.Context, j *Job) {
	if err := p.repo.Save(context.WithoutCancel(ctx), j); err != nil {
		p.logger.Warn("failed to save job",
			slog.String("job_id", j.ID),
			slog.String("error", err.Error()),
		)
	}
}

// VideoStatus converts a job into the reporter's view of it.
func VideoStatus(j *Job) progress.VideoStatus {
	c := j.Clone()
	return progress.VideoStatus{
		Name:         c.LogicalName,
		Status:       string(c.Status),
		Emitted:      c.Emitted,
		Total:        c.TotalFrames,
		SourceFrames: c.SourceFrames,
		Err:          c.Error,
	}
}
