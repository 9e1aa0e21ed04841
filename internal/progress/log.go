package progress

import (
	"log/slog"
	"sync"
)

// LogReporter writes progress as structured log records. It is used when
// stderr is not a terminal.
type LogReporter struct {
	logger *slog.Logger

	mu    sync.Mutex
	total int
	done  int
}

// NewLogReporter creates a LogReporter. A nil logger uses slog.Default().
func NewLogReporter(logger *slog.Logger) *LogReporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogReporter{logger: logger}
}

func (r *LogReporter) Stage(stage Stage) {
	r.logger.Info("stage", slog.String("stage", string(stage)))
}

func (r *LogReporter) Start(total int) {
	r.mu.Lock()
	r.total = total
	r.done = 0
	r.mu.Unlock()
	r.logger.Info("processing videos", slog.Int("videos", total))
}

func (r *LogReporter) VideoStarted(name string) {
	r.logger.Debug("video started", slog.String("video", name))
}

func (r *LogReporter) VideoFinished(status VideoStatus) {
	r.mu.Lock()
	r.done++
	done, total := r.done, r.total
	r.mu.Unlock()

	attrs := []any{
		slog.String("video", status.Name),
		slog.String("status", status.Status),
		slog.Int("emitted", status.Emitted),
		slog.Int("total_frames", status.Total),
		slog.Int("source_frames", status.SourceFrames),
		slog.Int("done", done),
		slog.Int("of", total),
	}
	if status.Err != "" {
		attrs = append(attrs, slog.String("error", status.Err))
		r.logger.Warn("video finished with errors", attrs...)
		return
	}
	r.logger.Info("video finished", attrs...)
}

func (r *LogReporter) Finish() {
	r.mu.Lock()
	done := r.done
	r.mu.Unlock()
	r.logger.Info("all videos processed", slog.Int("videos", done))
}

var _ Reporter = (*LogReporter)(nil)
