// Package sampler turns a decoded video into a time-sampled, numbered JPEG
// sequence under <output root>/<logical name>/frames. Runs resume from the
// highest frame already on disk unless overwrite is requested.
package sampler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/maauso/vidframes/internal/media"
)

// DefaultTolerance absorbs floating-point drift when deciding whether a
// decoded frame has reached the next due time.
const DefaultTolerance = 1e-6

var (
	// ErrInvalidFPS is returned when the requested rate is not positive.
	ErrInvalidFPS = errors.New("target fps must be positive")
	// ErrInvalidName is returned when a logical name is empty or would escape the output root.
	ErrInvalidName = errors.New("invalid logical name")
)

// Request describes one sampling run.
type Request struct {
	// SourcePath is the decodable file, usually a scratch copy.
	SourcePath string
	// LogicalName keys the output directory.
	LogicalName string
	// OutputRoot is the directory holding one folder per video.
	OutputRoot string
	// TargetFPS is the sampling rate in frames per second.
	TargetFPS float64
	// Overwrite disables resume and rewrites every due frame.
	Overwrite bool
}

// Result reports what a sampling run did.
type Result struct {
	LogicalName string
	FramesDir   string
	// ResumedFrom is the highest frame index found before decoding started.
	ResumedFrom int
	// Emitted counts frames written during this run.
	Emitted int
	// Skipped counts due frames whose file already existed.
	Skipped int
	// Total is the highest frame index present after the run.
	Total     int
	NativeFPS float64
	// SourceFrames is the frame count the decoder expects to yield, 0 if unknown.
	SourceFrames int
	// Degraded is set when the native rate was unknown and TargetFPS was assumed.
	Degraded bool
}

// Option configures a Sampler.
type Option func(*Sampler)

// WithTolerance overrides DefaultTolerance. Negative values are ignored.
func WithTolerance(tol float64) Option {
	return func(s *Sampler) {
		if tol >= 0 {
			s.tolerance = tol
		}
	}
}

// WithLogger sets the logger used for warnings and progress.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Sampler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Sampler emits frames at a fixed time interval from sources opened by a
// media.Decoder. It holds no per-run state and is safe for concurrent use.
type Sampler struct {
	decoder   media.Decoder
	tolerance float64
	logger    *slog.Logger
}

// New creates a Sampler.
func New(decoder media.Decoder, opts ...Option) *Sampler {
	s := &Sampler{
		decoder:   decoder,
		tolerance: DefaultTolerance,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FramesDir returns the frame directory for a logical name.
func FramesDir(outputRoot, logicalName string) string {
	return filepath.Join(outputRoot, logicalName, FramesDirName)
}

// Sample decodes req.SourcePath and writes every due frame.
//
// A frame at native index i is due when i/nativeFPS reaches the next due
// time within the tolerance; the due time then advances by 1/TargetFPS.
// When resuming from k existing frames the due time starts at k/TargetFPS
// so already covered time is not emitted twice.
//
// The frames directory is created before the source is opened. If the
// source cannot be opened the returned error wraps media.ErrSourceOpen and
// Result still describes the existing output.
func (s *Sampler) Sample(ctx context.Context, req Request) (Result, error) {
	res := Result{LogicalName: req.LogicalName}

	if req.TargetFPS <= 0 {
		return res, fmt.Errorf("%w: %v", ErrInvalidFPS, req.TargetFPS)
	}
	if !validName(req.LogicalName) {
		return res, fmt.Errorf("%w: %q", ErrInvalidName, req.LogicalName)
	}

	logger := s.logger.With(slog.String("video", req.LogicalName))

	res.FramesDir = FramesDir(req.OutputRoot, req.LogicalName)
	if err := os.MkdirAll(res.FramesDir, 0o750); err != nil {
		return res, fmt.Errorf("create frames directory: %w", err)
	}

	counter := 0
	if !req.Overwrite {
		last, err := RecoverCursor(res.FramesDir)
		if err != nil {
			return res, err
		}
		counter = last
	}
	res.ResumedFrom = counter
	res.Total = counter

	if counter > 0 {
		logger.Info("resuming frame sequence", slog.Int("last_index", counter))
	}

	src, err := s.decoder.Open(ctx, req.SourcePath)
	if err != nil {
		return res, err
	}
	defer func() {
		if cerr := src.Close(); cerr != nil {
			logger.Warn("decoder did not exit cleanly", slog.String("error", cerr.Error()))
		}
	}()

	nativeFPS := src.FrameRate()
	if nativeFPS <= 0 {
		logger.Warn("native frame rate unavailable, assuming target rate",
			slog.Float64("target_fps", req.TargetFPS),
		)
		nativeFPS = req.TargetFPS
		res.Degraded = true
	}
	res.NativeFPS = nativeFPS
	res.SourceFrames = src.FrameCount()
	logger.Debug("decoding video",
		slog.Float64("native_fps", nativeFPS),
		slog.Int("source_frames", res.SourceFrames),
	)

	interval := 1 / req.TargetFPS
	nextDue := float64(counter) * interval

	for i := 0; ; i++ {
		if err := ctx.Err(); err != nil {
			return res, fmt.Errorf("sampling cancelled: %w", err)
		}

		img, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return res, fmt.Errorf("decode frame %d: %w", i, err)
		}

		current := float64(i) / nativeFPS
		if current+s.tolerance < nextDue {
			continue
		}

		counter++
		nextDue += interval
		res.Total = counter

		name := FrameFileName(counter)
		if !req.Overwrite && fileExists(filepath.Join(res.FramesDir, name)) {
			res.Skipped++
			continue
		}
		if err := writeFrame(res.FramesDir, name, img); err != nil {
			return res, err
		}
		res.Emitted++
	}

	logger.Debug("sampling finished",
		slog.Int("emitted", res.Emitted),
		slog.Int("skipped", res.Skipped),
		slog.Int("total", res.Total),
	)
	return res, nil
}

// validName rejects names that would place output outside the root.
func validName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return filepath.Base(name) == name
}
