package media

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os/exec"
	"sync"
)

// ErrSourceOpen is returned when a media file cannot be opened for decoding.
var ErrSourceOpen = errors.New("cannot open media source")

// stderrTail bounds how much ffmpeg diagnostic output is kept per process.
const stderrTail = 16 << 10

// FFmpegDecoder implements Decoder by piping raw RGBA frames out of ffmpeg.
type FFmpegDecoder struct {
	// ffmpegPath is the path to the ffmpeg binary. Defaults to "ffmpeg".
	ffmpegPath string
	// ffprobePath is the path to the ffprobe binary. Defaults to "ffprobe".
	ffprobePath string
}

// NewFFmpegDecoder creates a new FFmpegDecoder.
// Empty paths default to "ffmpeg" and "ffprobe" found via PATH.
func NewFFmpegDecoder(ffmpegPath, ffprobePath string) *FFmpegDecoder {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &FFmpegDecoder{ffmpegPath: ffmpegPath, ffprobePath: ffprobePath}
}

// Open probes path and starts an ffmpeg process decoding its first video
// stream. The process is tied to ctx: cancelling ctx kills the decode.
func (d *FFmpegDecoder) Open(ctx context.Context, path string) (Source, error) {
	probe, err := Probe(ctx, d.ffprobePath, path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSourceOpen, err)
	}

	vs := probe.VideoStream()
	if vs == nil {
		return nil, fmt.Errorf("%w: %w", ErrSourceOpen, ErrNoVideoStream)
	}
	if vs.Width <= 0 || vs.Height <= 0 {
		return nil, fmt.Errorf("%w: invalid dimensions %dx%d", ErrSourceOpen, vs.Width, vs.Height)
	}

	args := []string{
		"-v", "error",
		"-nostdin",
		"-noautorotate", // keep output dimensions equal to the probed ones
		"-i", path,
		"-map", "0:v:0",
		"-vsync", "0",
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-",
	}

	// #nosec G204 - ffmpegPath is set by the application, not user input
	cmd := exec.CommandContext(ctx, d.ffmpegPath, args...)

	stderr := &tailBuffer{max: stderrTail}
	cmd.Stderr = stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: stdout pipe: %w", ErrSourceOpen, err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: start ffmpeg: %w", ErrSourceOpen, err)
	}

	return &frameStream{
		ctx:        ctx,
		cmd:        cmd,
		args:       args,
		stdout:     stdout,
		stderr:     stderr,
		frameRate:  probe.FrameRate(),
		frameCount: probe.EstimatedFrames(),
		img:        image.NewRGBA(image.Rect(0, 0, vs.Width, vs.Height)),
	}, nil
}

// frameStream reads fixed-size RGBA frames from a running ffmpeg process.
// Each frame is read straight into img.Pix, which is reused across frames.
type frameStream struct {
	ctx        context.Context
	cmd        *exec.Cmd
	args       []string
	stdout     io.Reader
	stderr     *tailBuffer
	frameRate  float64
	frameCount int
	img        *image.RGBA

	drained   bool
	eof       bool
	closeOnce sync.Once
	closeErr  error
}

func (s *frameStream) FrameRate() float64 {
	return s.frameRate
}

func (s *frameStream) FrameCount() int {
	return s.frameCount
}

// Next reads one frame. A truncated trailing frame is treated as the end
// of the stream; Close reports the ffmpeg exit status.
func (s *frameStream) Next() (image.Image, error) {
	if s.drained {
		return nil, io.EOF
	}

	_, err := io.ReadFull(s.stdout, s.img.Pix)
	if err == nil {
		return s.img, nil
	}

	s.drained = true
	if ctxErr := s.ctx.Err(); ctxErr != nil {
		return nil, fmt.Errorf("ffmpeg cancelled: %w", ctxErr)
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		s.eof = true
		return nil, io.EOF
	}
	return nil, fmt.Errorf("read frame: %w", err)
}

// Close stops ffmpeg if it is still running and waits for it to exit.
func (s *frameStream) Close() error {
	s.closeOnce.Do(func() {
		killed := false
		if !s.eof && s.cmd.Process != nil {
			_ = s.cmd.Process.Kill()
			killed = true
		}

		err := s.cmd.Wait()
		if err == nil || killed || s.ctx.Err() != nil {
			return
		}
		s.closeErr = &FFmpegError{
			Args:   s.args,
			Stderr: s.stderr.String(),
			Err:    err,
		}
	})
	return s.closeErr
}

// FFmpegError represents an error from running ffmpeg, including the stderr output.
type FFmpegError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *FFmpegError) Error() string {
	return fmt.Sprintf("ffmpeg error: %v\nargs: %v\nstderr: %s", e.Err, e.Args, e.Stderr)
}

func (e *FFmpegError) Unwrap() error {
	return e.Err
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	mu  sync.Mutex
	max int
	buf []byte
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	if over := len(b.buf) - b.max; over > 0 {
		b.buf = append(b.buf[:0], b.buf[over:]...)
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}

// Verify interface implementation at compile time.
var _ Decoder = (*FFmpegDecoder)(nil)
