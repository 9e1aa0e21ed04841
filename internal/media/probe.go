package media

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
)

// Static errors for media inspection.
var (
	// ErrFFprobeExecution is returned when the ffprobe command fails.
	ErrFFprobeExecution = errors.New("ffprobe execution failed")
	// ErrNoVideoStream is returned when a file has no decodable video stream.
	ErrNoVideoStream = errors.New("no video stream found")
)

// ProbeStream describes one stream as reported by ffprobe.
type ProbeStream struct {
	Index        int    `json:"index"`
	CodecType    string `json:"codec_type"`
	CodecName    string `json:"codec_name"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	RFrameRate   string `json:"r_frame_rate"`
	AvgFrameRate string `json:"avg_frame_rate"`
	NbFrames     string `json:"nb_frames"`
	Duration     string `json:"duration"`
}

// ProbeFormat captures container-level metadata.
type ProbeFormat struct {
	FormatName string `json:"format_name"`
	Duration   string `json:"duration"`
}

// ProbeResult is the parsed ffprobe output for one file.
type ProbeResult struct {
	Streams []ProbeStream `json:"streams"`
	Format  ProbeFormat   `json:"format"`
}

// VideoStream returns the first video stream, or nil.
func (p *ProbeResult) VideoStream() *ProbeStream {
	for i := range p.Streams {
		if strings.EqualFold(p.Streams[i].CodecType, "video") {
			return &p.Streams[i]
		}
	}
	return nil
}

// FrameRate returns the video stream's native frame rate. r_frame_rate is
// preferred, avg_frame_rate is the fallback, and 0 means unknown.
func (p *ProbeResult) FrameRate() float64 {
	vs := p.VideoStream()
	if vs == nil {
		return 0
	}
	if fps := ParseFrameRate(vs.RFrameRate); fps > 0 {
		return fps
	}
	return ParseFrameRate(vs.AvgFrameRate)
}

// FrameCount returns the reported number of video frames, or 0 when unknown.
func (p *ProbeResult) FrameCount() int {
	vs := p.VideoStream()
	if vs == nil {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimSpace(vs.NbFrames))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// DurationSeconds returns the container duration, or 0 when unavailable.
func (p *ProbeResult) DurationSeconds() float64 {
	d, err := strconv.ParseFloat(strings.TrimSpace(p.Format.Duration), 64)
	if err != nil || d < 0 {
		return 0
	}
	return d
}

// EstimatedFrames returns the reported frame count, falling back to the
// container duration times the frame rate. It returns 0 when neither is known.
func (p *ProbeResult) EstimatedFrames() int {
	if n := p.FrameCount(); n > 0 {
		return n
	}
	return int(math.Round(p.DurationSeconds() * p.FrameRate()))
}

// ParseFrameRate parses an ffprobe rational like "30000/1001" or a plain number.
func ParseFrameRate(fraction string) float64 {
	fraction = strings.TrimSpace(fraction)
	if fraction == "" || fraction == "0/0" {
		return 0
	}
	if num, den, ok := strings.Cut(fraction, "/"); ok {
		n, err1 := strconv.ParseFloat(num, 64)
		d, err2 := strconv.ParseFloat(den, 64)
		if err1 != nil || err2 != nil || d <= 0 || n <= 0 {
			return 0
		}
		return n / d
	}
	v, err := strconv.ParseFloat(fraction, 64)
	if err != nil || v <= 0 {
		return 0
	}
	return v
}

// Probe runs ffprobe against path and decodes its JSON output.
func Probe(ctx context.Context, ffprobePath, path string) (*ProbeResult, error) {
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}

	// #nosec G204 - ffprobePath is set by the application, not user input
	cmd := exec.CommandContext(ctx, ffprobePath,
		"-v", "error",
		"-hide_banner",
		"-show_format",
		"-show_streams",
		"-of", "json",
		"--", path,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("ffprobe cancelled: %w", ctx.Err())
		}
		return nil, fmt.Errorf("%w: %w, stderr: %s", ErrFFprobeExecution, err, strings.TrimSpace(stderr.String()))
	}

	var result ProbeResult
	if err := json.Unmarshal(stdout.Bytes(), &result); err != nil {
		return nil, fmt.Errorf("parse ffprobe output: %w", err)
	}
	return &result, nil
}
