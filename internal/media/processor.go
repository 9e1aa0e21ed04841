// Package media provides video inspection and frame-by-frame decoding.
// Implementations drive the ffmpeg and ffprobe CLIs.
package media

import (
	"context"
	"image"
)

// Source is an opened video yielding decoded frames in presentation order.
type Source interface {
	// FrameRate returns the native frame rate, or 0 when it is unknown.
	FrameRate() float64

	// FrameCount returns how many frames the source is expected to yield,
	// or 0 when it is unknown.
	FrameCount() int

	// Next returns the next decoded frame. It returns io.EOF once the
	// source has no further frames. The returned image is only valid
	// until the next call.
	Next() (image.Image, error)

	// Close releases the decoder. It is safe to call more than once.
	Close() error
}

// Decoder opens media files for frame-by-frame decoding.
type Decoder interface {
	// Open prepares path for decoding. Failures wrap ErrSourceOpen.
	Open(ctx context.Context, path string) (Source, error)
}
