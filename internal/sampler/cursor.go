package sampler

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
)

const (
	// FramesDirName is the per-video subdirectory holding emitted frames.
	FramesDirName = "frames"

	framePrefix = "frames_n"
	frameExt    = ".jpg"
)

var frameNamePattern = regexp.MustCompile(`^frames_n(\d{6,})\.jpg$`)

// FrameFileName returns the file name of the frame with the given 1-based
// sequence index, e.g. frames_n000042.jpg.
func FrameFileName(index int) string {
	return fmt.Sprintf("%s%06d%s", framePrefix, index, frameExt)
}

// ParseFrameIndex extracts the sequence index from a frame file name.
// It reports false for names that are not emitted frames, including
// in-progress temp files and index 0.
func ParseFrameIndex(name string) (int, bool) {
	m := frameNamePattern.FindStringSubmatch(name)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// RecoverCursor returns the highest frame index already present in
// framesDir, or 0 when the directory is missing or holds no frames.
// Sub-directories and unrelated files are ignored.
func RecoverCursor(framesDir string) (int, error) {
	entries, err := os.ReadDir(framesDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("read frames directory: %w", err)
	}

	last := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if n, ok := ParseFrameIndex(e.Name()); ok && n > last {
			last = n
		}
	}
	return last, nil
}
