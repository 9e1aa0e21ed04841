package archive

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// ErrNoFragments is returned when Assemble is called with an empty sequence.
var ErrNoFragments = errors.New("no archive fragments to assemble")

// copyBufferSize is the streaming buffer used while concatenating parts.
const copyBufferSize = 1 << 20

// AssemblyError reports an I/O failure while concatenating fragments.
type AssemblyError struct {
	Fragment string
	Err      error
}

func (e *AssemblyError) Error() string {
	if e.Fragment == "" {
		return fmt.Sprintf("assemble archive: %v", e.Err)
	}
	return fmt.Sprintf("assemble archive at %s: %v", filepath.Base(e.Fragment), e.Err)
}

func (e *AssemblyError) Unwrap() error {
	return e.Err
}

// Assembled is a single readable zip file holding the whole logical archive.
type Assembled struct {
	// Path is the file to open for reading.
	Path string
	// OwnsTempFile is true when Path is a merged scratch file that Release deletes.
	OwnsTempFile bool

	logger      *slog.Logger
	releaseOnce sync.Once
	releaseErr  error
}

// Release deletes the merged scratch file if this archive owns one.
// It is safe to call more than once; the file is removed at most once.
func (a *Assembled) Release() error {
	if a == nil || !a.OwnsTempFile {
		return nil
	}
	a.releaseOnce.Do(func() {
		if err := os.Remove(a.Path); err != nil && !os.IsNotExist(err) {
			a.releaseErr = fmt.Errorf("remove merged archive %s: %w", a.Path, err)
			a.logger.Warn("failed to remove merged archive",
				slog.String("path", a.Path),
				slog.String("error", err.Error()),
			)
		}
	})
	return a.releaseErr
}

// Assemble produces a single archive from ordered fragments. A lone complete
// archive is returned by reference; anything else is streamed into a new
// scratch file under tempDir (os.TempDir() when empty).
func Assemble(ctx context.Context, parts []Fragment, tempDir string, logger *slog.Logger) (*Assembled, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if len(parts) == 0 {
		return nil, &AssemblyError{Err: ErrNoFragments}
	}

	if len(parts) == 1 && parts[0].Convention == ConventionComplete {
		return &Assembled{Path: parts[0].Path, logger: logger}, nil
	}

	out, err := os.CreateTemp(tempDir, "merged_zip_*.zip")
	if err != nil {
		return nil, &AssemblyError{Err: fmt.Errorf("create merged archive: %w", err)}
	}
	mergedPath := out.Name()

	if err := concatenate(ctx, out, parts, logger); err != nil {
		_ = out.Close()
		_ = os.Remove(mergedPath)
		return nil, err
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(mergedPath)
		return nil, &AssemblyError{Err: fmt.Errorf("close merged archive: %w", err)}
	}

	return &Assembled{Path: mergedPath, OwnsTempFile: true, logger: logger}, nil
}

func concatenate(ctx context.Context, out *os.File, parts []Fragment, logger *slog.Logger) error {
	w := bufio.NewWriterSize(out, copyBufferSize)
	buf := make([]byte, copyBufferSize)

	for _, part := range parts {
		if err := ctx.Err(); err != nil {
			return &AssemblyError{Fragment: part.Path, Err: err}
		}

		logger.Info("merging part", slog.String("part", filepath.Base(part.Path)))

		if err := appendFragment(w, part.Path, buf); err != nil {
			return &AssemblyError{Fragment: part.Path, Err: err}
		}
	}

	if err := w.Flush(); err != nil {
		return &AssemblyError{Err: fmt.Errorf("flush merged archive: %w", err)}
	}
	return nil
}

func appendFragment(w io.Writer, path string, buf []byte) error {
	f, err := os.Open(path) // #nosec G304 - fragment paths come from Resolve
	if err != nil {
		return fmt.Errorf("open fragment: %w", err)
	}
	defer func() { _ = f.Close() }()

	if _, err := io.CopyBuffer(w, f, buf); err != nil {
		return fmt.Errorf("copy fragment: %w", err)
	}
	return nil
}
