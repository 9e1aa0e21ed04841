package archive

import (
	"archive/zip"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zstd"
)

// mediaExtensions is the set of lowercased extensions treated as videos.
var mediaExtensions = map[string]struct{}{
	".mp4":  {},
	".mov":  {},
	".avi":  {},
	".mkv":  {},
	".webm": {},
	".flv":  {},
	".mpg":  {},
	".mpeg": {},
	".m4v":  {},
}

// IsMediaExt reports whether ext (with leading dot, any case) is a recognized video extension.
func IsMediaExt(ext string) bool {
	_, ok := mediaExtensions[strings.ToLower(ext)]
	return ok
}

// MediaEntry is one archive member selected for frame sampling.
type MediaEntry struct {
	// Name is the full member path inside the archive.
	Name string
	// LogicalName is the member's file name without extension. It keys the output directory.
	LogicalName string
	// Ext is the member's original extension, including the dot.
	Ext string
	// RawSize is the uncompressed size in bytes.
	RawSize uint64

	file *zip.File
}

// Open returns a reader over the entry's uncompressed bytes.
func (e MediaEntry) Open() (io.ReadCloser, error) {
	if e.file == nil {
		return nil, fmt.Errorf("open %s: entry not bound to an archive", e.Name)
	}
	return e.file.Open()
}

// Reader is an open assembled archive.
type Reader struct {
	zr     *zip.ReadCloser
	logger *slog.Logger
}

// Open opens an assembled archive for reading. Besides the stdlib methods it
// decodes zstd members (method 93) and uses a faster flate implementation.
func Open(a *Assembled, logger *slog.Logger) (*Reader, error) {
	if logger == nil {
		logger = slog.Default()
	}

	zr, err := zip.OpenReader(a.Path)
	if err != nil {
		return nil, fmt.Errorf("open archive %s: %w", a.Path, err)
	}

	zr.RegisterDecompressor(zip.Deflate, flate.NewReader)
	zr.RegisterDecompressor(zstd.ZipMethodWinZip, zstd.ZipDecompressor())

	return &Reader{zr: zr, logger: logger}, nil
}

// Close releases the underlying file handle.
func (r *Reader) Close() error {
	return r.zr.Close()
}

// MediaEntries lists eligible video members in archive order. Directory
// entries and non-video extensions are skipped. A member whose logical name
// repeats an earlier one is skipped, since both would write to the same
// output directory.
func (r *Reader) MediaEntries() []MediaEntry {
	seen := make(map[string]string)
	var entries []MediaEntry

	for _, f := range r.zr.File {
		if f.FileInfo().IsDir() || strings.HasSuffix(f.Name, "/") {
			continue
		}

		base := path.Base(f.Name)
		ext := path.Ext(base)
		if !IsMediaExt(ext) {
			continue
		}

		logical := strings.TrimSuffix(base, ext)
		if prev, dup := seen[logical]; dup {
			r.logger.Warn("skipping entry with duplicate logical name",
				slog.String("entry", f.Name),
				slog.String("first", prev),
				slog.String("logical_name", logical),
			)
			continue
		}
		seen[logical] = f.Name

		entries = append(entries, MediaEntry{
			Name:        f.Name,
			LogicalName: logical,
			Ext:         ext,
			RawSize:     f.UncompressedSize64,
			file:        f,
		})
	}

	return entries
}
