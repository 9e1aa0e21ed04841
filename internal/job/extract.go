package job

import (
	"context"
	"fmt"

	"github.com/maauso/vidframes/internal/archive"
	"github.com/maauso/vidframes/internal/storage"
)

// Extractor copies archive entries into private scratch files.
type Extractor struct {
	store storage.Storage
}

// NewExtractor creates an Extractor writing scratch files through store.
func NewExtractor(store storage.Storage) *Extractor {
	return &Extractor{store: store}
}

// Materialize streams the entry's bytes into a new uniquely named scratch
// file that keeps the entry's extension, and returns its path. The caller
// owns the file and must remove it.
func (x *Extractor) Materialize(ctx context.Context, entry archive.MediaEntry) (string, error) {
	rc, err := entry.Open()
	if err != nil {
		return "", fmt.Errorf("open entry %s: %w", entry.Name, err)
	}
	defer func() { _ = rc.Close() }()

	path, err := x.store.SaveTemp(ctx, entry.LogicalName, entry.Ext, rc)
	if err != nil {
		return "", fmt.Errorf("materialize %s: %w", entry.Name, err)
	}
	return path, nil
}
