// Package storage provides scratch file storage for archive entries being
// decoded and optional S3 publication of the emitted frames.
package storage

import (
	"context"
	"io"
)

// Storage defines scratch file handling and optional remote publication.
type Storage interface {
	// TempDir returns the directory scratch files are created in.
	TempDir() string

	// SaveTemp streams data into a new, uniquely named scratch file and
	// returns its path. The file name starts with name and ends with ext so
	// decoders that dispatch on extension still work.
	SaveTemp(ctx context.Context, name, ext string, data io.Reader) (path string, err error)

	// CleanupTemp removes the specified scratch files.
	// It continues cleanup even if some files fail to delete.
	CleanupTemp(ctx context.Context, paths []string) error

	// UploadToS3 uploads data to S3 and returns the object URL.
	// Returns ErrS3NotConfigured if S3 is not configured.
	UploadToS3(ctx context.Context, key string, data io.Reader) (url string, err error)
}
