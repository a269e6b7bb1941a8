// Package source abstracts where media files come from: a local directory
// or an S3-compatible bucket. Listings are filtered to supported audio and
// video extensions.
package source

import (
	"context"
	"time"
)

// MediaFile identifies one listed media file. Immutable once listed.
type MediaFile struct {
	Key          string // identity key: full path (local) or object key (s3)
	Name         string // base name
	Size         int64
	LastModified time.Time
}

// Source lists available media files and materializes them locally so the
// decode tools can read them.
type Source interface {
	// List returns all media files with supported extensions.
	List(ctx context.Context) ([]MediaFile, error)

	// Fetch returns a local filesystem path for the file and a cleanup
	// func. For local sources the path is the file itself and cleanup is a
	// no-op; remote sources download into scratchDir.
	Fetch(ctx context.Context, key, scratchDir string) (string, func(), error)

	// Type returns "local" or "s3".
	Type() string
}
