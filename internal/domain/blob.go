package domain

import (
	"context"
	"io"
	"time"
)

// BlobInfo describes a stored object.
type BlobInfo struct {
	Path         string
	Size         int64
	ContentType  string
	LastModified time.Time
}

// BlobWriter writes objects to blob storage.
type BlobWriter interface {
	Write(ctx context.Context, path string, data io.Reader, contentType string) error
}

// BlobReader reads and lists objects in blob storage.
type BlobReader interface {
	Read(ctx context.Context, path string) (io.ReadCloser, error)
	List(ctx context.Context, prefix string) ([]BlobInfo, error)
}

// Archiver moves aged rows out of hot storage into blobs.
type Archiver interface {
	Archive(ctx context.Context, olderThan time.Time) error
}
