package storage

import (
	"context"
	"errors"
)

// ErrBlobNotFound is returned when the requested blob does not exist
var ErrBlobNotFound = errors.New("blob not found")

// BlobStore reads and writes whole blobs addressed by container and path
type BlobStore interface {
	// Download returns the full content of a blob
	Download(ctx context.Context, container, blobPath string) ([]byte, error)

	// Upload stores data at blobPath, replacing any existing blob
	Upload(ctx context.Context, container, blobPath string, data []byte, contentType string) error
}
