package repository

import (
	"context"
	"image"

	"go-crop-extractor/internal/iptc"
)

// ImageRepository defines the interface for image data access operations
type ImageRepository interface {
	// FetchImage downloads a blob, decodes it and reads its IPTC metadata
	FetchImage(ctx context.Context, ref BlobRef) (*ImageObject, error)
}

// BlobRef addresses a blob through the variable holding its account's
// connection string
type BlobRef struct {
	ConnectionEnv string
	Container     string
	Path          string
}

// ImageObject is a downloaded image. It lives for one request.
type ImageObject struct {
	Raw    []byte
	Image  image.Image
	Format string // decoder name, e.g. "jpeg" or "png"

	// Metadata is nil when the image carries no readable IPTC block
	Metadata iptc.Metadata
}

// HasMetadata reports whether an IPTC block was read
func (o *ImageObject) HasMetadata() bool {
	return len(o.Metadata) > 0
}
