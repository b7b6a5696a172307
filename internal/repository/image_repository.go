package repository

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	apperrors "go-crop-extractor/internal/errors"
	"go-crop-extractor/internal/factory"
	"go-crop-extractor/internal/iptc"
	"go-crop-extractor/internal/logger"

	"github.com/sirupsen/logrus"
)

// BlobImageRepository implements ImageRepository on top of blob storage
type BlobImageRepository struct {
	storageFactory factory.StorageFactory
	tempDir        string
}

// NewBlobImageRepository creates a repository; tempDir holds the transient
// files used for metadata extraction
func NewBlobImageRepository(storageFactory factory.StorageFactory, tempDir string) ImageRepository {
	return &BlobImageRepository{
		storageFactory: storageFactory,
		tempDir:        tempDir,
	}
}

// FetchImage retrieves an image and its IPTC metadata
func (r *BlobImageRepository) FetchImage(ctx context.Context, ref BlobRef) (*ImageObject, error) {
	store, err := r.storageFactory.CreateStorage(ref.ConnectionEnv)
	if err != nil {
		return nil, err
	}

	data, err := store.Download(ctx, ref.Container, ref.Path)
	if err != nil {
		return nil, apperrors.NewStorageError(fmt.Sprintf("failed to download %s/%s", ref.Container, ref.Path), err)
	}
	if len(data) == 0 {
		return nil, apperrors.NewProcessingError(fmt.Sprintf("failed to decode %s/%s", ref.Container, ref.Path), ErrEmptyBlob)
	}

	meta := r.loadMetadata(data, ref)

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, apperrors.NewProcessingError(fmt.Sprintf("failed to decode %s/%s", ref.Container, ref.Path), err)
	}

	logger.WithFields(logrus.Fields{
		"container":   ref.Container,
		"path":        ref.Path,
		"format":      format,
		"width":       img.Bounds().Dx(),
		"height":      img.Bounds().Dy(),
		"iptc_fields": meta.Fields(),
	}).Debug("Image fetched")

	return &ImageObject{
		Raw:      data,
		Image:    img,
		Format:   format,
		Metadata: meta,
	}, nil
}

// loadMetadata parses IPTC data through a transient file, which is removed
// on every path. Any failure yields nil metadata.
func (r *BlobImageRepository) loadMetadata(data []byte, ref BlobRef) iptc.Metadata {
	log := logger.WithFields(logrus.Fields{
		"container": ref.Container,
		"path":      ref.Path,
	})

	file, err := os.CreateTemp(r.tempDir, "iptc-*.jpg")
	if err != nil {
		log.WithError(err).Warn("Failed to create temporary file for IPTC extraction")
		return nil
	}
	defer os.Remove(file.Name())

	_, err = file.Write(data)
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		log.WithError(err).Warn("Failed to write temporary file for IPTC extraction")
		return nil
	}

	meta, err := iptc.ReadFile(file.Name(), true)
	if err != nil {
		log.WithError(apperrors.NewMetadataError("failed to load IPTC info", err)).Warn("Continuing without IPTC metadata")
		return nil
	}
	if meta == nil {
		log.Debug("No IPTC metadata found")
		return nil
	}
	return meta
}
