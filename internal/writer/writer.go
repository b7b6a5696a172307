// Package writer stores detected crops as JPEG blobs.
package writer

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"path"
	"runtime"
	"strings"

	apperrors "go-crop-extractor/internal/errors"
	"go-crop-extractor/internal/logger"
	"go-crop-extractor/internal/storage"

	"github.com/disintegration/imaging"
	"github.com/sirupsen/logrus"
	_ "golang.org/x/image/webp"
)

const jpegContentType = "image/jpeg"

// ErrUnsafeIdentifier is returned for an identifier that is not a single
// path segment and would place crops outside the output folder
var ErrUnsafeIdentifier = errors.New("identifier is not a single path segment")

// CropWriter encodes crops and uploads them
type CropWriter struct {
	quality int
	workers int
}

// NewCropWriter creates a writer encoding at the given JPEG quality with
// one encoder per CPU
func NewCropWriter(quality int) *CropWriter {
	return NewCropWriterWithWorkers(quality, 0)
}

// NewCropWriterWithWorkers creates a writer with a bounded number of
// concurrent encoders; workers <= 0 means one per CPU
func NewCropWriterWithWorkers(quality, workers int) *CropWriter {
	if quality < 1 || quality > 100 {
		quality = 95
	}
	return &CropWriter{quality: quality, workers: workers}
}

// Target says where crops go
type Target struct {
	Store     storage.BlobStore
	Container string
	Folder    string
	// Source is the blob path of the image the crops came from
	Source string
}

// OutputPath builds {folder}/{identifier}/{stem}_cropped_{i}.JPG, where stem
// is the source file name up to its first dot
func OutputPath(folder, identifier, source string, i int) string {
	stem := path.Base(source)
	if idx := strings.Index(stem, "."); idx >= 0 {
		stem = stem[:idx]
	}
	return path.Join(folder, identifier, fmt.Sprintf("%s_cropped_%d.JPG", stem, i))
}

// SafeIdentifier reports whether identifier can be used as one folder name
func SafeIdentifier(identifier string) bool {
	switch identifier {
	case "", ".", "..":
		return false
	}
	return !strings.ContainsAny(identifier, `/\`)
}

// Write uploads every detection in order and returns the written paths.
// Nothing is written when ok is false, and an unsafe identifier fails before
// any upload. Crops are encoded concurrently but
// uploaded in order; the first failure stops the uploads and crops already
// written stay.
func (w *CropWriter) Write(ctx context.Context, target Target, detections []string, identifier string, ok bool) ([]string, error) {
	if !ok {
		return nil, nil
	}
	if !SafeIdentifier(identifier) {
		return nil, apperrors.NewProcessingError(fmt.Sprintf("refusing to write crops for identifier %q", identifier), ErrUnsafeIdentifier)
	}

	encoded := w.encodeAll(detections)

	paths := make([]string, 0, len(detections))
	for i, crop := range encoded {
		if crop.err != nil {
			return paths, apperrors.NewProcessingError(fmt.Sprintf("failed to decode crop %d", i), crop.err)
		}
		data := crop.data

		blobPath := OutputPath(target.Folder, identifier, target.Source, i)
		if err := target.Store.Upload(ctx, target.Container, blobPath, data, jpegContentType); err != nil {
			return paths, apperrors.NewStorageError(fmt.Sprintf("failed to upload %s/%s", target.Container, blobPath), err)
		}

		logger.WithFields(logrus.Fields{
			"container": target.Container,
			"path":      blobPath,
			"bytes":     len(data),
		}).Debug("Crop written")
		paths = append(paths, blobPath)
	}
	return paths, nil
}

type encodedCrop struct {
	data []byte
	err  error
}

func (w *CropWriter) encodeAll(detections []string) []encodedCrop {
	results := make([]encodedCrop, len(detections))
	if len(detections) == 0 {
		return results
	}

	workers := w.workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	pool := NewWorkerPool(min(workers, len(detections)))
	pool.Start()
	defer pool.Close()

	for i, encoded := range detections {
		pool.Submit(func() {
			data, err := w.encodeCrop(encoded)
			results[i] = encodedCrop{data: data, err: err}
		})
	}
	pool.Wait()
	return results
}

func (w *CropWriter) encodeCrop(encoded string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, err
	}
	img, err := imaging.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(w.quality)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
