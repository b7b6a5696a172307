package writer

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	apperrors "go-crop-extractor/internal/errors"
	"go-crop-extractor/internal/storage/storagetest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodedPNG(t *testing.T, w, h int) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.NRGBA{200, 10, 10, 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func TestOutputPath(t *testing.T) {
	tests := []struct {
		folder, identifier, source string
		i                          int
		want                       string
	}{
		{"out", "photos", "photos/a.jpg", 0, "out/photos/a_cropped_0.JPG"},
		{"", "photos", "photos/a.jpg", 1, "photos/a_cropped_1.JPG"},
		{"out/2024", "ABC-123", "x/y/scan.final.tif", 2, "out/2024/ABC-123/scan_cropped_2.JPG"},
		{"out/", "id", "noext", 0, "out/id/noext_cropped_0.JPG"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, OutputPath(tt.folder, tt.identifier, tt.source, tt.i))
	}
}

func TestWrite(t *testing.T) {
	store := storagetest.NewMemoryStorage()
	target := Target{Store: store, Container: "out", Folder: "crops", Source: "photos/a.jpg"}

	paths, err := NewCropWriter(95).Write(context.Background(), target,
		[]string{encodedPNG(t, 5, 4), encodedPNG(t, 3, 7)}, "photos", true)
	require.NoError(t, err)
	assert.Equal(t, []string{"crops/photos/a_cropped_0.JPG", "crops/photos/a_cropped_1.JPG"}, paths)

	uploads := store.Uploads()
	require.Len(t, uploads, 2)
	for _, u := range uploads {
		assert.Equal(t, "out", u.Container)
		assert.Equal(t, "image/jpeg", u.ContentType)
	}

	data, ok := store.Get("out", "crops/photos/a_cropped_1.JPG")
	require.True(t, ok)
	img, err := jpeg.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 3, img.Bounds().Dx())
	assert.Equal(t, 7, img.Bounds().Dy())
}

func TestWrite_NoIdentifier(t *testing.T) {
	store := storagetest.NewMemoryStorage()
	target := Target{Store: store, Container: "out", Source: "a.jpg"}

	paths, err := NewCropWriter(95).Write(context.Background(), target, []string{encodedPNG(t, 2, 2)}, "", false)
	require.NoError(t, err)
	assert.Nil(t, paths)
	assert.Empty(t, store.Uploads())
}

func TestWrite_IsIdempotent(t *testing.T) {
	store := storagetest.NewMemoryStorage()
	target := Target{Store: store, Container: "out", Source: "a.jpg"}
	w := NewCropWriter(90)
	detections := []string{encodedPNG(t, 2, 2)}

	first, err := w.Write(context.Background(), target, detections, "id", true)
	require.NoError(t, err)
	firstData, _ := store.Get("out", first[0])

	second, err := w.Write(context.Background(), target, detections, "id", true)
	require.NoError(t, err)
	secondData, _ := store.Get("out", second[0])

	assert.Equal(t, first, second)
	assert.Equal(t, firstData, secondData)
	assert.Len(t, store.Uploads(), 2)
}

func TestWrite_Failures(t *testing.T) {
	t.Run("bad base64", func(t *testing.T) {
		store := storagetest.NewMemoryStorage()
		target := Target{Store: store, Container: "out", Source: "a.jpg"}

		paths, err := NewCropWriter(95).Write(context.Background(), target,
			[]string{encodedPNG(t, 2, 2), "%%%not base64"}, "id", true)
		require.Error(t, err)
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeProcessing))
		assert.Equal(t, []string{"id/a_cropped_0.JPG"}, paths)
		assert.Len(t, store.Uploads(), 1)
	})

	t.Run("not an image", func(t *testing.T) {
		store := storagetest.NewMemoryStorage()
		target := Target{Store: store, Container: "out", Source: "a.jpg"}

		_, err := NewCropWriter(95).Write(context.Background(), target,
			[]string{base64.StdEncoding.EncodeToString([]byte("hello"))}, "id", true)
		require.Error(t, err)
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeProcessing))
		assert.Empty(t, store.Uploads())
	})

	t.Run("upload failure", func(t *testing.T) {
		store := storagetest.NewMemoryStorage()
		store.UploadErr = errors.New("quota exceeded")
		target := Target{Store: store, Container: "out", Source: "a.jpg"}

		_, err := NewCropWriter(95).Write(context.Background(), target, []string{encodedPNG(t, 2, 2)}, "id", true)
		require.Error(t, err)
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeStorage))
		assert.Contains(t, err.Error(), "quota exceeded")
	})
}

func TestWrite_UnsafeIdentifier(t *testing.T) {
	for _, id := range []string{"../../x", "..", ".", "a/b", `a\b`} {
		t.Run(id, func(t *testing.T) {
			store := storagetest.NewMemoryStorage()
			target := Target{Store: store, Container: "out", Folder: "crops", Source: "a.jpg"}

			paths, err := NewCropWriter(95).Write(context.Background(), target, []string{encodedPNG(t, 2, 2)}, id, true)
			require.Error(t, err)
			assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeProcessing))
			assert.ErrorIs(t, err, ErrUnsafeIdentifier)
			assert.Nil(t, paths)
			assert.Empty(t, store.Uploads())
		})
	}
}

func TestSafeIdentifier(t *testing.T) {
	assert.True(t, SafeIdentifier("2024-0001"))
	assert.True(t, SafeIdentifier("..x"))
	assert.False(t, SafeIdentifier(""))
	assert.False(t, SafeIdentifier("a/b"))
}

func TestNewCropWriter_ClampsQuality(t *testing.T) {
	assert.Equal(t, 95, NewCropWriter(0).quality)
	assert.Equal(t, 95, NewCropWriter(101).quality)
	assert.Equal(t, 70, NewCropWriter(70).quality)
}
