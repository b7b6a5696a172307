package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/png"
	"net/http"
	"sync"
	"testing"

	"go-crop-extractor/internal/detector"
	apperrors "go-crop-extractor/internal/errors"
	"go-crop-extractor/internal/iptc/iptctest"
	"go-crop-extractor/internal/observer"
	"go-crop-extractor/internal/repository"
	"go-crop-extractor/internal/storage/storagetest"
	"go-crop-extractor/internal/writer"
	"go-crop-extractor/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDetector struct {
	result *detector.Result
	err    error
	calls  int
}

func (d *fakeDetector) Detect(ctx context.Context, img *repository.ImageObject) (*detector.Result, error) {
	d.calls++
	return d.result, d.err
}

type eventRecorder struct {
	mu     sync.Mutex
	events []observer.ProcessingEvent
}

func (r *eventRecorder) OnEvent(ctx context.Context, event observer.ProcessingEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *eventRecorder) GetObserverName() string { return "recorder" }

func (r *eventRecorder) types() []observer.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]observer.EventType, len(r.events))
	for i, e := range r.events {
		out[i] = e.EventType
	}
	return out
}

func (r *eventRecorder) find(eventType observer.EventType) (observer.ProcessingEvent, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e.EventType == eventType {
			return e, true
		}
	}
	return observer.ProcessingEvent{}, false
}

func crop(t *testing.T) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 3, 2))))
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

type fixture struct {
	in       *storagetest.MemoryStorage
	out      *storagetest.MemoryStorage
	detector *fakeDetector
	events   *eventRecorder
	service  CropExtractionService
}

func newFixture(t *testing.T, result *detector.Result) *fixture {
	t.Helper()
	f := &fixture{
		in:       storagetest.NewMemoryStorage(),
		out:      storagetest.NewMemoryStorage(),
		detector: &fakeDetector{result: result},
		events:   &eventRecorder{},
	}
	f.in.Put("in", "photos/a.jpg", iptctest.Embed(iptctest.JPEG(10, 10),
		iptctest.Record{Dataset: 22, Value: "ABC-123"},
	))
	f.in.Put("in", "plain.jpg", iptctest.JPEG(10, 10))

	factory := &storagetest.Factory{Stores: map[string]*storagetest.MemoryStorage{
		"IN_CONN":  f.in,
		"OUT_CONN": f.out,
	}}
	publisher := observer.NewEventPublisher()
	publisher.Subscribe(f.events)

	f.service = NewCropExtractionService(
		repository.NewBlobImageRepository(factory, t.TempDir()),
		f.detector,
		writer.NewCropWriter(95),
		factory,
		publisher,
		Options{DefaultConnectionEnv: "IN_CONN"},
	)
	return f
}

func TestProcessFile_FolderIdentifier(t *testing.T) {
	f := newFixture(t, &detector.Result{StatusCode: http.StatusOK, Images: []string{crop(t), crop(t)}})

	resp, err := f.service.ProcessFile(context.Background(), models.ProcessRequest{
		Container:   "in",
		Path:        "photos/a.jpg",
		IDField:     "folder",
		FolderIDIdx: "0",
		FolderOut:   "out",
	})
	require.NoError(t, err)

	require.NotNil(t, resp.Identifier)
	assert.Equal(t, "photos", *resp.Identifier)
	assert.Len(t, resp.Detections, 2)
	assert.Equal(t, []string{"out/photos/a_cropped_0.JPG", "out/photos/a_cropped_1.JPG"}, resp.OutputPaths)

	// output defaults to the input account and container
	uploads := f.in.Uploads()
	require.Len(t, uploads, 2)
	assert.Equal(t, "in", uploads[0].Container)
	assert.Empty(t, f.out.Uploads())

	assert.Equal(t, []observer.EventType{
		observer.ProcessingStarted,
		observer.ImageFetched,
		observer.DetectionsReceived,
		observer.IdentifierResolved,
		observer.CropsWritten,
		observer.ProcessingCompleted,
	}, f.events.types())

	resolved, found := f.events.find(observer.IdentifierResolved)
	require.True(t, found)
	assert.Equal(t, "folder", resolved.Metadata["strategy"])
	assert.Equal(t, "photos", resolved.Metadata["identifier"])
}

func TestProcessFile_MetadataIdentifierToOtherAccount(t *testing.T) {
	f := newFixture(t, &detector.Result{StatusCode: http.StatusOK, Images: []string{crop(t)}})

	resp, err := f.service.ProcessFile(context.Background(), models.ProcessRequest{
		Container:        "in",
		Path:             "photos/a.jpg",
		IDField:          "Fixture Identifier",
		ConnectionEnvOut: "OUT_CONN",
		ContainerOut:     "crops",
	})
	require.NoError(t, err)

	require.NotNil(t, resp.Identifier)
	assert.Equal(t, "ABC-123", *resp.Identifier)
	assert.Equal(t, []string{"ABC-123/a_cropped_0.JPG"}, resp.OutputPaths)

	uploads := f.out.Uploads()
	require.Len(t, uploads, 1)
	assert.Equal(t, "crops", uploads[0].Container)
	assert.Empty(t, f.in.Uploads())
}

func TestProcessFile_NoIdentifier(t *testing.T) {
	f := newFixture(t, &detector.Result{StatusCode: http.StatusOK, Images: []string{crop(t)}})

	for _, req := range []models.ProcessRequest{
		{Container: "in", Path: "plain.jpg", IDField: "identifier"},
		{Container: "in", Path: "photos/a.jpg"},
		{Container: "in", Path: "photos/a.jpg", IDField: "folder", FolderIDIdx: "7"},
	} {
		resp, err := f.service.ProcessFile(context.Background(), req)
		require.NoError(t, err)
		assert.Nil(t, resp.Identifier)
		assert.Nil(t, resp.OutputPaths)
		assert.Len(t, resp.Detections, 1)
	}
	assert.Empty(t, f.in.Uploads())
	assert.Empty(t, f.out.Uploads())

	resolved, found := f.events.find(observer.IdentifierResolved)
	require.True(t, found)
	assert.False(t, resolved.Success)
	assert.Equal(t, "metadata_field", resolved.Metadata["strategy"])
	assert.NotContains(t, resolved.Metadata, "identifier")
}

func TestProcessFile_UnsafeMetadataIdentifier(t *testing.T) {
	f := newFixture(t, &detector.Result{StatusCode: http.StatusOK, Images: []string{crop(t)}})
	f.in.Put("in", "photos/b.jpg", iptctest.Embed(iptctest.JPEG(10, 10),
		iptctest.Record{Dataset: 22, Value: "../../escaped"},
	))

	_, err := f.service.ProcessFile(context.Background(), models.ProcessRequest{
		Container: "in",
		Path:      "photos/b.jpg",
		IDField:   "Fixture Identifier",
		FolderOut: "crops",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, writer.ErrUnsafeIdentifier)
	assert.Empty(t, f.in.Uploads())
	assert.Equal(t, observer.ProcessingFailed, f.events.types()[len(f.events.types())-1])
}

func TestProcessFile_DetectionRejected(t *testing.T) {
	f := newFixture(t, &detector.Result{StatusCode: http.StatusBadGateway})

	resp, err := f.service.ProcessFile(context.Background(), models.ProcessRequest{
		Container: "in", Path: "photos/a.jpg", IDField: "folder", FolderIDIdx: "0",
	})
	require.NoError(t, err)
	assert.NotNil(t, resp.Detections)
	assert.Empty(t, resp.Detections)
	assert.NotNil(t, resp.OutputPaths)
	assert.Empty(t, resp.OutputPaths)
	assert.Contains(t, f.events.types(), observer.DetectionRejected)
}

func TestProcessFile_Errors(t *testing.T) {
	tests := []struct {
		name      string
		req       models.ProcessRequest
		detectErr error
		errType   apperrors.ErrorType
		status    int
		detected  bool
	}{
		{
			name:    "missing path",
			req:     models.ProcessRequest{Container: "in"},
			errType: apperrors.ErrorTypeValidation,
			status:  http.StatusBadRequest,
		},
		{
			name:    "non-integer folder index",
			req:     models.ProcessRequest{Container: "in", Path: "photos/a.jpg", IDField: "folder", FolderIDIdx: "x"},
			errType: apperrors.ErrorTypeValidation,
			status:  http.StatusBadRequest,
		},
		{
			name:    "unknown input credential",
			req:     models.ProcessRequest{Container: "in", Path: "photos/a.jpg", ConnectionEnvIn: "NOPE"},
			errType: apperrors.ErrorTypeConfiguration,
			status:  http.StatusInternalServerError,
		},
		{
			name:    "missing blob",
			req:     models.ProcessRequest{Container: "in", Path: "missing.jpg"},
			errType: apperrors.ErrorTypeStorage,
			status:  http.StatusInternalServerError,
		},
		{
			name:      "detection unavailable",
			req:       models.ProcessRequest{Container: "in", Path: "photos/a.jpg"},
			detectErr: apperrors.NewConfigurationError("DETECT_ENDPOINT is not set", nil),
			errType:   apperrors.ErrorTypeConfiguration,
			status:    http.StatusInternalServerError,
			detected:  true,
		},
		{
			name:     "unknown output credential",
			req:      models.ProcessRequest{Container: "in", Path: "photos/a.jpg", IDField: "folder", FolderIDIdx: "0", ConnectionEnvOut: "NOPE"},
			errType:  apperrors.ErrorTypeConfiguration,
			status:   http.StatusInternalServerError,
			detected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, &detector.Result{StatusCode: http.StatusOK, Images: []string{crop(t)}})
			f.detector.err = tt.detectErr

			resp, err := f.service.ProcessFile(context.Background(), tt.req)
			require.Error(t, err)
			assert.Nil(t, resp)
			assert.True(t, apperrors.IsType(err, tt.errType), "got %v", err)
			assert.Equal(t, tt.status, apperrors.GetStatusCode(err))
			assert.Equal(t, tt.detected, f.detector.calls > 0)
			assert.Empty(t, f.in.Uploads())
		})
	}
}

func TestProcessFile_FailureEvent(t *testing.T) {
	f := newFixture(t, nil)
	f.detector.err = apperrors.NewExternalServiceError("detection request failed", nil)

	_, err := f.service.ProcessFile(context.Background(), models.ProcessRequest{Container: "in", Path: "photos/a.jpg"})
	require.Error(t, err)

	events := f.events.events
	last := events[len(events)-1]
	assert.Equal(t, observer.ProcessingFailed, last.EventType)
	assert.Equal(t, "external_service", last.ErrorType)
	assert.Equal(t, "detection request failed", last.ErrorMessage)
}
