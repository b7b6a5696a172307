package service

import (
	"context"
	"net/http"
	"time"

	"go-crop-extractor/internal/detector"
	apperrors "go-crop-extractor/internal/errors"
	"go-crop-extractor/internal/factory"
	"go-crop-extractor/internal/identifier"
	"go-crop-extractor/internal/logger"
	"go-crop-extractor/internal/observer"
	"go-crop-extractor/internal/repository"
	"go-crop-extractor/internal/writer"
	"go-crop-extractor/pkg/models"
	"go-crop-extractor/pkg/validation"

	"github.com/sirupsen/logrus"
)

// CropExtractionService processes one stored image per call
type CropExtractionService interface {
	// ProcessFile fetches the image, has its sub-images detected, and
	// files them under the resolved identifier
	ProcessFile(ctx context.Context, req models.ProcessRequest) (*models.ProcessResponse, error)
}

// Options holds the service defaults
type Options struct {
	// DefaultConnectionEnv is used when con_env_in is not given
	DefaultConnectionEnv string
}

type cropExtractionService struct {
	imageRepo      repository.ImageRepository
	detector       detector.Detector
	writer         *writer.CropWriter
	storageFactory factory.StorageFactory
	publisher      observer.Subject
	options        Options
}

// NewCropExtractionService creates a new crop extraction service
func NewCropExtractionService(
	imageRepository repository.ImageRepository,
	imageDetector detector.Detector,
	cropWriter *writer.CropWriter,
	storageFactory factory.StorageFactory,
	publisher observer.Subject,
	options Options,
) CropExtractionService {
	return &cropExtractionService{
		imageRepo:      imageRepository,
		detector:       imageDetector,
		writer:         cropWriter,
		storageFactory: storageFactory,
		publisher:      publisher,
		options:        options,
	}
}

// plan is a request with its defaults applied
type plan struct {
	in           repository.BlobRef
	outEnv       string
	outContainer string
	outFolder    string
	idField      string
	folderIdx    *int
}

func (s *cropExtractionService) plan(req models.ProcessRequest) (plan, error) {
	if err := validation.ValidateProcessRequest(req); err != nil {
		return plan{}, err
	}
	idx, hasIdx, err := validation.ParseFolderIndex(req.FolderIDIdx)
	if err != nil {
		return plan{}, err
	}

	p := plan{
		in: repository.BlobRef{
			ConnectionEnv: firstNonEmpty(req.ConnectionEnvIn, s.options.DefaultConnectionEnv),
			Container:     req.Container,
			Path:          req.Path,
		},
		outContainer: firstNonEmpty(req.ContainerOut, req.Container),
		outFolder:    req.FolderOut,
		idField:      req.IDField,
	}
	p.outEnv = firstNonEmpty(req.ConnectionEnvOut, p.in.ConnectionEnv)
	if hasIdx {
		p.folderIdx = &idx
	}
	return p, nil
}

// ProcessFile runs fetch, detect, resolve and write in order. A failure
// stops the pipeline; crops already written are left in place.
func (s *cropExtractionService) ProcessFile(ctx context.Context, req models.ProcessRequest) (*models.ProcessResponse, error) {
	start := time.Now()
	p, err := s.plan(req)
	if err != nil {
		return nil, err
	}

	base := observer.ProcessingEvent{
		RequestID: logger.RequestIDFromContext(ctx),
		Container: p.in.Container,
		Path:      p.in.Path,
	}
	s.publish(ctx, base, observer.ProcessingStarted, func(e *observer.ProcessingEvent) {
		e.Success = true
		e.Metadata = map[string]interface{}{
			"id_field":      p.idField,
			"container_out": p.outContainer,
			"folder_out":    p.outFolder,
		}
	})

	resp, err := s.process(ctx, p, base)
	if err != nil {
		s.publish(ctx, base, observer.ProcessingFailed, func(e *observer.ProcessingEvent) {
			e.Duration = time.Since(start)
			e.ErrorType = string(apperrors.GetType(err))
			e.ErrorMessage = err.Error()
		})
		return nil, err
	}

	s.publish(ctx, base, observer.ProcessingCompleted, func(e *observer.ProcessingEvent) {
		e.Success = true
		e.Duration = time.Since(start)
		e.Count = len(resp.OutputPaths)
	})
	return resp, nil
}

func (s *cropExtractionService) process(ctx context.Context, p plan, base observer.ProcessingEvent) (*models.ProcessResponse, error) {
	img, err := s.imageRepo.FetchImage(ctx, p.in)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, base, observer.ImageFetched, func(e *observer.ProcessingEvent) {
		e.Success = true
		e.Metadata = map[string]interface{}{
			"format":       img.Format,
			"has_metadata": img.HasMetadata(),
		}
	})

	result, err := s.detector.Detect(ctx, img)
	if err != nil {
		return nil, err
	}
	detections := result.Images
	if result.StatusCode != http.StatusOK {
		s.publish(ctx, base, observer.DetectionRejected, func(e *observer.ProcessingEvent) {
			e.Metadata = map[string]interface{}{"status_code": result.StatusCode}
		})
		detections = []string{}
	}
	s.publish(ctx, base, observer.DetectionsReceived, func(e *observer.ProcessingEvent) {
		e.Success = result.StatusCode == http.StatusOK
		e.Count = len(detections)
	})

	strategy := identifier.ForField(p.idField)
	id, ok := strategy.Resolve(identifier.Input{
		Metadata:    img.Metadata,
		Path:        p.in.Path,
		FolderIndex: p.folderIdx,
	})
	s.publish(ctx, base, observer.IdentifierResolved, func(e *observer.ProcessingEvent) {
		e.Success = ok
		e.Metadata = map[string]interface{}{"strategy": strategy.GetStrategyName()}
		if ok {
			e.Metadata["identifier"] = id
		}
	})

	resp := &models.ProcessResponse{
		Container:  p.in.Container,
		Path:       p.in.Path,
		Detections: detections,
	}
	if !ok {
		return resp, nil
	}
	resp.Identifier = &id

	store, err := s.storageFactory.CreateStorage(p.outEnv)
	if err != nil {
		return nil, err
	}
	paths, err := s.writer.Write(ctx, writer.Target{
		Store:     store,
		Container: p.outContainer,
		Folder:    p.outFolder,
		Source:    p.in.Path,
	}, detections, id, ok)
	if err != nil {
		logger.FromContext(ctx).WithFields(logrus.Fields{
			"written": len(paths),
			"total":   len(detections),
		}).Warn("Crop writing stopped early, written crops are kept")
		return nil, err
	}
	s.publish(ctx, base, observer.CropsWritten, func(e *observer.ProcessingEvent) {
		e.Success = true
		e.Count = len(paths)
	})

	resp.OutputPaths = paths
	return resp, nil
}

func (s *cropExtractionService) publish(ctx context.Context, base observer.ProcessingEvent, eventType observer.EventType, fill func(*observer.ProcessingEvent)) {
	if s.publisher == nil {
		return
	}
	event := base
	event.EventType = eventType
	event.Timestamp = time.Now()
	if fill != nil {
		fill(&event)
	}
	s.publisher.NotifyObservers(ctx, event)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
