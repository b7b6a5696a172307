package container

import (
	"fmt"
	"net/http"

	"go-crop-extractor/internal/config"
	"go-crop-extractor/internal/detector"
	"go-crop-extractor/internal/factory"
	"go-crop-extractor/internal/logger"
	"go-crop-extractor/internal/observer"
	"go-crop-extractor/internal/repository"
	"go-crop-extractor/internal/service"
	"go-crop-extractor/internal/transport"
	"go-crop-extractor/internal/writer"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Container holds all application dependencies
type Container struct {
	config                *config.Config
	storageFactory        factory.StorageFactory
	imageRepository       repository.ImageRepository
	detector              detector.Detector
	publisher             observer.Subject
	registry              *prometheus.Registry
	cropExtractionService service.CropExtractionService
	handler               http.Handler
}

// NewContainer creates a new dependency injection container
func NewContainer(cfg *config.Config) (*Container, error) {
	return NewContainerWithFactory(cfg, factory.NewStorageFactory())
}

// NewContainerWithFactory builds the dependency graph around a given
// storage factory
func NewContainerWithFactory(cfg *config.Config, storageFactory factory.StorageFactory) (*Container, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metricsObserver, err := observer.NewMetricsObserver(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	publisher := observer.NewEventPublisher()
	publisher.Subscribe(observer.NewLoggingObserver(logger.Logger))
	publisher.Subscribe(metricsObserver)

	imageRepository := repository.NewBlobImageRepository(storageFactory, cfg.TempDir)
	imageDetector := detector.NewHTTPDetector(cfg.DetectEndpoint, cfg.DetectTimeout)
	cropExtractionService := service.NewCropExtractionService(
		imageRepository,
		imageDetector,
		writer.NewCropWriterWithWorkers(cfg.JPEGQuality, cfg.EncodeWorkers),
		storageFactory,
		publisher,
		service.Options{DefaultConnectionEnv: cfg.ConnectionEnv},
	)
	metricsHandler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})
	handler := transport.NewHandler(cropExtractionService, metricsHandler, cfg)

	return &Container{
		config:                cfg,
		storageFactory:        storageFactory,
		imageRepository:       imageRepository,
		detector:              imageDetector,
		publisher:             publisher,
		registry:              registry,
		cropExtractionService: cropExtractionService,
		handler:               handler,
	}, nil
}

// Handler returns the HTTP handler
func (c *Container) Handler() http.Handler {
	return c.handler
}
