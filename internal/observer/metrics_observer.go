package observer

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "crop_extractor"

// MetricsObserver exports processing events as Prometheus metrics
type MetricsObserver struct {
	requests    *prometheus.CounterVec
	failures    *prometheus.CounterVec
	detections  prometheus.Counter
	rejections  prometheus.Counter
	identifiers *prometheus.CounterVec
	crops       prometheus.Counter
	duration    prometheus.Histogram
}

// NewMetricsObserver creates the collectors and registers them with reg
func NewMetricsObserver(reg prometheus.Registerer) (*MetricsObserver, error) {
	o := &MetricsObserver{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "requests_total",
			Help:      "Processed files by outcome.",
		}, []string{"outcome"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "failures_total",
			Help:      "Failed requests by error type.",
		}, []string{"error_type"}),
		detections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "detections_total",
			Help:      "Sub-images returned by the detection service.",
		}),
		rejections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "detection_rejections_total",
			Help:      "Non-200 answers from the detection service.",
		}),
		identifiers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "identifier_resolutions_total",
			Help:      "Identifier resolutions by result.",
		}, []string{"resolved"}),
		crops: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "crops_written_total",
			Help:      "Crops uploaded to blob storage.",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "processing_duration_seconds",
			Help:      "Time spent processing one file.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
	}

	for _, c := range []prometheus.Collector{
		o.requests, o.failures, o.detections, o.rejections, o.identifiers, o.crops, o.duration,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return o, nil
}

// OnEvent updates the collectors for an event
func (o *MetricsObserver) OnEvent(ctx context.Context, event ProcessingEvent) {
	switch event.EventType {
	case DetectionsReceived:
		o.detections.Add(float64(event.Count))
	case DetectionRejected:
		o.rejections.Inc()
	case IdentifierResolved:
		if event.Success {
			o.identifiers.WithLabelValues("true").Inc()
		} else {
			o.identifiers.WithLabelValues("false").Inc()
		}
	case CropsWritten:
		o.crops.Add(float64(event.Count))
	case ProcessingCompleted:
		o.requests.WithLabelValues("success").Inc()
		o.duration.Observe(event.Duration.Seconds())
	case ProcessingFailed:
		o.requests.WithLabelValues("failure").Inc()
		o.failures.WithLabelValues(event.ErrorType).Inc()
		o.duration.Observe(event.Duration.Seconds())
	}
}

// GetObserverName returns the observer name
func (o *MetricsObserver) GetObserverName() string {
	return "metrics_observer"
}
