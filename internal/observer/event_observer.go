package observer

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// ProcessingEvent describes one step of processing a file
type ProcessingEvent struct {
	EventType    EventType              `json:"event_type"`
	Timestamp    time.Time              `json:"timestamp"`
	RequestID    string                 `json:"request_id,omitempty"`
	Container    string                 `json:"container"`
	Path         string                 `json:"path"`
	Duration     time.Duration          `json:"duration"`
	Success      bool                   `json:"success"`
	ErrorType    string                 `json:"error_type,omitempty"`
	ErrorMessage string                 `json:"error_message,omitempty"`
	Count        int                    `json:"count,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
}

// EventType represents the type of processing event
type EventType string

const (
	// ProcessingStarted when a request is accepted
	ProcessingStarted EventType = "processing_started"
	// ImageFetched when the source image was downloaded and decoded
	ImageFetched EventType = "image_fetched"
	// DetectionsReceived when the detection service answered; Count holds
	// the number of sub-images
	DetectionsReceived EventType = "detections_received"
	// DetectionRejected when the detection service answered with a non-200 status
	DetectionRejected EventType = "detection_rejected"
	// IdentifierResolved when an identifier was found, or not (Success)
	IdentifierResolved EventType = "identifier_resolved"
	// CropsWritten when crops were uploaded; Count holds how many
	CropsWritten EventType = "crops_written"
	// ProcessingCompleted when the request finished successfully
	ProcessingCompleted EventType = "processing_completed"
	// ProcessingFailed when the request failed
	ProcessingFailed EventType = "processing_failed"
)

// Observer defines the interface for event observers
type Observer interface {
	OnEvent(ctx context.Context, event ProcessingEvent)
	GetObserverName() string
}

// Subject defines the interface for event publishers
type Subject interface {
	Subscribe(observer Observer)
	Unsubscribe(observer Observer)
	NotifyObservers(ctx context.Context, event ProcessingEvent)
}

// LoggingObserver logs processing events
type LoggingObserver struct {
	logger *logrus.Logger
}

// NewLoggingObserver creates a new logging observer
func NewLoggingObserver(logger *logrus.Logger) Observer {
	return &LoggingObserver{
		logger: logger,
	}
}

// OnEvent handles processing events by logging them
func (o *LoggingObserver) OnEvent(ctx context.Context, event ProcessingEvent) {
	fields := logrus.Fields{
		"event_type": event.EventType,
		"container":  event.Container,
		"path":       event.Path,
		"success":    event.Success,
	}
	if event.RequestID != "" {
		fields["request_id"] = event.RequestID
	}
	if event.Duration > 0 {
		fields["duration_ms"] = event.Duration.Milliseconds()
	}
	if event.Count > 0 {
		fields["count"] = event.Count
	}
	if event.ErrorMessage != "" {
		fields["error"] = event.ErrorMessage
		fields["error_type"] = event.ErrorType
	}
	for k, v := range event.Metadata {
		fields[k] = v
	}

	entry := o.logger.WithFields(fields)
	switch event.EventType {
	case ProcessingStarted:
		entry.Info("Processing started")
	case ProcessingCompleted:
		entry.Info("Processing completed")
	case ProcessingFailed:
		entry.Error("Processing failed")
	case DetectionRejected:
		entry.Warn("Detection service rejected the image")
	case IdentifierResolved:
		if event.Success {
			entry.Info("Identifier resolved")
		} else {
			entry.Info("No identifier found, crops will not be written")
		}
	default:
		entry.Debug("Processing event occurred")
	}
}

// GetObserverName returns the observer name
func (o *LoggingObserver) GetObserverName() string {
	return "logging_observer"
}

// EventPublisher implements the Subject interface
type EventPublisher struct {
	mu        sync.RWMutex
	observers []Observer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher() Subject {
	return &EventPublisher{
		observers: make([]Observer, 0),
	}
}

// Subscribe adds an observer
func (p *EventPublisher) Subscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observers = append(p.observers, observer)
}

// Unsubscribe removes an observer
func (p *EventPublisher) Unsubscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, obs := range p.observers {
		if obs.GetObserverName() == observer.GetObserverName() {
			p.observers = append(p.observers[:i], p.observers[i+1:]...)
			break
		}
	}
}

// NotifyObservers delivers an event to every observer in subscription
// order. Events of one request are observed in the order they happened.
func (p *EventPublisher) NotifyObservers(ctx context.Context, event ProcessingEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	p.mu.RLock()
	observers := make([]Observer, len(p.observers))
	copy(observers, p.observers)
	p.mu.RUnlock()

	for _, observer := range observers {
		notify(ctx, observer, event)
	}
}

func notify(ctx context.Context, obs Observer, event ProcessingEvent) {
	defer func() {
		if r := recover(); r != nil {
			// an observer must never fail the request
			logrus.WithField("observer", obs.GetObserverName()).
				WithField("panic", r).
				Error("Observer panicked while handling event")
		}
	}()
	obs.OnEvent(ctx, event)
}
