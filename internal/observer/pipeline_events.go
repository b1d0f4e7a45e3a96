package observer

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"snapsort/pkg/models"
)

// PipelineEvent describes one photo moving through the ingest pipeline.
type PipelineEvent struct {
	EventType      EventType     `json:"event_type"`
	Timestamp      time.Time     `json:"timestamp"`
	Filename       string        `json:"filename"`
	Category       string        `json:"category,omitempty"`
	Filter         string        `json:"filter,omitempty"`
	ProcessingTime time.Duration `json:"processing_time"`
	Success        bool          `json:"success"`
	ErrorMessage   string        `json:"error_message,omitempty"`
}

// EventType represents the type of pipeline event
type EventType string

const (
	// PhotoReceived when an upload clears the wire protocol
	PhotoReceived EventType = "photo_received"
	// PhotoStored when a photo lands in its gallery category
	PhotoStored EventType = "photo_stored"
	// PhotoFailed when processing routes a photo to the error category
	// or drops it entirely
	PhotoFailed EventType = "photo_failed"
)

// Observer defines the interface for event observers
type Observer interface {
	OnEvent(ctx context.Context, event PipelineEvent)
	GetObserverName() string
}

// Subject defines the interface for event publishers
type Subject interface {
	Subscribe(observer Observer)
	Unsubscribe(observer Observer)
	NotifyObservers(ctx context.Context, event PipelineEvent)
}

// LoggingObserver logs pipeline events
type LoggingObserver struct {
	logger *logrus.Logger
}

// NewLoggingObserver creates a new logging observer
func NewLoggingObserver(logger *logrus.Logger) Observer {
	return &LoggingObserver{
		logger: logger,
	}
}

// OnEvent handles pipeline events by logging them
func (o *LoggingObserver) OnEvent(ctx context.Context, event PipelineEvent) {
	fields := logrus.Fields{
		"event_type":      event.EventType,
		"filename":        event.Filename,
		"processing_time": event.ProcessingTime,
		"success":         event.Success,
	}
	if event.Category != "" {
		fields["category"] = event.Category
	}
	if event.Filter != "" {
		fields["filter"] = event.Filter
	}
	if event.ErrorMessage != "" {
		fields["error"] = event.ErrorMessage
	}

	switch event.EventType {
	case PhotoReceived:
		o.logger.WithFields(fields).Debug("Photo received")
	case PhotoStored:
		o.logger.WithFields(fields).Info("Photo stored")
	case PhotoFailed:
		o.logger.WithFields(fields).Error("Photo processing failed")
	default:
		o.logger.WithFields(fields).Info("Pipeline event occurred")
	}
}

// GetObserverName returns the observer name
func (o *LoggingObserver) GetObserverName() string {
	return "logging_observer"
}

// MetricsObserver collects counters from pipeline events
type MetricsObserver struct {
	mu                  sync.RWMutex
	received            int64
	stored              int64
	failed              int64
	totalProcessingTime time.Duration
}

// NewMetricsObserver creates a new metrics observer
func NewMetricsObserver() *MetricsObserver {
	return &MetricsObserver{}
}

// OnEvent handles pipeline events by updating counters
func (o *MetricsObserver) OnEvent(ctx context.Context, event PipelineEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch event.EventType {
	case PhotoReceived:
		o.received++
	case PhotoStored:
		o.stored++
		o.totalProcessingTime += event.ProcessingTime
	case PhotoFailed:
		o.failed++
	}
}

// GetObserverName returns the observer name
func (o *MetricsObserver) GetObserverName() string {
	return "metrics_observer"
}

// Metrics returns a snapshot of the current counters
func (o *MetricsObserver) Metrics() models.PipelineMetrics {
	o.mu.RLock()
	defer o.mu.RUnlock()

	avg := 0.0
	if o.stored > 0 {
		avg = o.totalProcessingTime.Seconds() / float64(o.stored)
	}
	return models.PipelineMetrics{
		Received:      o.received,
		Stored:        o.stored,
		Failed:        o.failed,
		AvgProcessSec: avg,
	}
}

// EventPublisher implements the Subject interface
type EventPublisher struct {
	mu        sync.RWMutex
	observers []Observer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher() *EventPublisher {
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

// NotifyObservers notifies all observers of an event concurrently. A
// panicking observer is isolated: it loses the event but never takes the
// pipeline down.
func (p *EventPublisher) NotifyObservers(ctx context.Context, event PipelineEvent) {
	p.mu.RLock()
	observers := make([]Observer, len(p.observers))
	copy(observers, p.observers)
	p.mu.RUnlock()

	for _, observer := range observers {
		go func(obs Observer) {
			defer func() {
				if r := recover(); r != nil {
					logrus.WithField("observer", obs.GetObserverName()).
						WithField("panic", r).
						Error("Observer panicked while handling event")
				}
			}()
			obs.OnEvent(ctx, event)
		}(observer)
	}
}
