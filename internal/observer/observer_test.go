package observer

import (
	"context"
	"io"
	"math"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

type channelObserver struct {
	name   string
	events chan PipelineEvent
}

func newChannelObserver(name string) *channelObserver {
	return &channelObserver{name: name, events: make(chan PipelineEvent, 8)}
}

func (o *channelObserver) OnEvent(ctx context.Context, event PipelineEvent) {
	o.events <- event
}

func (o *channelObserver) GetObserverName() string {
	return o.name
}

type panicObserver struct{}

func (panicObserver) OnEvent(context.Context, PipelineEvent) {
	panic("observer exploded")
}

func (panicObserver) GetObserverName() string {
	return "panic_observer"
}

func waitForEvent(t *testing.T, o *channelObserver) PipelineEvent {
	t.Helper()
	select {
	case event := <-o.events:
		return event
	case <-time.After(2 * time.Second):
		t.Fatalf("Observer %s never received an event", o.name)
		return PipelineEvent{}
	}
}

func TestMetricsObserver_CountsEvents(t *testing.T) {
	o := NewMetricsObserver()
	ctx := context.Background()

	o.OnEvent(ctx, PipelineEvent{EventType: PhotoReceived})
	o.OnEvent(ctx, PipelineEvent{EventType: PhotoReceived})
	o.OnEvent(ctx, PipelineEvent{EventType: PhotoStored, ProcessingTime: 100 * time.Millisecond})
	o.OnEvent(ctx, PipelineEvent{EventType: PhotoStored, ProcessingTime: 300 * time.Millisecond})
	o.OnEvent(ctx, PipelineEvent{EventType: PhotoFailed})

	m := o.Metrics()
	if m.Received != 2 {
		t.Errorf("Expected 2 received, got %d", m.Received)
	}
	if m.Stored != 2 {
		t.Errorf("Expected 2 stored, got %d", m.Stored)
	}
	if m.Failed != 1 {
		t.Errorf("Expected 1 failed, got %d", m.Failed)
	}
	if math.Abs(m.AvgProcessSec-0.2) > 1e-9 {
		t.Errorf("Expected average 0.2s, got %f", m.AvgProcessSec)
	}
}

func TestMetricsObserver_AverageIsZeroWithoutStores(t *testing.T) {
	o := NewMetricsObserver()
	o.OnEvent(context.Background(), PipelineEvent{EventType: PhotoFailed})

	if avg := o.Metrics().AvgProcessSec; avg != 0 {
		t.Errorf("Expected zero average with no stored photos, got %f", avg)
	}
}

func TestEventPublisher_NotifiesAllSubscribers(t *testing.T) {
	publisher := NewEventPublisher()
	first := newChannelObserver("first")
	second := newChannelObserver("second")
	publisher.Subscribe(first)
	publisher.Subscribe(second)

	event := PipelineEvent{
		EventType: PhotoStored,
		Filename:  "photo_001.jpg",
		Category:  "dog",
		Timestamp: time.Now(),
		Success:   true,
	}
	publisher.NotifyObservers(context.Background(), event)

	for _, o := range []*channelObserver{first, second} {
		got := waitForEvent(t, o)
		if got.Filename != "photo_001.jpg" {
			t.Errorf("Observer %s got filename %q", o.name, got.Filename)
		}
		if got.EventType != PhotoStored {
			t.Errorf("Observer %s got event type %q", o.name, got.EventType)
		}
	}
}

func TestEventPublisher_Unsubscribe(t *testing.T) {
	publisher := NewEventPublisher()
	kept := newChannelObserver("kept")
	removed := newChannelObserver("removed")
	publisher.Subscribe(kept)
	publisher.Subscribe(removed)
	publisher.Unsubscribe(removed)

	publisher.NotifyObservers(context.Background(), PipelineEvent{EventType: PhotoReceived})

	waitForEvent(t, kept)
	select {
	case <-removed.events:
		t.Error("Unsubscribed observer still received an event")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestEventPublisher_PanickingObserverIsIsolated(t *testing.T) {
	publisher := NewEventPublisher()
	healthy := newChannelObserver("healthy")
	publisher.Subscribe(panicObserver{})
	publisher.Subscribe(healthy)

	publisher.NotifyObservers(context.Background(), PipelineEvent{EventType: PhotoFailed})

	waitForEvent(t, healthy)
}

func TestLoggingObserver_HandlesAllEventTypes(t *testing.T) {
	log := logrus.New()
	log.SetOutput(io.Discard)
	o := NewLoggingObserver(log)

	if o.GetObserverName() != "logging_observer" {
		t.Errorf("Unexpected observer name %q", o.GetObserverName())
	}

	ctx := context.Background()
	for _, eventType := range []EventType{PhotoReceived, PhotoStored, PhotoFailed, EventType("unknown")} {
		o.OnEvent(ctx, PipelineEvent{
			EventType:    eventType,
			Filename:     "photo.jpg",
			Filter:       "bw",
			Category:     "cat",
			ErrorMessage: "boom",
		})
	}
}
