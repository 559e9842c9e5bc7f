package events

import (
	"io"
	"testing"

	"github.com/agentflow-ai/heycat/internal/domain"
	"github.com/agentflow-ai/heycat/internal/logger"
)

func newTestBus() *Bus {
	return New(logger.New(logger.LevelOff, io.Discard))
}

func TestPublishDeliversToAllSubscribers(t *testing.T) {
	b := newTestBus()
	a := b.Subscribe(4)
	c := b.Subscribe(4)

	b.Publish(domain.Event{Type: domain.EventRecordingStarted})

	for _, ch := range []chan domain.Event{a, c} {
		select {
		case evt := <-ch:
			if evt.Type != domain.EventRecordingStarted {
				t.Fatalf("got event type %q, want %q", evt.Type, domain.EventRecordingStarted)
			}
		default:
			t.Fatal("expected event to be delivered")
		}
	}
}

func TestPublishDropsOnFullQueueWithoutBlocking(t *testing.T) {
	b := newTestBus()
	ch := b.Subscribe(1)

	b.Publish(domain.Event{Type: domain.EventRecordingStarted})
	b.Publish(domain.Event{Type: domain.EventRecordingStopped}) // queue full, dropped

	evt := <-ch
	if evt.Type != domain.EventRecordingStarted {
		t.Fatalf("got %q, want first event to survive", evt.Type)
	}
	select {
	case extra := <-ch:
		t.Fatalf("unexpected second event delivered: %v", extra)
	default:
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := newTestBus()
	ch := b.Subscribe(4)
	b.Unsubscribe(ch)

	b.Publish(domain.Event{Type: domain.EventRecordingStarted})

	select {
	case evt := <-ch:
		t.Fatalf("unexpected delivery after unsubscribe: %v", evt)
	default:
	}
}

func TestSubscriberCount(t *testing.T) {
	b := newTestBus()
	if b.SubscriberCount() != 0 {
		t.Fatalf("initial SubscriberCount() = %d, want 0", b.SubscriberCount())
	}
	ch := b.Subscribe(1)
	if b.SubscriberCount() != 1 {
		t.Fatalf("SubscriberCount() = %d, want 1", b.SubscriberCount())
	}
	b.Unsubscribe(ch)
	if b.SubscriberCount() != 0 {
		t.Fatalf("SubscriberCount() after unsubscribe = %d, want 0", b.SubscriberCount())
	}
}
