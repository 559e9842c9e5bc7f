package listening

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/agentflow-ai/heycat/internal/domain"
	"github.com/agentflow-ai/heycat/internal/logger"
)

func TestStartWithoutSubscriberFails(t *testing.T) {
	p := New(logger.New(logger.LevelOff, io.Discard))
	err := p.Start(context.Background(), nil, nil)
	if err == nil {
		t.Fatal("expected error when starting without a subscriber")
	}
	if !errors.Is(err, domain.ErrNoEventSubscriber) {
		t.Fatalf("expected ErrNoEventSubscriber, got %v", err)
	}
}

func TestPublishWakeEventTranslatesDetected(t *testing.T) {
	ch := make(chan domain.Event, 1)
	publishWakeEvent(domain.WakeWordEvent{Kind: domain.WakeWordDetected, Phrase: "hey cat", RecognizedText: "hey cat please"}, ch)

	select {
	case evt := <-ch:
		if evt.Type != domain.EventWakeWordDetected {
			t.Fatalf("event type = %q, want %q", evt.Type, domain.EventWakeWordDetected)
		}
		payload, ok := evt.Payload.(domain.WakeWordDetectedPayload)
		if !ok {
			t.Fatalf("payload type = %T, want WakeWordDetectedPayload", evt.Payload)
		}
		if payload.Phrase != "hey cat" {
			t.Fatalf("payload.Phrase = %q, want %q", payload.Phrase, "hey cat")
		}
	default:
		t.Fatal("expected a translated event")
	}
}

func TestPublishWakeEventTranslatesUnavailable(t *testing.T) {
	ch := make(chan domain.Event, 1)
	publishWakeEvent(domain.WakeWordEvent{Kind: domain.WakeWordUnavailable, Reason: "transcription_timeout"}, ch)

	evt := <-ch
	if evt.Type != domain.EventWakeWordUnavailable {
		t.Fatalf("event type = %q, want %q", evt.Type, domain.EventWakeWordUnavailable)
	}
	payload := evt.Payload.(domain.WakeWordUnavailablePayload)
	if payload.Reason != "transcription_timeout" {
		t.Fatalf("payload.Reason = %q, want %q", payload.Reason, "transcription_timeout")
	}
}

func TestStopWithTimeoutIsIdempotentWhenNotRunning(t *testing.T) {
	p := New(logger.New(logger.LevelOff, io.Discard))
	p.StopWithTimeout(10 * time.Millisecond) // must not panic or block
	if p.Running() {
		t.Fatal("pipeline reports running when it was never started")
	}
}
