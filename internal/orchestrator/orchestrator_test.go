package orchestrator

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/agentflow-ai/heycat/internal/audio"
	"github.com/agentflow-ai/heycat/internal/domain"
	"github.com/agentflow-ai/heycat/internal/events"
	"github.com/agentflow-ai/heycat/internal/logger"
	"github.com/agentflow-ai/heycat/internal/model"
	"github.com/agentflow-ai/heycat/internal/recording"
	"github.com/agentflow-ai/heycat/internal/streaming"
	"github.com/agentflow-ai/heycat/internal/transcription"
)

type fakeSettingsStore struct {
	settings *domain.Settings
}

func (f *fakeSettingsStore) Load(ctx context.Context) (*domain.Settings, error) {
	return f.settings, nil
}

func (f *fakeSettingsStore) Save(ctx context.Context, s *domain.Settings) error {
	f.settings = s
	return nil
}

func newTestOrchestrator(t *testing.T) (*Orchestrator, *events.Bus) {
	t.Helper()
	log := logger.New(logger.LevelOff, io.Discard)
	buf := recording.New()
	capture := audio.New(log)
	settings := &fakeSettingsStore{settings: domain.DefaultSettings()}
	bus := events.New(log)
	batchSvc := transcription.New(model.New("batch", log), nil, nil, bus, buf, log)
	streamer := streaming.New(model.New("streaming", log), log)

	o := New(buf, capture, settings, bus, batchSvc, streamer, log)
	return o, bus
}

func TestNewOrchestratorStartsIdle(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	if o.State() != domain.StateIdle {
		t.Fatalf("State() = %v, want Idle", o.State())
	}
}

func TestStopWhenIdleIsNoOp(t *testing.T) {
	o, bus := newTestOrchestrator(t)
	sub := bus.Subscribe(4)

	if _, err := o.Stop(context.Background()); err != nil {
		t.Fatalf("Stop() error: %v", err)
	}
	select {
	case ev := <-sub:
		t.Fatalf("unexpected event published: %v", ev.Type)
	default:
	}
}

func TestCancelWhenIdleIsNoOp(t *testing.T) {
	o, bus := newTestOrchestrator(t)
	sub := bus.Subscribe(4)

	if err := o.Cancel(context.Background()); err != nil {
		t.Fatalf("Cancel() error: %v", err)
	}
	select {
	case ev := <-sub:
		t.Fatalf("unexpected event published: %v", ev.Type)
	default:
	}
}

// setRecording puts the orchestrator directly into Recording state
// without touching real capture hardware, for tests that only exercise
// state-machine logic reachable after a recording has started.
func setRecording(o *Orchestrator, hotkeyInitiated bool) {
	o.mu.Lock()
	o.state = domain.StateRecording
	o.hotkeyInitiated = hotkeyInitiated
	o.lastEscapeAt = (o.lastEscapeAt).Add(-time.Hour)
	o.mu.Unlock()
}

func TestHandleEscapeDoubleTapCancelsHotkeyInitiatedRecording(t *testing.T) {
	o, bus := newTestOrchestrator(t)
	setRecording(o, true)
	sub := bus.Subscribe(4)
	ctx := context.Background()

	if err := o.HandleEscape(ctx); err != nil {
		t.Fatalf("first HandleEscape() error: %v", err)
	}
	if o.State() != domain.StateRecording {
		t.Fatal("a single Escape cancelled the recording")
	}

	if err := o.HandleEscape(ctx); err != nil {
		t.Fatalf("second HandleEscape() error: %v", err)
	}
	if o.State() != domain.StateIdle {
		t.Fatalf("State() = %v after double-tap, want Idle", o.State())
	}

	select {
	case ev := <-sub:
		if ev.Type != domain.EventRecordingCancelled {
			t.Fatalf("Type = %v, want EventRecordingCancelled", ev.Type)
		}
	default:
		t.Fatal("expected a recording_cancelled event")
	}
}

func TestHandleEscapeIgnoresButtonInitiatedRecording(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	setRecording(o, false)
	ctx := context.Background()

	_ = o.HandleEscape(ctx)
	_ = o.HandleEscape(ctx)

	if o.State() != domain.StateRecording {
		t.Fatal("backend Escape detection cancelled a button-initiated recording")
	}
}

func TestHandleEscapeOutsideWindowDoesNotCancel(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	setRecording(o, true)
	ctx := context.Background()

	_ = o.HandleEscape(ctx)
	o.mu.Lock()
	o.lastEscapeAt = o.lastEscapeAt.Add(-time.Second)
	o.mu.Unlock()
	_ = o.HandleEscape(ctx)

	if o.State() != domain.StateRecording {
		t.Fatal("Escape signals spaced beyond the window cancelled the recording")
	}
}

func TestHandleHotkeyToggleIgnoredWhileProcessing(t *testing.T) {
	o, bus := newTestOrchestrator(t)
	o.mu.Lock()
	o.state = domain.StateProcessing
	o.mu.Unlock()
	sub := bus.Subscribe(4)

	if err := o.HandleHotkeyToggle(context.Background()); err != nil {
		t.Fatalf("HandleHotkeyToggle() error: %v", err)
	}
	select {
	case ev := <-sub:
		t.Fatalf("unexpected event published: %v", ev.Type)
	default:
	}
}

// TestStopStaysProcessingUntilTranscriptionDone guards the fix for a
// buffer-clobbering race: state must not reach Idle until
// TranscriptionService's async pipeline has cleared the recording
// buffer, or a recording started the instant Stop returns could have
// its audio wiped out from under it.
func TestStopStaysProcessingUntilTranscriptionDone(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	o.buf.Append(domain.Pcm{0.1, 0.2, 0.3})
	setRecording(o, false)
	o.recordingsDir = t.TempDir()

	path, err := o.Stop(context.Background())
	if err != nil {
		t.Fatalf("Stop() error: %v", err)
	}
	if path == "" {
		t.Fatal("Stop() returned an empty file path for a batch recording")
	}
	if o.State() != domain.StateProcessing {
		t.Fatalf("State() = %v immediately after Stop(), want Processing", o.State())
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && o.State() != domain.StateIdle {
		time.Sleep(time.Millisecond)
	}
	if o.State() != domain.StateIdle {
		t.Fatal("orchestrator never reached Idle after the transcription pipeline finished")
	}
}

func TestStopReturnsEmptyPathForStreamingMode(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	setRecording(o, false)
	o.mu.Lock()
	o.mode = domain.ModeStreaming
	o.mu.Unlock()

	path, err := o.Stop(context.Background())
	if err != nil {
		t.Fatalf("Stop() error: %v", err)
	}
	if path != "" {
		t.Fatalf("Stop() returned path %q for a streaming recording, want empty", path)
	}
}

func TestEnableListeningWithoutConfigurationFails(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	if err := o.EnableListening(context.Background()); err == nil {
		t.Fatal("expected an error when no listening pipeline was configured")
	}
}

func TestListeningStatusReflectsEnabledFlag(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	status := o.ListeningStatus()
	if status.Enabled || status.Active || status.MicAvailable {
		t.Fatalf("ListeningStatus() = %+v, want all false with no listening configured", status)
	}
}

func TestSetAndGetTranscriptionMode(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	ctx := context.Background()

	if err := o.SetTranscriptionMode(ctx, domain.ModeStreaming); err != nil {
		t.Fatalf("SetTranscriptionMode() error: %v", err)
	}
	got, err := o.GetTranscriptionMode(ctx)
	if err != nil {
		t.Fatalf("GetTranscriptionMode() error: %v", err)
	}
	if got != domain.ModeStreaming {
		t.Fatalf("GetTranscriptionMode() = %v, want ModeStreaming", got)
	}
}

func TestSetTranscriptionModeRejectsInvalidValue(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	if err := o.SetTranscriptionMode(context.Background(), domain.TranscriptionMode(99)); err == nil {
		t.Fatal("expected an error for an out-of-range transcription mode")
	}
}
