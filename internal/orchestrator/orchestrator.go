// Package orchestrator implements the recording state machine: the
// single component permitted to mutate domain.RecordingState, reached
// through its four entry points (hotkey, UI button, wake word, escape
// double-tap) and owning the wiring between capture, the recording
// buffer, silence detection, and the two transcription pipelines.
package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/agentflow-ai/heycat/internal/audio"
	"github.com/agentflow-ai/heycat/internal/domain"
	"github.com/agentflow-ai/heycat/internal/events"
	"github.com/agentflow-ai/heycat/internal/listening"
	"github.com/agentflow-ai/heycat/internal/logger"
	"github.com/agentflow-ai/heycat/internal/recording"
	"github.com/agentflow-ai/heycat/internal/silence"
	"github.com/agentflow-ai/heycat/internal/streaming"
	"github.com/agentflow-ai/heycat/internal/transcription"
	"github.com/agentflow-ai/heycat/internal/wakeword"
)

// streamChannelCapacity is the bound on the streaming-mode sample
// channel between the capture callback and the consumer task.
const streamChannelCapacity = 10

// defaultEscapeDoubleTapWindow is the maximum gap between two Escape
// signals that counts as a double-tap cancel.
const defaultEscapeDoubleTapWindow = 300 * time.Millisecond

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithRecordingsDir sets the directory batch-mode WAV files are written
// to before handoff to TranscriptionService. Defaults to os.TempDir().
func WithRecordingsDir(dir string) Option {
	return func(o *Orchestrator) { o.recordingsDir = dir }
}

// WithEscapeDoubleTapWindow overrides the double-tap detection window.
func WithEscapeDoubleTapWindow(d time.Duration) Option {
	return func(o *Orchestrator) { o.escapeWindow = d }
}

// WithSilenceDetectorOptions passes through construction options to
// every silence.Detector the orchestrator creates per recording.
func WithSilenceDetectorOptions(opts ...silence.Option) Option {
	return func(o *Orchestrator) { o.silenceOpts = opts }
}

// WithListening wires the always-on wake-word listening pipeline in, so
// the host-command surface's EnableListening/DisableListening/
// ListeningStatus can drive it. capture is the dedicated listening
// audio.Capture (distinct from the per-recording one), never started by
// anything but the pipeline. Omit this option when the process has no
// microphone available for continuous listening; the three methods then
// report domain.ErrResourceUnavailable.
func WithListening(pipeline *listening.Pipeline, capture *audio.Capture, detector *wakeword.Detector) Option {
	return func(o *Orchestrator) {
		o.listenPipeline = pipeline
		o.listenCapture = capture
		o.listenDetector = detector
	}
}

// Orchestrator is the central finite state machine described in
// spec.md §4.9. It owns no audio thread itself; it starts and stops the
// ones owned by audio.Capture, silence.Detector, and the streaming
// consumer task.
type Orchestrator struct {
	log           *logger.Logger
	buf           *recording.Buffer
	capture       *audio.Capture
	settings      domain.SettingsStore
	bus           *events.Bus
	batchSvc      *transcription.Service
	streamer      *streaming.Transcriber
	recordingsDir string
	escapeWindow  time.Duration
	silenceOpts   []silence.Option

	listenPipeline *listening.Pipeline
	listenCapture  *audio.Capture
	listenDetector *wakeword.Detector

	mu               sync.Mutex
	state            domain.RecordingState
	mode             domain.TranscriptionMode
	hotkeyInitiated  bool
	streamCh         chan domain.Pcm
	streamCancel     context.CancelFunc
	silenceDet       *silence.Detector
	silenceCancel    context.CancelFunc
	lastEscapeAt     time.Time
	listeningEnabled bool
}

// New constructs an Idle orchestrator.
func New(buf *recording.Buffer, capture *audio.Capture, settings domain.SettingsStore, bus *events.Bus, batchSvc *transcription.Service, streamer *streaming.Transcriber, log *logger.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		log:           log,
		buf:           buf,
		capture:       capture,
		settings:      settings,
		bus:           bus,
		batchSvc:      batchSvc,
		streamer:      streamer,
		recordingsDir: os.TempDir(),
		escapeWindow:  defaultEscapeDoubleTapWindow,
		state:         domain.StateIdle,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// State returns the current state. Safe for concurrent use.
func (o *Orchestrator) State() domain.RecordingState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// HandleHotkeyToggle is the hotkey entry point: starts a recording if
// Idle, stops one if Recording. The backend re-entrancy/deadlock rule
// ("any work that re-registers platform shortcuts is deferred to a
// spawned task") is the concern of the HotkeyBackend implementation
// that invokes this callback, not of the orchestrator itself — this
// method never touches hotkey registration.
func (o *Orchestrator) HandleHotkeyToggle(ctx context.Context) error {
	switch o.State() {
	case domain.StateIdle:
		return o.start(ctx, true)
	case domain.StateRecording:
		_, err := o.Stop(ctx)
		return err
	default:
		return nil
	}
}

// HandleButtonStart is the UI button's start command.
func (o *Orchestrator) HandleButtonStart(ctx context.Context) error {
	return o.start(ctx, false)
}

// HandleButtonStop is the UI button's stop command: the host-facing
// stop_recording(), which returns the batch-mode WAV path that will
// ultimately be transcribed (empty for streaming mode or when not
// Recording).
func (o *Orchestrator) HandleButtonStop(ctx context.Context) (string, error) {
	return o.Stop(ctx)
}

// HandleWakeWordDetected is the wake-word entry point: the
// WakeWordEvent consumer invokes this on detection. It follows the same
// start path as the hotkey and button entry points.
func (o *Orchestrator) HandleWakeWordDetected(ctx context.Context) error {
	return o.start(ctx, false)
}

// HandleEscape records one Escape signal and cancels the in-progress
// recording if this is the second signal within the double-tap window.
// Only the backend's own detection path: per spec.md §4.9 this fires
// for hotkey-initiated recordings, while button-initiated recordings
// have the UI detect its own double-tap and call Cancel directly.
func (o *Orchestrator) HandleEscape(ctx context.Context) error {
	now := time.Now()

	o.mu.Lock()
	if o.state != domain.StateRecording || !o.hotkeyInitiated {
		o.mu.Unlock()
		return nil
	}
	gap := now.Sub(o.lastEscapeAt)
	o.lastEscapeAt = now
	o.mu.Unlock()

	if gap <= o.escapeWindow {
		return o.Cancel(ctx)
	}
	return nil
}

// start implements "On start" (spec.md §4.9). hotkeyInitiated records
// whether this recording should be subject to backend-side escape
// double-tap detection.
func (o *Orchestrator) start(ctx context.Context, hotkeyInitiated bool) error {
	o.mu.Lock()
	if o.state != domain.StateIdle {
		o.mu.Unlock()
		return nil
	}

	settings, err := o.settings.Load(ctx)
	if err != nil {
		o.mu.Unlock()
		return fmt.Errorf("orchestrator: load settings: %w", err)
	}
	mode := settings.TranscriptionMode

	var streamCh chan domain.Pcm
	var streamCancel context.CancelFunc
	if mode == domain.ModeStreaming {
		streamCh = make(chan domain.Pcm, streamChannelCapacity)
		o.streamer.Reset()
		var consumerCtx context.Context
		consumerCtx, streamCancel = context.WithCancel(ctx)
		consumerTimeout := time.Duration(settings.TranscriptionTimeout) * time.Second
		go o.streamer.RunConsumer(consumerCtx, streamCh, o.publishPartial, streaming.WithConsumerTimeout(consumerTimeout))
	}

	if _, err := o.capture.Start(o.buf, nil, streamCh); err != nil {
		if streamCancel != nil {
			streamCancel()
		}
		o.mu.Unlock()
		return fmt.Errorf("orchestrator: start capture: %w", err)
	}

	var silenceDet *silence.Detector
	var silenceCancel context.CancelFunc
	if settings.SilenceDetectionEnabled {
		silenceDet, err = silence.New(o.buf, o.log, o.silenceOpts...)
		if err != nil {
			o.log.Warn("orchestrator: silence detector unavailable: %v", err)
		} else {
			var silenceCtx context.Context
			silenceCtx, silenceCancel = context.WithCancel(ctx)
			silenceDet.Start(silenceCtx, o.onSilenceAutoStop)
		}
	}

	o.mode = mode
	o.hotkeyInitiated = hotkeyInitiated
	o.streamCh = streamCh
	o.streamCancel = streamCancel
	o.silenceDet = silenceDet
	o.silenceCancel = silenceCancel
	o.lastEscapeAt = time.Time{}
	o.state = domain.StateRecording
	o.mu.Unlock()

	o.bus.Publish(domain.Event{Type: domain.EventRecordingStarted, At: time.Now()})
	return nil
}

// onSilenceAutoStop is the SilenceDetector callback: it runs the same
// stop path a manual stop would, on whatever goroutine the detector's
// tick loop invokes it from.
func (o *Orchestrator) onSilenceAutoStop() {
	if _, err := o.Stop(context.Background()); err != nil {
		o.log.Warn("orchestrator: silence auto-stop failed: %v", err)
	}
}

// Stop implements "On stop" (spec.md §4.9), covering both manual and
// silence-triggered auto-stop. Returns the batch-mode WAV path (empty
// for streaming mode, or when not Recording) — computed here, before
// the file is actually written, since callers only need it to know
// where the transcription will eventually read from.
//
// State stays Processing until the batch path's TranscriptionService
// call reports completion or error; transitioning to Idle any earlier
// would let a new recording start appending into the same
// recording.Buffer the async pipeline still needs to clear.
func (o *Orchestrator) Stop(ctx context.Context) (string, error) {
	o.mu.Lock()
	if o.state != domain.StateRecording {
		o.mu.Unlock()
		return "", nil
	}

	if o.silenceCancel != nil {
		o.silenceCancel()
		o.silenceDet.Stop()
	}

	if err := o.capture.Stop(); err != nil {
		o.log.Warn("orchestrator: stop capture: %v", err)
	}
	if o.streamCancel != nil {
		o.streamCancel()
	}

	mode := o.mode
	var filePath string
	if mode != domain.ModeStreaming {
		filePath = filepath.Join(o.recordingsDir, fmt.Sprintf("heycat-%d.wav", time.Now().UnixNano()))
	}

	o.state = domain.StateProcessing
	o.silenceDet = nil
	o.silenceCancel = nil
	o.streamCancel = nil
	o.streamCh = nil
	o.mu.Unlock()

	evt := domain.Event{Type: domain.EventRecordingStopped, At: time.Now()}
	if filePath != "" {
		evt.Payload = domain.RecordingStoppedPayload{FilePath: filePath}
	}
	o.bus.Publish(evt)

	switch mode {
	case domain.ModeStreaming:
		o.finishStreaming(ctx)
	default:
		o.finishBatch(ctx, filePath)
	}
	return filePath, nil
}

// finishBatch extracts the buffer, persists it as a WAV file, and hands
// it to the TranscriptionService's async pipeline. The transition back
// to Idle is deferred to ProcessRecording's completion callback, which
// fires only after it has cleared the recording buffer — so a new
// recording can never start writing into a buffer the async pipeline
// still intends to read.
func (o *Orchestrator) finishBatch(ctx context.Context, path string) {
	pcm := o.buf.Extract()
	if err := recording.WriteWav(path, pcm); err != nil {
		o.log.Warn("orchestrator: write wav: %v", err)
		o.bus.Publish(domain.Event{
			Type:    domain.EventTranscriptionError,
			Payload: domain.TranscriptionErrorPayload{Reason: err.Error()},
			At:      time.Now(),
		})
		o.toIdle()
		return
	}

	go o.batchSvc.ProcessRecording(ctx, path, func(error) {
		o.toIdle()
	})
}

// finishStreaming finalizes the streaming transcriber and writes
// directly to the clipboard, deliberately skipping command matching per
// spec.md §4.10's design note: streaming serves long-form dictation,
// where short voice commands are out of place.
func (o *Orchestrator) finishStreaming(ctx context.Context) {
	text, err := o.streamer.Finalize(ctx, o.publishPartial)
	o.buf.Clear()
	if err != nil {
		o.bus.Publish(domain.Event{
			Type:    domain.EventTranscriptionError,
			Payload: domain.TranscriptionErrorPayload{Reason: err.Error()},
			At:      time.Now(),
		})
		o.toIdle()
		return
	}

	o.bus.Publish(domain.Event{
		Type: domain.EventTranscriptionCompleted,
		Payload: domain.TranscriptionCompletedPayload{
			Text: text,
		},
		At: time.Now(),
	})
	o.toIdle()
}

func (o *Orchestrator) publishPartial(text string, isFinal bool) {
	o.bus.Publish(domain.Event{
		Type:    domain.EventTranscriptionPartial,
		Payload: domain.TranscriptionPartialPayload{Text: text, IsFinal: isFinal},
		At:      time.Now(),
	})
}

func (o *Orchestrator) toIdle() {
	o.mu.Lock()
	o.state = domain.StateIdle
	o.mu.Unlock()
}

// Cancel implements "On cancel" (spec.md §4.9): unlike Stop, it never
// transcribes and emits no transcription event.
func (o *Orchestrator) Cancel(ctx context.Context) error {
	o.mu.Lock()
	if o.state != domain.StateRecording {
		o.mu.Unlock()
		return nil
	}

	if o.silenceCancel != nil {
		o.silenceCancel()
		o.silenceDet.Stop()
	}

	if err := o.capture.Stop(); err != nil {
		o.log.Warn("orchestrator: stop capture on cancel: %v", err)
	}
	if o.streamCancel != nil {
		o.streamCancel()
	}

	o.state = domain.StateIdle
	o.silenceDet = nil
	o.silenceCancel = nil
	o.streamCancel = nil
	o.streamCh = nil
	o.mu.Unlock()

	o.buf.Clear()
	o.streamer.Reset()
	o.bus.Publish(domain.Event{Type: domain.EventRecordingCancelled, At: time.Now()})
	return nil
}

// EnableListening is the host-command surface's enable_listening():
// starts the always-on wake-word analysis thread. No-op if already
// enabled. Fails with domain.ErrResourceUnavailable if the process was
// built without WithListening (no dedicated listening microphone).
func (o *Orchestrator) EnableListening(ctx context.Context) error {
	if o.listenPipeline == nil {
		return domain.NewError(domain.KindResource, "orchestrator: listening not configured", domain.ErrResourceUnavailable)
	}

	o.mu.Lock()
	if o.listeningEnabled {
		o.mu.Unlock()
		return nil
	}
	o.listeningEnabled = true
	o.mu.Unlock()

	if err := o.listenPipeline.Start(ctx, o.listenCapture, o.listenDetector); err != nil {
		o.mu.Lock()
		o.listeningEnabled = false
		o.mu.Unlock()
		return fmt.Errorf("orchestrator: enable listening: %w", err)
	}
	return nil
}

// DisableListening is the host-command surface's disable_listening():
// stops the analysis thread. No-op if already disabled or if listening
// was never configured.
func (o *Orchestrator) DisableListening() {
	if o.listenPipeline == nil {
		return
	}

	o.mu.Lock()
	if !o.listeningEnabled {
		o.mu.Unlock()
		return
	}
	o.listeningEnabled = false
	o.mu.Unlock()

	o.listenPipeline.StopWithTimeout(2 * time.Second)
}

// ListeningStatus is the host-command surface's get_listening_status().
// MicAvailable reports whether a dedicated listening microphone was
// configured at all via WithListening; it does not probe the device,
// since opening it is exactly what Active already tracks.
func (o *Orchestrator) ListeningStatus() domain.ListeningStatus {
	o.mu.Lock()
	enabled := o.listeningEnabled
	o.mu.Unlock()

	status := domain.ListeningStatus{
		Enabled:      enabled,
		MicAvailable: o.listenCapture != nil,
	}
	if o.listenPipeline != nil {
		status.Active = o.listenPipeline.Running()
	}
	return status
}

// SetTranscriptionMode is the host-command surface's
// set_transcription_mode(mode): validates mode, persists it to
// settings, and applies to the next recording — start() re-reads
// settings on every call, so an in-progress recording is unaffected.
func (o *Orchestrator) SetTranscriptionMode(ctx context.Context, mode domain.TranscriptionMode) error {
	if mode != domain.ModeBatch && mode != domain.ModeStreaming {
		return domain.NewError(domain.KindConfiguration, "orchestrator: invalid transcription mode", domain.ErrConfigInvalid)
	}

	settings, err := o.settings.Load(ctx)
	if err != nil {
		return fmt.Errorf("orchestrator: load settings: %w", err)
	}
	settings.TranscriptionMode = mode
	if err := o.settings.Save(ctx, settings); err != nil {
		return fmt.Errorf("orchestrator: save settings: %w", err)
	}
	return nil
}

// GetTranscriptionMode is the host-command surface's
// get_transcription_mode().
func (o *Orchestrator) GetTranscriptionMode(ctx context.Context) (domain.TranscriptionMode, error) {
	settings, err := o.settings.Load(ctx)
	if err != nil {
		return 0, fmt.Errorf("orchestrator: load settings: %w", err)
	}
	return settings.TranscriptionMode, nil
}
