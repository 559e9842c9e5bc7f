// Package model provides SharedModel, the single-owner wrapper around an
// ASR inference backend. Two instances exist per process — one for the
// batch TDT model, one for the streaming EOU model — each with its own
// exclusivity lock and state mutex; they never share a model handle.
package model

import (
	"context"
	"fmt"
	"sync"

	"github.com/agentflow-ai/heycat/internal/domain"
	"github.com/agentflow-ai/heycat/internal/logger"
	"github.com/agentflow-ai/heycat/internal/recording"
)

// SharedModel is the single point of access to one ASR model instance.
// The exclusivity lock (excl) serializes every inference call; the state
// mutex (mu) is held only briefly around state transitions. The two are
// deliberately separate so that a long-running inference never blocks a
// cheap State() read.
type SharedModel struct {
	name string
	log  *logger.Logger

	excl sync.Mutex

	mu     sync.Mutex
	state  domain.SharedModelState
	engine Engine
	errMsg string
}

// New creates a SharedModel in the Unloaded state. name is used only for
// logging (e.g. "batch", "streaming").
func New(name string, log *logger.Logger) *SharedModel {
	return &SharedModel{name: name, log: log, state: domain.ModelUnloaded}
}

// Load loads weights via loader(modelDir) and, on success, transitions
// Unloaded -> Idle. Subsequent calls while Idle replace the model.
func (m *SharedModel) Load(modelDir string, loader EngineLoader) error {
	engine, err := loader(modelDir)
	if err != nil {
		m.log.Error("model[%s]: load failed from %q: %v", m.name, modelDir, err)
		return domain.NewError(domain.KindResource, fmt.Sprintf("model[%s]: load failed", m.name), fmt.Errorf("%w: %v", domain.ErrModelLoadFailed, err))
	}

	m.mu.Lock()
	old := m.engine
	m.engine = engine
	m.state = domain.ModelIdle
	m.errMsg = ""
	m.mu.Unlock()

	if old != nil {
		_ = old.Close()
	}
	m.log.Info("model[%s]: loaded from %q", m.name, modelDir)
	return nil
}

// State returns an O(1) snapshot of the current state.
func (m *SharedModel) State() domain.SharedModelState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// IsLoaded reports whether a model is currently loaded (Idle, Transcribing,
// Completed, or Error all count; only Unloaded does not).
func (m *SharedModel) IsLoaded() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state != domain.ModelUnloaded
}

// TranscribeFile acquires the exclusivity lock, runs a TranscribingGuard
// around a file-backed inference call, and returns the fixed-up text.
func (m *SharedModel) TranscribeFile(ctx context.Context, path string) (string, error) {
	pcm, sampleRate, err := recording.ReadWav(path)
	if err != nil {
		return "", domain.NewError(domain.KindRuntime, "model: reading wav", err)
	}
	return m.transcribe(ctx, pcm, sampleRate, 1)
}

// TranscribeSamples acquires the exclusivity lock, runs a
// TranscribingGuard, and returns the fixed-up text for an in-memory
// window. pcm must be non-empty. Intended for short windows (wake word,
// streaming chunks).
func (m *SharedModel) TranscribeSamples(ctx context.Context, pcm []float32, sampleRate, channels int) (string, error) {
	if len(pcm) == 0 {
		return "", domain.NewError(domain.KindRuntime, "model: empty pcm", domain.ErrInvalidAudio)
	}
	return m.transcribe(ctx, pcm, sampleRate, channels)
}

func (m *SharedModel) transcribe(ctx context.Context, pcm []float32, sampleRate, channels int) (string, error) {
	m.excl.Lock()
	defer m.excl.Unlock()

	guard, engine, err := m.beginTranscribing()
	if err != nil {
		return "", err
	}
	defer guard.release()

	tokens, err := engine.Transcribe(ctx, pcm, sampleRate, channels)
	if err != nil {
		guard.completeWithError(err.Error())
		return "", domain.NewError(domain.KindRuntime, fmt.Sprintf("model[%s]: transcription failed", m.name), fmt.Errorf("%w: %v", domain.ErrTranscriptionFail, err))
	}

	text := FixText(tokens)
	guard.completeSuccess()
	return text, nil
}

func (m *SharedModel) beginTranscribing() (*TranscribingGuard, Engine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == domain.ModelUnloaded || m.engine == nil {
		return nil, nil, domain.NewError(domain.KindState, fmt.Sprintf("model[%s]: not loaded", m.name), domain.ErrModelNotLoaded)
	}

	m.state = domain.ModelTranscribing
	return &TranscribingGuard{model: m}, m.engine, nil
}

// TranscribingGuard is the RAII scope object enforcing the
// Transcribing -> Idle/Error transition on every exit path, including a
// panic unwinding through the caller. Construct via
// SharedModel.beginTranscribing; callers never build one directly.
type TranscribingGuard struct {
	model     *SharedModel
	completed bool
}

// completeSuccess marks the call a success: state becomes Completed.
func (g *TranscribingGuard) completeSuccess() {
	g.model.mu.Lock()
	g.model.state = domain.ModelCompleted
	g.model.errMsg = ""
	g.model.mu.Unlock()
	g.completed = true
}

// completeWithError marks the call a failure: state becomes Error(reason).
func (g *TranscribingGuard) completeWithError(reason string) {
	g.model.mu.Lock()
	g.model.state = domain.ModelError
	g.model.errMsg = reason
	g.model.mu.Unlock()
	g.completed = true
}

// release is deferred at the call site. If neither completeSuccess nor
// completeWithError ran — including because the call site panicked — it
// resets Transcribing back to Idle so the model never wedges.
func (g *TranscribingGuard) release() {
	if g.completed {
		return
	}
	g.model.mu.Lock()
	if g.model.state == domain.ModelTranscribing {
		g.model.state = domain.ModelIdle
	}
	g.model.mu.Unlock()
}

// ResetToIdle forces the state machine back to Idle regardless of its
// current state. Used by TranscriptionService's timeout path: the
// blocking inference goroutine is abandoned, not killed, so the state
// must be reset from outside any guard to avoid wedging in Transcribing.
func (m *SharedModel) ResetToIdle() {
	m.mu.Lock()
	m.state = domain.ModelIdle
	m.mu.Unlock()
	m.log.Warn("model[%s]: state force-reset to idle", m.name)
}

// LastError returns the reason recorded by the most recent
// completeWithError call, or "" if the last outcome was a success.
func (m *SharedModel) LastError() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.errMsg
}
