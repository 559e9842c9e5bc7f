// Package silence implements end-of-utterance detection over an
// in-progress recording: a background tick samples the tail of the
// shared recording buffer through a precise VAD preset and fires a
// callback once trailing silence has lasted long enough.
package silence

import (
	"context"
	"sync"
	"time"

	"github.com/agentflow-ai/heycat/internal/domain"
	"github.com/agentflow-ai/heycat/internal/logger"
	"github.com/agentflow-ai/heycat/internal/recording"
	"github.com/agentflow-ai/heycat/internal/vad"
)

// Option configures a Detector.
type Option func(*Detector)

// WithTickInterval sets how often the tail of the buffer is sampled.
func WithTickInterval(d time.Duration) Option {
	return func(det *Detector) { det.tickInterval = d }
}

// WithTrailingSilence sets how long silence must persist after speech
// before auto-stop fires.
func WithTrailingSilence(d time.Duration) Option {
	return func(det *Detector) { det.trailingSilence = d }
}

// WithMinRecordingDuration sets the minimum time a recording must run
// before auto-stop is even considered, so a brief mic-open pop can never
// trigger it.
func WithMinRecordingDuration(d time.Duration) Option {
	return func(det *Detector) { det.minDuration = d }
}

// speechState is the detector's two-state machine: Silent, or Speaking
// with the instant of the last confirmed speech frame.
type speechState int

const (
	stateSilent speechState = iota
	stateSpeaking
)

// Detector runs VadConfig::silence() over the tail of a recording
// buffer on a background tick and invokes onSilence exactly once when
// trailing silence is confirmed.
type Detector struct {
	buf *recording.Buffer
	log *logger.Logger

	tickInterval    time.Duration
	trailingSilence time.Duration
	minDuration     time.Duration

	mu        sync.Mutex
	running   bool
	cancel    context.CancelFunc
	startedAt time.Time
	state     speechState
	lastVoice time.Time
	v         vad.Vad
	fired     bool
}

// New constructs a Detector over buf with the defaults from spec.md
// §4.6 (100 ms tick, 1.2 s trailing silence, 500 ms minimum duration),
// overridable via options.
func New(buf *recording.Buffer, log *logger.Logger, opts ...Option) (*Detector, error) {
	v, err := vad.Silence()
	if err != nil {
		return nil, err
	}
	d := &Detector{
		buf:             buf,
		log:             log,
		tickInterval:    100 * time.Millisecond,
		trailingSilence: 1200 * time.Millisecond,
		minDuration:     500 * time.Millisecond,
		v:               v,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Start begins monitoring in the background. onSilence is invoked at
// most once per Start/Stop cycle, from the monitor goroutine — callers
// must not block inside it for long, since it runs on the tick thread.
// Non-blocking; safe to call only while not already running.
func (d *Detector) Start(ctx context.Context, onSilence func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running {
		d.log.Warn("silence: detector already running")
		return
	}

	childCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.running = true
	d.startedAt = time.Now()
	d.state = stateSilent
	d.lastVoice = time.Time{}
	d.fired = false
	d.v.Reset()

	go d.loop(childCtx, onSilence)
	d.log.Debug("silence: monitoring started (trailing=%s, min_duration=%s)", d.trailingSilence, d.minDuration)
}

// Stop halts monitoring. Idempotent.
func (d *Detector) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.running {
		return
	}
	d.cancel()
	d.running = false
}

func (d *Detector) loop(ctx context.Context, onSilence func()) {
	ticker := time.NewTicker(d.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if d.tick() {
				onSilence()
				return
			}
		}
	}
}

// tick samples the buffer's tail, classifies it, and reports whether
// trailing silence has now been confirmed.
func (d *Detector) tick() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.fired {
		return false
	}
	if time.Since(d.startedAt) < d.minDuration {
		return false
	}

	tail := d.tailWindow()
	if len(tail) < d.v.ChunkSize() {
		return false
	}

	isSpeech := vad.SpeechFraction(d.v, tail) > 0
	now := time.Now()
	if isSpeech {
		if d.state == stateSilent {
			d.log.Debug("silence: speech detected")
		}
		d.state = stateSpeaking
		d.lastVoice = now
		return false
	}

	if d.state == stateSpeaking && now.Sub(d.lastVoice) >= d.trailingSilence {
		d.log.Info("silence: %.1fs trailing silence after speech, signalling auto-stop", d.trailingSilence.Seconds())
		d.fired = true
		return true
	}
	return false
}

// tailWindow returns the last VAD-chunk-sized window of the buffer (512
// samples, 32 ms at 16 kHz), so each tick classifies only the most
// recent chunk; audio that arrived earlier in the tick is not examined.
func (d *Detector) tailWindow() domain.Pcm {
	snap := d.buf.Snapshot()
	n := d.v.ChunkSize()
	if len(snap) <= n {
		return snap
	}
	return snap[len(snap)-n:]
}
