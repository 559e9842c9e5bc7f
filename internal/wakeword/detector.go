// Package wakeword implements the always-on wake-phrase analysis loop:
// a ring buffer fed by the capture callback, a periodic tick that gates
// on VAD, dedupes via a fingerprint deque, and falls through to a short
// SharedModel transcription with fuzzy phrase matching.
package wakeword

import (
	"context"
	"sync"
	"time"

	"github.com/agentflow-ai/heycat/internal/domain"
	"github.com/agentflow-ai/heycat/internal/logger"
	"github.com/agentflow-ai/heycat/internal/model"
	"github.com/agentflow-ai/heycat/internal/vad"
)

// Config parametrizes one Detector instance.
type Config struct {
	// Phrases is the non-empty list of target wake phrases, as configured
	// by the user (e.g. "hey cat").
	Phrases []string
	// WindowSamples is the analysis window length, in 16 kHz samples. The
	// internal ring buffer holds twice this much so that a phrase spoken
	// just before a tick is never split across the boundary.
	WindowSamples int
	// FingerprintWindowSize bounds the recent-detections dedupe deque.
	FingerprintWindowSize int
	// TranscribeTimeout bounds the soft deadline for the fallback
	// transcription call (spec default: 10s).
	TranscribeTimeout time.Duration
}

// DefaultConfig returns the configuration used when the host supplies
// only a phrase list: a 2-second window, a 5-entry dedupe deque, and a
// 10-second transcription timeout.
func DefaultConfig(phrases []string) Config {
	return Config{
		Phrases:               phrases,
		WindowSamples:         32000,
		FingerprintWindowSize: 5,
		TranscribeTimeout:     10 * time.Second,
	}
}

// Detector holds all mutable wake-word state behind a single coarse
// mutex — the ring buffer, the fingerprint deque, and the VAD's
// hysteresis counters — eliminating any lock-ordering question inside
// the detector.
type Detector struct {
	model *model.SharedModel
	log   *logger.Logger
	cfg   Config

	mu   sync.Mutex
	ring domain.Pcm
	vad  vad.Vad
	fps  *fingerprintDeque
}

// New validates cfg and constructs a Detector bound to model.
func New(m *model.SharedModel, log *logger.Logger, cfg Config) (*Detector, error) {
	if len(cfg.Phrases) == 0 {
		return nil, domain.NewError(domain.KindConfiguration, "wakeword: at least one phrase is required", domain.ErrConfigInvalid)
	}
	v, err := vad.WakeWord()
	if err != nil {
		return nil, err
	}
	return &Detector{
		model: m,
		log:   log,
		cfg:   cfg,
		ring:  make(domain.Pcm, 0, cfg.WindowSamples*2),
		vad:   v,
		fps:   newFingerprintDeque(cfg.FingerprintWindowSize),
	}, nil
}

// PushSamples appends to the circular buffer, trimming the oldest
// samples once it exceeds twice the analysis window. It is called from
// T_analysis's drain step every cycle, not from the capture callback.
func (d *Detector) PushSamples(samples domain.Pcm) {
	d.mu.Lock()
	d.ring = append(d.ring, samples...)
	if max := d.cfg.WindowSamples * 2; len(d.ring) > max {
		d.ring = d.ring[len(d.ring)-max:]
	}
	d.mu.Unlock()
}

// AnalyzeAndEmit runs one analysis tick per the eight-step wake-word
// algorithm. It returns quickly: the snapshot-and-gate steps hold the
// coarse lock only as long as a VAD pass over the window and a
// fingerprint lookup take; the lock is released before the blocking
// transcription call that follows.
func (d *Detector) AnalyzeAndEmit(ctx context.Context, eventTx chan<- domain.WakeWordEvent) {
	window, fp, ok := d.snapshotAndGate()
	if !ok {
		return
	}

	tctx, cancel := context.WithTimeout(ctx, d.cfg.TranscribeTimeout)
	defer cancel()
	text, err := d.model.TranscribeSamples(tctx, window, 16000, 1)
	if err != nil {
		reason := err.Error()
		if tctx.Err() != nil {
			reason = "transcription_timeout"
		}
		d.log.Debug("wakeword: transcription unavailable: %s", reason)
		tryEmit(eventTx, domain.WakeWordEvent{Kind: domain.WakeWordUnavailable, Reason: reason})
		return
	}

	normalized := normalizeText(text)
	phrase, matched := matchPhrase(normalized, d.cfg.Phrases)
	if !matched {
		return
	}

	d.mu.Lock()
	d.fps.Push(fp)
	d.mu.Unlock()

	d.log.Info("wakeword: detected %q (recognized %q)", phrase, text)
	tryEmit(eventTx, domain.WakeWordEvent{Kind: domain.WakeWordDetected, Phrase: phrase, RecognizedText: text})
}

// snapshotAndGate runs the snapshot, speech-fraction gate, and
// fingerprint dedupe steps under the coarse lock. ok is false if the
// tick should stop here (too little audio yet, no speech, or a repeat).
func (d *Detector) snapshotAndGate() (window domain.Pcm, fp domain.Fingerprint, ok bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.ring) < d.cfg.WindowSamples {
		return nil, 0, false
	}
	window = make(domain.Pcm, d.cfg.WindowSamples)
	copy(window, d.ring[len(d.ring)-d.cfg.WindowSamples:])

	if vad.SpeechFraction(d.vad, window) <= 0 {
		return nil, 0, false
	}

	fp = computeFingerprint(window)
	if d.fps.Contains(fp) {
		return nil, 0, false
	}
	return window, fp, true
}

func tryEmit(ch chan<- domain.WakeWordEvent, ev domain.WakeWordEvent) {
	if ch == nil {
		return
	}
	select {
	case ch <- ev:
	default:
	}
}
