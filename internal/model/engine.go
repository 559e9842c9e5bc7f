package model

import (
	"context"
	"strings"
)

// Token is one unit of recognized text, mirroring the shape an ASR
// library typically returns before joining: a text fragment plus
// timing the core does not need.
type Token struct {
	Text string
}

// Engine is the inference backend SharedModel drives. Swapping Engine
// implementations (ONNX Runtime, a different runtime, a test fake) never
// touches SharedModel's state machine or locking.
type Engine interface {
	// Transcribe runs one synchronous inference call over pcm (16 kHz,
	// channels-interleaved if channels > 1) and returns raw tokens for
	// fix_text to join.
	Transcribe(ctx context.Context, pcm []float32, sampleRate, channels int) ([]Token, error)
	// Close releases the engine's resources (model weights, runtime
	// session). Called when SharedModel is torn down or reloaded.
	Close() error
}

// EngineLoader constructs an Engine from a model directory. Two kinds of
// model directories exist — Batch (TDT) and Streaming (EOU) — and each
// SharedModel instance is given the loader appropriate to its kind.
type EngineLoader func(modelDir string) (Engine, error)

// FixText joins token fragments the way every ASR library in the corpus
// needs exactly once: concatenate the raw text fields, then trim
// surrounding whitespace. Kept in one place so that when the underlying
// library's joining bug is fixed, only this site changes.
func FixText(tokens []Token) string {
	var b strings.Builder
	for _, t := range tokens {
		b.WriteString(t.Text)
	}
	return strings.TrimSpace(b.String())
}
