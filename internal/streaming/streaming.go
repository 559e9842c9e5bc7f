// Package streaming implements incremental transcription during a
// Streaming-mode recording: chunk accumulation against the EOU model,
// partial-text emission, and a final flush.
package streaming

import (
	"context"
	"time"

	"github.com/agentflow-ai/heycat/internal/domain"
	"github.com/agentflow-ai/heycat/internal/logger"
	"github.com/agentflow-ai/heycat/internal/model"
)

// Transcriber accumulates streamed audio chunks against the EOU
// SharedModel instance and tracks the running transcript across a
// single recording. Not safe for concurrent calls to ProcessSamples;
// the orchestrator's streaming consumer task is its only caller.
type Transcriber struct {
	model *model.SharedModel
	log   *logger.Logger

	pending         domain.Pcm
	accumulatedText string
}

// New binds a Transcriber to the streaming (EOU) SharedModel instance.
// The model must already be loaded via LoadModel before a recording
// starts using it; New itself performs no I/O.
func New(m *model.SharedModel, log *logger.Logger) *Transcriber {
	return &Transcriber{model: m, log: log}
}

// ProcessSamples appends samples to the pending buffer and, while it
// holds at least one full StreamingChunkSize chunk, drains and
// transcribes one chunk at a time, invoking onPartial with the growing
// accumulated text and isFinal=false after each. The model call itself
// carries no is_final flag.
func (t *Transcriber) ProcessSamples(ctx context.Context, samples domain.Pcm, onPartial func(text string, isFinal bool)) error {
	t.pending = append(t.pending, samples...)

	for len(t.pending) >= domain.StreamingChunkSize {
		chunk := t.pending[:domain.StreamingChunkSize]
		t.pending = t.pending[domain.StreamingChunkSize:]

		text, err := t.model.TranscribeSamples(ctx, chunk, 16000, 1)
		if err != nil {
			return domain.NewError(domain.KindRuntime, "streaming: chunk transcription failed", err)
		}
		if text != "" {
			t.accumulatedText = appendText(t.accumulatedText, text)
		}
		onPartial(t.accumulatedText, false)
	}
	return nil
}

// Finalize drains any remaining pending samples into one last model
// call, invokes onPartial(text, true), and returns the final accumulated
// text. The last model call is made the same way as every chunk call;
// the model is not told that it is the final one.
func (t *Transcriber) Finalize(ctx context.Context, onPartial func(text string, isFinal bool)) (string, error) {
	if len(t.pending) > 0 {
		text, err := t.model.TranscribeSamples(ctx, t.pending, 16000, 1)
		t.pending = nil
		if err != nil {
			return "", domain.NewError(domain.KindRuntime, "streaming: final chunk transcription failed", err)
		}
		if text != "" {
			t.accumulatedText = appendText(t.accumulatedText, text)
		}
	}
	onPartial(t.accumulatedText, true)
	return t.accumulatedText, nil
}

// Reset clears the pending buffer and accumulated transcript, readying
// the Transcriber for the next recording.
func (t *Transcriber) Reset() {
	t.pending = nil
	t.accumulatedText = ""
}

func appendText(acc, next string) string {
	if acc == "" {
		return next
	}
	return acc + " " + next
}

// LoadModel loads the streaming (EOU) model from dir via loader. A
// thin passthrough kept here, rather than requiring every caller to
// reach into internal/model directly, so the streaming pipeline's model
// lifecycle is owned by the package that uses it.
func LoadModel(m *model.SharedModel, dir string, loader model.EngineLoader) error {
	return m.Load(dir, loader)
}

// consumerOption and WithConsumerTimeout exist for the orchestrator's
// streaming-consumer task: a deadline on the context handed to each
// ProcessSamples call. The wait on the sample channel itself is not
// bounded.
type consumerOption struct {
	timeout time.Duration
}

// WithConsumerTimeout sets the deadline of the context each
// ProcessSamples call receives in the consumer loop. The deadline is
// passed down to the model call; an engine that ignores its ctx is not
// interrupted by it.
func WithConsumerTimeout(d time.Duration) func(*consumerOption) {
	return func(o *consumerOption) { o.timeout = d }
}

// RunConsumer loops receiving chunks from ch and feeding them to
// ProcessSamples until ch is closed or ctx is done (the orchestrator
// ends this loop on stop/cancel by cancelling ctx; it does not close
// ch). onPartial forwards partial text upstream; errors are logged and
// do not stop the loop, matching WakeWordDetector's "errors never halt
// the background thread" policy.
func (t *Transcriber) RunConsumer(ctx context.Context, ch <-chan domain.Pcm, onPartial func(text string, isFinal bool), opts ...func(*consumerOption)) {
	cfg := &consumerOption{timeout: 5 * time.Second}
	for _, opt := range opts {
		opt(cfg)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case chunk, ok := <-ch:
			if !ok {
				return
			}
			cctx, cancel := context.WithTimeout(ctx, cfg.timeout)
			err := t.ProcessSamples(cctx, chunk, onPartial)
			cancel()
			if err != nil {
				t.log.Warn("streaming: %v", err)
			}
		}
	}
}
