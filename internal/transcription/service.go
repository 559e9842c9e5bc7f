// Package transcription implements the post-capture pipeline: transcribe
// a finished recording file under a hard timeout, match it against the
// voice-command registry, fall back to the clipboard, and emit the
// terminal event — guarded by a concurrency-limiting semaphore so rapid
// recordings queue rather than stacking up parallel inference calls
// against the single exclusive model.
package transcription

import (
	"context"
	"os"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/agentflow-ai/heycat/internal/domain"
	"github.com/agentflow-ai/heycat/internal/events"
	"github.com/agentflow-ai/heycat/internal/logger"
	"github.com/agentflow-ai/heycat/internal/model"
	"github.com/agentflow-ai/heycat/internal/recording"
)

// Option configures a Service.
type Option func(*Service)

// WithConcurrency sets how many ProcessRecording calls may have
// inference in flight simultaneously. Since SharedModel already
// serializes actual inference, a value above 1 only lets later stages
// (command dispatch, clipboard write) of one recording overlap with
// inference of the next; 1 is the conservative default.
func WithConcurrency(n int64) Option {
	return func(s *Service) { s.sem = semaphore.NewWeighted(n) }
}

// WithTimeout overrides the default 60s hard deadline on batch
// inference.
func WithTimeout(d time.Duration) Option {
	return func(s *Service) { s.timeout = d }
}

// Service runs the batch transcription pipeline.
type Service struct {
	model     *model.SharedModel
	matcher   domain.CommandMatcher
	clipboard domain.ClipboardEffector
	bus       *events.Bus
	buf       *recording.Buffer
	log       *logger.Logger

	sem     *semaphore.Weighted
	timeout time.Duration
}

// New constructs a Service. matcher and clipboard may be nil only in
// tests that don't exercise the success path; a real deployment always
// supplies both.
func New(m *model.SharedModel, matcher domain.CommandMatcher, clip domain.ClipboardEffector, bus *events.Bus, buf *recording.Buffer, log *logger.Logger, opts ...Option) *Service {
	s := &Service{
		model:     m,
		matcher:   matcher,
		clipboard: clip,
		bus:       bus,
		buf:       buf,
		log:       log,
		sem:       semaphore.NewWeighted(1),
		timeout:   60 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type transcribeOutcome struct {
	text string
	err  error
}

// ProcessRecording runs the full batch pipeline for one finished
// recording file. Intended to be invoked as `go svc.ProcessRecording(...)`
// by the orchestrator; it acquires the concurrency semaphore itself, so
// a burst of calls queues rather than running unbounded in parallel.
//
// Always clears the recording buffer and deletes the file before
// returning, regardless of outcome — retention is a policy decision
// made outside the core. onDone, if non-nil, fires after that cleanup
// has already happened, carrying the terminal error (nil on success) —
// callers that gate a state transition on pipeline completion (the
// orchestrator staying in Processing until here) must not act on
// completion before cleanup has run, or a freshly started recording
// could have its buffer wiped out from under it.
func (s *Service) ProcessRecording(ctx context.Context, filePath string, onDone func(err error)) {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		s.log.Warn("transcription: semaphore acquire failed: %v", err)
		s.cleanup(filePath)
		if onDone != nil {
			onDone(err)
		}
		return
	}
	defer s.sem.Release(1)

	outcome := s.runWithTimeout(filePath)

	if outcome.err != nil {
		reason := outcome.err.Error()
		s.log.Warn("transcription: %s", reason)
		s.bus.Publish(domain.Event{
			Type:    domain.EventTranscriptionError,
			Payload: domain.TranscriptionErrorPayload{Reason: reason},
			At:      time.Now(),
		})
		s.cleanup(filePath)
		if onDone != nil {
			onDone(outcome.err)
		}
		return
	}

	s.dispatchResult(ctx, outcome.text)
	s.cleanup(filePath)
	if onDone != nil {
		onDone(nil)
	}
}

// runWithTimeout runs the blocking inference call on its own goroutine
// and races it against s.timeout. On timeout the goroutine is abandoned
// (its eventual result is discarded) and the shared model's state is
// force-reset so it never wedges in Transcribing for the next caller.
func (s *Service) runWithTimeout(filePath string) transcribeOutcome {
	resultCh := make(chan transcribeOutcome, 1)
	go func() {
		text, err := s.model.TranscribeFile(context.Background(), filePath)
		resultCh <- transcribeOutcome{text: text, err: err}
	}()

	select {
	case res := <-resultCh:
		return res
	case <-time.After(s.timeout):
		s.log.Warn("transcription: timed out after %s, resetting model state", s.timeout)
		s.model.ResetToIdle()
		return transcribeOutcome{err: domain.NewError(domain.KindRuntime, "transcription timed out", domain.ErrTimeout)}
	}
}

// dispatchResult runs the command-match-then-clipboard-fallback step
// and emits the completion event.
func (s *Service) dispatchResult(ctx context.Context, text string) {
	start := time.Now()

	var matchedID string
	if s.matcher != nil {
		if id, matched := s.matcher.Match(ctx, text); matched {
			matchedID = id
			if err := s.matcher.Dispatch(ctx, id); err != nil {
				s.log.Warn("transcription: command dispatch failed for %s: %v", id, err)
			}
		}
	}

	if matchedID == "" && s.clipboard != nil {
		if err := s.clipboard.Write(ctx, text); err != nil {
			s.log.Warn("transcription: clipboard write failed: %v", err)
		}
	}

	var commandID *string
	if matchedID != "" {
		commandID = &matchedID
	}

	s.bus.Publish(domain.Event{
		Type: domain.EventTranscriptionCompleted,
		Payload: domain.TranscriptionCompletedPayload{
			Text:             text,
			DurationMs:       time.Since(start).Milliseconds(),
			MatchedCommandID: derefOrEmpty(commandID),
		},
		At: time.Now(),
	})
}

func derefOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func (s *Service) cleanup(filePath string) {
	s.buf.Clear()
	if filePath == "" {
		return
	}
	if err := os.Remove(filePath); err != nil && !os.IsNotExist(err) {
		s.log.Warn("transcription: failed to delete %q: %v", filePath, err)
	}
}
