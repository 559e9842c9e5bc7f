package streaming

import (
	"context"
	"io"
	"testing"

	"github.com/agentflow-ai/heycat/internal/domain"
	"github.com/agentflow-ai/heycat/internal/logger"
	"github.com/agentflow-ai/heycat/internal/model"
)

type stubEngine struct {
	text string
}

func (e *stubEngine) Transcribe(ctx context.Context, pcm []float32, sampleRate, channels int) ([]model.Token, error) {
	return []model.Token{{Text: e.text}}, nil
}

func (e *stubEngine) Close() error { return nil }

func newLoadedModel(t *testing.T, text string) *model.SharedModel {
	t.Helper()
	log := logger.New(logger.LevelOff, io.Discard)
	m := model.New("test-streaming", log)
	err := m.Load("unused", func(string) (model.Engine, error) {
		return &stubEngine{text: text}, nil
	})
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	return m
}

func TestProcessSamplesEmitsPartialPerChunk(t *testing.T) {
	m := newLoadedModel(t, "hello")
	tr := New(m, logger.New(logger.LevelOff, io.Discard))

	var partials []string
	samples := make(domain.Pcm, domain.StreamingChunkSize*2)
	err := tr.ProcessSamples(context.Background(), samples, func(text string, isFinal bool) {
		if isFinal {
			t.Fatal("ProcessSamples must never emit isFinal=true")
		}
		partials = append(partials, text)
	})
	if err != nil {
		t.Fatalf("ProcessSamples() error: %v", err)
	}
	if len(partials) != 2 {
		t.Fatalf("got %d partials, want 2", len(partials))
	}
	if partials[1] != "hello hello" {
		t.Fatalf("accumulated text = %q, want %q", partials[1], "hello hello")
	}
}

func TestProcessSamplesBuffersPartialChunk(t *testing.T) {
	m := newLoadedModel(t, "x")
	tr := New(m, logger.New(logger.LevelOff, io.Discard))

	called := false
	err := tr.ProcessSamples(context.Background(), make(domain.Pcm, domain.StreamingChunkSize/2), func(string, bool) {
		called = true
	})
	if err != nil {
		t.Fatalf("ProcessSamples() error: %v", err)
	}
	if called {
		t.Fatal("onPartial called before a full chunk accumulated")
	}
	if len(tr.pending) != domain.StreamingChunkSize/2 {
		t.Fatalf("pending length = %d, want %d", len(tr.pending), domain.StreamingChunkSize/2)
	}
}

func TestFinalizeDrainsRemainderAndReportsIsFinal(t *testing.T) {
	m := newLoadedModel(t, "world")
	tr := New(m, logger.New(logger.LevelOff, io.Discard))

	_ = tr.ProcessSamples(context.Background(), make(domain.Pcm, domain.StreamingChunkSize/2), func(string, bool) {})

	var gotFinal bool
	var gotText string
	text, err := tr.Finalize(context.Background(), func(text string, isFinal bool) {
		gotFinal = isFinal
		gotText = text
	})
	if err != nil {
		t.Fatalf("Finalize() error: %v", err)
	}
	if !gotFinal {
		t.Fatal("Finalize() onPartial callback saw isFinal=false")
	}
	if text != "world" || gotText != "world" {
		t.Fatalf("final text = %q, want %q", text, "world")
	}
}

func TestResetClearsPendingAndAccumulatedText(t *testing.T) {
	m := newLoadedModel(t, "y")
	tr := New(m, logger.New(logger.LevelOff, io.Discard))

	_ = tr.ProcessSamples(context.Background(), make(domain.Pcm, domain.StreamingChunkSize), func(string, bool) {})
	tr.Reset()

	if len(tr.pending) != 0 || tr.accumulatedText != "" {
		t.Fatalf("Reset() left pending=%d accumulatedText=%q", len(tr.pending), tr.accumulatedText)
	}
}
