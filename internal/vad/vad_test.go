package vad

import (
	"testing"

	"github.com/agentflow-ai/heycat/internal/domain"
)

func TestCreateRejectsBadSampleRate(t *testing.T) {
	for _, rate := range []int{0, 8001, 11025, 44100} {
		cfg := domain.WakeWordPreset()
		cfg.SampleRate = rate
		_, err := Create(cfg)
		if err == nil {
			t.Fatalf("sample_rate=%d: expected error, got nil", rate)
		}
		msg := err.Error()
		if !contains(msg, "8000") || !contains(msg, "16000") {
			t.Fatalf("sample_rate=%d: error message %q must mention both 8000 and 16000", rate, msg)
		}
	}
}

func TestCreateAcceptsValidSampleRates(t *testing.T) {
	for _, rate := range []int{8000, 16000} {
		cfg := domain.WakeWordPreset()
		cfg.SampleRate = rate
		v, err := Create(cfg)
		if err != nil {
			t.Fatalf("sample_rate=%d: unexpected error: %v", rate, err)
		}
		if v.ChunkSize() != rate*32/1000 {
			t.Fatalf("sample_rate=%d: chunk size = %d, want %d", rate, v.ChunkSize(), rate*32/1000)
		}
	}
}

func TestProcessRequiresConsecutiveFramesToConfirmSpeech(t *testing.T) {
	cfg := domain.SilencePreset()
	cfg.MinSpeechFrames = 3
	v, err := Create(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	loud := loudChunk(v.ChunkSize())
	if v.Process(loud) {
		t.Fatalf("frame 1: speaking should not be confirmed yet")
	}
	if v.Process(loud) {
		t.Fatalf("frame 2: speaking should not be confirmed yet")
	}
	if !v.Process(loud) {
		t.Fatalf("frame 3: speaking should now be confirmed")
	}
}

func TestProcessOnSilenceNeverConfirmsSpeech(t *testing.T) {
	v, err := Silence()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	silent := make(domain.Pcm, v.ChunkSize())
	for i := 0; i < 50; i++ {
		if v.Process(silent) {
			t.Fatalf("silence classified as speech on frame %d", i)
		}
	}
}

func TestSpeechFractionAllSpeech(t *testing.T) {
	v, err := WakeWord()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	pcm := loudChunk(v.ChunkSize() * 10)
	frac := SpeechFraction(v, pcm)
	if frac < 0.5 {
		t.Fatalf("expected mostly-speech fraction, got %f", frac)
	}
}

func loudChunk(n int) domain.Pcm {
	out := make(domain.Pcm, n)
	for i := range out {
		if i%2 == 0 {
			out[i] = 0.9
		} else {
			out[i] = -0.9
		}
	}
	return out
}

func contains(s, sub string) bool {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return true
		}
	}
	return false
}
