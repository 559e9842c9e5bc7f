package recording

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/agentflow-ai/heycat/internal/domain"
)

func TestWriteWavReadWavRoundTrip(t *testing.T) {
	pcm := make(domain.Pcm, 1600)
	for i := range pcm {
		pcm[i] = float32(math.Sin(float64(i) * 0.1))
	}

	path := filepath.Join(t.TempDir(), "out.wav")
	if err := WriteWav(path, pcm); err != nil {
		t.Fatalf("WriteWav: %v", err)
	}

	got, rate, err := ReadWav(path)
	if err != nil {
		t.Fatalf("ReadWav: %v", err)
	}
	if rate != sampleRate {
		t.Fatalf("sample rate = %d, want %d", rate, sampleRate)
	}
	if len(got) != len(pcm) {
		t.Fatalf("length = %d, want %d", len(got), len(pcm))
	}
	for i := range pcm {
		if diff := math.Abs(float64(got[i] - pcm[i])); diff > 1.0/32767.0*2 {
			t.Fatalf("sample %d: got %f, want %f (diff %f exceeds i16 quantization)", i, got[i], pcm[i], diff)
		}
	}
}

func TestBufferAppendExtractWriteWavRoundTrip(t *testing.T) {
	b := New()
	x := domain.Pcm{0.1, -0.2, 0.3, -0.4, 0.0}
	b.Append(x)

	path := filepath.Join(t.TempDir(), "buf.wav")
	extracted, err := b.WriteWav(path)
	if err != nil {
		t.Fatalf("WriteWav: %v", err)
	}
	if len(extracted) != len(x) {
		t.Fatalf("extracted length = %d, want %d", len(extracted), len(x))
	}
	if b.Len() != 0 {
		t.Fatalf("buffer should be empty after extract, len=%d", b.Len())
	}

	got, _, err := ReadWav(path)
	if err != nil {
		t.Fatalf("ReadWav: %v", err)
	}
	for i := range x {
		if diff := math.Abs(float64(got[i] - x[i])); diff > 1.0/32767.0*2 {
			t.Fatalf("sample %d: got %f, want %f", i, got[i], x[i])
		}
	}
}

func TestBufferClearDiscardsContent(t *testing.T) {
	b := New()
	b.Append(domain.Pcm{1, 2, 3})
	b.Clear()
	if b.Len() != 0 {
		t.Fatalf("expected empty buffer after Clear, len=%d", b.Len())
	}
}

func TestDecodeWavRejectsShortInput(t *testing.T) {
	if _, _, err := DecodeWav([]byte("short")); err == nil {
		t.Fatalf("expected error for truncated input")
	}
}
