package audio

import (
	"math"
	"testing"
)

func TestResamplerPassthroughWhenRatesMatch(t *testing.T) {
	r := newResampler(16000, 16000, 256)
	in := make([]float32, 512)
	for i := range in {
		in[i] = float32(i) / 512
	}
	out := r.process(in)
	if len(out) != len(in) {
		t.Fatalf("passthrough length = %d, want %d", len(out), len(in))
	}
	for i := range in {
		if out[i] != in[i] {
			t.Fatalf("passthrough sample %d = %v, want %v", i, out[i], in[i])
		}
	}
}

func TestResamplerDownsamplesToExpectedLength(t *testing.T) {
	r := newResampler(48000, 16000, 480) // blockOut = 160
	in := make([]float32, 480)
	for i := range in {
		in[i] = float32(math.Sin(2 * math.Pi * 440 * float64(i) / 48000))
	}
	out := r.process(in)
	if len(out) != 160 {
		t.Fatalf("resampled block length = %d, want 160", len(out))
	}
}

func TestResamplerBuffersPartialBlocks(t *testing.T) {
	r := newResampler(48000, 16000, 480)
	// Feed fewer samples than one block: nothing should come out yet.
	out := r.process(make([]float32, 200))
	if len(out) != 0 {
		t.Fatalf("partial block produced %d samples, want 0", len(out))
	}
	// The remaining samples complete exactly one block.
	out = r.process(make([]float32, 280))
	if len(out) != 160 {
		t.Fatalf("completed block length = %d, want 160", len(out))
	}
}

func TestResamplerHandlesMultipleBlocksInOneCall(t *testing.T) {
	r := newResampler(48000, 16000, 480)
	out := r.process(make([]float32, 480*3))
	if len(out) != 160*3 {
		t.Fatalf("multi-block output length = %d, want %d", len(out), 160*3)
	}
}
