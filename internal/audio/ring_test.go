package audio

import "testing"

func TestAnalysisRingDrainClearsBuffer(t *testing.T) {
	r := NewAnalysisRing(4)
	r.Push([]float32{1, 2, 3})
	r.Push([]float32{4})

	out := r.Drain()
	if len(out) != 4 {
		t.Fatalf("drained length = %d, want 4", len(out))
	}
	for i, want := range []float32{1, 2, 3, 4} {
		if out[i] != want {
			t.Fatalf("sample %d = %v, want %v", i, out[i], want)
		}
	}

	if second := r.Drain(); len(second) != 0 {
		t.Fatalf("second drain length = %d, want 0", len(second))
	}
}

func TestAnalysisRingAccumulatesAcrossPushes(t *testing.T) {
	r := NewAnalysisRing(0)
	for i := 0; i < 5; i++ {
		r.Push([]float32{float32(i)})
	}
	if out := r.Drain(); len(out) != 5 {
		t.Fatalf("accumulated length = %d, want 5", len(out))
	}
}
