package wakeword

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/agentflow-ai/heycat/internal/domain"
)

// fingerprint is a quantized digest of an analysis window: a
// spectral-centroid bucket plus a duration bucket. It is cheap to
// compute from the same window already snapshotted for VAD/transcribe,
// and stable enough that two overlapping windows spanning the same
// utterance land in the same bucket, which is exactly what the
// recent-fingerprints dedupe deque needs.
const (
	centroidBucketHz = 200.0
	durationBucketMs = 100.0
)

// computeFingerprint derives a fingerprint from pcm (16 kHz mono). An
// empty window fingerprints to 0, which is never pushed onto the dedupe
// deque by the caller (step 2's speech-fraction gate rejects it first).
func computeFingerprint(pcm domain.Pcm) domain.Fingerprint {
	if len(pcm) == 0 {
		return 0
	}

	n := nextPow2(len(pcm))
	padded := make([]float64, n)
	for i, s := range pcm {
		padded[i] = float64(s)
	}

	fft := fourier.NewFFT(n)
	spectrum := fft.Coefficients(nil, padded)

	var weighted, total float64
	binHz := 16000.0 / float64(n)
	for k, c := range spectrum {
		mag := math.Hypot(real(c), imag(c))
		freq := float64(k) * binHz
		weighted += freq * mag
		total += mag
	}

	centroid := 0.0
	if total > 0 {
		centroid = weighted / total
	}

	centroidBucket := uint64(centroid / centroidBucketHz)
	durationMs := float64(len(pcm)) * 1000 / 16000
	durationBucket := uint64(durationMs / durationBucketMs)

	return domain.Fingerprint(centroidBucket<<32 | durationBucket)
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p *= 2
	}
	if p == 0 {
		p = 1
	}
	return p
}

// fingerprintDeque is the bounded recent-detections window: Contains
// dedupes, Push evicts the oldest entry once full. Not safe for
// concurrent use; callers hold the detector's single coarse lock.
type fingerprintDeque struct {
	capacity int
	entries  []domain.Fingerprint
}

func newFingerprintDeque(capacity int) *fingerprintDeque {
	return &fingerprintDeque{capacity: capacity, entries: make([]domain.Fingerprint, 0, capacity)}
}

func (d *fingerprintDeque) Contains(fp domain.Fingerprint) bool {
	for _, e := range d.entries {
		if e == fp {
			return true
		}
	}
	return false
}

func (d *fingerprintDeque) Push(fp domain.Fingerprint) {
	if len(d.entries) >= d.capacity {
		d.entries = d.entries[1:]
	}
	d.entries = append(d.entries, fp)
}
