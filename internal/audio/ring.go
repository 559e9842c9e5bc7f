package audio

import (
	"sync"

	"github.com/agentflow-ai/heycat/internal/domain"
)

// AnalysisRing is the short-lived transport queue between the real-time
// capture callback and ListeningPipeline's analysis thread. It is not
// the wake-word detector's own circular buffer (that one lives in
// WakeWordDetector and covers a multi-second window); this ring only
// carries samples produced since the analysis thread's last drain.
type AnalysisRing struct {
	mu      sync.Mutex
	samples domain.Pcm
}

// NewAnalysisRing creates an empty ring with the given initial capacity
// hint.
func NewAnalysisRing(capacityHint int) *AnalysisRing {
	return &AnalysisRing{samples: make(domain.Pcm, 0, capacityHint)}
}

// Push is the callback-side call: a short critical section, safe to call
// from the real-time thread.
func (r *AnalysisRing) Push(samples domain.Pcm) {
	r.mu.Lock()
	r.samples = append(r.samples, samples...)
	r.mu.Unlock()
}

// Drain returns everything pushed since the last drain and clears the
// ring. Called once per analysis cycle (~150 ms) from T_analysis.
func (r *AnalysisRing) Drain() domain.Pcm {
	r.mu.Lock()
	out := r.samples
	r.samples = make(domain.Pcm, 0, cap(out))
	r.mu.Unlock()
	return out
}
