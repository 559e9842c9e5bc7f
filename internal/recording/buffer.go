// Package recording implements the shared append-only PCM buffer that
// sits between the real-time capture callback and the rest of the
// system, plus WAV file persistence.
package recording

import (
	"sync"

	"github.com/agentflow-ai/heycat/internal/domain"
)

// Buffer is a shared, append-only PCM buffer. The writer (the capture
// callback) is always single; readers (orchestrator, silence detector)
// take brief snapshots or perform an atomic Extract at recording end.
// Growth is bounded only by recording time.
type Buffer struct {
	mu      sync.Mutex
	samples domain.Pcm
}

// New creates an empty buffer.
func New() *Buffer {
	return &Buffer{samples: make(domain.Pcm, 0, 16000*10)}
}

// Append is the writer-side call. It copies samples into the buffer's
// backing storage; the critical section is a single copy, short enough
// to call from the real-time capture callback.
func (b *Buffer) Append(samples domain.Pcm) {
	b.mu.Lock()
	b.samples = append(b.samples, samples...)
	b.mu.Unlock()
}

// Extract atomically swaps out the accumulated samples, returning them
// and clearing storage in the same critical section.
func (b *Buffer) Extract() domain.Pcm {
	b.mu.Lock()
	out := b.samples
	b.samples = make(domain.Pcm, 0, 16000*10)
	b.mu.Unlock()
	return out
}

// Clear discards buffered content without returning it.
func (b *Buffer) Clear() {
	b.mu.Lock()
	b.samples = make(domain.Pcm, 0, 16000*10)
	b.mu.Unlock()
}

// Snapshot returns a read-only copy of the current content without
// clearing it. Used by SilenceDetector, which reads the tail of an
// in-progress recording.
func (b *Buffer) Snapshot() domain.Pcm {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(domain.Pcm, len(b.samples))
	copy(out, b.samples)
	return out
}

// Len reports the current sample count.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.samples)
}

// WriteWav atomically extracts the buffer's content and persists it to
// path as a 16 kHz mono 16-bit PCM WAV file, returning the extracted
// samples alongside any write error.
func (b *Buffer) WriteWav(path string) (domain.Pcm, error) {
	pcm := b.Extract()
	if err := WriteWav(path, pcm); err != nil {
		return pcm, err
	}
	return pcm, nil
}
