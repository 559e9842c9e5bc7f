// Package config provides the settings document and its default
// in-memory persistence. A real desktop build would back
// domain.SettingsStore with a file in the host's per-app config
// location; this package's MemoryStore satisfies the same interface for
// tests and for running the core without a host.
package config

import (
	"context"
	"os"
	"strconv"
	"sync"

	"github.com/agentflow-ai/heycat/internal/domain"
	"github.com/agentflow-ai/heycat/internal/logger"
)

// Compile-time interface check.
var _ domain.SettingsStore = (*MemoryStore)(nil)

// MemoryStore is an in-memory settings store. Safe for concurrent access.
type MemoryStore struct {
	mu  sync.RWMutex
	cur *domain.Settings
	log *logger.Logger
}

// NewMemoryStore creates a settings store seeded with domain.DefaultSettings.
func NewMemoryStore(log *logger.Logger) *MemoryStore {
	return &MemoryStore{
		cur: domain.DefaultSettings(),
		log: log,
	}
}

// Load returns a copy of the current settings document. WakePhrases is
// deep-copied so a caller mutating its slice in place can't reach back
// into the store's own data.
func (s *MemoryStore) Load(ctx context.Context) (*domain.Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cp := *s.cur
	cp.WakePhrases = append([]string(nil), s.cur.WakePhrases...)
	s.log.Debug("config: loaded settings (mode=%s, silence_detection=%v)", cp.TranscriptionMode, cp.SilenceDetectionEnabled)
	return &cp, nil
}

// Save replaces the current settings document, deep-copying WakePhrases
// for the same reason Load does.
func (s *MemoryStore) Save(ctx context.Context, v *domain.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *v
	cp.WakePhrases = append([]string(nil), v.WakePhrases...)
	s.cur = &cp
	s.log.Debug("config: saved settings (mode=%s)", v.TranscriptionMode)
	return nil
}

// MinBufferSize and MaxBufferSize bound HEYCAT_AUDIO_BUFFER_SIZE per the
// external interfaces section.
const (
	MinBufferSize = 64
	MaxBufferSize = 2048
)

// BufferSizeFromEnv reads HEYCAT_AUDIO_BUFFER_SIZE, validates it against
// [MinBufferSize, MaxBufferSize], and returns fallback with ok=false if
// the variable is non-numeric or out of range. An unset variable returns
// fallback with ok=true. Callers are expected to log a warning and keep
// fallback when ok is false.
func BufferSizeFromEnv(fallback int) (value int, ok bool) {
	raw, present := os.LookupEnv("HEYCAT_AUDIO_BUFFER_SIZE")
	if !present {
		return fallback, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback, false
	}
	if n < MinBufferSize || n > MaxBufferSize {
		return fallback, false
	}
	return n, true
}
