// Package hotkey provides a process-local reference domain.HotkeyBackend.
// The real platform key-capture implementation is an explicit external
// collaborator per spec.md §1; this package exists so the core and its
// tests have something to register against without a platform binding.
// A host build wires in a real global-shortcut library behind the same
// interface.
package hotkey

import (
	"sync"

	"github.com/agentflow-ai/heycat/internal/domain"
	"github.com/agentflow-ai/heycat/internal/logger"
)

// Compile-time interface check.
var _ domain.HotkeyBackend = (*Backend)(nil)

// Backend is a callback-based stand-in for a platform shortcut
// registration: Register records the callback; Trigger (test/host-only,
// not part of domain.HotkeyBackend) invokes it as if the platform key
// combination fired.
type Backend struct {
	log *logger.Logger

	mu       sync.Mutex
	shortcut string
	onToggle func()
}

// New creates an unregistered backend.
func New(log *logger.Logger) *Backend {
	return &Backend{log: log}
}

// Register records shortcut and onToggle. Replacing an existing
// registration is allowed; the prior callback is simply discarded.
func (b *Backend) Register(shortcut string, onToggle func()) error {
	if shortcut == "" {
		return domain.NewError(domain.KindConfiguration, "hotkey: shortcut must not be empty", domain.ErrConfigInvalid)
	}
	if onToggle == nil {
		return domain.NewError(domain.KindConfiguration, "hotkey: onToggle callback is required", domain.ErrConfigInvalid)
	}

	b.mu.Lock()
	b.shortcut = shortcut
	b.onToggle = onToggle
	b.mu.Unlock()

	b.log.Info("hotkey: registered %q", shortcut)
	return nil
}

// Unregister clears the current registration. Idempotent.
func (b *Backend) Unregister() error {
	b.mu.Lock()
	b.shortcut = ""
	b.onToggle = nil
	b.mu.Unlock()
	return nil
}

// Trigger invokes the registered callback as if the platform shortcut
// had just fired. It is not part of domain.HotkeyBackend — callers
// driving a real platform binding never need it; it exists for the
// host/test harness to simulate a keypress. A no-op if nothing is
// registered.
//
// Per spec.md §4.9's re-entrancy rule, the callback itself must defer
// any re-registration work rather than doing it synchronously here;
// this method only delivers the toggle, it does not enforce that rule.
func (b *Backend) Trigger() {
	b.mu.Lock()
	cb := b.onToggle
	b.mu.Unlock()

	if cb != nil {
		cb()
	}
}

// Registered reports whether a shortcut is currently registered.
func (b *Backend) Registered() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.onToggle != nil
}
