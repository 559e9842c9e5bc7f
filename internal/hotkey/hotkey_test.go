package hotkey

import (
	"io"
	"testing"

	"github.com/agentflow-ai/heycat/internal/logger"
)

func newTestBackend() *Backend {
	return New(logger.New(logger.LevelOff, io.Discard))
}

func TestRegisterRequiresShortcutAndCallback(t *testing.T) {
	b := newTestBackend()
	if err := b.Register("", func() {}); err == nil {
		t.Fatal("expected error for empty shortcut")
	}
	if err := b.Register("Cmd+Shift+D", nil); err == nil {
		t.Fatal("expected error for nil callback")
	}
}

func TestTriggerInvokesRegisteredCallback(t *testing.T) {
	b := newTestBackend()
	called := false
	if err := b.Register("Cmd+Shift+D", func() { called = true }); err != nil {
		t.Fatalf("Register() error: %v", err)
	}

	b.Trigger()
	if !called {
		t.Fatal("Trigger() did not invoke the registered callback")
	}
}

func TestTriggerBeforeRegisterIsNoOp(t *testing.T) {
	b := newTestBackend()
	b.Trigger() // must not panic
}

func TestUnregisterClearsRegistration(t *testing.T) {
	b := newTestBackend()
	called := false
	_ = b.Register("Cmd+Shift+D", func() { called = true })

	if err := b.Unregister(); err != nil {
		t.Fatalf("Unregister() error: %v", err)
	}
	if b.Registered() {
		t.Fatal("Registered() true after Unregister()")
	}
	b.Trigger()
	if called {
		t.Fatal("Trigger() invoked callback after Unregister()")
	}
}
