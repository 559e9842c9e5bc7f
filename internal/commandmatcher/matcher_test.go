package commandmatcher

import (
	"context"
	"io"
	"testing"

	"github.com/agentflow-ai/heycat/internal/logger"
)

func newTestRegistry() *Registry {
	return New(logger.New(logger.LevelOff, io.Discard))
}

func TestMatchExactPhrase(t *testing.T) {
	r := newTestRegistry()
	r.Register("open-browser", "open browser", func(ctx context.Context) error { return nil })

	id, matched := r.Match(context.Background(), "Open Browser")
	if !matched || id != "open-browser" {
		t.Fatalf("Match() = (%q, %v), want (\"open-browser\", true)", id, matched)
	}
}

func TestMatchPrefixAfterWakePhrase(t *testing.T) {
	r := newTestRegistry()
	r.Register("open-browser", "open browser", func(ctx context.Context) error { return nil })

	id, matched := r.Match(context.Background(), "open browser please")
	if !matched || id != "open-browser" {
		t.Fatalf("Match() = (%q, %v), want (\"open-browser\", true)", id, matched)
	}
}

func TestMatchNoneRegistered(t *testing.T) {
	r := newTestRegistry()
	_, matched := r.Match(context.Background(), "anything")
	if matched {
		t.Fatal("Match() matched with an empty registry")
	}
}

func TestDispatchInvokesAction(t *testing.T) {
	r := newTestRegistry()
	called := false
	r.Register("ping", "ping", func(ctx context.Context) error {
		called = true
		return nil
	})

	if err := r.Dispatch(context.Background(), "ping"); err != nil {
		t.Fatalf("Dispatch() error: %v", err)
	}
	if !called {
		t.Fatal("Dispatch() did not invoke the action")
	}
}

func TestDispatchUnknownCommand(t *testing.T) {
	r := newTestRegistry()
	err := r.Dispatch(context.Background(), "missing")
	if err == nil {
		t.Fatal("expected an error for an unregistered command")
	}
}

func TestUnregisterRemovesBinding(t *testing.T) {
	r := newTestRegistry()
	r.Register("ping", "ping", func(ctx context.Context) error { return nil })
	r.Unregister("ping")

	_, matched := r.Match(context.Background(), "ping")
	if matched {
		t.Fatal("Match() succeeded after Unregister()")
	}
	if err := r.Dispatch(context.Background(), "ping"); err == nil {
		t.Fatal("Dispatch() succeeded after Unregister()")
	}
}

func TestRegisterReplacesExistingCommand(t *testing.T) {
	r := newTestRegistry()
	r.Register("cmd", "first phrase", func(ctx context.Context) error { return nil })
	r.Register("cmd", "second phrase", func(ctx context.Context) error { return nil })

	if _, matched := r.Match(context.Background(), "first phrase"); matched {
		t.Fatal("old phrase still matches after replacement")
	}
	if _, matched := r.Match(context.Background(), "second phrase"); !matched {
		t.Fatal("new phrase does not match after replacement")
	}
}
