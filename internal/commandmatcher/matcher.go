// Package commandmatcher provides the reference domain.CommandMatcher:
// an in-memory registry of phrase-to-action bindings matched the way
// the teacher's keyword-based intent parser matches input, with the
// registry itself guarded by the teacher's in-memory-store mutex shape.
package commandmatcher

import (
	"context"
	"strings"
	"sync"

	"github.com/agentflow-ai/heycat/internal/domain"
	"github.com/agentflow-ai/heycat/internal/logger"
)

// Compile-time interface check.
var _ domain.CommandMatcher = (*Registry)(nil)

// Action is the side effect bound to a registered command.
type Action func(ctx context.Context) error

type binding struct {
	phrase string // normalized: lowercased, trimmed
	id     string
	action Action
}

// Registry is an in-memory voice-command registry: a set of
// phrase-to-action bindings, matched by case-insensitive exact or
// prefix match against recognized text. Safe for concurrent use.
type Registry struct {
	log *logger.Logger

	mu       sync.RWMutex
	bindings []binding
}

// New creates an empty registry.
func New(log *logger.Logger) *Registry {
	return &Registry{log: log}
}

// Register adds a command: phrase triggers action under commandID.
// Registering the same commandID again replaces its phrase and action.
func (r *Registry) Register(commandID, phrase string, action Action) {
	norm := normalize(phrase)

	r.mu.Lock()
	defer r.mu.Unlock()

	for i, b := range r.bindings {
		if b.id == commandID {
			r.bindings[i] = binding{phrase: norm, id: commandID, action: action}
			r.log.Debug("commandmatcher: replaced command %s", commandID)
			return
		}
	}
	r.bindings = append(r.bindings, binding{phrase: norm, id: commandID, action: action})
	r.log.Debug("commandmatcher: registered command %s (%q)", commandID, phrase)
}

// Unregister removes a command by ID. Idempotent.
func (r *Registry) Unregister(commandID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, b := range r.bindings {
		if b.id != commandID {
			r.bindings[n] = b
			n++
		}
	}
	r.bindings = r.bindings[:n]
}

// Match checks recognized text against every registered phrase,
// case-insensitively, matching either an exact match or text that
// starts with the phrase followed by a space (so "open browser please"
// matches a command registered as "open browser"; text that merely
// contains the phrase further in does not match). The first registered
// match wins.
func (r *Registry) Match(ctx context.Context, text string) (commandID string, matched bool) {
	norm := normalize(text)
	if norm == "" {
		return "", false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, b := range r.bindings {
		if b.phrase == "" {
			continue
		}
		if norm == b.phrase || strings.HasPrefix(norm, b.phrase+" ") {
			return b.id, true
		}
	}
	return "", false
}

// Dispatch invokes the action bound to commandID.
func (r *Registry) Dispatch(ctx context.Context, commandID string) error {
	r.mu.RLock()
	var action Action
	for _, b := range r.bindings {
		if b.id == commandID {
			action = b.action
			break
		}
	}
	r.mu.RUnlock()

	if action == nil {
		return domain.NewError(domain.KindState, "commandmatcher: unknown command "+commandID, nil)
	}
	return action(ctx)
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
