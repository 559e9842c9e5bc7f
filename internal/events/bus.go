// Package events implements the typed fan-out of outbound domain.Event
// values to every registered host/UI subscriber, in the manner of the
// teacher's speech.Mouth notify-channel dispatcher: a short critical
// section to manage subscriber state, non-blocking sends on the hot
// path.
package events

import (
	"sync"

	"github.com/agentflow-ai/heycat/internal/domain"
	"github.com/agentflow-ai/heycat/internal/logger"
)

// DefaultSubscriberQueueSize is the channel capacity handed to a new
// subscriber when the caller doesn't request a specific size.
const DefaultSubscriberQueueSize = 64

// Bus fans out every published Event to all current subscribers. A
// subscriber whose queue is full has the event dropped for it (logged),
// never blocking the publisher — T_capture and T_analysis both publish
// indirectly through components that hold this invariant.
type Bus struct {
	log *logger.Logger

	mu   sync.RWMutex
	subs map[chan domain.Event]struct{}
}

// New creates an empty bus.
func New(log *logger.Logger) *Bus {
	return &Bus{log: log, subs: make(map[chan domain.Event]struct{})}
}

// Subscribe registers a new subscriber channel of the given capacity
// (DefaultSubscriberQueueSize if size <= 0) and returns it. The
// returned channel is never closed by the bus; callers that want to
// stop receiving must call Unsubscribe.
func (b *Bus) Subscribe(size int) chan domain.Event {
	if size <= 0 {
		size = DefaultSubscriberQueueSize
	}
	ch := make(chan domain.Event, size)

	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes ch from the fan-out set. Idempotent.
func (b *Bus) Unsubscribe(ch chan domain.Event) {
	b.mu.Lock()
	delete(b.subs, ch)
	b.mu.Unlock()
}

// SubscriberCount reports how many subscribers are currently registered.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Publish delivers evt to every current subscriber by non-blocking
// send. A full subscriber queue causes that one delivery to be dropped
// and logged; it never blocks the caller or affects other subscribers.
func (b *Bus) Publish(evt domain.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subs {
		select {
		case ch <- evt:
		default:
			b.log.Warn("events: subscriber queue full, dropping %s event", evt.Type)
		}
	}
}
