// Package listening owns the background analysis thread: draining the
// capture analysis ring into the wake-word detector and ticking its
// analysis, on the Start/Stop-supervised background-loop shape used
// throughout the core for long-running background work.
package listening

import (
	"context"
	"sync"
	"time"

	"github.com/agentflow-ai/heycat/internal/audio"
	"github.com/agentflow-ai/heycat/internal/domain"
	"github.com/agentflow-ai/heycat/internal/logger"
	"github.com/agentflow-ai/heycat/internal/wakeword"
)

// analysisPeriod is the target cadence of the background analysis tick.
const analysisPeriod = 150 * time.Millisecond

// Pipeline owns the wake-word detector's lifecycle and the single
// analysis thread that drives it. Event subscription is mandatory
// before Start: silent event-drops from a forgotten subscription were
// a recurring source of missed detections, so the API treats "no
// subscriber" as a programmer error rather than a silent no-op.
type Pipeline struct {
	log *logger.Logger

	mu         sync.Mutex
	running    bool
	cancel     context.CancelFunc
	exitCh     chan struct{}
	subscriber chan<- domain.Event
}

// New creates a Pipeline. The wakeword.Detector each Start call drives
// is supplied by the caller, not built here, so one Pipeline can be
// restarted against a freshly constructed detector (e.g. after a wake
// phrase list change) without reconstruction.
func New(log *logger.Logger) *Pipeline {
	return &Pipeline{log: log}
}

// SubscribeEvents registers the destination for wake-word events
// translated into the generic Event envelope. Must be called before
// Start; calling it again replaces the destination.
func (p *Pipeline) SubscribeEvents(sender chan<- domain.Event) {
	p.mu.Lock()
	p.subscriber = sender
	p.mu.Unlock()
}

// Start waits (with a short timeout) for any previous analysis thread
// to have signalled exit, then spawns a new one bound to capture's
// analysis ring and the shared ASR model's detector. Fails with
// domain.ErrNoEventSubscriber if SubscribeEvents was never called.
func (p *Pipeline) Start(ctx context.Context, capture *audio.Capture, detector *wakeword.Detector) error {
	p.mu.Lock()
	if p.subscriber == nil {
		p.mu.Unlock()
		return domain.NewError(domain.KindState, "listening: start requires a subscriber", domain.ErrNoEventSubscriber)
	}
	if p.running {
		p.mu.Unlock()
		return nil
	}

	if p.exitCh != nil {
		prevExit := p.exitCh
		p.mu.Unlock()
		select {
		case <-prevExit:
		case <-time.After(2 * time.Second):
			p.log.Warn("listening: previous analysis thread did not exit within timeout")
		}
		p.mu.Lock()
	}

	childCtx, cancel := context.WithCancel(ctx)
	exitCh := make(chan struct{})
	p.cancel = cancel
	p.exitCh = exitCh
	p.running = true
	subscriber := p.subscriber
	p.mu.Unlock()

	go p.loop(childCtx, capture, detector, subscriber, exitCh)

	subscriber <- domain.Event{Type: domain.EventListeningStarted, At: time.Now()}
	p.log.Info("listening: analysis thread started")
	return nil
}

// StopWithTimeout sets the stop flag and waits up to d for the exit
// notification before returning. Idempotent: calling it when not
// running is a no-op.
func (p *Pipeline) StopWithTimeout(d time.Duration) {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	cancel := p.cancel
	exitCh := p.exitCh
	subscriber := p.subscriber
	p.running = false
	p.mu.Unlock()

	cancel()
	select {
	case <-exitCh:
	case <-time.After(d):
		p.log.Warn("listening: analysis thread did not exit within %s", d)
	}

	if subscriber != nil {
		select {
		case subscriber <- domain.Event{Type: domain.EventListeningStopped, At: time.Now()}:
		default:
		}
	}
}

// Running reports whether the analysis thread is currently active.
func (p *Pipeline) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *Pipeline) loop(ctx context.Context, capture *audio.Capture, detector *wakeword.Detector, subscriber chan<- domain.Event, exitCh chan struct{}) {
	defer close(exitCh)

	ticker := time.NewTicker(analysisPeriod)
	defer ticker.Stop()

	ring := capture.AnalysisRing()
	wakeCh := make(chan domain.WakeWordEvent, 1)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if samples := ring.Drain(); len(samples) > 0 {
				detector.PushSamples(samples)
			}
			detector.AnalyzeAndEmit(ctx, wakeCh)
			drainWakeEvents(wakeCh, subscriber)
		}
	}
}

// drainWakeEvents forwards any WakeWordEvent AnalyzeAndEmit just
// produced into the generic Event envelope subscribers expect.
func drainWakeEvents(wakeCh <-chan domain.WakeWordEvent, subscriber chan<- domain.Event) {
	select {
	case ev := <-wakeCh:
		publishWakeEvent(ev, subscriber)
	default:
	}
}

func publishWakeEvent(ev domain.WakeWordEvent, subscriber chan<- domain.Event) {
	var out domain.Event
	out.At = time.Now()
	switch ev.Kind {
	case domain.WakeWordDetected:
		out.Type = domain.EventWakeWordDetected
		out.Payload = domain.WakeWordDetectedPayload{Phrase: ev.Phrase, RecognizedText: ev.RecognizedText}
	case domain.WakeWordUnavailable, domain.WakeWordError:
		out.Type = domain.EventWakeWordUnavailable
		out.Payload = domain.WakeWordUnavailablePayload{Reason: ev.Reason}
	default:
		return
	}

	select {
	case subscriber <- out:
	default:
	}
}
