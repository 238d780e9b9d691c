package workflow

import (
	"log/slog"
	"sync"

	"github.com/osvaldoandrade/aquaq/pkg/domain"
)

// Sink receives progress events for one analysis. A sink returning an error
// is logged and skipped; it never blocks delivery to sibling sinks.
type Sink func(domain.ProgressEvent) error

// Broadcaster fans out progress events to the live subscribers of each
// analysis. Events are not buffered: a subscriber only sees events emitted
// after it subscribed.
type Broadcaster struct {
	mu     sync.RWMutex
	sinks  map[string][]Sink
	logger *slog.Logger
}

func NewBroadcaster(logger *slog.Logger) *Broadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broadcaster{sinks: make(map[string][]Sink), logger: logger}
}

func (b *Broadcaster) Subscribe(id string, sink Sink) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sinks[id] = append(b.sinks[id], sink)
}

// Unsubscribe removes every sink registered for id. Teardown is coarse by
// design: the service runs one viewer per job.
func (b *Broadcaster) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.sinks, id)
}

// SubscriberCount reports the number of live sinks for id.
func (b *Broadcaster) SubscriberCount(id string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.sinks[id])
}

// Emit delivers ev synchronously to every current subscriber of id, in
// registration order. With no subscribers it is a cheap no-op.
func (b *Broadcaster) Emit(id string, ev domain.ProgressEvent) {
	b.mu.RLock()
	sinks := b.sinks[id]
	b.mu.RUnlock()

	for _, sink := range sinks {
		b.deliver(id, sink, ev)
	}
}

func (b *Broadcaster) deliver(id string, sink Sink, ev domain.ProgressEvent) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("progress sink panicked", "analysisId", id, "panic", r)
		}
	}()
	if err := sink(ev); err != nil {
		b.logger.Warn("progress sink failed", "analysisId", id, "step", ev.Step, "err", err)
	}
}
