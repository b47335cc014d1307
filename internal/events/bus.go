// Package events carries backend results to search sessions.
//
// Backends publish [models.PartialResultEvent]s and a terminal Finish signal per query on a [Bus]. Sessions subscribe a
// [Sink] and filter by handle. Delivery is synchronous in the publisher goroutine, so a backend must never publish from
// inside the call that created the handle.
package events

import (
	"slices"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/fedsearch/internal/models"
	"github.com/desertthunder/fedsearch/internal/shared"
)

// Sink receives every event published on the bus it is subscribed to.
type Sink interface {
	OnEvent(event models.PartialResultEvent)
	// OnQueryFinished is the last signal for h. err is nil when the query completed normally.
	OnQueryFinished(h *models.QueryHandle, err error)
}

// Publisher is the producer side of a [Bus], used by backends.
type Publisher interface {
	Publish(event models.PartialResultEvent)
	Finish(h *models.QueryHandle, err error)
}

type subscription struct {
	id   uint64
	sink Sink
}

// Bus fans events out to subscribed sinks.
type Bus struct {
	mu     sync.RWMutex
	subs   []subscription
	nextID uint64
	logger *log.Logger
}

// NewBus creates an empty bus. A nil logger falls back to a stderr logger.
func NewBus(logger *log.Logger) *Bus {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Bus{logger: shared.WithLogger(logger, "component", "events")}
}

// Subscribe registers sink and returns a func that removes it. The returned func is safe to call more than once.
func (b *Bus) Subscribe(sink Sink) func() {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscription{id: id, sink: sink})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.unsubscribe(id) })
	}
}

func (b *Bus) unsubscribe(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = slices.DeleteFunc(b.subs, func(s subscription) bool { return s.id == id })
}

// Publish delivers event to every current subscriber in subscription order.
func (b *Bus) Publish(event models.PartialResultEvent) {
	subs := b.snapshot()
	b.logger.Debug("publish", "source", event.Source, "category", event.Category, "items", len(event.Items), "sinks", len(subs))
	for _, s := range subs {
		s.sink.OnEvent(event)
	}
}

// Finish delivers the terminal signal for h.
func (b *Bus) Finish(h *models.QueryHandle, err error) {
	subs := b.snapshot()
	if err != nil {
		b.logger.Debug("query failed", "source", h, "err", err)
	} else {
		b.logger.Debug("query finished", "source", h)
	}
	for _, s := range subs {
		s.sink.OnQueryFinished(h, err)
	}
}

// Len returns the number of subscribers.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

func (b *Bus) snapshot() []subscription {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return slices.Clone(b.subs)
}
