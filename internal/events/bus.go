package events

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Handler receives an emitted event. Handlers run synchronously on the
// emitting goroutine, in registration order.
type Handler func(event *Event)

// Unsubscribe removes a registered handler. Safe to call more than once.
type Unsubscribe func()

type subscription struct {
	id      uint64
	handler Handler
}

// Bus is a synchronous in-process pub/sub bus.
//
// Delivery contract: every handler registered for the event's type (plus all
// wildcard handlers) is called synchronously, in registration order, within a
// single Emit call. A panicking handler must not prevent the remaining
// handlers from running; panics are recovered and logged. There is no
// ordering guarantee across independent Emit calls.
type Bus struct {
	mu       sync.RWMutex
	nextID   uint64
	byType   map[EventType][]subscription
	wildcard []subscription
	closed   bool
	log      zerolog.Logger
}

// NewBus creates a new event bus
func NewBus(log zerolog.Logger) *Bus {
	return &Bus{
		byType: make(map[EventType][]subscription),
		log:    log.With().Str("component", "event_bus").Logger(),
	}
}

// Subscribe registers a handler for a single event type and returns an
// unsubscribe function.
func (b *Bus) Subscribe(eventType EventType, handler Handler) Unsubscribe {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	sub := subscription{id: b.nextID, handler: handler}
	b.byType[eventType] = append(b.byType[eventType], sub)

	id := sub.id
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.byType[eventType] = removeSub(b.byType[eventType], id)
	}
}

// SubscribeAll registers a handler for every event type (used by the SSE
// stream handler to fan events out to UI consumers).
func (b *Bus) SubscribeAll(handler Handler) Unsubscribe {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	sub := subscription{id: b.nextID, handler: handler}
	b.wildcard = append(b.wildcard, sub)

	id := sub.id
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.wildcard = removeSub(b.wildcard, id)
	}
}

// Emit builds an event and delivers it synchronously to all matching
// handlers. Emitting on a closed bus is a no-op.
func (b *Bus) Emit(eventType EventType, module string, data EventData) {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return
	}
	subs := make([]subscription, 0, len(b.byType[eventType])+len(b.wildcard))
	subs = append(subs, b.byType[eventType]...)
	subs = append(subs, b.wildcard...)
	b.mu.RUnlock()

	event := &Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Module:    module,
		Data:      data,
	}

	for _, sub := range subs {
		b.deliver(sub, event)
	}
}

// deliver invokes one handler, isolating panics so a failing subscriber
// cannot break the rest of the delivery.
func (b *Bus) deliver(sub subscription, event *Event) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error().
				Interface("panic", r).
				Str("event_type", string(event.Type)).
				Str("module", event.Module).
				Msg("Event handler panicked")
		}
	}()
	sub.handler(event)
}

// Close drops all subscriptions and makes further emits no-ops.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.byType = make(map[EventType][]subscription)
	b.wildcard = nil
}

func removeSub(subs []subscription, id uint64) []subscription {
	for i := range subs {
		if subs[i].id == id {
			return append(subs[:i:i], subs[i+1:]...)
		}
	}
	return subs
}
