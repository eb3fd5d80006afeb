package realtime

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog/log"
)

// Envelope is an opaque realtime event as received from the transport.
// Shape varies by producer; only the normalizer interprets it.
type Envelope = json.RawMessage

// Handler is a subscriber callback.
type Handler func(Envelope)

// Bus is a process-wide publish/subscribe channel between the realtime
// transport and any number of consumers. Delivery is synchronous on the
// publishing goroutine; order across subscribers is unspecified. Events
// published with no subscribers are dropped — there is no buffering or
// replay.
//
// The bus is a plain injected value, not module-level state, so tests and
// composition roots construct isolated instances.
type Bus struct {
	mu       sync.RWMutex
	handlers map[uint64]Handler
	nextID   uint64
}

// NewBus creates an empty event bus.
func NewBus() *Bus {
	return &Bus{handlers: make(map[uint64]Handler)}
}

// Subscribe registers a handler and returns its disposer. Calling the
// disposer more than once is a no-op.
func (b *Bus) Subscribe(fn Handler) (unsubscribe func()) {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.handlers[id] = fn
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.handlers, id)
		b.mu.Unlock()
	}
}

// Publish delivers the envelope to every currently registered subscriber.
// A panicking subscriber is logged and skipped; it never blocks delivery
// to the rest or propagates to the publisher.
func (b *Bus) Publish(evt Envelope) {
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.handlers))
	for _, fn := range b.handlers {
		handlers = append(handlers, fn)
	}
	b.mu.RUnlock()

	for _, fn := range handlers {
		b.deliver(fn, evt)
	}
}

func (b *Bus) deliver(fn Handler, evt Envelope) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("event subscriber panicked")
		}
	}()
	fn(evt)
}

// SubscriberCount reports the number of live subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers)
}
