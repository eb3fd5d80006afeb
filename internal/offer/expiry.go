package offer

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// expiryScheduler arms one one-shot timer per pending offer and fires the
// expire callback when the deadline passes. Local expiry races benignly
// with the server's driver_offer_expired push: both route through the
// same reducer transition, and re-applying a terminal overwrite is
// harmless.
type expiryScheduler struct {
	clock clockwork.Clock
	fire  func(orderID int64)

	mu     sync.Mutex
	timers map[int64]clockwork.Timer
}

func newExpiryScheduler(clock clockwork.Clock, fire func(orderID int64)) *expiryScheduler {
	return &expiryScheduler{
		clock:  clock,
		fire:   fire,
		timers: make(map[int64]clockwork.Timer),
	}
}

// schedule arms a timer for the order's deadline, replacing any existing
// one. A deadline already in the past fires immediately.
func (e *expiryScheduler) schedule(ctx context.Context, orderID int64, expiresAt time.Time) {
	duration := expiresAt.Sub(e.clock.Now())
	if duration < 0 {
		duration = 0
	}

	timer := e.clock.NewTimer(duration)
	e.replaceTimer(orderID, timer)

	go func() {
		select {
		case <-timer.Chan():
			e.removeTimer(orderID)
			log.Debug().Int64("order_id", orderID).Msg("offer expiry timer fired")
			e.fire(orderID)
		case <-ctx.Done():
			stopAndDrainTimer(timer)
			e.removeTimer(orderID)
		}
	}()

	log.Debug().
		Int64("order_id", orderID).
		Time("deadline", expiresAt).
		Dur("duration", duration).
		Msg("scheduled offer expiry timer")
}

// cancel stops and removes the timer for an order, if armed.
func (e *expiryScheduler) cancel(orderID int64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if timer, ok := e.timers[orderID]; ok {
		stopAndDrainTimer(timer)
		delete(e.timers, orderID)
		log.Debug().Int64("order_id", orderID).Msg("cancelled offer expiry timer")
	}
}

// replaceTimer atomically swaps in a new timer, stopping any existing one
// so a stale timer cannot fire for a re-sent offer.
func (e *expiryScheduler) replaceTimer(orderID int64, newTimer clockwork.Timer) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if existing, ok := e.timers[orderID]; ok {
		stopAndDrainTimer(existing)
	}
	e.timers[orderID] = newTimer
}

func (e *expiryScheduler) removeTimer(orderID int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.timers, orderID)
}

// stopAndDrainTimer stops a timer and drains its channel if it already
// fired, following the time.Timer.Stop documentation pattern.
func stopAndDrainTimer(timer clockwork.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.Chan():
		default:
		}
	}
}
