package offer

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/dispatchly/opsconsole/internal/realtime"
)

// Recorder persists offer transitions for the console's history views.
type Recorder interface {
	Record(ctx context.Context, o Offer) error
}

// Change describes one offer map update observed through the store.
type Change struct {
	OrderID int64
	Offer   Offer
	Cleared bool
}

// StoreConfig configures a Store. Zero values fall back to the default
// policy, real clock, and default TTL/tick interval.
type StoreConfig struct {
	Policy       Policy
	Clock        clockwork.Clock
	TTL          time.Duration
	TickInterval time.Duration
	Recorder     Recorder
}

// Store owns the offer map. Every update goes through Dispatch, which
// serializes actions onto the pure reducer; no consumer mutates an entry
// directly. The store also arms local expiry timers for pending offers,
// runs their countdown tickers, notifies change listeners, and records
// transitions to the journal.
type Store struct {
	policy    Policy
	clock     clockwork.Clock
	countdown *Countdown
	expiry    *expiryScheduler
	recorder  Recorder

	mu     sync.Mutex
	offers Map

	ctx      context.Context
	watchers map[int64]context.CancelFunc

	listenerMu sync.RWMutex
	changeFns  []func(Change)
	tickFns    []func(Tick)
}

// NewStore creates an offer store.
func NewStore(cfg StoreConfig) *Store {
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	s := &Store{
		policy:    cfg.Policy,
		clock:     cfg.Clock,
		countdown: NewCountdown(cfg.Clock, cfg.TickInterval, cfg.TTL),
		recorder:  cfg.Recorder,
		offers:    make(Map),
		ctx:       context.Background(),
		watchers:  make(map[int64]context.CancelFunc),
	}
	s.expiry = newExpiryScheduler(cfg.Clock, s.expireLocally)
	return s
}

// Start binds the store's timers and tickers to ctx. Cancelling the
// context stops every armed timer and running countdown.
func (s *Store) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()
}

// OnChange registers a listener for offer map updates.
func (s *Store) OnChange(fn func(Change)) {
	s.listenerMu.Lock()
	s.changeFns = append(s.changeFns, fn)
	s.listenerMu.Unlock()
}

// OnTick registers a listener for countdown samples of pending offers.
func (s *Store) OnTick(fn func(Tick)) {
	s.listenerMu.Lock()
	s.tickFns = append(s.tickFns, fn)
	s.listenerMu.Unlock()
}

// BindBus subscribes the store to a realtime bus so transport envelopes
// drive the reducer. The returned disposer detaches it again.
func (s *Store) BindBus(bus *realtime.Bus) func() {
	return bus.Subscribe(func(evt realtime.Envelope) {
		s.Dispatch(Action{Kind: ActionRealtimeEvent, Raw: evt})
	})
}

// TTL returns the configured offer window.
func (s *Store) TTL() time.Duration { return s.countdown.TTL() }

// Get returns the offer for an order, if one is tracked.
func (s *Store) Get(orderID int64) (Offer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.offers[orderID]
	return o, ok
}

// Snapshot returns a copy of the current offer map.
func (s *Store) Snapshot() Map {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.offers.Clone()
}

// Dispatch applies an action through the reducer and runs the resulting
// side effects: timer scheduling, listener notification, journaling. It
// is safe for concurrent use; actions are applied one at a time.
func (s *Store) Dispatch(a Action) {
	if a.Now.IsZero() {
		a.Now = s.clock.Now()
	}

	s.mu.Lock()
	prev := s.offers
	next := s.policy.Reduce(prev, a)
	s.offers = next

	id := affectedOrder(a)
	prevOffer, hadPrev := prev[id]
	nextOffer, hasNext := next[id]
	changed := hadPrev != hasNext || prevOffer != nextOffer
	ctx := s.ctx
	s.mu.Unlock()

	if id <= 0 || !changed {
		return
	}

	if !hasNext {
		s.expiry.cancel(id)
		s.stopWatcher(id)
		log.Debug().Int64("order_id", id).Msg("offer cleared")
		s.notifyChange(Change{OrderID: id, Cleared: true})
		return
	}

	if nextOffer.Status == StatusPending && nextOffer.ExpiresAt != nil {
		s.expiry.schedule(ctx, id, *nextOffer.ExpiresAt)
		s.startWatcher(ctx, id, *nextOffer.ExpiresAt)
	} else {
		s.expiry.cancel(id)
		s.stopWatcher(id)
	}

	log.Info().
		Int64("order_id", id).
		Int64("driver_id", nextOffer.DriverID).
		Str("status", string(nextOffer.Status)).
		Str("attempt_id", nextOffer.AttemptID).
		Msg("offer transition")

	s.notifyChange(Change{OrderID: id, Offer: nextOffer})
	s.record(nextOffer)
}

// affectedOrder returns the order an action targets, or 0 when it targets
// nothing resolvable.
func affectedOrder(a Action) int64 {
	switch a.Kind {
	case ActionOfferSent:
		return a.Offer.OrderID
	case ActionRealtimeEvent:
		return realtime.Normalize(a.Raw).OrderID
	default:
		return a.OrderID
	}
}

// expireLocally is the expiry scheduler's fire callback. The resulting
// action may race a server-pushed expiry event; both resolve through the
// same transition, so the duplicate is harmless.
func (s *Store) expireLocally(orderID int64) {
	s.Dispatch(Action{Kind: ActionOfferExpired, OrderID: orderID})
}

func (s *Store) startWatcher(ctx context.Context, orderID int64, expiresAt time.Time) {
	s.listenerMu.RLock()
	hasTickListeners := len(s.tickFns) > 0
	s.listenerMu.RUnlock()
	if !hasTickListeners {
		return
	}

	s.stopWatcher(orderID)

	wctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.watchers[orderID] = cancel
	s.mu.Unlock()

	go s.countdown.Watch(wctx, orderID, expiresAt, s.notifyTick)
}

func (s *Store) stopWatcher(orderID int64) {
	s.mu.Lock()
	cancel, ok := s.watchers[orderID]
	if ok {
		delete(s.watchers, orderID)
	}
	s.mu.Unlock()
	if ok {
		cancel()
	}
}

func (s *Store) notifyChange(c Change) {
	s.listenerMu.RLock()
	fns := make([]func(Change), len(s.changeFns))
	copy(fns, s.changeFns)
	s.listenerMu.RUnlock()
	for _, fn := range fns {
		fn(c)
	}
}

func (s *Store) notifyTick(t Tick) {
	s.listenerMu.RLock()
	fns := make([]func(Tick), len(s.tickFns))
	copy(fns, s.tickFns)
	s.listenerMu.RUnlock()
	for _, fn := range fns {
		fn(t)
	}
}

func (s *Store) record(o Offer) {
	if s.recorder == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.recorder.Record(ctx, o); err != nil {
			log.Error().Err(err).Int64("order_id", o.OrderID).Msg("failed to journal offer transition")
		}
	}()
}
