package offer

import (
	"encoding/json"
	"time"

	"github.com/dispatchly/opsconsole/internal/realtime"
)

// ActionKind discriminates reducer actions.
type ActionKind string

const (
	// ActionOfferSent inserts or fully replaces the offer record for an
	// order. It is the only action that may create an entry.
	ActionOfferSent ActionKind = "offer_sent"
	// ActionOfferAccepted, ActionOfferExpired and ActionOfferRejected
	// resolve an existing offer. They are no-ops when the order has no
	// entry: an offer that was never sent cannot be resolved.
	ActionOfferAccepted ActionKind = "offer_accepted"
	ActionOfferExpired  ActionKind = "offer_expired"
	ActionOfferRejected ActionKind = "offer_rejected"
	// ActionClearOffer removes the entry for an order, if any.
	ActionClearOffer ActionKind = "clear_offer"
	// ActionRealtimeEvent normalizes an opaque transport envelope and
	// delegates to the matching resolve action, so a single code path
	// enforces "must already be sent" regardless of trigger source.
	ActionRealtimeEvent ActionKind = "realtime_event"
)

// Action is one reducer input. Fields are used per kind: Offer for
// offer-sent, Raw for realtime events, OrderID plus the optional
// DriverID/AttemptID overrides for the resolve kinds. Now stamps
// ResolvedAt on terminal transitions; the reducer itself never reads the
// wall clock.
type Action struct {
	Kind      ActionKind
	Offer     Offer
	OrderID   int64
	DriverID  int64
	AttemptID string
	Note      string
	Now       time.Time
	Raw       json.RawMessage
}

// Policy configures reducer behavior left open by the product: whether a
// late-arriving duplicate event may overwrite an offer that already
// reached a terminal status. The permissive default matches the deployed
// console ("late accept wins"); LockTerminal hardens transitions to fire
// only out of pending.
type Policy struct {
	LockTerminal bool
}

// Reduce applies an action under the default permissive policy.
func Reduce(m Map, a Action) Map {
	return Policy{}.Reduce(m, a)
}

// Reduce applies an action to the offer map and returns the resulting
// map. It is pure and total: no I/O, no clock, no error paths. Mutating
// actions return a fresh map; every no-op path returns the input map
// unchanged so callers can detect changes by reference.
func (p Policy) Reduce(m Map, a Action) Map {
	switch a.Kind {
	case ActionOfferSent:
		// Full replace, not a merge. The caller supplies the complete
		// record, status included.
		next := m.Clone()
		next[a.Offer.OrderID] = a.Offer
		return next

	case ActionOfferAccepted:
		return p.resolve(m, a, StatusAccepted)

	case ActionOfferExpired:
		return p.resolve(m, a, StatusExpired)

	case ActionOfferRejected:
		return p.resolve(m, a, StatusRejected)

	case ActionClearOffer:
		if _, ok := m[a.OrderID]; !ok {
			return m
		}
		next := m.Clone()
		delete(next, a.OrderID)
		return next

	case ActionRealtimeEvent:
		norm := realtime.Normalize(a.Raw)
		if norm.OrderID <= 0 {
			return m
		}
		kind, ok := actionForEvent(norm.Type)
		if !ok {
			return m
		}
		return p.Reduce(m, Action{
			Kind:    kind,
			OrderID: norm.OrderID,
			Now:     a.Now,
		})

	default:
		return m
	}
}

func (p Policy) resolve(m Map, a Action, status Status) Map {
	cur, ok := m[a.OrderID]
	if !ok {
		return m
	}
	if p.LockTerminal && cur.Status.Terminal() {
		return m
	}

	cur.Status = status
	resolvedAt := a.Now
	cur.ResolvedAt = &resolvedAt
	if a.DriverID != 0 {
		cur.DriverID = a.DriverID
	}
	if a.AttemptID != "" {
		cur.AttemptID = a.AttemptID
	}
	if a.Note != "" {
		cur.Note = a.Note
	}

	next := m.Clone()
	next[a.OrderID] = cur
	return next
}

// actionForEvent maps a canonical realtime event type to the resolve
// action it drives.
func actionForEvent(t realtime.EventType) (ActionKind, bool) {
	switch t {
	case realtime.EventDriverAssigned:
		return ActionOfferAccepted, true
	case realtime.EventDriverOfferExpired:
		return ActionOfferExpired, true
	case realtime.EventDriverRejected:
		return ActionOfferRejected, true
	default:
		return "", false
	}
}
