// Package offer tracks the delivery-offer lifecycle: a time-boxed proposal
// that a specific driver accept a specific order, driven both by explicit
// console actions and by normalized realtime events.
package offer

import "time"

// Status is the lifecycle state of an offer. The idle state is implicit:
// an order with no entry in the map has no offer in flight.
type Status string

const (
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
	StatusExpired  Status = "expired"
	StatusRejected Status = "rejected"
)

// Terminal reports whether the status ends the offer lifecycle.
func (s Status) Terminal() bool {
	return s == StatusAccepted || s == StatusExpired || s == StatusRejected
}

// Offer is one dispatch offer for an order. Multiple sequential offers may
// target the same order; AttemptID correlates a specific attempt.
type Offer struct {
	OrderID    int64      `json:"order_id"`
	DriverID   int64      `json:"driver_id"`
	Status     Status     `json:"status"`
	AttemptID  string     `json:"attempt_id,omitempty"`
	OfferedAt  *time.Time `json:"offered_at,omitempty"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
	Note       string     `json:"note,omitempty"`
}

// Map holds the offer under active dispatch for each order. Entries are
// created only by an offer-sent action and removed only by a clear action;
// status transitions happen exclusively through the reducer.
type Map map[int64]Offer

// Clone returns a shallow copy of the map. Offers are value types, so the
// copy shares nothing mutable with the original.
func (m Map) Clone() Map {
	next := make(Map, len(m))
	for id, o := range m {
		next[id] = o
	}
	return next
}
