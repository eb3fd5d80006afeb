package gateway

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/dispatchly/opsconsole/internal/offer"
)

// ConsoleEvent is the envelope pushed to connected console clients.
type ConsoleEvent struct {
	ID        string          `json:"id"`
	Type      EventType       `json:"type"`
	OrderID   int64           `json:"order_id,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// EventType is the kind of console event.
type EventType string

const (
	EventOfferUpdate  EventType = "OfferUpdate"
	EventOfferCleared EventType = "OfferCleared"
	EventTimerTick    EventType = "TimerTick"
)

// NewOfferUpdateEvent wraps an offer transition for broadcast.
func NewOfferUpdateEvent(o offer.Offer) *ConsoleEvent {
	data, _ := json.Marshal(o)
	return &ConsoleEvent{
		ID:        uuid.New().String(),
		Type:      EventOfferUpdate,
		OrderID:   o.OrderID,
		Timestamp: time.Now(),
		Data:      data,
	}
}

// NewOfferClearedEvent announces that an order left active dispatch.
func NewOfferClearedEvent(orderID int64) *ConsoleEvent {
	return &ConsoleEvent{
		ID:        uuid.New().String(),
		Type:      EventOfferCleared,
		OrderID:   orderID,
		Timestamp: time.Now(),
	}
}

// NewTimerTickEvent wraps a countdown sample. Clients render the bar from
// the fraction; the server-side expiry stays authoritative.
func NewTimerTickEvent(t offer.Tick) *ConsoleEvent {
	data, _ := json.Marshal(t)
	return &ConsoleEvent{
		ID:        uuid.New().String(),
		Type:      EventTimerTick,
		OrderID:   t.OrderID,
		Timestamp: time.Now(),
		Data:      data,
	}
}
