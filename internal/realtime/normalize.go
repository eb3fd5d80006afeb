package realtime

import (
	"encoding/json"
	"strconv"
	"strings"
)

// EventType is a canonical realtime event kind after normalization.
type EventType string

const (
	EventDriverAssigned     EventType = "driver_assigned"
	EventDriverOfferExpired EventType = "driver_offer_expired"
	EventDriverRejected     EventType = "driver_rejected"
	EventUnknown            EventType = ""
)

// Normalized is the canonical {type, orderId} pair extracted from an
// opaque envelope. OrderID is zero when no numeric order id was found.
type Normalized struct {
	Type    EventType
	OrderID int64
}

// typeKeys are the field names producers use for the event discriminator.
var typeKeys = []string{"type", "event_type", "eventType", "event", "kind"}

// orderKeys are the field names producers use for the order identifier.
var orderKeys = []string{"order_id", "orderId", "orderID", "OrderID", "order_no"}

// nestedKeys are container fields whose object value may hold the order id.
var nestedKeys = []string{"data", "payload", "order"}

// canonicalTypes maps squashed type strings (lowercased, separators
// removed) to canonical event types, so "DriverAssigned", "DRIVER-ASSIGNED"
// and "driver_assigned" all resolve identically.
var canonicalTypes = map[string]EventType{
	"driverassigned":     EventDriverAssigned,
	"driverofferexpired": EventDriverOfferExpired,
	"offerexpired":       EventDriverOfferExpired,
	"driverrejected":     EventDriverRejected,
}

// Normalize extracts the canonical event type and order id from a raw
// envelope. It is total: malformed or unrecognized input yields
// {EventUnknown, 0}, never an error.
func Normalize(raw Envelope) Normalized {
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return Normalized{}
	}
	return Normalized{
		Type:    normalizeType(fields),
		OrderID: extractOrderID(fields, true),
	}
}

// NormalizeType resolves a producer-supplied type string to a canonical
// event type, tolerating case and separator variance.
func NormalizeType(s string) EventType {
	squashed := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		default:
			return -1
		}
	}, s)
	return canonicalTypes[squashed]
}

func normalizeType(fields map[string]any) EventType {
	for _, key := range typeKeys {
		if s, ok := fields[key].(string); ok {
			if t := NormalizeType(s); t != EventUnknown {
				return t
			}
		}
	}
	return EventUnknown
}

// extractOrderID looks for a numeric order id under the known field names,
// descending one level into container objects when allowed.
func extractOrderID(fields map[string]any, descend bool) int64 {
	for _, key := range orderKeys {
		if id := coerceID(fields[key]); id > 0 {
			return id
		}
	}
	if descend {
		for _, key := range nestedKeys {
			if nested, ok := fields[key].(map[string]any); ok {
				if id := extractOrderID(nested, false); id > 0 {
					return id
				}
				// An order object may carry the id under a bare "id".
				if key == "order" {
					if id := coerceID(nested["id"]); id > 0 {
						return id
					}
				}
			}
		}
	}
	return 0
}

// coerceID converts a JSON value to a positive order id, or 0.
func coerceID(v any) int64 {
	switch n := v.(type) {
	case float64:
		id := int64(n)
		if float64(id) == n && id > 0 {
			return id
		}
	case string:
		if id, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64); err == nil && id > 0 {
			return id
		}
	case json.Number:
		if id, err := n.Int64(); err == nil && id > 0 {
			return id
		}
	}
	return 0
}
