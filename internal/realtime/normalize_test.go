package realtime

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeTypeVariants(t *testing.T) {
	tests := []struct {
		raw  string
		want EventType
	}{
		{"driver_assigned", EventDriverAssigned},
		{"DriverAssigned", EventDriverAssigned},
		{"DRIVER-ASSIGNED", EventDriverAssigned},
		{"driver.assigned", EventDriverAssigned},
		{"driver_offer_expired", EventDriverOfferExpired},
		{"DriverOfferExpired", EventDriverOfferExpired},
		{"OFFER_EXPIRED", EventDriverOfferExpired},
		{"driver_rejected", EventDriverRejected},
		{"Driver Rejected", EventDriverRejected},
		{"order_created", EventUnknown},
		{"", EventUnknown},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeType(tt.raw), "input %q", tt.raw)
	}
}

func TestNormalizeEnvelopes(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Normalized
	}{
		{
			name: "snake case fields",
			raw:  `{"type":"driver_assigned","order_id":7}`,
			want: Normalized{Type: EventDriverAssigned, OrderID: 7},
		},
		{
			name: "camel case fields",
			raw:  `{"eventType":"DriverRejected","orderId":42}`,
			want: Normalized{Type: EventDriverRejected, OrderID: 42},
		},
		{
			name: "string order id",
			raw:  `{"event":"driver_offer_expired","order_id":"19"}`,
			want: Normalized{Type: EventDriverOfferExpired, OrderID: 19},
		},
		{
			name: "order id nested under payload",
			raw:  `{"kind":"driver_assigned","payload":{"order_id":3}}`,
			want: Normalized{Type: EventDriverAssigned, OrderID: 3},
		},
		{
			name: "order object with bare id",
			raw:  `{"type":"driver_assigned","order":{"id":11}}`,
			want: Normalized{Type: EventDriverAssigned, OrderID: 11},
		},
		{
			name: "zero order id yields no match",
			raw:  `{"type":"driver_assigned","order_id":0}`,
			want: Normalized{Type: EventDriverAssigned, OrderID: 0},
		},
		{
			name: "unparsable order id yields no match",
			raw:  `{"type":"driver_assigned","order_id":"abc"}`,
			want: Normalized{Type: EventDriverAssigned, OrderID: 0},
		},
		{
			name: "unknown type",
			raw:  `{"type":"settlement_ready","order_id":5}`,
			want: Normalized{Type: EventUnknown, OrderID: 5},
		},
		{
			name: "malformed json",
			raw:  `not json at all`,
			want: Normalized{},
		},
		{
			name: "empty object",
			raw:  `{}`,
			want: Normalized{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(json.RawMessage(tt.raw)))
		})
	}
}
