package offer

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func pendingOffer(orderID, driverID int64) Offer {
	offeredAt := testNow.Add(-5 * time.Second)
	expiresAt := testNow.Add(25 * time.Second)
	return Offer{
		OrderID:   orderID,
		DriverID:  driverID,
		Status:    StatusPending,
		OfferedAt: &offeredAt,
		ExpiresAt: &expiresAt,
	}
}

func TestReduceOfferSentInsertsFullRecord(t *testing.T) {
	sent := pendingOffer(1, 2)
	sent.AttemptID = "attempt-1"

	got := Reduce(Map{}, Action{Kind: ActionOfferSent, Offer: sent})

	require.Len(t, got, 1)
	assert.Equal(t, sent, got[1])
	assert.Equal(t, int64(2), got[1].DriverID)
}

func TestReduceOfferSentReplacesNotMerges(t *testing.T) {
	first := pendingOffer(1, 2)
	first.Note = "first attempt"
	m := Reduce(Map{}, Action{Kind: ActionOfferSent, Offer: first})

	second := pendingOffer(1, 9)
	got := Reduce(m, Action{Kind: ActionOfferSent, Offer: second})

	require.Len(t, got, 1)
	assert.Equal(t, int64(9), got[1].DriverID)
	assert.Empty(t, got[1].Note, "replace must not carry fields over from the previous record")
}

func TestReduceResolveOnMissingEntryIsNoop(t *testing.T) {
	m := Map{1: pendingOffer(1, 2)}

	for _, kind := range []ActionKind{ActionOfferAccepted, ActionOfferExpired, ActionOfferRejected} {
		got := Reduce(m, Action{Kind: kind, OrderID: 99, Now: testNow})
		assert.Equal(t, m, got, "%s on absent order must not change the map", kind)
	}
}

func TestReduceNoopReturnsSameMapReference(t *testing.T) {
	m := Map{1: pendingOffer(1, 2)}

	got := Reduce(m, Action{Kind: ActionOfferAccepted, OrderID: 99, Now: testNow})
	// Add through one map; both must observe it if they are the same map.
	got[42] = pendingOffer(42, 1)
	_, ok := m[42]
	assert.True(t, ok, "no-op path must return the input map, not a copy")
}

func TestReduceTerminalTransitionSetsResolvedAt(t *testing.T) {
	m := Map{1: pendingOffer(1, 2)}

	got := Reduce(m, Action{Kind: ActionOfferExpired, OrderID: 1, Now: testNow})

	require.Contains(t, got, int64(1))
	assert.Equal(t, StatusExpired, got[1].Status)
	require.NotNil(t, got[1].ResolvedAt)
	assert.Equal(t, testNow, *got[1].ResolvedAt)

	// The input map is untouched.
	assert.Equal(t, StatusPending, m[1].Status)
	assert.Nil(t, m[1].ResolvedAt)
}

func TestReduceResolveKeepsDriverUnlessProvided(t *testing.T) {
	m := Map{1: pendingOffer(1, 2)}

	kept := Reduce(m, Action{Kind: ActionOfferAccepted, OrderID: 1, Now: testNow})
	assert.Equal(t, int64(2), kept[1].DriverID)

	overridden := Reduce(m, Action{
		Kind:      ActionOfferAccepted,
		OrderID:   1,
		DriverID:  7,
		AttemptID: "attempt-2",
		Now:       testNow,
	})
	assert.Equal(t, int64(7), overridden[1].DriverID)
	assert.Equal(t, "attempt-2", overridden[1].AttemptID)
}

func TestReduceClearOffer(t *testing.T) {
	m := Map{1: pendingOffer(1, 2), 2: pendingOffer(2, 3)}

	got := Reduce(m, Action{Kind: ActionClearOffer, OrderID: 1})
	assert.NotContains(t, got, int64(1))
	assert.Contains(t, got, int64(2))

	// Clearing an absent order is a no-op.
	same := Reduce(got, Action{Kind: ActionClearOffer, OrderID: 99})
	assert.Equal(t, got, same)
}

func TestReduceRealtimeEventDrivesNamedTransition(t *testing.T) {
	m := Map{7: pendingOffer(7, 3)}

	viaEvent := Reduce(m, Action{
		Kind: ActionRealtimeEvent,
		Raw:  json.RawMessage(`{"type":"DriverAssigned","orderId":7}`),
		Now:  testNow,
	})
	viaAction := Reduce(m, Action{Kind: ActionOfferAccepted, OrderID: 7, Now: testNow})

	assert.Equal(t, viaAction, viaEvent, "a normalized event must drive the same transition as the explicit action")
	assert.Equal(t, StatusAccepted, viaEvent[7].Status)
}

func TestReduceRealtimeEventNoops(t *testing.T) {
	m := Map{7: pendingOffer(7, 3)}

	tests := []struct {
		name string
		raw  string
	}{
		{"zero order id", `{"type":"driver_assigned","order_id":0}`},
		{"unparsable order id", `{"type":"driver_assigned","order_id":"nope"}`},
		{"unmapped event type", `{"type":"order_created","order_id":7}`},
		{"event cannot fabricate a phantom offer", `{"type":"driver_assigned","order_id":99}`},
		{"malformed envelope", `garbage`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Reduce(m, Action{Kind: ActionRealtimeEvent, Raw: json.RawMessage(tt.raw), Now: testNow})
			assert.Equal(t, m, got)
		})
	}
}

func TestReducePolicyLockTerminal(t *testing.T) {
	expired := pendingOffer(1, 2)
	expired.Status = StatusExpired
	resolvedAt := testNow.Add(-time.Second)
	expired.ResolvedAt = &resolvedAt
	m := Map{1: expired}

	// Permissive default: a late accept overwrites the expired offer.
	permissive := Policy{}.Reduce(m, Action{Kind: ActionOfferAccepted, OrderID: 1, Now: testNow})
	assert.Equal(t, StatusAccepted, permissive[1].Status)

	// Locked: transitions only fire out of pending.
	locked := Policy{LockTerminal: true}.Reduce(m, Action{Kind: ActionOfferAccepted, OrderID: 1, Now: testNow})
	assert.Equal(t, StatusExpired, locked[1].Status)
	assert.Equal(t, resolvedAt, *locked[1].ResolvedAt)
}
