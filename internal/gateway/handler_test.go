package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dispatchly/opsconsole/internal/authz"
	"github.com/dispatchly/opsconsole/internal/journal"
	"github.com/dispatchly/opsconsole/internal/offer"
)

type historyStub struct {
	entries []journal.Entry
	err     error
}

func (h *historyStub) RecentForOrder(_ context.Context, orderID int64, limit int) ([]journal.Entry, error) {
	return h.entries, h.err
}

func opsViewer() *authz.Viewer {
	return &authz.Viewer{ID: 9, Name: "dispatcher", Roles: []authz.Role{authz.RoleOps}}
}

func newTestHandler(t *testing.T, history HistoryProvider) (*Handler, *offer.Store, clockwork.Clock) {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC))
	store := offer.NewStore(offer.StoreConfig{Clock: clock, TTL: 30 * time.Second})
	store.Start(context.Background())
	cm := NewConnectionManager(DefaultConnectionConfig())
	return NewHandler(store, cm, history, clock), store, clock
}

func testRouter(h *Handler, v *authz.Viewer) http.Handler {
	guard := authz.NewGuard(func(*http.Request) *authz.Viewer { return v })
	r := chi.NewRouter()
	r.Use(guard.WithViewer)
	r.Get("/api/session", h.HandleSession)
	r.Route("/api/offers", func(r chi.Router) {
		r.Use(guard.RequireRoles(authz.RoleSystem, authz.RoleAdmin, authz.RoleOps, authz.RoleFleetAdmin, authz.RoleDispatcher))
		r.Get("/", h.HandleListOffers)
		r.Post("/", h.HandleSendOffer)
		r.Get("/{orderID}", h.HandleGetOffer)
		r.Post("/{orderID}/clear", h.HandleClearOffer)
		r.Get("/{orderID}/history", h.HandleOfferHistory)
	})
	return r
}

func TestHandleSendOfferCreatesPendingOffer(t *testing.T) {
	h, store, _ := newTestHandler(t, nil)
	router := testRouter(h, opsViewer())

	body := bytes.NewBufferString(`{"order_id":17,"driver_id":4,"note":"rush order"}`)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/offers", body))

	require.Equal(t, http.StatusCreated, rec.Code)

	var got offerView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, offer.StatusPending, got.Status)
	assert.Equal(t, int64(4), got.DriverID)
	assert.NotEmpty(t, got.AttemptID)
	assert.Equal(t, 30, got.RemainingSec)
	assert.Equal(t, 1.0, got.Fraction)

	stored, ok := store.Get(17)
	require.True(t, ok)
	assert.Equal(t, offer.StatusPending, stored.Status)
}

func TestHandleSendOfferValidation(t *testing.T) {
	h, _, _ := newTestHandler(t, nil)
	router := testRouter(h, opsViewer())

	for _, body := range []string{`{}`, `{"order_id":1}`, `{"driver_id":1}`, `not json`} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/offers", bytes.NewBufferString(body)))
		assert.Equal(t, http.StatusBadRequest, rec.Code, "body %q", body)
	}
}

func TestHandleGetOffer(t *testing.T) {
	h, store, clock := newTestHandler(t, nil)
	router := testRouter(h, opsViewer())

	now := clock.Now()
	expiresAt := now.Add(15 * time.Second)
	store.Dispatch(offer.Action{Kind: offer.ActionOfferSent, Offer: offer.Offer{
		OrderID:   5,
		DriverID:  2,
		Status:    offer.StatusPending,
		OfferedAt: &now,
		ExpiresAt: &expiresAt,
	}})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/offers/5", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var got offerView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, 15, got.RemainingSec)
	assert.Equal(t, 0.5, got.Fraction)
}

func TestHandleGetOfferNotFound(t *testing.T) {
	h, _, _ := newTestHandler(t, nil)
	router := testRouter(h, opsViewer())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/offers/99", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/offers/zero", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleClearOffer(t *testing.T) {
	h, store, clock := newTestHandler(t, nil)
	router := testRouter(h, opsViewer())

	now := clock.Now()
	store.Dispatch(offer.Action{Kind: offer.ActionOfferSent, Offer: offer.Offer{
		OrderID: 5, DriverID: 2, Status: offer.StatusPending, OfferedAt: &now,
	}})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/offers/5/clear", nil))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	_, ok := store.Get(5)
	assert.False(t, ok)
}

func TestHandleOfferHistory(t *testing.T) {
	occurred := time.Date(2026, 3, 14, 11, 59, 0, 0, time.UTC)
	history := &historyStub{entries: []journal.Entry{{
		OrderID: 5, DriverID: 2, Status: offer.StatusExpired, OccurredAt: occurred,
	}}}

	h, _, _ := newTestHandler(t, history)
	router := testRouter(h, opsViewer())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/offers/5/history", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var got struct {
		Events []journal.Entry `json:"events"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got.Events, 1)
	assert.Equal(t, offer.StatusExpired, got.Events[0].Status)
}

func TestHandleOfferHistoryWithoutJournal(t *testing.T) {
	h, _, _ := newTestHandler(t, nil)
	router := testRouter(h, opsViewer())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/offers/5/history", nil))
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestHandleSessionReturnsLanding(t *testing.T) {
	h, _, _ := newTestHandler(t, nil)
	router := testRouter(h, &authz.Viewer{ID: 1, Roles: []authz.Role{authz.RoleAdmin, authz.RoleOps}})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/session", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var got struct {
		Landing string `json:"landing"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, authz.PathAdmin, got.Landing)
}

func TestOfferRoutesRequireConsoleRole(t *testing.T) {
	h, _, _ := newTestHandler(t, nil)

	t.Run("merchant is redirected to unauthorized", func(t *testing.T) {
		router := testRouter(h, &authz.Viewer{ID: 2, Roles: []authz.Role{authz.RoleMerchant}})
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/offers", nil))
		require.Equal(t, http.StatusFound, rec.Code)
		assert.Equal(t, authz.UnauthorizedPath, rec.Header().Get("Location"))
	})

	t.Run("anonymous is redirected to login", func(t *testing.T) {
		router := testRouter(h, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/offers", nil))
		require.Equal(t, http.StatusFound, rec.Code)
		assert.Contains(t, rec.Header().Get("Location"), authz.LoginPath)
	})
}
