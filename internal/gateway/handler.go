package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/dispatchly/opsconsole/internal/authz"
	"github.com/dispatchly/opsconsole/internal/journal"
	"github.com/dispatchly/opsconsole/internal/offer"
)

// HistoryProvider supplies per-order transition history for the console.
type HistoryProvider interface {
	RecentForOrder(ctx context.Context, orderID int64, limit int) ([]journal.Entry, error)
}

// Handler serves the console's offer API and WebSocket endpoint.
type Handler struct {
	store   *offer.Store
	cm      *ConnectionManager
	history HistoryProvider
	clock   clockwork.Clock
}

// NewHandler creates the console HTTP handler. history may be nil when no
// journal is configured.
func NewHandler(store *offer.Store, cm *ConnectionManager, history HistoryProvider, clock clockwork.Clock) *Handler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Handler{store: store, cm: cm, history: history, clock: clock}
}

// HandleSocket upgrades a console client to the realtime feed. The route
// guard has already required a console role; the viewer is read from the
// request context for connection metadata.
func (h *Handler) HandleSocket(w http.ResponseWriter, r *http.Request) {
	viewer := authz.ViewerFrom(r.Context())
	if viewer == nil {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	if err := h.cm.UpgradeConnection(w, r, viewer); err != nil {
		log.Error().
			Err(err).
			Int64("viewer_id", viewer.ID).
			Msg("failed to upgrade console connection")
		http.Error(w, "failed to upgrade connection", http.StatusInternalServerError)
	}
}

// offerView is an offer plus its derived countdown state.
type offerView struct {
	offer.Offer
	RemainingSec int     `json:"remaining_sec"`
	Fraction     float64 `json:"fraction"`
}

func (h *Handler) view(o offer.Offer) offerView {
	v := offerView{Offer: o}
	if o.Status == offer.StatusPending && o.ExpiresAt != nil {
		remaining := offer.Remaining(*o.ExpiresAt, h.clock.Now())
		v.RemainingSec = int(remaining.Round(time.Second) / time.Second)
		v.Fraction = offer.Fraction(remaining, h.store.TTL())
	}
	return v
}

// HandleListOffers returns every offer under active dispatch.
func (h *Handler) HandleListOffers(w http.ResponseWriter, r *http.Request) {
	snap := h.store.Snapshot()
	views := make([]offerView, 0, len(snap))
	for _, o := range snap {
		views = append(views, h.view(o))
	}
	writeJSON(w, http.StatusOK, map[string]any{"offers": views})
}

// HandleGetOffer returns one order's offer with countdown state.
func (h *Handler) HandleGetOffer(w http.ResponseWriter, r *http.Request) {
	orderID, ok := orderIDParam(w, r)
	if !ok {
		return
	}

	o, found := h.store.Get(orderID)
	if !found {
		http.Error(w, "no offer for order", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, h.view(o))
}

// sendOfferRequest is the body for dispatching a new offer.
type sendOfferRequest struct {
	OrderID  int64  `json:"order_id"`
	DriverID int64  `json:"driver_id"`
	Note     string `json:"note"`
}

// HandleSendOffer dispatches a new offer: a fully-formed pending record
// with a fresh attempt id and the configured TTL.
func (h *Handler) HandleSendOffer(w http.ResponseWriter, r *http.Request) {
	var req sendOfferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.OrderID <= 0 || req.DriverID <= 0 {
		http.Error(w, "order_id and driver_id are required", http.StatusBadRequest)
		return
	}

	now := h.clock.Now()
	expiresAt := now.Add(h.store.TTL())
	sent := offer.Offer{
		OrderID:   req.OrderID,
		DriverID:  req.DriverID,
		Status:    offer.StatusPending,
		AttemptID: uuid.New().String(),
		OfferedAt: &now,
		ExpiresAt: &expiresAt,
		Note:      req.Note,
	}

	h.store.Dispatch(offer.Action{Kind: offer.ActionOfferSent, Offer: sent})

	log.Info().
		Int64("order_id", req.OrderID).
		Int64("driver_id", req.DriverID).
		Str("attempt_id", sent.AttemptID).
		Msg("offer dispatched")

	writeJSON(w, http.StatusCreated, h.view(sent))
}

// HandleClearOffer removes an order from active dispatch.
func (h *Handler) HandleClearOffer(w http.ResponseWriter, r *http.Request) {
	orderID, ok := orderIDParam(w, r)
	if !ok {
		return
	}

	h.store.Dispatch(offer.Action{Kind: offer.ActionClearOffer, OrderID: orderID})
	w.WriteHeader(http.StatusNoContent)
}

// HandleOfferHistory returns the journaled transitions for an order.
func (h *Handler) HandleOfferHistory(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		http.Error(w, "history not configured", http.StatusNotImplemented)
		return
	}

	orderID, ok := orderIDParam(w, r)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := h.history.RecentForOrder(r.Context(), orderID, limit)
	if err != nil {
		log.Error().Err(err).Int64("order_id", orderID).Msg("failed to load offer history")
		http.Error(w, "failed to load history", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": entries})
}

// HandleSession returns the current viewer and their landing dashboard.
func (h *Handler) HandleSession(w http.ResponseWriter, r *http.Request) {
	viewer := authz.ViewerFrom(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"viewer":  viewer,
		"landing": authz.LandingPath(viewer),
	})
}

// HandleStats returns connection statistics.
func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.cm.Stats())
}

func orderIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	orderID, err := strconv.ParseInt(chi.URLParam(r, "orderID"), 10, 64)
	if err != nil || orderID <= 0 {
		http.Error(w, "invalid order id", http.StatusBadRequest)
		return 0, false
	}
	return orderID, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to write JSON response")
	}
}
