package main

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/dispatchly/opsconsole/internal/authz"
	"github.com/dispatchly/opsconsole/internal/config"
	"github.com/dispatchly/opsconsole/internal/gateway"
	"github.com/dispatchly/opsconsole/internal/journal"
	"github.com/dispatchly/opsconsole/internal/offer"
	"github.com/dispatchly/opsconsole/internal/realtime"
)

// Services holds the wired application components.
type Services struct {
	Bus     *realtime.Bus
	Store   *offer.Store
	Gateway *gateway.Service
	Handler *gateway.Handler
	Guard   *authz.Guard
	Journal *journal.Journal
}

func setupServices(ctx context.Context, cfg *config.Config) (*Services, error) {
	clock := clockwork.NewRealClock()
	bus := realtime.NewBus()

	// Optional journal: the console runs without history when no DSN is
	// configured.
	var jrnl *journal.Journal
	var recorder offer.Recorder
	var history gateway.HistoryProvider
	if cfg.DatabaseDSN != "" {
		j, err := journal.New(ctx, cfg.DatabaseDSN)
		if err != nil {
			return nil, err
		}
		jrnl = j
		recorder = j
		history = j
	} else {
		log.Warn().Msg("no database configured, offer history disabled")
	}

	store := offer.NewStore(offer.StoreConfig{
		Policy:       offer.Policy{LockTerminal: cfg.LockTerminalOffers},
		Clock:        clock,
		TTL:          cfg.OfferTTL,
		TickInterval: cfg.TickInterval,
		Recorder:     recorder,
	})

	gatewayConfig := gateway.Config{
		ConnectionConfig: gateway.DefaultConnectionConfig(),
		JetStreamConfig: gateway.JetStreamConsumerConfig{
			URL:           cfg.NATSURL,
			StreamName:    cfg.StreamName,
			ConsumerName:  cfg.ConsumerName,
			SubjectFilter: cfg.SubjectFilter,
			MaxDeliver:    5,
			AckWait:       gateway.DefaultJetStreamConsumerConfig().AckWait,
			MaxAckPending: 100,
			MaxReconnects: -1,
			ReconnectWait: gateway.DefaultJetStreamConsumerConfig().ReconnectWait,
		},
	}

	gatewayService, err := gateway.NewService(gatewayConfig, bus, store)
	if err != nil {
		if jrnl != nil {
			jrnl.Close()
		}
		return nil, err
	}

	handler := gateway.NewHandler(store, gatewayService.ConnectionManager(), history, clock)
	guard := authz.NewGuard(viewerFromHeaders)

	return &Services{
		Bus:     bus,
		Store:   store,
		Gateway: gatewayService,
		Handler: handler,
		Guard:   guard,
		Journal: jrnl,
	}, nil
}

// viewerFromHeaders trusts the identity headers set by the auth proxy in
// front of the console. Session validation and role assignment live in
// the auth service; by the time a request reaches this process the
// headers are authoritative.
func viewerFromHeaders(r *http.Request) *authz.Viewer {
	id, err := strconv.ParseInt(r.Header.Get("X-Viewer-Id"), 10, 64)
	if err != nil || id <= 0 {
		return nil
	}

	var roles []authz.Role
	for _, raw := range strings.Split(r.Header.Get("X-Viewer-Roles"), ",") {
		if role := strings.TrimSpace(raw); role != "" {
			roles = append(roles, authz.Role(role))
		}
	}

	return &authz.Viewer{
		ID:    id,
		Name:  r.Header.Get("X-Viewer-Name"),
		Roles: roles,
	}
}
