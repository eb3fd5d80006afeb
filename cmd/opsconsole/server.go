package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/dispatchly/opsconsole/internal/authz"
)

func setupServer(addr string, services *Services) *http.Server {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(services.Guard.WithViewer)

	// Setup CORS middleware
	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodPatch,
			http.MethodDelete,
		},
		AllowedOrigins: []string{"*"},
		AllowedHeaders: []string{"*"},
	})

	registerRoutes(r, services)

	handler := c.Handler(r)

	// Setup HTTP/2 server
	return &http.Server{
		Addr:    addr,
		Handler: h2c.NewHandler(handler, &http2.Server{}),
	}
}

// consoleRoles may open the realtime feed and the offer API. Dispatch
// mutations are narrower: only dispatch-capable dashboards.
var (
	consoleRoles = []authz.Role{
		authz.RoleSystem,
		authz.RoleAdmin,
		authz.RoleOps,
		authz.RoleFleetAdmin,
		authz.RoleDispatcher,
		authz.RoleSupport,
	}
	dispatchRoles = []authz.Role{
		authz.RoleSystem,
		authz.RoleAdmin,
		authz.RoleOps,
		authz.RoleFleetAdmin,
		authz.RoleDispatcher,
	}
)

func registerRoutes(r chi.Router, services *Services) {
	guard := services.Guard
	h := services.Handler

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	r.Get("/api/session", h.HandleSession)

	r.Group(func(r chi.Router) {
		r.Use(guard.RequireRoles(consoleRoles...))
		r.Get("/ws/console", h.HandleSocket)
		r.Get("/ws/stats", h.HandleStats)
		r.Get("/api/offers", h.HandleListOffers)
		r.Get("/api/offers/{orderID}", h.HandleGetOffer)
		r.Get("/api/offers/{orderID}/history", h.HandleOfferHistory)
	})

	r.Group(func(r chi.Router) {
		r.Use(guard.RequireRoles(dispatchRoles...))
		r.Post("/api/offers", h.HandleSendOffer)
		r.Post("/api/offers/{orderID}/clear", h.HandleClearOffer)
	})
}
