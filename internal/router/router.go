// Package router assembles the chi router: middleware chain plus every
// ingress route.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	appmw "github.com/onchainsignal/tracker/internal/middleware"
)

// Deps bundles everything the router needs to mount its handlers.
type Deps struct {
	Logger            zerolog.Logger
	AdminAPIKey       string
	Webhook           http.Handler
	Health            http.Handler
	PriceStats        http.Handler
	TestNotifications http.Handler
	MountAdmin        func(r chi.Router)
}

// New builds the fully wired chi.Router.
func New(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(appmw.CORS([]string{"*"}))
	r.Use(appmw.SecurityHeaders)
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(appmw.RequestLogger(deps.Logger))

	r.Post("/webhook", deps.Webhook.ServeHTTP)
	r.Get("/health", deps.Health.ServeHTTP)
	r.Get("/stats/price", deps.PriceStats.ServeHTTP)
	r.Post("/test/notifications", deps.TestNotifications.ServeHTTP)

	r.Route("/admin", func(admin chi.Router) {
		admin.Use(appmw.AdminAuth(deps.AdminAPIKey))
		deps.MountAdmin(admin)
	})

	return r
}
