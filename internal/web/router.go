package web

import (
	"net/http"

	"github.com/amekkawi/arq-console/internal/ratelimit"
	"github.com/amekkawi/arq-console/internal/web/handlers"
	"github.com/amekkawi/arq-console/internal/web/middleware"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// RouterDeps holds all dependencies needed to build the router.
type RouterDeps struct {
	BackupHandler *handlers.BackupHandler
	HealthHandler *handlers.HealthHandler
	OrphanHandler *handlers.OrphanHandler
	Limiter       *ratelimit.Limiter
	AdminToken    string
	Metrics       http.Handler
}

// NewRouter wires all routes into a Chi router.
func NewRouter(deps RouterDeps) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.RealIP)

	r.Get("/healthz", deps.HealthHandler.HandleHealth)
	if deps.Metrics != nil {
		r.Handle("/metrics", deps.Metrics)
	}

	// Backup result ingress (rate limited per client)
	r.With(middleware.RateLimit(deps.Limiter)).
		Post("/v1/backups/{backupType}/{clientId}", deps.BackupHandler.HandlePost)

	// Admin API
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAdminToken(deps.AdminToken))

		r.Get("/api/orphans", deps.OrphanHandler.HandleList)
	})

	return r
}
