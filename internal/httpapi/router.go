// Package httpapi is the operational shim's thin HTTP surface
// (spec.md §4.9): one chi router in front of the per-agent engine
// cache, grounded on the teacher's internal/api router wiring order
// (global middleware, then routed groups) but trimmed to the three
// endpoints the shim actually needs.
package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/Harshitk-cp/engram/internal/config"
	"github.com/Harshitk-cp/engram/internal/engine"
)

// NewRouter wires the shim's routes against a shared per-agent engine
// cache. startedAt feeds the /healthz uptime field.
func NewRouter(mgr *engine.Manager, logger *zap.Logger, startedAt time.Time) *chi.Mux {
	r := chi.NewRouter()

	r.Use(requestID)
	r.Use(middleware.RealIP)
	r.Use(logging(logger))
	r.Use(middleware.Recoverer)
	r.Use(rateLimit(config.RateLimitRPS(), config.RateLimitBurst()))

	r.Get("/healthz", healthHandler(startedAt))

	r.Route("/v1/agents/{id}", func(r chi.Router) {
		r.Get("/stats", statsHandler(mgr))
		r.Post("/learn", learnHandler(mgr))
	})

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})

	return r
}
