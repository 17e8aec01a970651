package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Deps are the collaborators the router serves. Runner and Cursors are
// required for the sync routes; the rest may be nil.
type Deps struct {
	Version   string
	Secret    string
	Upstream  string
	Runner    Runner
	ConfigErr error
	Cursors   CursorReader
	Reports   ReportReader
	Stats     StatsReader
	Breaker   BreakerReader
	DB        Pinger
	Hub       interface {
		ClientCounter
		HandleWebSocket(w http.ResponseWriter, r *http.Request)
	}
	Logger *slog.Logger
}

// NewRouter creates and configures the HTTP router.
func NewRouter(d Deps) http.Handler {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))
	r.Use(corsMiddleware)
	r.Use(countRequests)

	syncHandler := NewSyncHandler(d.Runner, d.ConfigErr, d.Logger)
	statusHandler := &StatusHandler{
		cursors:  d.Cursors,
		reports:  d.Reports,
		stats:    d.Stats,
		breaker:  d.Breaker,
		upstream: d.Upstream,
	}

	if d.Hub != nil {
		statusHandler.clients = d.Hub
		r.Get("/ws", d.Hub.HandleWebSocket)
	}

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", HealthHandler(d.Version, d.DB))

		r.Group(func(r chi.Router) {
			r.Use(requireSecret(d.Secret))
			r.Get("/sync", syncHandler.Sync)
			r.Post("/sync", syncHandler.Sync)
			r.Get("/sync/status", statusHandler.Status)
		})
	})

	return r
}
