// Package api wires the bridge's HTTP surface: the inbound push endpoint,
// the health report, and the calendar proxy.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/signbridge/signbridge/internal/middleware"
	"github.com/signbridge/signbridge/internal/state"
)

// RouterDeps carries everything the HTTP surface needs.
type RouterDeps struct {
	SharedSecret string
	Validator    *state.Validator
	Pipeline     Applier
	Store        *state.Store
	Transport    ConnectionReporter
	Calendar     CalendarBackend
	Logger       *slog.Logger
	StartedAt    time.Time
}

// NewRouter creates and configures the API router
func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.Logger(deps.Logger))

	statusHandler := NewStatusHandler(deps.SharedSecret, deps.Validator, deps.Pipeline, deps.Logger)
	healthHandler := NewHealthHandler(deps.Store, deps.Transport, deps.StartedAt)
	calendarHandler := NewCalendarHandler(deps.Calendar, deps.Logger)

	r.Get("/healthz", healthHandler.Report)
	r.Post("/status_update", statusHandler.Update)

	r.Route("/radicale", func(r chi.Router) {
		r.Get("/list", calendarHandler.List)
		r.Post("/upsert", calendarHandler.Upsert)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		SendError(w, http.StatusNotFound, "not found")
	})

	return r
}
