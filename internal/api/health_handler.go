package api

import (
	"math"
	"net/http"
	"time"

	"github.com/signbridge/signbridge/internal/state"
)

// ConnectionReporter exposes transport liveness for the health report.
type ConnectionReporter interface {
	Connected() bool
}

// HealthHandler produces the diagnostic snapshot. It only ever reads the
// store; it never writes it.
type HealthHandler struct {
	store     *state.Store
	transport ConnectionReporter
	startedAt time.Time
}

func NewHealthHandler(store *state.Store, transport ConnectionReporter, startedAt time.Time) *HealthHandler {
	return &HealthHandler{
		store:     store,
		transport: transport,
		startedAt: startedAt,
	}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	OK              bool         `json:"ok"`
	UptimeSeconds   float64      `json:"uptime_s"`
	MQTTConnected   bool         `json:"mqtt_connected"`
	LastStateSource *string      `json:"last_state_source"`
	LastStateAge    *float64     `json:"last_state_age_s"`
	LastState       *state.State `json:"last_state"`
}

// Report handles GET /healthz
func (h *HealthHandler) Report(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		OK:            true,
		UptimeSeconds: round1(time.Since(h.startedAt).Seconds()),
		MQTTConnected: h.transport.Connected(),
	}

	if snapshot, source, age, ok := h.store.Snapshot(); ok {
		src := string(source)
		rounded := round1(age)
		response.LastStateSource = &src
		response.LastStateAge = &rounded
		response.LastState = snapshot
	}

	SendJSON(w, http.StatusOK, response)
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
