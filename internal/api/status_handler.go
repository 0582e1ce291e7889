package api

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/signbridge/signbridge/internal/state"
)

const maxBodyBytes = 1 << 20

// Applier accepts a validated state from an adapter.
type Applier interface {
	Apply(s *state.State, src state.Source)
}

// StatusHandler is the push-endpoint adapter: inbound state updates over
// HTTP, guarded by an optional shared-secret bearer check.
type StatusHandler struct {
	secret    string
	validator *state.Validator
	pipeline  Applier
	logger    *slog.Logger
}

func NewStatusHandler(secret string, validator *state.Validator, pipeline Applier, logger *slog.Logger) *StatusHandler {
	return &StatusHandler{
		secret:    secret,
		validator: validator,
		pipeline:  pipeline,
		logger:    logger.With("component", "push"),
	}
}

// Update handles POST /status_update. Rejected requests never reach the
// store: 401 on a bearer mismatch when a secret is configured, 400 on a
// body that is not a valid state object.
func (h *StatusHandler) Update(w http.ResponseWriter, r *http.Request) {
	if h.secret != "" {
		if r.Header.Get("Authorization") != "Bearer "+h.secret {
			SendError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		SendError(w, http.StatusBadRequest, "invalid json")
		return
	}

	st, err := h.validator.Decode(body)
	if err != nil {
		h.logger.Warn("rejected status update", "error", err)
		SendError(w, http.StatusBadRequest, "invalid json")
		return
	}

	h.pipeline.Apply(st, state.SourceHTTP)
	h.logger.Info("state update via HTTP", "status", st.Status)
	SendJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
