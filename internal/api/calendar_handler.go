package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/signbridge/signbridge/internal/calendar"
)

// CalendarBackend is the remote calendar surface the proxy needs.
type CalendarBackend interface {
	List(ctx context.Context) ([]calendar.Event, error)
	Upsert(ctx context.Context, uid, vevent string) (int, error)
}

// CalendarHandler proxies list/upsert calls to the Radicale backend.
type CalendarHandler struct {
	backend CalendarBackend
	logger  *slog.Logger
}

func NewCalendarHandler(backend CalendarBackend, logger *slog.Logger) *CalendarHandler {
	return &CalendarHandler{
		backend: backend,
		logger:  logger.With("component", "calendar_api"),
	}
}

// List handles GET /radicale/list
func (h *CalendarHandler) List(w http.ResponseWriter, r *http.Request) {
	events, err := h.backend.List(r.Context())
	if err != nil {
		h.logger.Error("calendar list failed", "error", err)
		SendError(w, http.StatusInternalServerError, err.Error())
		return
	}
	SendJSON(w, http.StatusOK, map[string]any{"events": events})
}

type upsertRequest struct {
	UID    string `json:"uid"`
	VEvent string `json:"vevent"`
}

// Upsert handles POST /radicale/upsert
func (h *CalendarHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	var input upsertRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		SendError(w, http.StatusBadRequest, "bad input")
		return
	}
	if input.UID == "" || input.VEvent == "" {
		SendError(w, http.StatusBadRequest, "bad input")
		return
	}

	status, err := h.backend.Upsert(r.Context(), input.UID, input.VEvent)
	if err != nil {
		h.logger.Error("calendar upsert failed", "uid", input.UID, "error", err)
		SendError(w, http.StatusInternalServerError, err.Error())
		return
	}
	SendJSON(w, http.StatusOK, map[string]any{"ok": true, "status": status})
}
