package bridge

import (
	"context"
	"encoding/json"
	"log/slog"
)

// Notifier fans a human-readable alert out to the configured sinks.
type Notifier interface {
	Notify(ctx context.Context, text string)
}

const ringAlertText = "🔔 Someone tapped RING at your office sign."

// RingAdapter reacts to messages on the ring topic. It never touches the
// canonical state; it only triggers notifications.
type RingAdapter struct {
	notifier Notifier
	logger   *slog.Logger
}

func NewRingAdapter(notifier Notifier, logger *slog.Logger) *RingAdapter {
	return &RingAdapter{
		notifier: notifier,
		logger:   logger.With("component", "ring"),
	}
}

// Handle processes one ring message. The payload is parsed best-effort:
// anything that is not JSON is kept as raw text for the log.
func (r *RingAdapter) Handle(payload []byte) {
	var data any
	if err := json.Unmarshal(payload, &data); err != nil {
		data = map[string]string{"raw": string(payload)}
	}
	r.logger.Info("ring received", "data", data)
	r.notifier.Notify(context.Background(), ringAlertText)
}
