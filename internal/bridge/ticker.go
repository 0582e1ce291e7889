package bridge

import (
	"context"
	"log/slog"
	"time"

	"github.com/signbridge/signbridge/internal/state"
)

// Ticker emits a fixed synthetic "busy" state on a configured interval,
// keeping the retained topic warm when no live source is wired up.
type Ticker struct {
	pipeline *Pipeline
	interval time.Duration
	logger   *slog.Logger
}

func NewTicker(pipeline *Pipeline, interval time.Duration, logger *slog.Logger) *Ticker {
	return &Ticker{
		pipeline: pipeline,
		interval: interval,
		logger:   logger.With("component", "ticker"),
	}
}

// Run emits until the context is cancelled. A zero interval disables the
// adapter entirely.
func (t *Ticker) Run(ctx context.Context) error {
	if t.interval <= 0 {
		t.logger.Info("synthetic ticker disabled")
		return nil
	}
	t.logger.Info("synthetic ticker started", "interval", t.interval)

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			t.logger.Info("synthetic ticker shutting down")
			return ctx.Err()
		case <-ticker.C:
			t.pipeline.Apply(state.Synthetic(time.Now()), state.SourceTicker)
		}
	}
}
