// Package notify delivers human-readable alerts to the configured webhook
// sinks on a best-effort basis.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/signbridge/signbridge/internal/config"
)

const deliveryTimeout = 8 * time.Second

// Fanout attempts delivery to every configured sink independently. One
// sink failing never prevents attempting the others; unconfigured sinks
// are skipped. There are no retries.
type Fanout struct {
	cfg    config.NotifyConfig
	client *http.Client
	logger *slog.Logger
	now    func() time.Time
}

func NewFanout(cfg config.NotifyConfig, logger *slog.Logger) *Fanout {
	return &Fanout{
		cfg:    cfg,
		client: &http.Client{Timeout: deliveryTimeout},
		logger: logger.With("component", "notify"),
		now:    time.Now,
	}
}

// Notify fans text out to the Teams webhook, the Flow webhook, and ntfy.
func (f *Fanout) Notify(ctx context.Context, text string) {
	if f.cfg.TeamsWebhook != "" {
		f.deliver(ctx, "teams", f.cfg.TeamsWebhook, "application/json",
			mustJSON(map[string]string{"text": text}))
	}
	if f.cfg.FlowURL != "" {
		f.deliver(ctx, "flow", f.cfg.FlowURL, "application/json",
			mustJSON(map[string]string{
				"text": text,
				"at":   f.now().UTC().Format(time.RFC3339),
			}))
	}
	if f.cfg.NtfyURL != "" {
		f.deliver(ctx, "ntfy", f.cfg.NtfyURL, "text/plain", []byte(text))
	}
}

func (f *Fanout) deliver(ctx context.Context, sink, url, contentType string, body []byte) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		f.logger.Error("notify request build failed", "sink", sink, "error", err)
		return
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := f.client.Do(req)
	if err != nil {
		f.logger.Error("notify delivery failed", "sink", sink, "error", err)
		return
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode >= 300 {
		f.logger.Warn("notify sink returned non-success", "sink", sink, "status", resp.StatusCode)
		return
	}
	f.logger.Info("notify delivered", "sink", sink, "status", resp.StatusCode)
}

func mustJSON(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		// map[string]string cannot fail to marshal
		panic(fmt.Sprintf("notify: marshal payload: %v", err))
	}
	return b
}
