// Package stream maintains the long-lived server-sent-event subscription
// that feeds live status updates into the bridge.
package stream

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/signbridge/signbridge/internal/config"
	"github.com/signbridge/signbridge/internal/state"
)

// Phase is the subscriber's connection lifecycle state.
type Phase int

const (
	PhaseDisconnected Phase = iota
	PhaseConnecting
	PhaseStreaming
	PhaseBackoff
)

func (p Phase) String() string {
	switch p {
	case PhaseDisconnected:
		return "disconnected"
	case PhaseConnecting:
		return "connecting"
	case PhaseStreaming:
		return "streaming"
	case PhaseBackoff:
		return "backoff"
	default:
		return "unknown"
	}
}

// Applier accepts a validated state from an adapter.
type Applier interface {
	Apply(s *state.State, src state.Source)
}

// Subscriber consumes an SSE endpoint and pushes every valid state frame
// through the pipeline. Stream-level errors (connect failure, non-success
// status, read timeout, malformed event frame) close the stream and trigger
// a reconnect after a fixed backoff; the loop only ends with shutdown.
type Subscriber struct {
	cfg       config.StreamConfig
	applier   Applier
	validator *state.Validator
	client    *http.Client
	logger    *slog.Logger

	mu    sync.Mutex
	phase Phase
}

func NewSubscriber(cfg config.StreamConfig, applier Applier, validator *state.Validator, logger *slog.Logger) *Subscriber {
	return &Subscriber{
		cfg:       cfg,
		applier:   applier,
		validator: validator,
		client: &http.Client{
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: cfg.GetConnectTimeout(),
				}).DialContext,
				ResponseHeaderTimeout: cfg.GetConnectTimeout(),
			},
		},
		logger: logger.With("component", "stream"),
	}
}

// Phase returns the current lifecycle phase.
func (s *Subscriber) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

func (s *Subscriber) setPhase(p Phase) {
	s.mu.Lock()
	prev := s.phase
	s.phase = p
	s.mu.Unlock()
	if prev != p {
		s.logger.Debug("stream phase transition", "from", prev, "to", p)
	}
}

// Run maintains the subscription until the context is cancelled. When the
// stream endpoint is not configured the adapter is a no-op.
func (s *Subscriber) Run(ctx context.Context) error {
	if !s.cfg.Enabled() {
		s.logger.Info("streaming subscription disabled (no stream url/topic)")
		return nil
	}
	url := s.cfg.EndpointURL()
	s.logger.Info("streaming subscription starting", "url", url)

	for {
		if err := ctx.Err(); err != nil {
			s.setPhase(PhaseDisconnected)
			return err
		}

		s.setPhase(PhaseConnecting)
		err := s.streamOnce(ctx, url)
		if ctx.Err() != nil {
			s.setPhase(PhaseDisconnected)
			s.logger.Info("streaming subscription shutting down")
			return ctx.Err()
		}

		s.setPhase(PhaseBackoff)
		s.logger.Warn("stream error, reconnecting after backoff",
			"error", err,
			"backoff", s.cfg.GetBackoff(),
		)
		select {
		case <-ctx.Done():
			s.setPhase(PhaseDisconnected)
			return ctx.Err()
		case <-time.After(s.cfg.GetBackoff()):
		}
	}
}

// streamOnce runs a single connect-and-read cycle. It returns once the
// stream errors or the context is cancelled.
func (s *Subscriber) streamOnce(ctx context.Context, url string) error {
	reqCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build stream request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("connect stream: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("stream returned status %d", resp.StatusCode)
	}

	s.setPhase(PhaseStreaming)

	// A stalled stream counts as errored: cancel the request when nothing
	// arrives within the read timeout. Keepalive events reset the clock.
	watchdog := time.AfterFunc(s.cfg.GetReadTimeout(), cancel)
	defer watchdog.Stop()

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		watchdog.Reset(s.cfg.GetReadTimeout())

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "event:") {
			continue
		}
		data, ok := strings.CutPrefix(line, "data:")
		if !ok {
			continue
		}
		if err := s.handleFrame(strings.TrimSpace(data)); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read stream: %w", err)
	}
	return errors.New("stream closed by server")
}

// handleFrame processes one data payload. A frame that is not valid JSON at
// all is a stream-level error; a payload that parses but is merely not a
// state object is skipped with a log and the stream stays open.
func (s *Subscriber) handleFrame(data string) error {
	var frame any
	if err := json.Unmarshal([]byte(data), &frame); err != nil {
		return fmt.Errorf("malformed event frame: %w", err)
	}
	wrapper, ok := frame.(map[string]any)
	if !ok {
		s.logger.Warn("stream payload is not a state object, skipping", "payload", data)
		return nil
	}

	if ev, _ := wrapper["event"].(string); ev == "open" || ev == "keepalive" {
		return nil
	}

	// ntfy-style envelopes carry the real payload as a JSON string in
	// "message"; bare frames are the state itself.
	raw := []byte(data)
	if msg, ok := wrapper["message"].(string); ok {
		raw = []byte(msg)
	}

	st, err := s.validator.Decode(raw)
	if err != nil {
		s.logger.Warn("stream payload is not a state object, skipping", "error", err)
		return nil
	}

	s.applier.Apply(st, state.SourceStreaming)
	return nil
}
