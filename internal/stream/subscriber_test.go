package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/signbridge/signbridge/internal/config"
	"github.com/signbridge/signbridge/internal/state"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeApplier struct {
	mu      sync.Mutex
	applied []*state.State
	sources []state.Source
}

func (f *fakeApplier) Apply(s *state.State, src state.Source) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.applied = append(f.applied, s.Clone())
	f.sources = append(f.sources, src)
}

func (f *fakeApplier) snapshot() ([]*state.State, []state.Source) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*state.State(nil), f.applied...), append([]state.Source(nil), f.sources...)
}

func testValidator(t *testing.T) *state.Validator {
	t.Helper()
	v, err := state.NewValidator()
	if err != nil {
		t.Fatalf("NewValidator: %v", err)
	}
	return v
}

func streamConfig(baseURL string) config.StreamConfig {
	return config.StreamConfig{
		BaseURL:          baseURL,
		Topic:            "office",
		ConnectTimeoutMS: 2000,
		ReadTimeoutMS:    60000,
		BackoffMS:        10,
	}
}

func TestSubscriberDisabledWithoutConfig(t *testing.T) {
	s := NewSubscriber(config.StreamConfig{}, &fakeApplier{}, testValidator(t), testLogger())
	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("disabled subscriber must return nil, got %v", err)
	}
}

func TestSubscriberStoresFrameAndReconnects(t *testing.T) {
	var conns atomic.Int32
	reconnected := make(chan struct{})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/office/sse" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Accept") != "text/event-stream" {
			t.Errorf("missing Accept header")
		}

		n := conns.Add(1)
		w.Header().Set("Content-Type", "text/event-stream")

		if n == 1 {
			// control event, envelope-wrapped state, then server closes the
			// stream to force a reconnect
			fmt.Fprint(w, "event: open\n")
			fmt.Fprint(w, "data: {\"event\":\"open\"}\n\n")
			fmt.Fprint(w, "event: message\n")
			fmt.Fprint(w, `data: {"event":"message","message":"{\"status\":\"busy\",\"now\":{\"title\":\"Standup\",\"end\":\"2024-01-01T09:00:00Z\"}}"}`+"\n\n")
			if f, ok := w.(http.Flusher); ok {
				f.Flush()
			}
			return
		}
		select {
		case <-reconnected:
		default:
			close(reconnected)
		}
	}))
	defer srv.Close()

	applier := &fakeApplier{}
	sub := NewSubscriber(streamConfig(srv.URL), applier, testValidator(t), testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sub.Run(ctx) }()

	select {
	case <-reconnected:
	case <-time.After(5 * time.Second):
		t.Fatal("subscriber never reconnected after stream error")
	}
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("subscriber did not stop on cancellation")
	}

	applied, sources := applier.snapshot()
	if len(applied) != 1 {
		t.Fatalf("expected exactly 1 applied state, got %d", len(applied))
	}
	if sources[0] != state.SourceStreaming {
		t.Errorf("expected streaming source, got %q", sources[0])
	}
	if applied[0].Status != "busy" || applied[0].Now.Title != "Standup" {
		t.Errorf("unexpected state %+v", applied[0])
	}
}

func TestSubscriberSkipsNonStatePayloads(t *testing.T) {
	var conns atomic.Int32
	second := make(chan struct{})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if conns.Add(1) > 1 {
			select {
			case <-second:
			default:
				close(second)
			}
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		// keepalive, then a JSON object without status: skipped, not fatal
		fmt.Fprint(w, "data: {\"event\":\"keepalive\"}\n\n")
		fmt.Fprint(w, "data: {\"hello\":\"world\"}\n\n")
		fmt.Fprint(w, "data: {\"status\":\"free\"}\n\n")
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
	}))
	defer srv.Close()

	applier := &fakeApplier{}
	sub := NewSubscriber(streamConfig(srv.URL), applier, testValidator(t), testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sub.Run(ctx)

	select {
	case <-second:
	case <-time.After(5 * time.Second):
		t.Fatal("subscriber never finished first stream")
	}
	cancel()

	applied, _ := applier.snapshot()
	if len(applied) != 1 || applied[0].Status != "free" {
		t.Fatalf("expected only the bare state frame, got %+v", applied)
	}
}

func TestSubscriberSkipsParseableNonObjectFrames(t *testing.T) {
	var conns atomic.Int32
	second := make(chan struct{})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if conns.Add(1) > 1 {
			select {
			case <-second:
			default:
				close(second)
			}
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		// valid JSON that is not an object: skipped, the stream stays open and
		// the state that follows is still applied
		fmt.Fprint(w, "data: [1,2,3]\n\n")
		fmt.Fprint(w, "data: \"just a string\"\n\n")
		fmt.Fprint(w, "data: 42\n\n")
		fmt.Fprint(w, "data: {\"status\":\"busy\"}\n\n")
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
	}))
	defer srv.Close()

	applier := &fakeApplier{}
	sub := NewSubscriber(streamConfig(srv.URL), applier, testValidator(t), testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sub.Run(ctx)

	select {
	case <-second:
	case <-time.After(5 * time.Second):
		t.Fatal("subscriber never finished first stream")
	}
	cancel()

	applied, _ := applier.snapshot()
	if len(applied) != 1 || applied[0].Status != "busy" {
		t.Fatalf("expected the state after the non-object frames, got %+v", applied)
	}
}

func TestSubscriberTreatsMalformedFrameAsStreamError(t *testing.T) {
	var conns atomic.Int32
	second := make(chan struct{})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if conns.Add(1) > 1 {
			select {
			case <-second:
			default:
				close(second)
			}
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: this is not json\n\n")
		// never reached by the parser: the malformed frame closes the stream
		fmt.Fprint(w, "data: {\"status\":\"busy\"}\n\n")
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
	}))
	defer srv.Close()

	applier := &fakeApplier{}
	sub := NewSubscriber(streamConfig(srv.URL), applier, testValidator(t), testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sub.Run(ctx)

	select {
	case <-second:
	case <-time.After(5 * time.Second):
		t.Fatal("subscriber never reconnected after malformed frame")
	}
	cancel()

	applied, _ := applier.snapshot()
	if len(applied) != 0 {
		t.Fatalf("no state should be applied after a malformed frame, got %+v", applied)
	}
}

func TestSubscriberBacksOffOnErrorStatus(t *testing.T) {
	var conns atomic.Int32
	second := make(chan struct{})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if conns.Add(1) > 1 {
			select {
			case <-second:
			default:
				close(second)
			}
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	sub := NewSubscriber(streamConfig(srv.URL), &fakeApplier{}, testValidator(t), testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sub.Run(ctx)

	select {
	case <-second:
	case <-time.After(5 * time.Second):
		t.Fatal("subscriber never retried after non-success status")
	}
	cancel()
}

func TestPhaseString(t *testing.T) {
	cases := map[Phase]string{
		PhaseDisconnected: "disconnected",
		PhaseConnecting:   "connecting",
		PhaseStreaming:    "streaming",
		PhaseBackoff:      "backoff",
		Phase(99):         "unknown",
	}
	for p, want := range cases {
		if got := p.String(); got != want {
			t.Errorf("Phase(%d).String() = %q, want %q", p, got, want)
		}
	}
}
