// Package state holds the canonical sign state: the typed model, the
// thread-safe last-known-state store, local-time enrichment, and boundary
// validation of inbound payloads.
package state

import "time"

// Source identifies which adapter produced a stored state.
type Source string

const (
	SourceHTTP      Source = "http"
	SourceStreaming Source = "streaming"
	SourceTicker    Source = "ticker"
	SourceConnect   Source = "connect"
)

// Activity describes the current or upcoming entry on the sign.
type Activity struct {
	Title      string `json:"title"`
	Start      string `json:"start,omitempty"`
	StartLocal string `json:"start_local,omitempty"`
	End        string `json:"end,omitempty"`
	EndLocal   string `json:"end_local,omitempty"`
}

// State is the single piece of truth about what the sign should show.
type State struct {
	Status string    `json:"status"`
	Now    *Activity `json:"now,omitempty"`
	Next   *Activity `json:"next,omitempty"`
	At     string    `json:"at,omitempty"`
}

// Clone returns an independent copy. Mutating the copy never affects the
// original, which is what lets the store hand out snapshots safely.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	out := *s
	if s.Now != nil {
		now := *s.Now
		out.Now = &now
	}
	if s.Next != nil {
		next := *s.Next
		out.Next = &next
	}
	return &out
}

// Placeholder returns the "bridge online" state published on every broker
// (re)connection so the retained topic is never stale indefinitely.
func Placeholder(now time.Time) *State {
	return &State{
		Status: "free",
		Now:    &Activity{Title: ""},
		Next:   &Activity{Title: "Bridge online"},
		At:     now.UTC().Format(time.RFC3339),
	}
}

// Synthetic returns the fixed placeholder state the ticker adapter emits.
func Synthetic(now time.Time) *State {
	return &State{
		Status: "busy",
		Now:    &Activity{Title: "In a meeting"},
		Next:   &Activity{Title: "Next thing"},
		At:     now.UTC().Format(time.RFC3339),
	}
}
