package state

import (
	"sync"
	"time"
)

// Record is the store's held value: the state plus its provenance.
type Record struct {
	State      *State
	Source     Source
	RecordedAt time.Time
}

// Store holds the single last-known state. Exactly one record exists at any
// time; each accepted state replaces the previous one whole. Safe for
// concurrent use from multiple adapters.
type Store struct {
	mu  sync.Mutex
	rec *Record

	now func() time.Time
}

func NewStore() *Store {
	return &Store{now: time.Now}
}

// Set stores an independent copy of s tagged with src and the current time,
// replacing any prior record.
func (st *Store) Set(s *State, src Source) {
	snapshot := s.Clone()

	st.mu.Lock()
	defer st.mu.Unlock()
	st.rec = &Record{
		State:      snapshot,
		Source:     src,
		RecordedAt: st.now(),
	}
}

// Snapshot returns a copy of the current record and its age in seconds.
// ok is false until the first Set. The lock is held only for the copy.
func (st *Store) Snapshot() (s *State, src Source, ageSeconds float64, ok bool) {
	st.mu.Lock()
	rec := st.rec
	if rec != nil {
		s = rec.State.Clone()
	}
	st.mu.Unlock()

	if rec == nil {
		return nil, "", 0, false
	}
	return s, rec.Source, st.now().Sub(rec.RecordedAt).Seconds(), true
}
