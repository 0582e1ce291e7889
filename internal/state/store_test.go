package state

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestStoreSetAndSnapshot(t *testing.T) {
	st := NewStore()

	t.Run("EmptyStore", func(t *testing.T) {
		s, src, age, ok := st.Snapshot()
		if ok {
			t.Fatal("expected ok=false before first Set")
		}
		if s != nil || src != "" || age != 0 {
			t.Errorf("expected zero values, got %v %q %v", s, src, age)
		}
	})

	t.Run("SetThenSnapshot", func(t *testing.T) {
		st.Set(&State{Status: "busy", Now: &Activity{Title: "Standup"}}, SourceHTTP)

		s, src, age, ok := st.Snapshot()
		if !ok {
			t.Fatal("expected ok=true after Set")
		}
		if src != SourceHTTP {
			t.Errorf("expected source http, got %q", src)
		}
		if s.Status != "busy" || s.Now.Title != "Standup" {
			t.Errorf("unexpected state %+v", s)
		}
		if age < 0 || age > 5 {
			t.Errorf("implausible age %v", age)
		}
	})

	t.Run("LastWriteWins", func(t *testing.T) {
		st.Set(&State{Status: "free"}, SourceTicker)

		s, src, _, _ := st.Snapshot()
		if src != SourceTicker || s.Status != "free" {
			t.Errorf("expected replacement record, got %q %+v", src, s)
		}
		if s.Now != nil {
			t.Error("records must be replaced whole, not merged")
		}
	})
}

func TestStoreSnapshotIsolation(t *testing.T) {
	st := NewStore()
	original := &State{Status: "busy", Now: &Activity{Title: "Standup"}}
	st.Set(original, SourceHTTP)

	// Mutating the caller's value after Set must not reach the store.
	original.Status = "mutated"
	original.Now.Title = "mutated"

	s1, _, _, _ := st.Snapshot()
	if s1.Status != "busy" || s1.Now.Title != "Standup" {
		t.Errorf("store shares memory with the writer: %+v", s1)
	}

	// Mutating a returned snapshot must not corrupt later reads.
	s1.Status = "corrupted"
	s1.Now.Title = "corrupted"

	s2, _, _, _ := st.Snapshot()
	if s2.Status != "busy" || s2.Now.Title != "Standup" {
		t.Errorf("snapshots share memory with the store: %+v", s2)
	}
}

func TestStoreSecondSetRefreshesTimestamp(t *testing.T) {
	st := NewStore()
	current := time.Unix(1000, 0)
	st.now = func() time.Time { return current }

	s := &State{Status: "busy"}
	st.Set(s, SourceHTTP)

	current = time.Unix(1060, 0)
	st.Set(s, SourceHTTP)

	current = time.Unix(1070, 0)
	_, _, age, ok := st.Snapshot()
	if !ok {
		t.Fatal("expected a record")
	}
	if age != 10 {
		t.Errorf("expected age 10s from second Set, got %v", age)
	}
}

func TestStoreConcurrentWriters(t *testing.T) {
	st := NewStore()
	const writers = 8
	const rounds = 200

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s := &State{
				Status: fmt.Sprintf("status-%d", i),
				Now:    &Activity{Title: fmt.Sprintf("title-%d", i)},
			}
			src := Source(fmt.Sprintf("writer-%d", i))
			for r := 0; r < rounds; r++ {
				st.Set(s, src)
			}
		}(i)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for j := 0; j < rounds; j++ {
			s, src, _, ok := st.Snapshot()
			if !ok {
				continue
			}
			// The record must be one writer's intact state, never a blend.
			var w int
			if _, err := fmt.Sscanf(string(src), "writer-%d", &w); err != nil {
				t.Errorf("unexpected source %q", src)
				return
			}
			if s.Status != fmt.Sprintf("status-%d", w) || s.Now.Title != fmt.Sprintf("title-%d", w) {
				t.Errorf("partially merged record: source=%q state=%+v", src, s)
				return
			}
		}
	}()

	wg.Wait()
	<-done
}
