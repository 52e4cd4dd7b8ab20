package notes

import (
	"sort"
	"sync"
	"time"
)

// Store is the append-only note sequence for one session.
//
// Notes are never mutated after Append. Snapshot hands out copies with
// Elapsed resolved and the slice sorted ascending, which is the ordering
// precondition every aggregator relies on.
type Store struct {
	mu    sync.RWMutex
	start int64
	notes []Note
}

// NewStore creates an empty store for a session that began at start.
func NewStore(start time.Time) *Store {
	return &Store{start: start.UnixMilli()}
}

// SessionStart returns the session start as epoch milliseconds.
func (s *Store) SessionStart() int64 {
	return s.start
}

// Append adds notes in arrival order.
func (s *Store) Append(ns ...Note) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notes = append(s.notes, ns...)
}

// Len returns the number of notes recorded.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.notes)
}

// Snapshot returns a sorted, resolved copy of the notes.
func (s *Store) Snapshot() []Note {
	s.mu.RLock()
	raw := make([]Note, len(s.notes))
	copy(raw, s.notes)
	s.mu.RUnlock()
	return Resolve(raw, s.start)
}

// Now returns the current session-relative offset in milliseconds.
func (s *Store) Now(now time.Time) int64 {
	e := now.UnixMilli() - s.start
	if e < 0 {
		return 0
	}
	return e
}

// Resolve pins every note's Elapsed relative to sessionStart and returns
// the notes sorted ascending by it. The input slice is not modified.
func Resolve(in []Note, sessionStart int64) []Note {
	out := make([]Note, len(in))
	for i, n := range in {
		out[i] = n.WithElapsed(n.ElapsedMS(sessionStart))
	}
	sort.SliceStable(out, func(i, j int) bool {
		return *out[i].Elapsed < *out[j].Elapsed
	})
	return out
}
