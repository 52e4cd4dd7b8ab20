package engine

import (
	"math"
	"sync"
	"time"

	"github.com/lazypower/cadence/internal/config"
	"github.com/lazypower/cadence/internal/notes"
)

// Snapshot is the result of one complete preprocessing pass.
type Snapshot struct {
	Aggregated     AggregatedResult `json:"aggregated"`
	MultiScale     MultiScaleResult `json:"multi_scale"`
	Coherence      float64          `json:"coherence"`
	PrunedNotes    []notes.Note     `json:"pruned_notes"`
	Patterns       []Pattern        `json:"patterns"`
	PreprocessedAt time.Time        `json:"preprocessed_at"`
	NoteCount      int              `json:"note_count"`
}

// Cache holds at most one Snapshot. A snapshot is served only while it is
// fresh and the session has not grown much beyond the count it was built from.
type Cache struct {
	mu       sync.RWMutex
	snap     *Snapshot
	maxAge   time.Duration
	maxDrift float64
	now      func() time.Time
}

// NewCache returns an empty cache using cfg's age and drift limits.
func NewCache(cfg config.CacheConfig, now func() time.Time) *Cache {
	if now == nil {
		now = time.Now
	}
	return &Cache{maxAge: cfg.MaxAge, maxDrift: cfg.MaxCountDrift, now: now}
}

// Valid reports whether the cached snapshot may stand in for a fresh pass
// over noteCount notes.
func (c *Cache) Valid(noteCount int) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.validLocked(noteCount)
}

func (c *Cache) validLocked(noteCount int) bool {
	if c.snap == nil {
		return false
	}
	if c.now().Sub(c.snap.PreprocessedAt) > c.maxAge {
		return false
	}
	drift := math.Abs(float64(noteCount - c.snap.NoteCount))
	return drift <= c.maxDrift*float64(noteCount)
}

// Get returns the snapshot if it is valid for noteCount.
func (c *Cache) Get(noteCount int) (Snapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.validLocked(noteCount) {
		return Snapshot{}, false
	}
	return *c.snap, true
}

// Store replaces the cached snapshot.
func (c *Cache) Store(s Snapshot) {
	c.mu.Lock()
	c.snap = &s
	c.mu.Unlock()
}

// Clear drops the cached snapshot.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.snap = nil
	c.mu.Unlock()
}

// Age returns how old the cached snapshot is, and false when there is none.
func (c *Cache) Age() (time.Duration, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.snap == nil {
		return 0, false
	}
	return c.now().Sub(c.snap.PreprocessedAt), true
}
