package engine

import (
	"fmt"

	"github.com/lazypower/cadence/internal/config"
	"github.com/lazypower/cadence/internal/notes"
)

const noNotesSummary = "no notes available"

// AggregatedResult is the single-scale view of a session.
type AggregatedResult struct {
	Windows    []WindowSummary    `json:"windows"`
	Summary    string             `json:"summary"`
	Coherence  float64            `json:"coherence"`
	Breakdown  CoherenceBreakdown `json:"breakdown"`
	Conflicts  []Conflict         `json:"conflicts"`
	TotalNotes int                `json:"total_notes"`
	TimeSpanMS int64              `json:"time_span_ms"`
}

// Aggregator buckets notes into fixed windows and weights them by
// exponential decay from the session start. It holds no state between calls.
type Aggregator struct {
	windowMS    int64
	decayFactor float64
}

// NewAggregator validates cfg and returns an Aggregator.
func NewAggregator(cfg config.EngineConfig) (*Aggregator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid engine config: %w", err)
	}
	return &Aggregator{
		windowMS:    cfg.WindowSize.Milliseconds(),
		decayFactor: cfg.DecayFactor,
	}, nil
}

// WindowMS returns the configured window size in milliseconds.
func (a *Aggregator) WindowMS() int64 {
	return a.windowMS
}

// Aggregate summarises ns. Notes without Elapsed are placed at offset 0;
// callers with wall-clock notes should pass a Store snapshot instead.
func (a *Aggregator) Aggregate(ns []notes.Note) AggregatedResult {
	if len(ns) == 0 {
		return emptyResult()
	}
	resolved := notes.Resolve(ns, 0)

	windows := bucket(resolved, a.windowMS, func(n notes.Note) float64 {
		return decayWeight(n.ElapsedMS(0), a.windowMS, a.decayFactor)
	})
	summaries := summarize(windows)

	breakdown := AnalyzeCoherence(avgScores(summaries), windowTexts(summaries))
	conflicts := DetectConflicts(summaries)

	first := *resolved[0].Elapsed
	last := *resolved[len(resolved)-1].Elapsed

	return AggregatedResult{
		Windows:    summaries,
		Summary:    describe(summaries, breakdown.Score, len(conflicts)),
		Coherence:  breakdown.Score,
		Breakdown:  breakdown,
		Conflicts:  conflicts,
		TotalNotes: len(resolved),
		TimeSpanMS: last - first,
	}
}

func emptyResult() AggregatedResult {
	return AggregatedResult{
		Windows:   []WindowSummary{},
		Summary:   noNotesSummary,
		Coherence: 1,
		Breakdown: CoherenceBreakdown{Direction: 1, Stability: 1, Variance: 1, Overlap: 1, Score: 1},
		Conflicts: []Conflict{},
	}
}

// CoherenceLabel names a coherence score: high, moderate or low.
func CoherenceLabel(c float64) string {
	switch {
	case c > 0.7:
		return "high"
	case c > 0.4:
		return "moderate"
	default:
		return "low"
	}
}

func describe(ws []WindowSummary, coherence float64, conflicts int) string {
	if len(ws) == 0 {
		return noNotesSummary
	}
	first, last := ws[0], ws[len(ws)-1]
	s := fmt.Sprintf("Across %d window(s) (%s to %s), score moved from %.1f to %.1f with %s coherence (%.2f).",
		len(ws), first.TimeRange, last.TimeRange, first.AvgScore, last.AvgScore, CoherenceLabel(coherence), coherence)
	if conflicts > 0 {
		s += fmt.Sprintf(" %d conflict(s) detected.", conflicts)
	}
	return s
}
