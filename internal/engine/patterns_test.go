package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lazypower/cadence/internal/notes"
)

func windowsOf(scores ...float64) []WindowSummary {
	ws := make([]WindowSummary, len(scores))
	for i, s := range scores {
		ws[i] = WindowSummary{Index: i, AvgScore: s}
	}
	return ws
}

func patternTypes(ps []Pattern) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.Type
	}
	return out
}

func TestDetectPatternsTrends(t *testing.T) {
	up := DetectPatterns(windowsOf(3, 5, 7), nil)
	require.Len(t, up, 1)
	assert.Equal(t, PatternImprovement, up[0].Type)
	assert.Equal(t, 1.0, up[0].Confidence)

	down := DetectPatterns(windowsOf(8, 6, 6, 2), nil)
	assert.Equal(t, []string{PatternDecline}, patternTypes(down))
	assert.InDelta(t, 2.0/3.0, down[0].Confidence, 1e-9)
}

func TestDetectPatternsOscillation(t *testing.T) {
	ps := DetectPatterns(windowsOf(9, 1, 9, 1), nil)
	assert.Equal(t, []string{PatternOscillation}, patternTypes(ps))
}

func TestDetectPatternsPlateau(t *testing.T) {
	ps := DetectPatterns(windowsOf(5, 5.2, 5.1), nil)
	assert.Equal(t, []string{PatternPlateau}, patternTypes(ps))
	assert.InDelta(t, 0.6, ps[0].Confidence, 1e-9)
}

func TestDetectPatternsNeedsThreeWindows(t *testing.T) {
	assert.Empty(t, DetectPatterns(windowsOf(1, 9), nil))
}

func TestDetectPatternsRecurringIssue(t *testing.T) {
	ns := []notes.Note{
		{Issues: []string{"Overlap", "overlap"}},
		{Issues: []string{"overlap "}},
		{Issues: []string{"contrast"}},
		{Issues: []string{"overlap", "contrast"}},
	}
	ps := DetectPatterns(nil, ns)
	require.Len(t, ps, 1)
	assert.Equal(t, PatternRecurringIssue, ps[0].Type)
	assert.Contains(t, ps[0].Description, `"overlap" reported in 3 notes`)
	assert.InDelta(t, 0.75, ps[0].Confidence, 1e-9)
}

func TestPruneNotesKeepsSalientInOrder(t *testing.T) {
	var ns []notes.Note
	for i := range 10 {
		ns = append(ns, note(int64(i)*1000, 5, "page idle"))
	}
	ns[2].Observation = "error shown"
	ns[5].Observation = "click on save"
	ns[7].Issues = []string{"misaligned"}

	pruned := PruneNotes(ns, 3)
	require.Len(t, pruned, 3)
	assert.Equal(t, int64(2000), *pruned[0].Elapsed)
	assert.Equal(t, int64(5000), *pruned[1].Elapsed)
	assert.Equal(t, int64(7000), *pruned[2].Elapsed)
}

func TestPruneNotesPrefersNewestOnTies(t *testing.T) {
	var ns []notes.Note
	for i := range 6 {
		ns = append(ns, note(int64(i)*1000, 5, "page idle"))
	}
	pruned := PruneNotes(ns, 2)
	require.Len(t, pruned, 2)
	assert.Equal(t, int64(4000), *pruned[0].Elapsed)
	assert.Equal(t, int64(5000), *pruned[1].Elapsed)
}

func TestPruneNotesUnderLimit(t *testing.T) {
	ns := []notes.Note{note(2000, 5, ""), note(1000, 4, "")}
	pruned := PruneNotes(ns, 50)
	require.Len(t, pruned, 2)
	assert.Equal(t, int64(1000), *pruned[0].Elapsed)
}

func TestDetectPatternsEmptyIsNotNil(t *testing.T) {
	got := DetectPatterns(nil, nil)
	require.NotNil(t, got)
	assert.Empty(t, got)
}
