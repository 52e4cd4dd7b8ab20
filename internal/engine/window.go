package engine

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/lazypower/cadence/internal/notes"
)

// Window is a fixed-duration bucket of notes.
type Window struct {
	Index            int
	Start            int64 // ms from session start
	End              int64 // Start + window size
	Notes            []notes.Note
	WeightedScoreSum float64
	TotalWeight      float64
}

// AvgScore is the weighted mean score, 0 when the window carries no weight.
func (w *Window) AvgScore() float64 {
	if w.TotalWeight == 0 {
		return 0
	}
	return w.WeightedScoreSum / w.TotalWeight
}

// WindowSummary is the outward view of a window.
type WindowSummary struct {
	Index        int      `json:"index"`
	StartMS      int64    `json:"start_ms"`
	EndMS        int64    `json:"end_ms"`
	TimeRange    string   `json:"time_range"`
	AvgScore     float64  `json:"avg_score"`
	NoteCount    int      `json:"note_count"`
	Observations []string `json:"observations,omitempty"`
}

// Text joins the window's observations for keyword and overlap checks.
func (s WindowSummary) Text() string {
	return strings.Join(s.Observations, " ")
}

// weightFunc returns the weight of one resolved note.
type weightFunc func(n notes.Note) float64

// bucket groups resolved notes into windows of windowMS, keyed by index.
// Notes must already be resolved (Elapsed set); indices may be sparse.
func bucket(ns []notes.Note, windowMS int64, weight weightFunc) map[int]*Window {
	if windowMS <= 0 {
		windowMS = 1
	}
	windows := make(map[int]*Window)
	for _, n := range ns {
		elapsed := n.ElapsedMS(0)
		idx := int(elapsed / windowMS)
		w, ok := windows[idx]
		if !ok {
			start := int64(idx) * windowMS
			w = &Window{Index: idx, Start: start, End: start + windowMS}
			windows[idx] = w
		}
		wt := weight(n)
		w.Notes = append(w.Notes, n)
		w.WeightedScoreSum += n.ScoreValue() * wt
		w.TotalWeight += wt
	}
	return windows
}

// summarize orders windows by index and converts them to summaries.
func summarize(windows map[int]*Window) []WindowSummary {
	idx := make([]int, 0, len(windows))
	for i := range windows {
		idx = append(idx, i)
	}
	sort.Ints(idx)

	out := make([]WindowSummary, 0, len(idx))
	for _, i := range idx {
		w := windows[i]
		var obs []string
		for _, n := range w.Notes {
			if n.Observation != "" {
				obs = append(obs, n.Observation)
			}
		}
		out = append(out, WindowSummary{
			Index:        w.Index,
			StartMS:      w.Start,
			EndMS:        w.End,
			TimeRange:    formatRange(w.Start, w.End),
			AvgScore:     w.AvgScore(),
			NoteCount:    len(w.Notes),
			Observations: obs,
		})
	}
	return out
}

// formatRange renders a window span as "0s-10s" or "1m30s-1m40s".
func formatRange(startMS, endMS int64) string {
	return fmt.Sprintf("%s-%s", msDuration(startMS), msDuration(endMS))
}

func msDuration(ms int64) time.Duration {
	d := time.Duration(ms) * time.Millisecond
	if d >= time.Second {
		return d.Truncate(100 * time.Millisecond)
	}
	return d
}

func avgScores(ws []WindowSummary) []float64 {
	out := make([]float64, len(ws))
	for i, w := range ws {
		out[i] = w.AvgScore
	}
	return out
}

func windowTexts(ws []WindowSummary) []string {
	out := make([]string, len(ws))
	for i, w := range ws {
		out[i] = w.Text()
	}
	return out
}
