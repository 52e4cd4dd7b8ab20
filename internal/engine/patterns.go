package engine

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/lazypower/cadence/internal/notes"
)

// Pattern types reported by DetectPatterns.
const (
	PatternImprovement    = "steady_improvement"
	PatternDecline        = "steady_decline"
	PatternOscillation    = "oscillation"
	PatternPlateau        = "plateau"
	PatternRecurringIssue = "recurring_issue"
)

const (
	minTrendWindows     = 3
	plateauRange        = 0.5
	recurringIssueCount = 3
)

// Pattern is a coarse trend spotted during background preprocessing.
type Pattern struct {
	Type        string  `json:"type"`
	Description string  `json:"description"`
	Confidence  float64 `json:"confidence"`
}

// DetectPatterns looks for monotonic trends, oscillation and plateaus in the
// window averages, and for issues repeated across notes.
func DetectPatterns(ws []WindowSummary, ns []notes.Note) []Pattern {
	out := []Pattern{}
	scores := avgScores(ws)

	if len(scores) >= minTrendWindows {
		rising, falling := 0, 0
		for i := 1; i < len(scores); i++ {
			switch {
			case scores[i] > scores[i-1]:
				rising++
			case scores[i] < scores[i-1]:
				falling++
			}
		}
		steps := float64(len(scores) - 1)
		first, last := scores[0], scores[len(scores)-1]

		switch {
		case falling == 0 && rising > 0:
			out = append(out, Pattern{
				Type:        PatternImprovement,
				Description: fmt.Sprintf("score rose from %.1f to %.1f over %d windows", first, last, len(scores)),
				Confidence:  float64(rising) / steps,
			})
		case rising == 0 && falling > 0:
			out = append(out, Pattern{
				Type:        PatternDecline,
				Description: fmt.Sprintf("score fell from %.1f to %.1f over %d windows", first, last, len(scores)),
				Confidence:  float64(falling) / steps,
			})
		}

		if flips := countFlips(scores); flips >= 2 {
			out = append(out, Pattern{
				Type:        PatternOscillation,
				Description: fmt.Sprintf("score changed direction %d times", flips),
				Confidence:  math.Min(1, float64(flips)/steps),
			})
		}

		lo, hi := scores[0], scores[0]
		for _, s := range scores[1:] {
			lo = math.Min(lo, s)
			hi = math.Max(hi, s)
		}
		if hi-lo < plateauRange {
			out = append(out, Pattern{
				Type:        PatternPlateau,
				Description: fmt.Sprintf("score held near %.1f across %d windows", (hi+lo)/2, len(scores)),
				Confidence:  1 - (hi-lo)/plateauRange,
			})
		}
	}

	counts := make(map[string]int)
	for _, n := range ns {
		seen := make(map[string]bool, len(n.Issues))
		for _, issue := range n.Issues {
			key := strings.ToLower(strings.TrimSpace(issue))
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			counts[key]++
		}
	}
	issues := make([]string, 0, len(counts))
	for issue, c := range counts {
		if c >= recurringIssueCount {
			issues = append(issues, issue)
		}
	}
	sort.Strings(issues)
	for _, issue := range issues {
		out = append(out, Pattern{
			Type:        PatternRecurringIssue,
			Description: fmt.Sprintf("%q reported in %d notes", issue, counts[issue]),
			Confidence:  math.Min(1, float64(counts[issue])/float64(len(ns))),
		})
	}

	return out
}

// PruneNotes keeps at most limit notes, preferring the highest attention and,
// among equals, the newest. The result is in chronological order.
func PruneNotes(ns []notes.Note, limit int) []notes.Note {
	resolved := notes.Resolve(ns, 0)
	if limit <= 0 || len(resolved) <= limit {
		return resolved
	}

	type ranked struct {
		pos    int
		weight float64
	}
	rs := make([]ranked, len(resolved))
	for i, n := range resolved {
		rs[i] = ranked{pos: i, weight: attention(n)}
	}
	sort.SliceStable(rs, func(i, j int) bool {
		if rs[i].weight != rs[j].weight {
			return rs[i].weight > rs[j].weight
		}
		return rs[i].pos > rs[j].pos
	})

	keep := rs[:limit]
	sort.Slice(keep, func(i, j int) bool { return keep[i].pos < keep[j].pos })

	out := make([]notes.Note, len(keep))
	for i, r := range keep {
		out[i] = resolved[r.pos]
	}
	return out
}
