package engine

import (
	"math"

	"github.com/lazypower/cadence/internal/config"
	"github.com/lazypower/cadence/internal/notes"
)

// ActivityLevel is the discrete note-arrival classification.
type ActivityLevel string

const (
	ActivityHigh   ActivityLevel = "high"
	ActivityMedium ActivityLevel = "medium"
	ActivityLow    ActivityLevel = "low"
)

// interactionScanNotes is how many of the newest notes are checked for
// interaction keywords.
const (
	interactionScanNotes = 5
	minStableNotes       = 3
	minRateSpanSeconds   = 0.1
)

// Activity is the classifier's view of the recent note stream.
type Activity struct {
	Level              ActivityLevel `json:"level"`
	NoteRate           float64       `json:"note_rate"`
	RecentNotes        int           `json:"recent_notes"`
	HasUserInteraction bool          `json:"has_user_interaction"`
	IsStable           bool          `json:"is_stable"`
}

// ClassifyActivity inspects resolved, sorted notes as seen at nowMS
// (session-relative). A negative nowMS means "at the newest note".
func ClassifyActivity(ns []notes.Note, nowMS int64, cfg config.ActivityConfig) Activity {
	if nowMS < 0 {
		nowMS = 0
		if len(ns) > 0 {
			nowMS = ns[len(ns)-1].ElapsedMS(0)
		}
	}

	rateWindow := within(ns, nowMS, cfg.RateLookback.Milliseconds())
	rate := noteRate(rateWindow, nowMS, cfg.RateLookback.Milliseconds())

	level := ActivityLow
	switch {
	case rate > cfg.HighRate:
		level = ActivityHigh
	case rate > cfg.MediumRate:
		level = ActivityMedium
	}

	interactionWindow := within(ns, nowMS, cfg.InteractionLookback.Milliseconds())
	return Activity{
		Level:              level,
		NoteRate:           rate,
		RecentNotes:        len(rateWindow),
		HasUserInteraction: hasUserInteraction(interactionWindow),
		IsStable:           isStable(interactionWindow, cfg.StableStdDev),
	}
}

// within returns the notes whose offset lies in [nowMS-lookbackMS, nowMS].
func within(ns []notes.Note, nowMS, lookbackMS int64) []notes.Note {
	from := nowMS - lookbackMS
	var out []notes.Note
	for _, n := range ns {
		e := n.ElapsedMS(0)
		if e >= from && e <= nowMS {
			out = append(out, n)
		}
	}
	return out
}

// noteRate is notes per second over the span from the oldest recent note to
// now. With fewer than two notes the span is the whole lookback, so a lone
// note never reads as a burst.
func noteRate(recent []notes.Note, nowMS, lookbackMS int64) float64 {
	if len(recent) == 0 {
		return 0
	}
	spanMS := lookbackMS
	if len(recent) >= 2 {
		spanMS = nowMS - recent[0].ElapsedMS(0)
	}
	span := math.Max(minRateSpanSeconds, float64(spanMS)/1000)
	return float64(len(recent)) / span
}

func hasUserInteraction(recent []notes.Note) bool {
	start := len(recent) - interactionScanNotes
	if start < 0 {
		start = 0
	}
	for _, n := range recent[start:] {
		if IsInteraction(n) {
			return true
		}
	}
	return false
}

func isStable(recent []notes.Note, maxStdDev float64) bool {
	if len(recent) < minStableNotes {
		return false
	}
	scores := make([]float64, len(recent))
	for i, n := range recent {
		scores[i] = n.ScoreValue()
	}
	_, variance := meanVariance(scores)
	return math.Sqrt(variance) < maxStdDev
}
