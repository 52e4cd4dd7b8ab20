package engine

import "fmt"

// Conflict types.
const (
	ConflictMixedSentiment = "mixed_sentiment"
	ConflictScoreDecrease  = "score_decrease"
)

// Conflict flags a window whose notes disagree with themselves or with the
// window before it.
type Conflict struct {
	Type        string  `json:"type"`
	WindowIndex int     `json:"window_index"`
	Description string  `json:"description"`
	From        float64 `json:"from,omitempty"`
	To          float64 `json:"to,omitempty"`
}

var positiveWords = map[string]bool{
	"good": true, "great": true, "excellent": true, "clear": true, "works": true,
	"working": true, "success": true, "improved": true, "correct": true, "smooth": true,
}

var negativeWords = map[string]bool{
	"bad": true, "poor": true, "error": true, "fail": true, "failed": true,
	"broken": true, "wrong": true, "confusing": true, "slow": true, "issue": true,
}

// DetectConflicts flags mixed-sentiment windows and score decreases between
// consecutive windows.
func DetectConflicts(ws []WindowSummary) []Conflict {
	out := []Conflict{}
	for i, w := range ws {
		pos, neg := sentiment(w.Text())
		if pos && neg {
			out = append(out, Conflict{
				Type:        ConflictMixedSentiment,
				WindowIndex: w.Index,
				Description: fmt.Sprintf("window %s has both positive and negative observations", w.TimeRange),
			})
		}
		if i > 0 && w.AvgScore < ws[i-1].AvgScore {
			out = append(out, Conflict{
				Type:        ConflictScoreDecrease,
				WindowIndex: w.Index,
				Description: fmt.Sprintf("score dropped from %.1f to %.1f in window %s", ws[i-1].AvgScore, w.AvgScore, w.TimeRange),
				From:        ws[i-1].AvgScore,
				To:          w.AvgScore,
			})
		}
	}
	return out
}

func sentiment(text string) (positive, negative bool) {
	for _, w := range words(text) {
		if positiveWords[w] {
			positive = true
		}
		if negativeWords[w] {
			negative = true
		}
		if positive && negative {
			return
		}
	}
	return
}
