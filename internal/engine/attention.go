package engine

import (
	"math"
	"strings"

	"github.com/lazypower/cadence/internal/notes"
)

// Attention multipliers applied on top of recency decay in multi-scale
// aggregation. The product is clamped to [minAttention, maxAttention] so
// keyword-dense notes cannot inflate their weight without bound.
const (
	extremeBoost  = 1.5
	issueBoost    = 1.2
	criticalBoost = 1.3
	actionBoost   = 1.5
	noveltyBoost  = 1.3

	extremeHigh = 8.0
	extremeLow  = 2.0

	minAttention = 0.1
	maxAttention = 5.0
)

var criticalKeywords = []string{"error", "fail", "broken", "critical", "important"}

var interactionKeywords = []string{
	"click", "tap", "type", "typed", "typing", "input", "submit", "scroll",
	"press", "hover", "drag", "select", "keyboard", "user action", "interact",
}

// salience upweights extreme scores, notes carrying issues and notes whose
// text mentions a critical keyword.
func salience(n notes.Note) float64 {
	s := 1.0
	if n.HasScore() {
		if v := n.ScoreValue(); v >= extremeHigh || v <= extremeLow {
			s *= extremeBoost
		}
	}
	if len(n.Issues) > 0 {
		s *= issueBoost
	}
	if containsAny(n.Text(), criticalKeywords) {
		s *= criticalBoost
	}
	return s
}

// IsInteraction reports whether n records a user interaction, either
// explicitly or through its step/observation text.
func IsInteraction(n notes.Note) bool {
	return n.Interaction || containsAny(n.Text(), interactionKeywords)
}

func isNovel(n notes.Note) bool {
	obs := strings.ToLower(n.Observation)
	if strings.Contains(obs, "change") {
		return true
	}
	for _, w := range words(obs) {
		if w == "new" {
			return true
		}
	}
	return false
}

// attention is the clamped product of salience, action and novelty boosts.
func attention(n notes.Note) float64 {
	a := salience(n)
	if IsInteraction(n) {
		a *= actionBoost
	}
	if isNovel(n) {
		a *= noveltyBoost
	}
	return math.Max(minAttention, math.Min(maxAttention, a))
}

// attentionWeight combines recency decay and attention for one note.
func attentionWeight(n notes.Note, windowMS int64, decayFactor float64) float64 {
	return decayWeight(n.ElapsedMS(0), windowMS, decayFactor) * attention(n)
}

func containsAny(text string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}
