package engine

import (
	"math"
	"strings"
	"unicode"
)

// Coherence component weights. Single-scale and multi-scale aggregation
// share this one vector.
const (
	weightDirection = 0.35
	weightStability = 0.25
	weightVariance  = 0.25
	weightOverlap   = 0.15

	// neutralCoherence replaces NaN or Inf results.
	neutralCoherence = 0.5
	// minMaxVariance floors the variance normaliser.
	minMaxVariance = 10.0
	// minOverlapWordLen excludes short function words from the overlap sets.
	minOverlapWordLen = 4
)

// CoherenceBreakdown exposes the components behind a coherence score.
type CoherenceBreakdown struct {
	Direction float64 `json:"direction"`
	Stability float64 `json:"stability"`
	Variance  float64 `json:"variance"`
	Overlap   float64 `json:"overlap"`
	Flips     int     `json:"flips"`
	Score     float64 `json:"score"`
}

// AnalyzeCoherence scores how consistent a sequence of window averages is.
// texts holds each window's observation text and may be nil.
func AnalyzeCoherence(scores []float64, texts []string) CoherenceBreakdown {
	if len(scores) < 2 {
		return CoherenceBreakdown{Direction: 1, Stability: 1, Variance: 1, Overlap: 1, Score: 1}
	}

	deltas := len(scores) - 1
	flips := countFlips(scores)

	b := CoherenceBreakdown{Flips: flips}
	b.Direction = math.Max(0, 1-float64(flips)/math.Max(1, float64(deltas)))
	b.Stability = math.Max(0, 1-float64(flips)/math.Max(1, float64(len(scores)-2)))
	b.Variance = varianceCoherence(scores)
	b.Overlap = observationOverlap(texts)

	score := weightDirection*b.Direction +
		weightStability*b.Stability +
		weightVariance*b.Variance +
		weightOverlap*b.Overlap
	b.Score = clampUnit(score)
	return b
}

// Coherence is AnalyzeCoherence reduced to its score.
func Coherence(scores []float64, texts []string) float64 {
	return AnalyzeCoherence(scores, texts).Score
}

// countFlips counts direction reversals between successive non-zero deltas.
// A flat step carries no direction and neither breaks nor starts a run.
func countFlips(scores []float64) int {
	flips := 0
	prev := 0
	for i := 1; i < len(scores); i++ {
		sign := signOf(scores[i] - scores[i-1])
		if sign == 0 {
			continue
		}
		if prev != 0 && sign != prev {
			flips++
		}
		prev = sign
	}
	return flips
}

func signOf(v float64) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

// varianceCoherence normalises population variance against a range-based
// cap so high-range, low-mean series are penalised properly.
func varianceCoherence(scores []float64) float64 {
	mean, variance := meanVariance(scores)

	lo, hi := scores[0], scores[0]
	for _, s := range scores[1:] {
		lo = math.Min(lo, s)
		hi = math.Max(hi, s)
	}
	halfRange := (hi - lo) / 2
	maxVariance := math.Max(math.Max(halfRange*halfRange, (mean*0.5)*(mean*0.5)), minMaxVariance)

	return math.Max(0, 1-variance/maxVariance)
}

func meanVariance(xs []float64) (mean, variance float64) {
	if len(xs) == 0 {
		return 0, 0
	}
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))
	for _, x := range xs {
		d := x - mean
		variance += d * d
	}
	variance /= float64(len(xs))
	return mean, variance
}

// observationOverlap averages the Jaccard similarity of consecutive window
// word sets. Pairs where either side has no words are skipped; with no
// comparable pair the overlap is 1.
func observationOverlap(texts []string) float64 {
	if len(texts) < 2 {
		return 1
	}
	var sum float64
	pairs := 0
	prev := wordSet(texts[0], minOverlapWordLen)
	for _, t := range texts[1:] {
		cur := wordSet(t, minOverlapWordLen)
		if len(prev) > 0 && len(cur) > 0 {
			sum += jaccard(prev, cur)
			pairs++
		}
		prev = cur
	}
	if pairs == 0 {
		return 1
	}
	return sum / float64(pairs)
}

// wordSet lowercases text and returns its words of at least minLen runes.
func wordSet(text string, minLen int) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range words(text) {
		if len([]rune(w)) >= minLen {
			set[w] = struct{}{}
		}
	}
	return set
}

func words(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	inter := 0
	for w := range a {
		if _, ok := b[w]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 1
	}
	return float64(inter) / float64(union)
}

// clampUnit clamps v to [0,1]; NaN and Inf become the neutral 0.5.
func clampUnit(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return neutralCoherence
	}
	return math.Max(0, math.Min(1, v))
}
