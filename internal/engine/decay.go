package engine

// Decay weighting.
//
// Every note's weight decays exponentially with its age measured in window
// lengths from the session start:
//
//	weight = decayFactor ^ (elapsed / windowSize)
//
//   - Anchored to session start, not to the note's window start, so a late
//     window's notes keep only the residual weight of the global curve.
//   - decayFactor in (0,1): weight is non-increasing in elapsed.
//   - Multi-scale aggregation multiplies this recency term by an attention
//     factor (see attention.go); single-scale uses it alone.
//   - Computed in Go with math.Pow; weights underflow to 0 for very long
//     sessions, which Window.AvgScore treats as "no weight".

import "math"

// decayWeight returns decayFactor^(elapsedMS/windowMS).
func decayWeight(elapsedMS, windowMS int64, decayFactor float64) float64 {
	if windowMS <= 0 {
		return 1
	}
	w := math.Pow(decayFactor, float64(elapsedMS)/float64(windowMS))
	if math.IsNaN(w) || math.IsInf(w, 0) {
		return 0
	}
	return w
}
