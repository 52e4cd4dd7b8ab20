package engine

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCoherenceFewerThanTwoScores(t *testing.T) {
	assert.Equal(t, 1.0, Coherence(nil, nil))
	assert.Equal(t, 1.0, Coherence([]float64{4}, nil))
}

func TestCoherenceMonotonic(t *testing.T) {
	b := AnalyzeCoherence([]float64{1, 2, 3, 4, 5}, nil)

	assert.Equal(t, 0, b.Flips)
	assert.Equal(t, 1.0, b.Direction)
	assert.Equal(t, 1.0, b.Stability)
	// variance 2 against the floor of 10
	assert.InDelta(t, 0.8, b.Variance, 1e-9)
	assert.Equal(t, 1.0, b.Overlap)
	assert.InDelta(t, 0.95, b.Score, 1e-9)
}

func TestCoherenceAlternatingIsLow(t *testing.T) {
	b := AnalyzeCoherence([]float64{9, 1, 9, 1, 9}, nil)

	assert.Equal(t, 3, b.Flips)
	assert.InDelta(t, 0.25, b.Direction, 1e-9)
	assert.Equal(t, 0.0, b.Stability)
	assert.InDelta(t, 0.04, b.Variance, 1e-9)
	assert.InDelta(t, 0.2475, b.Score, 1e-9)
	assert.Less(t, b.Score, 0.3)
}

func TestCoherenceFlatDeltasCarryNoSign(t *testing.T) {
	assert.Equal(t, 0, countFlips([]float64{5, 5, 5, 5}))
	assert.Equal(t, 0, countFlips([]float64{1, 2, 2, 3}))
	assert.Equal(t, 1, countFlips([]float64{1, 2, 2, 1}))
	assert.Equal(t, 1.0, Coherence([]float64{5, 5, 5}, nil))
}

func TestCoherenceDegenerateInputs(t *testing.T) {
	assert.Equal(t, 0.5, Coherence([]float64{math.NaN(), 1}, nil))
	assert.Equal(t, 0.5, Coherence([]float64{math.Inf(1), 1}, nil))
}

func TestCoherenceBounded(t *testing.T) {
	series := [][]float64{
		{0, 10, 0, 10, 0, 10},
		{-5, 100, -40, 3},
		{1e9, -1e9},
		{0.1, 0.2, 0.1, 0.2},
	}
	for _, s := range series {
		c := Coherence(s, nil)
		assert.GreaterOrEqual(t, c, 0.0, "%v", s)
		assert.LessOrEqual(t, c, 1.0, "%v", s)
	}
}

func TestObservationOverlap(t *testing.T) {
	// no comparable pairs
	assert.Equal(t, 1.0, observationOverlap([]string{"", "button renders"}))

	same := observationOverlap([]string{"button renders correctly", "button renders correctly"})
	assert.Equal(t, 1.0, same)

	// "button" shared out of {button, renders, label, missing}
	partial := observationOverlap([]string{"button renders", "button label missing"})
	assert.InDelta(t, 0.25, partial, 1e-9)

	// words shorter than four characters are ignored
	assert.Equal(t, 1.0, observationOverlap([]string{"ok so", "it is"}))
}

func TestOverlapLowersCoherence(t *testing.T) {
	scores := []float64{3, 4, 5}
	shared := Coherence(scores, []string{"checkout page loads", "checkout page loads"})
	disjoint := Coherence(scores, []string{"checkout page loads", "profile avatar missing"})
	assert.Greater(t, shared, disjoint)
}
