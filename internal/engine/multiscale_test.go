package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lazypower/cadence/internal/config"
	"github.com/lazypower/cadence/internal/notes"
)

func newTestMultiScale(t *testing.T) *MultiScaleAggregator {
	t.Helper()
	m, err := NewMultiScaleAggregator(config.DefaultEngine())
	require.NoError(t, err)
	return m
}

func TestMultiScaleEmpty(t *testing.T) {
	res, err := newTestMultiScale(t).Aggregate(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"immediate", "short", "medium", "long"}, res.Order)
	for _, name := range res.Order {
		sr := res.Scales[name]
		assert.Empty(t, sr.Windows)
		assert.Equal(t, 1.0, sr.Coherence)
	}
	assert.Contains(t, res.Summary, "immediate: no notes")
}

func TestMultiScaleWindowCountsShrinkWithScale(t *testing.T) {
	var ns []notes.Note
	for i := range 170 {
		ns = append(ns, note(int64(i)*700, float64(3+i%5), "page scrolls"))
	}

	res, err := newTestMultiScale(t).Aggregate(context.Background(), ns)
	require.NoError(t, err)

	prev := len(res.Scales[res.Order[0]].Windows)
	for _, name := range res.Order[1:] {
		n := len(res.Scales[name].Windows)
		assert.LessOrEqual(t, n, prev, "scale %s", name)
		prev = n
	}
	assert.Equal(t, int64(1000), res.Scales["immediate"].WindowSizeMS)
	assert.Equal(t, int64(60000), res.Scales["long"].WindowSizeMS)
	for name, c := range res.CoherencePerScale {
		assert.GreaterOrEqual(t, c, 0.0, name)
		assert.LessOrEqual(t, c, 1.0, name)
	}
}

func TestMultiScaleAttentionFavoursInteraction(t *testing.T) {
	ns := []notes.Note{note(0, 7, "click the button"), note(0, 5, "page idle")}

	res, err := newTestMultiScale(t).Aggregate(context.Background(), ns)
	require.NoError(t, err)

	w := res.Scales["immediate"].Windows
	require.Len(t, w, 1)
	assert.InDelta(t, (7*1.5+5)/2.5, w[0].AvgScore, 1e-9)
}

func TestMultiScaleCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestMultiScale(t).Aggregate(ctx, []notes.Note{note(0, 5, "")})
	require.ErrorIs(t, err, context.Canceled)
}

func TestMultiScaleScalePanicBecomesError(t *testing.T) {
	m := newTestMultiScale(t)
	m.weigh = func(notes.Note, int64, float64) float64 { panic("boom") }

	var err error
	require.NotPanics(t, func() {
		_, err = m.Aggregate(context.Background(), []notes.Note{note(0, 5, "")})
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panic: boom")
}

func TestMultiScaleRejectsSubMillisecondScale(t *testing.T) {
	cfg := config.DefaultEngine()
	cfg.Scales = []config.Scale{{Name: "tiny", WindowSize: 999 * time.Microsecond}}
	_, err := NewMultiScaleAggregator(cfg)
	require.Error(t, err)
}

func TestMultiScaleCustomScales(t *testing.T) {
	cfg := config.DefaultEngine()
	cfg.Scales = []config.Scale{{Name: "tick", WindowSize: 2 * time.Second}}
	_, err := NewMultiScaleAggregator(cfg)
	require.NoError(t, err)

	cfg.Scales = nil
	_, err = NewMultiScaleAggregator(cfg)
	require.Error(t, err)
}

func TestAttentionBoosts(t *testing.T) {
	plain := note(0, 5, "page idle")
	assert.Equal(t, 1.0, attention(plain))

	extreme := note(0, 9, "page idle")
	assert.InDelta(t, 1.5, attention(extreme), 1e-9)

	unscored := notes.Note{Observation: "page idle"}
	assert.Equal(t, 1.0, attention(unscored))

	everything := note(0, 9, "user clicked, new error appeared")
	everything.Issues = []string{"error banner"}
	got := attention(everything)
	assert.InDelta(t, 1.5*1.2*1.3*1.5*1.3, got, 1e-9)
	assert.LessOrEqual(t, got, maxAttention)
}
