package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lazypower/cadence/internal/config"
	"github.com/lazypower/cadence/internal/notes"
)

func newTestDecisionManager(t *testing.T) *DecisionManager {
	t.Helper()
	m, err := NewDecisionManager(config.DefaultEngine())
	require.NoError(t, err)
	return m
}

func ptr[T any](v T) *T { return &v }

func steadyNotes() []notes.Note {
	return []notes.Note{note(0, 5, "form ready"), note(1000, 5, "form ready"), note(2000, 5, "form ready")}
}

func TestDecideTooFewNotes(t *testing.T) {
	m := newTestDecisionManager(t)
	d := m.Decide(steadyNotes()[:2], DecisionContext{Critical: true})

	assert.False(t, d.ShouldPrompt)
	assert.Equal(t, UrgencyLow, d.Urgency)
	assert.Contains(t, d.Reason, "need 3")
}

func TestNewDecisionManagerRequiresMinNotes(t *testing.T) {
	cfg := config.DefaultEngine()
	cfg.MinNotesForPrompt = 0
	_, err := NewDecisionManager(cfg)
	require.Error(t, err)
}

func TestDecideEmptySessionWithoutMinimum(t *testing.T) {
	m := newTestDecisionManager(t)
	m.minNotes = 0

	var d Decision
	require.NotPanics(t, func() { d = m.Decide(nil, DecisionContext{}) })
	assert.False(t, d.ShouldPrompt)
}

func TestDecideDecisionPoint(t *testing.T) {
	m := newTestDecisionManager(t)
	cases := []DecisionContext{
		{Critical: true},
		{GoalCompleted: true},
		{Stage: "checkpoint"},
		{Stage: " Submit "},
		{Stage: "final"},
	}
	for _, dc := range cases {
		d := m.Decide(steadyNotes(), dc)
		assert.True(t, d.ShouldPrompt, "%+v", dc)
		assert.Equal(t, UrgencyHigh, d.Urgency, "%+v", dc)
	}

	assert.False(t, DecisionContext{Stage: "browse"}.IsDecisionPoint())
}

func TestDecideCoherenceDrop(t *testing.T) {
	m := newTestDecisionManager(t)
	// 2 → 4 is a clean rise; the crash to 0 reverses it
	ns := []notes.Note{note(0, 2, ""), note(10000, 4, ""), note(20000, 0, "")}

	d := m.Decide(ns, DecisionContext{})
	assert.True(t, d.ShouldPrompt)
	assert.Equal(t, UrgencyHigh, d.Urgency)
	assert.Contains(t, d.Reason, "coherence dropped")
}

func TestDecideRecentActionWithStateChange(t *testing.T) {
	m := newTestDecisionManager(t)
	d := m.Decide(steadyNotes(), DecisionContext{
		RecentAction:  true,
		CurrentState:  &StateSnapshot{Score: ptr(8.0)},
		PreviousState: &StateSnapshot{Score: ptr(5.0)},
	})

	assert.True(t, d.ShouldPrompt)
	assert.Equal(t, UrgencyMedium, d.Urgency)
	assert.Contains(t, d.Reason, "user action")
}

func TestDecideCoherentTrendWithStateChange(t *testing.T) {
	m := newTestDecisionManager(t)
	d := m.Decide(steadyNotes(), DecisionContext{
		CurrentState:  &StateSnapshot{Score: ptr(8.0)},
		PreviousState: &StateSnapshot{Score: ptr(5.0)},
	})

	assert.True(t, d.ShouldPrompt)
	assert.Equal(t, UrgencyMedium, d.Urgency)
	assert.Contains(t, d.Reason, "coherent trend")
}

func TestDecideIncoherentWaits(t *testing.T) {
	m := newTestDecisionManager(t)
	var ns []notes.Note
	for i, s := range []float64{9, 1, 9, 1, 9} {
		ns = append(ns, note(int64(i)*10000, s, ""))
	}

	d := m.Decide(ns, DecisionContext{
		CurrentState:  &StateSnapshot{Score: ptr(8.0)},
		PreviousState: &StateSnapshot{Score: ptr(5.0)},
	})
	assert.False(t, d.ShouldPrompt)
	assert.Equal(t, UrgencyLow, d.Urgency)
	assert.Contains(t, d.Reason, "coherence 0.25")
	assert.Contains(t, d.Reason, "state change 0.30")
}

func TestDecideSmallChangeWaits(t *testing.T) {
	m := newTestDecisionManager(t)
	d := m.Decide(steadyNotes(), DecisionContext{
		RecentAction:  true,
		CurrentState:  &StateSnapshot{Score: ptr(5.5)},
		PreviousState: &StateSnapshot{Score: ptr(5.0)},
	})
	assert.False(t, d.ShouldPrompt)
	assert.Equal(t, UrgencyLow, d.Urgency)
}

func TestDecideMaxWait(t *testing.T) {
	m := newTestDecisionManager(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	d := m.Decide(steadyNotes(), DecisionContext{LastPromptAt: ptr(now.Add(-31 * time.Second)), Now: now})
	assert.True(t, d.ShouldPrompt)
	assert.Equal(t, UrgencyLow, d.Urgency)

	d = m.Decide(steadyNotes(), DecisionContext{LastPromptAt: ptr(now.Add(-10 * time.Second)), Now: now})
	assert.False(t, d.ShouldPrompt)
}

func TestDecideIsStateless(t *testing.T) {
	m := newTestDecisionManager(t)
	dc := DecisionContext{Stage: "browse"}
	assert.Equal(t, m.Decide(steadyNotes(), dc), m.Decide(steadyNotes(), dc))
}

func TestStateChangeMagnitude(t *testing.T) {
	assert.Zero(t, StateChangeMagnitude(nil, &StateSnapshot{Score: ptr(1.0)}))
	assert.Zero(t, StateChangeMagnitude(&StateSnapshot{}, &StateSnapshot{}))

	score := StateChangeMagnitude(&StateSnapshot{Score: ptr(8.0)}, &StateSnapshot{Score: ptr(5.0)})
	assert.InDelta(t, 0.3, score, 1e-9)

	capped := StateChangeMagnitude(&StateSnapshot{Score: ptr(40.0)}, &StateSnapshot{Score: ptr(0.0)})
	assert.Equal(t, 1.0, capped)

	issues := StateChangeMagnitude(
		&StateSnapshot{Issues: []string{"a", "b"}},
		&StateSnapshot{Issues: []string{"B", "c"}},
	)
	assert.InDelta(t, 2.0/3.0, issues, 1e-9)

	state := StateChangeMagnitude(
		&StateSnapshot{State: map[string]any{"page": "cart", "items": 2}},
		&StateSnapshot{State: map[string]any{"page": "cart", "items": 3, "modal": true}},
	)
	assert.InDelta(t, 2.0/3.0, state, 1e-9)

	combined := StateChangeMagnitude(
		&StateSnapshot{Score: ptr(8.0), Issues: []string{"a"}},
		&StateSnapshot{Score: ptr(5.0), Issues: []string{"a"}},
	)
	assert.InDelta(t, 0.15, combined, 1e-9)
}
