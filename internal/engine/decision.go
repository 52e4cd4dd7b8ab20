package engine

import (
	"fmt"
	"strings"
	"time"

	"github.com/lazypower/cadence/internal/config"
	"github.com/lazypower/cadence/internal/notes"
)

// Urgency is the priority attached to a decision.
type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyMedium Urgency = "medium"
	UrgencyHigh   Urgency = "high"
)

// Decision says whether a downstream evaluation should run now.
type Decision struct {
	ShouldPrompt bool    `json:"should_prompt"`
	Reason       string  `json:"reason"`
	Urgency      Urgency `json:"urgency"`
}

// DecisionContext carries the caller-supplied flags and state pair.
type DecisionContext struct {
	Stage         string         `json:"stage,omitempty"`
	Critical      bool           `json:"critical,omitempty"`
	GoalCompleted bool           `json:"goal_completed,omitempty"`
	RecentAction  bool           `json:"recent_action,omitempty"`
	CurrentState  *StateSnapshot `json:"current_state,omitempty"`
	PreviousState *StateSnapshot `json:"previous_state,omitempty"`
	LastPromptAt  *time.Time     `json:"last_prompt_at,omitempty"`
	Now           time.Time      `json:"-"`
}

var decisionStages = map[string]bool{
	"decision":   true,
	"checkpoint": true,
	"submit":     true,
	"complete":   true,
	"final":      true,
}

// IsDecisionPoint reports whether the context marks an explicit decision
// point: a critical flag, a completed goal or a decision stage.
func (dc DecisionContext) IsDecisionPoint() bool {
	return dc.Critical || dc.GoalCompleted || decisionStages[strings.ToLower(strings.TrimSpace(dc.Stage))]
}

// DecisionManager decides, from scratch on every call, whether enough signal
// has accumulated to justify an evaluation.
type DecisionManager struct {
	agg                  *Aggregator
	minNotes             int
	coherenceThreshold   float64
	urgencyThreshold     float64
	stateChangeThreshold float64
	maxWait              time.Duration
}

// NewDecisionManager validates cfg and returns a DecisionManager.
func NewDecisionManager(cfg config.EngineConfig) (*DecisionManager, error) {
	agg, err := NewAggregator(cfg)
	if err != nil {
		return nil, err
	}
	return &DecisionManager{
		agg:                  agg,
		minNotes:             cfg.MinNotesForPrompt,
		coherenceThreshold:   cfg.CoherenceThreshold,
		urgencyThreshold:     cfg.UrgencyThreshold,
		stateChangeThreshold: cfg.StateChangeThreshold,
		maxWait:              cfg.MaxWaitTime,
	}, nil
}

// Decide applies the rules in order; the first match wins.
func (m *DecisionManager) Decide(ns []notes.Note, dc DecisionContext) Decision {
	if len(ns) < m.minNotes {
		return Decision{
			Reason:  fmt.Sprintf("only %d note(s), need %d", len(ns), m.minNotes),
			Urgency: UrgencyLow,
		}
	}

	if dc.IsDecisionPoint() {
		return Decision{ShouldPrompt: true, Reason: decisionPointReason(dc), Urgency: UrgencyHigh}
	}

	resolved := notes.Resolve(ns, 0)
	coherence := m.agg.Aggregate(resolved).Coherence
	previous := coherence
	if len(resolved) > 0 {
		previous = m.agg.Aggregate(resolved[:len(resolved)-1]).Coherence
	}
	if drop := previous - coherence; drop > m.urgencyThreshold {
		return Decision{
			ShouldPrompt: true,
			Reason:       fmt.Sprintf("coherence dropped from %.2f to %.2f", previous, coherence),
			Urgency:      UrgencyHigh,
		}
	}

	magnitude := StateChangeMagnitude(dc.CurrentState, dc.PreviousState)
	if dc.RecentAction && magnitude > m.stateChangeThreshold {
		return Decision{
			ShouldPrompt: true,
			Reason:       fmt.Sprintf("user action changed state (magnitude %.2f)", magnitude),
			Urgency:      UrgencyMedium,
		}
	}
	if coherence >= m.coherenceThreshold && magnitude > m.stateChangeThreshold {
		return Decision{
			ShouldPrompt: true,
			Reason:       fmt.Sprintf("coherent trend (%.2f) with significant state change (%.2f)", coherence, magnitude),
			Urgency:      UrgencyMedium,
		}
	}

	if dc.LastPromptAt != nil && m.maxWait > 0 {
		now := dc.Now
		if now.IsZero() {
			now = time.Now()
		}
		if waited := now.Sub(*dc.LastPromptAt); waited > m.maxWait {
			return Decision{
				ShouldPrompt: true,
				Reason:       fmt.Sprintf("no evaluation for %s (max wait %s)", waited.Round(time.Second), m.maxWait),
				Urgency:      UrgencyLow,
			}
		}
	}

	return Decision{
		Reason:  fmt.Sprintf("waiting: coherence %.2f, state change %.2f", coherence, magnitude),
		Urgency: UrgencyLow,
	}
}

func decisionPointReason(dc DecisionContext) string {
	switch {
	case dc.Critical:
		return "critical decision point"
	case dc.GoalCompleted:
		return "goal completed"
	default:
		return fmt.Sprintf("decision point at stage %q", dc.Stage)
	}
}
