package engine

import (
	"math"
	"reflect"
	"strings"
)

const scoreDeltaScale = 10.0

// StateSnapshot is the caller's view of the system under test at one point.
// Every field is optional; only fields present on both sides are compared.
type StateSnapshot struct {
	Score  *float64       `json:"score,omitempty"`
	Issues []string       `json:"issues,omitempty"`
	State  map[string]any `json:"state,omitempty"`
}

// StateChangeMagnitude is the mean of the score, issue and state-key deltas
// between prev and cur, each in [0,1]. Missing snapshots give 0.
func StateChangeMagnitude(cur, prev *StateSnapshot) float64 {
	if cur == nil || prev == nil {
		return 0
	}

	var sum float64
	parts := 0

	if cur.Score != nil && prev.Score != nil {
		sum += math.Min(1, math.Abs(*cur.Score-*prev.Score)/scoreDeltaScale)
		parts++
	}
	if len(cur.Issues) > 0 || len(prev.Issues) > 0 {
		sum += 1 - jaccard(issueSet(cur.Issues), issueSet(prev.Issues))
		parts++
	}
	if len(cur.State) > 0 || len(prev.State) > 0 {
		sum += keyDiffRatio(cur.State, prev.State)
		parts++
	}

	if parts == 0 {
		return 0
	}
	return clampUnit(sum / float64(parts))
}

func issueSet(issues []string) map[string]struct{} {
	set := make(map[string]struct{}, len(issues))
	for _, i := range issues {
		if k := strings.ToLower(strings.TrimSpace(i)); k != "" {
			set[k] = struct{}{}
		}
	}
	return set
}

// keyDiffRatio is the share of top-level keys that were added, removed or
// changed value between the two maps.
func keyDiffRatio(a, b map[string]any) float64 {
	keys := make(map[string]struct{}, len(a)+len(b))
	for k := range a {
		keys[k] = struct{}{}
	}
	for k := range b {
		keys[k] = struct{}{}
	}
	if len(keys) == 0 {
		return 0
	}

	changed := 0
	for k := range keys {
		av, aok := a[k]
		bv, bok := b[k]
		if aok != bok || !reflect.DeepEqual(av, bv) {
			changed++
		}
	}
	return float64(changed) / float64(len(keys))
}
