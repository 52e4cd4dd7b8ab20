// Package notes holds the temporal notes recorded during one session and the
// append-only store that orders them for aggregation.
package notes

import (
	"math"
	"strings"
	"time"
)

// Note is a single timestamped observation about the system under test.
//
// Timestamp is wall-clock milliseconds since the Unix epoch; Elapsed is
// milliseconds since the session started. Either may be absent. Score is a
// pointer so that "no score" and "score 0" stay distinguishable.
type Note struct {
	Timestamp   int64          `json:"timestamp,omitempty" yaml:"timestamp,omitempty"`
	Elapsed     *int64         `json:"elapsed,omitempty" yaml:"elapsed,omitempty"`
	Score       *float64       `json:"score,omitempty" yaml:"score,omitempty"`
	Observation string         `json:"observation,omitempty" yaml:"observation,omitempty"`
	Step        string         `json:"step,omitempty" yaml:"step,omitempty"`
	Issues      []string       `json:"issues,omitempty" yaml:"issues,omitempty"`
	Interaction bool           `json:"interaction,omitempty" yaml:"interaction,omitempty"`
	State       map[string]any `json:"state,omitempty" yaml:"state,omitempty"`
}

// ScoreValue returns the note's score, or 0 when none was recorded or the
// recorded value is not finite.
func (n Note) ScoreValue() float64 {
	if n.Score == nil || math.IsNaN(*n.Score) || math.IsInf(*n.Score, 0) {
		return 0
	}
	return *n.Score
}

// HasScore reports whether the note carries an explicit score.
func (n Note) HasScore() bool {
	return n.Score != nil
}

// ElapsedMS resolves the note's offset from sessionStart (epoch ms).
// Elapsed wins over Timestamp. Unresolvable or negative offsets clamp to 0.
func (n Note) ElapsedMS(sessionStart int64) int64 {
	var e int64
	switch {
	case n.Elapsed != nil:
		e = *n.Elapsed
	case n.Timestamp > 0 && sessionStart > 0:
		e = n.Timestamp - sessionStart
	}
	if e < 0 {
		return 0
	}
	return e
}

// Text returns the step and observation joined, lowercased, for keyword scans.
func (n Note) Text() string {
	if n.Step == "" {
		return strings.ToLower(n.Observation)
	}
	return strings.ToLower(n.Step + " " + n.Observation)
}

// WithElapsed returns a copy of n with Elapsed pinned to ms.
func (n Note) WithElapsed(ms int64) Note {
	n.Elapsed = &ms
	return n
}

// Scored is a convenience constructor used by tests and instrumentation.
func Scored(elapsed time.Duration, score float64, observation string) Note {
	ms := elapsed.Milliseconds()
	return Note{Elapsed: &ms, Score: &score, Observation: observation}
}
