package engine

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/lazypower/cadence/internal/config"
	"github.com/lazypower/cadence/internal/notes"
)

// ScaleResult is one scale's windows and coherence.
type ScaleResult struct {
	WindowSizeMS int64           `json:"window_size_ms"`
	Windows      []WindowSummary `json:"windows"`
	Coherence    float64         `json:"coherence"`
}

// MultiScaleResult holds every scale aggregated over the same snapshot.
type MultiScaleResult struct {
	Scales            map[string]ScaleResult `json:"scales"`
	Order             []string               `json:"order"`
	Summary           string                 `json:"summary"`
	CoherencePerScale map[string]float64     `json:"coherence_per_scale"`
}

// MultiScaleAggregator runs the window bucketing once per configured scale,
// weighting notes by recency times attention.
type MultiScaleAggregator struct {
	scales      []config.Scale
	decayFactor float64
	weigh       func(n notes.Note, windowMS int64, decayFactor float64) float64
}

// NewMultiScaleAggregator validates cfg and returns a MultiScaleAggregator.
func NewMultiScaleAggregator(cfg config.EngineConfig) (*MultiScaleAggregator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid engine config: %w", err)
	}
	scales := make([]config.Scale, len(cfg.Scales))
	copy(scales, cfg.Scales)
	return &MultiScaleAggregator{scales: scales, decayFactor: cfg.DecayFactor, weigh: attentionWeight}, nil
}

// Aggregate computes every scale concurrently. Scales share the input but
// nothing else. It fails on ctx cancellation or when a scale panics.
func (m *MultiScaleAggregator) Aggregate(ctx context.Context, ns []notes.Note) (MultiScaleResult, error) {
	resolved := notes.Resolve(ns, 0)
	results := make([]ScaleResult, len(m.scales))

	g, gCtx := errgroup.WithContext(ctx)
	for i, sc := range m.scales {
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("scale %s panic: %v", sc.Name, r)
				}
			}()
			if err := gCtx.Err(); err != nil {
				return err
			}
			results[i] = m.aggregateScale(resolved, sc.WindowSize.Milliseconds())
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return MultiScaleResult{}, fmt.Errorf("multi-scale aggregate: %w", err)
	}

	out := MultiScaleResult{
		Scales:            make(map[string]ScaleResult, len(m.scales)),
		Order:             make([]string, len(m.scales)),
		CoherencePerScale: make(map[string]float64, len(m.scales)),
	}
	for i, sc := range m.scales {
		out.Scales[sc.Name] = results[i]
		out.Order[i] = sc.Name
		out.CoherencePerScale[sc.Name] = results[i].Coherence
	}
	out.Summary = describeScales(out)
	return out, nil
}

func (m *MultiScaleAggregator) aggregateScale(resolved []notes.Note, windowMS int64) ScaleResult {
	if len(resolved) == 0 {
		return ScaleResult{WindowSizeMS: windowMS, Windows: []WindowSummary{}, Coherence: 1}
	}
	windows := bucket(resolved, windowMS, func(n notes.Note) float64 {
		return m.weigh(n, windowMS, m.decayFactor)
	})
	summaries := summarize(windows)
	return ScaleResult{
		WindowSizeMS: windowMS,
		Windows:      summaries,
		Coherence:    Coherence(avgScores(summaries), windowTexts(summaries)),
	}
}

func describeScales(r MultiScaleResult) string {
	parts := make([]string, 0, len(r.Order))
	for _, name := range r.Order {
		sr := r.Scales[name]
		if len(sr.Windows) == 0 {
			parts = append(parts, fmt.Sprintf("%s: no notes", name))
			continue
		}
		first, last := sr.Windows[0], sr.Windows[len(sr.Windows)-1]
		parts = append(parts, fmt.Sprintf("%s: %.1f→%.1f (%.0f%% coherent)",
			name, first.AvgScore, last.AvgScore, sr.Coherence*100))
	}
	return strings.Join(parts, "; ")
}
