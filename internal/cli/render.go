package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/lazypower/cadence/internal/engine"
)

var (
	colorRed    = lipgloss.Color("#FF5F5F")
	colorGreen  = lipgloss.Color("#5FD75F")
	colorYellow = lipgloss.Color("#FFD75F")
	colorCyan   = lipgloss.Color("#5FD7FF")
	colorGray   = lipgloss.Color("#808080")
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorCyan)

	sectionStyle = lipgloss.NewStyle().
			Bold(true).
			MarginTop(1)

	labelStyle = lipgloss.NewStyle().
			Foreground(colorGray).
			Width(14)

	dimStyle = lipgloss.NewStyle().
			Foreground(colorGray)

	goodStyle = lipgloss.NewStyle().
			Foreground(colorGreen)

	warnStyle = lipgloss.NewStyle().
			Foreground(colorYellow)

	badStyle = lipgloss.NewStyle().
			Foreground(colorRed).
			Bold(true)
)

// coherenceStyle colours a coherence score by band.
func coherenceStyle(c float64) lipgloss.Style {
	switch {
	case c > 0.7:
		return goodStyle
	case c > 0.4:
		return warnStyle
	default:
		return badStyle
	}
}

func urgencyStyle(u engine.Urgency) lipgloss.Style {
	switch u {
	case engine.UrgencyHigh:
		return badStyle
	case engine.UrgencyMedium:
		return warnStyle
	default:
		return dimStyle
	}
}

func field(label, value string) string {
	return labelStyle.Render(label) + value + "\n"
}

// renderReport formats an analyze report for the terminal.
func renderReport(r report) string {
	var sb strings.Builder
	agg := r.Aggregated

	sb.WriteString(titleStyle.Render("cadence · "+r.Source) + "\n")
	sb.WriteString(field("notes", fmt.Sprintf("%d over %.1fs", agg.TotalNotes, float64(agg.TimeSpanMS)/1000)))
	sb.WriteString(field("coherence", coherenceStyle(agg.Coherence).Render(
		fmt.Sprintf("%.2f (%s)", agg.Coherence, engine.CoherenceLabel(agg.Coherence)))))
	sb.WriteString(field("activity", fmt.Sprintf("%s, %.2f notes/s", r.Activity.Level, r.Activity.NoteRate)))

	sb.WriteString(sectionStyle.Render("Windows") + "\n")
	if len(agg.Windows) == 0 {
		sb.WriteString(dimStyle.Render("  no notes available") + "\n")
	}
	for _, w := range agg.Windows {
		line := fmt.Sprintf("  %-14s avg %5.2f  %2d note(s)", w.TimeRange, w.AvgScore, w.NoteCount)
		if obs := w.Text(); obs != "" {
			line += dimStyle.Render("  " + truncate(obs, 60))
		}
		sb.WriteString(line + "\n")
	}

	if len(agg.Conflicts) > 0 {
		sb.WriteString(sectionStyle.Render("Conflicts") + "\n")
		for _, c := range agg.Conflicts {
			sb.WriteString("  " + warnStyle.Render(c.Type) + " " + c.Description + "\n")
		}
	}

	if len(r.MultiScale.Order) > 0 {
		sb.WriteString(sectionStyle.Render("Scales") + "\n")
		for _, name := range r.MultiScale.Order {
			sr := r.MultiScale.Scales[name]
			sb.WriteString(fmt.Sprintf("  %-10s %3d window(s)  coherence %s\n",
				name, len(sr.Windows), coherenceStyle(sr.Coherence).Render(fmt.Sprintf("%.2f", sr.Coherence))))
		}
	}

	if len(r.Patterns) > 0 {
		sb.WriteString(sectionStyle.Render("Patterns") + "\n")
		for _, p := range r.Patterns {
			sb.WriteString(fmt.Sprintf("  %s %s %s\n", p.Type, p.Description, dimStyle.Render(fmt.Sprintf("(%.0f%%)", p.Confidence*100))))
		}
	}

	sb.WriteString(sectionStyle.Render("Decision") + "\n")
	verdict := dimStyle.Render("wait")
	if r.Decision.ShouldPrompt {
		verdict = goodStyle.Render("evaluate now")
	}
	sb.WriteString(field("verdict", verdict+" "+urgencyStyle(r.Decision.Urgency).Render("["+string(r.Decision.Urgency)+"]")))
	sb.WriteString(field("reason", r.Decision.Reason))
	return sb.String()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
