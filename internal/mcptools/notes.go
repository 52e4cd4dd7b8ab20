package mcptools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/lazypower/cadence/internal/notes"
	"github.com/lazypower/cadence/internal/session"
)

// NoteAddTool handles the note_add MCP tool.
type NoteAddTool struct {
	reg *session.Registry
}

// NewNoteAddTool creates a NoteAddTool over reg.
func NewNoteAddTool(reg *session.Registry) *NoteAddTool {
	return &NoteAddTool{reg: reg}
}

// Definition returns the MCP tool definition for note_add.
func (t *NoteAddTool) Definition() mcp.Tool {
	return mcp.NewTool("note_add",
		mcp.WithDescription(
			"Record one or more timestamped notes for a session. The session is created on first use.",
		),
		mcp.WithString("session_id",
			mcp.Required(),
			mcp.Description("Session to record into"),
		),
		mcp.WithString("notes",
			mcp.Required(),
			mcp.Description(`A note object or array of notes as JSON, e.g. [{"elapsed":1200,"score":6,"observation":"cart renders"}]`),
		),
		mcp.WithString("project",
			mcp.Description("Project name, used when the session is created"),
		),
	)
}

// Handle processes the note_add tool call.
func (t *NoteAddTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("session_id", "")
	if id == "" {
		return mcp.NewToolResultError("'session_id' is required"), nil
	}

	var raw string
	switch v := req.GetArguments()["notes"].(type) {
	case string:
		raw = v
	case nil:
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid notes: %v", err)), nil
		}
		raw = string(b)
	}
	ns, err := notes.ParseJSON(strings.NewReader(raw))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid notes: %v", err)), nil
	}
	if len(ns) == 0 {
		return mcp.NewToolResultError("'notes' is required"), nil
	}

	if _, _, err := t.reg.Init(id, req.GetString("project", ""), time.Time{}); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to start session: %v", err)), nil
	}
	count, err := t.reg.AddNotes(id, ns...)
	if err != nil {
		return sessionError(id, err), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Recorded %d note(s) in session %s (%d total).", len(ns), id, count)), nil
}

// AggregateTool handles the note_aggregate MCP tool.
type AggregateTool struct {
	reg *session.Registry
}

// NewAggregateTool creates an AggregateTool over reg.
func NewAggregateTool(reg *session.Registry) *AggregateTool {
	return &AggregateTool{reg: reg}
}

// Definition returns the MCP tool definition for note_aggregate.
func (t *AggregateTool) Definition() mcp.Tool {
	return mcp.NewTool("note_aggregate",
		mcp.WithDescription(
			"Aggregate a session's notes into time windows and report coherence, conflicts, patterns and the multi-scale view.",
		),
		mcp.WithString("session_id",
			mcp.Required(),
			mcp.Description("Session to aggregate"),
		),
	)
}

// Handle processes the note_aggregate tool call.
func (t *AggregateTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("session_id", "")
	if id == "" {
		return mcp.NewToolResultError("'session_id' is required"), nil
	}
	res, err := t.reg.Aggregate(ctx, id)
	if err != nil {
		return sessionError(id, err), nil
	}

	agg := res.Aggregated
	var sb strings.Builder
	fmt.Fprintf(&sb, "## Aggregation: %s\n\n", id)
	fmt.Fprintf(&sb, "- **Notes**: %d over %dms\n", agg.TotalNotes, agg.TimeSpanMS)
	fmt.Fprintf(&sb, "- **Coherence**: %.2f\n", agg.Coherence)
	fmt.Fprintf(&sb, "- **Served from**: %s\n", res.Path)
	fmt.Fprintf(&sb, "- **Activity**: %s (%.2f notes/s)\n", res.Activity.Level, res.Activity.NoteRate)

	sb.WriteString("\n### Windows\n\n")
	sb.WriteString(agg.Summary)
	sb.WriteString("\n")

	if len(agg.Conflicts) > 0 {
		sb.WriteString("\n### Conflicts\n\n")
		for _, c := range agg.Conflicts {
			fmt.Fprintf(&sb, "- [%s] %s\n", c.Type, c.Description)
		}
	}
	if len(res.Patterns) > 0 {
		sb.WriteString("\n### Patterns\n\n")
		for _, p := range res.Patterns {
			fmt.Fprintf(&sb, "- [%s] %s (%.0f%%)\n", p.Type, p.Description, p.Confidence*100)
		}
	}
	if res.MultiScale.Summary != "" {
		sb.WriteString("\n### Scales\n\n")
		sb.WriteString(res.MultiScale.Summary)
		sb.WriteString("\n")
	}

	return mcp.NewToolResultText(sb.String()), nil
}

// ActivityTool handles the note_activity MCP tool.
type ActivityTool struct {
	reg *session.Registry
}

// NewActivityTool creates an ActivityTool over reg.
func NewActivityTool(reg *session.Registry) *ActivityTool {
	return &ActivityTool{reg: reg}
}

// Definition returns the MCP tool definition for note_activity.
func (t *ActivityTool) Definition() mcp.Tool {
	return mcp.NewTool("note_activity",
		mcp.WithDescription("Classify how busy a session is right now: note rate, user interaction and score stability."),
		mcp.WithString("session_id",
			mcp.Required(),
			mcp.Description("Session to classify"),
		),
	)
}

// Handle processes the note_activity tool call.
func (t *ActivityTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("session_id", "")
	if id == "" {
		return mcp.NewToolResultError("'session_id' is required"), nil
	}
	act, err := t.reg.Activity(id)
	if err != nil {
		return sessionError(id, err), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "## Activity: %s\n\n", id)
	fmt.Fprintf(&sb, "- **Level**: %s\n", act.Level)
	fmt.Fprintf(&sb, "- **Rate**: %.2f notes/s (%d recent)\n", act.NoteRate, act.RecentNotes)
	fmt.Fprintf(&sb, "- **User interaction**: %t\n", act.HasUserInteraction)
	fmt.Fprintf(&sb, "- **Stable**: %t\n", act.IsStable)
	return mcp.NewToolResultText(sb.String()), nil
}
