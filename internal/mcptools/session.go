package mcptools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/lazypower/cadence/internal/session"
)

// SessionStatsTool handles the session_stats MCP tool.
type SessionStatsTool struct {
	reg *session.Registry
}

// NewSessionStatsTool creates a SessionStatsTool over reg.
func NewSessionStatsTool(reg *session.Registry) *SessionStatsTool {
	return &SessionStatsTool{reg: reg}
}

// Definition returns the MCP tool definition for session_stats.
func (t *SessionStatsTool) Definition() mcp.Tool {
	return mcp.NewTool("session_stats",
		mcp.WithDescription("Show a session's note count, activity and cache state. Without session_id, lists live sessions."),
		mcp.WithString("session_id",
			mcp.Description("Session to inspect"),
		),
	)
}

// Handle processes the session_stats tool call.
func (t *SessionStatsTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("session_id", "")
	if id == "" {
		ids := t.reg.IDs()
		if len(ids) == 0 {
			return mcp.NewToolResultText("No live sessions."), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("Live sessions (%d): %s", len(ids), strings.Join(ids, ", "))), nil
	}

	st, err := t.reg.Stats(id)
	if err != nil {
		return sessionError(id, err), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "## Session: %s\n\n", st.SessionID)
	if st.Project != "" {
		fmt.Fprintf(&sb, "- **Project**: %s\n", st.Project)
	}
	fmt.Fprintf(&sb, "- **Started**: %s\n", st.StartedAt.Format(time.RFC3339))
	fmt.Fprintf(&sb, "- **Notes**: %d\n", st.NoteCount)
	fmt.Fprintf(&sb, "- **Activity**: %s\n", st.Activity.Level)
	if st.CacheValid {
		fmt.Fprintf(&sb, "- **Cache**: valid (%dms old)\n", st.CacheAgeMS)
	} else {
		sb.WriteString("- **Cache**: stale\n")
	}
	return mcp.NewToolResultText(sb.String()), nil
}

// SessionEndTool handles the session_end MCP tool.
type SessionEndTool struct {
	reg *session.Registry
}

// NewSessionEndTool creates a SessionEndTool over reg.
func NewSessionEndTool(reg *session.Registry) *SessionEndTool {
	return &SessionEndTool{reg: reg}
}

// Definition returns the MCP tool definition for session_end.
func (t *SessionEndTool) Definition() mcp.Tool {
	return mcp.NewTool("session_end",
		mcp.WithDescription("End a session and release its processor."),
		mcp.WithString("session_id",
			mcp.Required(),
			mcp.Description("Session to end"),
		),
	)
}

// Handle processes the session_end tool call.
func (t *SessionEndTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("session_id", "")
	if id == "" {
		return mcp.NewToolResultError("'session_id' is required"), nil
	}
	if err := t.reg.End(id); err != nil {
		return sessionError(id, err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Session %s ended.", id)), nil
}
