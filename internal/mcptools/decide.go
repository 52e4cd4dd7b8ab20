package mcptools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/lazypower/cadence/internal/session"
)

// DecideTool handles the note_decide MCP tool.
type DecideTool struct {
	reg *session.Registry
}

// NewDecideTool creates a DecideTool over reg.
func NewDecideTool(reg *session.Registry) *DecideTool {
	return &DecideTool{reg: reg}
}

// Definition returns the MCP tool definition for note_decide.
func (t *DecideTool) Definition() mcp.Tool {
	return mcp.NewTool("note_decide",
		mcp.WithDescription(
			"Decide whether now is a good moment to evaluate the session, with a reason and urgency. "+
				"Call after each user-visible step.",
		),
		mcp.WithString("session_id",
			mcp.Required(),
			mcp.Description("Session to decide for"),
		),
		mcp.WithString("stage",
			mcp.Description("Current stage name; checkpoint, submit, final and complete are decision points"),
		),
		mcp.WithBoolean("critical",
			mcp.Description("The current step is a critical decision point"),
		),
		mcp.WithBoolean("goal_completed",
			mcp.Description("The user goal was just completed"),
		),
		mcp.WithBoolean("recent_action",
			mcp.Description("A user action just happened"),
		),
		mcp.WithString("current_state",
			mcp.Description(`Current state as JSON: {"score":7,"issues":["slow"],"state":{"page":"cart"}}`),
		),
		mcp.WithString("previous_state",
			mcp.Description("Previous state as JSON, same shape as current_state"),
		),
		mcp.WithNumber("last_prompt_at",
			mcp.Description("Epoch milliseconds of the last evaluation, if any"),
		),
	)
}

// Handle processes the note_decide tool call.
func (t *DecideTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("session_id", "")
	if id == "" {
		return mcp.NewToolResultError("'session_id' is required"), nil
	}

	cur, err := stateArg(req, "current_state")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	prev, err := stateArg(req, "previous_state")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	dc := engineContext(req)
	dc.CurrentState = cur
	dc.PreviousState = prev

	d, err := t.reg.Decide(id, dc)
	if err != nil {
		return sessionError(id, err), nil
	}

	verdict := "wait"
	if d.ShouldPrompt {
		verdict = "evaluate now"
	}
	return mcp.NewToolResultText(fmt.Sprintf("Decision: %s (urgency %s)\nReason: %s", verdict, d.Urgency, d.Reason)), nil
}
