// Package mcptools exposes the session registry as MCP tools.
//
// Each tool is a struct holding the registry, a Definition() returning the
// mcp.Tool schema and a Handle() that serves the call. Caller mistakes come
// back as tool errors, never as Go errors.
package mcptools

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/lazypower/cadence/internal/engine"
	"github.com/lazypower/cadence/internal/session"
)

// intArg extracts an integer argument, returning defaultVal if the key is
// missing or not a number (JSON numbers are float64).
func intArg(req mcp.CallToolRequest, key string, defaultVal int64) int64 {
	v, ok := req.GetArguments()[key].(float64)
	if !ok {
		return defaultVal
	}
	return int64(v)
}

func boolArg(req mcp.CallToolRequest, key string, defaultVal bool) bool {
	v, ok := req.GetArguments()[key].(bool)
	if !ok {
		return defaultVal
	}
	return v
}

// stateArg decodes an optional state snapshot passed either as a JSON
// object or as a JSON-encoded string.
func stateArg(req mcp.CallToolRequest, key string) (*engine.StateSnapshot, error) {
	raw, ok := req.GetArguments()[key]
	if !ok || raw == nil {
		return nil, nil
	}
	var data []byte
	switch v := raw.(type) {
	case string:
		if strings.TrimSpace(v) == "" {
			return nil, nil
		}
		data = []byte(v)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		data = b
	}
	var snap engine.StateSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("'%s' is not a valid state: %w", key, err)
	}
	return &snap, nil
}

// sessionError turns a registry error into a tool result.
func sessionError(id string, err error) *mcp.CallToolResult {
	if errors.Is(err, session.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("session %q not found; add notes to it first", id))
	}
	return mcp.NewToolResultError(err.Error())
}

// engineContext builds the flag and timing part of a decision context.
func engineContext(req mcp.CallToolRequest) engine.DecisionContext {
	dc := engine.DecisionContext{
		Stage:         req.GetString("stage", ""),
		Critical:      boolArg(req, "critical", false),
		GoalCompleted: boolArg(req, "goal_completed", false),
		RecentAction:  boolArg(req, "recent_action", false),
	}
	if ms := intArg(req, "last_prompt_at", 0); ms > 0 {
		t := time.UnixMilli(ms)
		dc.LastPromptAt = &t
	}
	return dc
}
