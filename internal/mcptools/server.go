package mcptools

import (
	"github.com/mark3labs/mcp-go/server"

	"github.com/lazypower/cadence/internal/session"
)

const instructions = `cadence tracks timestamped notes about a running session and decides when an evaluation is worth making.

Record observations with note_add as they happen. Call note_decide after each user-visible step and only evaluate when it says so. Use note_aggregate for the windowed summary and coherence, and note_activity to see how busy the session is.`

// NewServer builds an MCP server exposing the registry's operations.
func NewServer(reg *session.Registry, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"cadence",
		version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(instructions),
	)

	add := NewNoteAddTool(reg)
	s.AddTool(add.Definition(), add.Handle)

	agg := NewAggregateTool(reg)
	s.AddTool(agg.Definition(), agg.Handle)

	decide := NewDecideTool(reg)
	s.AddTool(decide.Definition(), decide.Handle)

	act := NewActivityTool(reg)
	s.AddTool(act.Definition(), act.Handle)

	stats := NewSessionStatsTool(reg)
	s.AddTool(stats.Definition(), stats.Handle)

	end := NewSessionEndTool(reg)
	s.AddTool(end.Definition(), end.Handle)

	return s
}
