package cli

import (
	"fmt"
	"log/slog"
	"os"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/lazypower/cadence/internal/mcptools"
	"github.com/lazypower/cadence/internal/session"
)

var mcpDBPath string

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the note tools over MCP stdio",
	Long:  "Runs an MCP server on stdin/stdout exposing note_add, note_aggregate, note_decide, note_activity and session_stats.",
	RunE:  runMCP,
}

func init() {
	mcpCmd.Flags().StringVar(&mcpDBPath, "db", "", "Journal database path (\":memory:\" disables the journal file)")
}

func runMCP(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	// stdout carries the protocol
	logger := newLogger(cfg, os.Stderr)

	db, dbPath, err := openJournal(cfg, mcpDBPath)
	if err != nil {
		return err
	}
	defer db.Close()

	reg, err := session.NewRegistry(cfg.Engine, cfg.Cache,
		session.WithJournal(db),
		session.WithLogger(logger),
		session.WithPreprocessTimers(),
	)
	if err != nil {
		return fmt.Errorf("create registry: %w", err)
	}
	defer reg.Close()

	logger.Info("mcp: serving on stdio", slog.String("db", dbPath))
	return mcpserver.ServeStdio(mcptools.NewServer(reg, VersionString()))
}
