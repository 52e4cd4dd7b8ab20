package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lazypower/cadence/internal/client"
	"github.com/lazypower/cadence/internal/notes"
)

var (
	pushURL     string
	pushSession string
	pushProject string
	pushBatch   int
)

var pushCmd = &cobra.Command{
	Use:   "push <file>",
	Short: "Send a note file to a running server",
	Args:  cobra.ExactArgs(1),
	RunE:  runPush,
}

func init() {
	pushCmd.Flags().StringVar(&pushURL, "url", "", "Server URL (default $CADENCE_URL or "+client.DefaultServerURL+")")
	pushCmd.Flags().StringVar(&pushSession, "session", "", "Session id to push into (default: generated)")
	pushCmd.Flags().StringVar(&pushProject, "project", "", "Project name for a new session")
	pushCmd.Flags().IntVar(&pushBatch, "batch", 100, "Notes per request")
}

func runPush(cmd *cobra.Command, args []string) error {
	if pushBatch <= 0 {
		return errors.New("--batch must be positive")
	}
	ns, err := notes.ParseFile(args[0])
	if err != nil {
		return err
	}
	if len(ns) == 0 {
		return fmt.Errorf("no notes in %s", args[0])
	}

	ctx := cmd.Context()
	c := client.NewClient(pushURL)
	if !c.Healthy(ctx) {
		return fmt.Errorf("server not reachable at %s", c.URL())
	}

	id, err := c.InitSession(ctx, pushSession, pushProject)
	if err != nil {
		return fmt.Errorf("init session: %w", err)
	}

	var count int
	for start := 0; start < len(ns); start += pushBatch {
		end := min(start+pushBatch, len(ns))
		count, err = c.PushNotes(ctx, id, ns[start:end])
		if err != nil {
			return fmt.Errorf("push notes %d-%d: %w", start, end, err)
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "pushed %d note(s) to session %s (%d total)\n", len(ns), id, count)
	return nil
}
