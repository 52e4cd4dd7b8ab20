package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/lazypower/cadence/internal/config"
	"github.com/lazypower/cadence/internal/engine"
	"github.com/lazypower/cadence/internal/notes"
)

var (
	analyzeSession  string
	analyzeDBPath   string
	analyzeStage    string
	analyzeCritical bool
	analyzeGoal     bool
	analyzeJSON     bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [file]",
	Short: "Aggregate a note file or a journaled session",
	Long: "Reads notes from a .jsonl, .json or .yaml file (or replays a journaled session with --session) " +
		"and prints the windowed aggregation, multi-scale view, activity, patterns and prompt decision.",
	Args: cobra.MaximumNArgs(1),
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeSession, "session", "", "Replay a journaled session instead of a file")
	analyzeCmd.Flags().StringVar(&analyzeDBPath, "db", "", "Journal database path for --session")
	analyzeCmd.Flags().StringVar(&analyzeStage, "stage", "", "Stage name passed to the decision")
	analyzeCmd.Flags().BoolVar(&analyzeCritical, "critical", false, "Treat the current step as a critical decision point")
	analyzeCmd.Flags().BoolVar(&analyzeGoal, "goal-completed", false, "Treat the user goal as completed")
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "Print the report as JSON")
}

// report is everything analyze prints for one note set.
type report struct {
	Source     string                  `json:"source"`
	Aggregated engine.AggregatedResult `json:"aggregated"`
	MultiScale engine.MultiScaleResult `json:"multi_scale"`
	Activity   engine.Activity         `json:"activity"`
	Patterns   []engine.Pattern        `json:"patterns"`
	Decision   engine.Decision         `json:"decision"`
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	if (len(args) == 0) == (analyzeSession == "") {
		return errors.New("give either a note file or --session")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	var (
		source string
		ns     []notes.Note
		start  time.Time
	)
	if analyzeSession != "" {
		source, ns, start, err = journalNotes(cfg, analyzeSession)
	} else {
		source = args[0]
		ns, err = notes.ParseFile(source)
		start = time.UnixMilli(notes.EarliestTimestamp(ns))
	}
	if err != nil {
		return err
	}

	dc := engine.DecisionContext{
		Stage:         analyzeStage,
		Critical:      analyzeCritical,
		GoalCompleted: analyzeGoal,
	}
	rep, err := buildReport(cmd.Context(), cfg.Engine, source, ns, start, dc)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if analyzeJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	}
	fmt.Fprint(out, renderReport(rep))
	return nil
}

// journalNotes loads a session's notes and start time from the journal.
func journalNotes(cfg config.Config, sessionID string) (string, []notes.Note, time.Time, error) {
	db, _, err := openJournal(cfg, analyzeDBPath)
	if err != nil {
		return "", nil, time.Time{}, err
	}
	defer db.Close()

	row, err := db.GetSession(sessionID)
	if err != nil {
		return "", nil, time.Time{}, err
	}
	if row == nil {
		return "", nil, time.Time{}, fmt.Errorf("session %s not found in %s", sessionID, db.Path)
	}
	ns, err := db.GetNotes(sessionID)
	if err != nil {
		return "", nil, time.Time{}, err
	}
	return "session " + sessionID, ns, time.UnixMilli(row.StartedAt), nil
}

// buildReport runs every engine stage over ns as of the newest note.
func buildReport(ctx context.Context, cfg config.EngineConfig, source string, ns []notes.Note, start time.Time, dc engine.DecisionContext) (report, error) {
	agg, err := engine.NewAggregator(cfg)
	if err != nil {
		return report{}, err
	}
	multi, err := engine.NewMultiScaleAggregator(cfg)
	if err != nil {
		return report{}, err
	}
	dm, err := engine.NewDecisionManager(cfg)
	if err != nil {
		return report{}, err
	}

	st := notes.NewStore(start)
	st.Append(ns...)
	resolved := st.Snapshot()

	ms, err := multi.Aggregate(ctx, resolved)
	if err != nil {
		return report{}, err
	}
	res := agg.Aggregate(resolved)
	return report{
		Source:     source,
		Aggregated: res,
		MultiScale: ms,
		Activity:   engine.ClassifyActivity(resolved, -1, cfg.Activity),
		Patterns:   engine.DetectPatterns(res.Windows, resolved),
		Decision:   dm.Decide(resolved, dc),
	}, nil
}
