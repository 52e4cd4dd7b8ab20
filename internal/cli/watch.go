package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/lazypower/cadence/internal/engine"
	"github.com/lazypower/cadence/internal/notes"
	"github.com/lazypower/cadence/internal/session"
)

var (
	watchFromEnd bool
	watchSession string
)

var watchCmd = &cobra.Command{
	Use:   "watch <file>",
	Short: "Follow a JSONL note file and report decisions as notes arrive",
	Args:  cobra.ExactArgs(1),
	RunE:  runWatch,
}

func init() {
	watchCmd.Flags().BoolVar(&watchFromEnd, "from-end", false, "Ignore notes already in the file")
	watchCmd.Flags().StringVar(&watchSession, "session", "", "Session id to report under (default: generated)")
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg, os.Stderr)

	path, err := filepath.Abs(args[0])
	if err != nil {
		return err
	}
	fol := newFollower(path)
	if watchFromEnd {
		if err := fol.skipToEnd(); err != nil {
			return err
		}
	}
	backlog, err := fol.readNew()
	if err != nil {
		return err
	}

	reg, err := session.NewRegistry(cfg.Engine, cfg.Cache,
		session.WithLogger(logger),
		session.WithPreprocessTimers(),
	)
	if err != nil {
		return fmt.Errorf("create registry: %w", err)
	}
	defer reg.Close()

	start := time.Now()
	if ts := notes.EarliestTimestamp(backlog); ts > 0 {
		start = time.UnixMilli(ts)
	}
	sess, _, err := reg.Init(watchSession, "", start)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	lf := &liveFeed{reg: reg, id: sess.ID, out: cmd.OutOrStdout()}
	if len(backlog) > 0 {
		if err := lf.feed(ctx, backlog); err != nil {
			return err
		}
	}
	return watchFile(ctx, path, fol, logger, func(ns []notes.Note) error {
		return lf.feed(ctx, ns)
	})
}

// watchFile calls onNotes with every batch appended to path until ctx is
// done. The parent directory is watched so the file may be created or
// replaced after the watch starts.
func watchFile(ctx context.Context, path string, fol *follower, logger *slog.Logger, onNotes func([]notes.Note) error) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(path), err)
	}
	logger.Info("watcher: started", slog.String("path", path))

	for {
		select {
		case <-ctx.Done():
			logger.Info("watcher: stopped")
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != path || ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			ns, err := fol.readNew()
			if err != nil {
				logger.Warn("watcher: read failed", slog.String("path", path), slog.String("error", err.Error()))
				continue
			}
			if len(ns) == 0 {
				continue
			}
			if err := onNotes(ns); err != nil {
				return err
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// liveFeed pushes note batches into one registry session and prints a
// status line per batch.
type liveFeed struct {
	reg        *session.Registry
	id         string
	out        io.Writer
	lastPrompt *time.Time
}

func (f *liveFeed) feed(ctx context.Context, ns []notes.Note) error {
	count, err := f.reg.AddNotes(f.id, ns...)
	if err != nil {
		return err
	}
	res, err := f.reg.Aggregate(ctx, f.id)
	if err != nil {
		return err
	}
	now := time.Now()
	d, err := f.reg.Decide(f.id, engine.DecisionContext{LastPromptAt: f.lastPrompt, Now: now})
	if err != nil {
		return err
	}

	verdict := dimStyle.Render("wait")
	if d.ShouldPrompt {
		verdict = goodStyle.Render("evaluate")
		f.lastPrompt = &now
	}
	c := res.Aggregated.Coherence
	fmt.Fprintf(f.out, "%s +%d notes=%d coherence=%s activity=%s via=%s %s %s\n",
		dimStyle.Render(now.Format("15:04:05")),
		len(ns), count,
		coherenceStyle(c).Render(fmt.Sprintf("%.2f", c)),
		res.Activity.Level, res.Path,
		verdict, dimStyle.Render(d.Reason),
	)
	return nil
}
