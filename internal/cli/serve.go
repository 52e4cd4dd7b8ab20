package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/lazypower/cadence/internal/server"
	"github.com/lazypower/cadence/internal/session"
)

var (
	serveDBPath string
	serveAddr   string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveDBPath, "db", "", "Journal database path (\":memory:\" disables the journal file)")
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address, overrides [server] bind and port")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg, os.Stderr)

	db, dbPath, err := openJournal(cfg, serveDBPath)
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

	addr := serveAddr
	if addr == "" {
		addr = cfg.ListenAddr()
	}
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           server.New(reg, db, VersionString(), logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server: listening", slog.String("addr", addr), slog.String("db", dbPath))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("server: shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
