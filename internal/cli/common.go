package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/lazypower/cadence/internal/config"
	"github.com/lazypower/cadence/internal/store"
)

// loadConfig reads the --config file (or the default location).
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// newLogger builds a text logger at the configured level writing to w.
func newLogger(cfg config.Config, w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: cfg.Log.SlogLevel()}))
}

// openJournal opens the journal at path, falling back to the configured
// path and then ~/.cadence/cadence.db. It returns the resolved path.
func openJournal(cfg config.Config, path string) (*store.DB, string, error) {
	if path == "" {
		path = cfg.Database.Path
	}
	if path == "" {
		var err error
		path, err = store.DefaultDBPath()
		if err != nil {
			return nil, "", fmt.Errorf("resolve db path: %w", err)
		}
	}
	db, err := store.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("open database: %w", err)
	}
	return db, path, nil
}
