package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
)

const (
	envPrefix      = "CADENCE"
	configDirName  = ".cadence"
	configFileName = "config.toml"
)

// envKeys are the settings that may be overridden by CADENCE_* variables,
// e.g. CADENCE_ENGINE_WINDOW_SIZE=5s.
var envKeys = []string{
	"server.bind",
	"server.port",
	"database.path",
	"log.level",
	"engine.window_size",
	"engine.decay_factor",
	"engine.coherence_threshold",
	"engine.min_notes_for_prompt",
	"engine.urgency_threshold",
	"engine.state_change_threshold",
	"engine.max_wait_time",
	"engine.max_pruned_notes",
	"cache.max_age",
	"cache.preprocess_interval",
	"cache.max_count_drift",
}

// DefaultPath returns ~/.cadence/config.toml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, configDirName, configFileName), nil
}

// Load reads configuration from path on top of Default() and applies the
// CADENCE_* environment overlay. A missing file is not an error; an empty
// path means the default location. The result is validated.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return cfg, err
		}
		path = p
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, key := range envKeys {
		if err := v.BindEnv(key); err != nil {
			return cfg, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("read config file: %w", err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decode config: %w", err)
	}

	// Decode the scale table on its own so a shorter configured list
	// replaces the defaults instead of merging into them.
	if v.IsSet("engine.scales") {
		var scales []Scale
		if err := v.UnmarshalKey("engine.scales", &scales); err != nil {
			return cfg, fmt.Errorf("decode scales: %w", err)
		}
		cfg.Engine.Scales = scales
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// fileSchema is the on-disk shape written by Write. Durations are stored as
// strings ("5s") so the file stays readable and round-trips through Load.
type fileSchema struct {
	Server   ServerConfig   `toml:"server"`
	Database DatabaseConfig `toml:"database"`
	Log      LogConfig      `toml:"log"`
	Engine   engineSchema   `toml:"engine"`
	Cache    cacheSchema    `toml:"cache"`
}

type engineSchema struct {
	WindowSize           string         `toml:"window_size"`
	DecayFactor          float64        `toml:"decay_factor"`
	CoherenceThreshold   float64        `toml:"coherence_threshold"`
	MinNotesForPrompt    int            `toml:"min_notes_for_prompt"`
	UrgencyThreshold     float64        `toml:"urgency_threshold"`
	StateChangeThreshold float64        `toml:"state_change_threshold"`
	MaxWaitTime          string         `toml:"max_wait_time"`
	MaxPrunedNotes       int            `toml:"max_pruned_notes"`
	Activity             activitySchema `toml:"activity"`
	Scales               []scaleSchema  `toml:"scales"`
}

type scaleSchema struct {
	Name       string `toml:"name"`
	WindowSize string `toml:"window_size"`
}

type activitySchema struct {
	RateLookback        string  `toml:"rate_lookback"`
	InteractionLookback string  `toml:"interaction_lookback"`
	HighRate            float64 `toml:"high_rate"`
	MediumRate          float64 `toml:"medium_rate"`
	StableStdDev        float64 `toml:"stable_std_dev"`
}

type cacheSchema struct {
	MaxAge             string  `toml:"max_age"`
	PreprocessInterval string  `toml:"preprocess_interval"`
	MaxCountDrift      float64 `toml:"max_count_drift"`
}

func toSchema(cfg Config) fileSchema {
	e := cfg.Engine
	scales := make([]scaleSchema, len(e.Scales))
	for i, s := range e.Scales {
		scales[i] = scaleSchema{Name: s.Name, WindowSize: s.WindowSize.String()}
	}
	return fileSchema{
		Server:   cfg.Server,
		Database: cfg.Database,
		Log:      cfg.Log,
		Engine: engineSchema{
			WindowSize:           e.WindowSize.String(),
			DecayFactor:          e.DecayFactor,
			CoherenceThreshold:   e.CoherenceThreshold,
			MinNotesForPrompt:    e.MinNotesForPrompt,
			UrgencyThreshold:     e.UrgencyThreshold,
			StateChangeThreshold: e.StateChangeThreshold,
			MaxWaitTime:          e.MaxWaitTime.String(),
			MaxPrunedNotes:       e.MaxPrunedNotes,
			Activity: activitySchema{
				RateLookback:        e.Activity.RateLookback.String(),
				InteractionLookback: e.Activity.InteractionLookback.String(),
				HighRate:            e.Activity.HighRate,
				MediumRate:          e.Activity.MediumRate,
				StableStdDev:        e.Activity.StableStdDev,
			},
			Scales: scales,
		},
		Cache: cacheSchema{
			MaxAge:             cfg.Cache.MaxAge.String(),
			PreprocessInterval: cfg.Cache.PreprocessInterval.String(),
			MaxCountDrift:      cfg.Cache.MaxCountDrift,
		},
	}
}

// Write stores cfg as TOML at path, creating the parent directory.
// An existing file is left alone unless overwrite is set.
func Write(path string, cfg Config, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file %s already exists", path)
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := toml.Marshal(toSchema(cfg))
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
