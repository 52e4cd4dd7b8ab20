package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Config holds all cadence configuration.
type Config struct {
	Server   ServerConfig   `toml:"server" mapstructure:"server"`
	Database DatabaseConfig `toml:"database" mapstructure:"database"`
	Log      LogConfig      `toml:"log" mapstructure:"log"`
	Engine   EngineConfig   `toml:"engine" mapstructure:"engine"`
	Cache    CacheConfig    `toml:"cache" mapstructure:"cache"`
}

type ServerConfig struct {
	Bind string `toml:"bind" mapstructure:"bind"`
	Port int    `toml:"port" mapstructure:"port"`
}

type DatabaseConfig struct {
	Path string `toml:"path" mapstructure:"path"` // "" resolves to ~/.cadence/cadence.db, ":memory:" disables the journal file
}

type LogConfig struct {
	Level string `toml:"level" mapstructure:"level"` // debug, info, warn, error
}

// EngineConfig tunes aggregation and the prompt decision.
type EngineConfig struct {
	WindowSize           time.Duration  `toml:"window_size" mapstructure:"window_size"`
	DecayFactor          float64        `toml:"decay_factor" mapstructure:"decay_factor"`
	CoherenceThreshold   float64        `toml:"coherence_threshold" mapstructure:"coherence_threshold"`
	MinNotesForPrompt    int            `toml:"min_notes_for_prompt" mapstructure:"min_notes_for_prompt"`
	UrgencyThreshold     float64        `toml:"urgency_threshold" mapstructure:"urgency_threshold"`
	StateChangeThreshold float64        `toml:"state_change_threshold" mapstructure:"state_change_threshold"`
	MaxWaitTime          time.Duration  `toml:"max_wait_time" mapstructure:"max_wait_time"`
	MaxPrunedNotes       int            `toml:"max_pruned_notes" mapstructure:"max_pruned_notes"`
	Scales               []Scale        `toml:"scales" mapstructure:"scales"`
	Activity             ActivityConfig `toml:"activity" mapstructure:"activity"`
}

// Scale is one named window size for multi-scale aggregation.
type Scale struct {
	Name       string        `toml:"name" mapstructure:"name"`
	WindowSize time.Duration `toml:"window_size" mapstructure:"window_size"`
}

// ActivityConfig holds the lookbacks and rate cut-offs of the activity classifier.
type ActivityConfig struct {
	RateLookback        time.Duration `toml:"rate_lookback" mapstructure:"rate_lookback"`
	InteractionLookback time.Duration `toml:"interaction_lookback" mapstructure:"interaction_lookback"`
	HighRate            float64       `toml:"high_rate" mapstructure:"high_rate"`     // notes/s above which activity is high
	MediumRate          float64       `toml:"medium_rate" mapstructure:"medium_rate"` // notes/s above which activity is medium
	StableStdDev        float64       `toml:"stable_std_dev" mapstructure:"stable_std_dev"`
}

// CacheConfig controls the preprocessing cache of the adaptive processor.
type CacheConfig struct {
	MaxAge             time.Duration `toml:"max_age" mapstructure:"max_age"`
	PreprocessInterval time.Duration `toml:"preprocess_interval" mapstructure:"preprocess_interval"`
	MaxCountDrift      float64       `toml:"max_count_drift" mapstructure:"max_count_drift"` // fraction of the current note count
}

// DefaultScales is the scale table used when none is configured.
func DefaultScales() []Scale {
	return []Scale{
		{Name: "immediate", WindowSize: 1 * time.Second},
		{Name: "short", WindowSize: 5 * time.Second},
		{Name: "medium", WindowSize: 15 * time.Second},
		{Name: "long", WindowSize: 60 * time.Second},
	}
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Bind: "127.0.0.1",
			Port: 37778,
		},
		Database: DatabaseConfig{
			Path: "", // resolved at runtime via store.DefaultDBPath()
		},
		Log: LogConfig{
			Level: "info",
		},
		Engine: DefaultEngine(),
		Cache:  DefaultCache(),
	}
}

// DefaultEngine returns the engine defaults on their own, for library callers.
func DefaultEngine() EngineConfig {
	return EngineConfig{
		WindowSize:           10 * time.Second,
		DecayFactor:          0.9,
		CoherenceThreshold:   0.5,
		MinNotesForPrompt:    3,
		UrgencyThreshold:     0.3,
		StateChangeThreshold: 0.2,
		MaxWaitTime:          30 * time.Second,
		MaxPrunedNotes:       50,
		Scales:               DefaultScales(),
		Activity: ActivityConfig{
			RateLookback:        5 * time.Second,
			InteractionLookback: 2 * time.Second,
			HighRate:            10,
			MediumRate:          1,
			StableStdDev:        0.5,
		},
	}
}

// DefaultCache returns the cache defaults.
func DefaultCache() CacheConfig {
	return CacheConfig{
		MaxAge:             5 * time.Second,
		PreprocessInterval: 2 * time.Second,
		MaxCountDrift:      0.2,
	}
}

// ListenAddr returns the bind:port address string.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Bind, c.Server.Port)
}

// SlogLevel maps the configured level name onto slog. Unknown names read as info.
func (c *LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(c.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
