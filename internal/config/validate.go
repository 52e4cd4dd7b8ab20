package config

import (
	"errors"
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	if err := c.Log.Validate(); err != nil {
		return fmt.Errorf("log: %w", err)
	}
	if err := c.Engine.Validate(); err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	if err := c.Cache.Validate(); err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	return nil
}

// Validate validates the server configuration.
func (c *ServerConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Bind, validation.Required),
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// Validate validates the log configuration.
func (c *LogConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Level, validation.In("", "debug", "info", "warn", "warning", "error")),
	)
}

// minWindow is the smallest window or lookback the engine accepts. The
// aggregation math runs in whole milliseconds.
const minWindow = int64(time.Millisecond)

// Validate rejects engine settings that would break the aggregation math.
// Window sizes must be at least 1ms and the decay factor must sit inside (0,1).
func (c *EngineConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.WindowSize, validation.Required, validation.Min(minWindow).Error("must be at least 1ms")),
		validation.Field(&c.DecayFactor, validation.Required, validation.Min(0.0).Exclusive(), validation.Max(1.0).Exclusive()),
		validation.Field(&c.CoherenceThreshold, validation.Min(0.0), validation.Max(1.0)),
		validation.Field(&c.MinNotesForPrompt, validation.Required, validation.Min(1)),
		validation.Field(&c.UrgencyThreshold, validation.Min(0.0), validation.Max(1.0)),
		validation.Field(&c.StateChangeThreshold, validation.Min(0.0), validation.Max(1.0)),
		validation.Field(&c.MaxWaitTime, validation.Min(int64(0))),
		validation.Field(&c.MaxPrunedNotes, validation.Min(1)),
		validation.Field(&c.Scales, validation.Required),
		validation.Field(&c.Activity),
	); err != nil {
		return err
	}

	seen := make(map[string]bool, len(c.Scales))
	for _, s := range c.Scales {
		if err := s.Validate(); err != nil {
			return fmt.Errorf("scale %q: %w", s.Name, err)
		}
		if seen[s.Name] {
			return fmt.Errorf("scale %q: duplicate name", s.Name)
		}
		seen[s.Name] = true
	}
	return nil
}

// Validate validates a single scale entry.
func (s Scale) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Name, validation.Required),
		validation.Field(&s.WindowSize, validation.Required, validation.Min(minWindow).Error("must be at least 1ms")),
	)
}

// Validate validates the activity classifier settings.
func (c ActivityConfig) Validate() error {
	if err := validation.ValidateStruct(&c,
		validation.Field(&c.RateLookback, validation.Required, validation.Min(minWindow)),
		validation.Field(&c.InteractionLookback, validation.Required, validation.Min(minWindow)),
		validation.Field(&c.HighRate, validation.Required, validation.Min(0.0).Exclusive()),
		validation.Field(&c.MediumRate, validation.Min(0.0)),
		validation.Field(&c.StableStdDev, validation.Required, validation.Min(0.0).Exclusive()),
	); err != nil {
		return err
	}
	if c.MediumRate >= c.HighRate {
		return errors.New("medium_rate must be below high_rate")
	}
	return nil
}

// Validate validates the cache configuration.
func (c *CacheConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.MaxAge, validation.Required, validation.Min(int64(1))),
		validation.Field(&c.PreprocessInterval, validation.Required, validation.Min(minWindow).Error("must be at least 1ms")),
		validation.Field(&c.MaxCountDrift, validation.Min(0.0), validation.Max(1.0)),
	)
}
