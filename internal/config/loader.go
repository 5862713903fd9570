package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):.
//  1. defaults (New())
//  2. file (YAML) if ULTRALIVE_CONFIG is set
//  3. env (prefix ULTRALIVE_)
func Load(ctx context.Context) (*Config, error) {
	_ = ctx // reserved for future providers

	base := New()

	k := koanf.New(".")

	// Load from file if provided
	if path := os.Getenv("ULTRALIVE_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
		}
	}

	// Environment variables: ULTRALIVE_ADDR, ULTRALIVE_POLL_INTERVAL_SEC, ...
	// Map env keys like ULTRALIVE_POLL_INTERVAL_SEC -> poll_interval_sec.
	// Preserve underscores to match koanf tags on the struct.
	envProvider := env.Provider("ULTRALIVE_", ".", func(s string) string {
		s = strings.ToLower(s)
		s = strings.TrimPrefix(s, "ultralive_")
		return s
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	// Unmarshal into a copy
	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks structural invariants of the configuration.
//
// The overdue window in particular must be non-empty: a runner can only be
// displayed as overdue while
// overdue_display_sec < typical_lap_sec * break_threshold_multiplier;
// otherwise every overdue runner would jump straight to "break".
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.RaceID == "":
		return fmt.Errorf("%w: race_id must not be empty", ErrInvalidConfig)
	case c.PollIntervalSec <= 0:
		return fmt.Errorf("%w: poll_interval_sec must be positive", ErrInvalidConfig)
	case c.LapLengthKm <= 0:
		return fmt.Errorf("%w: lap_length_km must be positive", ErrInvalidConfig)
	case c.FirstLapKm < 0 || c.FirstLapKm > c.LapLengthKm:
		return fmt.Errorf("%w: first_lap_km must be within [0, lap_length_km]", ErrInvalidConfig)
	case c.BreakThresholdMultiplier <= 1:
		return fmt.Errorf("%w: break_threshold_multiplier must exceed 1", ErrInvalidConfig)
	case c.OverdueDisplaySec <= 0:
		return fmt.Errorf("%w: overdue_display_sec must be positive", ErrInvalidConfig)
	case c.TypicalLapSec <= 0:
		return fmt.Errorf("%w: typical_lap_sec must be positive", ErrInvalidConfig)
	case c.RaceState != "not_started" && c.RaceState != "live" && c.RaceState != "finished":
		return fmt.Errorf("%w: race_state must be not_started, live or finished", ErrInvalidConfig)
	case c.OverdueDisplaySec >= c.TypicalLapSec*c.BreakThresholdMultiplier:
		return fmt.Errorf("%w: overdue_display_sec %.0f leaves no overdue window below typical_lap_sec*break_threshold_multiplier %.0f",
			ErrInvalidConfig, c.OverdueDisplaySec, c.TypicalLapSec*c.BreakThresholdMultiplier)
	}
	return nil
}
