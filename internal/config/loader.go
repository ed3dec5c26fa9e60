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
//  2. file (YAML) if QUIVER_CONFIG is set
//  3. env (prefix QUIVER_)
func Load(ctx context.Context) (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv("QUIVER_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
		}
	}

	// Environment variables: QUIVER_ADDR, QUIVER_FLUSH_QUEUE_SIZE, ...
	// Keys map to the struct's koanf tags with underscores preserved.
	envProvider := env.Provider("QUIVER_", ".", func(s string) string {
		s = strings.ToLower(s)
		s = strings.TrimPrefix(s, "quiver_")
		return s
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// validate rejects configurations the service cannot run with.
func validate(cfg *Config) error {
	if cfg.Addr == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	if cfg.StorePath == "" {
		return fmt.Errorf("%w: store_path must not be empty", ErrInvalidConfig)
	}
	if cfg.FlushQueueSize <= 0 {
		return fmt.Errorf("%w: flush_queue_size must be positive", ErrInvalidConfig)
	}
	if cfg.FlushWorkerCount <= 0 {
		return fmt.Errorf("%w: flush_worker_count must be positive", ErrInvalidConfig)
	}
	if cfg.MaxRankingLimit <= 0 {
		return fmt.Errorf("%w: max_ranking_limit must be positive", ErrInvalidConfig)
	}
	if cfg.MastersWindowDays <= 0 {
		return fmt.Errorf("%w: masters_window_days must be positive", ErrInvalidConfig)
	}
	for roundType, m := range cfg.TypeMultipliers {
		if m <= 0 {
			return fmt.Errorf("%w: multiplier for %q must be positive", ErrInvalidConfig, roundType)
		}
	}
	return nil
}
