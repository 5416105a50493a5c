package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if MATCHBOARD_CONFIG is set
//  3. env (prefix MATCHBOARD_)
func Load(ctx context.Context) (*Config, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	base := New()

	k := koanf.New(".")

	// Load from file if provided
	if path := os.Getenv("MATCHBOARD_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
		}
	}

	// Environment variables: MATCHBOARD_ADDR, MATCHBOARD_QUEUE_SIZE, ...
	// Map env keys like MATCHBOARD_QUEUE_SIZE -> queue_size (flat keys).
	// Preserve underscores to match koanf tags on the struct.
	envProvider := env.Provider("MATCHBOARD_", ".", func(s string) string {
		s = strings.ToLower(s)
		s = strings.TrimPrefix(s, "matchboard_")
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

	// Basic validation
	if cfg.Addr == "" {
		return nil, fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	if cfg.DBPath == "" {
		return nil, fmt.Errorf("%w: db_path must not be empty", ErrInvalidConfig)
	}
	if cfg.BucketSeconds <= 0 {
		return nil, fmt.Errorf("%w: bucket_seconds must be positive", ErrInvalidConfig)
	}
	switch cfg.AliasConflictPolicy {
	case "keep-existing", "reassign":
	default:
		return nil, fmt.Errorf("%w: unknown alias_conflict_policy %q", ErrInvalidConfig, cfg.AliasConflictPolicy)
	}
	return &cfg, nil
}

// Sentinel check helper retained for callers that only care about class.
func IsInvalid(err error) bool {
	return errors.Is(err, ErrInvalidConfig)
}
