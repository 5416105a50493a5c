// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Keep fields unexported where possible and use functional options.
// - Provide New(...) initializer to build a Config with defaults.
// - External errors must be wrapped via this package's error helpers.
package config

import (
	"runtime"
)

// Config contains process configuration. Extend as needed.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// DBPath locates the SQLite database file (":memory:" for ephemeral).
	DBPath string `koanf:"db_path"`

	// QueueSize bounds the in-memory submission queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of ingest workers.
	WorkerCount int `koanf:"worker_count"`

	// BucketSeconds sets the dedup time bucket width in seconds.
	BucketSeconds int `koanf:"bucket_seconds"`

	// MaxLeaderboardLimit caps GET /leaderboard?limit.
	MaxLeaderboardLimit int `koanf:"max_leaderboard_limit"`

	// RatingPriorStrength is the Bayesian prior strength K.
	RatingPriorStrength float64 `koanf:"rating_prior_strength"`

	// AliasConflictPolicy: "keep-existing" or "reassign".
	AliasConflictPolicy string `koanf:"alias_conflict_policy"`

	// QueryCacheTTLMS bounds leaderboard recomputation cost.
	QueryCacheTTLMS int `koanf:"query_cache_ttl_ms"`

	// RateLimitPerMinute and RateLimitCapacity configure the per-requester
	// sliding-window limiter and its bounded key table.
	RateLimitPerMinute int `koanf:"rate_limit_per_minute"`
	RateLimitCapacity  int `koanf:"rate_limit_capacity"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:            "info",
		Addr:                ":9080",
		DBPath:              "matchboard.db",
		QueueSize:           100_000,
		WorkerCount:         runtime.NumCPU() * 2,
		BucketSeconds:       10,
		MaxLeaderboardLimit: 50,
		RatingPriorStrength: 3,
		AliasConflictPolicy: "keep-existing",
		QueryCacheTTLMS:     2_000,
		RateLimitPerMinute:  120,
		RateLimitCapacity:   10_000,
	}
}
