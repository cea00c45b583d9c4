package testsupport

import (
	"path/filepath"
	"testing"

	"scribe/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.APIBind = "127.0.0.1:0"

	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithEvictionPolicy overrides the cache eviction policy on the test config.
func WithEvictionPolicy(policy string) ConfigOption {
	return func(c *config.Config) {
		c.Cache.EvictionPolicy = policy
	}
}

// WithQueueLimits overrides admission bounds on the test config.
func WithQueueLimits(maxConcurrent, maxSize int) ConfigOption {
	return func(c *config.Config) {
		c.Queue.MaxConcurrent = maxConcurrent
		c.Queue.MaxSize = maxSize
	}
}
