package testsupport

import (
	"path/filepath"
	"testing"

	"songscout/internal/config"
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

// WithDebounceSeconds overrides the notifications debounce window.
func WithDebounceSeconds(seconds int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Notifications.DebounceSeconds = seconds
	}
}

// WithParallelism overrides the orchestrator playlist parallelism.
func WithParallelism(n int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Fetch.PlaylistParallelism = n
	}
}
