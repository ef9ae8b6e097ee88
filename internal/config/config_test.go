package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"songscout/internal/config"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if exists {
		t.Fatal("expected exists=false for missing file")
	}
	if resolved != path {
		t.Fatalf("expected resolved path %q, got %q", path, resolved)
	}
	if cfg.Fetch.PlaylistParallelism != 3 {
		t.Fatalf("expected default parallelism 3, got %d", cfg.Fetch.PlaylistParallelism)
	}
	if cfg.Notifications.DebounceSeconds != 8 {
		t.Fatalf("expected default debounce 8s, got %d", cfg.Notifications.DebounceSeconds)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[paths]
data_dir = "` + dir + `/data"
log_dir = "` + dir + `/logs"

[chartmetric]
enabled = false

[spotify]
enabled = false

[fetch]
playlist_parallelism = 5

[identity]
min_shared_tokens = 3
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to be found")
	}
	if cfg.Fetch.PlaylistParallelism != 5 {
		t.Fatalf("expected parallelism 5, got %d", cfg.Fetch.PlaylistParallelism)
	}
	if cfg.Identity.MinSharedTokens != 3 {
		t.Fatalf("expected min shared tokens 3, got %d", cfg.Identity.MinSharedTokens)
	}
	if cfg.Chartmetric.Enabled || cfg.Spotify.Enabled {
		t.Fatal("expected api providers disabled")
	}
	if !cfg.Editorial.Enabled {
		t.Fatal("expected editorial provider still enabled by default")
	}
}

func TestValidateRejectsMissingCredentials(t *testing.T) {
	cfg := config.Default()
	cfg.Chartmetric.Enabled = true
	cfg.Chartmetric.RefreshToken = ""
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error for missing refresh token")
	}
	if !strings.Contains(err.Error(), "chartmetric.refresh_token") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateRequiresAProvider(t *testing.T) {
	cfg := config.Default()
	cfg.Chartmetric.Enabled = false
	cfg.Spotify.Enabled = false
	cfg.Editorial.Enabled = false
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error when no provider is enabled")
	}
}

func TestCreateSampleRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	if _, _, exists, err := config.Load(path); err != nil || !exists {
		t.Fatalf("expected sample config to load, exists=%v err=%v", exists, err)
	}
}
