package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"songscout/internal/api"
	"songscout/internal/config"
	"songscout/internal/fetch"
	"songscout/internal/logging"
	"songscout/internal/notify"
	"songscout/internal/store"
	"songscout/internal/testsupport"
)

type fakeScanner struct {
	batch *fetch.BatchResult
}

func (f *fakeScanner) FetchAll(ctx context.Context, playlists []*store.Playlist) (*fetch.BatchResult, error) {
	if f.batch != nil {
		return f.batch, nil
	}
	return &fetch.BatchResult{}, nil
}

type cliTestEnv struct {
	cfg        *config.Config
	store      *store.Store
	scanner    *fakeScanner
	apiURL     string
	configPath string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	configPath := filepath.Join(t.TempDir(), "config.toml")
	writeTestConfig(t, configPath, cfg)

	st := testsupport.MustOpenStore(t, cfg)
	scanner := &fakeScanner{}
	server := api.New(cfg, st, scanner, notify.NewHub(), logging.NewNop())
	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)

	return &cliTestEnv{
		cfg:        cfg,
		store:      st,
		scanner:    scanner,
		apiURL:     ts.URL,
		configPath: configPath,
	}
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content := fmt.Sprintf(
		"[paths]\ndata_dir = %q\nlog_dir = %q\napi_bind = %q\n",
		cfg.Paths.DataDir,
		cfg.Paths.LogDir,
		cfg.Paths.APIBind,
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, args []string, apiURL, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	flags := []string{"--api", apiURL}
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, haystack, needle string) {
	t.Helper()
	if !strings.Contains(haystack, needle) {
		t.Fatalf("expected output to contain %q, got %q", needle, haystack)
	}
}

func TestCLIJobsCommands(t *testing.T) {
	env := setupCLITestEnv(t)
	ctx := context.Background()

	playlist := testsupport.NewPlaylist(t, env.store, "pl-1", "Fresh Finds", true)
	track := testsupport.NewTrack(t, env.store, playlist.ID, "2026-W36", "One", "https://x/1")
	job, err := env.store.EnqueueJob(ctx, "", []int64{track.ID})
	if err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}

	out, _, err := runCLI(t, []string{"jobs", "list"}, env.apiURL, env.configPath)
	if err != nil {
		t.Fatalf("jobs list: %v", err)
	}
	requireContains(t, out, "queued")

	out, _, err = runCLI(t, []string{"jobs", "show", fmt.Sprintf("%d", job.ID)}, env.apiURL, env.configPath)
	if err != nil {
		t.Fatalf("jobs show: %v", err)
	}
	requireContains(t, out, fmt.Sprintf("Job %d (queued)", job.ID))

	if _, _, err := runCLI(t, []string{"jobs", "show", "999"}, env.apiURL, env.configPath); err == nil {
		t.Fatal("expected error for missing job")
	}
}

func TestCLIPlaylistsCommands(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"playlists", "list"}, env.apiURL, env.configPath)
	if err != nil {
		t.Fatalf("playlists list: %v", err)
	}
	requireContains(t, out, "No playlists monitored")

	out, _, err = runCLI(t, []string{"playlists", "add", "pl-1", "--name", "Fresh Finds", "--editorial"}, env.apiURL, env.configPath)
	if err != nil {
		t.Fatalf("playlists add: %v", err)
	}
	requireContains(t, out, "Fresh Finds")
	requireContains(t, out, "editorial")

	out, _, err = runCLI(t, []string{"playlists", "list"}, env.apiURL, env.configPath)
	if err != nil {
		t.Fatalf("playlists list after add: %v", err)
	}
	requireContains(t, out, "pl-1")
}

func TestCLIScanCommand(t *testing.T) {
	env := setupCLITestEnv(t)

	playlist := testsupport.NewPlaylist(t, env.store, "pl-1", "Fresh Finds", true)
	track := testsupport.NewTrack(t, env.store, playlist.ID, "2026-W36", "One", "https://x/1")
	env.scanner.batch = &fetch.BatchResult{
		Week: "2026-W36",
		Results: []fetch.PlaylistResult{{
			PlaylistID:   playlist.ID,
			PlaylistName: playlist.Name,
			Provider:     "editorial-scrape",
			Complete:     true,
			Fetched:      1,
			NewTrackIDs:  []int64{track.ID},
		}},
	}

	out, _, err := runCLI(t, []string{"scan"}, env.apiURL, env.configPath)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	requireContains(t, out, "1 succeeded, 0 failed")
	requireContains(t, out, "editorial-scrape")
	requireContains(t, out, "Enrichment job")
}

func TestCLITracksCommand(t *testing.T) {
	env := setupCLITestEnv(t)

	playlist := testsupport.NewPlaylist(t, env.store, "pl-1", "Fresh Finds", true)
	testsupport.NewTrack(t, env.store, playlist.ID, "2026-W36", "Midnight Run", "https://x/1")

	out, _, err := runCLI(t, []string{"tracks", "--week", "2026-W36"}, env.apiURL, env.configPath)
	if err != nil {
		t.Fatalf("tracks: %v", err)
	}
	requireContains(t, out, "Midnight Run")
	requireContains(t, out, "pending")

	out, _, err = runCLI(t, []string{"tracks", "--week", "2020-W01"}, env.apiURL, env.configPath)
	if err != nil {
		t.Fatalf("tracks empty week: %v", err)
	}
	requireContains(t, out, "No tracks found")
}

func TestCLIStatusCommand(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"status"}, env.apiURL, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "running")
	requireContains(t, out, "0 queued")

	out, _, err = runCLI(t, []string{"status"}, "http://127.0.0.1:1", env.configPath)
	if err != nil {
		t.Fatalf("status against dead daemon: %v", err)
	}
	requireContains(t, out, "unreachable")
}

func TestCLIAuditCommand(t *testing.T) {
	env := setupCLITestEnv(t)
	ctx := context.Background()

	if _, err := env.store.CreateSongwriter(ctx, "Amy Allen", "amy allen", ""); err != nil {
		t.Fatalf("CreateSongwriter: %v", err)
	}
	if _, err := env.store.CreateSongwriter(ctx, "A.M.Y. Allen", "amy allen", ""); err != nil {
		t.Fatalf("CreateSongwriter: %v", err)
	}

	out, _, err := runCLI(t, []string{"audit"}, env.apiURL, env.configPath)
	if err != nil {
		t.Fatalf("audit: %v", err)
	}
	requireContains(t, out, "1 duplicate groups")
	requireContains(t, out, "Amy Allen")
}

func TestCLISongwriterStageCommand(t *testing.T) {
	env := setupCLITestEnv(t)
	ctx := context.Background()

	writer, err := env.store.CreateSongwriter(ctx, "Amy Allen", "amy allen", "")
	if err != nil {
		t.Fatalf("CreateSongwriter: %v", err)
	}
	if err := env.store.UpsertContact(ctx, store.Contact{SongwriterID: writer.ID, Score: 5}); err != nil {
		t.Fatalf("UpsertContact: %v", err)
	}

	out, _, err := runCLI(t, []string{"songwriters", "stage", fmt.Sprintf("%d", writer.ID), "contacted"}, env.apiURL, env.configPath)
	if err != nil {
		t.Fatalf("songwriters stage: %v", err)
	}
	requireContains(t, out, "contacted")

	if _, _, err := runCLI(t, []string{"songwriters", "stage", "999", "signed"}, env.apiURL, env.configPath); err == nil {
		t.Fatal("expected error for missing contact")
	}
}

func TestCLILogsCommand(t *testing.T) {
	env := setupCLITestEnv(t)

	logPath := filepath.Join(env.cfg.Paths.LogDir, "songscout.log")
	if err := os.WriteFile(logPath, []byte("first\nsecond\nthird\n"), 0o644); err != nil {
		t.Fatalf("write log file: %v", err)
	}

	out, _, err := runCLI(t, []string{"logs", "--lines", "2"}, env.apiURL, env.configPath)
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	requireContains(t, out, "second")
	requireContains(t, out, "third")
	if strings.Contains(out, "first") {
		t.Fatalf("expected only trailing lines, got %q", out)
	}
}

func TestConfigInitAndValidate(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"config", "validate"}, env.apiURL, env.configPath)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")

	target := filepath.Join(t.TempDir(), "config.toml")
	out, _, err = runCLI(t, []string{"config", "init", "--path", target}, env.apiURL, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, env.apiURL, ""); err == nil {
		t.Fatal("expected error without --overwrite")
	}
}
