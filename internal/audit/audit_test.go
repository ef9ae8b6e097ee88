package audit_test

import (
	"context"
	"strings"
	"testing"

	"songscout/internal/audit"
	"songscout/internal/identity"
	"songscout/internal/logging"
	"songscout/internal/store"
	"songscout/internal/testsupport"
)

func createProfile(t *testing.T, st *store.Store, name string) *store.Songwriter {
	t.Helper()
	sw, err := st.CreateSongwriter(context.Background(), name, identity.Normalize(name), "")
	if err != nil {
		t.Fatalf("CreateSongwriter: %v", err)
	}
	return sw
}

func TestRunReportsNormalizedCollisions(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	first := createProfile(t, st, "Amy Allen")
	second := createProfile(t, st, "A.M.Y. Allen")
	createProfile(t, st, "Jon Bellion")

	report, err := audit.New(st, logging.NewNop()).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.ProfilesScanned != 3 {
		t.Fatalf("expected 3 profiles scanned, got %d", report.ProfilesScanned)
	}
	if len(report.Groups) != 1 {
		t.Fatalf("expected 1 duplicate group, got %d: %+v", len(report.Groups), report.Groups)
	}

	group := report.Groups[0]
	if !strings.Contains(group.Reason, "identical normalized name") {
		t.Fatalf("unexpected reason %q", group.Reason)
	}
	if len(group.Profiles) != 2 {
		t.Fatalf("expected 2 profiles, got %d", len(group.Profiles))
	}
	ids := map[int64]bool{group.Profiles[0].ID: true, group.Profiles[1].ID: true}
	if !ids[first.ID] || !ids[second.ID] {
		t.Fatalf("wrong profiles grouped: %+v", group.Profiles)
	}
}

func TestRunReportsReorderedTokens(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	createProfile(t, st, "Amy Allen")
	createProfile(t, st, "Allen Amy")

	report, err := audit.New(st, logging.NewNop()).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(report.Groups) != 1 {
		t.Fatalf("expected 1 group, got %d", len(report.Groups))
	}
	if !strings.Contains(report.Groups[0].Reason, "different order") {
		t.Fatalf("unexpected reason %q", report.Groups[0].Reason)
	}
}

func TestRunSkipsSingleTokenNames(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	// Mononyms collide on normalized form trivially and would flood the
	// report, so the auditor ignores them.
	if _, err := st.CreateSongwriter(context.Background(), "Sia", "sia", ""); err != nil {
		t.Fatalf("CreateSongwriter: %v", err)
	}
	if _, err := st.CreateSongwriter(context.Background(), "SIA", "sia", "artist-1"); err != nil {
		t.Fatalf("CreateSongwriter: %v", err)
	}

	report, err := audit.New(st, logging.NewNop()).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(report.Groups) != 0 {
		t.Fatalf("expected no groups for mononyms, got %+v", report.Groups)
	}
}

func TestRunNeverMutatesProfiles(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	createProfile(t, st, "Amy Allen")
	createProfile(t, st, "A.M.Y. Allen")

	if _, err := audit.New(st, logging.NewNop()).Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	writers, err := st.ListSongwriters(context.Background())
	if err != nil {
		t.Fatalf("ListSongwriters: %v", err)
	}
	if len(writers) != 2 {
		t.Fatalf("audit must not merge profiles, got %d rows", len(writers))
	}
}

func TestRunEmptyCatalog(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	report, err := audit.New(st, logging.NewNop()).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.ProfilesScanned != 0 || len(report.Groups) != 0 {
		t.Fatalf("expected empty report, got %+v", report)
	}
}
