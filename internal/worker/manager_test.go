package worker_test

import (
	"context"
	"testing"
	"time"

	"songscout/internal/config"
	"songscout/internal/identity"
	"songscout/internal/logging"
	"songscout/internal/notify"
	"songscout/internal/store"
	"songscout/internal/testsupport"
	"songscout/internal/worker"
)

func newManager(t *testing.T, st *store.Store, hub *notify.Hub) *worker.Manager {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	resolver := identity.NewResolver(st, cfg.Identity, logging.NewNop())
	var notifier *notify.Service
	if hub != nil {
		notifier = notify.NewService(config.Notifications{}, hub, logging.NewNop())
	}
	return worker.NewManager(st, resolver, notifier, nil, cfg.Worker, logging.NewNop())
}

func waitForJob(t *testing.T, st *store.Store, jobID int64, status store.JobStatus) *store.Job {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, err := st.GetJob(context.Background(), jobID)
		if err != nil {
			t.Fatalf("GetJob: %v", err)
		}
		if job != nil && job.Status == status {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job %d never reached status %s", jobID, status)
	return nil
}

func TestManagerProcessesQueuedJob(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	playlist := testsupport.NewPlaylist(t, st, "pl-1", "Fresh Finds", true)
	profile, err := st.CreateSongwriter(ctx, "Amy Allen", "amy allen", "")
	if err != nil {
		t.Fatalf("CreateSongwriter: %v", err)
	}

	matched, err := st.InsertTracks(ctx, []*store.Track{{
		PlaylistID:    playlist.ID,
		Week:          "2026-W36",
		Title:         "Matched",
		URL:           "https://x/1",
		SongwriterRaw: "Amy Allen",
		FetchedVia:    "spotify",
	}})
	if err != nil {
		t.Fatalf("InsertTracks: %v", err)
	}
	unmatched := testsupport.NewTrack(t, st, playlist.ID, "2026-W36", "Unmatched", "https://x/2")

	job, err := st.EnqueueJob(ctx, "", []int64{matched[0].ID, unmatched.ID})
	if err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}

	manager := newManager(t, st, nil)
	if err := manager.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(manager.Stop)

	done := waitForJob(t, st, job.ID, store.JobCompleted)
	if done.EnrichedTracks != 2 || done.FailedTracks != 0 {
		t.Fatalf("unexpected counters: %+v", done)
	}
	if done.Progress != 100 {
		t.Fatalf("expected progress 100, got %d", done.Progress)
	}
	if len(done.LogLines) < 2 {
		t.Fatalf("expected per-track log lines, got %v", done.LogLines)
	}

	first, err := st.GetTrack(ctx, matched[0].ID)
	if err != nil {
		t.Fatalf("GetTrack: %v", err)
	}
	if first.Enrichment != store.EnrichmentSuccess {
		t.Fatalf("expected success for matched track, got %s", first.Enrichment)
	}
	if first.Score <= 0 {
		t.Fatalf("expected rescored track, got %d", first.Score)
	}

	second, err := st.GetTrack(ctx, unmatched.ID)
	if err != nil {
		t.Fatalf("GetTrack: %v", err)
	}
	if second.Enrichment != store.EnrichmentNotFound {
		t.Fatalf("expected not_found for unmatched track, got %s", second.Enrichment)
	}

	links, err := st.TrackLinks(ctx, matched[0].ID)
	if err != nil {
		t.Fatalf("TrackLinks: %v", err)
	}
	if len(links) != 1 || links[0].SongwriterID != profile.ID {
		t.Fatalf("expected identity link persisted, got %+v", links)
	}

	contact, err := st.GetContact(ctx, profile.ID)
	if err != nil {
		t.Fatalf("GetContact: %v", err)
	}
	if contact == nil || contact.Collaborations != 1 || contact.EnrichedVia != "spotify" {
		t.Fatalf("expected contact aggregate refreshed, got %+v", contact)
	}
}

func TestManagerPublishesEvents(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	playlist := testsupport.NewPlaylist(t, st, "pl-1", "Fresh Finds", true)
	track := testsupport.NewTrack(t, st, playlist.ID, "2026-W36", "One", "https://x/1")
	job, err := st.EnqueueJob(ctx, "", []int64{track.ID})
	if err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}

	hub := notify.NewHub()
	sub, cancel := hub.Subscribe()
	t.Cleanup(cancel)

	manager := newManager(t, st, hub)
	if err := manager.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(manager.Stop)
	waitForJob(t, st, job.ID, store.JobCompleted)

	seen := make(map[notify.EventType]bool)
	timeout := time.After(2 * time.Second)
	for !seen[notify.EventTrackEnriched] || !seen[notify.EventBatchComplete] {
		select {
		case event := <-sub:
			seen[event.Type] = true
		case <-timeout:
			t.Fatalf("missing events, saw %v", seen)
		}
	}
}

func TestManagerStartTwiceFails(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	manager := newManager(t, st, nil)
	if err := manager.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(manager.Stop)

	if err := manager.Start(context.Background()); err == nil {
		t.Fatal("expected second Start to fail")
	}
}

func TestManagerStopIsIdempotent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	manager := newManager(t, st, nil)
	if err := manager.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	manager.Stop()
	manager.Stop()
}
