package store_test

import (
	"context"
	"errors"
	"testing"

	"songscout/internal/store"
	"songscout/internal/testsupport"
)

func TestEnqueueDerivesTotalTracks(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	job, err := st.EnqueueJob(ctx, store.JobTypeEnrichTracks, []int64{1, 2, 3, 4, 5})
	if err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}
	if job.Status != store.JobQueued {
		t.Fatalf("expected queued status, got %s", job.Status)
	}
	if job.TotalTracks != 5 {
		t.Fatalf("expected total 5, got %d", job.TotalTracks)
	}
	if len(job.TrackIDs) != 5 {
		t.Fatalf("expected 5 track ids, got %d", len(job.TrackIDs))
	}
}

func TestClaimNextJobIsOldestFirst(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	first, err := st.EnqueueJob(ctx, "", []int64{1})
	if err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}
	if _, err := st.EnqueueJob(ctx, "", []int64{2}); err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}

	claimed, err := st.ClaimNextJob(ctx)
	if err != nil {
		t.Fatalf("ClaimNextJob: %v", err)
	}
	if claimed == nil || claimed.ID != first.ID {
		t.Fatalf("expected job %d claimed first, got %+v", first.ID, claimed)
	}
	if claimed.Status != store.JobRunning {
		t.Fatalf("expected running status, got %s", claimed.Status)
	}
	if claimed.StartedAt == nil {
		t.Fatal("expected started_at set on claim")
	}
}

func TestClaimNextJobEmptyQueue(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	claimed, err := st.ClaimNextJob(context.Background())
	if err != nil {
		t.Fatalf("ClaimNextJob: %v", err)
	}
	if claimed != nil {
		t.Fatalf("expected nil on empty queue, got %+v", claimed)
	}
}

func TestClaimNextJobNeverDoubleClaims(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	if _, err := st.EnqueueJob(ctx, "", []int64{1}); err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}

	first, err := st.ClaimNextJob(ctx)
	if err != nil {
		t.Fatalf("first claim: %v", err)
	}
	second, err := st.ClaimNextJob(ctx)
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if first == nil {
		t.Fatal("expected first claim to succeed")
	}
	if second != nil {
		t.Fatalf("expected second claim to find nothing, got job %d", second.ID)
	}
}

func TestUpdateJobProgressAppendsLog(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	job, err := st.EnqueueJob(ctx, "", []int64{1, 2})
	if err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}

	update := store.JobProgressUpdate{
		LogLines:      []string{"track 1 enriched", "track 2 failed"},
		EnrichedDelta: 1,
		FailedDelta:   1,
		Progress:      50,
	}
	if err := st.UpdateJobProgress(ctx, job.ID, update); err != nil {
		t.Fatalf("UpdateJobProgress: %v", err)
	}

	fetched, err := st.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if fetched.EnrichedTracks != 1 || fetched.FailedTracks != 1 {
		t.Fatalf("unexpected counters: %+v", fetched)
	}
	if fetched.Progress != 50 {
		t.Fatalf("expected progress 50, got %d", fetched.Progress)
	}
	if len(fetched.LogLines) != 2 {
		t.Fatalf("expected 2 log lines, got %v", fetched.LogLines)
	}
}

func TestUpdateJobProgressMissingJob(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	err := st.UpdateJobProgress(context.Background(), 999, store.JobProgressUpdate{Progress: 10})
	if !errors.Is(err, store.ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
}

func TestCompleteJobFailureKeepsProgress(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	job, err := st.EnqueueJob(ctx, "", []int64{1, 2, 3, 4, 5})
	if err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}
	claimed, err := st.ClaimNextJob(ctx)
	if err != nil || claimed == nil {
		t.Fatalf("ClaimNextJob: %v %+v", err, claimed)
	}
	if err := st.UpdateJobProgress(ctx, job.ID, store.JobProgressUpdate{Progress: 40}); err != nil {
		t.Fatalf("UpdateJobProgress: %v", err)
	}

	if err := st.CompleteJob(ctx, job.ID, false, "provider outage"); err != nil {
		t.Fatalf("CompleteJob: %v", err)
	}

	fetched, err := st.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if fetched.Status != store.JobFailed {
		t.Fatalf("expected failed status, got %s", fetched.Status)
	}
	if fetched.Progress != 40 {
		t.Fatalf("expected progress preserved at 40, got %d", fetched.Progress)
	}
	if fetched.CompletedAt == nil {
		t.Fatal("expected completed_at set")
	}
}

func TestCompleteJobSuccessForcesFullProgress(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	job, err := st.EnqueueJob(ctx, "", []int64{1})
	if err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}
	if err := st.CompleteJob(ctx, job.ID, true, ""); err != nil {
		t.Fatalf("CompleteJob: %v", err)
	}
	fetched, err := st.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if fetched.Status != store.JobCompleted || fetched.Progress != 100 {
		t.Fatalf("expected completed/100, got %s/%d", fetched.Status, fetched.Progress)
	}
}

func TestRecoverRunningJobs(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	job, err := st.EnqueueJob(ctx, "", []int64{1, 2, 3})
	if err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}
	claimed, err := st.ClaimNextJob(ctx)
	if err != nil || claimed == nil {
		t.Fatalf("ClaimNextJob: %v %+v", err, claimed)
	}
	if err := st.UpdateJobProgress(ctx, job.ID, store.JobProgressUpdate{EnrichedDelta: 1, Progress: 33}); err != nil {
		t.Fatalf("UpdateJobProgress: %v", err)
	}

	// Simulated restart: the running job must come back queued with counters
	// untouched and a note in its log.
	recovered, err := st.RecoverRunningJobs(ctx)
	if err != nil {
		t.Fatalf("RecoverRunningJobs: %v", err)
	}
	if recovered != 1 {
		t.Fatalf("expected 1 job recovered, got %d", recovered)
	}

	fetched, err := st.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if fetched.Status != store.JobQueued {
		t.Fatalf("expected queued after recovery, got %s", fetched.Status)
	}
	if fetched.TotalTracks != 3 || fetched.EnrichedTracks != 1 {
		t.Fatalf("expected counters unchanged, got %+v", fetched)
	}
	if fetched.StartedAt != nil {
		t.Fatal("expected started_at cleared")
	}
	if len(fetched.LogLines) == 0 {
		t.Fatal("expected a recovery note in the job log")
	}
}

func TestListJobsFilters(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	if _, err := st.EnqueueJob(ctx, "", []int64{1}); err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}
	done, err := st.EnqueueJob(ctx, "", []int64{2})
	if err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}
	if err := st.CompleteJob(ctx, done.ID, true, ""); err != nil {
		t.Fatalf("CompleteJob: %v", err)
	}

	queued, err := st.ListJobs(ctx, store.JobFilter{Status: store.JobQueued})
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	if len(queued) != 1 {
		t.Fatalf("expected 1 queued job, got %d", len(queued))
	}

	stats, err := st.JobStats(ctx)
	if err != nil {
		t.Fatalf("JobStats: %v", err)
	}
	if stats[store.JobQueued] != 1 || stats[store.JobCompleted] != 1 {
		t.Fatalf("unexpected stats: %v", stats)
	}
}
