// Package worker runs the single-concurrency enrichment loop: claim the
// oldest queued job, enrich its tracks one by one, and record the terminal
// status. Crash recovery happens at startup through the store's job
// recovery, so the loop itself carries no resume logic.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"songscout/internal/config"
	"songscout/internal/identity"
	"songscout/internal/logging"
	"songscout/internal/notify"
	"songscout/internal/scoring"
	"songscout/internal/store"
)

// Manager owns the polling goroutine. One manager processes one job at a
// time; there is deliberately no parallel lane.
type Manager struct {
	store        *store.Store
	resolver     *identity.Resolver
	notifier     *notify.Service
	metrics      *notify.Debouncer
	pollInterval time.Duration
	errorRetry   time.Duration
	logger       *slog.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewManager builds a worker from its collaborators.
func NewManager(st *store.Store, resolver *identity.Resolver, notifier *notify.Service, metrics *notify.Debouncer, cfg config.Worker, logger *slog.Logger) *Manager {
	poll := time.Duration(cfg.PollInterval) * time.Second
	if poll <= 0 {
		poll = 2 * time.Second
	}
	retry := time.Duration(cfg.ErrorRetryInterval) * time.Second
	if retry <= 0 {
		retry = 10 * time.Second
	}
	return &Manager{
		store:        st,
		resolver:     resolver,
		notifier:     notifier,
		metrics:      metrics,
		pollInterval: poll,
		errorRetry:   retry,
		logger:       logging.NewComponentLogger(logger, "worker"),
	}
}

// Start begins background processing.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("worker already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.wg.Add(1)
	m.mu.Unlock()

	go m.run(runCtx)
	return nil
}

// Stop terminates background processing and waits for the loop to exit.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
	if m.metrics != nil {
		m.metrics.Flush()
	}
}

func (m *Manager) run(ctx context.Context) {
	defer m.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		job, err := m.store.ClaimNextJob(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			m.logger.Error("claim next job failed",
				logging.Error(err),
				logging.String(logging.FieldEventType, "job_claim_failed"),
				logging.String(logging.FieldErrorHint, "check queue database access"))
			m.sleep(ctx, m.errorRetry)
			continue
		}
		if job == nil {
			m.sleep(ctx, m.pollInterval)
			continue
		}

		if err := m.processJob(ctx, job); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			m.logger.Error("job processing failed",
				logging.Int64(logging.FieldJobID, job.ID),
				logging.Error(err))
		}
	}
}

// processJob enriches every track in the job and records the terminal
// status. Individual track failures are counted, logged into the job, and
// never abort the batch.
func (m *Manager) processJob(ctx context.Context, job *store.Job) error {
	m.logger.Info("job started",
		logging.Int64(logging.FieldJobID, job.ID),
		logging.Int("tracks", job.TotalTracks))

	tracks, err := m.store.TracksByIDs(ctx, job.TrackIDs)
	if err != nil {
		m.finishJob(ctx, job, false, fmt.Sprintf("load tracks failed: %v", err))
		return fmt.Errorf("load job tracks: %w", err)
	}

	enriched, failed := 0, 0
	for i, track := range tracks {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		status := m.enrichTrack(ctx, track)
		line := fmt.Sprintf("track %d %q: %s", track.ID, track.Title, status)
		update := store.JobProgressUpdate{
			LogLines: []string{line},
			Progress: (i + 1) * 100 / len(tracks),
		}
		if status == store.EnrichmentError {
			failed++
			update.FailedDelta = 1
		} else {
			enriched++
			update.EnrichedDelta = 1
		}
		if err := m.store.UpdateJobProgress(ctx, job.ID, update); err != nil {
			// Progress is operator visibility, not correctness.
			m.logger.Warn("progress update failed",
				logging.Int64(logging.FieldJobID, job.ID),
				logging.Error(err))
		}

		if m.notifier != nil {
			m.notifier.TrackEnriched(ctx, track.ID, track.Title, string(status))
			m.notifier.EnrichmentProgress(ctx, job.ID, update.Progress)
		}
		if m.metrics != nil {
			m.metrics.Schedule()
		}
	}

	note := fmt.Sprintf("enriched %d, failed %d of %d tracks", enriched, failed, job.TotalTracks)
	m.finishJob(ctx, job, true, note)
	if m.notifier != nil {
		m.notifier.BatchComplete(ctx, job.ID, enriched, failed, failed == 0)
	}
	if m.metrics != nil {
		m.metrics.Flush()
	}
	m.logger.Info("job finished",
		logging.Int64(logging.FieldJobID, job.ID),
		logging.Int("enriched", enriched),
		logging.Int("failed", failed))
	return nil
}

// enrichTrack resolves identities, refreshes the score, syncs contact
// aggregates, and returns the resulting enrichment status.
func (m *Manager) enrichTrack(ctx context.Context, track *store.Track) store.EnrichmentStatus {
	matches, err := m.resolver.ResolveTrack(ctx, track)
	status := store.EnrichmentSuccess
	switch {
	case err != nil:
		status = store.EnrichmentError
		m.logger.Warn("identity resolution failed",
			logging.Int64(logging.FieldTrackID, track.ID),
			logging.Error(err))
	case len(matches) == 0:
		status = store.EnrichmentNotFound
	}

	if err == nil {
		m.rescoreTrack(ctx, track, matches)
	}

	if updateErr := m.store.UpdateTrackEnrichment(ctx, track.ID, status); updateErr != nil {
		m.logger.Warn("enrichment status update failed",
			logging.Int64(logging.FieldTrackID, track.ID),
			logging.Error(updateErr))
		return store.EnrichmentError
	}
	return status
}

// rescoreTrack recomputes the score with resolution results folded in and
// refreshes the contact aggregate of every matched songwriter.
func (m *Manager) rescoreTrack(ctx context.Context, track *store.Track, matches []identity.Match) {
	playlist, err := m.store.GetPlaylist(ctx, track.PlaylistID)
	if err != nil || playlist == nil {
		m.logger.Warn("load playlist for scoring failed",
			logging.Int64(logging.FieldTrackID, track.ID),
			logging.Error(err))
		return
	}

	verdict := scoring.Evaluate(scoring.Input{
		OnDiscoveryPlaylist:  playlist.Editorial,
		HasSongwriterCredits: strings.TrimSpace(track.SongwriterRaw) != "",
		MetadataCompleteness: trackCompleteness(track),
	})
	signalsJSON := ""
	if payload, marshalErr := json.Marshal(verdict.Signals); marshalErr == nil {
		signalsJSON = string(payload)
	}
	if err := m.store.SetTrackScore(ctx, track.ID, verdict.Score, signalsJSON); err != nil {
		m.logger.Warn("persist score failed",
			logging.Int64(logging.FieldTrackID, track.ID),
			logging.Error(err))
	}

	for _, match := range matches {
		collaborations, err := m.store.CollaborationCount(ctx, match.Songwriter.ID)
		if err != nil {
			m.logger.Warn("collaboration count failed",
				logging.String(logging.FieldSongwriter, match.Songwriter.Name),
				logging.Error(err))
			continue
		}
		contact := store.Contact{
			SongwriterID:   match.Songwriter.ID,
			Score:          verdict.Score,
			SignalsJSON:    signalsJSON,
			Collaborations: collaborations,
			EnrichedVia:    track.FetchedVia,
		}
		if err := m.store.UpsertContact(ctx, contact); err != nil {
			m.logger.Warn("contact upsert failed",
				logging.String(logging.FieldSongwriter, match.Songwriter.Name),
				logging.Error(err))
		}
	}
}

func (m *Manager) finishJob(ctx context.Context, job *store.Job, success bool, note string) {
	if err := m.store.CompleteJob(ctx, job.ID, success, note); err != nil {
		m.logger.Error("complete job failed",
			logging.Int64(logging.FieldJobID, job.ID),
			logging.Error(err))
	}
}

func (m *Manager) sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// trackCompleteness mirrors the orchestrator's provisional measure over the
// persisted row.
func trackCompleteness(track *store.Track) float64 {
	fields := []string{
		track.Artist,
		track.ISRC,
		track.SongwriterRaw,
		track.ProducerRaw,
		track.ExternalArtistID,
	}
	populated := 0
	for _, field := range fields {
		if strings.TrimSpace(field) != "" {
			populated++
		}
	}
	return float64(populated) / float64(len(fields))
}
