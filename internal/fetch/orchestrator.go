package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"songscout/internal/config"
	"songscout/internal/logging"
	"songscout/internal/providers"
	"songscout/internal/scoring"
	"songscout/internal/store"
)

// scrapeProvider is the provider name that triggers the ISRC backfill pass.
const scrapeProvider = "editorial-scrape"

// keySet is the shared dedupe set for one batch. Add is the only operation;
// membership is claimed synchronously before any further I/O on a candidate
// so two near-simultaneous candidates with the same key cannot both pass.
type keySet struct {
	mu   sync.Mutex
	keys map[string]struct{}
}

func newKeySet(seed map[string]struct{}) *keySet {
	if seed == nil {
		seed = make(map[string]struct{})
	}
	return &keySet{keys: seed}
}

// Add claims a key, reporting whether it was new.
func (s *keySet) Add(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.keys[key]; exists {
		return false
	}
	s.keys[key] = struct{}{}
	return true
}

// PlaylistResult is one playlist's contribution to a batch fetch.
type PlaylistResult struct {
	PlaylistID   int64
	PlaylistName string
	Provider     string
	Complete     bool
	Fetched      int
	NewTrackIDs  []int64
	Err          error
}

// BatchResult aggregates a settle-all batch run.
type BatchResult struct {
	Week    string
	Results []PlaylistResult
}

// NewTrackIDs flattens the new track IDs across all playlists in the batch.
func (b BatchResult) NewTrackIDs() []int64 {
	var ids []int64
	for _, result := range b.Results {
		ids = append(ids, result.NewTrackIDs...)
	}
	return ids
}

// Orchestrator fetches monitored playlists through the provider chain,
// deduplicates against the weekly key set, and persists new tracks with a
// provisional score.
type Orchestrator struct {
	store       *store.Store
	chain       *Chain
	isrcLookup  providers.ISRCLookup
	parallelism int
	logger      *slog.Logger
	now         func() time.Time
}

// NewOrchestrator builds an orchestrator. isrcLookup may be nil when no
// API-backed adapter is configured; the backfill pass is then skipped.
func NewOrchestrator(st *store.Store, chain *Chain, isrcLookup providers.ISRCLookup, cfg config.Fetch, logger *slog.Logger) *Orchestrator {
	parallelism := cfg.PlaylistParallelism
	if parallelism < 1 {
		parallelism = 3
	}
	return &Orchestrator{
		store:       st,
		chain:       chain,
		isrcLookup:  isrcLookup,
		parallelism: parallelism,
		logger:      logging.NewComponentLogger(logger, "fetch"),
		now:         time.Now,
	}
}

// FetchAll processes playlists with bounded parallelism and settle-all
// semantics: every playlist produces a completeness record, and one
// playlist's failure or panic never aborts its siblings.
func (o *Orchestrator) FetchAll(ctx context.Context, playlists []*store.Playlist) (*BatchResult, error) {
	week := store.WeekKey(o.now())
	persisted, err := o.store.TrackKeysForWeek(ctx, week)
	if err != nil {
		return nil, fmt.Errorf("seed dedupe set: %w", err)
	}
	seen := newKeySet(persisted)

	results := make([]PlaylistResult, len(playlists))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(o.parallelism)
	for i, playlist := range playlists {
		group.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					results[i] = PlaylistResult{
						PlaylistID:   playlist.ID,
						PlaylistName: playlist.Name,
						Err:          fmt.Errorf("playlist fetch panicked: %v", r),
					}
					o.logger.Error("playlist fetch panicked",
						logging.String(logging.FieldPlaylistID, playlist.ProviderID),
						logging.Any("panic", r))
				}
			}()
			results[i] = o.fetchPlaylist(groupCtx, playlist, week, seen)
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	batch := &BatchResult{Week: week, Results: results}
	o.logger.Info("batch fetch settled",
		logging.Int("playlists", len(playlists)),
		logging.Int("new_tracks", len(batch.NewTrackIDs())))
	return batch, nil
}

// fetchPlaylist runs the full per-playlist pipeline. Provider attempts are
// sequential; the dedupe set is claimed before persistence so concurrent
// siblings can never double-insert a key.
func (o *Orchestrator) fetchPlaylist(ctx context.Context, playlist *store.Playlist, week string, seen *keySet) PlaylistResult {
	result := PlaylistResult{PlaylistID: playlist.ID, PlaylistName: playlist.Name}
	ref := providers.PlaylistRef{ID: playlist.ProviderID, Name: playlist.Name, Editorial: playlist.Editorial}

	outcome, err := o.chain.Resolve(ctx, playlist.Kind(), ref)
	if err != nil {
		result.Err = err
		if recordErr := o.store.RecordFetchRun(ctx, playlist.ID, false, 0, 0); recordErr != nil {
			o.logger.Warn("record incomplete fetch run failed",
				logging.String(logging.FieldPlaylistID, playlist.ProviderID),
				logging.Error(recordErr))
		}
		o.logger.Warn("playlist exhausted all providers",
			logging.String(logging.FieldPlaylistID, playlist.ProviderID),
			logging.Error(err))
		return result
	}
	result.Provider = outcome.Provider
	result.Fetched = len(outcome.Records)

	var fresh []*store.Track
	for _, record := range outcome.Records {
		key := store.TrackKey(week, playlist.ID, record.URL)
		if !seen.Add(key) {
			continue
		}
		track := o.toTrack(playlist, week, outcome.Provider, record)
		fresh = append(fresh, track)
	}

	if len(fresh) > 0 {
		inserted, err := o.store.InsertTracks(ctx, fresh)
		if err != nil {
			// Persisting failed, so these tracks must not reach a job.
			result.Err = fmt.Errorf("persist tracks: %w", err)
			return result
		}
		for _, track := range inserted {
			result.NewTrackIDs = append(result.NewTrackIDs, track.ID)
		}
		if playlist.Editorial && outcome.Provider == scrapeProvider {
			o.backfillISRC(ctx, inserted)
		}
	}

	result.Complete = true
	if err := o.store.RecordFetchRun(ctx, playlist.ID, true, len(fresh), len(outcome.Records)); err != nil {
		o.logger.Warn("record fetch run failed",
			logging.String(logging.FieldPlaylistID, playlist.ProviderID),
			logging.Error(err))
	}
	o.logger.Info("playlist fetched",
		logging.String(logging.FieldPlaylistID, playlist.ProviderID),
		logging.String(logging.FieldProvider, outcome.Provider),
		logging.Int("fetched", len(outcome.Records)),
		logging.Int("new", len(fresh)))
	return result
}

// toTrack maps a provider record to the canonical row with its provisional
// score attached.
func (o *Orchestrator) toTrack(playlist *store.Playlist, week, provider string, record providers.TrackRecord) *store.Track {
	track := &store.Track{
		PlaylistID:         playlist.ID,
		Week:               week,
		Title:              record.Title,
		Artist:             record.Artist,
		URL:                record.URL,
		ISRC:               record.ISRC,
		SongwriterRaw:      record.SongwriterRaw,
		ProducerRaw:        record.ProducerRaw,
		ExternalArtistID:   record.ExternalArtistID,
		ExternalArtistName: record.ExternalArtistName,
		Streams:            record.Streams,
		Views:              record.Views,
		Enrichment:         store.EnrichmentPending,
		FetchedVia:         provider,
	}

	verdict := scoring.Evaluate(scoring.Input{
		OnDiscoveryPlaylist:  playlist.Editorial,
		HasSongwriterCredits: strings.TrimSpace(record.SongwriterRaw) != "",
		MetadataCompleteness: metadataCompleteness(record),
	})
	track.Score = verdict.Score
	if payload, err := json.Marshal(verdict.Signals); err == nil {
		track.ScoreSignalsJSON = string(payload)
	}
	return track
}

// backfillISRC runs the best-effort secondary pass for scraper-resolved
// editorial playlists. Lookup failures are logged and never fail the fetch.
func (o *Orchestrator) backfillISRC(ctx context.Context, tracks []*store.Track) {
	if o.isrcLookup == nil {
		return
	}
	for _, track := range tracks {
		if track.ISRC != "" {
			continue
		}
		isrc, err := o.isrcLookup.LookupISRC(ctx, track.Title, track.Artist)
		if err != nil {
			o.logger.Debug("isrc backfill failed",
				logging.Int64(logging.FieldTrackID, track.ID),
				logging.Error(err))
			continue
		}
		if isrc == "" {
			continue
		}
		if err := o.store.SetTrackISRC(ctx, track.ID, isrc); err != nil {
			o.logger.Warn("persist backfilled isrc failed",
				logging.Int64(logging.FieldTrackID, track.ID),
				logging.Error(err))
		}
	}
}

// metadataCompleteness measures how many optional record fields a provider
// populated, feeding the provisional score.
func metadataCompleteness(record providers.TrackRecord) float64 {
	fields := []string{
		record.Artist,
		record.ISRC,
		record.SongwriterRaw,
		record.ProducerRaw,
		record.ExternalArtistID,
	}
	populated := 0
	for _, field := range fields {
		if strings.TrimSpace(field) != "" {
			populated++
		}
	}
	return float64(populated) / float64(len(fields))
}
