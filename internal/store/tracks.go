package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
)

const trackColumns = "id, playlist_id, week, title, artist, url, isrc, songwriter_raw, producer_raw, external_artist_id, external_artist_name, streams, views, score, score_signals_json, enrichment, fetched_via, created_at, updated_at"

// InsertTracks persists a batch of new track rows inside one transaction and
// returns them with assigned IDs. Any insert failure rolls the batch back and
// is returned to the caller so no enrichment job is scheduled against rows
// that were never durably stored.
func (s *Store) InsertTracks(ctx context.Context, tracks []*Track) ([]*Track, error) {
	if len(tracks) == 0 {
		return nil, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin insert tracks: %w", err)
	}
	defer tx.Rollback()

	now := timestamp(time.Now())
	for _, track := range tracks {
		if track.Enrichment == "" {
			track.Enrichment = EnrichmentPending
		}
		res, err := tx.ExecContext(
			ctx,
			`INSERT INTO tracks (
                playlist_id, week, title, artist, url, isrc, songwriter_raw, producer_raw,
                external_artist_id, external_artist_name, streams, views, score,
                score_signals_json, enrichment, fetched_via, created_at, updated_at
            ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			track.PlaylistID,
			track.Week,
			track.Title,
			nullableString(track.Artist),
			track.URL,
			nullableString(track.ISRC),
			nullableString(track.SongwriterRaw),
			nullableString(track.ProducerRaw),
			nullableString(track.ExternalArtistID),
			nullableString(track.ExternalArtistName),
			track.Streams,
			track.Views,
			track.Score,
			nullableString(track.ScoreSignalsJSON),
			track.Enrichment,
			nullableString(track.FetchedVia),
			now,
			now,
		)
		if err != nil {
			return nil, fmt.Errorf("insert track %q: %w", track.Title, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("last insert id: %w", err)
		}
		track.ID = id
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit insert tracks: %w", err)
	}
	return tracks, nil
}

// GetTrack fetches a track by identifier.
func (s *Store) GetTrack(ctx context.Context, id int64) (*Track, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+trackColumns+` FROM tracks WHERE id = ?`, id)
	track, err := scanTrack(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get track: %w", err)
	}
	return track, nil
}

// TracksByIDs returns tracks for the given identifiers, preserving input order
// for IDs that exist.
func (s *Store) TracksByIDs(ctx context.Context, ids []int64) ([]*Track, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args, err := sq.Select(trackColumns).
		From("tracks").
		Where(sq.Eq{"id": ids}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build tracks query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query tracks by ids: %w", err)
	}
	defer rows.Close()

	byID := make(map[int64]*Track, len(ids))
	for rows.Next() {
		track, err := scanTrack(rows)
		if err != nil {
			return nil, err
		}
		byID[track.ID] = track
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	ordered := make([]*Track, 0, len(byID))
	for _, id := range ids {
		if track, ok := byID[id]; ok {
			ordered = append(ordered, track)
		}
	}
	return ordered, nil
}

// TrackFilter narrows ListTracks results.
type TrackFilter struct {
	Week       string
	PlaylistID int64
	Enrichment EnrichmentStatus
	Limit      uint64
}

// ListTracks returns tracks matching the filter, newest first.
func (s *Store) ListTracks(ctx context.Context, filter TrackFilter) ([]*Track, error) {
	builder := sq.Select(trackColumns).From("tracks").OrderBy("id DESC")
	if filter.Week != "" {
		builder = builder.Where(sq.Eq{"week": filter.Week})
	}
	if filter.PlaylistID != 0 {
		builder = builder.Where(sq.Eq{"playlist_id": filter.PlaylistID})
	}
	if filter.Enrichment != "" {
		builder = builder.Where(sq.Eq{"enrichment": filter.Enrichment})
	}
	if filter.Limit > 0 {
		builder = builder.Limit(filter.Limit)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build track list query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tracks: %w", err)
	}
	defer rows.Close()

	var tracks []*Track
	for rows.Next() {
		track, err := scanTrack(rows)
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, track)
	}
	return tracks, rows.Err()
}

// TrackKeysForWeek returns the dedupe keys of every persisted track for the
// given week, used to seed the orchestrator's in-memory seen set.
func (s *Store) TrackKeysForWeek(ctx context.Context, week string) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT playlist_id, url FROM tracks WHERE week = ?`, week)
	if err != nil {
		return nil, fmt.Errorf("query track keys: %w", err)
	}
	defer rows.Close()

	keys := make(map[string]struct{})
	for rows.Next() {
		var playlistID int64
		var url string
		if err := rows.Scan(&playlistID, &url); err != nil {
			return nil, err
		}
		keys[TrackKey(week, playlistID, url)] = struct{}{}
	}
	return keys, rows.Err()
}

// UpdateTrackEnrichment records the enrichment outcome for a track.
func (s *Store) UpdateTrackEnrichment(ctx context.Context, id int64, status EnrichmentStatus) error {
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE tracks SET enrichment = ?, updated_at = ? WHERE id = ?`,
		status,
		timestamp(time.Now()),
		id,
	)
	if err != nil {
		return fmt.Errorf("update track enrichment: %w", err)
	}
	return nil
}

// SetTrackScore persists a computed score and its contributing signals.
func (s *Store) SetTrackScore(ctx context.Context, id int64, score int, signalsJSON string) error {
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE tracks SET score = ?, score_signals_json = ?, updated_at = ? WHERE id = ?`,
		score,
		nullableString(signalsJSON),
		timestamp(time.Now()),
		id,
	)
	if err != nil {
		return fmt.Errorf("set track score: %w", err)
	}
	return nil
}

// SetTrackISRC backfills the ISRC recovered by the secondary enrichment pass.
func (s *Store) SetTrackISRC(ctx context.Context, id int64, isrc string) error {
	isrc = strings.TrimSpace(isrc)
	if isrc == "" {
		return nil
	}
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE tracks SET isrc = ?, updated_at = ? WHERE id = ? AND (isrc IS NULL OR isrc = '')`,
		isrc,
		timestamp(time.Now()),
		id,
	)
	if err != nil {
		return fmt.Errorf("set track isrc: %w", err)
	}
	return nil
}

func scanTrack(scanner interface{ Scan(dest ...any) error }) (*Track, error) {
	var (
		id           int64
		playlistID   int64
		week         string
		title        string
		artist       sql.NullString
		url          string
		isrc         sql.NullString
		songwriter   sql.NullString
		producer     sql.NullString
		externalID   sql.NullString
		externalName sql.NullString
		streams      int64
		views        int64
		score        int
		signals      sql.NullString
		enrichment   string
		fetchedVia   sql.NullString
		createdRaw   string
		updatedRaw   string
	)
	if err := scanner.Scan(
		&id, &playlistID, &week, &title, &artist, &url, &isrc, &songwriter, &producer,
		&externalID, &externalName, &streams, &views, &score, &signals, &enrichment,
		&fetchedVia, &createdRaw, &updatedRaw,
	); err != nil {
		return nil, err
	}

	track := &Track{
		ID:                 id,
		PlaylistID:         playlistID,
		Week:               week,
		Title:              title,
		Artist:             artist.String,
		URL:                url,
		ISRC:               isrc.String,
		SongwriterRaw:      songwriter.String,
		ProducerRaw:        producer.String,
		ExternalArtistID:   externalID.String,
		ExternalArtistName: externalName.String,
		Streams:            streams,
		Views:              views,
		Score:              score,
		ScoreSignalsJSON:   signals.String,
		Enrichment:         EnrichmentStatus(enrichment),
		FetchedVia:         fetchedVia.String,
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		track.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		track.UpdatedAt = updated
	}
	return track, nil
}
