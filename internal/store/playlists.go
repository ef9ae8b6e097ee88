package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const playlistColumns = "id, provider_id, name, editorial, last_fetch_at, last_fetch_complete, last_fetch_count, last_fetch_expected, created_at, updated_at"

// AddPlaylist registers a playlist for monitoring. The provider ID must be
// unique; re-adding an existing playlist is an error.
func (s *Store) AddPlaylist(ctx context.Context, providerID, name string, editorial bool) (*Playlist, error) {
	providerID = strings.TrimSpace(providerID)
	if providerID == "" {
		return nil, errors.New("provider id required")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = providerID
	}

	now := timestamp(time.Now())
	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO tracked_playlists (provider_id, name, editorial, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?)`,
		providerID,
		name,
		boolToInt(editorial),
		now,
		now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert playlist: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetPlaylist(ctx, id)
}

// GetPlaylist fetches a playlist by identifier.
func (s *Store) GetPlaylist(ctx context.Context, id int64) (*Playlist, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+playlistColumns+` FROM tracked_playlists WHERE id = ?`, id)
	playlist, err := scanPlaylist(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get playlist: %w", err)
	}
	return playlist, nil
}

// ListPlaylists returns all monitored playlists ordered by creation time.
func (s *Store) ListPlaylists(ctx context.Context) ([]*Playlist, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+playlistColumns+` FROM tracked_playlists ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list playlists: %w", err)
	}
	defer rows.Close()

	var playlists []*Playlist
	for rows.Next() {
		playlist, err := scanPlaylist(rows)
		if err != nil {
			return nil, err
		}
		playlists = append(playlists, playlist)
	}
	return playlists, rows.Err()
}

// RecordFetchRun persists a playlist's completeness stats after a fetch.
func (s *Store) RecordFetchRun(ctx context.Context, playlistID int64, complete bool, fetched, expected int) error {
	now := timestamp(time.Now())
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE tracked_playlists
         SET last_fetch_at = ?, last_fetch_complete = ?, last_fetch_count = ?,
             last_fetch_expected = ?, updated_at = ?
         WHERE id = ?`,
		now,
		boolToInt(complete),
		fetched,
		expected,
		now,
		playlistID,
	)
	if err != nil {
		return fmt.Errorf("record fetch run: %w", err)
	}
	return nil
}

func scanPlaylist(scanner interface{ Scan(dest ...any) error }) (*Playlist, error) {
	var (
		id           int64
		providerID   string
		name         string
		editorial    int
		lastFetchRaw sql.NullString
		complete     int
		count        int
		expected     int
		createdRaw   string
		updatedRaw   string
	)
	if err := scanner.Scan(&id, &providerID, &name, &editorial, &lastFetchRaw, &complete, &count, &expected, &createdRaw, &updatedRaw); err != nil {
		return nil, err
	}

	playlist := &Playlist{
		ID:                id,
		ProviderID:        providerID,
		Name:              name,
		Editorial:         editorial != 0,
		LastFetchAt:       scanTimePtr(lastFetchRaw),
		LastFetchComplete: complete != 0,
		LastFetchCount:    count,
		LastFetchExpected: expected,
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		playlist.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		playlist.UpdatedAt = updated
	}
	return playlist, nil
}
