package store

import (
	"context"
	"fmt"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS tracked_playlists (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        provider_id TEXT NOT NULL UNIQUE,
        name TEXT NOT NULL,
        editorial INTEGER NOT NULL DEFAULT 0,
        last_fetch_at TEXT,
        last_fetch_complete INTEGER NOT NULL DEFAULT 0,
        last_fetch_count INTEGER NOT NULL DEFAULT 0,
        last_fetch_expected INTEGER NOT NULL DEFAULT 0,
        created_at TEXT NOT NULL,
        updated_at TEXT NOT NULL
    )`,
	`CREATE TABLE IF NOT EXISTS tracks (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        playlist_id INTEGER NOT NULL REFERENCES tracked_playlists(id),
        week TEXT NOT NULL,
        title TEXT NOT NULL,
        artist TEXT,
        url TEXT NOT NULL,
        isrc TEXT,
        songwriter_raw TEXT,
        producer_raw TEXT,
        external_artist_id TEXT,
        external_artist_name TEXT,
        streams INTEGER NOT NULL DEFAULT 0,
        views INTEGER NOT NULL DEFAULT 0,
        score INTEGER NOT NULL DEFAULT 0,
        score_signals_json TEXT,
        enrichment TEXT NOT NULL DEFAULT 'pending',
        fetched_via TEXT,
        created_at TEXT NOT NULL,
        updated_at TEXT NOT NULL,
        UNIQUE(week, playlist_id, url)
    )`,
	`CREATE TABLE IF NOT EXISTS songwriter_profiles (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        name TEXT NOT NULL,
        normalized_name TEXT NOT NULL,
        external_id TEXT,
        created_at TEXT NOT NULL,
        updated_at TEXT NOT NULL
    )`,
	`CREATE INDEX IF NOT EXISTS idx_songwriter_profiles_normalized
        ON songwriter_profiles(normalized_name)`,
	`CREATE TABLE IF NOT EXISTS songwriter_aliases (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        songwriter_id INTEGER NOT NULL REFERENCES songwriter_profiles(id),
        alias TEXT NOT NULL,
        normalized TEXT NOT NULL UNIQUE,
        created_at TEXT NOT NULL
    )`,
	`CREATE TABLE IF NOT EXISTS track_songwriters (
        track_id INTEGER NOT NULL REFERENCES tracks(id),
        songwriter_id INTEGER NOT NULL REFERENCES songwriter_profiles(id),
        confidence TEXT NOT NULL,
        source_text TEXT,
        created_at TEXT NOT NULL,
        PRIMARY KEY (track_id, songwriter_id)
    )`,
	`CREATE TABLE IF NOT EXISTS contacts (
        songwriter_id INTEGER PRIMARY KEY REFERENCES songwriter_profiles(id),
        score INTEGER NOT NULL DEFAULT 0,
        signals_json TEXT,
        collaborations INTEGER NOT NULL DEFAULT 0,
        stage TEXT NOT NULL DEFAULT 'prospect',
        enriched_via TEXT,
        updated_at TEXT NOT NULL
    )`,
	`CREATE TABLE IF NOT EXISTS enrichment_jobs (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        type TEXT NOT NULL,
        track_ids_json TEXT NOT NULL,
        status TEXT NOT NULL,
        total_tracks INTEGER NOT NULL DEFAULT 0,
        enriched_tracks INTEGER NOT NULL DEFAULT 0,
        failed_tracks INTEGER NOT NULL DEFAULT 0,
        progress INTEGER NOT NULL DEFAULT 0,
        log_lines_json TEXT NOT NULL DEFAULT '[]',
        created_at TEXT NOT NULL,
        started_at TEXT,
        completed_at TEXT,
        updated_at TEXT NOT NULL
    )`,
	`CREATE INDEX IF NOT EXISTS idx_enrichment_jobs_status
        ON enrichment_jobs(status, created_at)`,
}

func (s *Store) applyMigrations(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
