package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrAliasConflict is returned when an alias's normalized form already maps
// to a different songwriter profile. Callers log and skip; an ambiguous alias
// is never auto-resolved.
var ErrAliasConflict = errors.New("alias already mapped to another profile")

const songwriterColumns = "id, name, normalized_name, external_id, created_at, updated_at"

// CreateSongwriter inserts a new profile, keeping normalized_name in sync
// with name via the provided normalizer output.
func (s *Store) CreateSongwriter(ctx context.Context, name, normalized, externalID string) (*Songwriter, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("songwriter name required")
	}
	if strings.TrimSpace(normalized) == "" {
		return nil, errors.New("normalized name required")
	}

	now := timestamp(time.Now())
	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO songwriter_profiles (name, normalized_name, external_id, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?)`,
		name,
		normalized,
		nullableString(externalID),
		now,
		now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert songwriter: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetSongwriter(ctx, id)
}

// GetSongwriter fetches a profile by identifier.
func (s *Store) GetSongwriter(ctx context.Context, id int64) (*Songwriter, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+songwriterColumns+` FROM songwriter_profiles WHERE id = ?`, id)
	sw, err := scanSongwriter(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get songwriter: %w", err)
	}
	return sw, nil
}

// FindSongwriterByName returns the first profile whose name matches
// case-insensitively.
func (s *Store) FindSongwriterByName(ctx context.Context, name string) (*Songwriter, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+songwriterColumns+` FROM songwriter_profiles WHERE name = ? COLLATE NOCASE ORDER BY id LIMIT 1`,
		strings.TrimSpace(name),
	)
	sw, err := scanSongwriter(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find songwriter by name: %w", err)
	}
	return sw, nil
}

// FindSongwriterByExternalID returns the profile bound to a provider identity.
func (s *Store) FindSongwriterByExternalID(ctx context.Context, externalID string) (*Songwriter, error) {
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return nil, nil
	}
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+songwriterColumns+` FROM songwriter_profiles WHERE external_id = ? ORDER BY id LIMIT 1`,
		externalID,
	)
	sw, err := scanSongwriter(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find songwriter by external id: %w", err)
	}
	return sw, nil
}

// SongwritersByNormalized returns all profiles sharing a normalized name.
// Used as the indexed pre-filter for the fuzzy matching tier.
func (s *Store) SongwritersByNormalized(ctx context.Context, normalized string) ([]*Songwriter, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+songwriterColumns+` FROM songwriter_profiles WHERE normalized_name = ? ORDER BY id`,
		normalized,
	)
	if err != nil {
		return nil, fmt.Errorf("query by normalized name: %w", err)
	}
	defer rows.Close()

	var writers []*Songwriter
	for rows.Next() {
		sw, err := scanSongwriter(rows)
		if err != nil {
			return nil, err
		}
		writers = append(writers, sw)
	}
	return writers, rows.Err()
}

// ListSongwriters returns all profiles ordered by creation.
func (s *Store) ListSongwriters(ctx context.Context) ([]*Songwriter, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+songwriterColumns+` FROM songwriter_profiles ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list songwriters: %w", err)
	}
	defer rows.Close()

	var writers []*Songwriter
	for rows.Next() {
		sw, err := scanSongwriter(rows)
		if err != nil {
			return nil, err
		}
		writers = append(writers, sw)
	}
	return writers, rows.Err()
}

// AliasByNormalized looks up a stored alias by its normalized form.
func (s *Store) AliasByNormalized(ctx context.Context, normalized string) (*Alias, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT id, songwriter_id, alias, normalized, created_at FROM songwriter_aliases WHERE normalized = ?`,
		normalized,
	)
	alias, err := scanAlias(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("alias by normalized: %w", err)
	}
	return alias, nil
}

// InsertAlias records a confirmed alternate spelling for a profile. If the
// normalized form already maps to a different profile, ErrAliasConflict is
// returned and the existing row is left untouched. Re-inserting the same
// mapping is a no-op.
func (s *Store) InsertAlias(ctx context.Context, songwriterID int64, alias, normalized string) error {
	alias = strings.TrimSpace(alias)
	if alias == "" || strings.TrimSpace(normalized) == "" {
		return errors.New("alias and normalized form required")
	}

	existing, err := s.AliasByNormalized(ctx, normalized)
	if err != nil {
		return err
	}
	if existing != nil {
		if existing.SongwriterID == songwriterID {
			return nil
		}
		return fmt.Errorf("%w: %q", ErrAliasConflict, alias)
	}

	_, err = s.db.ExecContext(
		ctx,
		`INSERT OR IGNORE INTO songwriter_aliases (songwriter_id, alias, normalized, created_at)
         VALUES (?, ?, ?, ?)`,
		songwriterID,
		alias,
		normalized,
		timestamp(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("insert alias: %w", err)
	}
	return nil
}

// LinkTrackSongwriter inserts a track/songwriter link. A duplicate insert for
// the same pair is a no-op, keeping re-runs idempotent.
func (s *Store) LinkTrackSongwriter(ctx context.Context, link TrackSongwriter) error {
	_, err := s.db.ExecContext(
		ctx,
		`INSERT OR IGNORE INTO track_songwriters (track_id, songwriter_id, confidence, source_text, created_at)
         VALUES (?, ?, ?, ?, ?)`,
		link.TrackID,
		link.SongwriterID,
		link.Confidence,
		nullableString(link.SourceText),
		timestamp(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("link track songwriter: %w", err)
	}
	return nil
}

// TrackLinks returns all identity links for a track.
func (s *Store) TrackLinks(ctx context.Context, trackID int64) ([]*TrackSongwriter, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT track_id, songwriter_id, confidence, source_text, created_at
         FROM track_songwriters WHERE track_id = ? ORDER BY songwriter_id`,
		trackID,
	)
	if err != nil {
		return nil, fmt.Errorf("query track links: %w", err)
	}
	defer rows.Close()

	var links []*TrackSongwriter
	for rows.Next() {
		var (
			link       TrackSongwriter
			confidence string
			sourceText sql.NullString
			createdRaw string
		)
		if err := rows.Scan(&link.TrackID, &link.SongwriterID, &confidence, &sourceText, &createdRaw); err != nil {
			return nil, err
		}
		link.Confidence = ConfidenceSource(confidence)
		link.SourceText = sourceText.String
		if created, err := parseTimeString(createdRaw); err == nil {
			link.CreatedAt = created
		}
		links = append(links, &link)
	}
	return links, rows.Err()
}

// CollaborationCount counts distinct tracks linked to a songwriter. Links are
// authoritative, so re-runs never inflate the count.
func (s *Store) CollaborationCount(ctx context.Context, songwriterID int64) (int, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT COUNT(DISTINCT track_id) FROM track_songwriters WHERE songwriter_id = ?`,
		songwriterID,
	)
	var count int
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("collaboration count: %w", err)
	}
	return count, nil
}

func scanSongwriter(scanner interface{ Scan(dest ...any) error }) (*Songwriter, error) {
	var (
		id         int64
		name       string
		normalized string
		externalID sql.NullString
		createdRaw string
		updatedRaw string
	)
	if err := scanner.Scan(&id, &name, &normalized, &externalID, &createdRaw, &updatedRaw); err != nil {
		return nil, err
	}

	sw := &Songwriter{
		ID:             id,
		Name:           name,
		NormalizedName: normalized,
		ExternalID:     externalID.String,
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		sw.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		sw.UpdatedAt = updated
	}
	return sw, nil
}

func scanAlias(scanner interface{ Scan(dest ...any) error }) (*Alias, error) {
	var (
		alias      Alias
		createdRaw string
	)
	if err := scanner.Scan(&alias.ID, &alias.SongwriterID, &alias.Alias, &alias.Normalized, &createdRaw); err != nil {
		return nil, err
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		alias.CreatedAt = created
	}
	return &alias, nil
}
