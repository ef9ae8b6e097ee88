package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Funnel stages for contacts. Stage transitions are the only hand-authored
// part of a contact; everything else is recomputed by sync.
const (
	StageProspect  = "prospect"
	StageContacted = "contacted"
	StageSigned    = "signed"
	StagePassed    = "passed"
)

// UpsertContact writes the derived aggregate for a songwriter. The funnel
// stage is preserved when the row already exists.
func (s *Store) UpsertContact(ctx context.Context, contact Contact) error {
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO contacts (songwriter_id, score, signals_json, collaborations, stage, enriched_via, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT(songwriter_id) DO UPDATE SET
             score = excluded.score,
             signals_json = excluded.signals_json,
             collaborations = excluded.collaborations,
             enriched_via = excluded.enriched_via,
             updated_at = excluded.updated_at`,
		contact.SongwriterID,
		contact.Score,
		nullableString(contact.SignalsJSON),
		contact.Collaborations,
		stageOrDefault(contact.Stage),
		nullableString(contact.EnrichedVia),
		timestamp(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("upsert contact: %w", err)
	}
	return nil
}

// GetContact fetches the derived aggregate for a songwriter.
func (s *Store) GetContact(ctx context.Context, songwriterID int64) (*Contact, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT songwriter_id, score, signals_json, collaborations, stage, enriched_via, updated_at
         FROM contacts WHERE songwriter_id = ?`,
		songwriterID,
	)

	var (
		contact     Contact
		signals     sql.NullString
		enrichedVia sql.NullString
		updatedRaw  string
	)
	err := row.Scan(&contact.SongwriterID, &contact.Score, &signals, &contact.Collaborations, &contact.Stage, &enrichedVia, &updatedRaw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get contact: %w", err)
	}
	contact.SignalsJSON = signals.String
	contact.EnrichedVia = enrichedVia.String
	if updated, err := parseTimeString(updatedRaw); err == nil {
		contact.UpdatedAt = updated
	}
	return &contact, nil
}

// SetContactStage records an operator-driven funnel transition.
func (s *Store) SetContactStage(ctx context.Context, songwriterID int64, stage string) error {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE contacts SET stage = ?, updated_at = ? WHERE songwriter_id = ?`,
		stageOrDefault(stage),
		timestamp(time.Now()),
		songwriterID,
	)
	if err != nil {
		return fmt.Errorf("set contact stage: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("contact %d not found", songwriterID)
	}
	return nil
}

func stageOrDefault(stage string) string {
	if stage == "" {
		return StageProspect
	}
	return stage
}
