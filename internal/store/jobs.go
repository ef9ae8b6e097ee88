package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
)

// ErrJobNotFound is returned by job operations targeting a missing job.
// Progress updates treat it as a warning, not a failure.
var ErrJobNotFound = errors.New("job not found")

const jobColumns = "id, type, track_ids_json, status, total_tracks, enriched_tracks, failed_tracks, progress, log_lines_json, created_at, started_at, completed_at, updated_at"

// EnqueueJob inserts a queued enrichment job. TotalTracks is derived from the
// submitted ID list.
func (s *Store) EnqueueJob(ctx context.Context, jobType string, trackIDs []int64) (*Job, error) {
	if jobType == "" {
		jobType = JobTypeEnrichTracks
	}
	idsJSON, err := json.Marshal(trackIDs)
	if err != nil {
		return nil, fmt.Errorf("marshal track ids: %w", err)
	}

	now := timestamp(time.Now())
	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO enrichment_jobs (type, track_ids_json, status, total_tracks, log_lines_json, created_at, updated_at)
         VALUES (?, ?, ?, ?, '[]', ?, ?)`,
		jobType,
		string(idsJSON),
		JobQueued,
		len(trackIDs),
		now,
		now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetJob(ctx, id)
}

// GetJob fetches a job by identifier.
func (s *Store) GetJob(ctx context.Context, id int64) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM enrichment_jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// ClaimNextJob atomically selects the oldest queued job and transitions it to
// running. The claim runs inside one transaction with a guarded UPDATE so two
// workers can never claim the same job. Returns nil when the queue is empty.
func (s *Store) ClaimNextJob(ctx context.Context) (*Job, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin claim: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(
		ctx,
		`SELECT id FROM enrichment_jobs WHERE status = ? ORDER BY created_at, id LIMIT 1`,
		JobQueued,
	)
	var id int64
	if err := row.Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("select queued job: %w", err)
	}

	now := timestamp(time.Now())
	res, err := tx.ExecContext(
		ctx,
		`UPDATE enrichment_jobs SET status = ?, started_at = ?, updated_at = ?
         WHERE id = ? AND status = ?`,
		JobRunning,
		now,
		now,
		id,
		JobQueued,
	)
	if err != nil {
		return nil, fmt.Errorf("claim job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		// Another claimant won the race inside this transaction window.
		return nil, nil
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit claim: %w", err)
	}
	return s.GetJob(ctx, id)
}

// JobProgressUpdate carries incremental progress for a running job. Log lines
// are appended; counter fields are added to the stored values.
type JobProgressUpdate struct {
	LogLines      []string
	EnrichedDelta int
	FailedDelta   int
	Progress      int
}

// UpdateJobProgress appends log lines and advances counters. Updating a job
// that no longer exists returns ErrJobNotFound; callers are expected to warn
// and continue since the job log is operator visibility, not a correctness
// path.
func (s *Store) UpdateJobProgress(ctx context.Context, id int64, update JobProgressUpdate) error {
	job, err := s.GetJob(ctx, id)
	if err != nil {
		return err
	}
	if job == nil {
		return fmt.Errorf("%w: %d", ErrJobNotFound, id)
	}

	job.LogLines = append(job.LogLines, update.LogLines...)
	job.EnrichedTracks += update.EnrichedDelta
	job.FailedTracks += update.FailedDelta
	if update.Progress > job.Progress {
		job.Progress = update.Progress
	}

	linesJSON, err := json.Marshal(job.LogLines)
	if err != nil {
		return fmt.Errorf("marshal log lines: %w", err)
	}
	_, err = s.db.ExecContext(
		ctx,
		`UPDATE enrichment_jobs
         SET enriched_tracks = ?, failed_tracks = ?, progress = ?, log_lines_json = ?, updated_at = ?
         WHERE id = ?`,
		job.EnrichedTracks,
		job.FailedTracks,
		job.Progress,
		string(linesJSON),
		timestamp(time.Now()),
		id,
	)
	if err != nil {
		return fmt.Errorf("update job progress: %w", err)
	}
	return nil
}

// CompleteJob sets the terminal status and completion timestamp. On success
// progress is forced to 100.
func (s *Store) CompleteJob(ctx context.Context, id int64, success bool, note string) error {
	job, err := s.GetJob(ctx, id)
	if err != nil {
		return err
	}
	if job == nil {
		return fmt.Errorf("%w: %d", ErrJobNotFound, id)
	}

	status := JobFailed
	progress := job.Progress
	if success {
		status = JobCompleted
		progress = 100
	}
	if note != "" {
		job.LogLines = append(job.LogLines, note)
	}
	linesJSON, err := json.Marshal(job.LogLines)
	if err != nil {
		return fmt.Errorf("marshal log lines: %w", err)
	}

	now := timestamp(time.Now())
	_, err = s.db.ExecContext(
		ctx,
		`UPDATE enrichment_jobs
         SET status = ?, progress = ?, log_lines_json = ?, completed_at = ?, updated_at = ?
         WHERE id = ?`,
		status,
		progress,
		string(linesJSON),
		now,
		now,
		id,
	)
	if err != nil {
		return fmt.Errorf("complete job: %w", err)
	}
	return nil
}

// RecoverRunningJobs demotes any job found running back to queued with a log
// note. Called once at startup: no job is trusted to have made resumable
// progress across a crash, and downstream writes are idempotent so a full
// re-run is safe.
func (s *Store) RecoverRunningJobs(ctx context.Context) (int64, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, log_lines_json FROM enrichment_jobs WHERE status = ?`,
		JobRunning,
	)
	if err != nil {
		return 0, fmt.Errorf("query running jobs: %w", err)
	}

	type pending struct {
		id    int64
		lines []string
	}
	var stale []pending
	for rows.Next() {
		var p pending
		var linesJSON string
		if err := rows.Scan(&p.id, &linesJSON); err != nil {
			rows.Close()
			return 0, err
		}
		_ = json.Unmarshal([]byte(linesJSON), &p.lines)
		stale = append(stale, p)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, err
	}
	rows.Close()

	now := timestamp(time.Now())
	for i := range stale {
		stale[i].lines = append(stale[i].lines, "requeued after restart: job was running when the process stopped")
		linesJSON, err := json.Marshal(stale[i].lines)
		if err != nil {
			return 0, fmt.Errorf("marshal log lines: %w", err)
		}
		_, err = s.db.ExecContext(
			ctx,
			`UPDATE enrichment_jobs SET status = ?, started_at = NULL, log_lines_json = ?, updated_at = ?
             WHERE id = ? AND status = ?`,
			JobQueued,
			string(linesJSON),
			now,
			stale[i].id,
			JobRunning,
		)
		if err != nil {
			return 0, fmt.Errorf("requeue job %d: %w", stale[i].id, err)
		}
	}
	return int64(len(stale)), nil
}

// JobFilter narrows ListJobs results.
type JobFilter struct {
	Status JobStatus
	Limit  uint64
}

// ListJobs returns jobs matching the filter, newest first.
func (s *Store) ListJobs(ctx context.Context, filter JobFilter) ([]*Job, error) {
	builder := sq.Select(jobColumns).From("enrichment_jobs").OrderBy("id DESC")
	if filter.Status != "" {
		builder = builder.Where(sq.Eq{"status": filter.Status})
	}
	if filter.Limit > 0 {
		builder = builder.Limit(filter.Limit)
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build job list query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// JobStats returns job counts grouped by status.
func (s *Store) JobStats(ctx context.Context) (map[JobStatus]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM enrichment_jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("job stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[JobStatus]int)
	for rows.Next() {
		var status JobStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		id           int64
		jobType      string
		idsJSON      string
		status       string
		total        int
		enriched     int
		failed       int
		progress     int
		linesJSON    string
		createdRaw   string
		startedRaw   sql.NullString
		completedRaw sql.NullString
		updatedRaw   string
	)
	if err := scanner.Scan(
		&id, &jobType, &idsJSON, &status, &total, &enriched, &failed, &progress,
		&linesJSON, &createdRaw, &startedRaw, &completedRaw, &updatedRaw,
	); err != nil {
		return nil, err
	}

	job := &Job{
		ID:             id,
		Type:           jobType,
		Status:         JobStatus(status),
		TotalTracks:    total,
		EnrichedTracks: enriched,
		FailedTracks:   failed,
		Progress:       progress,
		StartedAt:      scanTimePtr(startedRaw),
		CompletedAt:    scanTimePtr(completedRaw),
	}
	if err := json.Unmarshal([]byte(idsJSON), &job.TrackIDs); err != nil {
		return nil, fmt.Errorf("unmarshal track ids: %w", err)
	}
	if err := json.Unmarshal([]byte(linesJSON), &job.LogLines); err != nil {
		return nil, fmt.Errorf("unmarshal log lines: %w", err)
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		job.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		job.UpdatedAt = updated
	}
	return job, nil
}
