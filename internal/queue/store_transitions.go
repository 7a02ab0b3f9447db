package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Transition performs an atomic conditional status change: the row
// moves from expected to next only if it still holds expected. A false
// return with nil error means another worker got there first.
func (s *Store) Transition(ctx context.Context, id int64, expected, next Status) (bool, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE jobs SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		next,
		formatSQLTime(time.Now()),
		id,
		expected,
	)
	if err != nil {
		return false, fmt.Errorf("transition job %d %s->%s: %w", id, expected, next, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// ClaimNextReady selects the oldest non-expired ready job and attempts
// the compare-and-swap into processing. Zero rows affected means
// another worker won the race; the caller should treat that as a
// no-op tick, not an error.
func (s *Store) ClaimNextReady(ctx context.Context) (*Job, error) {
	now := time.Now().UTC()
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+jobColumns+` FROM jobs
         WHERE status = ? AND (expires_at IS NULL OR expires_at > ?)
         ORDER BY created_at LIMIT 1`,
		StatusReady,
		formatSQLTime(now),
	)
	candidate, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("next ready job: %w", err)
	}

	timestamp := formatSQLTime(now)
	query := `UPDATE jobs
         SET status = ?, processing_started_at = ?, last_heartbeat = ?,
             error_message = NULL, updated_at = ?`
	args := []any{StatusProcessing, timestamp, timestamp, timestamp}
	if s.caps.Telemetry {
		query += `, progress_stage = NULL, progress_percent = 0, progress_message = NULL`
	}
	query += ` WHERE id = ? AND status = ?`
	args = append(args, candidate.ID, StatusReady)

	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("claim job %d: %w", candidate.ID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return nil, nil
	}
	return s.GetByID(ctx, candidate.ID)
}

// UpdateTelemetry persists stage/progress/note for an in-flight job.
// On stores without telemetry columns it degrades to touching
// updated_at only.
func (s *Store) UpdateTelemetry(ctx context.Context, id int64, stage, note string, percent float64) error {
	timestamp := formatSQLTime(time.Now())
	if !s.caps.Telemetry {
		_, err := s.execWithRetry(ctx, `UPDATE jobs SET updated_at = ? WHERE id = ?`, timestamp, id)
		if err != nil {
			return fmt.Errorf("touch job %d: %w", id, err)
		}
		return nil
	}
	_, err := s.execWithRetry(
		ctx,
		`UPDATE jobs
         SET progress_stage = ?, progress_percent = ?, progress_message = ?, updated_at = ?
         WHERE id = ? AND status = ?`,
		nullableString(stage),
		percent,
		nullableString(note),
		timestamp,
		id,
		StatusProcessing,
	)
	if err != nil {
		return fmt.Errorf("update telemetry for job %d: %w", id, err)
	}
	return nil
}

// UpdateHeartbeat refreshes the liveness timestamp for an in-flight job.
func (s *Store) UpdateHeartbeat(ctx context.Context, id int64) error {
	now := formatSQLTime(time.Now())
	_, err := s.execWithRetry(
		ctx,
		`UPDATE jobs SET last_heartbeat = ?, updated_at = ? WHERE id = ?`,
		now,
		now,
		id,
	)
	if err != nil {
		return fmt.Errorf("update heartbeat: %w", err)
	}
	return nil
}

// MarkDone finalizes a successful run. The conditional update keeps a
// reclaimed job's second worker from overwriting the first's result.
func (s *Store) MarkDone(ctx context.Context, job *Job) (bool, error) {
	timestamp := formatSQLTime(time.Now())
	query := `UPDATE jobs
         SET status = ?, clips_json = ?, error_message = NULL,
             last_heartbeat = NULL, updated_at = ?`
	args := []any{StatusDone, nullableString(job.ClipsJSON), timestamp}
	if s.caps.Telemetry {
		query += `, progress_stage = 'Completed', progress_percent = 100, progress_message = 'Completed'`
	}
	query += ` WHERE id = ? AND status = ?`
	args = append(args, job.ID, StatusProcessing)

	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("mark job %d done: %w", job.ID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// MarkFailed transitions a processing job to failed with a bounded
// error message.
func (s *Store) MarkFailed(ctx context.Context, id int64, message string) (bool, error) {
	timestamp := formatSQLTime(time.Now())
	bounded := truncate(message, ErrorMessageLimit)
	query := `UPDATE jobs
         SET status = ?, error_message = ?, last_heartbeat = NULL, updated_at = ?`
	args := []any{StatusFailed, nullableString(bounded), timestamp}
	if s.caps.Telemetry {
		query += `, progress_stage = 'Failed', progress_percent = 0, progress_message = ?`
		args = append(args, nullableString(bounded))
	}
	query += ` WHERE id = ? AND status = ?`
	args = append(args, id, StatusProcessing)

	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("mark job %d failed: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// ReclaimStale returns processing jobs whose claim or heartbeat is
// older than cutoff back to ready with a diagnostic note. The original
// worker is presumed dead or wedged.
func (s *Store) ReclaimStale(ctx context.Context, cutoff time.Time) (int64, error) {
	now := formatSQLTime(time.Now())
	cutoffStr := formatSQLTime(cutoff)

	query := `UPDATE jobs
        SET status = ?, processing_started_at = NULL, last_heartbeat = NULL, updated_at = ?`
	args := []any{StatusReady, now}
	if s.caps.Telemetry {
		query += `, progress_stage = ?, progress_percent = 0, progress_message = NULL`
		args = append(args, StaleRecoveryNote)
	}
	query += ` WHERE status = ?
        AND COALESCE(last_heartbeat, processing_started_at) IS NOT NULL
        AND COALESCE(last_heartbeat, processing_started_at) < ?`
	args = append(args, StatusProcessing, cutoffStr)

	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("reclaim stale jobs: %w", err)
	}
	return res.RowsAffected()
}

// PromoteIntake advances pending and uploaded jobs that have a source
// to fetch or a file already on disk into the ready state.
func (s *Store) PromoteIntake(ctx context.Context) (int64, error) {
	timestamp := formatSQLTime(time.Now())
	res, err := s.execWithRetry(
		ctx,
		`UPDATE jobs SET status = ?, updated_at = ?
         WHERE status IN (?, ?)
         AND (COALESCE(source_url, '') != '' OR COALESCE(source_path, '') != '')`,
		StatusReady,
		timestamp,
		StatusPending,
		StatusUploaded,
	)
	if err != nil {
		return 0, fmt.Errorf("promote intake jobs: %w", err)
	}
	return res.RowsAffected()
}

// RetryFailed moves failed jobs back to ready for reprocessing. With no
// ids, all failed jobs are retried.
func (s *Store) RetryFailed(ctx context.Context, ids ...int64) (int64, error) {
	timestamp := formatSQLTime(time.Now())

	setClause := `SET status = ?, error_message = NULL, processing_started_at = NULL,
                last_heartbeat = NULL, updated_at = ?`
	if s.caps.Telemetry {
		setClause += `, progress_stage = 'Retry requested', progress_percent = 0, progress_message = NULL`
	}

	if len(ids) == 0 {
		res, err := s.execWithRetry(
			ctx,
			`UPDATE jobs `+setClause+` WHERE status = ?`,
			StatusReady,
			timestamp,
			StatusFailed,
		)
		if err != nil {
			return 0, fmt.Errorf("retry failed jobs: %w", err)
		}
		return res.RowsAffected()
	}

	placeholders := makePlaceholders(len(ids))
	args := make([]any, 0, len(ids)+3)
	args = append(args, StatusReady, timestamp)
	for _, id := range ids {
		args = append(args, id)
	}
	args = append(args, StatusFailed)
	res, err := s.execWithRetry(
		ctx,
		`UPDATE jobs `+setClause+` WHERE id IN (`+placeholders+`) AND status = ?`,
		args...,
	)
	if err != nil {
		return 0, fmt.Errorf("retry selected jobs: %w", err)
	}
	return res.RowsAffected()
}
