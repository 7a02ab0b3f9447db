package queue

import (
	"context"
	"fmt"
)

const createJobsTable = `CREATE TABLE IF NOT EXISTS jobs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    title TEXT,
    source_path TEXT,
    source_url TEXT,
    language TEXT,
    request_json TEXT,
    audio_path TEXT,
    transcript_json TEXT,
    clips_json TEXT,
    status TEXT NOT NULL,
    error_message TEXT,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL,
    processing_started_at TEXT,
    last_heartbeat TEXT,
    expires_at TEXT,
    progress_stage TEXT,
    progress_percent REAL DEFAULT 0,
    progress_message TEXT
)`

const createStatusIndex = `CREATE INDEX IF NOT EXISTS idx_jobs_status_created
    ON jobs (status, created_at)`

// telemetryColumns are optional: a store opened against an older
// database that lacks them degrades to status-only writes rather than
// failing jobs (schema drift handling).
var telemetryColumns = []string{"progress_stage", "progress_percent", "progress_message"}

func (s *Store) initSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, createJobsTable); err != nil {
		return fmt.Errorf("create jobs table: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, createStatusIndex); err != nil {
		return fmt.Errorf("create status index: %w", err)
	}
	return nil
}

// probeCapabilities inspects the live schema once at open so per-call
// code never string-matches on missing-column errors.
func (s *Store) probeCapabilities(ctx context.Context) error {
	columns, err := s.tableColumns(ctx, "jobs")
	if err != nil {
		return err
	}
	present := make(map[string]struct{}, len(columns))
	for _, col := range columns {
		present[col] = struct{}{}
	}
	s.caps.Telemetry = true
	for _, col := range telemetryColumns {
		if _, ok := present[col]; !ok {
			s.caps.Telemetry = false
			break
		}
	}
	return nil
}

func (s *Store) tableColumns(ctx context.Context, table string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return nil, fmt.Errorf("table info: %w", err)
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var (
			cid     int
			name    string
			typeStr string
			notNull int
			dflt    any
			pk      int
		)
		if err := rows.Scan(&cid, &name, &typeStr, &notNull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("scan table info: %w", err)
		}
		columns = append(columns, name)
	}
	return columns, rows.Err()
}
