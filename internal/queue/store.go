package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"clipper/internal/config"
)

// Capabilities describes optional schema features detected at open.
type Capabilities struct {
	Telemetry bool
}

// Store manages job persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
	caps Capabilities
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// Open initializes or connects to the job database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(filepath.Join(cfg.Paths.LogDir, "jobs.db"))
}

// OpenPath opens the job database at an explicit location.
func OpenPath(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	ctx := context.Background()
	if err := store.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := store.probeCapabilities(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Capabilities reports the optional schema features detected at open.
func (s *Store) Capabilities() Capabilities {
	return s.caps
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func (s *Store) execWithRetry(ctx context.Context, query string, args ...any) (sql.Result, error) {
	ctx = ensureContext(ctx)
	var (
		res     sql.Result
		execErr error
	)
	if err := retryOnBusy(ctx, func() error {
		res, execErr = s.db.ExecContext(ctx, query, args...)
		return execErr
	}); err != nil {
		return nil, err
	}
	return res, nil
}

// NewJob inserts a freshly created job awaiting its source upload.
func (s *Store) NewJob(ctx context.Context, title, sourceURL, language, requestJSON string, expiresAt *time.Time) (*Job, error) {
	if strings.TrimSpace(title) == "" {
		title = inferTitleFromSource(sourceURL)
	}
	now := time.Now().UTC()
	timestamp := formatSQLTime(now)

	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO jobs (
            title, source_url, language, request_json, status,
            created_at, updated_at, expires_at, progress_percent
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		title,
		nullableString(sourceURL),
		nullableString(language),
		nullableString(requestJSON),
		StatusPending,
		timestamp,
		timestamp,
		nullableTime(expiresAt),
		0.0,
	)
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

// NewLocalJob enqueues a job whose source already exists on disk. It
// skips the upload handshake and lands directly in the ready state.
func (s *Store) NewLocalJob(ctx context.Context, sourcePath, language, requestJSON string) (*Job, error) {
	now := time.Now().UTC()
	timestamp := formatSQLTime(now)

	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO jobs (
            title, source_path, language, request_json, status,
            created_at, updated_at, progress_percent
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		inferTitleFromSource(sourcePath),
		sourcePath,
		nullableString(language),
		nullableString(requestJSON),
		StatusReady,
		timestamp,
		timestamp,
		0.0,
	)
	if err != nil {
		return nil, fmt.Errorf("insert local job: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

// GetByID fetches a job by identifier.
func (s *Store) GetByID(ctx context.Context, id int64) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// Update persists changes to an existing job row. Prefer the
// conditional transition helpers for status changes.
func (s *Store) Update(ctx context.Context, job *Job) error {
	if job == nil {
		return errors.New("job is nil")
	}
	job.UpdatedAt = time.Now().UTC()

	if !s.caps.Telemetry {
		_, err := s.execWithRetry(
			ctx,
			`UPDATE jobs
             SET title = ?, source_path = ?, source_url = ?, language = ?,
                 request_json = ?, audio_path = ?, transcript_json = ?, clips_json = ?,
                 status = ?, error_message = ?, updated_at = ?,
                 processing_started_at = ?, last_heartbeat = ?, expires_at = ?
             WHERE id = ?`,
			nullableString(job.Title),
			nullableString(job.SourcePath),
			nullableString(job.SourceURL),
			nullableString(job.Language),
			nullableString(job.RequestJSON),
			nullableString(job.AudioPath),
			nullableString(job.TranscriptJSON),
			nullableString(job.ClipsJSON),
			job.Status,
			nullableString(job.ErrorMessage),
			formatSQLTime(job.UpdatedAt),
			nullableTime(job.ProcessingStartedAt),
			nullableTime(job.LastHeartbeat),
			nullableTime(job.ExpiresAt),
			job.ID,
		)
		if err != nil {
			return fmt.Errorf("update job: %w", err)
		}
		return nil
	}

	_, err := s.execWithRetry(
		ctx,
		`UPDATE jobs
         SET title = ?, source_path = ?, source_url = ?, language = ?,
             request_json = ?, audio_path = ?, transcript_json = ?, clips_json = ?,
             status = ?, error_message = ?, updated_at = ?,
             processing_started_at = ?, last_heartbeat = ?, expires_at = ?,
             progress_stage = ?, progress_percent = ?, progress_message = ?
         WHERE id = ?`,
		nullableString(job.Title),
		nullableString(job.SourcePath),
		nullableString(job.SourceURL),
		nullableString(job.Language),
		nullableString(job.RequestJSON),
		nullableString(job.AudioPath),
		nullableString(job.TranscriptJSON),
		nullableString(job.ClipsJSON),
		job.Status,
		nullableString(job.ErrorMessage),
		formatSQLTime(job.UpdatedAt),
		nullableTime(job.ProcessingStartedAt),
		nullableTime(job.LastHeartbeat),
		nullableTime(job.ExpiresAt),
		nullableString(job.ProgressStage),
		job.ProgressPercent,
		nullableString(job.ProgressMessage),
		job.ID,
	)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	return nil
}

// List returns jobs filtered by status set (or all jobs when no status
// is provided), oldest first.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Job, error) {
	baseQuery := `SELECT ` + jobColumns + ` FROM jobs`
	orderClause := ` ORDER BY created_at`

	var (
		rows *sql.Rows
		err  error
	)
	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		rows, err = s.db.QueryContext(ctx, baseQuery+` WHERE status IN (`+placeholders+`)`+orderClause, args...)
	}
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

// Stats returns a count of jobs grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("job stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// Health aggregates queue state for diagnostic output.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	stats, err := s.Stats(ctx)
	if err != nil {
		return HealthSummary{}, err
	}
	health := HealthSummary{}
	for status, count := range stats {
		health.Total += count
		switch status {
		case StatusPending, StatusUploaded, StatusReady:
			health.Waiting += count
		case StatusProcessing:
			health.Processing += count
		case StatusDone:
			health.Done += count
		case StatusFailed:
			health.Failed += count
		}
	}
	return health, nil
}

// CheckHealth returns diagnostic information about the job database.
func (s *Store) CheckHealth(ctx context.Context) (DatabaseHealth, error) {
	health := DatabaseHealth{DBPath: s.path}

	if s.path == "" {
		return health, errors.New("job database path is unknown")
	}
	info, err := os.Stat(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return health, nil
		}
		return health, fmt.Errorf("stat job database: %w", err)
	}
	if info.IsDir() {
		return health, fmt.Errorf("job database path %q is a directory", s.path)
	}
	health.DatabaseExists = true

	connCtx, cancel := context.WithTimeout(ensureContext(ctx), 2*time.Second)
	defer cancel()

	if err := s.db.PingContext(connCtx); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("ping job database: %w", err)
	}
	health.DatabaseReadable = true

	columns, err := s.tableColumns(connCtx, "jobs")
	if err != nil {
		health.Error = err.Error()
		return health, err
	}
	health.TableExists = len(columns) > 0
	health.ColumnsPresent = columns

	if health.TableExists {
		expected := append([]string{
			"id", "title", "source_path", "source_url", "language", "request_json",
			"audio_path", "transcript_json", "clips_json", "status", "error_message",
			"created_at", "updated_at", "processing_started_at", "last_heartbeat", "expires_at",
		}, telemetryColumns...)
		missingMap := make(map[string]struct{}, len(expected))
		for _, col := range expected {
			missingMap[col] = struct{}{}
		}
		for _, col := range columns {
			delete(missingMap, col)
		}
		for col := range missingMap {
			health.MissingColumns = append(health.MissingColumns, col)
		}

		row := s.db.QueryRowContext(connCtx, "SELECT COUNT(*) FROM jobs")
		if err := row.Scan(&health.TotalJobs); err != nil {
			health.Error = err.Error()
			return health, fmt.Errorf("count jobs: %w", err)
		}
	}

	var integrityResult string
	row := s.db.QueryRowContext(connCtx, "PRAGMA integrity_check")
	if err := row.Scan(&integrityResult); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("integrity check: %w", err)
	}
	health.IntegrityCheck = strings.EqualFold(integrityResult, "ok")

	return health, nil
}

// Remove deletes a job by identifier.
func (s *Store) Remove(ctx context.Context, id int64) (bool, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM jobs WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// ClearDone removes only completed jobs from the queue.
func (s *Store) ClearDone(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM jobs WHERE status = ?`, StatusDone)
	if err != nil {
		return 0, fmt.Errorf("clear done: %w", err)
	}
	return res.RowsAffected()
}

// ClearFailed removes only failed jobs from the queue.
func (s *Store) ClearFailed(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM jobs WHERE status = ?`, StatusFailed)
	if err != nil {
		return 0, fmt.Errorf("clear failed: %w", err)
	}
	return res.RowsAffected()
}

// Clear removes all jobs from the queue.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM jobs`)
	if err != nil {
		return 0, fmt.Errorf("clear queue: %w", err)
	}
	return res.RowsAffected()
}

const jobColumns = "id, title, source_path, source_url, language, request_json, audio_path, transcript_json, clips_json, status, error_message, created_at, updated_at, processing_started_at, last_heartbeat, expires_at, progress_stage, progress_percent, progress_message"

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		id              int64
		title           sql.NullString
		sourcePath      sql.NullString
		sourceURL       sql.NullString
		language        sql.NullString
		requestJSON     sql.NullString
		audioPath       sql.NullString
		transcriptJSON  sql.NullString
		clipsJSON       sql.NullString
		statusStr       string
		errorMessage    sql.NullString
		createdRaw      sql.NullString
		updatedRaw      sql.NullString
		processingRaw   sql.NullString
		heartbeatRaw    sql.NullString
		expiresRaw      sql.NullString
		progressStage   sql.NullString
		progressPercent sql.NullFloat64
		progressMessage sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&title,
		&sourcePath,
		&sourceURL,
		&language,
		&requestJSON,
		&audioPath,
		&transcriptJSON,
		&clipsJSON,
		&statusStr,
		&errorMessage,
		&createdRaw,
		&updatedRaw,
		&processingRaw,
		&heartbeatRaw,
		&expiresRaw,
		&progressStage,
		&progressPercent,
		&progressMessage,
	); err != nil {
		return nil, err
	}

	job := &Job{
		ID:              id,
		Title:           title.String,
		SourcePath:      sourcePath.String,
		SourceURL:       sourceURL.String,
		Language:        language.String,
		RequestJSON:     requestJSON.String,
		AudioPath:       audioPath.String,
		TranscriptJSON:  transcriptJSON.String,
		ClipsJSON:       clipsJSON.String,
		Status:          Status(statusStr),
		ErrorMessage:    errorMessage.String,
		ProgressStage:   progressStage.String,
		ProgressPercent: progressPercent.Float64,
		ProgressMessage: progressMessage.String,
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		job.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		job.UpdatedAt = updated
	}
	if processingRaw.Valid {
		if started, err := parseTimeString(processingRaw.String); err == nil {
			job.ProcessingStartedAt = &started
		}
	}
	if heartbeatRaw.Valid {
		if heartbeat, err := parseTimeString(heartbeatRaw.String); err == nil {
			job.LastHeartbeat = &heartbeat
		}
	}
	if expiresRaw.Valid {
		if expires, err := parseTimeString(expiresRaw.String); err == nil {
			job.ExpiresAt = &expires
		}
	}
	return job, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return formatSQLTime(*value)
}

// sqlTimeFormat pads fractional seconds to a fixed width. RFC3339Nano
// trims trailing zeros, which breaks lexicographic comparison in SQL
// around whole-second boundaries ("...00.1Z" sorts before "...00Z").
const sqlTimeFormat = "2006-01-02T15:04:05.000000000Z07:00"

func formatSQLTime(value time.Time) string {
	return value.UTC().Format(sqlTimeFormat)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}

func inferTitleFromSource(source string) string {
	base := strings.TrimSpace(filepath.Base(source))
	if base == "" || base == "." || base == "/" {
		return "Untitled Upload"
	}
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if cleaned := strings.TrimSpace(base); cleaned != "" {
		return cleaned
	}
	return "Untitled Upload"
}
