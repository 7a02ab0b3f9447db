package queue

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a clip job.
type Status string

const (
	StatusPending    Status = "pending"
	StatusUploaded   Status = "uploaded"
	StatusReady      Status = "ready"
	StatusProcessing Status = "processing"
	StatusDone       Status = "done"
	StatusFailed     Status = "failed"
)

// StaleRecoveryNote is the progress note set when a stuck job is
// returned to the ready state.
const StaleRecoveryNote = "Recovered from stale processing"

// DaemonStopReason is the error message set when jobs are failed due to
// daemon shutdown.
const DaemonStopReason = "Daemon stopped"

// ErrorMessageLimit bounds persisted failure messages.
const ErrorMessageLimit = 4000

var allStatuses = []Status{
	StatusPending,
	StatusUploaded,
	StatusReady,
	StatusProcessing,
	StatusDone,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// Job is the unit of orchestration persisted in SQLite. Only the
// workflow manager mutates Status; only the claiming worker mutates the
// Progress* fields while Status is processing.
type Job struct {
	ID                  int64
	Title               string
	SourcePath          string
	SourceURL           string
	Language            string
	RequestJSON         string
	AudioPath           string
	TranscriptJSON      string
	ClipsJSON           string
	Status              Status
	ErrorMessage        string
	CreatedAt           time.Time
	UpdatedAt           time.Time
	ProcessingStartedAt *time.Time
	LastHeartbeat       *time.Time
	ExpiresAt           *time.Time
	ProgressStage       string
	ProgressPercent     float64
	ProgressMessage     string
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsTerminal reports whether a status ends the current run.
func IsTerminal(status Status) bool {
	return status == StatusDone || status == StatusFailed
}

// IsExpired reports whether the job's retention window has passed.
func (j Job) IsExpired(now time.Time) bool {
	return j.ExpiresAt != nil && !j.ExpiresAt.After(now)
}

// SetProgress updates all three telemetry fields together. Use this
// instead of assigning stage, percent, and message individually.
func (j *Job) SetProgress(stage, message string, percent float64) {
	j.ProgressStage = stage
	j.ProgressMessage = message
	j.ProgressPercent = percent
}

// SetFailed marks the job failed with a bounded error message.
func (j *Job) SetFailed(message string) {
	j.Status = StatusFailed
	j.ErrorMessage = truncate(message, ErrorMessageLimit)
	j.ProgressPercent = 0
	j.ProgressMessage = j.ErrorMessage
	j.ProgressStage = "Failed"
	j.LastHeartbeat = nil
}

// HealthSummary describes aggregated queue counts per lifecycle state.
type HealthSummary struct {
	Total      int
	Waiting    int
	Processing int
	Done       int
	Failed     int
}

// DatabaseHealth captures diagnostic information about the job database.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	TableExists      bool
	ColumnsPresent   []string
	MissingColumns   []string
	IntegrityCheck   bool
	TotalJobs        int
	Error            string
}

func truncate(message string, limit int) string {
	message = strings.TrimSpace(message)
	if limit <= 0 || len(message) <= limit {
		return message
	}
	if limit <= 3 {
		return message[:limit]
	}
	return message[:limit-3] + "..."
}
