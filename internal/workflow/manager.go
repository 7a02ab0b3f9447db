package workflow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"clipper/internal/config"
	"clipper/internal/logging"
	"clipper/internal/queue"
	"clipper/internal/stage"
)

// Stage pairs a pipeline stage with its display name. Stages run in
// slice order under a single processing claim.
type Stage struct {
	Name    string
	Handler stage.Handler
}

// Manager drives the job queue: it promotes intake jobs, reclaims
// stale claims, claims ready jobs and runs them through the pipeline.
type Manager struct {
	cfg          *config.Config
	store        *queue.Store
	logger       *slog.Logger
	stages       []Stage
	pollInterval time.Duration
	staleTimeout time.Duration

	heartbeat *HeartbeatMonitor

	mu      sync.RWMutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	lastErr error
}

// NewManager constructs a workflow manager. The stage order given here
// is the pipeline order.
func NewManager(cfg *config.Config, store *queue.Store, logger *slog.Logger, stages []Stage) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Manager{
		cfg:          cfg,
		store:        store,
		logger:       logger.With(logging.String(logging.FieldComponent, "workflow-manager")),
		stages:       stages,
		pollInterval: time.Duration(cfg.Workflow.QueuePollInterval) * time.Second,
		staleTimeout: time.Duration(cfg.Workflow.StaleTimeout) * time.Second,
		heartbeat: NewHeartbeatMonitor(
			store,
			logger,
			time.Duration(cfg.Workflow.HeartbeatInterval)*time.Second,
		),
	}
}

// LastError returns the most recent loop error, for health reporting.
func (m *Manager) LastError() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastErr
}

// Running reports whether the loop is active.
func (m *Manager) Running() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

// StageHealth runs every stage's health check.
func (m *Manager) StageHealth(ctx context.Context) []stage.Health {
	out := make([]stage.Health, 0, len(m.stages))
	for _, st := range m.stages {
		out = append(out, st.Handler.HealthCheck(ctx))
	}
	return out
}
