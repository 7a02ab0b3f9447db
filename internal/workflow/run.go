package workflow

import (
	"context"
	"errors"
	"time"

	"clipper/internal/logging"
)

// Start begins background processing.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}
	if len(m.stages) == 0 {
		m.mu.Unlock()
		return errors.New("workflow stages not configured")
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.wg.Add(1)
	m.mu.Unlock()

	go m.runLoop(runCtx)
	return nil
}

// Stop terminates background processing and waits for the in-flight
// job to finish or yield to cancellation.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
}

func (m *Manager) runLoop(ctx context.Context) {
	defer m.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		m.tick(ctx)
	}
}

// tick is one scheduling pass: promote intake, reclaim stale claims,
// claim and process one job. A pass with nothing to do sleeps for the
// poll interval.
func (m *Manager) tick(ctx context.Context) {
	if promoted, err := m.store.PromoteIntake(ctx); err != nil {
		m.handleQueueError(ctx, err, "intake promotion failed")
		return
	} else if promoted > 0 {
		m.logger.Info("promoted intake jobs", logging.Int64("count", promoted))
	}

	if err := m.heartbeat.ReclaimStale(ctx, m.logger, m.staleTimeout); err != nil {
		m.logger.Warn("reclaim stale processing failed; stuck jobs may remain",
			logging.Error(err),
			logging.String(logging.FieldEventType, "stale_reclaim_failed"),
			logging.String(logging.FieldErrorHint, "check queue database access"),
		)
	}

	job, err := m.store.ClaimNextReady(ctx)
	if err != nil {
		m.handleQueueError(ctx, err, "failed to claim next job")
		return
	}
	if job == nil {
		m.waitForJobOrShutdown(ctx)
		return
	}

	if err := m.processJob(ctx, job); err != nil && errors.Is(err, context.Canceled) {
		return
	}
}

func (m *Manager) handleQueueError(ctx context.Context, err error, message string) {
	if errors.Is(err, context.Canceled) {
		return
	}
	m.setLastError(err)
	m.logger.Error(message,
		logging.Error(err),
		logging.String(logging.FieldEventType, "queue_fetch_failed"),
		logging.String(logging.FieldErrorHint, "check queue database access"),
	)
	select {
	case <-ctx.Done():
	case <-time.After(time.Duration(m.cfg.Workflow.ErrorRetryInterval) * time.Second):
	}
}

func (m *Manager) waitForJobOrShutdown(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(m.pollInterval):
	}
}
