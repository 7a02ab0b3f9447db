package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"clipper/internal/logging"
	"clipper/internal/queue"
	"clipper/internal/services"
)

// processJob runs one claimed job through every pipeline stage. The
// claim was won by CAS; from here on this worker owns the job until it
// reaches a terminal state or the claim goes stale.
func (m *Manager) processJob(ctx context.Context, job *queue.Job) error {
	requestID := uuid.NewString()
	ctx = services.WithJobID(ctx, job.ID)
	ctx = services.WithRequestID(ctx, requestID)

	jobLogger := m.logger.With(
		logging.Int64(logging.FieldJobID, job.ID),
		logging.String(logging.FieldCorrelationID, requestID),
	)
	jobLogger.Info("job started",
		logging.String(logging.FieldEventType, "job_start"),
		logging.String("title", job.Title),
	)
	jobStart := time.Now()

	total := len(m.stages)
	for i, st := range m.stages {
		if err := ctx.Err(); err != nil {
			return err
		}

		stageCtx := services.WithStage(ctx, st.Name)
		stageLogger := jobLogger.With(logging.String(logging.FieldStage, st.Name))

		percent := float64(i) / float64(total) * 100
		m.reportProgress(stageCtx, stageLogger, job.ID, st.Name, fmt.Sprintf("%s started", st.Name), percent)

		if err := st.Handler.Prepare(stageCtx, job); err != nil {
			m.handleStageFailure(stageCtx, st.Name, job, err)
			return err
		}
		if err := m.executeWithHeartbeat(stageCtx, st, job); err != nil {
			if errors.Is(err, context.Canceled) {
				stageLogger.Debug("stage interrupted by shutdown")
				return err
			}
			m.handleStageFailure(stageCtx, st.Name, job, err)
			return err
		}

		// Persist stage outputs so a later reclaim can inspect them.
		if err := m.store.Update(stageCtx, job); err != nil {
			wrapped := fmt.Errorf("persist stage result: %w", err)
			m.handleStageFailure(stageCtx, st.Name, job, wrapped)
			return wrapped
		}
		stageLogger.Info("stage completed",
			logging.String(logging.FieldEventType, "stage_complete"),
		)
	}

	done, err := m.store.MarkDone(ctx, job)
	if err != nil {
		m.setLastError(err)
		jobLogger.Error("failed to finalize job", logging.Error(err))
		return err
	}
	if !done {
		// The claim went stale mid-run and another worker owns the job
		// now. Drop this result rather than overwrite theirs.
		jobLogger.Warn("job no longer processing at completion; result discarded",
			logging.String(logging.FieldEventType, "job_finalize_race"),
		)
		return nil
	}
	jobLogger.Info("job completed",
		logging.String(logging.FieldEventType, "job_complete"),
		logging.Duration("job_duration", time.Since(jobStart)),
		logging.Int("stages", total),
	)
	return nil
}

// executeWithHeartbeat runs the stage while a background goroutine
// refreshes the job's liveness timestamp.
func (m *Manager) executeWithHeartbeat(ctx context.Context, st Stage, job *queue.Job) error {
	hbCtx, hbCancel := context.WithCancel(ctx)
	var hbWG sync.WaitGroup
	hbWG.Add(1)
	go m.heartbeat.StartLoop(hbCtx, &hbWG, job.ID)

	execErr := st.Handler.Execute(ctx, job)
	hbCancel()
	hbWG.Wait()
	return execErr
}

// reportProgress persists telemetry best-effort; a failed write never
// fails the stage.
func (m *Manager) reportProgress(ctx context.Context, logger *slog.Logger, jobID int64, stageName, note string, percent float64) {
	if err := m.store.UpdateTelemetry(ctx, jobID, stageName, note, percent); err != nil && !errors.Is(err, context.Canceled) {
		logger.Warn("telemetry update failed", logging.Error(err))
	}
}
