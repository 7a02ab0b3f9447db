package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"clipper/internal/logging"
	"clipper/internal/queue"
	"clipper/internal/services"
)

// handleStageFailure records a terminal failure: bounded message on the
// row, structured log entry, retry classification in the log only.
func (m *Manager) handleStageFailure(ctx context.Context, stageName string, job *queue.Job, stageErr error) {
	message := classifyStageFailure(stageName, stageErr)
	m.setLastError(stageErr)

	logger := m.logger.With(
		logging.Int64(logging.FieldJobID, job.ID),
		logging.String(logging.FieldStage, stageName),
	)
	logger.Error("stage failed",
		logging.Error(stageErr),
		logging.String(logging.FieldEventType, "stage_failure"),
		logging.String("error_message", message),
		logging.Bool("retryable", services.IsRetryable(stageErr)),
	)

	failed, err := m.store.MarkFailed(ctx, job.ID, message)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Debug("daemon shutting down, could not persist stage failure")
			return
		}
		logger.Error("failed to persist stage failure", logging.Error(err))
		return
	}
	if !failed {
		logger.Warn("job no longer processing at failure; row left untouched",
			logging.String(logging.FieldEventType, "job_failure_race"),
		)
	}
}

// classifyStageFailure extracts the human-readable failure message,
// falling back to a generic stage label.
func classifyStageFailure(stageName string, stageErr error) string {
	if stageErr == nil {
		return fmt.Sprintf("%s failed without error detail", stageName)
	}
	message := strings.TrimSpace(services.Message(stageErr))
	if message == "" {
		message = fmt.Sprintf("%s failed", stageName)
	}
	return services.TruncateMessage(message, queue.ErrorMessageLimit)
}
