package pipeline

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"strings"

	"clipper/internal/config"
	"clipper/internal/logging"
	"clipper/internal/queue"
	"clipper/internal/services"
	"clipper/internal/services/transcriber"
	"clipper/internal/stage"
)

// TranscribeStage runs the faster-whisper subprocess and persists the
// transcript JSON on the job row.
type TranscribeStage struct {
	cfg    *config.Config
	client *transcriber.Client
	logger *slog.Logger
}

// NewTranscribeStage builds the stage.
func NewTranscribeStage(cfg *config.Config, client *transcriber.Client, logger *slog.Logger) *TranscribeStage {
	return &TranscribeStage{cfg: cfg, client: client, logger: componentLogger(logger, "transcribe")}
}

func (s *TranscribeStage) Prepare(ctx context.Context, job *queue.Job) error {
	if strings.TrimSpace(job.AudioPath) == "" {
		return services.Wrap(services.ErrValidation, "transcribe", "prepare", "audio path not set", nil)
	}
	return nil
}

func (s *TranscribeStage) Execute(ctx context.Context, job *queue.Job) error {
	tr, err := s.client.Transcribe(ctx, job.AudioPath, job.Language)
	if err != nil {
		return err
	}

	raw, err := json.Marshal(tr)
	if err != nil {
		return services.Wrap(services.ErrValidation, "transcribe", "encode", "marshal transcript", err)
	}
	job.TranscriptJSON = string(raw)
	if job.Language == "" || job.Language == "auto" {
		job.Language = tr.Language
	}
	s.logger.Info("transcript ready",
		logging.Int64(logging.FieldJobID, job.ID),
		logging.Int("segments", len(tr.Segments)),
		logging.String("language", tr.Language),
	)
	return nil
}

func (s *TranscribeStage) HealthCheck(ctx context.Context) stage.Health {
	if _, err := os.Stat(s.cfg.Transcriber.Script); err != nil {
		return stage.Unhealthy("transcribe", "transcription script missing")
	}
	return stage.Healthy("transcribe")
}
