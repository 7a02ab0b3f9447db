package pipeline

import (
	"context"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"clipper/internal/config"
	"clipper/internal/logging"
	"clipper/internal/media/ffmpeg"
	"clipper/internal/queue"
	"clipper/internal/services"
	"clipper/internal/stage"
)

// AudioStage extracts the mono 16 kHz track the transcriber consumes.
type AudioStage struct {
	cfg    *config.Config
	runner *ffmpeg.Runner
	logger *slog.Logger
}

// NewAudioStage builds the stage.
func NewAudioStage(cfg *config.Config, runner *ffmpeg.Runner, logger *slog.Logger) *AudioStage {
	return &AudioStage{cfg: cfg, runner: runner, logger: componentLogger(logger, "audio")}
}

func (s *AudioStage) Prepare(ctx context.Context, job *queue.Job) error {
	if strings.TrimSpace(job.SourcePath) == "" {
		return services.Wrap(services.ErrValidation, "audio", "prepare", "source path not set", nil)
	}
	return ensureJobDir(s.cfg, job.ID)
}

func (s *AudioStage) Execute(ctx context.Context, job *queue.Job) error {
	duration, err := s.runner.Duration(ctx, job.SourcePath)
	if err != nil {
		return err
	}
	if duration <= 0 {
		return services.Wrap(services.ErrValidation, "audio", "probe", "source has zero duration", nil)
	}

	dest := audioPath(s.cfg, job.ID)
	if err := s.runner.ExtractAudio(ctx, job.SourcePath, dest); err != nil {
		return err
	}
	if _, err := os.Stat(dest); err != nil {
		return services.Wrap(services.ErrExternalTool, "audio", "extract", "ffmpeg produced no audio file", err)
	}
	job.AudioPath = dest
	s.logger.Info("audio extracted",
		logging.Int64(logging.FieldJobID, job.ID),
		logging.Float64("source_seconds", duration),
	)
	return nil
}

func (s *AudioStage) HealthCheck(ctx context.Context) stage.Health {
	binary := s.cfg.Render.FFmpegBinary
	if binary == "" {
		binary = "ffmpeg"
	}
	if _, err := exec.LookPath(binary); err != nil {
		return stage.Unhealthy("audio", "ffmpeg not found")
	}
	return stage.Healthy("audio")
}
