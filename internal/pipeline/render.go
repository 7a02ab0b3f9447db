package pipeline

import (
	"context"
	"encoding/json"
	"log/slog"
	"os/exec"
	"strings"

	"clipper/internal/config"
	"clipper/internal/logging"
	"clipper/internal/media/ffmpeg"
	"clipper/internal/queue"
	"clipper/internal/selection"
	"clipper/internal/services"
	"clipper/internal/stage"
	"clipper/internal/transcript"
)

// RenderStage exports each selected clip as a vertical video, clip
// order preserved.
type RenderStage struct {
	cfg    *config.Config
	runner *ffmpeg.Runner
	logger *slog.Logger
}

// NewRenderStage builds the stage.
func NewRenderStage(cfg *config.Config, runner *ffmpeg.Runner, logger *slog.Logger) *RenderStage {
	return &RenderStage{cfg: cfg, runner: runner, logger: componentLogger(logger, "render")}
}

func (s *RenderStage) Prepare(ctx context.Context, job *queue.Job) error {
	if strings.TrimSpace(job.ClipsJSON) == "" {
		return services.Wrap(services.ErrValidation, "render", "prepare", "no clips selected", nil)
	}
	if strings.TrimSpace(job.SourcePath) == "" {
		return services.Wrap(services.ErrValidation, "render", "prepare", "source path not set", nil)
	}
	return ensureJobDir(s.cfg, job.ID)
}

func (s *RenderStage) Execute(ctx context.Context, job *queue.Job) error {
	clips, err := decodeClips(job.ClipsJSON)
	if err != nil {
		return err
	}

	var segments []transcript.Segment
	if s.cfg.Render.BurnCaptions && job.TranscriptJSON != "" {
		var tr transcript.Transcript
		if err := json.Unmarshal([]byte(job.TranscriptJSON), &tr); err == nil {
			segments = tr.Segments
		}
	}

	for i, clip := range clips {
		if err := ctx.Err(); err != nil {
			return err
		}

		captions := ""
		if len(segments) > 0 {
			path := captionPath(s.cfg, job.ID, clip.ID)
			wrote, err := ffmpeg.WriteSRT(path, segments, clip.Start, clip.End)
			if err != nil {
				s.logger.Warn("caption file failed; rendering without captions",
					logging.Int64(logging.FieldJobID, job.ID),
					logging.String("clip_id", clip.ID),
					logging.Error(err),
				)
			} else if wrote {
				captions = path
			}
		}

		dest := renderPath(s.cfg, job.ID, clip.ID)
		if err := s.runner.RenderClip(ctx, job.SourcePath, clip, dest, captions); err != nil {
			return err
		}
		s.logger.Info("clip rendered",
			logging.Int64(logging.FieldJobID, job.ID),
			logging.String("clip_id", clip.ID),
			logging.Int("remaining", len(clips)-i-1),
		)
	}
	return nil
}

func (s *RenderStage) HealthCheck(ctx context.Context) stage.Health {
	binary := s.cfg.Render.FFmpegBinary
	if binary == "" {
		binary = "ffmpeg"
	}
	if _, err := exec.LookPath(binary); err != nil {
		return stage.Unhealthy("render", "ffmpeg not found")
	}
	return stage.Healthy("render")
}

func decodeClips(raw string) ([]selection.Clip, error) {
	var clips []selection.Clip
	if err := json.Unmarshal([]byte(raw), &clips); err != nil {
		return nil, services.Wrap(services.ErrValidation, "render", "decode", "clips JSON corrupt", err)
	}
	if len(clips) == 0 {
		return nil, services.Wrap(services.ErrValidation, "render", "decode", "clip list is empty", nil)
	}
	return clips, nil
}
