package pipeline

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"clipper/internal/config"
	"clipper/internal/logging"
	"clipper/internal/queue"
	"clipper/internal/selection"
	"clipper/internal/services"
	"clipper/internal/services/chat"
	"clipper/internal/stage"
	"clipper/internal/transcript"
)

// SelectStage runs the deterministic selection engine and, when the
// chat client is configured, enriches clip metadata. Enrichment never
// changes windows and never fails the stage.
type SelectStage struct {
	cfg    *config.Config
	engine *selection.Engine
	chat   *chat.Client
	logger *slog.Logger
}

// NewSelectStage builds the stage. chatClient may be nil.
func NewSelectStage(cfg *config.Config, chatClient *chat.Client, logger *slog.Logger) *SelectStage {
	return &SelectStage{
		cfg:    cfg,
		engine: selection.NewEngine(),
		chat:   chatClient,
		logger: componentLogger(logger, "select"),
	}
}

func (s *SelectStage) Prepare(ctx context.Context, job *queue.Job) error {
	if strings.TrimSpace(job.TranscriptJSON) == "" {
		return services.Wrap(services.ErrValidation, "select", "prepare", "transcript not set", nil)
	}
	return nil
}

func (s *SelectStage) Execute(ctx context.Context, job *queue.Job) error {
	var tr transcript.Transcript
	if err := json.Unmarshal([]byte(job.TranscriptJSON), &tr); err != nil {
		return services.Wrap(services.ErrValidation, "select", "decode", "transcript JSON corrupt", err)
	}

	req, err := selection.ParseRequest(job.RequestJSON)
	if err != nil {
		return services.Wrap(services.ErrValidation, "select", "request", "selection request invalid", err)
	}
	cfg, err := selection.BuildConfig(s.cfg.Selection, req)
	if err != nil {
		return services.Wrap(services.ErrValidation, "select", "request", err.Error(), nil)
	}

	var clips []selection.Clip
	if len(req.Windows) > 0 {
		clips, err = s.engine.SelectFromProvided(&tr, cfg, req.Windows)
	} else {
		clips, err = s.engine.Select(&tr, cfg)
	}
	if err != nil {
		return services.Wrap(services.ErrValidation, "select", "run", err.Error(), err)
	}

	clips = s.enrich(ctx, job, clips)

	raw, err := json.Marshal(clips)
	if err != nil {
		return services.Wrap(services.ErrValidation, "select", "encode", "marshal clips", err)
	}
	job.ClipsJSON = string(raw)
	s.logger.Info("clips selected",
		logging.Int64(logging.FieldJobID, job.ID),
		logging.Int("clips", len(clips)),
	)
	return nil
}

// enrich overlays model-suggested titles and hooks when chat is
// enabled. Any failure keeps the heuristic metadata.
func (s *SelectStage) enrich(ctx context.Context, job *queue.Job, clips []selection.Clip) []selection.Clip {
	if s.chat == nil || !s.cfg.Chat.Enabled {
		return clips
	}
	meta, err := s.chat.EnrichClips(ctx, clips, job.Language)
	if err != nil {
		s.logger.Warn("metadata enrichment failed; keeping heuristic titles",
			logging.Int64(logging.FieldJobID, job.ID),
			logging.Error(err),
		)
		return clips
	}
	return chat.ApplyMetadata(clips, meta)
}

func (s *SelectStage) HealthCheck(ctx context.Context) stage.Health {
	if _, err := selection.BuildConfig(s.cfg.Selection, selection.Request{}); err != nil {
		return stage.Unhealthy("select", err.Error())
	}
	return stage.Healthy("select")
}
