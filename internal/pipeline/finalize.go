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
	"clipper/internal/selection"
	"clipper/internal/services"
	"clipper/internal/stage"
	"clipper/internal/storage"
)

// manifest is the final document persisted on the job row: the clips
// with their stored locations.
type manifest struct {
	Clips []manifestClip `json:"clips"`
}

type manifestClip struct {
	selection.Clip
	ExportPath string `json:"export_path"`
}

// FinalizeStage verifies every clip reached the object store, writes
// the manifest and clears the job's staging directory.
type FinalizeStage struct {
	cfg     *config.Config
	objects storage.ObjectStore
	logger  *slog.Logger
}

// NewFinalizeStage builds the stage.
func NewFinalizeStage(cfg *config.Config, objects storage.ObjectStore, logger *slog.Logger) *FinalizeStage {
	return &FinalizeStage{cfg: cfg, objects: objects, logger: componentLogger(logger, "finalize")}
}

func (s *FinalizeStage) Prepare(ctx context.Context, job *queue.Job) error {
	if strings.TrimSpace(job.ClipsJSON) == "" {
		return services.Wrap(services.ErrValidation, "finalize", "prepare", "no clips selected", nil)
	}
	return nil
}

func (s *FinalizeStage) Execute(ctx context.Context, job *queue.Job) error {
	clips, err := decodeClips(job.ClipsJSON)
	if err != nil {
		return err
	}

	doc := manifest{Clips: make([]manifestClip, 0, len(clips))}
	for _, clip := range clips {
		key := storage.ClipKey(job.ID, clip.ID)
		exists, err := s.objects.Exists(key)
		if err != nil {
			return services.Wrap(services.ErrTransient, "finalize", "verify", "check stored clip "+clip.ID, err)
		}
		if !exists {
			return services.Wrap(services.ErrValidation, "finalize", "verify", "stored clip missing: "+clip.ID, nil)
		}
		doc.Clips = append(doc.Clips, manifestClip{Clip: clip, ExportPath: s.objects.Location(key)})
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return services.Wrap(services.ErrValidation, "finalize", "encode", "marshal manifest", err)
	}
	job.ClipsJSON = string(raw)

	// Intermediates are disposable once the manifest points at the
	// exported objects.
	if err := os.RemoveAll(jobDir(s.cfg, job.ID)); err != nil {
		s.logger.Warn("staging cleanup failed",
			logging.Int64(logging.FieldJobID, job.ID),
			logging.Error(err),
		)
	}
	s.logger.Info("job finalized",
		logging.Int64(logging.FieldJobID, job.ID),
		logging.Int("clips", len(doc.Clips)),
	)
	return nil
}

func (s *FinalizeStage) HealthCheck(ctx context.Context) stage.Health {
	if s.objects == nil {
		return stage.Unhealthy("finalize", "object store not configured")
	}
	return stage.Healthy("finalize")
}
