package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"

	"clipper/internal/config"
	"clipper/internal/logging"
	"clipper/internal/queue"
	"clipper/internal/services"
	"clipper/internal/stage"
	"clipper/internal/storage"
)

// UploadStage moves rendered clips into the object store. Keys are
// write-once; a key that already exists means a reclaimed job got this
// far before and the object is kept as is.
type UploadStage struct {
	cfg     *config.Config
	objects storage.ObjectStore
	logger  *slog.Logger
}

// NewUploadStage builds the stage.
func NewUploadStage(cfg *config.Config, objects storage.ObjectStore, logger *slog.Logger) *UploadStage {
	return &UploadStage{cfg: cfg, objects: objects, logger: componentLogger(logger, "upload")}
}

func (s *UploadStage) Prepare(ctx context.Context, job *queue.Job) error {
	if strings.TrimSpace(job.ClipsJSON) == "" {
		return services.Wrap(services.ErrValidation, "upload", "prepare", "no clips selected", nil)
	}
	return nil
}

func (s *UploadStage) Execute(ctx context.Context, job *queue.Job) error {
	clips, err := decodeClips(job.ClipsJSON)
	if err != nil {
		return err
	}

	for _, clip := range clips {
		key := storage.ClipKey(job.ID, clip.ID)
		rendered := renderPath(s.cfg, job.ID, clip.ID)
		if _, err := os.Stat(rendered); err != nil {
			return services.Wrap(services.ErrValidation, "upload", "stat", "rendered clip missing: "+clip.ID, err)
		}

		if _, err := s.objects.PutFile(ctx, key, rendered); err != nil {
			if errors.Is(err, storage.ErrKeyExists) {
				s.logger.Info("clip already stored",
					logging.Int64(logging.FieldJobID, job.ID),
					logging.String("clip_id", clip.ID),
				)
				continue
			}
			return services.Wrap(services.ErrTransient, "upload", "put", "store clip "+clip.ID, err)
		}
	}
	s.logger.Info("clips uploaded",
		logging.Int64(logging.FieldJobID, job.ID),
		logging.Int("clips", len(clips)),
	)
	return nil
}

func (s *UploadStage) HealthCheck(ctx context.Context) stage.Health {
	if s.objects == nil {
		return stage.Unhealthy("upload", "object store not configured")
	}
	return stage.Healthy("upload")
}
