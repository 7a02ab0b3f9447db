package pipeline

import (
	"fmt"
	"os"
	"path/filepath"

	"clipper/internal/config"
)

// Per-job staging layout. Everything under the job directory is
// disposable once the clips reach the object store.
func jobDir(cfg *config.Config, jobID int64) string {
	return filepath.Join(cfg.Paths.StagingDir, "jobs", fmt.Sprintf("%d", jobID))
}

func sourcePath(cfg *config.Config, jobID int64) string {
	return filepath.Join(jobDir(cfg, jobID), "source.mp4")
}

func audioPath(cfg *config.Config, jobID int64) string {
	return filepath.Join(jobDir(cfg, jobID), "audio.wav")
}

func renderPath(cfg *config.Config, jobID int64, clipID string) string {
	return filepath.Join(jobDir(cfg, jobID), "render", clipID+".mp4")
}

func captionPath(cfg *config.Config, jobID int64, clipID string) string {
	return filepath.Join(jobDir(cfg, jobID), "render", clipID+".srt")
}

func ensureJobDir(cfg *config.Config, jobID int64) error {
	if err := os.MkdirAll(filepath.Join(jobDir(cfg, jobID), "render"), 0o755); err != nil {
		return fmt.Errorf("create job staging directory: %w", err)
	}
	return nil
}
