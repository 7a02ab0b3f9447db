package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"clipper/internal/config"
	"clipper/internal/logging"
	"clipper/internal/queue"
	"clipper/internal/services"
	"clipper/internal/services/retry"
	"clipper/internal/stage"
)

// DownloadStage fetches the job source into staging. Jobs added from a
// local path pass through untouched.
type DownloadStage struct {
	cfg        *config.Config
	httpClient *http.Client
	logger     *slog.Logger
}

// NewDownloadStage builds the stage.
func NewDownloadStage(cfg *config.Config, logger *slog.Logger) *DownloadStage {
	timeout := time.Duration(cfg.Download.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}
	return &DownloadStage{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		logger:     componentLogger(logger, "download"),
	}
}

func (s *DownloadStage) Prepare(ctx context.Context, job *queue.Job) error {
	if strings.TrimSpace(job.SourcePath) == "" && strings.TrimSpace(job.SourceURL) == "" {
		return services.Wrap(services.ErrValidation, "download", "prepare", "job has neither source path nor source url", nil)
	}
	return ensureJobDir(s.cfg, job.ID)
}

func (s *DownloadStage) Execute(ctx context.Context, job *queue.Job) error {
	if path := strings.TrimSpace(job.SourcePath); path != "" {
		if _, err := os.Stat(path); err != nil {
			return services.Wrap(services.ErrValidation, "download", "stat", "source file missing", err)
		}
		return nil
	}

	dest := sourcePath(s.cfg, job.ID)
	policy := retry.DefaultPolicy()
	if s.cfg.Download.MaxRetries > 0 {
		policy.MaxAttempts = s.cfg.Download.MaxRetries
	}

	err := retry.Do(ctx, policy, func(ctx context.Context) error {
		return s.fetch(ctx, job.SourceURL, dest)
	})
	if err != nil {
		return err
	}
	job.SourcePath = dest
	s.logger.Info("source downloaded",
		logging.Int64(logging.FieldJobID, job.ID),
		logging.String("url", job.SourceURL),
	)
	return nil
}

func (s *DownloadStage) fetch(ctx context.Context, url, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return services.Wrap(services.ErrValidation, "download", "fetch", "invalid source url", err)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return services.Wrap(services.ErrTransient, "download", "fetch", "request failed", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return services.Wrap(services.ErrTransient, "download", "fetch",
			fmt.Sprintf("status %d", resp.StatusCode), nil)
	default:
		return services.Wrap(services.ErrValidation, "download", "fetch",
			fmt.Sprintf("status %d", resp.StatusCode), nil)
	}

	tmp := dest + ".partial"
	out, err := os.Create(tmp)
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "download", "fetch", "create staging file", err)
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		os.Remove(tmp)
		return services.Wrap(services.ErrTransient, "download", "fetch", "copy body", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return services.Wrap(services.ErrConfiguration, "download", "fetch", "close staging file", err)
	}
	if err := os.Rename(tmp, dest); err != nil {
		return services.Wrap(services.ErrConfiguration, "download", "fetch", "finalize staging file", err)
	}
	return nil
}

func (s *DownloadStage) HealthCheck(ctx context.Context) stage.Health {
	if err := os.MkdirAll(s.cfg.Paths.StagingDir, 0o755); err != nil {
		return stage.Unhealthy("download", err.Error())
	}
	return stage.Healthy("download")
}
