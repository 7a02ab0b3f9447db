// Package pipeline holds the stage handlers that take a job from raw
// source to exported clips: download, audio, transcribe, select,
// render, upload, finalize.
package pipeline

import (
	"log/slog"

	"clipper/internal/config"
	"clipper/internal/logging"
	"clipper/internal/media/ffmpeg"
	"clipper/internal/services/chat"
	"clipper/internal/services/transcriber"
	"clipper/internal/storage"
	"clipper/internal/workflow"
)

// Stages wires the full pipeline in execution order.
func Stages(cfg *config.Config, logger *slog.Logger, objects storage.ObjectStore) []workflow.Stage {
	runner := ffmpeg.New(cfg.Render, logger)
	transcribeClient := transcriber.New(cfg.Transcriber, runner, logger)

	var chatClient *chat.Client
	if cfg.Chat.Enabled {
		chatClient = chat.New(cfg.Chat, logger)
	}

	return []workflow.Stage{
		{Name: "download", Handler: NewDownloadStage(cfg, logger)},
		{Name: "audio", Handler: NewAudioStage(cfg, runner, logger)},
		{Name: "transcribe", Handler: NewTranscribeStage(cfg, transcribeClient, logger)},
		{Name: "select", Handler: NewSelectStage(cfg, chatClient, logger)},
		{Name: "render", Handler: NewRenderStage(cfg, runner, logger)},
		{Name: "upload", Handler: NewUploadStage(cfg, objects, logger)},
		{Name: "finalize", Handler: NewFinalizeStage(cfg, objects, logger)},
	}
}

func componentLogger(logger *slog.Logger, name string) *slog.Logger {
	if logger == nil {
		logger = logging.NewNop()
	}
	return logger.With(logging.String(logging.FieldComponent, name))
}
