package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable. It fails fast so bad
// thresholds never default silently deep in the pipeline.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateSelection(); err != nil {
		return err
	}
	if err := c.validateTranscriber(); err != nil {
		return err
	}
	if err := c.validateChat(); err != nil {
		return err
	}
	if err := c.validateRender(); err != nil {
		return err
	}
	if err := c.validateDownload(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.StagingDir) == "" {
		return errors.New("paths.staging_dir must be set")
	}
	if strings.TrimSpace(c.Paths.ExportDir) == "" {
		return errors.New("paths.export_dir must be set")
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		return errors.New("paths.log_dir must be set")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if err := ensurePositive(map[string]int{
		"workflow.queue_poll_interval":  c.Workflow.QueuePollInterval,
		"workflow.error_retry_interval": c.Workflow.ErrorRetryInterval,
		"workflow.heartbeat_interval":   c.Workflow.HeartbeatInterval,
		"workflow.heartbeat_timeout":    c.Workflow.HeartbeatTimeout,
		"workflow.stale_timeout":        c.Workflow.StaleTimeout,
	}); err != nil {
		return err
	}
	if c.Workflow.HeartbeatTimeout <= c.Workflow.HeartbeatInterval {
		return errors.New("workflow.heartbeat_timeout must be greater than workflow.heartbeat_interval")
	}
	if c.Workflow.StaleTimeout <= c.Workflow.HeartbeatTimeout {
		return errors.New("workflow.stale_timeout must be greater than workflow.heartbeat_timeout")
	}
	return nil
}

func (c *Config) validateSelection() error {
	s := c.Selection
	if s.MinSeconds <= 0 {
		return errors.New("selection.min_seconds must be positive")
	}
	if s.MaxSeconds <= s.MinSeconds {
		return errors.New("selection.max_seconds must be greater than selection.min_seconds")
	}
	if s.TargetSeconds < s.MinSeconds || s.TargetSeconds > s.MaxSeconds {
		return errors.New("selection.target_seconds must lie within [min_seconds, max_seconds]")
	}
	if s.MaxClips <= 0 {
		return errors.New("selection.max_clips must be positive")
	}
	if s.OverlapThreshold < 0 || s.OverlapThreshold > 1 {
		return errors.New("selection.overlap_threshold must be between 0 and 1")
	}
	if s.MinDistance < 0 {
		return errors.New("selection.min_distance_seconds must not be negative")
	}
	return nil
}

func (c *Config) validateTranscriber() error {
	if strings.TrimSpace(c.Transcriber.Script) == "" {
		return errors.New("transcriber.script must be set")
	}
	if strings.TrimSpace(c.Transcriber.Python) == "" {
		return errors.New("transcriber.python must be set")
	}
	if strings.TrimSpace(c.Transcriber.Model) == "" {
		return errors.New("transcriber.model must be set")
	}
	return ensurePositive(map[string]int{
		"transcriber.timeout_seconds": c.Transcriber.TimeoutSeconds,
		"transcriber.chunk_seconds":   c.Transcriber.ChunkSeconds,
		"transcriber.max_audio_mib":   c.Transcriber.MaxAudioMiB,
	})
}

func (c *Config) validateChat() error {
	if !c.Chat.Enabled {
		return nil
	}
	if strings.TrimSpace(c.Chat.APIKey) == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/clipper/config.toml"
		}
		return fmt.Errorf("chat.api_key is required when chat.enabled is true. Set CLIPPER_CHAT_API_KEY or edit %s", defaultPath)
	}
	if strings.TrimSpace(c.Chat.BaseURL) == "" {
		return errors.New("chat.base_url must be set when chat.enabled is true")
	}
	if strings.TrimSpace(c.Chat.Model) == "" {
		return errors.New("chat.model must be set when chat.enabled is true")
	}
	return ensurePositive(map[string]int{
		"chat.timeout_seconds": c.Chat.TimeoutSeconds,
		"chat.max_retries":     c.Chat.MaxRetries,
	})
}

func (c *Config) validateRender() error {
	if strings.TrimSpace(c.Render.FFmpegBinary) == "" {
		return errors.New("render.ffmpeg_binary must be set")
	}
	if strings.TrimSpace(c.Render.FFprobeBinary) == "" {
		return errors.New("render.ffprobe_binary must be set")
	}
	return ensurePositive(map[string]int{
		"render.width":           c.Render.Width,
		"render.height":          c.Render.Height,
		"render.timeout_seconds": c.Render.TimeoutSeconds,
	})
}

func (c *Config) validateDownload() error {
	return ensurePositive(map[string]int{
		"download.timeout_seconds": c.Download.TimeoutSeconds,
		"download.max_retries":     c.Download.MaxRetries,
	})
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}

func ensurePositive(values map[string]int) error {
	for name, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	return nil
}
