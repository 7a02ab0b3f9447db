package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration for staging and artifacts.
type Paths struct {
	StagingDir string `toml:"staging_dir"`
	ExportDir  string `toml:"export_dir"`
	LogDir     string `toml:"log_dir"`
}

// Workflow contains daemon timing and recovery intervals (seconds).
type Workflow struct {
	QueuePollInterval  int `toml:"queue_poll_interval"`
	ErrorRetryInterval int `toml:"error_retry_interval"`
	HeartbeatInterval  int `toml:"heartbeat_interval"`
	HeartbeatTimeout   int `toml:"heartbeat_timeout"`
	StaleTimeout       int `toml:"stale_timeout"`
}

// Selection contains defaults for the clip selection engine. Per-job
// requests may narrow these but never widen them.
type Selection struct {
	Style            string  `toml:"style"`
	Genre            string  `toml:"genre"`
	MinSeconds       float64 `toml:"min_seconds"`
	MaxSeconds       float64 `toml:"max_seconds"`
	TargetSeconds    float64 `toml:"target_seconds"`
	MaxClips         int     `toml:"max_clips"`
	OverlapThreshold float64 `toml:"overlap_threshold"`
	MinDistance      float64 `toml:"min_distance_seconds"`
}

// Transcriber contains configuration for the faster-whisper subprocess.
type Transcriber struct {
	Script         string `toml:"script"`
	Python         string `toml:"python"`
	Model          string `toml:"model"`
	Language       string `toml:"language"`
	ComputeType    string `toml:"compute_type"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	ChunkSeconds   int    `toml:"chunk_seconds"`
	MaxAudioMiB    int    `toml:"max_audio_mib"`
}

// Chat contains the chat-completions connection used for clip metadata
// enrichment (titles, hooks). Selection itself never depends on it.
type Chat struct {
	Enabled        bool   `toml:"enabled"`
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	Referer        string `toml:"referer"`
	Title          string `toml:"title"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	MaxRetries     int    `toml:"max_retries"`
}

// Render contains ffmpeg invocation settings for the vertical export.
type Render struct {
	FFmpegBinary   string `toml:"ffmpeg_binary"`
	FFprobeBinary  string `toml:"ffprobe_binary"`
	Width          int    `toml:"width"`
	Height         int    `toml:"height"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	BurnCaptions   bool   `toml:"burn_captions"`
}

// Download contains source fetch settings.
type Download struct {
	TimeoutSeconds int `toml:"timeout_seconds"`
	MaxRetries     int `toml:"max_retries"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config is the root configuration for the clipper daemon and CLI.
type Config struct {
	Paths       Paths       `toml:"paths"`
	Workflow    Workflow    `toml:"workflow"`
	Selection   Selection   `toml:"selection"`
	Transcriber Transcriber `toml:"transcriber"`
	Chat        Chat        `toml:"chat"`
	Render      Render      `toml:"render"`
	Download    Download    `toml:"download"`
	Logging     Logging     `toml:"logging"`
}

// DefaultConfigPath returns the standard configuration file location.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".config", "clipper", "config.toml"), nil
}

// Load reads configuration from path, falling back to the default
// location and then to built-in defaults when no file exists.
func Load(path string) (*Config, string, error) {
	cfg := Default()

	resolved := strings.TrimSpace(path)
	usedPath := ""
	if resolved == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return nil, "", err
		}
		resolved = defaultPath
	}
	resolved = expandPath(resolved)

	data, err := os.ReadFile(resolved)
	switch {
	case err == nil:
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, "", fmt.Errorf("parse config %s: %w", resolved, err)
		}
		usedPath = resolved
	case errors.Is(err, fs.ErrNotExist):
		if strings.TrimSpace(path) != "" {
			return nil, "", fmt.Errorf("config file not found: %s", resolved)
		}
	default:
		return nil, "", fmt.Errorf("read config %s: %w", resolved, err)
	}

	cfg.applyEnvOverrides()
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, "", err
	}
	return &cfg, usedPath, nil
}

// WriteSample writes the embedded sample configuration to path.
func WriteSample(path string) error {
	path = expandPath(path)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists: %s", path)
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// EnsureDirectories creates the staging, export, and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StagingDir, c.Paths.ExportDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if v := strings.TrimSpace(os.Getenv("CLIPPER_CHAT_API_KEY")); v != "" {
		c.Chat.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("CLIPPER_LOG_LEVEL")); v != "" {
		c.Logging.Level = v
	}
}

func expandPath(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
