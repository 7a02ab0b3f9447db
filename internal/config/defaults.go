package config

const (
	defaultStagingDir = "~/.local/share/clipper/staging"
	defaultExportDir  = "~/.local/share/clipper/exports"
	defaultLogDir     = "~/.local/share/clipper/logs"

	defaultQueuePollInterval  = 5
	defaultErrorRetryInterval = 10
	defaultHeartbeatInterval  = 15
	defaultHeartbeatTimeout   = 120
	defaultStaleTimeout       = 2700 // 45 minutes

	defaultStyle            = "hooky"
	defaultGenre            = "general"
	defaultMinSeconds       = 20.0
	defaultMaxSeconds       = 90.0
	defaultTargetSeconds    = 45.0
	defaultMaxClips         = 5
	defaultOverlapThreshold = 0.3
	defaultMinDistance      = 30.0

	defaultTranscriberScript  = "scripts/faster_whisper_transcribe.py"
	defaultTranscriberPython  = "python3"
	defaultTranscriberModel   = "small"
	defaultTranscriberLang    = "auto"
	defaultComputeType        = "int8"
	defaultTranscriberTimeout = 1800
	defaultChunkSeconds       = 600
	defaultMaxAudioMiB        = 200

	defaultChatBaseURL = "https://openrouter.ai/api/v1/chat/completions"
	defaultChatModel   = "google/gemini-3-flash-preview"
	defaultChatReferer = "https://github.com/clipper/clipper"
	defaultChatTitle   = "Clipper Metadata"
	defaultChatTimeout = 60
	defaultChatRetries = 3

	defaultFFmpegBinary  = "ffmpeg"
	defaultFFprobeBinary = "ffprobe"
	defaultRenderWidth   = 1080
	defaultRenderHeight  = 1920
	defaultRenderTimeout = 1800

	defaultDownloadTimeout = 900
	defaultDownloadRetries = 3

	defaultLogFormat = "console"
	defaultLogLevel  = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StagingDir: defaultStagingDir,
			ExportDir:  defaultExportDir,
			LogDir:     defaultLogDir,
		},
		Workflow: Workflow{
			QueuePollInterval:  defaultQueuePollInterval,
			ErrorRetryInterval: defaultErrorRetryInterval,
			HeartbeatInterval:  defaultHeartbeatInterval,
			HeartbeatTimeout:   defaultHeartbeatTimeout,
			StaleTimeout:       defaultStaleTimeout,
		},
		Selection: Selection{
			Style:            defaultStyle,
			Genre:            defaultGenre,
			MinSeconds:       defaultMinSeconds,
			MaxSeconds:       defaultMaxSeconds,
			TargetSeconds:    defaultTargetSeconds,
			MaxClips:         defaultMaxClips,
			OverlapThreshold: defaultOverlapThreshold,
			MinDistance:      defaultMinDistance,
		},
		Transcriber: Transcriber{
			Script:         defaultTranscriberScript,
			Python:         defaultTranscriberPython,
			Model:          defaultTranscriberModel,
			Language:       defaultTranscriberLang,
			ComputeType:    defaultComputeType,
			TimeoutSeconds: defaultTranscriberTimeout,
			ChunkSeconds:   defaultChunkSeconds,
			MaxAudioMiB:    defaultMaxAudioMiB,
		},
		Chat: Chat{
			BaseURL:        defaultChatBaseURL,
			Model:          defaultChatModel,
			Referer:        defaultChatReferer,
			Title:          defaultChatTitle,
			TimeoutSeconds: defaultChatTimeout,
			MaxRetries:     defaultChatRetries,
		},
		Render: Render{
			FFmpegBinary:   defaultFFmpegBinary,
			FFprobeBinary:  defaultFFprobeBinary,
			Width:          defaultRenderWidth,
			Height:         defaultRenderHeight,
			TimeoutSeconds: defaultRenderTimeout,
			BurnCaptions:   true,
		},
		Download: Download{
			TimeoutSeconds: defaultDownloadTimeout,
			MaxRetries:     defaultDownloadRetries,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
