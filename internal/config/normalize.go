package config

import "strings"

// normalize expands user paths and lowercases enumerated fields so the
// rest of the codebase never re-checks casing or tildes.
func (c *Config) normalize() {
	c.Paths.StagingDir = expandPath(strings.TrimSpace(c.Paths.StagingDir))
	c.Paths.ExportDir = expandPath(strings.TrimSpace(c.Paths.ExportDir))
	c.Paths.LogDir = expandPath(strings.TrimSpace(c.Paths.LogDir))

	c.Selection.Style = strings.ToLower(strings.TrimSpace(c.Selection.Style))
	c.Selection.Genre = strings.ToLower(strings.TrimSpace(c.Selection.Genre))

	c.Transcriber.Script = expandPath(strings.TrimSpace(c.Transcriber.Script))
	c.Transcriber.Python = strings.TrimSpace(c.Transcriber.Python)
	c.Transcriber.Model = strings.TrimSpace(c.Transcriber.Model)
	c.Transcriber.Language = strings.ToLower(strings.TrimSpace(c.Transcriber.Language))
	c.Transcriber.ComputeType = strings.TrimSpace(c.Transcriber.ComputeType)

	c.Chat.BaseURL = strings.TrimRight(strings.TrimSpace(c.Chat.BaseURL), "/")
	c.Chat.Model = strings.TrimSpace(c.Chat.Model)

	c.Render.FFmpegBinary = strings.TrimSpace(c.Render.FFmpegBinary)
	c.Render.FFprobeBinary = strings.TrimSpace(c.Render.FFprobeBinary)

	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
}
