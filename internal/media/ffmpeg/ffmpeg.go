// Package ffmpeg wraps the ffmpeg and ffprobe binaries for the media
// work the pipeline needs: audio extraction, chunk splitting, duration
// probing and the final vertical render.
package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"clipper/internal/config"
	"clipper/internal/logging"
	"clipper/internal/selection"
	"clipper/internal/services"
	"clipper/internal/services/transcriber"
)

// Runner invokes ffmpeg/ffprobe subprocesses.
type Runner struct {
	cfg    config.Render
	logger *slog.Logger
}

// New builds a runner from render configuration.
func New(cfg config.Render, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Runner{cfg: cfg, logger: logger}
}

// ExtractAudio writes a mono 16 kHz PCM WAV, the input format the
// transcription model expects.
func (r *Runner) ExtractAudio(ctx context.Context, videoPath, outPath string) error {
	args := []string{
		"-y", "-i", videoPath,
		"-vn", "-ac", "1", "-ar", "16000", "-c:a", "pcm_s16le",
		outPath,
	}
	return r.runFFmpeg(ctx, "extract_audio", args)
}

// SplitAudio cuts an audio file into sequential chunks of roughly
// chunkSeconds each. Chunk offsets are exact for PCM input.
func (r *Runner) SplitAudio(ctx context.Context, path string, chunkSeconds float64) ([]transcriber.Chunk, error) {
	dir := path + ".chunks"
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create chunk directory: %w", err)
	}

	pattern := filepath.Join(dir, "chunk_%04d.wav")
	args := []string{
		"-y", "-i", path,
		"-f", "segment",
		"-segment_time", strconv.FormatFloat(chunkSeconds, 'f', -1, 64),
		"-c", "copy",
		pattern,
	}
	if err := r.runFFmpeg(ctx, "split_audio", args); err != nil {
		return nil, err
	}

	entries, err := filepath.Glob(filepath.Join(dir, "chunk_*.wav"))
	if err != nil {
		return nil, fmt.Errorf("list chunks: %w", err)
	}
	sort.Strings(entries)

	chunks := make([]transcriber.Chunk, 0, len(entries))
	for i, entry := range entries {
		chunks = append(chunks, transcriber.Chunk{
			Path:   entry,
			Offset: float64(i) * chunkSeconds,
		})
	}
	return chunks, nil
}

// Duration probes the container duration in seconds.
func (r *Runner) Duration(ctx context.Context, path string) (float64, error) {
	args := []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	}
	out, err := r.runProbe(ctx, args)
	if err != nil {
		return 0, err
	}
	duration, err := strconv.ParseFloat(strings.TrimSpace(out), 64)
	if err != nil {
		return 0, services.Wrap(services.ErrExternalTool, "probe", "parse",
			fmt.Sprintf("unexpected ffprobe output %q", strings.TrimSpace(out)), err)
	}
	return duration, nil
}

// RenderClip cuts and reformats one clip into a vertical export.
// captionPath may be empty; when set the subtitles are burned in.
func (r *Runner) RenderClip(ctx context.Context, sourcePath string, clip selection.Clip, outPath, captionPath string) error {
	args := []string{
		"-y",
		"-ss", formatSeconds(clip.Start),
		"-i", sourcePath,
		"-t", formatSeconds(clip.DurationSeconds()),
		"-vf", renderFilter(r.cfg.Width, r.cfg.Height, captionPath),
		"-c:v", "libx264", "-preset", "fast", "-crf", "21",
		"-c:a", "aac", "-b:a", "128k",
		"-movflags", "+faststart",
		outPath,
	}
	return r.runFFmpeg(ctx, "render_clip", args)
}

// renderFilter crops to 9:16 around the center, scales to the target
// resolution and optionally burns captions.
func renderFilter(width, height int, captionPath string) string {
	filter := fmt.Sprintf("crop=min(iw\\,ih*%d/%d):ih,scale=%d:%d", width, height, width, height)
	if captionPath != "" {
		filter += ",subtitles=" + escapeFilterPath(captionPath)
	}
	return filter
}

// escapeFilterPath quotes a path for use inside an ffmpeg filtergraph.
func escapeFilterPath(path string) string {
	path = strings.ReplaceAll(path, `\`, `\\`)
	path = strings.ReplaceAll(path, `'`, `\'`)
	path = strings.ReplaceAll(path, `:`, `\:`)
	return "'" + path + "'"
}

func formatSeconds(s float64) string {
	return strconv.FormatFloat(s, 'f', 3, 64)
}

func (r *Runner) runFFmpeg(ctx context.Context, operation string, args []string) error {
	timeout := time.Duration(r.cfg.TimeoutSeconds) * time.Second
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	binary := r.cfg.FFmpegBinary
	if binary == "" {
		binary = "ffmpeg"
	}
	cmd := exec.CommandContext(ctx, binary, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	start := time.Now()
	if err := cmd.Run(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return services.Wrap(services.ErrTimeout, "render", operation,
				fmt.Sprintf("ffmpeg exceeded %s", timeout), ctx.Err())
		}
		return services.Wrap(services.ErrExternalTool, "render", operation, stderrTail(stderr.Bytes()), err)
	}
	r.logger.Debug("ffmpeg finished",
		logging.String(logging.FieldComponent, "ffmpeg"),
		logging.String("operation", operation),
		logging.Duration("elapsed", time.Since(start)))
	return nil
}

func (r *Runner) runProbe(ctx context.Context, args []string) (string, error) {
	binary := r.cfg.FFprobeBinary
	if binary == "" {
		binary = "ffprobe"
	}
	cmd := exec.CommandContext(ctx, binary, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", services.Wrap(services.ErrExternalTool, "probe", "run", stderrTail(stderr.Bytes()), err)
	}
	return stdout.String(), nil
}

func stderrTail(stderr []byte) string {
	tail := strings.TrimSpace(string(stderr))
	if len(tail) > 500 {
		tail = tail[len(tail)-500:]
	}
	if tail == "" {
		tail = "tool failed without output"
	}
	return tail
}
