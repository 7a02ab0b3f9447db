// Package transcriber shells out to a faster-whisper Python script and
// parses its JSON contract. Large audio files are split into chunks
// first and the chunk transcripts stitched back with time offsets.
package transcriber

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"clipper/internal/config"
	"clipper/internal/logging"
	"clipper/internal/services"
	"clipper/internal/transcript"
)

// Chunk is one piece of a split audio file. Offset is where the chunk
// starts in the original recording.
type Chunk struct {
	Path   string
	Offset float64
}

// Splitter cuts an audio file into sequential chunks of roughly the
// requested length. Implemented by the ffmpeg service.
type Splitter interface {
	SplitAudio(ctx context.Context, path string, chunkSeconds float64) ([]Chunk, error)
}

// Client runs the transcription script as a subprocess.
type Client struct {
	cfg      config.Transcriber
	splitter Splitter
	logger   *slog.Logger
}

// New builds a transcription client. splitter may be nil, which
// disables chunking.
func New(cfg config.Transcriber, splitter Splitter, logger *slog.Logger) *Client {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Client{cfg: cfg, splitter: splitter, logger: logger}
}

// errorPayload is the script's stderr contract on failure.
type errorPayload struct {
	Error string `json:"error"`
	Hint  string `json:"hint"`
}

// Transcribe produces a transcript for the audio file. language may be
// empty to use the configured default; "auto" lets the model detect.
func (c *Client) Transcribe(ctx context.Context, audioPath, language string) (*transcript.Transcript, error) {
	if language == "" {
		language = c.cfg.Language
	}

	info, err := os.Stat(audioPath)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "transcribe", "stat", "audio file missing", err)
	}

	limit := int64(c.cfg.MaxAudioMiB) * 1024 * 1024
	if c.splitter != nil && limit > 0 && info.Size() > limit && c.cfg.ChunkSeconds > 0 {
		return c.transcribeChunked(ctx, audioPath, language)
	}
	return c.run(ctx, audioPath, language)
}

func (c *Client) transcribeChunked(ctx context.Context, audioPath, language string) (*transcript.Transcript, error) {
	chunks, err := c.splitter.SplitAudio(ctx, audioPath, float64(c.cfg.ChunkSeconds))
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "transcribe", "split", "audio chunking failed", err)
	}
	if len(chunks) == 0 {
		return nil, services.Wrap(services.ErrValidation, "transcribe", "split", "chunking produced no output", nil)
	}

	c.logger.Info("transcribing in chunks",
		logging.String(logging.FieldComponent, "transcriber"),
		logging.Int("chunks", len(chunks)))

	parts := make([]*transcript.Transcript, 0, len(chunks))
	for _, chunk := range chunks {
		part, err := c.run(ctx, chunk.Path, language)
		if err != nil {
			return nil, err
		}
		parts = append(parts, shift(part, chunk.Offset))
	}
	return stitch(parts), nil
}

// run executes one script invocation and parses the stdout JSON.
func (c *Client) run(ctx context.Context, audioPath, language string) (*transcript.Transcript, error) {
	timeout := time.Duration(c.cfg.TimeoutSeconds) * time.Second
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	args := []string{
		c.cfg.Script,
		"--audio", audioPath,
		"--model", c.cfg.Model,
		"--language", language,
		"--compute-type", c.cfg.ComputeType,
	}
	cmd := exec.CommandContext(ctx, c.cfg.Python, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, services.Wrap(services.ErrTimeout, "transcribe", "run",
				fmt.Sprintf("transcription exceeded %s", timeout), ctx.Err())
		}
		return nil, scriptError(stderr.Bytes(), err)
	}

	var tr transcript.Transcript
	if err := json.Unmarshal(stdout.Bytes(), &tr); err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "transcribe", "parse",
			"script produced invalid JSON", err)
	}
	if len(tr.Segments) == 0 && strings.TrimSpace(tr.Text) == "" {
		return nil, services.Wrap(services.ErrValidation, "transcribe", "parse",
			"transcript is empty", nil)
	}

	c.logger.Info("transcription complete",
		logging.String(logging.FieldComponent, "transcriber"),
		logging.Int("segments", len(tr.Segments)),
		logging.Duration("elapsed", time.Since(start)))
	return &tr, nil
}

// scriptError decodes the stderr error contract, falling back to the
// raw stderr tail when the script died before emitting JSON.
func scriptError(stderr []byte, cause error) error {
	var payload errorPayload
	for _, line := range bytes.Split(bytes.TrimSpace(stderr), []byte("\n")) {
		if json.Unmarshal(line, &payload) == nil && payload.Error != "" {
			msg := payload.Error
			if payload.Hint != "" {
				msg = msg + " (" + payload.Hint + ")"
			}
			return services.Wrap(services.ErrExternalTool, "transcribe", "run", msg, cause)
		}
	}
	tail := strings.TrimSpace(string(stderr))
	if len(tail) > 500 {
		tail = tail[len(tail)-500:]
	}
	if tail == "" {
		tail = "script failed without output"
	}
	return services.Wrap(services.ErrExternalTool, "transcribe", "run", tail, cause)
}

// shift moves all chunk timestamps onto the original timeline.
func shift(tr *transcript.Transcript, offset float64) *transcript.Transcript {
	if offset == 0 {
		return tr
	}
	for i := range tr.Segments {
		tr.Segments[i].Start += offset
		tr.Segments[i].End += offset
	}
	for i := range tr.Words {
		tr.Words[i].Start += offset
		tr.Words[i].End += offset
	}
	for i := range tr.Silences {
		tr.Silences[i] += offset
	}
	return tr
}

// stitch concatenates shifted chunk transcripts into one document.
func stitch(parts []*transcript.Transcript) *transcript.Transcript {
	out := &transcript.Transcript{Language: parts[0].Language}
	var texts []string
	for _, part := range parts {
		if t := strings.TrimSpace(part.Text); t != "" {
			texts = append(texts, t)
		}
		out.Segments = append(out.Segments, part.Segments...)
		out.Words = append(out.Words, part.Words...)
		out.Silences = append(out.Silences, part.Silences...)
	}
	out.Text = strings.Join(texts, " ")
	for _, seg := range out.Segments {
		if seg.End > out.Duration {
			out.Duration = seg.End
		}
	}
	return out
}
