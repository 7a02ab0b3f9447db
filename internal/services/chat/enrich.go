package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"clipper/internal/logging"
	"clipper/internal/selection"
	"clipper/internal/services"
)

// ClipMetadata is the model's suggested presentation for one clip.
type ClipMetadata struct {
	ClipID string `json:"clip_id"`
	Title  string `json:"title"`
	Hook   string `json:"hook"`
	Reason string `json:"reason"`
}

const enrichSystemPrompt = `You title short vertical video clips. For each clip you receive
its transcript excerpt. Reply with a JSON array where each element is
{"clip_id","title","hook","reason"}. Titles stay under 60 characters,
hooks under 90. Write in the transcript's language. Reply with JSON
only, no commentary.`

// EnrichClips asks the model for titles, hooks and reasons. The clip
// windows are never changed; on any failure callers keep the heuristic
// metadata already attached to the clips.
func (c *Client) EnrichClips(ctx context.Context, clips []selection.Clip, language string) ([]ClipMetadata, error) {
	if len(clips) == 0 {
		return nil, nil
	}

	var prompt strings.Builder
	if language != "" && language != "auto" {
		fmt.Fprintf(&prompt, "Transcript language: %s\n\n", language)
	}
	for _, clip := range clips {
		fmt.Fprintf(&prompt, "clip_id %s (%.0fs):\n%s\n\n", clip.ID, clip.DurationSeconds(), clip.Text)
	}

	content, err := c.Complete(ctx, []Message{
		{Role: "system", Content: enrichSystemPrompt},
		{Role: "user", Content: prompt.String()},
	})
	if err != nil {
		return nil, err
	}

	meta, err := parseMetadata(content)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("clip metadata enriched",
		logging.String(logging.FieldComponent, "chat"),
		logging.Int("clips", len(meta)))
	return meta, nil
}

// ApplyMetadata overlays model metadata onto clips by id, keeping the
// heuristic value wherever the model left a field blank.
func ApplyMetadata(clips []selection.Clip, meta []ClipMetadata) []selection.Clip {
	byID := make(map[string]ClipMetadata, len(meta))
	for _, m := range meta {
		byID[m.ClipID] = m
	}
	for i := range clips {
		m, ok := byID[clips[i].ID]
		if !ok {
			continue
		}
		if t := strings.TrimSpace(m.Title); t != "" {
			clips[i].Title = t
		}
		if h := strings.TrimSpace(m.Hook); h != "" {
			clips[i].Hook = h
		}
		if r := strings.TrimSpace(m.Reason); r != "" {
			clips[i].Reason = r
		}
	}
	return clips
}

// parseMetadata tolerates a fenced code block around the JSON but
// otherwise holds the model to the contract.
func parseMetadata(content string) ([]ClipMetadata, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	var meta []ClipMetadata
	if err := json.Unmarshal([]byte(content), &meta); err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "chat", "enrich", "model reply is not the expected JSON array", err)
	}
	if len(meta) == 0 {
		return nil, services.Wrap(services.ErrExternalTool, "chat", "enrich", "model reply contains no clips", nil)
	}
	return meta, nil
}
