package selection

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"clipper/internal/config"
)

// Clip styles. Styles bias both anchor scoring and window shaping.
const (
	StyleHooky       = "hooky"
	StyleEducational = "educational"
	StyleStory       = "story"
)

// Config is the immutable value object driving one selection run.
// Derived once per job from user input and style defaults; never
// mutated mid-run.
type Config struct {
	Style            string
	Genre            string
	MinSeconds       float64
	MaxSeconds       float64
	TargetSeconds    float64
	MaxClips         int
	OverlapThreshold float64
	MinDistance      float64
	TimeframeStart   *float64
	TimeframeEnd     *float64
	MomentText       string
}

// Request carries the per-job selection overrides supplied at upload
// time. Zero values fall back to the daemon defaults. Windows pin
// explicit moments: when present the engine refines them instead of
// searching, falling back to the heuristic pass when none survive.
type Request struct {
	Style          string           `json:"clip_style,omitempty"`
	Genre          string           `json:"genre,omitempty"`
	MinSeconds     float64          `json:"duration_min_s,omitempty"`
	MaxSeconds     float64          `json:"duration_max_s,omitempty"`
	TargetSeconds  float64          `json:"target_s,omitempty"`
	MaxClips       int              `json:"max_clips,omitempty"`
	TimeframeStart *float64         `json:"timeframe_start_s,omitempty"`
	TimeframeEnd   *float64         `json:"timeframe_end_s,omitempty"`
	MomentText     string           `json:"include_moment_text,omitempty"`
	Windows        []ProvidedWindow `json:"windows,omitempty"`
}

// IsEmpty reports whether the request carries no overrides at all.
func (r Request) IsEmpty() bool {
	return r.Style == "" && r.Genre == "" &&
		r.MinSeconds == 0 && r.MaxSeconds == 0 && r.TargetSeconds == 0 &&
		r.MaxClips == 0 && r.TimeframeStart == nil && r.TimeframeEnd == nil &&
		r.MomentText == "" && len(r.Windows) == 0
}

// ParseRequest decodes a request JSON document. Empty input yields a
// zero request (all defaults).
func ParseRequest(raw string) (Request, error) {
	var req Request
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return req, nil
	}
	if err := json.Unmarshal([]byte(raw), &req); err != nil {
		return Request{}, fmt.Errorf("parse selection request: %w", err)
	}
	return req, nil
}

// BuildConfig merges a per-job request over daemon defaults and
// validates the result.
func BuildConfig(defaults config.Selection, req Request) (Config, error) {
	cfg := Config{
		Style:            defaults.Style,
		Genre:            defaults.Genre,
		MinSeconds:       defaults.MinSeconds,
		MaxSeconds:       defaults.MaxSeconds,
		TargetSeconds:    defaults.TargetSeconds,
		MaxClips:         defaults.MaxClips,
		OverlapThreshold: defaults.OverlapThreshold,
		MinDistance:      defaults.MinDistance,
	}
	if s := strings.ToLower(strings.TrimSpace(req.Style)); s != "" {
		cfg.Style = s
	}
	if g := strings.ToLower(strings.TrimSpace(req.Genre)); g != "" {
		cfg.Genre = g
	}
	if req.MinSeconds > 0 {
		cfg.MinSeconds = req.MinSeconds
	}
	if req.MaxSeconds > 0 {
		cfg.MaxSeconds = req.MaxSeconds
	}
	if req.TargetSeconds > 0 {
		cfg.TargetSeconds = req.TargetSeconds
	}
	if req.MaxClips > 0 {
		cfg.MaxClips = req.MaxClips
	}
	cfg.TimeframeStart = req.TimeframeStart
	cfg.TimeframeEnd = req.TimeframeEnd
	cfg.MomentText = strings.TrimSpace(req.MomentText)

	if cfg.TargetSeconds < cfg.MinSeconds {
		cfg.TargetSeconds = cfg.MinSeconds
	}
	if cfg.TargetSeconds > cfg.MaxSeconds {
		cfg.TargetSeconds = cfg.MaxSeconds
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.MinSeconds <= 0 {
		return errors.New("selection: min duration must be positive")
	}
	if c.MaxSeconds <= c.MinSeconds {
		return errors.New("selection: max duration must exceed min duration")
	}
	if c.MaxClips <= 0 {
		return errors.New("selection: max clips must be positive")
	}
	if c.OverlapThreshold < 0 || c.OverlapThreshold > 1 {
		return errors.New("selection: overlap threshold must be within [0, 1]")
	}
	if c.TimeframeStart != nil && c.TimeframeEnd != nil && *c.TimeframeEnd <= *c.TimeframeStart {
		return errors.New("selection: timeframe end must be after timeframe start")
	}
	return nil
}

// Candidate is a proposed time window under consideration. Generated
// fresh per selection run; never persisted.
type Candidate struct {
	Start   float64
	End     float64
	Text    string
	Score   float64
	Metrics map[string]float64
}

// DurationSeconds returns the window length in seconds.
func (c Candidate) DurationSeconds() float64 {
	return c.End - c.Start
}

// Virality is the explainable secondary score shown to end users. It
// never affects ranking.
type Virality struct {
	Score     float64            `json:"score"`
	Band      string             `json:"band"`
	Reasons   []string           `json:"reasons"`
	Breakdown map[string]float64 `json:"breakdown"`
}

// Clip is the final output of the selection engine.
type Clip struct {
	ID       string   `json:"clip_id"`
	Start    float64  `json:"start_s"`
	End      float64  `json:"end_s"`
	Title    string   `json:"title"`
	Hook     string   `json:"hook"`
	Reason   string   `json:"reason"`
	Text     string   `json:"text,omitempty"`
	Score    float64  `json:"score_total"`
	Grade    string   `json:"score_grade"`
	Virality Virality `json:"virality"`
}

// DurationSeconds returns the clip length in seconds.
func (c Clip) DurationSeconds() float64 {
	return c.End - c.Start
}

// Grade maps a 0-100 score onto the A-D display scale.
func Grade(score float64) string {
	switch {
	case score >= 80:
		return "A"
	case score >= 65:
		return "B"
	case score >= 45:
		return "C"
	default:
		return "D"
	}
}

// overlapRatio measures shared time relative to the shorter window.
func overlapRatio(aStart, aEnd, bStart, bEnd float64) float64 {
	overlap := min(aEnd, bEnd) - max(aStart, bStart)
	if overlap <= 0 {
		return 0
	}
	shorter := min(aEnd-aStart, bEnd-bStart)
	if shorter <= 0 {
		return 0
	}
	return overlap / shorter
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
