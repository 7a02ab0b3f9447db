package selection

import (
	"regexp"
	"strings"

	"clipper/internal/transcript"
)

// Virality sub-score weights; they sum to 100.
const (
	viralityWeightHook      = 28.0
	viralityWeightValue     = 24.0
	viralityWeightPacing    = 16.0
	viralityWeightRetention = 22.0
	viralityWeightClarity   = 10.0
)

// Virality bands.
const (
	BandHigh   = "HIGH"
	BandMedium = "MEDIUM"
	BandLow    = "LOW"
)

var (
	reConflict   = regexp.MustCompile(`(?i)\b(but|however|versus|vs|problem|fail|wrong|mistake)\b`)
	reActionable = regexp.MustCompile(`(?i)\b(how\s+to|you\s+can|do\s+this|try|use|start|stop|learn)\b`)
	reOutcome    = regexp.MustCompile(`(?i)\b(result|outcome|improve|grow|save|earn|faster|better|works?)\b`)
)

// ideal character range for a readable short-clip caption block.
const (
	idealTextLow  = 120
	idealTextHigh = 600
)

// ScoreVirality computes the explainable 0-100 virality score with
// band and up to three natural-language reasons. Derived from the same
// signals as the engagement score but surfaced separately for display.
func ScoreVirality(text string, durationSec float64, cfg Config) Virality {
	text = strings.TrimSpace(text)
	breakdown := map[string]float64{
		"hook":      hookSubScore(text),
		"value":     valueSubScore(text),
		"pacing":    pacingSubScore(text, durationSec),
		"retention": retentionSubScore(text, durationSec, cfg),
		"clarity":   claritySubScore(text),
	}

	score := viralityWeightHook*breakdown["hook"] +
		viralityWeightValue*breakdown["value"] +
		viralityWeightPacing*breakdown["pacing"] +
		viralityWeightRetention*breakdown["retention"] +
		viralityWeightClarity*breakdown["clarity"]
	score = clamp(score, 0, 100)

	return Virality{
		Score:     score,
		Band:      viralityBand(score),
		Reasons:   viralityReasons(breakdown),
		Breakdown: breakdown,
	}
}

func viralityBand(score float64) string {
	switch {
	case score >= 75:
		return BandHigh
	case score >= 55:
		return BandMedium
	default:
		return BandLow
	}
}

func hookSubScore(text string) float64 {
	lower := strings.ToLower(text)
	score := 0.0
	if reQuestion.MatchString(text) {
		score += 0.35
	}
	if reConflict.MatchString(lower) {
		score += 0.25
	}
	if reNumber.MatchString(text) {
		score += 0.2
	}
	if reActionable.MatchString(lower) {
		score += 0.2
	}
	return clamp(score, 0, 1)
}

func valueSubScore(text string) float64 {
	lower := strings.ToLower(text)
	score := 0.0
	if reOutcome.MatchString(lower) {
		score += 0.4
	}
	if reActionable.MatchString(lower) {
		score += 0.35
	}
	if reNumber.MatchString(text) {
		score += 0.25
	}
	return clamp(score, 0, 1)
}

// pacingSubScore rewards words-per-second near the ideal band with a
// tiered falloff rather than a cliff.
func pacingSubScore(text string, durationSec float64) float64 {
	if durationSec <= 0 {
		return 0
	}
	wps := float64(transcript.WordCount(text)) / durationSec
	ideal := (idealWPSLow + idealWPSHigh) / 2
	deviation := abs(wps-ideal) / ideal
	switch {
	case deviation <= 0.1:
		return 1
	case deviation <= 0.25:
		return 0.8
	case deviation <= 0.5:
		return 0.5
	case deviation <= 1:
		return 0.25
	default:
		return 0.1
	}
}

func retentionSubScore(text string, durationSec float64, cfg Config) float64 {
	span := max(cfg.TargetSeconds-cfg.MinSeconds, cfg.MaxSeconds-cfg.TargetSeconds)
	if span <= 0 {
		span = 1
	}
	score := 0.7 * clamp(1-abs(durationSec-cfg.TargetSeconds)/span, 0, 1)
	if transcript.EndsSentence(text) {
		score += 0.3
	}
	return clamp(score, 0, 1)
}

func claritySubScore(text string) float64 {
	length := len(text)
	score := 0.0
	switch {
	case length >= idealTextLow && length <= idealTextHigh:
		score = 0.7
	case length > 0:
		score = 0.35
	}
	if transcript.EndsSentence(text) {
		score += 0.3
	}
	return clamp(score, 0, 1)
}

// viralityReasons picks up to three reasons for the strongest signals.
func viralityReasons(breakdown map[string]float64) []string {
	type scored struct {
		key   string
		value float64
	}
	ordered := []scored{
		{"hook", breakdown["hook"]},
		{"value", breakdown["value"]},
		{"retention", breakdown["retention"]},
		{"pacing", breakdown["pacing"]},
		{"clarity", breakdown["clarity"]},
	}

	phrases := map[string]string{
		"hook":      "Opens with a strong hook that invites curiosity",
		"value":     "Delivers concrete, actionable value",
		"retention": "Length and closure fit the format well",
		"pacing":    "Speech pace sits in the engaging range",
		"clarity":   "Message is compact and easy to follow",
	}

	var reasons []string
	for _, entry := range ordered {
		if entry.value >= 0.6 && len(reasons) < 3 {
			reasons = append(reasons, phrases[entry.key])
		}
	}
	if len(reasons) == 0 {
		reasons = append(reasons, "Moderate engagement signals across the board")
	}
	return reasons
}
