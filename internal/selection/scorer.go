package selection

import (
	"regexp"
	"strings"
	"unicode"

	"clipper/internal/transcript"
)

// Engagement scoring weights. The components below each land in [0, 1]
// and sum to 100 when fully satisfied.
const (
	weightDuration     = 20.0
	weightDensity      = 20.0
	weightPunctuation  = 10.0
	weightCompleteness = 20.0
	weightStyle        = 20.0
	weightGenre        = 10.0
)

const (
	idealWPSLow  = 2.5
	idealWPSHigh = 2.9
)

var (
	reQuestion  = regexp.MustCompile(`\?`)
	reHookWords = regexp.MustCompile(`(?i)\b(mistake|wrong|never|always|secret|stop|avoid|warning|important)\b`)
	reStep      = regexp.MustCompile(`(?i)\b(step\s+\d+|first|second|third|finally|for\s+example|here'?s\s+how|how\s+to)\b`)
	reNarrative = regexp.MustCompile(`(?i)\b(i\s+was|i\s+had|my\s+story|when\s+i|we\s+were|i\s+remember|back\s+then)\b`)
	reNumber    = regexp.MustCompile(`\b\d+(?:[\.,]\d+)?\b`)
	reAction    = regexp.MustCompile(`(?i)\b(click|open|configure|install|run|type|select|create|deploy|build)\b`)
	reTerminal  = regexp.MustCompile(`[.!?…]`)
)

// EngagementScore rates a single transcript unit (block or window) for
// use as an anchor or as a fallback ranking heuristic. Range [0, 100].
func EngagementScore(text string, durationSec float64, cfg Config) float64 {
	text = strings.TrimSpace(text)
	if text == "" || durationSec <= 0 {
		return 0
	}

	score := weightDuration*durationQuality(durationSec, cfg) +
		weightDensity*speechDensity(text, durationSec) +
		weightPunctuation*punctuationDensity(text) +
		weightCompleteness*sentenceCompleteness(text) +
		weightStyle*styleBonus(text, cfg.Style) +
		weightGenre*genreBonus(text, cfg.Genre)

	score *= momentBoost(text, cfg.MomentText)
	return clamp(score, 0, 100)
}

// durationQuality is a triangle peaking at the target duration,
// heavily discounted outside the configured bounds.
func durationQuality(d float64, cfg Config) float64 {
	span := max(cfg.TargetSeconds-cfg.MinSeconds, cfg.MaxSeconds-cfg.TargetSeconds)
	if span <= 0 {
		span = 1
	}
	quality := clamp(1-abs(d-cfg.TargetSeconds)/span, 0, 1)
	if d < cfg.MinSeconds || d > cfg.MaxSeconds {
		quality *= 0.25
	}
	return quality
}

func speechDensity(text string, durationSec float64) float64 {
	wps := float64(transcript.WordCount(text)) / durationSec
	switch {
	case wps >= idealWPSLow && wps <= idealWPSHigh:
		return 1
	case wps < idealWPSLow:
		return clamp(wps/idealWPSLow, 0, 1)
	default:
		return clamp(1-(wps-idealWPSHigh)/idealWPSHigh, 0, 1)
	}
}

func punctuationDensity(text string) float64 {
	count := len(reTerminal.FindAllString(text, -1))
	return clamp(float64(count)/3, 0, 1)
}

func sentenceCompleteness(text string) float64 {
	score := 0.0
	for _, r := range text {
		if unicode.IsLetter(r) {
			if unicode.IsUpper(r) {
				score += 0.5
			}
			break
		}
	}
	if transcript.EndsSentence(text) {
		score += 0.5
	}
	return score
}

func styleBonus(text, style string) float64 {
	lower := strings.ToLower(text)
	switch style {
	case StyleHooky:
		bonus := 0.0
		if reQuestion.MatchString(text) {
			bonus += 0.6
		}
		bonus += 0.4 * clamp(float64(len(reHookWords.FindAllString(lower, -1)))/2, 0, 1)
		return clamp(bonus, 0, 1)
	case StyleEducational:
		bonus := 0.7 * clamp(float64(len(reStep.FindAllString(lower, -1)))/2, 0, 1)
		if reNumber.MatchString(text) {
			bonus += 0.3
		}
		return clamp(bonus, 0, 1)
	case StyleStory:
		bonus := clamp(float64(len(reNarrative.FindAllString(lower, -1)))/2, 0, 1)
		if !transcript.EndsSentence(text) {
			// A story that trails off mid-sentence cuts badly.
			bonus *= 0.6
		}
		return bonus
	default:
		return 0
	}
}

func genreBonus(text, genre string) float64 {
	switch genre {
	case "demo", "tutorial":
		return clamp(float64(len(reAction.FindAllString(text, -1)))/3, 0, 1)
	case "podcast", "interview":
		if reQuestion.MatchString(text) || reNarrative.MatchString(strings.ToLower(text)) {
			return 0.5
		}
		return 0
	default:
		return 0
	}
}

// momentBoost multiplies the score when the candidate text overlaps a
// user-supplied moment description.
func momentBoost(text, momentText string) float64 {
	momentText = strings.TrimSpace(momentText)
	if momentText == "" {
		return 1
	}
	overlap := tokenOverlap(momentText, text)
	return 1 + min(0.2, overlap*0.2)
}

// tokenOverlap is the fraction of moment tokens present in text.
func tokenOverlap(momentText, text string) float64 {
	momentTokens := tokenize(momentText)
	if len(momentTokens) == 0 {
		return 0
	}
	textTokens := make(map[string]struct{})
	for _, token := range tokenize(text) {
		textTokens[token] = struct{}{}
	}
	matched := 0
	for _, token := range momentTokens {
		if _, ok := textTokens[token]; ok {
			matched++
		}
	}
	return float64(matched) / float64(len(momentTokens))
}

func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	tokens := fields[:0]
	for _, f := range fields {
		if len(f) >= 3 {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
