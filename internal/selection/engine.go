package selection

import (
	"fmt"
	"strings"
	"unicode"

	"clipper/internal/transcript"
)

// ProvidedWindow is an externally proposed clip window, pinned in the
// upload request or suggested by a provider. Windows outside the
// configured bounds are discarded before use.
type ProvidedWindow struct {
	Start  float64 `json:"start_s"`
	End    float64 `json:"end_s"`
	Title  string  `json:"title,omitempty"`
	Hook   string  `json:"hook,omitempty"`
	Reason string  `json:"reason,omitempty"`
}

// Engine runs one deterministic selection pass over a transcript. It
// holds no mutable state; the same inputs always produce the same
// clips.
type Engine struct{}

// NewEngine returns a selection engine.
func NewEngine() *Engine {
	return &Engine{}
}

// Select produces the final ranked, refined, diverse clip set for a
// transcript.
func (e *Engine) Select(tr *transcript.Transcript, cfg Config) ([]Clip, error) {
	blocks := transcript.Normalize(tr.Segments, tr.Language)

	candidates, err := GenerateCandidates(blocks, cfg, tr.Duration)
	if err != nil {
		return nil, err
	}

	refined := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		r := RefineBoundaries(c, tr, blocks, cfg, tr.Duration)
		r.Score = EngagementScore(r.Text, r.DurationSeconds(), cfg)
		refined = append(refined, r)
	}

	picked := SelectDiverse(Rank(refined), cfg, tr.Duration)
	if len(picked) == 0 {
		return nil, ErrNoValidSegments
	}
	return e.finalize(picked, cfg), nil
}

// SelectFromProvided builds clips from externally proposed windows,
// refining their boundaries and keeping their metadata. Windows that
// violate the duration or timeframe constraints are dropped; when none
// survive, or the proposals degenerate into an even split of the
// source, the engine falls back to its own heuristic pass.
func (e *Engine) SelectFromProvided(tr *transcript.Transcript, cfg Config, windows []ProvidedWindow) ([]Clip, error) {
	blocks := transcript.Normalize(tr.Segments, tr.Language)
	lo, hi, err := effectiveTimeframe(cfg, tr.Duration)
	if err != nil {
		return nil, err
	}

	var picked []Candidate
	meta := make(map[int]ProvidedWindow)
	for _, w := range windows {
		if w.End <= w.Start || w.Start < lo || w.End > hi {
			continue
		}
		c := Candidate{Start: w.Start, End: w.End, Text: windowText(blocks, w.Start, w.End)}
		c = RefineBoundaries(c, tr, blocks, cfg, tr.Duration)
		d := c.DurationSeconds()
		if d < cfg.MinSeconds || d > cfg.MaxSeconds {
			continue
		}
		c.Score = EngagementScore(c.Text, d, cfg)
		meta[len(picked)] = w
		picked = append(picked, c)
		if len(picked) >= cfg.MaxClips {
			break
		}
	}
	if len(picked) == 0 || isUniformSplit(picked) {
		return e.Select(tr, cfg)
	}

	clips := e.finalize(picked, cfg)
	for i := range clips {
		w := meta[i]
		if strings.TrimSpace(w.Title) != "" {
			clips[i].Title = strings.TrimSpace(w.Title)
		}
		if strings.TrimSpace(w.Hook) != "" {
			clips[i].Hook = strings.TrimSpace(w.Hook)
		}
		if strings.TrimSpace(w.Reason) != "" {
			clips[i].Reason = strings.TrimSpace(w.Reason)
		}
	}
	return clips, nil
}

// finalize assigns stable IDs, grades, virality and fallback metadata.
// IDs are ordinal so reruns over the same input name clips identically.
func (e *Engine) finalize(picked []Candidate, cfg Config) []Clip {
	clips := make([]Clip, 0, len(picked))
	for i, c := range picked {
		clip := Clip{
			ID:       fmt.Sprintf("%03d", i+1),
			Start:    c.Start,
			End:      c.End,
			Text:     c.Text,
			Score:    c.Score,
			Grade:    Grade(c.Score),
			Virality: ScoreVirality(c.Text, c.DurationSeconds(), cfg),
		}
		clip.Title = heuristicTitle(c.Text)
		clip.Hook = heuristicHook(c.Text)
		clip.Reason = heuristicReason(clip.Virality)
		clips = append(clips, clip)
	}
	return clips
}

// heuristicTitle takes the first sentence, trimmed to a display-safe
// length.
func heuristicTitle(text string) string {
	sentence := firstSentence(text)
	if sentence == "" {
		return "Highlight"
	}
	return truncateWords(sentence, 60)
}

// heuristicHook prefers the first question in the text, then falls
// back to the opening words.
func heuristicHook(text string) string {
	for _, sentence := range splitSentences(text) {
		if strings.HasSuffix(sentence, "?") {
			return truncateWords(sentence, 90)
		}
	}
	return truncateWords(firstSentence(text), 90)
}

func heuristicReason(v Virality) string {
	if len(v.Reasons) > 0 {
		return v.Reasons[0]
	}
	return "Selected as the strongest available moment"
}

func firstSentence(text string) string {
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return strings.TrimSpace(text)
	}
	return sentences[0]
}

func splitSentences(text string) []string {
	var out []string
	var current strings.Builder
	for _, r := range strings.TrimSpace(text) {
		current.WriteRune(r)
		if r == '.' || r == '!' || r == '?' || r == '…' {
			if s := strings.TrimSpace(current.String()); s != "" {
				out = append(out, s)
			}
			current.Reset()
		}
	}
	if s := strings.TrimSpace(current.String()); s != "" {
		out = append(out, s)
	}
	return out
}

func truncateWords(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	cut := limit
	for cut > 0 && !unicode.IsSpace(rune(text[cut-1])) {
		cut--
	}
	if cut == 0 {
		cut = limit
	}
	return strings.TrimSpace(text[:cut]) + "…"
}
