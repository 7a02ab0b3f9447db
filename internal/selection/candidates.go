package selection

import (
	"errors"
	"sort"
	"strings"

	"clipper/internal/transcript"
)

// ErrNoValidSegments signals that the configured constraints leave no
// usable material. Retrying cannot help; callers surface it directly.
var ErrNoValidSegments = errors.New("no valid segments within the configured constraints")

const (
	maxAnchors       = 30
	poolOverlapLimit = 0.5
)

// GenerateCandidates proposes scored windows anchored on high-value
// blocks. Output is unranked and may still overlap; Rank and the
// diversity selector run downstream.
func GenerateCandidates(blocks []transcript.Block, cfg Config, sourceDuration float64) ([]Candidate, error) {
	lo, hi, err := effectiveTimeframe(cfg, sourceDuration)
	if err != nil {
		return nil, err
	}

	if len(blocks) == 0 {
		fallback, ok := fallbackWindow(cfg, sourceDuration)
		if !ok {
			return nil, ErrNoValidSegments
		}
		return []Candidate{fallback}, nil
	}

	anchors := pickAnchors(blocks, cfg, lo, hi)
	if len(anchors) == 0 {
		fallback, ok := fallbackWindow(cfg, sourceDuration)
		if !ok {
			return nil, ErrNoValidSegments
		}
		return []Candidate{fallback}, nil
	}

	poolTarget := cfg.MaxClips * 3
	if poolTarget < 12 {
		poolTarget = 12
	}

	var pool []Candidate
	for _, anchor := range anchors {
		for _, window := range windowsForAnchor(anchor, blocks, cfg, lo, hi) {
			pool = appendDeduped(pool, window)
			if len(pool) >= poolTarget {
				return pool, nil
			}
		}
	}
	if len(pool) == 0 {
		return nil, ErrNoValidSegments
	}
	return pool, nil
}

// Rank orders candidates by score descending with a deterministic
// start-time tie-break.
func Rank(candidates []Candidate) []Candidate {
	ranked := make([]Candidate, len(candidates))
	copy(ranked, candidates)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].Start < ranked[j].Start
	})
	return ranked
}

func effectiveTimeframe(cfg Config, sourceDuration float64) (float64, float64, error) {
	lo := 0.0
	hi := sourceDuration
	if cfg.TimeframeStart != nil {
		lo = max(lo, *cfg.TimeframeStart)
	}
	if cfg.TimeframeEnd != nil && *cfg.TimeframeEnd > 0 {
		hi = min(hi, *cfg.TimeframeEnd)
	}
	if hi <= lo || hi-lo < cfg.MinSeconds {
		return 0, 0, ErrNoValidSegments
	}
	return lo, hi, nil
}

func fallbackWindow(cfg Config, sourceDuration float64) (Candidate, bool) {
	end := min(cfg.TargetSeconds, sourceDuration)
	if end < cfg.MinSeconds {
		end = min(cfg.MinSeconds, sourceDuration)
	}
	if end-0 < cfg.MinSeconds {
		return Candidate{}, false
	}
	return Candidate{
		Start: 0,
		End:   end,
		Score: 1,
		Metrics: map[string]float64{
			"fallback": 1,
		},
	}, true
}

type anchor struct {
	block transcript.Block
	score float64
}

func pickAnchors(blocks []transcript.Block, cfg Config, lo, hi float64) []anchor {
	scored := make([]anchor, 0, len(blocks))
	for _, block := range blocks {
		if block.End <= lo || block.Start >= hi {
			continue
		}
		scored = append(scored, anchor{
			block: block,
			score: EngagementScore(block.Text, block.DurationSeconds(), cfg),
		})
	}
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].score != scored[j].score {
			return scored[i].score > scored[j].score
		}
		return scored[i].block.Start < scored[j].block.Start
	})
	if len(scored) > maxAnchors {
		scored = scored[:maxAnchors]
	}
	return scored
}

// windowsForAnchor derives 2-3 window lengths from the target
// duration, shifted by style and content cues, centered on the
// anchor's midpoint with a small per-length offset.
func windowsForAnchor(a anchor, blocks []transcript.Block, cfg Config, lo, hi float64) []Candidate {
	lengths, centerShift := windowShape(a.block.Text, cfg)
	mid := (a.block.Start + a.block.End) / 2

	var out []Candidate
	for i, length := range lengths {
		length = clamp(length, cfg.MinSeconds, cfg.MaxSeconds)
		// Stagger alternates so sibling windows do not stack exactly.
		offset := centerShift + float64(i-1)*length*0.08
		start := mid + offset - length/2
		end := start + length

		if start < lo {
			start = lo
			end = min(start+length, hi)
		}
		if end > hi {
			end = hi
			start = max(end-length, lo)
		}
		if end-start < cfg.MinSeconds {
			continue
		}

		text := windowText(blocks, start, end)
		out = append(out, Candidate{
			Start: start,
			End:   end,
			Text:  text,
			Score: EngagementScore(text, end-start, cfg),
			Metrics: map[string]float64{
				"anchor_score": a.score,
			},
		})
	}
	return out
}

// windowShape returns the candidate lengths and the center shift for
// the active style. Hooky windows bias shorter and earlier; educational
// and story windows bias longer and later. Step-pattern or narrative
// phrasing nudges toward the longer shape regardless of style.
func windowShape(text string, cfg Config) ([]float64, float64) {
	target := cfg.TargetSeconds
	lower := strings.ToLower(text)

	lengths := []float64{target * 0.85, target, target * 1.2}
	shift := 0.0
	switch cfg.Style {
	case StyleHooky:
		lengths = []float64{target * 0.7, target * 0.9, target * 1.05}
		shift = -target * 0.08
	case StyleEducational:
		lengths = []float64{target * 0.9, target * 1.15, target * 1.4}
		shift = target * 0.06
	case StyleStory:
		lengths = []float64{target, target * 1.25}
		shift = target * 0.08
	}
	if reStep.MatchString(lower) || reNarrative.MatchString(lower) {
		for i := range lengths {
			lengths[i] *= 1.1
		}
	}
	return lengths, shift
}

func windowText(blocks []transcript.Block, start, end float64) string {
	var parts []string
	for _, block := range blocks {
		if block.End <= start || block.Start >= end {
			continue
		}
		parts = append(parts, block.Text)
	}
	return strings.Join(parts, " ")
}

// appendDeduped keeps the higher-scored of two windows whose overlap
// ratio exceeds the pool limit.
func appendDeduped(pool []Candidate, candidate Candidate) []Candidate {
	for i, existing := range pool {
		if overlapRatio(existing.Start, existing.End, candidate.Start, candidate.End) > poolOverlapLimit {
			if candidate.Score > existing.Score {
				pool[i] = candidate
			}
			return pool
		}
	}
	return append(pool, candidate)
}
