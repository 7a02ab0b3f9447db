package selection

import (
	"math"
	"sort"
)

// Diversity tuning. The duration-homogeneity penalty discourages a
// reel of near-identical clip lengths; the uniform guard rejects
// selections that degenerate into an even split of the source.
const (
	durationSimilarityBand  = 2.0
	durationPenaltyFactor   = 0.92
	uniformSplitCoVLimit    = 0.22
	shortSourceMinutes      = 20.0
	shortSourceMaxClipBoost = 8
)

// SelectDiverse greedily picks the windows that are far enough apart to
// cover distinct parts of the source. Each round picks the remaining
// candidate with the highest penalty-adjusted score; the penalty only
// steers the choice and never alters a candidate's stored score.
func SelectDiverse(ranked []Candidate, cfg Config, sourceDuration float64) []Candidate {
	limit := cfg.MaxClips
	if sourceDuration > 0 && sourceDuration < shortSourceMinutes*60 && limit > shortSourceMaxClipBoost {
		limit = shortSourceMaxClipBoost
	}

	remaining := append([]Candidate(nil), ranked...)
	var picked []Candidate
	for len(picked) < limit {
		bestIdx := -1
		bestEffective := 0.0
		for i, candidate := range remaining {
			if conflicts(candidate, picked, cfg) {
				continue
			}
			effective := candidate.Score * durationPenalty(candidate, picked)
			if bestIdx < 0 || effective > bestEffective {
				bestIdx = i
				bestEffective = effective
			}
		}
		if bestIdx < 0 {
			break
		}
		picked = append(picked, remaining[bestIdx])
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
	}

	if isUniformSplit(picked) {
		picked = breakUniformity(picked, ranked, cfg)
	}
	return picked
}

func conflicts(candidate Candidate, picked []Candidate, cfg Config) bool {
	for _, other := range picked {
		if overlapRatio(candidate.Start, candidate.End, other.Start, other.End) > cfg.OverlapThreshold {
			return true
		}
		if abs(candidate.Start-other.Start) < cfg.MinDistance {
			return true
		}
	}
	return false
}

// durationPenalty softly discounts candidates whose length closely
// matches an already-picked clip.
func durationPenalty(candidate Candidate, picked []Candidate) float64 {
	for _, other := range picked {
		if abs(candidate.DurationSeconds()-other.DurationSeconds()) < durationSimilarityBand {
			return durationPenaltyFactor
		}
	}
	return 1
}

// isUniformSplit reports whether the picked starts look like an even
// partition of the source, which signals the scorer found no real
// structure. Measured as the coefficient of variation of inter-start
// gaps; needs at least three clips to be meaningful.
func isUniformSplit(picked []Candidate) bool {
	if len(picked) < 3 {
		return false
	}
	starts := make([]float64, len(picked))
	for i, c := range picked {
		starts[i] = c.Start
	}
	sort.Float64s(starts)

	gaps := make([]float64, 0, len(starts)-1)
	sum := 0.0
	for i := 1; i < len(starts); i++ {
		gap := starts[i] - starts[i-1]
		gaps = append(gaps, gap)
		sum += gap
	}
	mean := sum / float64(len(gaps))
	if mean <= 0 {
		return false
	}
	variance := 0.0
	for _, gap := range gaps {
		variance += (gap - mean) * (gap - mean)
	}
	variance /= float64(len(gaps))
	return math.Sqrt(variance)/mean < uniformSplitCoVLimit
}

// breakUniformity swaps the weakest pick for the best remaining
// candidate that disturbs the even spacing. Falls back to dropping the
// weakest pick when no replacement exists.
func breakUniformity(picked, ranked []Candidate, cfg Config) []Candidate {
	weakest := len(picked) - 1
	trimmed := append([]Candidate(nil), picked[:weakest]...)

	for _, candidate := range ranked {
		if containsWindow(picked, candidate) {
			continue
		}
		if conflicts(candidate, trimmed, cfg) {
			continue
		}
		replaced := append(append([]Candidate(nil), trimmed...), candidate)
		if !isUniformSplit(replaced) {
			return replaced
		}
	}
	return trimmed
}

func containsWindow(set []Candidate, c Candidate) bool {
	for _, other := range set {
		if other.Start == c.Start && other.End == c.End {
			return true
		}
	}
	return false
}
