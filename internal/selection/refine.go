package selection

import (
	"strings"

	"clipper/internal/transcript"
)

// Boundary refinement tuning. Padding widens a raw window slightly so
// snapping has material to work with; snap radii bound how far a
// boundary may travel toward a natural break.
const (
	padStartSeconds    = 0.6
	padEndSeconds      = 0.9
	segmentSnapRadius  = 2.8
	silenceSnapRadius  = 2.0
	sentenceExtendSpan = 4.5
	sentenceGapSeconds = 1.0
)

// RefineBoundaries aligns a candidate window to natural speech breaks:
// segment edges, detected silences, sentence ends and word boundaries.
// The result always stays within the effective timeframe and the
// configured duration bounds, and end always exceeds start.
func RefineBoundaries(c Candidate, tr *transcript.Transcript, blocks []transcript.Block, cfg Config, sourceDuration float64) Candidate {
	lo, hi, err := effectiveTimeframe(cfg, sourceDuration)
	if err != nil {
		lo, hi = 0, sourceDuration
	}

	start := c.Start - padStartSeconds
	end := c.End + padEndSeconds

	start = snapStart(start, tr)
	end = snapEnd(end, tr)
	start = extendToSentenceStart(start, end, blocks, lo, cfg.MaxSeconds)
	end = extendToSentenceEnd(start, end, blocks, hi, cfg.MaxSeconds)
	end = snapEndToTerminalWord(end, tr)
	start = snapStartToWordBreak(start, tr)

	start = clamp(start, lo, hi)
	end = clamp(end, lo, hi)

	// Enforce the duration bounds, trimming the end first so the hook
	// at the start survives.
	if end-start > cfg.MaxSeconds {
		end = start + cfg.MaxSeconds
	}
	if end-start < cfg.MinSeconds {
		end = min(start+cfg.MinSeconds, hi)
		start = max(end-cfg.MinSeconds, lo)
	}
	if end <= start {
		return c
	}

	refined := c
	refined.Start = start
	refined.End = end
	refined.Text = windowText(blocks, start, end)
	return refined
}

// snapStart moves the start to the nearest earlier-or-near segment
// onset or silence edge within the snap radii.
func snapStart(start float64, tr *transcript.Transcript) float64 {
	if tr == nil {
		return start
	}
	best := start
	bestDist := segmentSnapRadius
	for _, seg := range tr.Segments {
		d := abs(seg.Start - start)
		if d < bestDist {
			best = seg.Start
			bestDist = d
		}
	}
	for _, sil := range tr.Silences {
		d := abs(sil - start)
		if d < min(bestDist, silenceSnapRadius) {
			best = sil
			bestDist = d
		}
	}
	return best
}

// snapEnd mirrors snapStart for the closing boundary, preferring
// segment ends and silence onsets.
func snapEnd(end float64, tr *transcript.Transcript) float64 {
	if tr == nil {
		return end
	}
	best := end
	bestDist := segmentSnapRadius
	for _, seg := range tr.Segments {
		d := abs(seg.End - end)
		if d < bestDist {
			best = seg.End
			bestDist = d
		}
	}
	for _, sil := range tr.Silences {
		d := abs(sil - end)
		if d < min(bestDist, silenceSnapRadius) {
			best = sil
			bestDist = d
		}
	}
	return best
}

// extendToSentenceStart walks backward from the block the window opens
// in: while that block does not start a sentence and the previous block
// runs close to it, the start moves onto the previous block. The walk
// stops at a sentence-opening block, so a clip never opens mid-sentence,
// and never grows the window past MaxSeconds or out of the timeframe.
func extendToSentenceStart(start, end float64, blocks []transcript.Block, lo, maxSeconds float64) float64 {
	idx := -1
	for i, block := range blocks {
		if start < block.End && end > block.Start {
			idx = i
			break
		}
	}
	if idx < 0 {
		return start
	}

	candidate := start
	if blocks[idx].Start >= lo && end-blocks[idx].Start <= maxSeconds {
		candidate = min(candidate, blocks[idx].Start)
	}
	for idx > 0 && !blocks[idx].SentenceStart {
		prev := blocks[idx-1]
		if blocks[idx].Start-prev.End > sentenceGapSeconds {
			break
		}
		if prev.Start < lo || end-prev.Start > maxSeconds {
			break
		}
		candidate = prev.Start
		idx--
	}
	return candidate
}

// extendToSentenceEnd mirrors the backward walk for the closing
// boundary: the end moves to the close of the block that finishes the
// running sentence, carrying across small gaps, within a bounded span.
func extendToSentenceEnd(start, end float64, blocks []transcript.Block, hi, maxSeconds float64) float64 {
	idx := -1
	for i, block := range blocks {
		if end > block.Start && start < block.End {
			idx = i
		}
	}
	if idx < 0 {
		return end
	}

	for {
		block := blocks[idx]
		if transcript.EndsSentence(block.Text) {
			if block.End > end && block.End <= hi &&
				block.End-start <= maxSeconds && block.End-end <= sentenceExtendSpan {
				return block.End
			}
			return end
		}
		if idx == len(blocks)-1 {
			return end
		}
		if blocks[idx+1].Start-block.End > sentenceGapSeconds {
			return end
		}
		idx++
	}
}

// snapEndToTerminalWord nudges the end onto the closest word that
// carries terminal punctuation, so captions do not cut mid-word.
func snapEndToTerminalWord(end float64, tr *transcript.Transcript) float64 {
	if tr == nil || len(tr.Words) == 0 {
		return end
	}
	best := end
	bestDist := silenceSnapRadius
	for _, w := range tr.Words {
		if !strings.ContainsAny(w.Word, ".!?…") {
			continue
		}
		d := abs(w.End - end)
		if d < bestDist {
			best = w.End
			bestDist = d
		}
	}
	return best
}

// snapStartToWordBreak aligns the start just past the close of the
// previous sentence when a terminal-punctuation word ends nearby.
func snapStartToWordBreak(start float64, tr *transcript.Transcript) float64 {
	if tr == nil || len(tr.Words) == 0 {
		return start
	}
	best := start
	bestDist := silenceSnapRadius
	for _, w := range tr.Words {
		if !strings.ContainsAny(w.Word, ".!?…") {
			continue
		}
		d := abs(w.End - start)
		if d < bestDist {
			best = w.End
			bestDist = d
		}
	}
	return best
}
