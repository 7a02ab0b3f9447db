package transcript

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	// smallGapThreshold is the largest silence (seconds) still merged
	// into the current block.
	smallGapThreshold = 0.8
	// maxBlockSeconds stops a block from swallowing a whole monologue.
	maxBlockSeconds = 12.0
)

// Block is a coherent run of speech produced by Normalize.
// Invariant: End > Start; Text is the merged segment text in temporal order.
type Block struct {
	Start         float64
	End           float64
	Text          string
	SentenceStart bool
}

// DurationSeconds returns the block length in seconds.
func (b Block) DurationSeconds() float64 {
	return b.End - b.Start
}

// Normalize merges raw segments into blocks: a segment joins the
// previous block when the gap is small and the block has room left,
// otherwise it starts a new block. Filler segments are dropped.
// Degenerate input yields zero blocks; callers fall back to a single
// default-duration candidate.
func Normalize(segments []Segment, lang string) []Block {
	caser := upperCaser(lang)

	var blocks []Block
	for _, seg := range segments {
		if seg.IsFiller() || seg.End <= seg.Start {
			continue
		}
		text := strings.TrimSpace(seg.Text)

		if len(blocks) > 0 {
			prev := &blocks[len(blocks)-1]
			gap := seg.Start - prev.End
			if gap <= smallGapThreshold && prev.DurationSeconds() < maxBlockSeconds {
				prev.End = seg.End
				prev.Text = prev.Text + " " + text
				continue
			}
		}

		followsSilence := false
		if len(blocks) > 0 {
			followsSilence = seg.Start-blocks[len(blocks)-1].End > smallGapThreshold
		}
		blocks = append(blocks, Block{
			Start:         seg.Start,
			End:           seg.End,
			Text:          text,
			SentenceStart: startsUpper(text, caser) || followsSilence || len(blocks) == 0,
		})
	}
	return blocks
}

// EndsSentence reports whether text closes on terminal punctuation.
func EndsSentence(text string) bool {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return false
	}
	r, _ := utf8.DecodeLastRuneInString(trimmed)
	switch r {
	case '.', '!', '?', '…':
		return true
	default:
		return false
	}
}

// upperCaser builds a locale-aware upper caser; unknown or empty
// language tags fall back to the undefined locale.
func upperCaser(lang string) cases.Caser {
	tag := language.Und
	if trimmed := strings.TrimSpace(lang); trimmed != "" && trimmed != "auto" {
		if parsed, err := language.Parse(trimmed); err == nil {
			tag = parsed
		}
	}
	return cases.Upper(tag)
}

// startsUpper reports whether the first letter of text is already in
// its locale-aware uppercase form.
func startsUpper(text string, caser cases.Caser) bool {
	for _, r := range text {
		if !unicode.IsLetter(r) {
			if unicode.IsDigit(r) {
				return false
			}
			continue
		}
		return caser.String(string(r)) == string(r)
	}
	return false
}
