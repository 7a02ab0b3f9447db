package transcript

import (
	"strings"
)

// Segment is the raw unit produced by the transcription provider.
// Immutable once produced.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Word is a word-level timestamp from the transcription provider.
type Word struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Word  string  `json:"word"`
}

// Transcript is the full output of a transcription run.
type Transcript struct {
	Text     string    `json:"text"`
	Duration float64   `json:"duration"`
	Language string    `json:"language"`
	Segments []Segment `json:"segments"`
	Words    []Word    `json:"words"`
	// Silences are detected silence midpoints in seconds, optional.
	Silences []float64 `json:"silences,omitempty"`
}

// Duration returns the segment length in seconds.
func (s Segment) DurationSeconds() float64 {
	return s.End - s.Start
}

// IsFiller reports whether the segment carries no usable speech.
func (s Segment) IsFiller() bool {
	return strings.TrimSpace(s.Text) == ""
}

// WordCount counts whitespace-separated tokens in the segment text.
func WordCount(text string) int {
	return len(strings.Fields(text))
}
