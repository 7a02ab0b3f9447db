package transcript_test

import (
	"testing"

	"clipper/internal/transcript"
)

func TestNormalizeMergesMicroFragments(t *testing.T) {
	segments := []transcript.Segment{
		{Start: 0.0, End: 1.5, Text: "So the first"},
		{Start: 1.7, End: 3.2, Text: "thing you need"},
		{Start: 3.4, End: 4.9, Text: "is a plan."},
	}

	blocks := transcript.Normalize(segments, "en")
	if len(blocks) != 1 {
		t.Fatalf("expected one merged block, got %d", len(blocks))
	}
	block := blocks[0]
	if block.Start != 0.0 || block.End != 4.9 {
		t.Fatalf("unexpected block span [%v, %v]", block.Start, block.End)
	}
	if block.Text != "So the first thing you need is a plan." {
		t.Fatalf("unexpected merged text: %q", block.Text)
	}
}

func TestNormalizeSplitsOnLargeGap(t *testing.T) {
	segments := []transcript.Segment{
		{Start: 0.0, End: 2.0, Text: "First thought."},
		{Start: 5.0, End: 7.0, Text: "new thought after a pause"},
	}

	blocks := transcript.Normalize(segments, "en")
	if len(blocks) != 2 {
		t.Fatalf("expected two blocks, got %d", len(blocks))
	}
	if !blocks[1].SentenceStart {
		t.Fatal("block after silence should count as a sentence start")
	}
}

func TestNormalizeSplitsWhenBlockFull(t *testing.T) {
	// Contiguous speech longer than the max block length must not
	// collapse into a single block.
	segments := []transcript.Segment{
		{Start: 0.0, End: 7.0, Text: "part one"},
		{Start: 7.1, End: 14.0, Text: "part two"},
		{Start: 14.1, End: 20.0, Text: "part three"},
	}

	blocks := transcript.Normalize(segments, "en")
	if len(blocks) < 2 {
		t.Fatalf("expected the block to split, got %d blocks", len(blocks))
	}
}

func TestNormalizeDropsFiller(t *testing.T) {
	segments := []transcript.Segment{
		{Start: 0.0, End: 1.0, Text: "   "},
		{Start: 1.0, End: 2.0, Text: ""},
	}
	if blocks := transcript.Normalize(segments, "en"); len(blocks) != 0 {
		t.Fatalf("expected zero blocks for filler input, got %d", len(blocks))
	}
	if blocks := transcript.Normalize(nil, "en"); len(blocks) != 0 {
		t.Fatalf("expected zero blocks for empty input, got %d", len(blocks))
	}
}

func TestSentenceStartDetection(t *testing.T) {
	segments := []transcript.Segment{
		{Start: 0.0, End: 13.0, Text: "Here is the hook and a long run of speech that fills the block."},
		{Start: 13.1, End: 16.0, Text: "and this continues the sentence"},
	}
	blocks := transcript.Normalize(segments, "en")
	if len(blocks) != 2 {
		t.Fatalf("expected two blocks, got %d", len(blocks))
	}
	if !blocks[0].SentenceStart {
		t.Fatal("uppercase start should be a sentence start")
	}
	if blocks[1].SentenceStart {
		t.Fatal("lowercase continuation should not be a sentence start")
	}
}

func TestEndsSentence(t *testing.T) {
	cases := []struct {
		text string
		want bool
	}{
		{"Done.", true},
		{"Really?", true},
		{"Wow!", true},
		{"trailing comma,", false},
		{"no punctuation", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := transcript.EndsSentence(tc.text); got != tc.want {
			t.Errorf("EndsSentence(%q) = %v, want %v", tc.text, got, tc.want)
		}
	}
}
