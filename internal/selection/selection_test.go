package selection_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"clipper/internal/config"
	"clipper/internal/selection"
	"clipper/internal/transcript"
)

func defaults() config.Selection {
	return config.Selection{
		Style:            selection.StyleHooky,
		MinSeconds:       20,
		MaxSeconds:       90,
		TargetSeconds:    45,
		MaxClips:         5,
		OverlapThreshold: 0.3,
		MinDistance:      30,
	}
}

func TestBuildConfigMergesRequestOverDefaults(t *testing.T) {
	req := selection.Request{
		Style:      "EDUCATIONAL",
		MinSeconds: 25,
		MaxClips:   3,
	}
	cfg, err := selection.BuildConfig(defaults(), req)
	if err != nil {
		t.Fatalf("BuildConfig: %v", err)
	}
	if cfg.Style != selection.StyleEducational {
		t.Errorf("style = %q, want educational", cfg.Style)
	}
	if cfg.MinSeconds != 25 {
		t.Errorf("min = %v, want 25", cfg.MinSeconds)
	}
	if cfg.MaxClips != 3 {
		t.Errorf("max clips = %d, want 3", cfg.MaxClips)
	}
	if cfg.MaxSeconds != 90 {
		t.Errorf("max = %v, want default 90", cfg.MaxSeconds)
	}
}

func TestBuildConfigRejectsInvertedDurations(t *testing.T) {
	d := defaults()
	d.MinSeconds = 90
	d.MaxSeconds = 20
	if _, err := selection.BuildConfig(d, selection.Request{}); err == nil {
		t.Fatal("expected validation error for min > max")
	}
}

func TestBuildConfigRejectsInvertedTimeframe(t *testing.T) {
	start, end := 100.0, 50.0
	req := selection.Request{TimeframeStart: &start, TimeframeEnd: &end}
	if _, err := selection.BuildConfig(defaults(), req); err == nil {
		t.Fatal("expected validation error for inverted timeframe")
	}
}

func TestParseRequestEmptyYieldsZero(t *testing.T) {
	req, err := selection.ParseRequest("")
	if err != nil {
		t.Fatalf("ParseRequest: %v", err)
	}
	if !req.IsEmpty() {
		t.Fatalf("expected zero request, got %+v", req)
	}
	if _, err := selection.ParseRequest("{not json"); err == nil {
		t.Fatal("expected error for malformed request JSON")
	}
}

// Style must invert the ranking between a question-led hook and a
// step-by-step explanation.
func TestStyleSensitivity(t *testing.T) {
	hookText := "How to stop this mistake in 3 steps?"
	stepText := "First, second and third step to configure the project."
	duration := 45.0

	hooky, err := selection.BuildConfig(defaults(), selection.Request{Style: selection.StyleHooky})
	if err != nil {
		t.Fatal(err)
	}
	educational, err := selection.BuildConfig(defaults(), selection.Request{Style: selection.StyleEducational})
	if err != nil {
		t.Fatal(err)
	}

	if h, s := selection.EngagementScore(hookText, duration, hooky), selection.EngagementScore(stepText, duration, hooky); h <= s {
		t.Errorf("hooky style should prefer the question: hook=%v steps=%v", h, s)
	}
	if h, s := selection.EngagementScore(hookText, duration, educational), selection.EngagementScore(stepText, duration, educational); s <= h {
		t.Errorf("educational style should prefer the steps: hook=%v steps=%v", h, s)
	}
}

func TestMomentTextBoostsMatchingWindows(t *testing.T) {
	base, err := selection.BuildConfig(defaults(), selection.Request{})
	if err != nil {
		t.Fatal(err)
	}
	boosted := base
	boosted.MomentText = "deploy the project"

	text := "Here is how you deploy the project step by step."
	if selection.EngagementScore(text, 45, boosted) <= selection.EngagementScore(text, 45, base) {
		t.Error("matching moment text should raise the score")
	}

	unrelated := "Something about cooking pasta tonight."
	if selection.EngagementScore(unrelated, 45, boosted) != selection.EngagementScore(unrelated, 45, base) {
		t.Error("non-matching moment text should not change the score")
	}
}

func TestGradeBands(t *testing.T) {
	cases := []struct {
		score float64
		want  string
	}{
		{95, "A"}, {80, "A"}, {79.9, "B"}, {65, "B"}, {50, "C"}, {44, "D"}, {0, "D"},
	}
	for _, tc := range cases {
		if got := selection.Grade(tc.score); got != tc.want {
			t.Errorf("Grade(%v) = %q, want %q", tc.score, got, tc.want)
		}
	}
}

func TestViralityBandsAndReasons(t *testing.T) {
	cfg, err := selection.BuildConfig(defaults(), selection.Request{})
	if err != nil {
		t.Fatal(err)
	}
	strong := "How to stop the biggest mistake in 3 steps? You can improve the result today. It works better and saves hours."
	v := selection.ScoreVirality(strong, 45, cfg)
	if v.Score < 0 || v.Score > 100 {
		t.Fatalf("virality score out of range: %v", v.Score)
	}
	if len(v.Reasons) == 0 || len(v.Reasons) > 3 {
		t.Fatalf("expected 1-3 reasons, got %d", len(v.Reasons))
	}
	if len(v.Breakdown) != 5 {
		t.Fatalf("expected five sub-scores, got %d", len(v.Breakdown))
	}
	for key, sub := range v.Breakdown {
		if sub < 0 || sub > 1 {
			t.Errorf("sub-score %s out of range: %v", key, sub)
		}
	}

	weak := selection.ScoreVirality("mm hm yeah", 45, cfg)
	if weak.Score >= v.Score {
		t.Errorf("filler should score below a strong hook: %v >= %v", weak.Score, v.Score)
	}
	if weak.Band != selection.BandLow {
		t.Errorf("filler band = %q, want LOW", weak.Band)
	}
}

func TestGenerateCandidatesTimeframeTooSmall(t *testing.T) {
	cfg, err := selection.BuildConfig(defaults(), selection.Request{})
	if err != nil {
		t.Fatal(err)
	}
	// Source shorter than the minimum clip length.
	_, err = selection.GenerateCandidates(nil, cfg, 10)
	if !errors.Is(err, selection.ErrNoValidSegments) {
		t.Fatalf("expected ErrNoValidSegments, got %v", err)
	}
}

func TestGenerateCandidatesEmptyTranscriptFallback(t *testing.T) {
	cfg, err := selection.BuildConfig(defaults(), selection.Request{})
	if err != nil {
		t.Fatal(err)
	}
	candidates, err := selection.GenerateCandidates(nil, cfg, 300)
	if err != nil {
		t.Fatalf("GenerateCandidates: %v", err)
	}
	if len(candidates) != 1 {
		t.Fatalf("expected a single fallback window, got %d", len(candidates))
	}
	if candidates[0].Start != 0 {
		t.Errorf("fallback should start at zero, got %v", candidates[0].Start)
	}
	if d := candidates[0].DurationSeconds(); d < cfg.MinSeconds || d > cfg.MaxSeconds {
		t.Errorf("fallback duration %v outside [%v, %v]", d, cfg.MinSeconds, cfg.MaxSeconds)
	}
}

// syntheticTranscript builds a talk with a few strong moments spread
// across an otherwise flat narration.
func syntheticTranscript(totalSeconds float64) *transcript.Transcript {
	tr := &transcript.Transcript{Duration: totalSeconds, Language: "en"}
	highlights := map[int]string{
		4:  "How do you stop making this mistake every single day?",
		18: "Here's how to configure the project in 3 steps. First, open the settings.",
		33: "I was there when we were shipping the first release. I remember the panic.",
		47: "Never deploy on Friday. This secret saves hours every week.",
	}
	step := 8.0
	for i := 0; float64(i)*step+step <= totalSeconds; i++ {
		start := float64(i) * step
		text := fmt.Sprintf("And then we keep talking about item %d for a while.", i)
		if h, ok := highlights[i]; ok {
			text = h
		}
		tr.Segments = append(tr.Segments, transcript.Segment{
			Start: start,
			End:   start + step - 0.3,
			Text:  text,
		})
	}
	return tr
}

func TestSelectHonorsDurationAndTimeframeInvariants(t *testing.T) {
	cfg, err := selection.BuildConfig(defaults(), selection.Request{})
	if err != nil {
		t.Fatal(err)
	}
	tr := syntheticTranscript(480)

	clips, err := selection.NewEngine().Select(tr, cfg)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if len(clips) == 0 {
		t.Fatal("expected at least one clip")
	}
	if len(clips) > cfg.MaxClips {
		t.Fatalf("got %d clips, max is %d", len(clips), cfg.MaxClips)
	}
	for _, clip := range clips {
		if d := clip.DurationSeconds(); d < cfg.MinSeconds || d > cfg.MaxSeconds {
			t.Errorf("clip %s duration %v outside [%v, %v]", clip.ID, d, cfg.MinSeconds, cfg.MaxSeconds)
		}
		if clip.Start < 0 || clip.End > tr.Duration {
			t.Errorf("clip %s [%v, %v] escapes the source", clip.ID, clip.Start, clip.End)
		}
		if clip.Title == "" || clip.Hook == "" || clip.Reason == "" {
			t.Errorf("clip %s missing heuristic metadata", clip.ID)
		}
		if clip.Grade == "" || clip.Virality.Band == "" {
			t.Errorf("clip %s missing grade or virality band", clip.ID)
		}
	}
}

func TestSelectClipsDoNotOverlapBeyondThreshold(t *testing.T) {
	cfg, err := selection.BuildConfig(defaults(), selection.Request{})
	if err != nil {
		t.Fatal(err)
	}
	clips, err := selection.NewEngine().Select(syntheticTranscript(480), cfg)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	for i := range clips {
		for j := i + 1; j < len(clips); j++ {
			a, b := clips[i], clips[j]
			overlap := minFloat(a.End, b.End) - maxFloat(a.Start, b.Start)
			if overlap <= 0 {
				continue
			}
			shorter := minFloat(a.DurationSeconds(), b.DurationSeconds())
			if overlap/shorter > cfg.OverlapThreshold {
				t.Errorf("clips %s and %s overlap %.0f%%", a.ID, b.ID, 100*overlap/shorter)
			}
		}
	}
}

func TestSelectIsDeterministic(t *testing.T) {
	cfg, err := selection.BuildConfig(defaults(), selection.Request{})
	if err != nil {
		t.Fatal(err)
	}
	engine := selection.NewEngine()

	first, err := engine.Select(syntheticTranscript(480), cfg)
	if err != nil {
		t.Fatal(err)
	}
	second, err := engine.Select(syntheticTranscript(480), cfg)
	if err != nil {
		t.Fatal(err)
	}
	if len(first) != len(second) {
		t.Fatalf("clip counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].ID != second[i].ID || first[i].Start != second[i].Start || first[i].End != second[i].End {
			t.Errorf("clip %d differs between runs: %+v vs %+v", i, first[i], second[i])
		}
	}
}

func TestSelectRespectsTimeframe(t *testing.T) {
	start, end := 100.0, 300.0
	cfg, err := selection.BuildConfig(defaults(), selection.Request{
		TimeframeStart: &start,
		TimeframeEnd:   &end,
	})
	if err != nil {
		t.Fatal(err)
	}
	clips, err := selection.NewEngine().Select(syntheticTranscript(480), cfg)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	for _, clip := range clips {
		if clip.Start < start || clip.End > end {
			t.Errorf("clip %s [%v, %v] escapes timeframe [100, 300]", clip.ID, clip.Start, clip.End)
		}
	}
}

func TestRefineBoundariesStaysWithinBounds(t *testing.T) {
	cfg, err := selection.BuildConfig(defaults(), selection.Request{})
	if err != nil {
		t.Fatal(err)
	}
	tr := syntheticTranscript(480)
	blocks := transcript.Normalize(tr.Segments, tr.Language)

	raw := selection.Candidate{Start: 41.3, End: 84.7, Text: "raw"}
	refined := selection.RefineBoundaries(raw, tr, blocks, cfg, tr.Duration)
	if refined.End <= refined.Start {
		t.Fatalf("refined window inverted: [%v, %v]", refined.Start, refined.End)
	}
	if d := refined.DurationSeconds(); d < cfg.MinSeconds || d > cfg.MaxSeconds {
		t.Errorf("refined duration %v outside [%v, %v]", d, cfg.MinSeconds, cfg.MaxSeconds)
	}
	if refined.Start < 0 || refined.End > tr.Duration {
		t.Errorf("refined window [%v, %v] escapes the source", refined.Start, refined.End)
	}
}

// A window that opens mid-sentence must be walked back to where the
// running sentence began, landing just past the previous terminal word.
func TestRefineBoundariesOpensAtSentenceStart(t *testing.T) {
	cfg, err := selection.BuildConfig(defaults(), selection.Request{})
	if err != nil {
		t.Fatal(err)
	}
	tr := &transcript.Transcript{
		Duration: 60,
		Language: "en",
		Segments: []transcript.Segment{
			{Start: 0, End: 12.5, Text: "Let me walk through the setup and why every piece of it exists in the first place."},
			{Start: 13.5, End: 26.0, Text: "The real mistake shows up when you scale"},
			{Start: 26.4, End: 33.5, Text: "because every shortcut you took comes due at once."},
			{Start: 34.5, End: 46.0, Text: "Then we move on."},
		},
		Words: []transcript.Word{{Start: 12.1, End: 12.5, Word: "place."}},
	}
	blocks := transcript.Normalize(tr.Segments, tr.Language)

	raw := selection.Candidate{Start: 29, End: 50, Text: "raw"}
	refined := selection.RefineBoundaries(raw, tr, blocks, cfg, tr.Duration)
	if refined.End <= refined.Start {
		t.Fatalf("refined window inverted: [%v, %v]", refined.Start, refined.End)
	}
	// The sentence containing second 29 starts at 13.5; anything later
	// opens mid-thought.
	if refined.Start > 13.5 {
		t.Fatalf("start %v still opens mid-sentence, want at or before 13.5", refined.Start)
	}
	if refined.Start < 12.4 || refined.Start > 12.6 {
		t.Errorf("start %v should sit just past the terminal word ending at 12.5", refined.Start)
	}
}

func TestSelectDiverseEnforcesSpacing(t *testing.T) {
	cfg, err := selection.BuildConfig(defaults(), selection.Request{})
	if err != nil {
		t.Fatal(err)
	}
	ranked := []selection.Candidate{
		{Start: 0, End: 45, Score: 90},
		{Start: 10, End: 55, Score: 85},  // too close to the first
		{Start: 100, End: 145, Score: 80},
		{Start: 118, End: 160, Score: 75}, // within min distance of the third
		{Start: 280, End: 325, Score: 70},
	}
	picked := selection.SelectDiverse(ranked, cfg, 480)
	if len(picked) != 3 {
		t.Fatalf("expected 3 spaced picks, got %d", len(picked))
	}
	for i := range picked {
		for j := i + 1; j < len(picked); j++ {
			if diff := picked[j].Start - picked[i].Start; diff < cfg.MinDistance && diff > -cfg.MinDistance {
				t.Errorf("picks %d and %d closer than min distance", i, j)
			}
		}
	}
}

// The duration-homogeneity penalty must influence which candidate wins
// a round, and must never leak into the stored scores.
func TestSelectDiversePenaltySteersPickWithoutMutatingScore(t *testing.T) {
	cfg, err := selection.BuildConfig(defaults(), selection.Request{MaxClips: 2})
	if err != nil {
		t.Fatal(err)
	}
	ranked := []selection.Candidate{
		{Start: 0, End: 30, Score: 100},
		{Start: 100, End: 130, Score: 50}, // same length as the first, penalized to 46
		{Start: 200, End: 226, Score: 49}, // different length, wins on effective score
	}
	picked := selection.SelectDiverse(ranked, cfg, 480)
	if len(picked) != 2 {
		t.Fatalf("expected 2 picks, got %d", len(picked))
	}
	if picked[1].Start != 200 {
		t.Errorf("second pick starts at %v, want the shorter window at 200", picked[1].Start)
	}
	if picked[0].Score != 100 || picked[1].Score != 49 {
		t.Errorf("stored scores changed: %v, %v", picked[0].Score, picked[1].Score)
	}
	if ranked[1].Score != 50 {
		t.Errorf("input candidate mutated: score %v, want 50", ranked[1].Score)
	}
}

func TestSelectDiverseBreaksUniformSplit(t *testing.T) {
	cfg, err := selection.BuildConfig(defaults(), selection.Request{MaxClips: 4})
	if err != nil {
		t.Fatal(err)
	}
	// Perfectly even spacing plus one off-grid alternative.
	ranked := []selection.Candidate{
		{Start: 0, End: 45, Score: 80},
		{Start: 120, End: 165, Score: 79},
		{Start: 240, End: 285, Score: 78},
		{Start: 360, End: 405, Score: 77},
		{Start: 430, End: 475, Score: 60},
	}
	picked := selection.SelectDiverse(ranked, cfg, 600)
	starts := make([]float64, len(picked))
	for i, c := range picked {
		starts[i] = c.Start
	}
	if isEvenGrid(starts) {
		t.Fatalf("selection stayed on the uniform grid: %v", starts)
	}
}

func TestSelectFromProvidedKeepsMetadata(t *testing.T) {
	cfg, err := selection.BuildConfig(defaults(), selection.Request{})
	if err != nil {
		t.Fatal(err)
	}
	tr := syntheticTranscript(480)
	windows := []selection.ProvidedWindow{
		{Start: 30, End: 75, Title: "The Friday rule", Hook: "Never deploy on Friday", Reason: "Strong warning hook"},
	}
	clips, err := selection.NewEngine().SelectFromProvided(tr, cfg, windows)
	if err != nil {
		t.Fatalf("SelectFromProvided: %v", err)
	}
	if len(clips) != 1 {
		t.Fatalf("expected one clip, got %d", len(clips))
	}
	if clips[0].Title != "The Friday rule" {
		t.Errorf("provided title was not kept: %q", clips[0].Title)
	}
	if clips[0].Virality.Band == "" {
		t.Error("provided clips must still carry virality")
	}
}

func TestSelectFromProvidedFallsBackOnGarbage(t *testing.T) {
	cfg, err := selection.BuildConfig(defaults(), selection.Request{})
	if err != nil {
		t.Fatal(err)
	}
	tr := syntheticTranscript(480)
	windows := []selection.ProvidedWindow{
		{Start: 500, End: 600}, // outside the source
		{Start: 50, End: 40},   // inverted
	}
	clips, err := selection.NewEngine().SelectFromProvided(tr, cfg, windows)
	if err != nil {
		t.Fatalf("SelectFromProvided: %v", err)
	}
	if len(clips) == 0 {
		t.Fatal("expected heuristic fallback clips")
	}
	for _, clip := range clips {
		if strings.TrimSpace(clip.Title) == "" {
			t.Errorf("fallback clip %s missing title", clip.ID)
		}
	}
}

// Evenly spaced proposals carry no real structure, so the engine must
// discard them and run its own heuristic pass instead.
func TestSelectFromProvidedRejectsUniformSplit(t *testing.T) {
	cfg, err := selection.BuildConfig(defaults(), selection.Request{})
	if err != nil {
		t.Fatal(err)
	}
	tr := syntheticTranscript(480)
	windows := []selection.ProvidedWindow{
		{Start: 30, End: 75, Title: "Pinned"},
		{Start: 130, End: 175, Title: "Pinned"},
		{Start: 230, End: 275, Title: "Pinned"},
		{Start: 330, End: 375, Title: "Pinned"},
	}
	clips, err := selection.NewEngine().SelectFromProvided(tr, cfg, windows)
	if err != nil {
		t.Fatalf("SelectFromProvided: %v", err)
	}
	if len(clips) == 0 {
		t.Fatal("expected heuristic fallback clips")
	}
	starts := make([]float64, len(clips))
	for i, clip := range clips {
		starts[i] = clip.Start
		if clip.Title == "Pinned" {
			t.Errorf("clip %s kept metadata from a discarded proposal", clip.ID)
		}
	}
	if isEvenGrid(starts) {
		t.Fatalf("selection stayed on the uniform grid: %v", starts)
	}
}

func isEvenGrid(starts []float64) bool {
	if len(starts) < 3 {
		return false
	}
	gap := starts[1] - starts[0]
	for i := 2; i < len(starts); i++ {
		if diff := starts[i] - starts[i-1] - gap; diff > 1 || diff < -1 {
			return false
		}
	}
	return true
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
