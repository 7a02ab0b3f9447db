package pipeline_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"clipper/internal/logging"
	"clipper/internal/pipeline"
	"clipper/internal/queue"
	"clipper/internal/selection"
	"clipper/internal/services"
	"clipper/internal/storage"
	"clipper/internal/testsupport"
	"clipper/internal/transcript"
)

func testTranscriptJSON(t *testing.T) string {
	t.Helper()
	tr := transcript.Transcript{Duration: 480, Language: "en"}
	highlights := map[int]string{
		4:  "How do you stop making this mistake every single day?",
		18: "Here's how to configure the project in 3 steps. First, open the settings.",
		33: "I was there when we were shipping the first release. I remember the panic.",
	}
	for i := 0; i < 60; i++ {
		start := float64(i) * 8
		text := fmt.Sprintf("And then we keep talking about item %d for a while.", i)
		if h, ok := highlights[i]; ok {
			text = h
		}
		tr.Segments = append(tr.Segments, transcript.Segment{Start: start, End: start + 7.7, Text: text})
	}
	raw, err := json.Marshal(tr)
	if err != nil {
		t.Fatal(err)
	}
	return string(raw)
}

func TestSelectStageProducesClips(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	stage := pipeline.NewSelectStage(cfg, nil, logging.NewNop())
	job := &queue.Job{ID: 1, TranscriptJSON: testTranscriptJSON(t), Language: "en"}

	if err := stage.Prepare(context.Background(), job); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if err := stage.Execute(context.Background(), job); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	var clips []selection.Clip
	if err := json.Unmarshal([]byte(job.ClipsJSON), &clips); err != nil {
		t.Fatalf("clips JSON invalid: %v", err)
	}
	if len(clips) == 0 || len(clips) > cfg.Selection.MaxClips {
		t.Fatalf("got %d clips, want 1..%d", len(clips), cfg.Selection.MaxClips)
	}
	for _, clip := range clips {
		if clip.Title == "" || clip.Grade == "" {
			t.Errorf("clip %s missing metadata", clip.ID)
		}
	}
}

func TestSelectStageHonorsPinnedWindows(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	stage := pipeline.NewSelectStage(cfg, nil, logging.NewNop())
	job := &queue.Job{
		ID:             2,
		TranscriptJSON: testTranscriptJSON(t),
		RequestJSON:    `{"windows":[{"start_s":30,"end_s":75,"title":"The opener"}]}`,
	}

	if err := stage.Execute(context.Background(), job); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	var clips []selection.Clip
	if err := json.Unmarshal([]byte(job.ClipsJSON), &clips); err != nil {
		t.Fatalf("clips JSON invalid: %v", err)
	}
	if len(clips) != 1 {
		t.Fatalf("got %d clips, want the single pinned window", len(clips))
	}
	if clips[0].Title != "The opener" {
		t.Errorf("pinned title lost, got %q", clips[0].Title)
	}
}

func TestSelectStageRejectsMissingTranscript(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	stage := pipeline.NewSelectStage(cfg, nil, logging.NewNop())
	err := stage.Prepare(context.Background(), &queue.Job{ID: 1})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSelectStageRejectsBadRequestJSON(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	stage := pipeline.NewSelectStage(cfg, nil, logging.NewNop())
	job := &queue.Job{ID: 1, TranscriptJSON: testTranscriptJSON(t), RequestJSON: "{broken"}
	if err := stage.Execute(context.Background(), job); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestDownloadStageFetchesURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("video bytes"))
	}))
	defer server.Close()

	cfg := testsupport.NewConfig(t)
	stage := pipeline.NewDownloadStage(cfg, logging.NewNop())
	job := &queue.Job{ID: 5, SourceURL: server.URL + "/talk.mp4"}

	if err := stage.Prepare(context.Background(), job); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if err := stage.Execute(context.Background(), job); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	data, err := os.ReadFile(job.SourcePath)
	if err != nil {
		t.Fatalf("downloaded file unreadable: %v", err)
	}
	if string(data) != "video bytes" {
		t.Fatalf("downloaded content = %q", data)
	}
}

func TestDownloadStageFatalOnClientError(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	cfg := testsupport.NewConfig(t)
	stage := pipeline.NewDownloadStage(cfg, logging.NewNop())
	job := &queue.Job{ID: 6, SourceURL: server.URL + "/missing.mp4"}

	if err := stage.Prepare(context.Background(), job); err != nil {
		t.Fatal(err)
	}
	err := stage.Execute(context.Background(), job)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for 404, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("404 should not be retried, got %d calls", calls)
	}
}

func TestDownloadStageRequiresASource(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	stage := pipeline.NewDownloadStage(cfg, logging.NewNop())
	if err := stage.Prepare(context.Background(), &queue.Job{ID: 7}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestUploadAndFinalizeRoundTrip(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	objects, err := storage.NewFileStore(cfg.Paths.ExportDir)
	if err != nil {
		t.Fatal(err)
	}

	clips := []selection.Clip{
		{ID: "001", Start: 10, End: 55, Title: "First"},
		{ID: "002", Start: 100, End: 150, Title: "Second"},
	}
	clipsJSON, _ := json.Marshal(clips)
	job := &queue.Job{ID: 9, ClipsJSON: string(clipsJSON), SourcePath: "/tmp/source.mp4"}

	// Fake the render outputs the upload stage expects.
	renderDir := filepath.Join(cfg.Paths.StagingDir, "jobs", "9", "render")
	if err := os.MkdirAll(renderDir, 0o755); err != nil {
		t.Fatal(err)
	}
	for _, clip := range clips {
		if err := os.WriteFile(filepath.Join(renderDir, clip.ID+".mp4"), []byte("clip "+clip.ID), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	upload := pipeline.NewUploadStage(cfg, objects, logging.NewNop())
	if err := upload.Prepare(context.Background(), job); err != nil {
		t.Fatal(err)
	}
	if err := upload.Execute(context.Background(), job); err != nil {
		t.Fatalf("upload: %v", err)
	}
	// Re-running upload after a reclaim is harmless.
	if err := upload.Execute(context.Background(), job); err != nil {
		t.Fatalf("second upload: %v", err)
	}

	finalize := pipeline.NewFinalizeStage(cfg, objects, logging.NewNop())
	if err := finalize.Execute(context.Background(), job); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	var doc struct {
		Clips []struct {
			ID         string `json:"clip_id"`
			ExportPath string `json:"export_path"`
		} `json:"clips"`
	}
	if err := json.Unmarshal([]byte(job.ClipsJSON), &doc); err != nil {
		t.Fatalf("manifest invalid: %v", err)
	}
	if len(doc.Clips) != 2 {
		t.Fatalf("manifest has %d clips, want 2", len(doc.Clips))
	}
	for _, clip := range doc.Clips {
		if _, err := os.Stat(clip.ExportPath); err != nil {
			t.Errorf("export path for %s unreadable: %v", clip.ID, err)
		}
	}
	if _, err := os.Stat(filepath.Join(cfg.Paths.StagingDir, "jobs", "9")); !os.IsNotExist(err) {
		t.Error("staging directory should be removed after finalize")
	}
}

func TestFinalizeFailsWhenObjectMissing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	objects, err := storage.NewFileStore(cfg.Paths.ExportDir)
	if err != nil {
		t.Fatal(err)
	}
	clipsJSON, _ := json.Marshal([]selection.Clip{{ID: "001", Start: 0, End: 30}})
	job := &queue.Job{ID: 11, ClipsJSON: string(clipsJSON)}

	finalize := pipeline.NewFinalizeStage(cfg, objects, logging.NewNop())
	if err := finalize.Execute(context.Background(), job); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for missing object, got %v", err)
	}
}
