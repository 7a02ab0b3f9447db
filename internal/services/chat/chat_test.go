package chat_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"clipper/internal/config"
	"clipper/internal/selection"
	"clipper/internal/services"
	"clipper/internal/services/chat"
)

func chatConfig(url string) config.Chat {
	return config.Chat{
		Enabled:        true,
		APIKey:         "test-key",
		BaseURL:        url,
		Model:          "test-model",
		TimeoutSeconds: 5,
		MaxRetries:     3,
	}
}

func completionBody(content string) string {
	body, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]string{"role": "assistant", "content": content}},
		},
	})
	return string(body)
}

func TestCompleteReturnsFirstChoice(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("missing auth header, got %q", got)
		}
		w.Write([]byte(completionBody("hello")))
	}))
	defer server.Close()

	client := chat.New(chatConfig(server.URL), nil)
	content, err := client.Complete(context.Background(), []chat.Message{{Role: "user", Content: "hi"}})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if content != "hello" {
		t.Fatalf("content = %q, want hello", content)
	}
}

func TestCompleteRetriesRateLimit(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(completionBody("recovered")))
	}))
	defer server.Close()

	client := chat.New(chatConfig(server.URL), nil)
	content, err := client.Complete(context.Background(), []chat.Message{{Role: "user", Content: "hi"}})
	if err != nil {
		t.Fatalf("Complete after retries: %v", err)
	}
	if content != "recovered" {
		t.Fatalf("content = %q", content)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls.Load())
	}
}

func TestCompleteDoesNotRetryAuthFailure(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := chat.New(chatConfig(server.URL), nil)
	_, err := client.Complete(context.Background(), []chat.Message{{Role: "user", Content: "hi"}})
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("auth failure should not retry, got %d calls", calls.Load())
	}
}

func TestCompleteRequiresAPIKey(t *testing.T) {
	cfg := chatConfig("http://localhost:1")
	cfg.APIKey = ""
	client := chat.New(cfg, nil)
	if _, err := client.Complete(context.Background(), nil); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestEnrichClipsParsesMetadata(t *testing.T) {
	reply := "```json\n" + `[{"clip_id":"001","title":"The Friday rule","hook":"Never ship on Friday","reason":"Strong warning"}]` + "\n```"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(completionBody(reply)))
	}))
	defer server.Close()

	client := chat.New(chatConfig(server.URL), nil)
	clips := []selection.Clip{{ID: "001", Start: 0, End: 45, Text: "Never ship on Friday because..."}}
	meta, err := client.EnrichClips(context.Background(), clips, "en")
	if err != nil {
		t.Fatalf("EnrichClips: %v", err)
	}
	if len(meta) != 1 || meta[0].Title != "The Friday rule" {
		t.Fatalf("unexpected metadata: %+v", meta)
	}
}

func TestEnrichClipsRejectsMalformedReply(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(completionBody("sure, here are some titles!")))
	}))
	defer server.Close()

	client := chat.New(chatConfig(server.URL), nil)
	clips := []selection.Clip{{ID: "001", Text: "text"}}
	if _, err := client.EnrichClips(context.Background(), clips, "en"); !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
}

func TestApplyMetadataKeepsHeuristicsForBlanks(t *testing.T) {
	clips := []selection.Clip{
		{ID: "001", Title: "heuristic title", Hook: "heuristic hook", Reason: "heuristic reason"},
		{ID: "002", Title: "untouched"},
	}
	meta := []chat.ClipMetadata{
		{ClipID: "001", Title: "model title", Hook: ""},
	}
	out := chat.ApplyMetadata(clips, meta)
	if out[0].Title != "model title" {
		t.Errorf("title not overlaid: %q", out[0].Title)
	}
	if out[0].Hook != "heuristic hook" {
		t.Errorf("blank model hook should keep heuristic: %q", out[0].Hook)
	}
	if out[1].Title != "untouched" {
		t.Errorf("clip without metadata changed: %q", out[1].Title)
	}
}
