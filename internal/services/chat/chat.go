// Package chat talks to an OpenAI-compatible chat-completions endpoint.
// The daemon uses it only to enrich clip metadata; selection never
// depends on a model response.
package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"clipper/internal/config"
	"clipper/internal/logging"
	"clipper/internal/services"
	"clipper/internal/services/retry"
)

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Client is a minimal chat-completions client with bounded retries.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
	referer    string
	title      string
	policy     retry.Policy
	logger     *slog.Logger
}

// Option adjusts a Client.
type Option func(*Client)

// WithHTTPClient substitutes the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithBaseURL overrides the configured endpoint.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// New builds a chat client from daemon configuration.
func New(cfg config.Chat, logger *slog.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = logging.NewNop()
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	policy := retry.DefaultPolicy()
	if cfg.MaxRetries > 0 {
		policy.MaxAttempts = cfg.MaxRetries
	}
	c := &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		referer:    cfg.Referer,
		title:      cfg.Title,
		policy:     policy,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type completionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
}

type completionResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Complete sends the conversation and returns the first choice's
// content. Transient HTTP failures are retried with backoff.
func (c *Client) Complete(ctx context.Context, messages []Message) (string, error) {
	if c.apiKey == "" {
		return "", services.Wrap(services.ErrConfiguration, "chat", "complete", "api key not configured", nil)
	}

	var content string
	err := retry.Do(ctx, c.policy, func(ctx context.Context) error {
		var err error
		content, err = c.completeOnce(ctx, messages)
		return err
	})
	return content, err
}

func (c *Client) completeOnce(ctx context.Context, messages []Message) (string, error) {
	body, err := json.Marshal(completionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: 0.4,
	})
	if err != nil {
		return "", services.Wrap(services.ErrValidation, "chat", "complete", "encode request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", services.Wrap(services.ErrValidation, "chat", "complete", "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if c.referer != "" {
		req.Header.Set("HTTP-Referer", c.referer)
	}
	if c.title != "" {
		req.Header.Set("X-Title", c.title)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "chat", "complete", "request failed", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "chat", "complete", "read response", err)
	}
	if err := classifyStatus(resp.StatusCode, payload); err != nil {
		return "", err
	}

	var parsed completionResponse
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return "", services.Wrap(services.ErrExternalTool, "chat", "complete", "invalid response JSON", err)
	}
	if parsed.Error != nil {
		return "", services.Wrap(services.ErrExternalTool, "chat", "complete", parsed.Error.Message, nil)
	}
	if len(parsed.Choices) == 0 {
		return "", services.Wrap(services.ErrExternalTool, "chat", "complete", "response has no choices", nil)
	}
	return parsed.Choices[0].Message.Content, nil
}

// HealthCheck verifies the endpoint is reachable and the key valid
// with a single lightweight request.
func (c *Client) HealthCheck(ctx context.Context) error {
	if c.apiKey == "" {
		return services.Wrap(services.ErrConfiguration, "chat", "health", "api key not configured", nil)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/models", nil)
	if err != nil {
		return services.Wrap(services.ErrValidation, "chat", "health", "build request", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return services.Wrap(services.ErrTransient, "chat", "health", "endpoint unreachable", err)
	}
	defer resp.Body.Close()
	payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return classifyStatus(resp.StatusCode, payload)
}

// classifyStatus maps HTTP status codes onto the error taxonomy:
// rate limits and server errors retry, auth and request errors do not.
func classifyStatus(status int, payload []byte) error {
	if status >= 200 && status < 300 {
		return nil
	}
	detail := strings.TrimSpace(string(payload))
	if len(detail) > 300 {
		detail = detail[:300]
	}
	msg := fmt.Sprintf("status %d: %s", status, detail)
	switch {
	case status == http.StatusTooManyRequests || status >= 500:
		return services.Wrap(services.ErrTransient, "chat", "complete", msg, nil)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return services.Wrap(services.ErrConfiguration, "chat", "complete", msg, nil)
	default:
		return services.Wrap(services.ErrValidation, "chat", "complete", msg, nil)
	}
}
