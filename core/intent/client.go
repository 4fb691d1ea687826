// Package intent calls the external LLM intent endpoint that turns a free
// text prompt into a structured generation intent.
package intent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"pleia/config"
	"pleia/logger"
	"pleia/model"

	"github.com/hashicorp/go-retryablehttp"
)

// Resolver resolves a prompt into a structured intent. Narrow interface so
// handlers and tests can swap the HTTP client out.
type Resolver interface {
	Resolve(ctx context.Context, prompt string, targetTracks int) (*model.Intent, error)
}

// Client is the HTTP resolver for the intent endpoint.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient builds an intent client with retry on transient failures.
func NewClient(cfg *config.Config) *Client {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 2
	retryClient.HTTPClient.Timeout = 60 * time.Second
	retryClient.Logger = nil

	return &Client{
		baseURL:    cfg.IntentAPIURL,
		apiKey:     cfg.IntentAPIKey,
		httpClient: retryClient.StandardClient(),
	}
}

type resolveRequest struct {
	Prompt       string `json:"prompt"`
	TargetTracks int    `json:"target_tracks"`
}

// Resolve POSTs the prompt and decodes the structured intent. A failure
// here aborts the whole generation request (the caller maps it to a 500).
func (c *Client) Resolve(ctx context.Context, prompt string, targetTracks int) (*model.Intent, error) {
	body, err := json.Marshal(resolveRequest{Prompt: prompt, TargetTracks: targetTracks})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal intent request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create intent request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("intent request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("intent endpoint returned status %d: %s", resp.StatusCode, string(raw))
	}

	var parsed model.Intent
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode intent response: %w", err)
	}
	if parsed.Prompt == "" {
		parsed.Prompt = prompt
	}

	logger.Info("[Intent] Prompt resolved",
		logger.String("mode", parsed.Mode),
		logger.Int("tracksLLM", len(parsed.TracksLLM)),
		logger.Int("priorityArtists", len(parsed.PriorityArtists)),
		logger.Duration("took", time.Since(started)))

	return &parsed, nil
}
