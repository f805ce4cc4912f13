package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

const (
	defaultBaseURL  = "https://api.stability.ai"
	defaultEngineID = "stable-diffusion-xl-1024-v1-0"
)

var (
	ErrNoArtifacts  = errors.New("generation: response contains no artifacts")
	ErrEmptyPayload = errors.New("generation: artifact payload is empty")
)

// APIError is a non-success response from the generation engine. It carries
// the status and a body snippet so callers can surface diagnostics.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("generation: remote error %d: %s", e.StatusCode, e.Body)
}

// Client wraps the HTTP calls to the text-to-image engine.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	engineID   string
}

// NewClientFromEnv constructs a Client using environment variables.
//
// Expected variables:
//   - GENERATION_API_KEY: required API key for the engine
//   - GENERATION_BASE_URL: optional override for the API base URL
//   - GENERATION_ENGINE_ID: optional override for the engine identifier
func NewClientFromEnv() (*Client, error) {
	apiKey := strings.TrimSpace(os.Getenv("GENERATION_API_KEY"))
	if apiKey == "" {
		return nil, errors.New("generation: GENERATION_API_KEY environment variable is required")
	}

	baseURL := strings.TrimSpace(os.Getenv("GENERATION_BASE_URL"))
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		return nil, fmt.Errorf("generation: invalid base URL %q", baseURL)
	}

	engineID := strings.TrimSpace(os.Getenv("GENERATION_ENGINE_ID"))
	if engineID == "" {
		engineID = defaultEngineID
	}

	httpClient := &http.Client{Timeout: 90 * time.Second}

	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
		apiKey:     apiKey,
		engineID:   engineID,
	}, nil
}

// Generate submits the prompt with the fixed parameter set and decodes the
// engine response. The prompt may be empty; no validation happens before
// submission.
func (c *Client) Generate(ctx context.Context, prompt string) (*GenerationResult, error) {
	if c == nil {
		return nil, errors.New("generation: client is nil")
	}

	payload := generationRequest{
		TextPrompts: []textPrompt{{Text: prompt}},
		CfgScale:    cfgScale,
		Height:      imageHeight,
		Width:       imageWidth,
		Steps:       stepCount,
		Samples:     sampleCount,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("generation: encode request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1/generation/%s/text-to-image", c.baseURL, c.engineID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("generation: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	client := c.httpClient
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("generation: send request: %w", err)
	}

	responseBody, readErr := io.ReadAll(resp.Body)
	resp.Body.Close()
	if readErr != nil {
		return nil, fmt.Errorf("generation: read response: %w", readErr)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet := strings.TrimSpace(string(responseBody))
		if len(snippet) > 4096 {
			snippet = snippet[:4096]
		}
		return nil, &APIError{StatusCode: resp.StatusCode, Body: snippet}
	}

	var result GenerationResult
	if err := json.Unmarshal(responseBody, &result); err != nil {
		return nil, fmt.Errorf("generation: decode response: %w", err)
	}
	if len(result.Artifacts) == 0 {
		return nil, ErrNoArtifacts
	}
	if strings.TrimSpace(result.Artifacts[0].Base64) == "" {
		return nil, ErrEmptyPayload
	}

	return &result, nil
}
