// Package embedding turns text into fixed-dimension vectors via an external
// provider, with per-attempt timeouts and retry on transient failures.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/arkologystudio/lumen-search/pkg/observability"
	"github.com/arkologystudio/lumen-search/pkg/retry"
)

const (
	defaultBaseURL        = "https://api.openai.com/v1"
	defaultRequestTimeout = 30 * time.Second
	defaultMaxRetries     = 3
)

// Embedder generates one embedding per call.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
}

// Client is an HTTP embedding client speaking the OpenAI embeddings wire
// format. One long-lived client is constructed at startup and shared.
type Client struct {
	apiKey     string
	model      string
	baseURL    string
	dimensions int
	timeout    time.Duration
	httpClient *http.Client
	policy     retry.Policy
	logger     observability.Logger
	metrics    observability.MetricsClient
}

// ClientConfig configures a Client.
type ClientConfig struct {
	APIKey     string
	Model      string
	BaseURL    string
	Dimensions int
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
	Logger     observability.Logger
	Metrics    observability.MetricsClient
}

// NewClient validates provider configuration and builds a client. Missing
// credentials or model are configuration errors and fail immediately.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if cfg.Model == "" {
		return nil, ErrMissingModel
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultRequestTimeout
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = observability.NewLogger("embedding-client")
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observability.NewNoopMetricsClient()
	}

	return &Client{
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		baseURL:    cfg.BaseURL,
		dimensions: cfg.Dimensions,
		timeout:    cfg.Timeout,
		httpClient: &http.Client{},
		policy: retry.NewExponentialBackoff(retry.Config{
			InitialInterval: cfg.RetryDelay,
			MaxRetries:      cfg.MaxRetries,
			IsRetryable:     IsRetryable,
		}),
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
	}, nil
}

// Dimensions returns the configured embedding dimension, 0 if unchecked.
func (c *Client) Dimensions() int { return c.dimensions }

type embeddingRequest struct {
	Input string `json:"input"`
	Model string `json:"model"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding json.RawMessage `json:"embedding"`
	} `json:"data"`
}

// Embed generates an embedding for text. Transient provider failures
// (429, 500, 503) are retried with exponential backoff starting at 1s; the
// timeout applies per attempt.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	var vector []float32

	start := time.Now()
	err := c.policy.Execute(ctx, func(ctx context.Context) error {
		v, attemptErr := c.embedOnce(ctx, text)
		if attemptErr != nil {
			if IsRetryable(attemptErr) {
				c.metrics.IncrementCounter("embedding_retries_total", 1, map[string]string{"model": c.model})
				c.logger.Warn("transient embedding failure, retrying", map[string]interface{}{
					"model": c.model,
					"error": attemptErr.Error(),
				})
			}
			return attemptErr
		}
		vector = v
		return nil
	})
	c.metrics.RecordDuration("embedding_request_duration_seconds", time.Since(start),
		map[string]string{"model": c.model})
	if err != nil {
		return nil, err
	}
	return vector, nil
}

func (c *Client) embedOnce(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	jsonData, err := json.Marshal(embeddingRequest{Input: text, Model: c.model})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embeddings", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &ProviderError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var parsed embeddingResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &FormatError{Reason: fmt.Sprintf("response is not valid JSON: %v", err)}
	}
	if len(parsed.Data) == 0 {
		return nil, &FormatError{Reason: "no embedding data in response"}
	}

	vector, err := normalizeVector(parsed.Data[0].Embedding)
	if err != nil {
		return nil, err
	}

	if c.dimensions > 0 && len(vector) != c.dimensions {
		return nil, &FormatError{Reason: fmt.Sprintf("expected %d dimensions, got %d", c.dimensions, len(vector))}
	}

	return vector, nil
}

// normalizeVector accepts either a flat numeric array or a singleton batch
// (array of arrays, first row used) and returns a non-empty flat vector.
func normalizeVector(raw json.RawMessage) ([]float32, error) {
	var flat []float32
	if err := json.Unmarshal(raw, &flat); err == nil {
		if len(flat) == 0 {
			return nil, &FormatError{Reason: "embedding vector is empty"}
		}
		return flat, nil
	}

	var batch []json.RawMessage
	if err := json.Unmarshal(raw, &batch); err != nil || len(batch) == 0 {
		return nil, &FormatError{Reason: "embedding is neither a numeric array nor a batch"}
	}
	if err := json.Unmarshal(batch[0], &flat); err != nil {
		return nil, &FormatError{Reason: "first batch row is not a numeric array"}
	}
	if len(flat) == 0 {
		return nil, &FormatError{Reason: "embedding vector is empty"}
	}
	return flat, nil
}
