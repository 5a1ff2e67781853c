// Package embedding talks to OpenAI-compatible embedding endpoints.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"copilot/internal/backoff"
	"copilot/internal/domain"
	"copilot/internal/ratelimit"
)

const (
	providerName     = "embedding"
	DefaultBatchSize = 100
)

// Client embeds text batches through an OpenAI-compatible /embeddings
// endpoint. Calls pass through the shared rate limiter before going out
// and transient failures are retried per the backoff policy.
type Client struct {
	apiKey    string
	model     string
	baseURL   string
	dimension int
	batchSize int
	http      *http.Client
	limiter   *ratelimit.Limiter
	retry     backoff.Policy
}

type embeddingRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

type embeddingResponse struct {
	Data  []embeddingData `json:"data"`
	Error *apiError       `json:"error,omitempty"`
}

type embeddingData struct {
	Embedding []float32 `json:"embedding"`
	Index     int       `json:"index"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithBatchSize sets how many texts go into one request.
func WithBatchSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.batchSize = n
		}
	}
}

// WithDimension overrides the vector dimension reported for the model.
func WithDimension(d int) Option {
	return func(c *Client) {
		if d > 0 {
			c.dimension = d
		}
	}
}

// New creates a client for an OpenAI-compatible endpoint. The API key is
// read from the named environment variable; an empty baseURL targets
// api.openai.com.
func New(apiKeyEnv, model, baseURL string, limiter *ratelimit.Limiter, retry backoff.Policy, opts ...Option) (*Client, error) {
	apiKey := os.Getenv(apiKeyEnv)
	if apiKey == "" {
		return nil, fmt.Errorf("API key not found in environment variable: %s", apiKeyEnv)
	}
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}

	c := &Client{
		apiKey:    apiKey,
		model:     model,
		baseURL:   baseURL,
		dimension: modelDimension(model),
		batchSize: DefaultBatchSize,
		http:      &http.Client{Timeout: 60 * time.Second},
		limiter:   limiter,
		retry:     retry,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func modelDimension(model string) int {
	switch model {
	case "text-embedding-3-large":
		return 3072
	case "text-embedding-3-small", "text-embedding-ada-002":
		return 1536
	case "nomic-embed-text":
		return 768
	case "all-minilm":
		return 384
	}
	return 1536
}

// Embed returns one vector per input text, in input order. Inputs larger
// than the batch size are sent as multiple requests.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	all := make([][]float32, 0, len(texts))
	for i := 0; i < len(texts); i += c.batchSize {
		end := i + c.batchSize
		if end > len(texts) {
			end = len(texts)
		}

		var vectors [][]float32
		err := c.retry.Retry(ctx, func() error {
			var err error
			vectors, err = c.embedBatch(ctx, texts[i:end])
			return err
		})
		if err != nil {
			return nil, err
		}
		all = append(all, vectors...)
	}
	return all, nil
}

func (c *Client) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	payload, err := json.Marshal(embeddingRequest{Input: texts, Model: c.model})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embeddings", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		// Network failures and client timeouts may clear on retry.
		return nil, domain.TransientProviderError(providerName, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.TransientProviderError(providerName, fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(providerName, resp.StatusCode, body)
	}

	var parsed embeddingResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, domain.PermanentProviderError(providerName,
			fmt.Errorf("parse response (%s): %w", preview(body), err))
	}
	if parsed.Error != nil {
		return nil, domain.PermanentProviderError(providerName,
			fmt.Errorf("api error: %s", parsed.Error.Message))
	}
	if len(parsed.Data) != len(texts) {
		return nil, domain.PermanentProviderError(providerName,
			fmt.Errorf("got %d embeddings for %d inputs", len(parsed.Data), len(texts)))
	}

	vectors := make([][]float32, len(texts))
	for _, d := range parsed.Data {
		if d.Index < 0 || d.Index >= len(vectors) {
			return nil, domain.PermanentProviderError(providerName,
				fmt.Errorf("embedding index %d out of range", d.Index))
		}
		vectors[d.Index] = d.Embedding
	}
	return vectors, nil
}

// Dimension reports the vector size the configured model produces.
func (c *Client) Dimension() int { return c.dimension }

// ModelName reports the configured model identifier.
func (c *Client) ModelName() string { return c.model }

// statusError maps an HTTP status to the provider error taxonomy:
// rate limits and server errors are transient, everything else (bad
// request, auth) is permanent.
func statusError(provider string, status int, body []byte) error {
	err := fmt.Errorf("api returned status %d: %s", status, preview(body))
	if status == http.StatusTooManyRequests || status >= 500 {
		return domain.TransientProviderError(provider, err)
	}
	return domain.PermanentProviderError(provider, err)
}

func preview(body []byte) string {
	const limit = 200
	if len(body) > limit {
		return string(body[:limit])
	}
	return string(body)
}
