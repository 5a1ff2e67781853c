// Package completion talks to OpenAI-compatible chat completion
// endpoints.
package completion

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

const providerName = "completion"

// Client issues chat completion requests through the shared rate
// limiter, retrying transient failures per the backoff policy.
type Client struct {
	apiKey      string
	model       string
	baseURL     string
	temperature float64
	http        *http.Client
	limiter     *ratelimit.Limiter
	retry       backoff.Policy
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTemperature sets the sampling temperature. Classification and
// answer generation both run at 0 so outputs stay reproducible.
func WithTemperature(t float64) Option {
	return func(c *Client) { c.temperature = t }
}

// New creates a client for an OpenAI-compatible chat endpoint. The API
// key is read from the named environment variable; an empty baseURL
// targets api.openai.com.
func New(apiKeyEnv, model, baseURL string, limiter *ratelimit.Limiter, retry backoff.Policy, opts ...Option) (*Client, error) {
	apiKey := os.Getenv(apiKeyEnv)
	if apiKey == "" {
		return nil, fmt.Errorf("API key not found in environment variable: %s", apiKeyEnv)
	}
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	if model == "" {
		model = "gpt-4o-mini"
	}

	c := &Client{
		apiKey:  apiKey,
		model:   model,
		baseURL: baseURL,
		http:    &http.Client{Timeout: 120 * time.Second},
		limiter: limiter,
		retry:   retry,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Complete sends one system+user exchange and returns the assistant
// text.
func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	var out string
	err := c.retry.Retry(ctx, func() error {
		var err error
		out, err = c.complete(ctx, system, user)
		return err
	})
	return out, err
}

func (c *Client) complete(ctx context.Context, system, user string) (string, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", err
		}
	}

	messages := make([]chatMessage, 0, 2)
	if system != "" {
		messages = append(messages, chatMessage{Role: "system", Content: system})
	}
	messages = append(messages, chatMessage{Role: "user", Content: user})

	payload, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: c.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", domain.TransientProviderError(providerName, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", domain.TransientProviderError(providerName, fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		return "", statusError(resp.StatusCode, body)
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", domain.PermanentProviderError(providerName,
			fmt.Errorf("parse response (%s): %w", preview(body), err))
	}
	if parsed.Error != nil {
		return "", domain.PermanentProviderError(providerName,
			fmt.Errorf("api error: %s", parsed.Error.Message))
	}
	if len(parsed.Choices) == 0 {
		return "", domain.PermanentProviderError(providerName,
			fmt.Errorf("no response choices returned"))
	}
	return parsed.Choices[0].Message.Content, nil
}

// ModelName reports the configured model identifier.
func (c *Client) ModelName() string { return c.model }

func statusError(status int, body []byte) error {
	err := fmt.Errorf("api returned status %d: %s", status, preview(body))
	if status == http.StatusTooManyRequests || status >= 500 {
		return domain.TransientProviderError(providerName, err)
	}
	return domain.PermanentProviderError(providerName, err)
}

func preview(body []byte) string {
	const limit = 200
	if len(body) > limit {
		return string(body[:limit])
	}
	return string(body)
}
