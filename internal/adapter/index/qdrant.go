package index

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"copilot/internal/domain"
)

// QdrantIndex is a minimal REST client to Qdrant assuming cosine
// distance. Point IDs are UUIDs derived from the chunk key, which makes
// upserts idempotent on the server side.
type QdrantIndex struct {
	url    string
	apiKey string
	client *http.Client
}

// QdrantConfig configures the Qdrant client. APIKey may be empty for
// unauthenticated local instances.
type QdrantConfig struct {
	URL     string
	APIKey  string
	Timeout time.Duration
}

// NewQdrantIndex creates a Qdrant-backed vector index.
func NewQdrantIndex(cfg QdrantConfig) *QdrantIndex {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &QdrantIndex{
		url:    cfg.URL,
		apiKey: cfg.APIKey,
		client: &http.Client{Timeout: timeout},
	}
}

// EnsureCollection creates the collection if missing. Qdrant answers
// 200 when the collection already exists with the same schema.
func (s *QdrantIndex) EnsureCollection(ctx context.Context, collection string, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("invalid dimension %d", dimension)
	}
	body := map[string]any{
		"vectors": map[string]any{
			"size":     dimension,
			"distance": "Cosine",
		},
	}
	return s.putJSON(ctx, fmt.Sprintf("%s/collections/%s", s.url, collection), body)
}

// Upsert writes chunk points keyed by a UUID derived from the chunk
// key, so the same chunk always lands on the same point.
func (s *QdrantIndex) Upsert(ctx context.Context, collection string, chunks []domain.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("%w: %d chunks with %d vectors", domain.ErrDataIntegrity, len(chunks), len(vectors))
	}
	if len(chunks) == 0 {
		return nil
	}

	points := make([]map[string]any, len(chunks))
	for i, chunk := range chunks {
		points[i] = map[string]any{
			"id":     uuid.NewSHA1(uuid.NameSpaceOID, []byte(chunk.Key())).String(),
			"vector": vectors[i],
			"payload": map[string]any{
				"source_id": chunk.SourceID,
				"url":       chunk.URL,
				"title":     chunk.Title,
				"start":     chunk.Start,
				"end":       chunk.End,
				"text":      chunk.Text,
			},
		}
	}
	body := map[string]any{"points": points}
	return s.putJSON(ctx, fmt.Sprintf("%s/collections/%s/points?wait=true", s.url, collection), body)
}

// Search returns the k best passages by cosine score. Qdrant already
// sorts by score; ties are re-broken locally for stable output.
func (s *QdrantIndex) Search(ctx context.Context, collection string, vector []float32, k int) ([]domain.RankedPassage, error) {
	if k <= 0 {
		return nil, nil
	}
	req := map[string]any{
		"vector":       vector,
		"limit":        k,
		"with_payload": true,
	}
	var resp struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	if err := s.postJSON(ctx, fmt.Sprintf("%s/collections/%s/points/search", s.url, collection), req, &resp); err != nil {
		return nil, err
	}

	passages := make([]domain.RankedPassage, 0, len(resp.Result))
	for _, r := range resp.Result {
		p := domain.RankedPassage{Score: r.Score, Collection: collection}
		if v, ok := r.Payload["source_id"].(string); ok {
			p.SourceID = v
		}
		if v, ok := r.Payload["url"].(string); ok {
			p.URL = v
		}
		if v, ok := r.Payload["title"].(string); ok {
			p.Title = v
		}
		if v, ok := r.Payload["start"].(float64); ok {
			p.Start = int(v)
		}
		if v, ok := r.Payload["end"].(float64); ok {
			p.End = int(v)
		}
		if v, ok := r.Payload["text"].(string); ok {
			p.Snippet = v
		}
		passages = append(passages, p)
	}
	sortPassages(passages)
	return passages, nil
}

// Count returns the number of points in a collection.
func (s *QdrantIndex) Count(ctx context.Context, collection string) (int, error) {
	var resp struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	err := s.postJSON(ctx, fmt.Sprintf("%s/collections/%s/points/count", s.url, collection),
		map[string]any{"exact": true}, &resp)
	if err != nil {
		return 0, err
	}
	return resp.Result.Count, nil
}

func (s *QdrantIndex) putJSON(ctx context.Context, url string, body any) error {
	return s.doJSON(ctx, http.MethodPut, url, body, nil)
}

func (s *QdrantIndex) postJSON(ctx context.Context, url string, body any, out any) error {
	return s.doJSON(ctx, http.MethodPost, url, body, out)
}

func (s *QdrantIndex) doJSON(ctx context.Context, method, url string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return domain.TransientProviderError("qdrant", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		err := fmt.Errorf("qdrant %s %s: %s: %s", method, url, resp.Status, payload)
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return domain.TransientProviderError("qdrant", err)
		}
		return domain.PermanentProviderError("qdrant", err)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
