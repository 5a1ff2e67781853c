package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"copilot/config"
	"copilot/internal/adapter/completion"
	"copilot/internal/adapter/embedding"
	"copilot/internal/adapter/index"
	"copilot/internal/backoff"
	"copilot/internal/domain"
	"copilot/internal/port"
	"copilot/internal/ratelimit"
	"copilot/internal/usecase"
)

// providerBudget builds the retry policy and rate limiter shared by all
// provider clients in one command invocation.
func providerBudget(cfg *config.Config) (backoff.Policy, *ratelimit.Limiter) {
	retry := backoff.New(cfg.Pipeline.RetryCeiling, time.Duration(cfg.Pipeline.BaseDelayMS)*time.Millisecond)
	limiter := ratelimit.New(cfg.Pipeline.RateLimitPerSec, 1)
	return retry, limiter
}

func buildEmbedder(cfg *config.Config, retry backoff.Policy, limiter *ratelimit.Limiter) (port.Embedder, error) {
	switch cfg.Embedding.Provider {
	case "openai", "":
		var opts []embedding.Option
		if cfg.Embedding.BatchSize > 0 {
			opts = append(opts, embedding.WithBatchSize(cfg.Embedding.BatchSize))
		}
		if cfg.Embedding.Dimension > 0 {
			opts = append(opts, embedding.WithDimension(cfg.Embedding.Dimension))
		}
		return embedding.New(cfg.Embedding.APIKeyEnv, cfg.Embedding.Model, cfg.Embedding.BaseURL, limiter, retry, opts...)
	case "mock":
		return embedding.NewMock(cfg.Embedding.Dimension), nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Embedding.Provider)
	}
}

func buildCompleter(cfg *config.Config, retry backoff.Policy, limiter *ratelimit.Limiter) (port.Completer, error) {
	switch cfg.Completion.Provider {
	case "openai", "":
		return completion.New(cfg.Completion.APIKeyEnv, cfg.Completion.Model, cfg.Completion.BaseURL, limiter, retry)
	case "mock":
		return completion.NewMock(), nil
	default:
		return nil, fmt.Errorf("unsupported completion provider: %s", cfg.Completion.Provider)
	}
}

// buildIndex opens the configured vector index. The returned closer is a
// no-op for backends without local state.
func buildIndex(cfg *config.Config, dir string) (port.VectorIndex, func() error, error) {
	switch cfg.Index.Provider {
	case "bolt", "":
		path := cfg.Index.Path
		if !filepath.IsAbs(path) {
			path = filepath.Join(dir, path)
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		idx, err := index.NewBoltIndex(path)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open index: %w", err)
		}
		return idx, idx.Close, nil
	case "qdrant":
		idx := index.NewQdrantIndex(index.QdrantConfig{
			URL:    cfg.Index.URL,
			APIKey: os.Getenv(cfg.Index.APIKeyEnv),
		})
		return idx, func() error { return nil }, nil
	default:
		return nil, nil, fmt.Errorf("unsupported index provider: %s", cfg.Index.Provider)
	}
}

// buildPipeline wires the full query pipeline against the given index.
func buildPipeline(cfg *config.Config, idx port.VectorIndex) (*usecase.Pipeline, error) {
	retry, limiter := providerBudget(cfg)

	embedder, err := buildEmbedder(cfg, retry, limiter)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	completer, err := buildCompleter(cfg, retry, limiter)
	if err != nil {
		return nil, fmt.Errorf("failed to create completion client: %w", err)
	}

	collections := make([]usecase.Collection, len(cfg.Retrieve.Collections))
	for i, c := range cfg.Retrieve.Collections {
		collections[i] = usecase.Collection{Name: c.Name, Limit: c.Limit}
	}

	classifier := usecase.NewClassifier(completer, vocabulary(cfg))
	retriever := usecase.NewRetriever(embedder, idx, collections, cfg.Retrieve.MinScore, cfg.Retrieve.ContextCharBudget)
	responder := usecase.NewResponder(completer)

	delay := time.Duration(cfg.Pipeline.InterCallDelayMS) * time.Millisecond
	return usecase.NewPipeline(classifier, retriever, responder, backoff.RealClock(), delay, logger), nil
}

// vocabulary maps the configured label sets onto the domain vocabulary,
// falling back to the built-in sets when a section is empty.
func vocabulary(cfg *config.Config) domain.Vocabulary {
	v := domain.DefaultVocabulary()
	if len(cfg.Vocabulary.Topics) > 0 {
		v.Topics = cfg.Vocabulary.Topics
	}
	if len(cfg.Vocabulary.Sentiments) > 0 {
		v.Sentiments = cfg.Vocabulary.Sentiments
	}
	if len(cfg.Vocabulary.Priorities) > 0 {
		v.Priorities = cfg.Vocabulary.Priorities
	}
	return v
}
