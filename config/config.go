package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the copilot.
type Config struct {
	Chunking   ChunkingConfig   `yaml:"chunking"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Completion CompletionConfig `yaml:"completion"`
	Index      IndexConfig      `yaml:"index"`
	Retrieve   RetrieveConfig   `yaml:"retrieve"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
	Vocabulary VocabularyConfig `yaml:"vocabulary"`
	Ingest     IngestConfig     `yaml:"ingest"`
	Tickets    TicketsConfig    `yaml:"tickets"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ChunkingConfig holds semantic segmentation parameters.
type ChunkingConfig struct {
	SimilarityThreshold float64 `yaml:"similarity_threshold"` // boundary when adjacent similarity drops below this
	MinChunkSize        int     `yaml:"min_chunk_size"`
	MaxChunkSize        int     `yaml:"max_chunk_size"`
}

// EmbeddingConfig holds embedding provider configuration.
type EmbeddingConfig struct {
	Provider  string `yaml:"provider"` // "openai", "mock"
	Model     string `yaml:"model"`
	APIKeyEnv string `yaml:"api_key_env"`
	BaseURL   string `yaml:"base_url"`
	Dimension int    `yaml:"dimension"`
	BatchSize int    `yaml:"batch_size"`
}

// CompletionConfig holds chat-completion provider configuration.
type CompletionConfig struct {
	Provider  string `yaml:"provider"` // "openai", "mock"
	Model     string `yaml:"model"`
	APIKeyEnv string `yaml:"api_key_env"`
	BaseURL   string `yaml:"base_url"`
}

// IndexConfig selects and configures the vector index backend.
type IndexConfig struct {
	Provider  string `yaml:"provider"` // "bolt", "qdrant"
	URL       string `yaml:"url"`
	APIKeyEnv string `yaml:"api_key_env"`
	Path      string `yaml:"path"`
}

// CollectionConfig names one searchable collection and its result limit.
type CollectionConfig struct {
	Name  string `yaml:"name"`
	Limit int    `yaml:"limit"`
}

// RetrieveConfig holds retrieval parameters.
type RetrieveConfig struct {
	Collections       []CollectionConfig `yaml:"collections"`
	MinScore          float64            `yaml:"min_score"`
	ContextCharBudget int                `yaml:"context_char_budget"`
}

// PipelineConfig holds orchestration and provider-budget parameters.
type PipelineConfig struct {
	InterCallDelayMS  int      `yaml:"inter_call_delay_ms"`
	RetryCeiling      int      `yaml:"retry_ceiling"`
	BaseDelayMS       int      `yaml:"base_delay_ms"`
	RateLimitPerSec   float64  `yaml:"rate_limit_per_sec"`
	Concurrency       int      `yaml:"concurrency"`
	RAGEligibleTopics []string `yaml:"rag_eligible_topics"`
}

// VocabularyConfig holds the closed classification label sets.
type VocabularyConfig struct {
	Topics     []string `yaml:"topics"`
	Sentiments []string `yaml:"sentiments"`
	Priorities []string `yaml:"priorities"` // highest first
}

// IngestConfig holds content source selection patterns.
type IngestConfig struct {
	Includes []string `yaml:"includes"`
	Excludes []string `yaml:"excludes"`
}

// TicketsConfig holds the ticket store location.
type TicketsConfig struct {
	Path string `yaml:"path"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Chunking: ChunkingConfig{
			SimilarityThreshold: 0.7,
			MinChunkSize:        500,
			MaxChunkSize:        2000,
		},
		Embedding: EmbeddingConfig{
			Provider:  "openai",
			Model:     "text-embedding-3-small",
			APIKeyEnv: "OPENAI_API_KEY",
			Dimension: 1536,
			BatchSize: 100,
		},
		Completion: CompletionConfig{
			Provider:  "openai",
			Model:     "gpt-4o-mini",
			APIKeyEnv: "OPENAI_API_KEY",
		},
		Index: IndexConfig{
			Provider:  "bolt",
			Path:      ".copilot/index.db",
			APIKeyEnv: "QDRANT_API_KEY",
		},
		Retrieve: RetrieveConfig{
			Collections: []CollectionConfig{
				{Name: "atlan_docs", Limit: 3},
				{Name: "atlan_developer", Limit: 2},
			},
			MinScore:          0.3,
			ContextCharBudget: 6000,
		},
		Pipeline: PipelineConfig{
			InterCallDelayMS: 500,
			RetryCeiling:     3,
			BaseDelayMS:      500,
			RateLimitPerSec:  2,
			Concurrency:      2,
			RAGEligibleTopics: []string{
				"How-to", "Product", "Best practices", "API/SDK", "SSO",
			},
		},
		Vocabulary: VocabularyConfig{
			Topics: []string{
				"How-to", "Product", "Connector", "Lineage", "API/SDK",
				"SSO", "Glossary", "Best practices", "Sensitive data", "Other",
			},
			Sentiments: []string{"Frustrated", "Curious", "Angry", "Neutral"},
			Priorities: []string{"P0", "P1", "P2"},
		},
		Ingest: IngestConfig{
			Includes: []string{"**/*.json", "**/*.md", "**/*.txt"},
			Excludes: []string{"**/node_modules/**", "**/.git/**"},
		},
		Tickets: TicketsConfig{
			Path: ".copilot/tickets.db",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a YAML file, starting from defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil // Return defaults if no config file
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromDir loads configuration from a directory (looks for
// copilot.yaml, then .copilot/config.yaml).
func LoadFromDir(dir string) (*Config, error) {
	path := filepath.Join(dir, "copilot.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	path = filepath.Join(dir, ".copilot", "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	return DefaultConfig(), nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// EnsureDataDir ensures the .copilot data directory exists.
func EnsureDataDir(dir string) error {
	return os.MkdirAll(filepath.Join(dir, ".copilot"), 0o755)
}
