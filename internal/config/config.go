// Package config loads and validates the Scout configuration.
//
// Precedence: built-in defaults, overridden by an optional YAML file
// (scout.yaml at the repository root).
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config represents the complete Scout configuration.
type Config struct {
	Version   int             `yaml:"version"`
	Search    SearchConfig    `yaml:"search"`
	Chunking  ChunkingConfig  `yaml:"chunking"`
	Lexical   LexicalConfig   `yaml:"lexical"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Cache     CacheConfig     `yaml:"cache"`
	LogLevel  string          `yaml:"log_level"`
}

// SearchConfig configures relevance fusion.
// The weights are tunable, not hardcoded; they need not sum to one because
// fused scores are normalized after weighting.
type SearchConfig struct {
	// LexicalWeight is the weight for token-overlap matching.
	LexicalWeight float64 `yaml:"lexical_weight"`

	// FuzzyWeight is the weight for approximate string similarity.
	FuzzyWeight float64 `yaml:"fuzzy_weight"`

	// EmbeddingWeight is the weight for vector similarity.
	EmbeddingWeight float64 `yaml:"embedding_weight"`

	// GraphBoostFactor multiplies scores of candidates whose file is
	// graph-adjacent to an already-top-ranked file. Must be >= 1.0.
	GraphBoostFactor float64 `yaml:"graph_boost_factor"`

	// MaxResults is the default result count per query.
	MaxResults int `yaml:"max_results"`

	// TimeoutMs is the per-query signal budget in milliseconds.
	// Signals that miss the budget are dropped and the ranking is
	// annotated as partial.
	TimeoutMs int `yaml:"timeout_ms"`
}

// ChunkingConfig configures the chunker.
type ChunkingConfig struct {
	// MaxChunkLines splits declarations larger than this at nested boundaries.
	MaxChunkLines int `yaml:"max_chunk_lines"`
	// MinChunkLines merges declarations smaller than this with adjacent siblings.
	MinChunkLines int `yaml:"min_chunk_lines"`
	// WindowLines is the fallback sliding-window height.
	WindowLines int `yaml:"window_lines"`
	// WindowOverlap is the fallback window overlap in lines.
	WindowOverlap int `yaml:"window_overlap"`
}

// LexicalConfig configures the inverted index.
type LexicalConfig struct {
	// MaxPostingsPerToken bounds postings list growth for pathological
	// tokens. Exceeding entries evict least-recently-indexed first.
	MaxPostingsPerToken int `yaml:"max_postings_per_token"`
	// StopWords are removed during tokenization.
	StopWords []string `yaml:"stop_words"`
}

// EmbeddingConfig configures the embedding provider boundary.
type EmbeddingConfig struct {
	// Provider selects the backend ("static" is the built-in offline provider).
	Provider string `yaml:"provider"`
	// Dimensions is the expected vector dimension.
	Dimensions int `yaml:"dimensions"`
	// BatchSize is texts per provider call.
	BatchSize int `yaml:"batch_size"`
	// MaxRetries bounds retry attempts per chunk before it is marked unembedded.
	MaxRetries int `yaml:"max_retries"`
}

// CacheConfig configures the persistent embedding cache.
type CacheConfig struct {
	// Path is the bbolt file location. Empty disables persistence.
	Path string `yaml:"path"`
	// MemoryEntries sizes the in-memory LRU in front of the bbolt store.
	MemoryEntries int `yaml:"memory_entries"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Version: 1,
		Search: SearchConfig{
			LexicalWeight:    0.35,
			FuzzyWeight:      0.15,
			EmbeddingWeight:  0.50,
			GraphBoostFactor: 1.15,
			MaxResults:       10,
			TimeoutMs:        5000,
		},
		Chunking: ChunkingConfig{
			MaxChunkLines: 120,
			MinChunkLines: 4,
			WindowLines:   60,
			WindowOverlap: 10,
		},
		Lexical: LexicalConfig{
			MaxPostingsPerToken: 5000,
			StopWords:           nil, // lexical package supplies code stop words
		},
		Embedding: EmbeddingConfig{
			Provider:   "static",
			Dimensions: 256,
			BatchSize:  32,
			MaxRetries: 3,
		},
		Cache: CacheConfig{
			MemoryEntries: 4096,
		},
		LogLevel: "info",
	}
}

// Load reads configuration from a YAML file, applying it over defaults.
// A missing file is not an error; defaults are returned.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	if c.Search.LexicalWeight < 0 || c.Search.FuzzyWeight < 0 || c.Search.EmbeddingWeight < 0 {
		return fmt.Errorf("search weights must be non-negative")
	}
	if c.Search.LexicalWeight+c.Search.FuzzyWeight+c.Search.EmbeddingWeight == 0 {
		return fmt.Errorf("at least one search weight must be positive")
	}
	if c.Search.GraphBoostFactor < 1.0 {
		return fmt.Errorf("graph_boost_factor must be >= 1.0, got %v", c.Search.GraphBoostFactor)
	}
	if c.Search.MaxResults <= 0 {
		return fmt.Errorf("max_results must be positive")
	}
	if c.Chunking.MaxChunkLines <= c.Chunking.MinChunkLines {
		return fmt.Errorf("max_chunk_lines must exceed min_chunk_lines")
	}
	if c.Chunking.WindowOverlap >= c.Chunking.WindowLines {
		return fmt.Errorf("window_overlap must be smaller than window_lines")
	}
	if c.Lexical.MaxPostingsPerToken <= 0 {
		return fmt.Errorf("max_postings_per_token must be positive")
	}
	if c.Embedding.Dimensions <= 0 {
		return fmt.Errorf("embedding dimensions must be positive")
	}
	return nil
}
