// Package config loads and validates engine configuration from file and
// environment.
package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

const (
	// DefaultFullCopyEvery is the default version-chain interval at which a
	// full copy is written regardless of preceding deltas.
	DefaultFullCopyEvery = 10

	// DefaultMaxBatchSize is the default upper bound on batch operations.
	DefaultMaxBatchSize = 1000

	// DefaultLiveBufferSize is the default per-subscriber event buffer.
	DefaultLiveBufferSize = 100

	// DefaultFuzzyThreshold is the minimum similarity for fuzzy matches.
	DefaultFuzzyThreshold = 0.3

	// DefaultStorageTimeoutMS is the default storage operation deadline.
	DefaultStorageTimeoutMS = 30000
)

// Config holds all configuration for locai.
type Config struct {
	Neo4j        Neo4jConfig        `mapstructure:"neo4j"`
	Embedding    EmbeddingConfig    `mapstructure:"embedding"`
	Search       SearchConfig       `mapstructure:"search"`
	Versioning   VersioningConfig   `mapstructure:"versioning"`
	Batch        BatchConfig        `mapstructure:"batch"`
	LiveQuery    LiveQueryConfig    `mapstructure:"live_query"`
	Relationship RelationshipConfig `mapstructure:"relationship"`
	Claude       ClaudeConfig       `mapstructure:"claude"`
	Logging      LoggingConfig      `mapstructure:"logging"`
	API          APIConfig          `mapstructure:"api"`
}

// Neo4jConfig holds graph backend connection settings.
type Neo4jConfig struct {
	URI      string `mapstructure:"uri"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
}

// EmbeddingConfig controls the engine's expected vector dimension.
// ExpectedDimension 0 means "auto": inferred from the first embedded memory.
type EmbeddingConfig struct {
	ExpectedDimension int `mapstructure:"expected_dimension"`
}

// ScoringConfig holds the hybrid scoring weights and boost factors.
type ScoringConfig struct {
	BM25Weight    float64 `mapstructure:"bm25_weight"`
	VectorWeight  float64 `mapstructure:"vector_weight"`
	RecencyBoost  float64 `mapstructure:"recency_boost"`
	AccessBoost   float64 `mapstructure:"access_boost"`
	PriorityBoost float64 `mapstructure:"priority_boost"`
	DecayFunction string  `mapstructure:"decay_function"`
	DecayRate     float64 `mapstructure:"decay_rate"`
}

// FuzzyConfig holds fuzzy-match settings.
type FuzzyConfig struct {
	DefaultThreshold float64 `mapstructure:"default_threshold"`
}

// SearchConfig groups scoring and fuzzy settings.
type SearchConfig struct {
	Scoring ScoringConfig `mapstructure:"scoring"`
	Fuzzy   FuzzyConfig   `mapstructure:"fuzzy"`
}

// CompressionConfig controls version payload compression.
type CompressionConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Codec   string `mapstructure:"codec"`
}

// VersioningConfig controls the version chain discipline.
type VersioningConfig struct {
	Enabled       bool              `mapstructure:"enabled"`
	FullCopyEvery int               `mapstructure:"full_copy_every"`
	Compression   CompressionConfig `mapstructure:"compression"`
}

// BatchConfig bounds the batch executor.
type BatchConfig struct {
	MaxBatchSize     int `mapstructure:"max_batch_size"`
	DefaultTimeoutMS int `mapstructure:"default_timeout_ms"`
}

// LiveQueryConfig bounds the change dispatcher.
type LiveQueryConfig struct {
	BufferSize int    `mapstructure:"buffer_size"`
	NodeID     string `mapstructure:"node_id"`
}

// RelationshipConfig sets the default constraint-enforcement mode.
type RelationshipConfig struct {
	EnforcementDefault bool `mapstructure:"enforcement_default"`
}

// ClaudeConfig holds optional Anthropic API settings for the search
// re-ranker. An empty APIKey disables the re-ranker.
type ClaudeConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

// String returns a safe representation with the API key masked.
func (c ClaudeConfig) String() string {
	return fmt.Sprintf("ClaudeConfig{APIKey:%s, Model:%s}", maskAPIKey(c.APIKey), c.Model)
}

func maskAPIKey(key string) string {
	const visible = 4
	if len(key) <= visible*2 {
		return "***"
	}
	return key[:visible] + "****" + key[len(key)-visible:]
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// APIConfig holds HTTP API server settings.
type APIConfig struct {
	ListenAddr string `mapstructure:"listen_addr"`
	AuthToken  string `mapstructure:"auth_token"`
}

// Load reads configuration from file and environment variables.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("neo4j.uri", "bolt://localhost:7687")
	v.SetDefault("neo4j.username", "neo4j")
	v.SetDefault("neo4j.password", "")
	v.SetDefault("neo4j.database", "neo4j")

	v.SetDefault("embedding.expected_dimension", 0) // auto

	v.SetDefault("search.scoring.bm25_weight", 0.6)
	v.SetDefault("search.scoring.vector_weight", 0.4)
	v.SetDefault("search.scoring.recency_boost", 0.1)
	v.SetDefault("search.scoring.access_boost", 0.05)
	v.SetDefault("search.scoring.priority_boost", 0.05)
	v.SetDefault("search.scoring.decay_function", "exponential")
	v.SetDefault("search.scoring.decay_rate", 0.01)
	v.SetDefault("search.fuzzy.default_threshold", DefaultFuzzyThreshold)

	v.SetDefault("versioning.enabled", true)
	v.SetDefault("versioning.full_copy_every", DefaultFullCopyEvery)
	v.SetDefault("versioning.compression.enabled", false)
	v.SetDefault("versioning.compression.codec", "gzip")

	v.SetDefault("batch.max_batch_size", DefaultMaxBatchSize)
	v.SetDefault("batch.default_timeout_ms", DefaultStorageTimeoutMS)

	v.SetDefault("live_query.buffer_size", DefaultLiveBufferSize)
	v.SetDefault("live_query.node_id", "")

	v.SetDefault("relationship.enforcement_default", true)

	v.SetDefault("claude.model", "claude-haiku-4-5-20251001")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")

	v.SetDefault("api.listen_addr", ":8080")
	v.SetDefault("api.auth_token", "")

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(filepath.Join(homeDir(), ".locai"))
	v.AddConfigPath(".")

	v.SetEnvPrefix("LOCAI")
	v.AutomaticEnv()

	_ = v.BindEnv("claude.api_key", "ANTHROPIC_API_KEY")
	_ = v.BindEnv("neo4j.uri", "LOCAI_NEO4J_URI")
	_ = v.BindEnv("neo4j.username", "LOCAI_NEO4J_USERNAME")
	_ = v.BindEnv("neo4j.password", "LOCAI_NEO4J_PASSWORD")
	_ = v.BindEnv("api.listen_addr", "LOCAI_API_LISTEN_ADDR")
	_ = v.BindEnv("api.auth_token", "LOCAI_API_AUTH_TOKEN")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		// Config file not found is OK — use defaults + env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	cfg.Normalize()

	return &cfg, nil
}

// Validate checks that configuration fields are set and consistent.
func (c *Config) Validate() error {
	if c.Neo4j.URI == "" {
		return fmt.Errorf("neo4j.uri must not be empty")
	}
	if c.Embedding.ExpectedDimension < 0 {
		return fmt.Errorf("embedding.expected_dimension must be >= 0")
	}
	if c.Search.Scoring.BM25Weight < 0 || c.Search.Scoring.VectorWeight < 0 {
		return fmt.Errorf("search.scoring weights must be >= 0")
	}
	if c.Search.Scoring.BM25Weight+c.Search.Scoring.VectorWeight == 0 {
		return fmt.Errorf("search.scoring.bm25_weight and vector_weight must not both be 0")
	}
	switch c.Search.Scoring.DecayFunction {
	case "none", "linear", "exponential", "logarithmic":
	default:
		return fmt.Errorf("search.scoring.decay_function %q is not one of none, linear, exponential, logarithmic", c.Search.Scoring.DecayFunction)
	}
	if c.Search.Fuzzy.DefaultThreshold < 0 || c.Search.Fuzzy.DefaultThreshold > 1 {
		return fmt.Errorf("search.fuzzy.default_threshold must be between 0 and 1")
	}
	if c.Versioning.FullCopyEvery <= 0 {
		return fmt.Errorf("versioning.full_copy_every must be greater than 0")
	}
	if c.Versioning.Compression.Enabled {
		switch c.Versioning.Compression.Codec {
		case "identity", "gzip":
		default:
			return fmt.Errorf("versioning.compression.codec %q is not one of identity, gzip", c.Versioning.Compression.Codec)
		}
	}
	if c.Batch.MaxBatchSize <= 0 {
		return fmt.Errorf("batch.max_batch_size must be greater than 0")
	}
	if c.Batch.DefaultTimeoutMS <= 0 {
		return fmt.Errorf("batch.default_timeout_ms must be greater than 0")
	}
	if c.LiveQuery.BufferSize <= 0 {
		return fmt.Errorf("live_query.buffer_size must be greater than 0")
	}
	return nil
}

// Normalize rescales the hybrid weights so bm25_weight + vector_weight = 1.
func (c *Config) Normalize() {
	sum := c.Search.Scoring.BM25Weight + c.Search.Scoring.VectorWeight
	if sum > 0 && math.Abs(sum-1.0) > 1e-9 {
		c.Search.Scoring.BM25Weight /= sum
		c.Search.Scoring.VectorWeight /= sum
	}
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
