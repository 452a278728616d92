// Package config resolves LLM and embedding provider settings from the
// environment, with an optional YAML file taking precedence when given.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Defaults applied when neither the environment nor a config file sets a value.
const (
	DefaultProvider    = "openai"
	DefaultModel       = "gpt-4"
	DefaultTemperature = 0.1
	DefaultMaxTokens   = 4000

	DefaultEmbedModel     = "text-embedding-3-small"
	DefaultEmbedBatchSize = 100

	DefaultSimilarityThreshold = 0.75
)

// LLM holds the chat-completion provider settings used for step analysis.
type LLM struct {
	Provider    string  `yaml:"provider"`
	APIKey      string  `yaml:"api_key"`
	Model       string  `yaml:"model"`
	BaseURL     string  `yaml:"base_url"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

// Embedding holds the embedding provider settings used for failure clustering.
// APIKey and BaseURL fall back to the LLM settings when unset, so a single
// provider serving both endpoints needs configuring once.
type Embedding struct {
	APIKey    string `yaml:"api_key"`
	Model     string `yaml:"model"`
	BaseURL   string `yaml:"base_url"`
	BatchSize int    `yaml:"batch_size"`
}

// Config is the full resolved provider configuration.
type Config struct {
	LLM                 LLM       `yaml:"llm"`
	Embedding           Embedding `yaml:"embedding"`
	SimilarityThreshold float64   `yaml:"similarity_threshold"`
}

// FromEnv builds a Config from LLM_* and EMBED_* environment variables,
// applying defaults for anything unset. It never fails; callers that require
// an API key check for it at point of use.
func FromEnv() *Config {
	cfg := &Config{
		LLM: LLM{
			Provider:    envOr("LLM_PROVIDER", DefaultProvider),
			APIKey:      os.Getenv("LLM_API_KEY"),
			Model:       envOr("LLM_MODEL", DefaultModel),
			BaseURL:     os.Getenv("LLM_BASE_URL"),
			Temperature: envFloat("LLM_TEMPERATURE", DefaultTemperature),
			MaxTokens:   envInt("LLM_MAX_TOKENS", DefaultMaxTokens),
		},
		Embedding: Embedding{
			APIKey:    os.Getenv("EMBED_API_KEY"),
			Model:     envOr("EMBED_MODEL", DefaultEmbedModel),
			BaseURL:   os.Getenv("EMBED_BASE_URL"),
			BatchSize: envInt("EMBED_BATCH_SIZE", DefaultEmbedBatchSize),
		},
		SimilarityThreshold: envFloat("SIMILARITY_THRESHOLD", DefaultSimilarityThreshold),
	}
	cfg.applyFallbacks()
	return cfg
}

// Load resolves configuration from the environment and, if path is non-empty,
// overlays values from a YAML file on top. File values win over environment
// values; zero values in the file leave the environment result in place.
func Load(path string) (*Config, error) {
	cfg := FromEnv()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var file Config
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse config yaml: %w", err)
	}
	cfg.overlay(&file)
	cfg.applyFallbacks()
	return cfg, nil
}

// HasLLM reports whether enough is configured to call the analysis provider.
func (c *Config) HasLLM() bool {
	return c.LLM.APIKey != "" || c.LLM.BaseURL != ""
}

// HasEmbedding reports whether enough is configured to call the embedding
// provider.
func (c *Config) HasEmbedding() bool {
	return c.Embedding.APIKey != "" || c.Embedding.BaseURL != ""
}

func (c *Config) overlay(file *Config) {
	overlayStr(&c.LLM.Provider, file.LLM.Provider)
	overlayStr(&c.LLM.APIKey, file.LLM.APIKey)
	overlayStr(&c.LLM.Model, file.LLM.Model)
	overlayStr(&c.LLM.BaseURL, file.LLM.BaseURL)
	if file.LLM.Temperature != 0 {
		c.LLM.Temperature = file.LLM.Temperature
	}
	if file.LLM.MaxTokens != 0 {
		c.LLM.MaxTokens = file.LLM.MaxTokens
	}
	overlayStr(&c.Embedding.APIKey, file.Embedding.APIKey)
	overlayStr(&c.Embedding.Model, file.Embedding.Model)
	overlayStr(&c.Embedding.BaseURL, file.Embedding.BaseURL)
	if file.Embedding.BatchSize != 0 {
		c.Embedding.BatchSize = file.Embedding.BatchSize
	}
	if file.SimilarityThreshold != 0 {
		c.SimilarityThreshold = file.SimilarityThreshold
	}
}

func (c *Config) applyFallbacks() {
	if c.Embedding.APIKey == "" {
		c.Embedding.APIKey = c.LLM.APIKey
	}
	if c.Embedding.BaseURL == "" {
		c.Embedding.BaseURL = c.LLM.BaseURL
	}
}

func overlayStr(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
