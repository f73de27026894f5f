// Package config provides configuration loading for lucidfiles.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug       bool              `yaml:"debug"`
	Server      ServerConfig      `yaml:"server"`
	Registry    RegistryConfig    `yaml:"registry"`
	Embedding   EmbeddingConfig   `yaml:"embedding"`
	Chunk       ChunkConfig       `yaml:"chunk"`
	Cache       CacheConfig       `yaml:"cache"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Watch       WatchConfig       `yaml:"watch"`
	OCR         OCRConfig         `yaml:"ocr"`
	Answer      AnswerConfig      `yaml:"answer"`
	Sentry      SentryConfig      `yaml:"sentry"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// RegistryConfig holds the path to the directories/files SQLite registry.
type RegistryConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// EmbeddingConfig holds embedding-backend settings.
type EmbeddingConfig struct {
	Backend      string `yaml:"backend"` // onnx | openai | mock
	ModelID      string `yaml:"model_id"`
	ModelPath    string `yaml:"model_path"`
	Dimensions   int    `yaml:"dimensions"`
	MaxTokens    int    `yaml:"max_tokens"`
	OpenAIAPIKey string `yaml:"openai_api_key"`
	WorkerPool   int    `yaml:"worker_pool_size"`
}

// ChunkConfig holds chunker parameters.
type ChunkConfig struct {
	Size    int `yaml:"chunk_size"`
	Overlap int `yaml:"chunk_overlap"`
}

// CacheConfig holds bounds for the embedding and search caches.
type CacheConfig struct {
	RedisURL           string `yaml:"redis_url"`
	EmbeddingSizeMB    int    `yaml:"embedding_cache_mb"`
	EmbeddingTTLSecond int    `yaml:"embedding_cache_ttl_s"`
	SearchSizeMB       int    `yaml:"search_cache_mb"`
	SearchTTLSecond    int    `yaml:"search_cache_ttl_s"`
}

// VectorStoreConfig holds the external vector database endpoint.
type VectorStoreConfig struct {
	Kind           string `yaml:"kind"` // qdrant | postgres | memory
	URL            string `yaml:"url"`
	APIKey         string `yaml:"api_key"`
	CollectionName string `yaml:"collection_name"`
	PostgresDSN    string `yaml:"postgres_dsn"`
	MaxTopK        int    `yaml:"max_top_k"`
}

// WatchConfig holds directory watch settings.
type WatchConfig struct {
	Directories []string `yaml:"directories"`
	Extensions  []string `yaml:"extensions"`
	Recursive   *bool    `yaml:"recursive"`
	DebounceMs  int      `yaml:"debounce_ms"`
}

// RecursiveOrDefault returns whether to watch recursively; defaults to true when unset.
func (w *WatchConfig) RecursiveOrDefault() bool {
	if w.Recursive != nil {
		return *w.Recursive
	}
	return true
}

// OCRConfig tunes OCR invocation.
type OCRConfig struct {
	DPI int    `yaml:"ocr_dpi"`
	PSM int    `yaml:"ocr_psm"`
	Lang string `yaml:"ocr_lang"`
}

// AnswerConfig configures the optional "ask" chat-completion adapter.
type AnswerConfig struct {
	Enabled bool   `yaml:"enabled"`
	Model   string `yaml:"model"`
}

// SentryConfig configures optional error reporting.
type SentryConfig struct {
	DSN string `yaml:"dsn"`
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Registry.DatabasePath = expandPath(cfg.Registry.DatabasePath, configDir)
	cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)
	for i := range cfg.Watch.Directories {
		cfg.Watch.Directories[i] = expandPath(cfg.Watch.Directories[i], configDir)
	}

	return &cfg, nil
}

// Save writes the config to path. Used for persisting watch directory add/remove.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
