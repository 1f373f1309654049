package config

import (
	"strconv"
	"strings"
)

// Embedding providers.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
	ProviderMock   = "mock"
)

// Storage types.
const (
	StorageSQLite = "sqlite"
	StorageMemory = "memory"
)

// Default returns a fully populated configuration.
func Default() *Config {
	cfg := &Config{
		Chunking:  ChunkingConfig{ChunkOverlap: 100},
		Embedding: EmbeddingConfig{MaxRetries: 3},
	}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults sets default values for any zero values in cfg.
// Chunk overlap and max retries are left alone since zero is meaningful for both.
func ApplyDefaults(cfg *Config) {
	if cfg.Data.Dir == "" {
		cfg.Data.Dir = "data"
	}
	if cfg.Data.Extensions == nil {
		cfg.Data.Extensions = []string{".txt", ".pdf"}
	}
	if cfg.Storage.Type == "" {
		cfg.Storage.Type = StorageSQLite
	}
	if cfg.Storage.Dir == "" {
		cfg.Storage.Dir = "vector_store"
	}
	if cfg.Chunking.ChunkSize == 0 {
		cfg.Chunking.ChunkSize = 1000
	}
	if cfg.Chunking.Separators == nil {
		cfg.Chunking.Separators = []string{"\n\n", "\n", " ", ""}
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = ProviderGemini
	}
	if cfg.Embedding.Model == "" {
		switch cfg.Embedding.Provider {
		case ProviderOpenAI:
			cfg.Embedding.Model = "text-embedding-3-small"
		case ProviderMock:
			cfg.Embedding.Model = "mock"
		default:
			cfg.Embedding.Model = "models/text-embedding-004"
		}
	}
	if cfg.Embedding.APIKeyEnv == "" {
		switch cfg.Embedding.Provider {
		case ProviderOpenAI:
			cfg.Embedding.APIKeyEnv = "OPENAI_API_KEY"
		case ProviderGemini:
			cfg.Embedding.APIKeyEnv = "GOOGLE_API_KEY"
		}
	}
	if cfg.Embedding.Dimensions == 0 && cfg.Embedding.Provider == ProviderMock {
		cfg.Embedding.Dimensions = 384
	}
	if cfg.Embedding.BatchSize == 0 {
		cfg.Embedding.BatchSize = 100
	}
	if cfg.Embedding.RequestsPerSecond == 0 {
		cfg.Embedding.RequestsPerSecond = 2
	}
	if cfg.Embedding.TimeoutSecs == 0 {
		cfg.Embedding.TimeoutSecs = 60
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
}

// ApplyEnv overrides cfg from TSUMIKI_* variables and resolves the embedding API key.
// lookup is usually os.LookupEnv.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) {
	if v, ok := lookup("TSUMIKI_DEBUG"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Debug = b
		}
	}
	if v, ok := lookup("TSUMIKI_DATA_DIR"); ok && v != "" {
		cfg.Data.Dir = v
	}
	if v, ok := lookup("TSUMIKI_STORE_DIR"); ok && v != "" {
		cfg.Storage.Dir = v
	}
	if v, ok := lookup("TSUMIKI_CHUNK_SIZE"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Chunking.ChunkSize = n
		}
	}
	if v, ok := lookup("TSUMIKI_CHUNK_OVERLAP"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Chunking.ChunkOverlap = n
		}
	}
	if v, ok := lookup("TSUMIKI_EMBEDDING_PROVIDER"); ok && v != "" {
		SetProvider(cfg, v)
	}
	if v, ok := lookup("TSUMIKI_EMBEDDING_MODEL"); ok && v != "" {
		cfg.Embedding.Model = v
	}
	if cfg.Embedding.APIKeyEnv != "" {
		if v, ok := lookup(cfg.Embedding.APIKeyEnv); ok {
			cfg.Embedding.APIKey = v
		}
	}
}

// SetProvider switches the embedding provider. Provider-specific settings (model, key variable,
// dimensions) are reset to the new provider's defaults when the provider actually changes.
func SetProvider(cfg *Config, provider string) {
	provider = strings.ToLower(provider)
	if provider == cfg.Embedding.Provider {
		return
	}
	cfg.Embedding.Provider = provider
	cfg.Embedding.Model = ""
	cfg.Embedding.APIKeyEnv = ""
	cfg.Embedding.Dimensions = 0
	ApplyDefaults(cfg)
}
