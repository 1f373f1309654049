package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  host: "127.0.0.1"
  port: 9000
chunking:
  chunk_size: 500
  chunk_overlap: 50
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Chunking.ChunkSize != 500 || cfg.Chunking.ChunkOverlap != 50 {
		t.Errorf("unexpected chunking config: %+v", cfg.Chunking)
	}
	if cfg.Data.Dir != "data" {
		t.Errorf("data dir = %q, want data", cfg.Data.Dir)
	}
	if cfg.Debug {
		t.Error("debug should default to false when unset")
	}
}

func TestLoad_missingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Chunking.ChunkSize != 1000 || cfg.Chunking.ChunkOverlap != 100 {
		t.Errorf("defaults not applied: %+v", cfg.Chunking)
	}
	if cfg.Embedding.MaxRetries != 3 {
		t.Errorf("max retries = %d, want 3", cfg.Embedding.MaxRetries)
	}
}

func TestLoad_zeroOverlapKept(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := "chunking:\n  chunk_overlap: 0\nembedding:\n  max_retries: 0\n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Chunking.ChunkOverlap != 0 {
		t.Errorf("explicit zero overlap was overwritten: %d", cfg.Chunking.ChunkOverlap)
	}
	if cfg.Embedding.MaxRetries != 0 {
		t.Errorf("explicit zero retries was overwritten: %d", cfg.Embedding.MaxRetries)
	}
}

func TestLoad_invalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("chunking: [unclosed"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoad_expandPathDotSlashRelativeToConfigDir(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
data:
  dir: "./docs"
storage:
  dir: "store"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join(dir, "docs"); cfg.Data.Dir != want {
		t.Errorf("data dir = %s, want %s", cfg.Data.Dir, want)
	}
	if cfg.Storage.Dir != "store" {
		t.Errorf("plain relative paths should stay as written, got %s", cfg.Storage.Dir)
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	if cfg.Server.Host != "localhost" {
		t.Errorf("default host: got %s", cfg.Server.Host)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("default port: got %d", cfg.Server.Port)
	}
	if cfg.Embedding.Provider != ProviderGemini || cfg.Embedding.Model != "models/text-embedding-004" {
		t.Errorf("default embedding: got %+v", cfg.Embedding)
	}
	if cfg.Embedding.APIKeyEnv != "GOOGLE_API_KEY" {
		t.Errorf("default api key env: got %s", cfg.Embedding.APIKeyEnv)
	}
	if len(cfg.Data.Extensions) != 2 || cfg.Data.Extensions[0] != ".txt" || cfg.Data.Extensions[1] != ".pdf" {
		t.Errorf("extensions: got %v", cfg.Data.Extensions)
	}
	if len(cfg.Chunking.Separators) != 4 || cfg.Chunking.Separators[3] != "" {
		t.Errorf("separators: got %q", cfg.Chunking.Separators)
	}
}

func TestApplyDefaults_providerSpecific(t *testing.T) {
	cfg := &Config{Embedding: EmbeddingConfig{Provider: ProviderOpenAI}}
	ApplyDefaults(cfg)
	if cfg.Embedding.APIKeyEnv != "OPENAI_API_KEY" {
		t.Errorf("openai key env: got %s", cfg.Embedding.APIKeyEnv)
	}
	mock := &Config{Embedding: EmbeddingConfig{Provider: ProviderMock}}
	ApplyDefaults(mock)
	if mock.Embedding.APIKeyEnv != "" {
		t.Errorf("mock needs no key env, got %s", mock.Embedding.APIKeyEnv)
	}
	if mock.Embedding.Dimensions == 0 {
		t.Error("mock should get default dimensions")
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"TSUMIKI_DEBUG":              "true",
		"TSUMIKI_DATA_DIR":           "/srv/docs",
		"TSUMIKI_CHUNK_SIZE":         "200",
		"TSUMIKI_CHUNK_OVERLAP":      "20",
		"TSUMIKI_EMBEDDING_PROVIDER": "OpenAI",
		"GOOGLE_API_KEY":             "wrong",
		"OPENAI_API_KEY":             "secret",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}
	cfg := Default()
	ApplyEnv(cfg, lookup)
	if !cfg.Debug {
		t.Error("debug should be enabled from env")
	}
	if cfg.Data.Dir != "/srv/docs" {
		t.Errorf("data dir = %s", cfg.Data.Dir)
	}
	if cfg.Chunking.ChunkSize != 200 || cfg.Chunking.ChunkOverlap != 20 {
		t.Errorf("chunking = %+v", cfg.Chunking)
	}
	if cfg.Embedding.Provider != ProviderOpenAI {
		t.Errorf("provider = %s", cfg.Embedding.Provider)
	}
	if cfg.Embedding.Model != "text-embedding-3-small" {
		t.Errorf("model not switched with provider: %s", cfg.Embedding.Model)
	}
	if cfg.Embedding.APIKey != "secret" {
		t.Errorf("api key not resolved from %s", cfg.Embedding.APIKeyEnv)
	}
}

func TestSetProvider(t *testing.T) {
	cfg := Default()
	cfg.Embedding.Model = "custom"
	SetProvider(cfg, ProviderGemini)
	if cfg.Embedding.Model != "custom" {
		t.Errorf("same provider should keep model, got %s", cfg.Embedding.Model)
	}
	SetProvider(cfg, "mock")
	if cfg.Embedding.APIKeyEnv != "" || cfg.Embedding.Dimensions != 384 || cfg.Embedding.Model != "mock" {
		t.Errorf("mock settings = %+v", cfg.Embedding)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"zero overlap", func(c *Config) { c.Chunking.ChunkOverlap = 0 }, false},
		{"overlap equals size", func(c *Config) { c.Chunking.ChunkOverlap = c.Chunking.ChunkSize }, true},
		{"overlap exceeds size", func(c *Config) { c.Chunking.ChunkSize = 50 }, true},
		{"negative overlap", func(c *Config) { c.Chunking.ChunkOverlap = -1 }, true},
		{"zero size", func(c *Config) { c.Chunking.ChunkSize = 0 }, true},
		{"unknown provider", func(c *Config) { c.Embedding.Provider = "cohere" }, true},
		{"unknown storage", func(c *Config) { c.Storage.Type = "qdrant" }, true},
		{"negative retries", func(c *Config) { c.Embedding.MaxRetries = -1 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalid) {
				t.Errorf("error should wrap ErrInvalid: %v", err)
			}
		})
	}
}

func TestSave(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "saved.yaml")
	cfg := Default()
	cfg.Server.Port = 9090
	cfg.Embedding.APIKey = "do-not-persist"
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Server.Port != 9090 {
		t.Errorf("loaded port: got %d", loaded.Server.Port)
	}
	if loaded.Embedding.APIKey != "" {
		t.Error("api key must not be written to disk")
	}
	if loaded.Chunking.Separators[0] != "\n\n" {
		t.Errorf("separators should round-trip, got %q", loaded.Chunking.Separators)
	}
}
