package config

import (
	"errors"
	"fmt"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid config")

// Validate checks settings that would otherwise fail deep inside a run.
func (c *Config) Validate() error {
	if c.Chunking.ChunkSize <= 0 {
		return fmt.Errorf("%w: chunk_size must be positive, got %d", ErrInvalid, c.Chunking.ChunkSize)
	}
	if c.Chunking.ChunkOverlap < 0 {
		return fmt.Errorf("%w: chunk_overlap must not be negative, got %d", ErrInvalid, c.Chunking.ChunkOverlap)
	}
	if c.Chunking.ChunkOverlap >= c.Chunking.ChunkSize {
		return fmt.Errorf("%w: chunk_overlap (%d) must be smaller than chunk_size (%d)",
			ErrInvalid, c.Chunking.ChunkOverlap, c.Chunking.ChunkSize)
	}
	switch c.Embedding.Provider {
	case ProviderGemini, ProviderOpenAI, ProviderMock:
	default:
		return fmt.Errorf("%w: unknown embedding provider %q", ErrInvalid, c.Embedding.Provider)
	}
	switch c.Storage.Type {
	case StorageSQLite, StorageMemory:
	default:
		return fmt.Errorf("%w: unknown storage type %q", ErrInvalid, c.Storage.Type)
	}
	if c.Embedding.BatchSize <= 0 {
		return fmt.Errorf("%w: batch_size must be positive", ErrInvalid)
	}
	if c.Embedding.MaxRetries < 0 {
		return fmt.Errorf("%w: max_retries must not be negative", ErrInvalid)
	}
	return nil
}
