package storage

import (
	"context"
	"fmt"

	"github.com/hyperjump/tsumiki/internal/config"
)

// SourceIndex is implemented by stores that can look ids up by source without a full scan.
type SourceIndex interface {
	IDsBySource(ctx context.Context, source string) ([]string, error)
}

// Open opens the store selected by cfg.
func Open(cfg config.StorageConfig, mode OpenMode) (Store, error) {
	switch cfg.Type {
	case config.StorageSQLite, "":
		return OpenSQLiteStore(cfg.Dir, mode)
	case config.StorageMemory:
		return OpenMemoryStore(cfg.Dir, mode)
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}
}
