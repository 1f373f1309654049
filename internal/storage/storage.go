// Package storage defines the vector store interface and its SQLite and in-memory implementations.
package storage

import (
	"context"
	"errors"

	"github.com/hyperjump/tsumiki/internal/models"
)

// ErrStoreNotFound is returned when opening a store that must already exist.
var ErrStoreNotFound = errors.New("vector store not found")

// OpenMode controls whether a missing store is created.
type OpenMode int

const (
	// Create creates the store directory and schema when missing.
	Create OpenMode = iota
	// MustExist fails with ErrStoreNotFound when the store directory is missing.
	MustExist
)

// Include selects which fields Get returns besides ids.
type Include uint8

const (
	IncludeDocuments Include = 1 << iota
	IncludeMetadatas
	IncludeEmbeddings

	IncludeAll = IncludeDocuments | IncludeMetadatas | IncludeEmbeddings
)

// Has reports whether f is selected.
func (i Include) Has(f Include) bool { return i&f != 0 }

// GetOptions narrows a Get call. A zero Limit returns every entry.
type GetOptions struct {
	Include Include
	Limit   int
	Offset  int
}

// GetResult holds parallel slices in insertion order. Slices for fields not requested are nil.
type GetResult struct {
	IDs        []string
	Documents  []string
	Metadatas  []models.Metadata
	Embeddings [][]float32
}

// Len returns the number of entries returned.
func (r *GetResult) Len() int { return len(r.IDs) }

// Entry returns the i-th entry with whatever fields were requested.
func (r *GetResult) Entry(i int) models.StoreEntry {
	e := models.StoreEntry{ID: r.IDs[i]}
	if r.Documents != nil {
		e.Document = r.Documents[i]
	}
	if r.Metadatas != nil {
		e.Metadata = r.Metadatas[i]
	}
	if r.Embeddings != nil {
		e.Embedding = r.Embeddings[i]
	}
	return e
}

// Store persists embedded chunks. Upsert and Delete are all-or-nothing.
type Store interface {
	// Upsert inserts entries, replacing any with the same id.
	Upsert(ctx context.Context, entries []models.StoreEntry) error
	Get(ctx context.Context, opts GetOptions) (*GetResult, error)
	// Delete removes the given ids. Unknown ids are ignored.
	Delete(ctx context.Context, ids []string) error
	Count(ctx context.Context) (int64, error)
	// Path returns the on-disk location, or "" for stores without one.
	Path() string
	Close() error
}
