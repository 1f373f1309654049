package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/tsumiki/internal/models"
	"github.com/hyperjump/tsumiki/internal/sourceid"
)

// SQLiteFileName is the database file inside the store directory.
const SQLiteFileName = "tsumiki.sqlite3"

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db  *sql.DB
	dir string
}

// OpenSQLiteStore opens the store in dir. With Create the directory and schema are created when missing.
func OpenSQLiteStore(dir string, mode OpenMode) (*SQLiteStore, error) {
	if _, err := os.Stat(dir); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("stat store directory: %w", err)
		}
		if mode == MustExist {
			return nil, fmt.Errorf("%w: %s", ErrStoreNotFound, dir)
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", filepath.Join(dir, SQLiteFileName))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{db: db, dir: dir}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS entries (
		id TEXT PRIMARY KEY,
		document TEXT NOT NULL,
		embedding BLOB NOT NULL,
		metadata TEXT,
		source TEXT,
		start_index INTEGER,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_entries_source ON entries(source);
	`
	_, err := db.Exec(schema)
	return err
}

// Upsert writes all entries in one transaction.
func (s *SQLiteStore) Upsert(ctx context.Context, entries []models.StoreEntry) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO entries (id, document, embedding, metadata, source, start_index, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			document = excluded.document,
			embedding = excluded.embedding,
			metadata = excluded.metadata,
			source = excluded.source,
			start_index = excluded.start_index`)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	now := time.Now()
	for _, e := range entries {
		metadataJSON, err := json.Marshal(e.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata for %s: %w", e.ID, err)
		}
		if _, err := stmt.ExecContext(ctx,
			e.ID, e.Document, EncodeEmbedding(e.Embedding), string(metadataJSON),
			sourceid.Canonical(e.Metadata.Source()), e.Metadata.StartIndex(), now,
		); err != nil {
			return fmt.Errorf("failed to upsert %s: %w", e.ID, err)
		}
	}
	return tx.Commit()
}

// Get returns entries in insertion order.
func (s *SQLiteStore) Get(ctx context.Context, opts GetOptions) (*GetResult, error) {
	cols := []string{"id"}
	if opts.Include.Has(IncludeDocuments) {
		cols = append(cols, "document")
	}
	if opts.Include.Has(IncludeMetadatas) {
		cols = append(cols, "metadata")
	}
	if opts.Include.Has(IncludeEmbeddings) {
		cols = append(cols, "embedding")
	}
	query := "SELECT " + strings.Join(cols, ", ") + " FROM entries ORDER BY rowid"
	args := []interface{}{}
	if opts.Limit > 0 || opts.Offset > 0 {
		limit := opts.Limit
		if limit <= 0 {
			limit = -1
		}
		query += " LIMIT ? OFFSET ?"
		args = append(args, limit, opts.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	res := &GetResult{IDs: []string{}}
	if opts.Include.Has(IncludeDocuments) {
		res.Documents = []string{}
	}
	if opts.Include.Has(IncludeMetadatas) {
		res.Metadatas = []models.Metadata{}
	}
	if opts.Include.Has(IncludeEmbeddings) {
		res.Embeddings = [][]float32{}
	}
	for rows.Next() {
		var (
			id, document, metadataJSON string
			blob                       []byte
		)
		dest := []interface{}{&id}
		if opts.Include.Has(IncludeDocuments) {
			dest = append(dest, &document)
		}
		if opts.Include.Has(IncludeMetadatas) {
			dest = append(dest, &metadataJSON)
		}
		if opts.Include.Has(IncludeEmbeddings) {
			dest = append(dest, &blob)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		res.IDs = append(res.IDs, id)
		if opts.Include.Has(IncludeDocuments) {
			res.Documents = append(res.Documents, document)
		}
		if opts.Include.Has(IncludeMetadatas) {
			var md models.Metadata
			if metadataJSON != "" {
				if err := json.Unmarshal([]byte(metadataJSON), &md); err != nil {
					return nil, fmt.Errorf("failed to unmarshal metadata for %s: %w", id, err)
				}
			}
			res.Metadatas = append(res.Metadatas, md)
		}
		if opts.Include.Has(IncludeEmbeddings) {
			vec, err := DecodeEmbedding(blob)
			if err != nil {
				return nil, fmt.Errorf("entry %s: %w", id, err)
			}
			res.Embeddings = append(res.Embeddings, vec)
		}
	}
	return res, rows.Err()
}

// Delete removes ids in one transaction.
func (s *SQLiteStore) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `DELETE FROM entries WHERE id = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare delete: %w", err)
	}
	defer stmt.Close()

	for _, id := range ids {
		if _, err := stmt.ExecContext(ctx, id); err != nil {
			return fmt.Errorf("failed to delete %s: %w", id, err)
		}
	}
	return tx.Commit()
}

// Count returns the number of entries.
func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM entries`).Scan(&n)
	return n, err
}

// IDsBySource returns the ids stored under the canonical form of source, using the source index.
func (s *SQLiteStore) IDsBySource(ctx context.Context, source string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM entries WHERE source = ? ORDER BY rowid`, sourceid.Canonical(source))
	if err != nil {
		return nil, fmt.Errorf("failed to query source: %w", err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Path returns the store directory.
func (s *SQLiteStore) Path() string { return s.dir }

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
