package storage

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/hyperjump/tsumiki/internal/models"
	"github.com/hyperjump/tsumiki/internal/sourceid"
)

// MemoryFileName is the snapshot file a persistent MemoryStore writes inside its directory.
const MemoryFileName = "tsumiki.bin"

// MemoryStore keeps entries in insertion order in memory.
// When opened on a directory it loads a snapshot on open and writes one on Close.
type MemoryStore struct {
	mu      sync.RWMutex
	order   []string
	entries map[string]models.StoreEntry
	dir     string
}

// NewMemoryStore returns an empty, non-persistent store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]models.StoreEntry)}
}

// OpenMemoryStore opens a store snapshotted to dir.
func OpenMemoryStore(dir string, mode OpenMode) (*MemoryStore, error) {
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
	m := NewMemoryStore()
	m.dir = dir
	if err := m.load(filepath.Join(dir, MemoryFileName)); err != nil {
		return nil, err
	}
	return m, nil
}

// Upsert adds entries. Replaced entries keep their position.
func (m *MemoryStore) Upsert(ctx context.Context, entries []models.StoreEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range entries {
		if _, ok := m.entries[e.ID]; !ok {
			m.order = append(m.order, e.ID)
		}
		vec := make([]float32, len(e.Embedding))
		copy(vec, e.Embedding)
		e.Embedding = vec
		e.Metadata = e.Metadata.Clone()
		m.entries[e.ID] = e
	}
	return nil
}

// Get returns entries in insertion order.
func (m *MemoryStore) Get(ctx context.Context, opts GetOptions) (*GetResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := m.order
	if opts.Offset > 0 {
		if opts.Offset >= len(ids) {
			ids = nil
		} else {
			ids = ids[opts.Offset:]
		}
	}
	if opts.Limit > 0 && opts.Limit < len(ids) {
		ids = ids[:opts.Limit]
	}

	res := &GetResult{IDs: make([]string, 0, len(ids))}
	if opts.Include.Has(IncludeDocuments) {
		res.Documents = make([]string, 0, len(ids))
	}
	if opts.Include.Has(IncludeMetadatas) {
		res.Metadatas = make([]models.Metadata, 0, len(ids))
	}
	if opts.Include.Has(IncludeEmbeddings) {
		res.Embeddings = make([][]float32, 0, len(ids))
	}
	for _, id := range ids {
		e := m.entries[id]
		res.IDs = append(res.IDs, id)
		if res.Documents != nil {
			res.Documents = append(res.Documents, e.Document)
		}
		if res.Metadatas != nil {
			res.Metadatas = append(res.Metadatas, e.Metadata.Clone())
		}
		if res.Embeddings != nil {
			vec := make([]float32, len(e.Embedding))
			copy(vec, e.Embedding)
			res.Embeddings = append(res.Embeddings, vec)
		}
	}
	return res, nil
}

// Delete removes entries by id by rebuilding the order slice.
func (m *MemoryStore) Delete(ctx context.Context, ids []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	removeSet := make(map[string]bool, len(ids))
	for _, id := range ids {
		removeSet[id] = true
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	newOrder := make([]string, 0, len(m.order))
	for _, id := range m.order {
		if removeSet[id] {
			delete(m.entries, id)
			continue
		}
		newOrder = append(newOrder, id)
	}
	m.order = newOrder
	return nil
}

// Count returns the number of entries.
func (m *MemoryStore) Count(ctx context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.order)), nil
}

// IDsBySource returns the ids whose source matches source after canonicalisation.
func (m *MemoryStore) IDsBySource(ctx context.Context, source string) ([]string, error) {
	want := sourceid.Canonical(source)
	m.mu.RLock()
	defer m.mu.RUnlock()
	var ids []string
	for _, id := range m.order {
		if sourceid.Canonical(m.entries[id].Metadata.Source()) == want {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// Path returns the snapshot directory, or "" when not persistent.
func (m *MemoryStore) Path() string { return m.dir }

// Close writes the snapshot when the store is persistent.
func (m *MemoryStore) Close() error {
	if m.dir == "" {
		return nil
	}
	return m.save(filepath.Join(m.dir, MemoryFileName))
}

// save writes: count (4), then per entry: id, document, metadata JSON as length-prefixed
// byte strings, followed by dimension (4) and the vector.
func (m *MemoryStore) save(path string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create snapshot: %w", err)
	}
	if err := m.writeTo(f); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close snapshot: %w", err)
	}
	return os.Rename(tmp, path)
}

func (m *MemoryStore) writeTo(w io.Writer) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(m.order))); err != nil {
		return fmt.Errorf("write count: %w", err)
	}
	for _, id := range m.order {
		e := m.entries[id]
		md, err := json.Marshal(e.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata for %s: %w", id, err)
		}
		for _, field := range [][]byte{[]byte(id), []byte(e.Document), md, EncodeEmbedding(e.Embedding)} {
			if err := binary.Write(w, binary.LittleEndian, uint32(len(field))); err != nil {
				return fmt.Errorf("write length: %w", err)
			}
			if _, err := w.Write(field); err != nil {
				return fmt.Errorf("write field: %w", err)
			}
		}
	}
	return nil
}

// load reads a snapshot. A missing file leaves the store empty.
func (m *MemoryStore) load(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open snapshot: %w", err)
	}
	defer f.Close()

	var n uint32
	if err := binary.Read(f, binary.LittleEndian, &n); err != nil {
		return fmt.Errorf("read count: %w", err)
	}
	for i := uint32(0); i < n; i++ {
		var fields [4][]byte
		for j := range fields {
			var l uint32
			if err := binary.Read(f, binary.LittleEndian, &l); err != nil {
				return fmt.Errorf("read length: %w", err)
			}
			fields[j] = make([]byte, l)
			if _, err := io.ReadFull(f, fields[j]); err != nil {
				return fmt.Errorf("read field: %w", err)
			}
		}
		var md models.Metadata
		if err := json.Unmarshal(fields[2], &md); err != nil {
			return fmt.Errorf("unmarshal metadata: %w", err)
		}
		vec, err := DecodeEmbedding(fields[3])
		if err != nil {
			return err
		}
		id := string(fields[0])
		m.order = append(m.order, id)
		m.entries[id] = models.StoreEntry{ID: id, Document: string(fields[1]), Metadata: md, Embedding: vec}
	}
	return nil
}
