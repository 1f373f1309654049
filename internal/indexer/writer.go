// Package indexer embeds chunks and writes them to the vector store, and runs the
// load, split and write stages as one ingestion pipeline.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hyperjump/tsumiki/internal/embedding"
	"github.com/hyperjump/tsumiki/internal/models"
	"github.com/hyperjump/tsumiki/internal/sourceid"
	"github.com/hyperjump/tsumiki/internal/storage"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var (
	// ErrNoChunks is returned when Write is called with nothing to write.
	ErrNoChunks = errors.New("no chunks to write")
	// ErrEmbeddingMismatch is returned when the embedder's output does not line up with its input.
	ErrEmbeddingMismatch = errors.New("embedding output does not match input")
)

// DefaultBatchSize is the number of texts sent per embedding request.
const DefaultBatchSize = 100

// WriteResult summarises a successful Write.
type WriteResult struct {
	Written    int `json:"written"`
	Dimensions int `json:"dimensions"`
	Batches    int `json:"batches"`
}

// Writer embeds chunks and persists them in a single store write.
type Writer struct {
	store       storage.Store
	embedder    embedding.Embedder
	batchSize   int
	limiter     *rate.Limiter
	maxRetries  int
	retryBase   time.Duration
	retryMax    time.Duration
	deduplicate bool
	logger      *zap.Logger
	newID       func() string
	sleep       func(context.Context, time.Duration) error
}

// WriterOption configures a Writer.
type WriterOption func(*Writer)

// WithLogger sets a logger for batch progress and retries.
func WithLogger(l *zap.Logger) WriterOption {
	return func(w *Writer) { w.logger = l }
}

// WithBatchSize sets how many texts go into one embedding request.
func WithBatchSize(n int) WriterOption {
	return func(w *Writer) {
		if n > 0 {
			w.batchSize = n
		}
	}
}

// WithRateLimit caps embedding requests per second. Zero or negative disables limiting.
func WithRateLimit(rps float64) WriterOption {
	return func(w *Writer) {
		if rps <= 0 {
			w.limiter = nil
			return
		}
		w.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

// WithRetry sets the retry budget per batch and the backoff bounds.
func WithRetry(maxRetries int, base, max time.Duration) WriterOption {
	return func(w *Writer) {
		if maxRetries >= 0 {
			w.maxRetries = maxRetries
		}
		if base > 0 {
			w.retryBase = base
		}
		if max > 0 {
			w.retryMax = max
		}
	}
}

// WithDeduplicate switches chunk ids from random to content-derived, so writing the same
// chunk twice replaces the earlier entry.
func WithDeduplicate(on bool) WriterOption {
	return func(w *Writer) { w.deduplicate = on }
}

// NewWriter returns a Writer with batch size 100, no rate limit and three retries.
func NewWriter(store storage.Store, embedder embedding.Embedder, opts ...WriterOption) *Writer {
	w := &Writer{
		store:      store,
		embedder:   embedder,
		batchSize:  DefaultBatchSize,
		maxRetries: 3,
		retryBase:  defaultRetryBase,
		retryMax:   defaultRetryMax,
		logger:     zap.NewNop(),
		newID:      func() string { return uuid.New().String() },
		sleep:      sleepCtx,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write embeds every chunk and upserts them all at once. Nothing is written if any batch fails.
func (w *Writer) Write(ctx context.Context, chunks []models.Chunk) (*WriteResult, error) {
	if len(chunks) == 0 {
		return nil, ErrNoChunks
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	vectors := make([][]float32, 0, len(chunks))
	batches := 0
	for start := 0; start < len(texts); start += w.batchSize {
		end := start + w.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batches++
		vecs, err := w.embedWithRetry(ctx, batches, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("failed to generate embeddings for chunks %d-%d: %w", start, end-1, err)
		}
		if len(vecs) != end-start {
			return nil, fmt.Errorf("%w: %d vectors for %d chunks", ErrEmbeddingMismatch, len(vecs), end-start)
		}
		vectors = append(vectors, vecs...)
		w.logger.Debug("indexer embedded batch",
			zap.Int("batch", batches),
			zap.Int("chunks", end-start))
	}

	dims := len(vectors[0])
	for i, v := range vectors {
		if len(v) == 0 || len(v) != dims {
			return nil, fmt.Errorf("%w: chunk %d has %d dimensions, expected %d", ErrEmbeddingMismatch, i, len(v), dims)
		}
	}

	entries := make([]models.StoreEntry, len(chunks))
	for i, c := range chunks {
		entries[i] = w.entry(c, vectors[i])
	}
	if err := w.store.Upsert(ctx, entries); err != nil {
		return nil, fmt.Errorf("failed to store chunks: %w", err)
	}

	w.logger.Debug("indexer chunks written",
		zap.Int("chunks", len(entries)),
		zap.Int("dimensions", dims),
		zap.String("store", w.store.Path()))
	return &WriteResult{Written: len(entries), Dimensions: dims, Batches: batches}, nil
}

func (w *Writer) entry(c models.Chunk, vec []float32) models.StoreEntry {
	source := c.Source
	if source == "" {
		source = c.Metadata.Source()
	}
	source = sourceid.Canonical(source)

	md := c.Metadata.Clone()
	md[models.MetaSource] = source
	md[models.MetaStartIndex] = c.StartIndex

	id := c.ID
	if id == "" {
		if w.deduplicate {
			id = sourceid.ChunkID(source, c.StartIndex, c.Text)
		} else {
			id = w.newID()
		}
	}
	return models.StoreEntry{
		ID:        id,
		Document:  c.Text,
		Embedding: vec,
		Metadata:  md,
	}
}
