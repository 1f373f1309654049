package indexer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/hyperjump/tsumiki/internal/embedding"
	"github.com/hyperjump/tsumiki/internal/loader"
	"github.com/hyperjump/tsumiki/internal/models"
	"github.com/hyperjump/tsumiki/internal/splitter"
	"github.com/hyperjump/tsumiki/internal/storage"
	"github.com/hyperjump/tsumiki/pkg/utils"
	"go.uber.org/zap"
)

// Outcome says how a pipeline run ended.
type Outcome string

const (
	// OutcomeIngested means chunks were written to the store.
	OutcomeIngested Outcome = "ingested"
	// OutcomeDataDirCreated means the data directory was missing and has been created empty.
	OutcomeDataDirCreated Outcome = "data_dir_created"
	// OutcomeNoDocuments means the data directory held nothing loadable.
	OutcomeNoDocuments Outcome = "no_documents"
	// OutcomeNoChunks means the documents held no text.
	OutcomeNoChunks Outcome = "no_chunks"
)

// RunResult describes a pipeline run. Only OutcomeIngested touches the store.
type RunResult struct {
	Outcome    Outcome       `json:"outcome"`
	DataDir    string        `json:"data_dir"`
	StoreDir   string        `json:"store_dir,omitempty"`
	Documents  int           `json:"documents"`
	Sources    int           `json:"sources"`
	Chunks     int           `json:"chunks"`
	Written    int           `json:"written"`
	Dimensions int           `json:"dimensions,omitempty"`
	Duration   time.Duration `json:"duration_ns"`
}

// StoreOpener opens the destination store. The pipeline calls it only once there is something to write.
type StoreOpener func() (storage.Store, error)

// Pipeline loads a directory, splits the documents and writes the chunks.
type Pipeline struct {
	loader     *loader.Loader
	splitter   *splitter.Splitter
	embedder   embedding.Embedder
	openStore  StoreOpener
	writerOpts []WriterOption
	logger     *zap.Logger
	store      storage.Store
	ownsStore  bool
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithPipelineLogger sets the logger for stage progress.
func WithPipelineLogger(l *zap.Logger) PipelineOption {
	return func(p *Pipeline) { p.logger = l }
}

// WithWriterOptions passes options to the Writer built for each run.
func WithWriterOptions(opts ...WriterOption) PipelineOption {
	return func(p *Pipeline) { p.writerOpts = append(p.writerOpts, opts...) }
}

// WithSharedStore writes into an already open store that the pipeline must not close.
func WithSharedStore(s storage.Store) PipelineOption {
	return func(p *Pipeline) {
		p.openStore = func() (storage.Store, error) { return s, nil }
		p.ownsStore = false
	}
}

// NewPipeline wires the stages together. openStore is called lazily and the store it returns
// is closed by Close.
func NewPipeline(ld *loader.Loader, sp *splitter.Splitter, embedder embedding.Embedder, openStore StoreOpener, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		loader:    ld,
		splitter:  sp,
		embedder:  embedder,
		openStore: openStore,
		logger:    zap.NewNop(),
		ownsStore: true,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run ingests dataDir. A missing directory is created and reported as OutcomeDataDirCreated;
// empty input halts before the store is opened. Errors from any stage are returned wrapped.
func (p *Pipeline) Run(ctx context.Context, dataDir string) (*RunResult, error) {
	started := time.Now()
	res := &RunResult{DataDir: dataDir}
	defer func() { res.Duration = time.Since(started) }()

	docs, err := p.loader.Load(ctx, dataDir)
	if errors.Is(err, loader.ErrDirNotFound) {
		if mkErr := os.MkdirAll(dataDir, 0755); mkErr != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", mkErr)
		}
		p.logger.Info("created missing data directory", zap.String("dir", dataDir))
		res.Outcome = OutcomeDataDirCreated
		return res, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load documents: %w", err)
	}
	res.Documents = len(docs)
	res.Sources = countSources(docs)
	if len(docs) == 0 {
		res.Outcome = OutcomeNoDocuments
		return res, nil
	}
	p.logger.Debug("loaded documents", zap.Int("documents", len(docs)), zap.Int("sources", res.Sources))
	for _, d := range docs {
		p.logger.Debug("document",
			zap.String("source", d.Source),
			zap.Int("page", d.Page),
			zap.Int("length", len([]rune(d.Text))),
			zap.String("snippet", utils.Truncate(d.Text, 50)))
	}

	chunks := p.splitter.SplitDocuments(docs)
	res.Chunks = len(chunks)
	if len(chunks) == 0 {
		res.Outcome = OutcomeNoChunks
		return res, nil
	}
	p.logger.Debug("split documents", zap.Int("documents", len(docs)), zap.Int("chunks", len(chunks)))

	store, err := p.storeForWrite()
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	res.StoreDir = store.Path()

	opts := append([]WriterOption{WithLogger(p.logger)}, p.writerOpts...)
	wr, err := NewWriter(store, p.embedder, opts...).Write(ctx, chunks)
	if err != nil {
		return nil, err
	}
	res.Written = wr.Written
	res.Dimensions = wr.Dimensions
	res.Outcome = OutcomeIngested
	p.logger.Debug("saved chunks", zap.Int("chunks", wr.Written), zap.String("store", res.StoreDir))
	return res, nil
}

func (p *Pipeline) storeForWrite() (storage.Store, error) {
	if p.store != nil {
		return p.store, nil
	}
	s, err := p.openStore()
	if err != nil {
		return nil, err
	}
	p.store = s
	return s, nil
}

// Close closes the store if the pipeline opened it.
func (p *Pipeline) Close() error {
	if p.store == nil || !p.ownsStore {
		return nil
	}
	err := p.store.Close()
	p.store = nil
	return err
}

func countSources(docs []models.RawDocument) int {
	seen := make(map[string]struct{}, len(docs))
	for _, d := range docs {
		seen[d.Source] = struct{}{}
	}
	return len(seen)
}
