// Package inspect reports on the contents of a vector store.
package inspect

import (
	"context"
	"fmt"
	"sort"

	"github.com/hyperjump/tsumiki/internal/models"
	"github.com/hyperjump/tsumiki/internal/storage"
	"github.com/hyperjump/tsumiki/pkg/utils"
)

// Default preview sizes.
const (
	DefaultPreviewChars  = 100
	DefaultVectorPreview = 10
)

// Options controls what Inspect reads.
type Options struct {
	// IncludeEmbeddings loads the sample's vector.
	IncludeEmbeddings bool
	// PreviewChars is the number of characters of the sample text to keep.
	PreviewChars int
	// VectorPreview is the number of leading vector components to keep.
	VectorPreview int
	// Sources groups entries by source. Requires reading every entry's metadata.
	Sources bool
}

// Sample describes the first entry of the store.
type Sample struct {
	ID         string          `json:"id"`
	Metadata   models.Metadata `json:"metadata"`
	Preview    string          `json:"preview"`
	Truncated  bool            `json:"truncated"`
	Dimensions int             `json:"dimensions,omitempty"`
	Norm       float64         `json:"norm,omitempty"`
	Vector     []float32       `json:"vector,omitempty"`
}

// SourceCount is the number of entries stored for one source.
type SourceCount struct {
	Source string `json:"source"`
	Chunks int    `json:"chunks"`
}

// Report is the result of Inspect. Sample is nil for an empty store.
type Report struct {
	Count          int64         `json:"count"`
	Sample         *Sample       `json:"sample,omitempty"`
	Sources        []SourceCount `json:"sources,omitempty"`
	StorePath      string        `json:"store_path,omitempty"`
	DiskUsageBytes int64         `json:"disk_usage_bytes"`
}

// Inspector reads store statistics.
type Inspector struct {
	store storage.Store
}

// New returns an Inspector over store.
func New(store storage.Store) *Inspector {
	return &Inspector{store: store}
}

// Inspect returns the entry count and a sample of the first entry.
func (in *Inspector) Inspect(ctx context.Context, opts Options) (*Report, error) {
	if opts.PreviewChars <= 0 {
		opts.PreviewChars = DefaultPreviewChars
	}
	if opts.VectorPreview <= 0 {
		opts.VectorPreview = DefaultVectorPreview
	}

	count, err := in.store.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count entries: %w", err)
	}
	report := &Report{Count: count, StorePath: in.store.Path()}
	if report.StorePath != "" {
		usage, err := storage.DiskUsageBytes(report.StorePath)
		if err != nil {
			return nil, fmt.Errorf("failed to compute disk usage: %w", err)
		}
		report.DiskUsageBytes = usage
	}
	if count == 0 {
		return report, nil
	}

	include := storage.IncludeDocuments | storage.IncludeMetadatas
	if opts.IncludeEmbeddings {
		include |= storage.IncludeEmbeddings
	}
	first, err := in.store.Get(ctx, storage.GetOptions{Include: include, Limit: 1})
	if err != nil {
		return nil, fmt.Errorf("failed to read sample: %w", err)
	}
	if first.Len() > 0 {
		report.Sample = newSample(first.Entry(0), opts)
	}

	if opts.Sources {
		sources, err := in.sourceCounts(ctx)
		if err != nil {
			return nil, err
		}
		report.Sources = sources
	}
	return report, nil
}

func newSample(e models.StoreEntry, opts Options) *Sample {
	preview, cut := utils.Head(e.Document, opts.PreviewChars)
	s := &Sample{
		ID:        e.ID,
		Metadata:  e.Metadata,
		Preview:   preview,
		Truncated: cut,
	}
	if e.Embedding != nil {
		s.Dimensions = len(e.Embedding)
		s.Norm = utils.L2Norm(e.Embedding)
		n := opts.VectorPreview
		if n > len(e.Embedding) {
			n = len(e.Embedding)
		}
		s.Vector = append([]float32(nil), e.Embedding[:n]...)
	}
	return s
}

func (in *Inspector) sourceCounts(ctx context.Context) ([]SourceCount, error) {
	all, err := in.store.Get(ctx, storage.GetOptions{Include: storage.IncludeMetadatas})
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata: %w", err)
	}
	counts := make(map[string]int)
	for _, md := range all.Metadatas {
		counts[md.Source()]++
	}
	out := make([]SourceCount, 0, len(counts))
	for src, n := range counts {
		out = append(out, SourceCount{Source: src, Chunks: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Source < out[j].Source })
	return out, nil
}
