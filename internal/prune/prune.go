// Package prune removes every stored chunk that came from one source file.
package prune

import (
	"context"
	"fmt"

	"github.com/hyperjump/tsumiki/internal/sourceid"
	"github.com/hyperjump/tsumiki/internal/storage"
	"go.uber.org/zap"
)

// Result reports what Prune matched. Matched is zero when the source had no entries.
type Result struct {
	Source  string   `json:"source"`
	Matched int      `json:"matched"`
	Deleted bool     `json:"deleted"`
	IDs     []string `json:"ids,omitempty"`
}

// Pruner deletes entries by source.
type Pruner struct {
	store  storage.Store
	dryRun bool
	scan   bool
	logger *zap.Logger
}

// Option configures a Pruner.
type Option func(*Pruner)

// WithLogger sets a logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Pruner) { p.logger = l }
}

// WithDryRun reports matches without deleting.
func WithDryRun(on bool) Option {
	return func(p *Pruner) { p.dryRun = on }
}

// WithFullScan matches against every entry's metadata even when the store has a source index.
func WithFullScan(on bool) Option {
	return func(p *Pruner) { p.scan = on }
}

// New returns a Pruner over store.
func New(store storage.Store, opts ...Option) *Pruner {
	p := &Pruner{store: store, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Prune deletes all entries whose source equals target. Both sides are compared in canonical
// form, otherwise exactly. The matching ids are deleted in one call. No match is not an error.
func (p *Pruner) Prune(ctx context.Context, target string) (*Result, error) {
	if target == "" {
		return nil, fmt.Errorf("source must not be empty")
	}
	ids, err := p.match(ctx, target)
	if err != nil {
		return nil, err
	}
	res := &Result{Source: sourceid.Canonical(target), Matched: len(ids), IDs: ids}
	if len(ids) == 0 {
		p.logger.Debug("prune found no chunks", zap.String("source", res.Source))
		return res, nil
	}
	if p.dryRun {
		return res, nil
	}
	if err := p.store.Delete(ctx, ids); err != nil {
		return nil, fmt.Errorf("failed to delete chunks from %s: %w", res.Source, err)
	}
	res.Deleted = true
	p.logger.Debug("prune deleted chunks", zap.String("source", res.Source), zap.Int("chunks", len(ids)))
	return res, nil
}

func (p *Pruner) match(ctx context.Context, target string) ([]string, error) {
	if idx, ok := p.store.(storage.SourceIndex); ok && !p.scan {
		ids, err := idx.IDsBySource(ctx, target)
		if err != nil {
			return nil, fmt.Errorf("failed to look up source: %w", err)
		}
		return ids, nil
	}
	all, err := p.store.Get(ctx, storage.GetOptions{Include: storage.IncludeMetadatas})
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata: %w", err)
	}
	var ids []string
	for i, md := range all.Metadatas {
		if sourceid.Equal(md.Source(), target) {
			ids = append(ids, all.IDs[i])
		}
	}
	return ids, nil
}
