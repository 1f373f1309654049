// Package loader reads the documents of a data directory into RawDocuments.
package loader

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hyperjump/tsumiki/internal/extract"
	"github.com/hyperjump/tsumiki/internal/models"
	"github.com/hyperjump/tsumiki/internal/sourceid"
	"go.uber.org/zap"
)

// ErrDirNotFound is returned when the data directory does not exist.
var ErrDirNotFound = errors.New("data directory not found")

// FileError reports the file whose loading aborted the run.
type FileError struct {
	Path string
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("load %s: %v", e.Path, e.Err)
}

func (e *FileError) Unwrap() error { return e.Err }

// Loader turns the files of one directory into documents.
type Loader struct {
	extractor  *extract.Extractor
	extensions []string
	logger     *zap.Logger
}

// Option configures a Loader.
type Option func(*Loader)

// WithLogger sets a logger for per-file progress.
func WithLogger(l *zap.Logger) Option {
	return func(ld *Loader) { ld.logger = l }
}

// WithExtensions restricts loading to the given extensions. Extensions without a decoder are ignored.
func WithExtensions(exts []string) Option {
	return func(ld *Loader) { ld.extensions = exts }
}

// New returns a Loader that accepts .txt and .pdf files.
func New(opts ...Option) *Loader {
	ld := &Loader{
		extractor:  extract.NewExtractor(),
		extensions: []string{".txt", ".pdf"},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(ld)
	}
	return ld
}

// Load reads every supported file directly inside dir, in name order.
// Text files yield one document, PDFs one document per page. Subdirectories and
// other extensions are skipped. The first file that cannot be read aborts the load.
func (ld *Loader) Load(ctx context.Context, dir string) ([]models.RawDocument, error) {
	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrDirNotFound, dir)
		}
		return nil, fmt.Errorf("stat directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", dir)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read directory: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var docs []models.RawDocument
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		path := filepath.Join(dir, entry.Name())
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if !ld.accepts(ext) {
			ld.logger.Debug("loader skipping file", zap.String("path", path))
			continue
		}
		fileDocs, err := ld.loadFile(path)
		if err != nil {
			return nil, &FileError{Path: path, Err: err}
		}
		ld.logger.Debug("loader loaded file",
			zap.String("path", path),
			zap.String("kind", strings.TrimPrefix(ext, ".")),
			zap.Int("documents", len(fileDocs)))
		docs = append(docs, fileDocs...)
	}
	return docs, nil
}

func (ld *Loader) loadFile(path string) ([]models.RawDocument, error) {
	res, err := ld.extractor.Extract(path)
	if err != nil {
		return nil, err
	}
	source := sourceid.Canonical(path)
	docs := make([]models.RawDocument, len(res.Pages))
	for i, text := range res.Pages {
		docs[i] = models.RawDocument{
			Source:   source,
			FilePath: path,
			Text:     text,
		}
		if res.Paged {
			docs[i].Page = i
			docs[i].TotalPages = len(res.Pages)
			docs[i].IsPaged = true
		}
	}
	return docs, nil
}

func (ld *Loader) accepts(ext string) bool {
	if !extract.Supported(ext) {
		return false
	}
	return extensionAllowed(ext, ld.extensions)
}

func extensionAllowed(ext string, allowed []string) bool {
	extNorm := strings.ToLower(strings.TrimPrefix(ext, "."))
	for _, a := range allowed {
		if strings.ToLower(strings.TrimPrefix(a, ".")) == extNorm {
			return true
		}
	}
	return false
}
