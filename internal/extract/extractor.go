// Package extract provides text extraction for the document formats tsumiki ingests.
package extract

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrUnsupported is returned for extensions without a decoder.
var ErrUnsupported = errors.New("unsupported file type")

// Result is the text of one file. Paged formats return one entry per page, others a single entry.
type Result struct {
	Pages    []string
	Paged    bool
	Encoding string
}

// Extractor extracts plain text from document files.
type Extractor struct{}

// NewExtractor returns a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Supported reports whether ext (with leading dot, any case) has a decoder.
// Only .txt and .pdf are loaded by default; .md and .xlsx must be enabled through the loader's extensions.
func Supported(ext string) bool {
	switch strings.ToLower(ext) {
	case ".txt", ".pdf", ".md", ".xlsx":
		return true
	}
	return false
}

// Extract reads the file at path and returns its text content.
// Text files are decoded with encoding detection, PDFs are split per page and spreadsheets per sheet.
func (e *Extractor) Extract(path string) (*Result, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if !Supported(ext) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, ext)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return e.ExtractBytes(content, ext)
}

// ExtractBytes extracts text from content based on the given extension.
// ext should include the leading dot (e.g. ".pdf").
func (e *Extractor) ExtractBytes(content []byte, ext string) (*Result, error) {
	switch strings.ToLower(ext) {
	case ".pdf":
		pages, err := extractPDF(content)
		if err != nil {
			return nil, err
		}
		return &Result{Pages: pages, Paged: true}, nil
	case ".xlsx":
		sheets, err := extractSheets(content)
		if err != nil {
			return nil, err
		}
		return &Result{Pages: sheets, Paged: true}, nil
	case ".txt", ".md":
		text, enc, err := decodeText(content)
		if err != nil {
			return nil, err
		}
		return &Result{Pages: []string{text}, Encoding: enc}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, ext)
	}
}
