// Package models defines core data structures for loaded documents, chunks, and stored entries.
package models

// Metadata keys attached to chunks and store entries.
const (
	MetaSource     = "source"
	MetaStartIndex = "start_index"
	MetaFilePath   = "file_path"
	MetaPage       = "page"
	MetaTotalPages = "total_pages"
)

// RawDocument is the text of one loaded unit: a whole text file or a single PDF page.
type RawDocument struct {
	Source     string `json:"source"`
	FilePath   string `json:"file_path"`
	Text       string `json:"text"`
	Page       int    `json:"page"`
	TotalPages int    `json:"total_pages"`
	IsPaged    bool   `json:"is_paged"`
}

// Metadata returns the metadata every chunk cut from this document inherits.
func (d RawDocument) Metadata() Metadata {
	m := Metadata{
		MetaSource:   d.Source,
		MetaFilePath: d.FilePath,
	}
	if d.IsPaged {
		m[MetaPage] = d.Page
		m[MetaTotalPages] = d.TotalPages
	}
	return m
}

// Chunk is a bounded slice of a RawDocument, ready to be embedded.
type Chunk struct {
	ID         string   `json:"id"`
	Text       string   `json:"text"`
	Source     string   `json:"source"`
	StartIndex int      `json:"start_index"`
	Metadata   Metadata `json:"metadata"`
}

// StoreEntry is a persisted chunk with its embedding.
type StoreEntry struct {
	ID        string    `json:"id" db:"id"`
	Document  string    `json:"document" db:"document"`
	Embedding []float32 `json:"-" db:"embedding"`
	Metadata  Metadata  `json:"metadata" db:"metadata"`
}
