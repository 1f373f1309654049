// Package splitter cuts documents into overlapping chunks using a recursive list of separators.
//
// Text is split on the first separator that occurs in it. Pieces that are still too long are
// split again with the remaining separators, and short pieces are merged greedily up to the
// chunk size. When a chunk is emitted, its tail (at most the overlap) starts the next one.
// All lengths are counted in runes.
package splitter

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/hyperjump/tsumiki/internal/models"
)

// ErrInvalidConfig is returned for non-positive sizes or an overlap that is not smaller than the size.
var ErrInvalidConfig = errors.New("invalid splitter config")

// DefaultSeparators go from paragraph to line to word to character.
var DefaultSeparators = []string{"\n\n", "\n", " ", ""}

// Splitter splits text into chunks of at most ChunkSize runes.
type Splitter struct {
	chunkSize    int
	chunkOverlap int
	separators   []string
}

// Option configures a Splitter.
type Option func(*Splitter)

// WithSeparators replaces the default separator list. An empty string splits into single characters.
func WithSeparators(seps []string) Option {
	return func(s *Splitter) {
		if len(seps) > 0 {
			s.separators = seps
		}
	}
}

// New returns a Splitter. chunkOverlap must be smaller than chunkSize.
func New(chunkSize, chunkOverlap int, opts ...Option) (*Splitter, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("%w: chunk size %d must be positive", ErrInvalidConfig, chunkSize)
	}
	if chunkOverlap < 0 {
		return nil, fmt.Errorf("%w: chunk overlap %d must not be negative", ErrInvalidConfig, chunkOverlap)
	}
	if chunkOverlap >= chunkSize {
		return nil, fmt.Errorf("%w: chunk overlap %d must be smaller than chunk size %d",
			ErrInvalidConfig, chunkOverlap, chunkSize)
	}
	s := &Splitter{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		separators:   DefaultSeparators,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// ChunkSize returns the maximum chunk length.
func (s *Splitter) ChunkSize() int { return s.chunkSize }

// ChunkOverlap returns the maximum overlap between consecutive chunks.
func (s *Splitter) ChunkOverlap() int { return s.chunkOverlap }

// SplitDocuments splits every document and records each chunk's start offset in its metadata.
// Chunks keep document order. IDs are left empty for the writer to assign.
func (s *Splitter) SplitDocuments(docs []models.RawDocument) []models.Chunk {
	var out []models.Chunk
	for _, doc := range docs {
		base := doc.Metadata()
		index, prevLen := 0, 0
		for _, text := range s.SplitText(doc.Text) {
			index = s.locate(doc.Text, text, index, prevLen)
			prevLen = runeLen(text)

			md := base.Clone()
			md[models.MetaStartIndex] = index
			out = append(out, models.Chunk{
				Text:       text,
				Source:     doc.Source,
				StartIndex: index,
				Metadata:   md,
			})
		}
	}
	return out
}

// locate finds chunk in text, searching from where the previous chunk's overlap began.
// The result is never before prevIndex.
func (s *Splitter) locate(text, chunk string, prevIndex, prevLen int) int {
	from := prevIndex + prevLen - s.chunkOverlap
	if from < prevIndex {
		from = prevIndex
	}
	if i := indexRunes(text, chunk, from); i >= 0 {
		return i
	}
	if i := indexRunes(text, chunk, prevIndex); i >= 0 {
		return i
	}
	return prevIndex
}

// SplitText returns the chunks of text, trimmed of surrounding whitespace. Empty chunks are dropped.
func (s *Splitter) SplitText(text string) []string {
	return s.split(text, s.separators)
}

func (s *Splitter) split(text string, separators []string) []string {
	separator := separators[len(separators)-1]
	var rest []string
	for i, sep := range separators {
		if sep == "" {
			separator = sep
			break
		}
		if strings.Contains(text, sep) {
			separator = sep
			rest = separators[i+1:]
			break
		}
	}

	var chunks, good []string
	for _, piece := range splitKeepingSeparator(text, separator) {
		if runeLen(piece) < s.chunkSize {
			good = append(good, piece)
			continue
		}
		if len(good) > 0 {
			chunks = append(chunks, s.merge(good)...)
			good = nil
		}
		if len(rest) == 0 {
			chunks = append(chunks, piece)
		} else {
			chunks = append(chunks, s.split(piece, rest)...)
		}
	}
	if len(good) > 0 {
		chunks = append(chunks, s.merge(good)...)
	}
	return chunks
}

// merge joins pieces into chunks no longer than chunkSize, carrying up to chunkOverlap
// runes of each emitted chunk into the next.
func (s *Splitter) merge(pieces []string) []string {
	var (
		chunks  []string
		current []string
		lengths []int
		total   int
	)
	for _, p := range pieces {
		n := runeLen(p)
		if total+n > s.chunkSize && len(current) > 0 {
			if c, ok := join(current); ok {
				chunks = append(chunks, c)
			}
			for total > s.chunkOverlap || (total+n > s.chunkSize && total > 0) {
				total -= lengths[0]
				current, lengths = current[1:], lengths[1:]
			}
		}
		current = append(current, p)
		lengths = append(lengths, n)
		total += n
	}
	if c, ok := join(current); ok {
		chunks = append(chunks, c)
	}
	return chunks
}

func join(pieces []string) (string, bool) {
	text := strings.TrimSpace(strings.Join(pieces, ""))
	return text, text != ""
}

// splitKeepingSeparator splits text on sep and prefixes every piece after the first with sep.
// An empty sep splits into runes. Empty pieces are dropped.
func splitKeepingSeparator(text, sep string) []string {
	if sep == "" {
		out := make([]string, 0, utf8.RuneCountInString(text))
		for _, r := range text {
			out = append(out, string(r))
		}
		return out
	}
	parts := strings.Split(text, sep)
	out := make([]string, 0, len(parts))
	for i, p := range parts {
		if i > 0 {
			p = sep + p
		}
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}

// indexRunes is strings.Index with rune offsets for both the start position and the result.
func indexRunes(text, sub string, fromRune int) int {
	b := 0
	for r := 0; r < fromRune; r++ {
		if b >= len(text) {
			return -1
		}
		_, size := utf8.DecodeRuneInString(text[b:])
		b += size
	}
	i := strings.Index(text[b:], sub)
	if i < 0 {
		return -1
	}
	return fromRune + utf8.RuneCountInString(text[b:b+i])
}
