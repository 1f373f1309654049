// Package sourceid derives stable identifiers for source files and chunks.
package sourceid

import (
	"crypto/sha256"
	"encoding/hex"
	"path"
	"strconv"
	"strings"
)

const chunkPrefix = "chunk:"

// Canonical returns the form of a source path used for storage and lookups.
// Backslashes become forward slashes so identifiers written on one OS match queries from another.
func Canonical(p string) string {
	if p == "" {
		return ""
	}
	return path.Clean(strings.ReplaceAll(p, `\`, "/"))
}

// Equal reports whether two source paths name the same source.
func Equal(a, b string) bool {
	return Canonical(a) == Canonical(b)
}

// ChunkID returns a content-derived chunk id. The same source, offset and text always map to the same id.
func ChunkID(source string, startIndex int, text string) string {
	h := sha256.New()
	h.Write([]byte(Canonical(source)))
	h.Write([]byte{0})
	h.Write([]byte(strconv.Itoa(startIndex)))
	h.Write([]byte{0})
	h.Write([]byte(text))
	return chunkPrefix + hex.EncodeToString(h.Sum(nil))
}
