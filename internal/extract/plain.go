package extract

import (
	"bytes"
	"fmt"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// Detected encodings.
const (
	EncodingUTF8        = "utf-8"
	EncodingUTF8BOM     = "utf-8-bom"
	EncodingUTF16LE     = "utf-16le"
	EncodingUTF16BE     = "utf-16be"
	EncodingWindows1252 = "windows-1252"
)

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

// decodeText converts content to UTF-8. A byte order mark selects the encoding;
// without one, valid UTF-8 is kept and anything else is read as Windows-1252.
func decodeText(content []byte) (string, string, error) {
	var (
		dec  *encoding.Decoder
		name string
	)
	switch {
	case bytes.HasPrefix(content, bomUTF8):
		dec, name = unicode.UTF8BOM.NewDecoder(), EncodingUTF8BOM
	case bytes.HasPrefix(content, bomUTF16LE):
		dec, name = unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM).NewDecoder(), EncodingUTF16LE
	case bytes.HasPrefix(content, bomUTF16BE):
		dec, name = unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM).NewDecoder(), EncodingUTF16BE
	case utf8.Valid(content):
		return string(content), EncodingUTF8, nil
	default:
		dec, name = charmap.Windows1252.NewDecoder(), EncodingWindows1252
	}
	out, err := dec.Bytes(content)
	if err != nil {
		return "", "", fmt.Errorf("decode %s: %w", name, err)
	}
	return string(out), name, nil
}
