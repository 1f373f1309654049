package extracttest

import (
	"bytes"
	"testing"
)

func TestMinimalPDF_header(t *testing.T) {
	b := MinimalPDF("x", "y")
	if !bytes.HasPrefix(b, []byte("%PDF-1.4")) {
		t.Error("missing header")
	}
	if !bytes.Contains(b, []byte("/Count 2")) {
		t.Error("missing page count")
	}
	if !bytes.HasSuffix(b, []byte("%%EOF\n")) {
		t.Error("missing trailer")
	}
}

func TestEscapePDFString(t *testing.T) {
	if got := escapePDFString(`a(b)\c`); got != `a\(b\)\\c` {
		t.Errorf("escapePDFString = %q", got)
	}
}
