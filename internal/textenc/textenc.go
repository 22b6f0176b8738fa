// Package textenc maps the encoding names used in profiles to decoders and
// encoders for delimited text.
//
// Accounting exports arrive as UTF-8 or as one of the single-byte Western
// code pages. The single-byte decoders accept any input, so they belong at
// the end of a fallback list.
package textenc

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// UTF8 is the canonical name of the UTF-8 encoding.
const UTF8 = "utf-8"

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Canonical returns the canonical form of an encoding name, or an error for
// names that are not supported.
func Canonical(name string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "utf-8", "utf8":
		return UTF8, nil
	case "latin1", "latin-1", "iso-8859-1", "iso8859-1":
		return "latin1", nil
	case "windows-1252", "cp1252":
		return "windows-1252", nil
	default:
		return "", fmt.Errorf("unsupported encoding %q", name)
	}
}

// lookup returns the charmap for a canonical single-byte encoding name.
func lookup(canonical string) encoding.Encoding {
	switch canonical {
	case "latin1":
		return charmap.ISO8859_1
	case "windows-1252":
		return charmap.Windows1252
	default:
		return nil
	}
}

// Decode converts data in the named encoding to UTF-8.
//
// UTF-8 input is validated rather than repaired: invalid sequences return an
// error so the caller can fall back to the next encoding. A leading BOM is
// removed.
func Decode(data []byte, name string) (string, error) {
	canonical, err := Canonical(name)
	if err != nil {
		return "", err
	}

	if canonical == UTF8 {
		data = bytes.TrimPrefix(data, utf8BOM)
		if !utf8.Valid(data) {
			return "", fmt.Errorf("input is not valid %s", UTF8)
		}
		return string(data), nil
	}

	decoded, err := io.ReadAll(transform.NewReader(bytes.NewReader(data), lookup(canonical).NewDecoder()))
	if err != nil {
		return "", fmt.Errorf("failed to decode %s: %w", canonical, err)
	}
	return string(decoded), nil
}

// NewWriter wraps w so that UTF-8 text written to it is encoded in the named
// encoding. Close flushes pending bytes; it does not close w.
func NewWriter(w io.Writer, name string) (io.WriteCloser, error) {
	canonical, err := Canonical(name)
	if err != nil {
		return nil, err
	}
	if canonical == UTF8 {
		return nopCloser{w}, nil
	}
	// Characters outside the code page become '?' instead of failing the file.
	enc := encoding.ReplaceUnsupported(lookup(canonical).NewEncoder())
	return transform.NewWriter(w, enc), nil
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }
