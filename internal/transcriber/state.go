package transcriber

import (
	"fmt"
	"strings"
)

// State is the value carried forward from row to row during one pass.
//
// It is set by a marker row and stays unchanged until the next marker row.
// A zero State is unset.
type State struct {
	// Percentage is the last captured percentage token, already normalized.
	Percentage string

	// Set reports whether any marker row has been seen.
	Set bool

	// Column is the cell index where the token was found, or -1 when the
	// capturing rule does not record it.
	Column int
}

// normalizer rewrites the decimal separator of a captured token.
type normalizer func(string) string

func newNormalizer(mode string) (normalizer, error) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", "keep":
		return func(s string) string { return s }, nil
	case "comma":
		return func(s string) string { return strings.ReplaceAll(s, ".", ",") }, nil
	case "dot":
		return func(s string) string { return strings.ReplaceAll(s, ",", ".") }, nil
	default:
		return nil, fmt.Errorf("unknown decimal_separator %q (want keep, comma or dot)", mode)
	}
}
