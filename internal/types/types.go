// =============================================================================
// Fiscal Report Transcriber - Shared Types
// =============================================================================
//
// This package contains the row and table types shared by the input adapters,
// the transcriber and the output writers. Keeping them here avoids import
// cycles between:
//   - csvparser / xlsxparser / pdfparser  (produce tables)
//   - transcriber                        (rewrites rows)
//   - writer                             (serializes rows)
//
// All values are text. There is no typed schema: a row is whatever the
// accounting system exported, cell by cell.
//
// =============================================================================

package types

import (
	"path/filepath"
	"strings"
)

// =============================================================================
// ROW
// =============================================================================

// Row is an ordered sequence of text cells. Rows have variable length.
type Row []string

// Cell returns the value at index i, or "" when the cell is absent.
func (r Row) Cell(i int) string {
	if i < 0 || i >= len(r) {
		return ""
	}
	return r[i]
}

// Pad returns a copy of the row with empty cells appended until it has at
// least n cells. Rows longer than n are copied unchanged, never truncated.
func (r Row) Pad(n int) Row {
	size := len(r)
	if n > size {
		size = n
	}
	out := make(Row, size)
	copy(out, r)
	return out
}

// Blob flattens the non-empty cells into a single space-separated string.
// Phrase triggers are matched against this text.
func (r Row) Blob() string {
	parts := make([]string, 0, len(r))
	for _, cell := range r {
		cell = strings.TrimSpace(cell)
		if cell != "" {
			parts = append(parts, cell)
		}
	}
	return strings.Join(parts, " ")
}

// IsEmpty reports whether every cell is blank.
func (r Row) IsEmpty() bool {
	for _, cell := range r {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// =============================================================================
// TABLE
// =============================================================================

// Format identifies the file format a table was read from or is written to.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLS  Format = "xls"
	FormatXLSX Format = "xlsx"
	FormatPDF  Format = "pdf"
)

// FormatFromPath maps a file extension to a Format.
// Unknown extensions return "" and false.
func FormatFromPath(path string) (Format, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".txt":
		return FormatCSV, true
	case ".xls":
		return FormatXLS, true
	case ".xlsx", ".xlsm":
		return FormatXLSX, true
	case ".pdf":
		return FormatPDF, true
	default:
		return "", false
	}
}

// Table is the ordered row sequence produced by an input adapter.
type Table struct {
	// Source is the file name (or upload name) the rows came from.
	Source string

	// Format is the format the rows were decoded from.
	Format Format

	// Encoding is the character encoding that succeeded, for text formats.
	Encoding string

	// Rows holds the rows in file order.
	Rows []Row
}

