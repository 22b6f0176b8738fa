// =============================================================================
// Fiscal Report Transcriber - Output Writer Module
// =============================================================================
//
// This module serializes transcribed rows into the downloadable output file.
// Two formats are supported:
//   - xlsx : a single-sheet workbook, column widths and alignment applied
//   - csv  : delimited text in the configured encoding
//
// No header row is emitted by either writer. The rows keep the raw layout of
// the accounting system export.
//
// =============================================================================

package writer

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/ginjaninja78/fiscal-transcriber/internal/config"
	"github.com/ginjaninja78/fiscal-transcriber/internal/types"
)

// Content types of the supported output formats.
const (
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	ContentTypeCSV  = "text/csv"
)

// Writer serializes rows in one output format.
type Writer interface {
	// Write serializes rows to w.
	Write(w io.Writer, rows []types.Row) error

	// Extension is the file extension of the format, with the dot.
	Extension() string

	// ContentType is the MIME type of the format.
	ContentType() string
}

// New returns the writer for the profile output settings.
func New(settings config.OutputSettings) (Writer, error) {
	switch strings.ToLower(settings.Format) {
	case "", string(types.FormatXLSX):
		return &XLSXWriter{
			Sheet:        settings.Sheet,
			ColumnWidths: settings.ColumnWidths,
			Align:        settings.Align,
		}, nil
	case string(types.FormatCSV):
		return &CSVWriter{
			Delimiter: settings.Delimiter,
			Encoding:  settings.Encoding,
		}, nil
	default:
		return nil, fmt.Errorf("%w: output format %q", types.ErrUnsupportedFormat, settings.Format)
	}
}

// Render serializes rows into memory. Nothing is returned on error, so a
// partial file is never handed to the caller.
func Render(w Writer, rows []types.Row) ([]byte, error) {
	var buf bytes.Buffer
	if err := w.Write(&buf, rows); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ContentType returns the MIME type for an output format name.
func ContentType(format string) string {
	switch strings.ToLower(format) {
	case string(types.FormatCSV):
		return ContentTypeCSV
	case "", string(types.FormatXLSX):
		return ContentTypeXLSX
	default:
		return "application/octet-stream"
	}
}
