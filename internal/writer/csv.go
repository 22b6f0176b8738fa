package writer

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/ginjaninja78/fiscal-transcriber/internal/textenc"
	"github.com/ginjaninja78/fiscal-transcriber/internal/types"
)

// CSVWriter writes rows as delimited text.
type CSVWriter struct {
	// Delimiter is the field separator. Default: ";".
	Delimiter string

	// Encoding is the output encoding. Default: "utf-8".
	Encoding string
}

func (c *CSVWriter) Extension() string   { return ".csv" }
func (c *CSVWriter) ContentType() string { return ContentTypeCSV }

// Write encodes rows to w.
func (c *CSVWriter) Write(w io.Writer, rows []types.Row) error {
	encoded, err := textenc.NewWriter(w, c.Encoding)
	if err != nil {
		return err
	}

	out := csv.NewWriter(encoded)
	out.Comma = c.comma()

	for i, row := range rows {
		if err := out.Write(row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+1, err)
		}
	}

	out.Flush()
	if err := out.Error(); err != nil {
		return fmt.Errorf("failed to write csv: %w", err)
	}
	return encoded.Close()
}

func (c *CSVWriter) comma() rune {
	switch c.Delimiter {
	case "", ";", "semicolon":
		return ';'
	case "\\t", "tab", "TAB":
		return '\t'
	case "|", "pipe", "PIPE":
		return '|'
	case "comma":
		return ','
	default:
		return []rune(c.Delimiter)[0]
	}
}
