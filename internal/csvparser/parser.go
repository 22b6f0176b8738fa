// =============================================================================
// Fiscal Report Transcriber - CSV Parser Module
// =============================================================================
//
// This module is the delimited-text input adapter. It turns a CSV export of
// the accounting system into an ordered sequence of rows, handling:
//   - Different encodings (UTF-8, Latin-1, Windows-1252) tried in order
//   - Different delimiters (semicolon preferred, auto-detection fallback)
//   - Quoted fields and rows of variable length
//
// Cells are returned exactly as read, without trimming, so a file written by
// the CSV writer reads back to the same rows.
//
// =============================================================================

package csvparser

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ginjaninja78/fiscal-transcriber/internal/config"
	"github.com/ginjaninja78/fiscal-transcriber/internal/textenc"
	"github.com/ginjaninja78/fiscal-transcriber/internal/types"
)

// candidateDelimiters are tried, in order, when sniffing.
var candidateDelimiters = []rune{';', ',', '\t', '|'}

// sniffLines is the number of non-empty lines inspected by the sniffer.
const sniffLines = 50

// =============================================================================
// PARSER FUNCTIONS
// =============================================================================

// Parse reads a CSV file and returns its rows.
//
// PARAMETERS:
//   - filePath: The path to the CSV file.
//   - settings: The input settings from the profile.
//
// RETURNS:
//   - The parsed table.
//   - An *types.AdapterError if the file cannot be read, decoded or parsed.
func Parse(filePath string, settings config.InputSettings) (*types.Table, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, types.NewAdapterError(types.FormatCSV, filePath, "open", err)
	}
	return ParseBytes(filepath.Base(filePath), data, settings)
}

// ParseBytes parses CSV content that is already in memory.
//
// PARSING PROCESS:
//  1. Reject binary content (NUL bytes)
//  2. Decode with the first encoding of settings.Encodings that succeeds
//  3. Split records with the configured delimiter
//  4. Fall back to a sniffed delimiter when the configured one does not fit
func ParseBytes(source string, data []byte, settings config.InputSettings) (*types.Table, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, types.NewAdapterError(types.FormatCSV, source, "read", types.ErrEmptyInput)
	}
	if bytes.IndexByte(data, 0) >= 0 {
		return nil, types.NewAdapterError(types.FormatCSV, source, "decode",
			errors.New("content is binary, not delimited text"))
	}

	text, encoding, err := decode(data, settings.Encodings)
	if err != nil {
		return nil, types.NewAdapterError(types.FormatCSV, source, "decode", err)
	}

	records, err := parseRecords(text, settings.Delimiter)
	if err != nil {
		return nil, types.NewAdapterError(types.FormatCSV, source, "parse", err)
	}

	rows := make([]types.Row, len(records))
	for i, record := range records {
		rows[i] = types.Row(record)
	}

	return &types.Table{
		Source:   source,
		Format:   types.FormatCSV,
		Encoding: encoding,
		Rows:     rows,
	}, nil
}

// decode tries each encoding in order and returns the text and the name of
// the encoding that worked.
func decode(data []byte, encodings []string) (string, string, error) {
	if len(encodings) == 0 {
		encodings = []string{textenc.UTF8}
	}

	var errs []error
	for _, name := range encodings {
		text, err := textenc.Decode(data, name)
		if err == nil {
			return text, name, nil
		}
		errs = append(errs, err)
	}

	return "", "", fmt.Errorf("no encoding matched: %w", errors.Join(errs...))
}

// parseRecords splits text into records.
//
// The configured delimiter is used first. The sniffed delimiter replaces it
// when the delimiter is "auto", when the configured delimiter fails to parse,
// or when it yields a single column while another candidate splits the lines.
func parseRecords(text, delimiter string) ([][]string, error) {
	if strings.EqualFold(delimiter, "auto") {
		return readAll(text, sniffDelimiter(text))
	}

	comma := delimiterRune(delimiter)
	records, err := readAll(text, comma)
	if err == nil && !singleColumn(records) {
		return records, nil
	}

	sniffed := sniffDelimiter(text)
	if sniffed == comma {
		return records, err
	}

	fallback, fallbackErr := readAll(text, sniffed)
	if fallbackErr != nil {
		if err != nil {
			return nil, err
		}
		return records, nil
	}
	return fallback, nil
}

// readAll reads every record. Blank lines are kept as empty rows so the
// row count matches the line count of the export.
//
// encoding/csv skips blank lines, so the gaps are recovered from the line on
// which each record starts. A blank line inside a quoted field belongs to
// that field.
func readAll(text string, comma rune) ([][]string, error) {
	total := len(splitLines(text))
	records := make([][]string, 0, total)

	reader := csv.NewReader(strings.NewReader(text))
	configureReader(reader, comma)

	next := 1   // first line not yet accounted for
	offset := 0 // bytes of text consumed so far
	line := 1   // line number at offset
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		startLine, _ := reader.FieldPos(0)
		for ; next < startLine; next++ {
			records = append(records, []string{})
		}
		records = append(records, record)

		consumed := int(reader.InputOffset())
		line += strings.Count(text[offset:consumed], "\n")
		offset = consumed
		next = line
		if text[offset-1] != '\n' {
			// The record ended at EOF without a newline.
			next = line + 1
		}
	}
	for ; next <= total; next++ {
		records = append(records, []string{})
	}

	return records, nil
}

// configureReader configures the CSV reader.
func configureReader(reader *csv.Reader, comma rune) {
	reader.Comma = comma

	// Allow variable number of fields per row.
	// Report sections have different widths.
	reader.FieldsPerRecord = -1

	// Allow lazy quotes (quotes that don't follow strict CSV rules).
	reader.LazyQuotes = true
}

// delimiterRune maps the configured delimiter to a rune.
func delimiterRune(delimiter string) rune {
	switch delimiter {
	case "\\t", "tab", "TAB":
		return '\t'
	case "|", "pipe", "PIPE":
		return '|'
	case ";", "semicolon", "":
		return ';'
	case ",", "comma":
		return ','
	default:
		return []rune(delimiter)[0]
	}
}

// sniffDelimiter picks the candidate that splits the most lines into the
// same number of fields. Ties go to the earlier candidate.
func sniffDelimiter(text string) rune {
	var sample []string
	for _, line := range splitLines(text) {
		if strings.TrimSpace(line) == "" {
			continue
		}
		sample = append(sample, line)
		if len(sample) == sniffLines {
			break
		}
	}

	best, bestScore := candidateDelimiters[0], 0
	for _, candidate := range candidateDelimiters {
		counts := make(map[int]int)
		for _, line := range sample {
			if n := strings.Count(line, string(candidate)); n > 0 {
				counts[n]++
			}
		}

		score := 0
		for _, lines := range counts {
			if lines > score {
				score = lines
			}
		}
		if score > bestScore {
			best, bestScore = candidate, score
		}
	}

	return best
}

func singleColumn(records [][]string) bool {
	for _, record := range records {
		if len(record) > 1 {
			return false
		}
	}
	return true
}

// splitLines splits on \n, dropping a trailing \r and the final empty line.
func splitLines(text string) []string {
	text = strings.TrimSuffix(strings.TrimSuffix(text, "\n"), "\r")
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	return lines
}
