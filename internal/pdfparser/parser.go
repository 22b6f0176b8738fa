// =============================================================================
// Fiscal Report Transcriber - PDF Parser Module
// =============================================================================
//
// This module is the document input adapter. It reads the text of a PDF
// report row by row and splits every text row into cells:
//
//   1. Page.GetTextByRow groups the text runs of a page by baseline.
//   2. Within a row, runs separated by a wide horizontal gap start a new
//      cell. Narrow gaps are word spaces.
//   3. When no row can be read that way, Reader.GetPlainText is used and
//      each line is split on runs of spaces.
//
// Blank lines are dropped. There is no table-geometry detection: a report
// whose cells are not separated by visible gaps comes through as one cell
// per row, which still feeds the phrase triggers.
//
// =============================================================================

package pdfparser

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/ginjaninja78/fiscal-transcriber/internal/config"
	"github.com/ginjaninja78/fiscal-transcriber/internal/types"
)

const (
	// spaceWidth is the width of one space as a fraction of the font size.
	spaceWidth = 0.3

	// wordGap is the smallest gap, as a fraction of the font size, that is
	// read as a space between two runs.
	wordGap = 0.1
)

// ParseBytes reads a PDF held in memory.
func ParseBytes(source string, data []byte, settings config.InputSettings) (table *types.Table, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			table = nil
			err = types.NewAdapterError(types.FormatPDF, source, "read", fmt.Errorf("PDF library crashed: %v", rec))
		}
	}()

	if len(data) == 0 {
		return nil, types.NewAdapterError(types.FormatPDF, source, "read", types.ErrEmptyInput)
	}

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, types.NewAdapterError(types.FormatPDF, source, "open", err)
	}
	if reader.NumPage() == 0 {
		return nil, types.NewAdapterError(types.FormatPDF, source, "read", types.ErrEmptyInput)
	}

	gap := settings.PDFColumnGap
	if gap < 1 {
		gap = 2
	}

	rows := readRows(reader, gap)
	if len(rows) == 0 {
		rows, err = readPlainText(reader, gap)
		if err != nil {
			return nil, types.NewAdapterError(types.FormatPDF, source, "read", err)
		}
	}
	if len(rows) == 0 {
		return nil, types.NewAdapterError(types.FormatPDF, source, "read",
			fmt.Errorf("no text found: %w", types.ErrEmptyInput))
	}

	return &types.Table{Source: source, Format: types.FormatPDF, Rows: rows}, nil
}

// readRows extracts rows page by page with GetTextByRow. Pages that fail
// are skipped.
func readRows(reader *pdf.Reader, gap int) []types.Row {
	var rows []types.Row

	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		textRows, err := page.GetTextByRow()
		if err != nil {
			continue
		}

		for _, textRow := range textRows {
			row := splitRuns(textRow.Content, gap)
			if row.IsEmpty() {
				continue
			}
			rows = append(rows, row)
		}
	}

	return rows
}

// splitRuns joins the text runs of one row into cells.
func splitRuns(runs []pdf.Text, gap int) types.Row {
	var (
		row  types.Row
		cell strings.Builder
		end  float64
	)

	flush := func() {
		if text := strings.TrimSpace(cell.String()); text != "" {
			row = append(row, text)
		}
		cell.Reset()
	}

	for i, run := range runs {
		if i > 0 {
			size := run.FontSize
			if size <= 0 {
				size = 1
			}
			distance := (run.X - end) / size
			switch {
			case distance >= float64(gap)*spaceWidth:
				flush()
			case distance >= wordGap:
				cell.WriteByte(' ')
			}
		}
		cell.WriteString(run.S)
		end = run.X + run.W
	}
	flush()

	return row
}

// gapPattern matches a run of at least gap spaces or a tab.
func gapPattern(gap int) *regexp.Regexp {
	return regexp.MustCompile(fmt.Sprintf(`( {%d,}|\t)`, gap))
}

// readPlainText splits the plain text of the document into rows.
func readPlainText(reader *pdf.Reader, gap int) ([]types.Row, error) {
	text, err := reader.GetPlainText()
	if err != nil {
		return nil, err
	}
	return splitLines(text, gap)
}

func splitLines(text io.Reader, gap int) ([]types.Row, error) {
	pattern := gapPattern(gap)

	var rows []types.Row
	scanner := bufio.NewScanner(text)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var row types.Row
		for _, cell := range pattern.Split(line, -1) {
			if cell = strings.TrimSpace(cell); cell != "" {
				row = append(row, cell)
			}
		}
		rows = append(rows, row)
	}

	return rows, scanner.Err()
}
