package writer

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/ginjaninja78/fiscal-transcriber/internal/types"
)

// XLSXWriter writes rows to a single-sheet workbook.
//
// Every cell is stored as a string, so "1,30" or "46024" keep the exact text
// of the source row instead of being coerced to numbers.
type XLSXWriter struct {
	// Sheet is the sheet name. Default: "Sheet1".
	Sheet string

	// ColumnWidths maps a column ("J") or a range ("A:C") to a width.
	ColumnWidths map[string]float64

	// Align maps a column or a range to "left", "center" or "right".
	Align map[string]string
}

func (x *XLSXWriter) Extension() string   { return ".xlsx" }
func (x *XLSXWriter) ContentType() string { return ContentTypeXLSX }

// Write builds the workbook and writes it to w.
func (x *XLSXWriter) Write(w io.Writer, rows []types.Row) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := x.Sheet
	if sheet == "" {
		sheet = "Sheet1"
	}
	if sheet != "Sheet1" {
		if err := f.SetSheetName("Sheet1", sheet); err != nil {
			return fmt.Errorf("failed to name sheet: %w", err)
		}
	}

	if err := x.applyLayout(f, sheet); err != nil {
		return err
	}

	for i, row := range rows {
		for j, value := range row {
			if value == "" {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(j+1, i+1)
			if err != nil {
				return fmt.Errorf("row %d: %w", i+1, err)
			}
			if err := f.SetCellStr(sheet, cell, value); err != nil {
				return fmt.Errorf("failed to write %s: %w", cell, err)
			}
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// applyLayout sets column widths and alignment styles.
func (x *XLSXWriter) applyLayout(f *excelize.File, sheet string) error {
	for _, columns := range sortedKeys(x.ColumnWidths) {
		start, end := splitRange(columns)
		if err := f.SetColWidth(sheet, start, end, x.ColumnWidths[columns]); err != nil {
			return fmt.Errorf("invalid column width for %q: %w", columns, err)
		}
	}

	for _, columns := range sortedKeys(x.Align) {
		style, err := f.NewStyle(&excelize.Style{
			Alignment: &excelize.Alignment{Horizontal: strings.ToLower(x.Align[columns])},
		})
		if err != nil {
			return fmt.Errorf("invalid alignment for %q: %w", columns, err)
		}
		if err := f.SetColStyle(sheet, columns, style); err != nil {
			return fmt.Errorf("invalid alignment column %q: %w", columns, err)
		}
	}

	return nil
}

// splitRange splits "A:C" into "A" and "C". A single column is its own range.
func splitRange(columns string) (string, string) {
	start, end, found := strings.Cut(columns, ":")
	if !found {
		return columns, columns
	}
	return start, end
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
