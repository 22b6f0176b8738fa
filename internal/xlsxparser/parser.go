// =============================================================================
// Fiscal Report Transcriber - Spreadsheet Parser Module
// =============================================================================
//
// This module holds the two spreadsheet input adapters:
//   - ParseXLSX / ParseXLSXReader : Office Open XML workbooks (excelize)
//   - ParseXLSBytes               : legacy BIFF workbooks (extrame/xls)
//
// Both return the rows of one sheet as text cells. Number formats are applied
// by default, so dates read back as "02/01/2026". With raw_cell_values set,
// XLSX dates come through as serial day counts ("46024") instead, which is
// what profiles using the serial data_row predicate expect.
//
// The underlying libraries panic on some malformed files. Every entry point
// recovers and reports an *types.AdapterError instead.
//
// =============================================================================

package xlsxparser

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"

	"github.com/ginjaninja78/fiscal-transcriber/internal/config"
	"github.com/ginjaninja78/fiscal-transcriber/internal/types"
)

// =============================================================================
// XLSX
// =============================================================================

// ParseXLSX reads one sheet of an XLSX workbook.
//
// PARAMETERS:
//   - filePath: The path to the workbook.
//   - settings: The input settings from the profile (sheet, raw_cell_values).
//
// RETURNS:
//   - The parsed table.
//   - An *types.AdapterError if the workbook cannot be opened or read.
func ParseXLSX(filePath string, settings config.InputSettings) (*types.Table, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, types.NewAdapterError(types.FormatXLSX, filePath, "open", err)
	}
	defer file.Close()

	return ParseXLSXReader(filepath.Base(filePath), file, settings)
}

// ParseXLSXReader reads one sheet of an XLSX workbook from r.
func ParseXLSXReader(source string, r io.Reader, settings config.InputSettings) (table *types.Table, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			table = nil
			err = types.NewAdapterError(types.FormatXLSX, source, "read", fmt.Errorf("spreadsheet library crashed: %v", rec))
		}
	}()

	opts := excelize.Options{RawCellValue: settings.RawCellValues}

	workbook, err := excelize.OpenReader(r, opts)
	if err != nil {
		return nil, types.NewAdapterError(types.FormatXLSX, source, "open", err)
	}
	defer workbook.Close()

	sheet, err := selectSheet(workbook.GetSheetList(), settings.Sheet)
	if err != nil {
		return nil, types.NewAdapterError(types.FormatXLSX, source, "open", err)
	}

	cells, err := workbook.GetRows(sheet, opts)
	if err != nil {
		return nil, types.NewAdapterError(types.FormatXLSX, source, "read", err)
	}

	table = &types.Table{
		Source: source,
		Format: types.FormatXLSX,
		Rows:   make([]types.Row, len(cells)),
	}
	for i, row := range cells {
		table.Rows[i] = types.Row(row)
	}

	return table, nil
}

// selectSheet returns the named sheet, or the first sheet when name is empty.
func selectSheet(sheets []string, name string) (string, error) {
	if len(sheets) == 0 {
		return "", types.ErrEmptyInput
	}
	if name == "" {
		return sheets[0], nil
	}
	for _, sheet := range sheets {
		if sheet == name {
			return sheet, nil
		}
	}
	return "", fmt.Errorf("sheet %q not found (available: %v)", name, sheets)
}

// =============================================================================
// XLS (BIFF)
// =============================================================================

// ParseXLSBytes reads one sheet of a legacy XLS workbook held in memory.
func ParseXLSBytes(source string, data []byte, settings config.InputSettings) (table *types.Table, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			table = nil
			err = types.NewAdapterError(types.FormatXLS, source, "read", fmt.Errorf("xls library crashed: %v", rec))
		}
	}()

	if len(data) == 0 {
		return nil, types.NewAdapterError(types.FormatXLS, source, "read", types.ErrEmptyInput)
	}

	charset := settings.XLSCharset
	if charset == "" {
		charset = "utf-8"
	}

	workbook, err := xls.OpenReader(bytes.NewReader(data), charset)
	if err != nil {
		return nil, types.NewAdapterError(types.FormatXLS, source, "open", err)
	}

	sheet, err := xlsSheet(workbook, settings.Sheet)
	if err != nil {
		return nil, types.NewAdapterError(types.FormatXLS, source, "open", err)
	}

	table = &types.Table{Source: source, Format: types.FormatXLS}

	for i := 0; i <= int(sheet.MaxRow); i++ {
		row := sheet.Row(i)
		if row == nil {
			table.Rows = append(table.Rows, types.Row{})
			continue
		}

		// Cells before FirstCol are absent and read as "".
		cells := make(types.Row, 0, row.LastCol())
		for col := 0; col < row.LastCol(); col++ {
			cells = append(cells, row.Col(col))
		}
		table.Rows = append(table.Rows, cells)
	}

	return table, nil
}

func xlsSheet(workbook *xls.WorkBook, name string) (*xls.WorkSheet, error) {
	if workbook.NumSheets() == 0 {
		return nil, types.ErrEmptyInput
	}
	if name == "" {
		return checkSheet(workbook.GetSheet(0), 0)
	}
	for i := 0; i < workbook.NumSheets(); i++ {
		if sheet := workbook.GetSheet(i); sheet != nil && sheet.Name == name {
			return sheet, nil
		}
	}
	return nil, fmt.Errorf("sheet %q not found", name)
}

func checkSheet(sheet *xls.WorkSheet, index int) (*xls.WorkSheet, error) {
	if sheet == nil {
		return nil, fmt.Errorf("sheet %d cannot be read", index)
	}
	return sheet, nil
}
