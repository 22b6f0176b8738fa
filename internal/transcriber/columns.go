package transcriber

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/ginjaninja78/fiscal-transcriber/internal/types"
)

var columnLetters = regexp.MustCompile(`^[A-Z]{1,3}$`)

// columns resolves cell references against a profile layout.
type columns struct {
	fields map[string]int
}

// resolve turns a reference into a 0-based column index.
//
// A reference is tried as a layout field name ("product_description"), then
// as a 0-based integer ("9"), then as an upper-case column letter ("J").
func (c columns) resolve(ref string) (int, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return 0, fmt.Errorf("empty column reference")
	}

	if idx, ok := c.fields[ref]; ok {
		if idx < 0 {
			return 0, fmt.Errorf("field %q maps to negative column %d", ref, idx)
		}
		return checkBound(idx)
	}

	if idx, err := strconv.Atoi(ref); err == nil {
		if idx < 0 {
			return 0, fmt.Errorf("negative column index %d", idx)
		}
		return checkBound(idx)
	}

	if columnLetters.MatchString(ref) {
		n, err := excelize.ColumnNameToNumber(ref)
		if err != nil {
			return 0, fmt.Errorf("invalid column %q: %w", ref, err)
		}
		return n - 1, nil
	}

	return 0, fmt.Errorf("unknown field %q", ref)
}

// checkBound rejects indices past the last spreadsheet column. Writing there
// would pad every matching row to that width.
func checkBound(idx int) (int, error) {
	if idx >= excelize.MaxColumns {
		return 0, fmt.Errorf("column index %d beyond the last spreadsheet column (%d)", idx, excelize.MaxColumns-1)
	}
	return idx, nil
}

// setCell writes value at idx, growing the row with empty cells if needed.
func setCell(row types.Row, idx int, value string) types.Row {
	if idx >= len(row) {
		row = row.Pad(idx + 1)
	}
	row[idx] = value
	return row
}
