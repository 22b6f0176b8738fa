package writer

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/ginjaninja78/fiscal-transcriber/internal/config"
	"github.com/ginjaninja78/fiscal-transcriber/internal/csvparser"
	"github.com/ginjaninja78/fiscal-transcriber/internal/types"
)

var sampleRows = []types.Row{
	{"Percentual de recolhimento efetivo", "1,30", "", ""},
	{"02/01/2026", "1177", " Mouse ", "1,30", "1177-Mouse"},
	{"", "Total:", "say \"hi\"; bye", "1,30", "-"},
	{"DÉBITOS PELAS SAÍDAS", "", "", ""},
}

func TestNew(t *testing.T) {
	w, err := New(config.OutputSettings{Format: "CSV"})
	require.NoError(t, err)
	assert.Equal(t, ".csv", w.Extension())

	w, err = New(config.OutputSettings{})
	require.NoError(t, err)
	assert.Equal(t, ContentTypeXLSX, w.ContentType())

	_, err = New(config.OutputSettings{Format: "ods"})
	assert.True(t, errors.Is(err, types.ErrUnsupportedFormat))
}

func TestCSVRoundTrip(t *testing.T) {
	for _, encoding := range []string{"utf-8", "latin1", "windows-1252"} {
		t.Run(encoding, func(t *testing.T) {
			data, err := Render(&CSVWriter{Delimiter: ";", Encoding: encoding}, sampleRows)
			require.NoError(t, err)

			table, err := csvparser.ParseBytes("out.csv", data, config.InputSettings{
				Delimiter: ";",
				Encodings: []string{"utf-8", encoding},
			})
			require.NoError(t, err)
			assert.Equal(t, sampleRows, table.Rows)
		})
	}
}

func TestCSVNoHeader(t *testing.T) {
	data, err := Render(&CSVWriter{}, []types.Row{{"a", "b"}})
	require.NoError(t, err)
	assert.Equal(t, "a;b\n", string(data))
}

func TestXLSXWriter(t *testing.T) {
	w := &XLSXWriter{
		Sheet:        "Apuracao",
		ColumnWidths: map[string]float64{"A": 14, "B:C": 30},
		Align:        map[string]string{"D": "center"},
	}

	data, err := Render(w, sampleRows)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Apuracao"}, f.GetSheetList())

	value, err := f.GetCellValue("Apuracao", "B2")
	require.NoError(t, err)
	assert.Equal(t, "1177", value)

	value, err = f.GetCellValue("Apuracao", "E2")
	require.NoError(t, err)
	assert.Equal(t, "1177-Mouse", value)

	// The first row is data, not a header.
	value, err = f.GetCellValue("Apuracao", "A1")
	require.NoError(t, err)
	assert.Equal(t, "Percentual de recolhimento efetivo", value)

	width, err := f.GetColWidth("Apuracao", "C")
	require.NoError(t, err)
	assert.Equal(t, float64(30), width)
}

func TestXLSXWriterInvalidLayout(t *testing.T) {
	_, err := Render(&XLSXWriter{ColumnWidths: map[string]float64{"1": 10}}, sampleRows)
	assert.Error(t, err)
}

func TestContentType(t *testing.T) {
	assert.Equal(t, ContentTypeCSV, ContentType("csv"))
	assert.Equal(t, ContentTypeXLSX, ContentType("xlsx"))
	assert.Equal(t, "application/octet-stream", ContentType("ods"))
}
