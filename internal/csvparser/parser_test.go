package csvparser

import (
	"crypto/rand"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ginjaninja78/fiscal-transcriber/internal/config"
	"github.com/ginjaninja78/fiscal-transcriber/internal/types"
)

func defaultSettings() config.InputSettings {
	return config.InputSettings{Delimiter: ";", Encodings: []string{"utf-8", "latin1"}}
}

func TestParseBytesSemicolon(t *testing.T) {
	data := []byte("Percentual de recolhimento efetivo;1,30\n02/01/2026;1177; Mouse \n\n;Total:;10,00\n")

	table, err := ParseBytes("report.csv", data, defaultSettings())
	require.NoError(t, err)

	assert.Equal(t, "utf-8", table.Encoding)
	assert.Equal(t, types.FormatCSV, table.Format)
	require.Len(t, table.Rows, 4)
	assert.Equal(t, types.Row{"02/01/2026", "1177", " Mouse "}, table.Rows[1])
	assert.Empty(t, table.Rows[2])
	assert.Equal(t, types.Row{"", "Total:", "10,00"}, table.Rows[3])
}

func TestParseBytesLatin1Fallback(t *testing.T) {
	data := []byte("D\xc9BITOS PELAS SA\xcdDAS;5,00\r\n")

	table, err := ParseBytes("report.csv", data, defaultSettings())
	require.NoError(t, err)

	assert.Equal(t, "latin1", table.Encoding)
	assert.Equal(t, types.Row{"DÉBITOS PELAS SAÍDAS", "5,00"}, table.Rows[0])
}

func TestParseBytesEncodingExhausted(t *testing.T) {
	settings := defaultSettings()
	settings.Encodings = []string{"utf-8"}

	_, err := ParseBytes("report.csv", []byte("D\xc9BITOS"), settings)

	var adapterErr *types.AdapterError
	require.True(t, errors.As(err, &adapterErr))
	assert.Equal(t, "decode", adapterErr.Stage)
}

func TestParseBytesDelimiterFallback(t *testing.T) {
	tests := []struct {
		name      string
		delimiter string
		data      string
		want      types.Row
	}{
		{name: "comma file with semicolon setting", delimiter: ";", data: "a,b,c\n1,2,3\n", want: types.Row{"a", "b", "c"}},
		{name: "tab file with auto", delimiter: "auto", data: "a\tb\n1\t2\n", want: types.Row{"a", "b"}},
		{name: "pipe alias", delimiter: "pipe", data: "a|b\n", want: types.Row{"a", "b"}},
		{name: "single column stays", delimiter: ";", data: "only\nvalues\n", want: types.Row{"only"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			settings := defaultSettings()
			settings.Delimiter = tt.delimiter

			table, err := ParseBytes("x.csv", []byte(tt.data), settings)
			require.NoError(t, err)
			assert.Equal(t, tt.want, table.Rows[0])
		})
	}
}

func TestParseBytesQuotedBlankLine(t *testing.T) {
	data := []byte("\"line one\n\nline three\";x\nnext;row\n")

	table, err := ParseBytes("x.csv", data, defaultSettings())
	require.NoError(t, err)

	require.Len(t, table.Rows, 2)
	assert.Equal(t, "line one\n\nline three", table.Rows[0][0])
}

func TestParseBytesBareQuoteKeepsBlankLines(t *testing.T) {
	data := []byte("01/01/2026;1177;Tubo 1/2\"\n\n02/01/2026;1178;Mouse\n\nTotal:;;\n")

	table, err := ParseBytes("x.csv", data, defaultSettings())
	require.NoError(t, err)

	require.Len(t, table.Rows, 5)
	assert.Equal(t, types.Row{"01/01/2026", "1177", "Tubo 1/2\""}, table.Rows[0])
	assert.Empty(t, table.Rows[1])
	assert.Equal(t, types.Row{"02/01/2026", "1178", "Mouse"}, table.Rows[2])
	assert.Empty(t, table.Rows[3])
	assert.Equal(t, types.Row{"Total:", "", ""}, table.Rows[4])
}

func TestParseBytesLeadingAndTrailingBlankLines(t *testing.T) {
	table, err := ParseBytes("x.csv", []byte("\na;b\n\n\n"), defaultSettings())
	require.NoError(t, err)

	require.Len(t, table.Rows, 4)
	assert.Empty(t, table.Rows[0])
	assert.Equal(t, types.Row{"a", "b"}, table.Rows[1])
	assert.Empty(t, table.Rows[2])
	assert.Empty(t, table.Rows[3])
}

func TestParseBytesNoTrailingNewline(t *testing.T) {
	table, err := ParseBytes("x.csv", []byte("a;b\n\nc;d"), defaultSettings())
	require.NoError(t, err)

	require.Len(t, table.Rows, 3)
	assert.Equal(t, types.Row{"c", "d"}, table.Rows[2])
}

func TestParseBytesRejectsBinary(t *testing.T) {
	noise := make([]byte, 512)
	_, err := rand.Read(noise)
	require.NoError(t, err)
	noise[10] = 0

	_, err = ParseBytes("noise.csv", noise, defaultSettings())
	require.Error(t, err)

	var adapterErr *types.AdapterError
	assert.True(t, errors.As(err, &adapterErr))
}

func TestParseBytesEmpty(t *testing.T) {
	_, err := ParseBytes("empty.csv", []byte(" \n"), defaultSettings())
	assert.ErrorIs(t, err, types.ErrEmptyInput)
}

func TestParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "apuracao.csv")
	require.NoError(t, os.WriteFile(path, []byte("a;b\n"), 0o644))

	table, err := Parse(path, defaultSettings())
	require.NoError(t, err)
	assert.Equal(t, "apuracao.csv", table.Source)

	_, err = Parse(filepath.Join(t.TempDir(), "missing.csv"), defaultSettings())
	var adapterErr *types.AdapterError
	require.True(t, errors.As(err, &adapterErr))
	assert.Equal(t, "open", adapterErr.Stage)
}
