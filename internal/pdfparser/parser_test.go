package pdfparser

import (
	"crypto/rand"
	"errors"
	"strings"
	"testing"

	"github.com/ledongthuc/pdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ginjaninja78/fiscal-transcriber/internal/config"
	"github.com/ginjaninja78/fiscal-transcriber/internal/types"
)

func TestSplitRuns(t *testing.T) {
	// 10pt font: a space is 3 units wide, two spaces start a new cell.
	runs := []pdf.Text{
		{S: "02/01/2026", X: 10, W: 50, FontSize: 10},
		{S: "1177", X: 80, W: 20, FontSize: 10},
		{S: "Mouse", X: 120, W: 25, FontSize: 10},
		{S: "sem", X: 147, W: 15, FontSize: 10},
		{S: "fio", X: 162, W: 15, FontSize: 10},
	}

	assert.Equal(t, types.Row{"02/01/2026", "1177", "Mouse semfio"}, splitRuns(runs, 2))
}

func TestSplitRunsWideGapSetting(t *testing.T) {
	runs := []pdf.Text{
		{S: "Total:", X: 0, W: 30, FontSize: 10},
		{S: "1,30", X: 40, W: 20, FontSize: 10},
	}

	assert.Equal(t, types.Row{"Total:", "1,30"}, splitRuns(runs, 2))
	assert.Equal(t, types.Row{"Total: 1,30"}, splitRuns(runs, 4))
}

func TestSplitLines(t *testing.T) {
	text := "Percentual de recolhimento efetivo   1,30\n\n02/01/2026  1177\tMouse\n   \n"

	rows, err := splitLines(strings.NewReader(text), 2)
	require.NoError(t, err)

	assert.Equal(t, []types.Row{
		{"Percentual de recolhimento efetivo", "1,30"},
		{"02/01/2026", "1177", "Mouse"},
	}, rows)
}

func TestParseBytesMalformed(t *testing.T) {
	noise := make([]byte, 2048)
	_, err := rand.Read(noise)
	require.NoError(t, err)

	for name, data := range map[string][]byte{"noise": noise, "truncated": []byte("%PDF-1.4\n1 0 obj\n")} {
		t.Run(name, func(t *testing.T) {
			_, err := ParseBytes(name+".pdf", data, config.InputSettings{})
			require.Error(t, err)

			var adapterErr *types.AdapterError
			require.True(t, errors.As(err, &adapterErr))
			assert.Equal(t, types.FormatPDF, adapterErr.Format)
		})
	}
}

func TestParseBytesEmpty(t *testing.T) {
	_, err := ParseBytes("empty.pdf", nil, config.InputSettings{})
	assert.ErrorIs(t, err, types.ErrEmptyInput)
}
