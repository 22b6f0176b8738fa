package textenc

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	t.Run("utf-8 with BOM", func(t *testing.T) {
		got, err := Decode(append([]byte{0xEF, 0xBB, 0xBF}, "DÉBITOS"...), "UTF-8")
		require.NoError(t, err)
		assert.Equal(t, "DÉBITOS", got)
	})

	t.Run("latin1 bytes are not utf-8", func(t *testing.T) {
		_, err := Decode([]byte{'D', 0xC9, 'B'}, "utf-8")
		assert.Error(t, err)
	})

	t.Run("latin1", func(t *testing.T) {
		got, err := Decode([]byte("Total sa\xeddas:"), "iso-8859-1")
		require.NoError(t, err)
		assert.Equal(t, "Total saídas:", got)
	})

	t.Run("unknown", func(t *testing.T) {
		_, err := Decode([]byte("x"), "ebcdic")
		assert.EqualError(t, err, `unsupported encoding "ebcdic"`)
	})
}

func TestNewWriter(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, "cp1252")
	require.NoError(t, err)

	_, err = w.Write([]byte("SAÍDAS"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	assert.Equal(t, []byte("SA\xcdDAS"), buf.Bytes())
}
