package csvio

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	t.Run("simple document", func(t *testing.T) {
		headers, rows, err := Parse(strings.NewReader("name,sku,stock\nHat,HAT-1,5\nCap,CAP-1,2"))

		require.NoError(t, err)
		assert.Equal(t, []string{"name", "sku", "stock"}, headers)
		require.Len(t, rows, 2)
		assert.Equal(t, []string{"Hat", "HAT-1", "5"}, rows[0].Fields)
		assert.Equal(t, 2, rows[0].Line)
		assert.Equal(t, 3, rows[1].Line)
	})

	t.Run("quoted field with embedded comma and escaped quote", func(t *testing.T) {
		csv := "name,sku\n\"Aviator \"\"XL\"\", gold\",AV-1\n"
		_, rows, err := Parse(strings.NewReader(csv))

		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, `Aviator "XL", gold`, rows[0].Fields[0])
	})

	t.Run("embedded newline inside quotes", func(t *testing.T) {
		csv := "name,description\nHat,\"line one\nline two\"\n"
		_, rows, err := Parse(strings.NewReader(csv))

		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, "line one\nline two", rows[0].Fields[1])
	})

	t.Run("short row is right-padded", func(t *testing.T) {
		_, rows, err := Parse(strings.NewReader("name,sku,stock\nHat\n"))

		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, []string{"Hat", "", ""}, rows[0].Fields)
	})

	t.Run("blank lines are discarded", func(t *testing.T) {
		_, rows, err := Parse(strings.NewReader("name,sku\n\nHat,H-1\n\n\nCap,C-1\n"))

		require.NoError(t, err)
		assert.Len(t, rows, 2)
	})

	t.Run("fields are trimmed", func(t *testing.T) {
		_, rows, err := Parse(strings.NewReader("name,sku\n  Hat  ,  H-1 \n"))

		require.NoError(t, err)
		assert.Equal(t, []string{"Hat", "H-1"}, rows[0].Fields)
	})

	t.Run("UTF-8 BOM is stripped", func(t *testing.T) {
		headers, _, err := Parse(strings.NewReader("\xEF\xBB\xBFname,sku\nHat,H-1"))

		require.NoError(t, err)
		assert.Equal(t, "name", headers[0])
	})

	t.Run("empty input", func(t *testing.T) {
		_, _, err := Parse(strings.NewReader(""))
		assert.ErrorIs(t, err, ErrEmptyFile)
	})

	t.Run("invalid encoding", func(t *testing.T) {
		_, _, err := Parse(bytes.NewReader([]byte{0xff, 0xfe, 0x00, 0x41}))
		assert.ErrorIs(t, err, ErrInvalidEncoding)
	})
}

func TestWriterRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	title := `Aviator "XL", gold`
	require.NoError(t, w.WriteRow([]string{"name", "sku"}))
	require.NoError(t, w.WriteRow([]string{title, "AV-1"}))
	require.NoError(t, w.Flush())

	_, rows, err := Parse(&buf)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, title, rows[0].Fields[0])
}

func TestTokenizerReadRowEOF(t *testing.T) {
	tok, err := NewTokenizer(strings.NewReader("name\nHat\n"))
	require.NoError(t, err)
	require.NoError(t, tok.ParseHeader())

	row, err := tok.ReadRow()
	require.NoError(t, err)
	assert.Equal(t, "Hat", row.Fields[0])

	_, err = tok.ReadRow()
	assert.Equal(t, io.EOF, err)
}
