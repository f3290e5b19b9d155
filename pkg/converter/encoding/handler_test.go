package encoding_test

import (
	"testing"

	"github.com/jmadden/readme-docs-migration-github/pkg/converter/encoding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	testCases := []struct {
		name     string
		fallback string
		input    []byte
		expected string
		encoding string
	}{
		{"utf-8 passes through", "", []byte("# Café\n"), "# Café\n", "utf-8"},
		{"utf-8 bom stripped", "", append([]byte{0xEF, 0xBB, 0xBF}, "hi"...), "hi", "utf-8"},
		{"latin-1 with fallback", "iso-8859-1", []byte{'C', 'a', 'f', 0xE9}, "Café", "windows-1252"},
		{"utf-16le bom", "", []byte{0xFF, 0xFE, 'h', 0, 'i', 0}, "hi", "utf-16le"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			out, name, err := encoding.NewCharsetHandler(tc.fallback).Decode(tc.input)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, string(out))
			assert.Equal(t, tc.encoding, name)
		})
	}
}

func TestIsBinary(t *testing.T) {
	h := encoding.NewCharsetHandler("")
	assert.False(t, h.IsBinary(nil))
	assert.False(t, h.IsBinary([]byte("# Title\n\nBody text.\n")))
	assert.False(t, h.IsBinary([]byte("<svg xmlns=\"http://www.w3.org/2000/svg\"></svg>")))
	assert.False(t, h.IsBinary([]byte{0xFF, 0xFE, 'h', 0}))
	assert.True(t, h.IsBinary([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")))
	assert.True(t, h.IsBinary([]byte("text with a \x00 nul byte")))
}

func TestValidFallback(t *testing.T) {
	assert.True(t, encoding.ValidFallback(""))
	assert.True(t, encoding.ValidFallback("windows-1252"))
	assert.True(t, encoding.ValidFallback("latin1"))
	assert.False(t, encoding.ValidFallback("klingon"))
}
