package store

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKeyForURL(t *testing.T) {
	t.Parallel()

	a := KeyForURL("http://example.com/a")
	b := KeyForURL("http://example.com/b")

	require.Equal(t, a, KeyForURL("http://example.com/a"))
	require.NotEqual(t, a, b)
	require.Len(t, a.String(), 32)
}

func TestParseKey(t *testing.T) {
	t.Parallel()

	t.Run("round trip", func(t *testing.T) {
		k := KeyForURL("http://example.com/object")
		parsed, err := ParseKey(k.String())
		require.NoError(t, err)
		require.Equal(t, k, parsed)
	})

	t.Run("rejects non-hex", func(t *testing.T) {
		_, err := ParseKey("zzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzz")
		require.Error(t, err)
	})

	t.Run("rejects wrong length", func(t *testing.T) {
		_, err := ParseKey("abcdef")
		require.Error(t, err)
	})
}
