package swaplog

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Sergey-Kirpa/squid/internal/store"
	"github.com/Sergey-Kirpa/squid/internal/swapio"
)

func testRecord(url string, filen uint64, size int64) store.SwapLogRecord {
	return store.SwapLogRecord{
		Key:       store.KeyForURL(url),
		Locator:   swapio.Locator{Dirn: 0, Filen: filen},
		Size:      size,
		SwappedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
}

func TestInMemorySwapLog(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	l := NewInMemorySwapLog()

	recs, err := l.List(ctx)
	require.NoError(t, err)
	require.Empty(t, recs)

	a := testRecord("http://example.com/a", 1, 10)
	b := testRecord("http://example.com/b", 2, 20)
	require.NoError(t, l.Record(ctx, a))
	require.NoError(t, l.Record(ctx, b))

	recs, err = l.List(ctx)
	require.NoError(t, err)
	require.Equal(t, []store.SwapLogRecord{a, b}, recs)

	t.Run("record for an existing key overwrites", func(t *testing.T) {
		updated := a
		updated.Locator = swapio.Locator{Dirn: 0, Filen: 9}
		require.NoError(t, l.Record(ctx, updated))

		recs, err := l.List(ctx)
		require.NoError(t, err)
		require.Equal(t, []store.SwapLogRecord{updated, b}, recs)
	})

	t.Run("remove", func(t *testing.T) {
		require.NoError(t, l.Remove(ctx, a.Key))

		recs, err := l.List(ctx)
		require.NoError(t, err)
		require.Equal(t, []store.SwapLogRecord{b}, recs)

		// Removing a missing key is not an error.
		require.NoError(t, l.Remove(ctx, a.Key))
	})
}
