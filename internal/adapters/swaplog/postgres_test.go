package swaplog

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Sergey-Kirpa/squid/internal/adapters/database"
	"github.com/Sergey-Kirpa/squid/internal/store"
)

func TestPostgresSwapLog(t *testing.T) {
	t.Parallel()

	if testing.Short() {
		t.Skip("skipping db tests in short mode.")
	}

	ctx := context.Background()

	db, err := database.NewPostgresDatabase(database.LOCAL_CONNECTION_STRING)
	require.NoError(t, err)

	schema := database.GetSchemaName(true)
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	require.NoError(t, database.NewDatabaseMigrator(db, logger).Migrate(ctx, schema))

	l := NewPostgresSwapLog(db, schema)

	a := testRecord("http://example.com/pg-a", 11, 100)
	b := testRecord("http://example.com/pg-b", 12, 200)
	t.Cleanup(func() {
		_ = l.Remove(ctx, a.Key)
		_ = l.Remove(ctx, b.Key)
	})

	require.NoError(t, l.Record(ctx, a))
	require.NoError(t, l.Record(ctx, b))

	recs, err := l.List(ctx)
	require.NoError(t, err)
	require.Contains(t, keysOf(recs), a.Key)
	require.Contains(t, keysOf(recs), b.Key)

	t.Run("record upserts by content key", func(t *testing.T) {
		updated := a
		updated.Locator.Filen = 99
		require.NoError(t, l.Record(ctx, updated))

		recs, err := l.List(ctx)
		require.NoError(t, err)
		for _, rec := range recs {
			if rec.Key == a.Key {
				require.Equal(t, uint64(99), rec.Locator.Filen)
			}
		}
	})

	t.Run("remove", func(t *testing.T) {
		require.NoError(t, l.Remove(ctx, a.Key))

		recs, err := l.List(ctx)
		require.NoError(t, err)
		require.NotContains(t, keysOf(recs), a.Key)

		require.NoError(t, l.Remove(ctx, a.Key))
	})
}

func keysOf(recs []store.SwapLogRecord) []store.Key {
	keys := make([]store.Key, 0, len(recs))
	for _, rec := range recs {
		keys = append(keys, rec.Key)
	}
	return keys
}
