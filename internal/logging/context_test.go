package logging

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFromContext(t *testing.T) {
	t.Parallel()

	t.Run("returns the stored logger", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		logger := slog.New(slog.NewJSONHandler(&buf, nil))
		ctx := AddToContext(context.Background(), logger)

		FromContext(ctx).Info("hello")
		require.Contains(t, buf.String(), `"msg":"hello"`)
	})

	t.Run("falls back to a marked logger", func(t *testing.T) {
		t.Parallel()

		logger := FromContext(context.Background())
		require.NotNil(t, logger)
	})
}

func TestAddMetaToContext(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	ctx := AddToContext(context.Background(), slog.New(slog.NewJSONHandler(&buf, nil)))
	ctx = AddMetaToContext(ctx, slog.String("key", "d41d8cd9"), slog.Int64("size", 42))

	FromContext(ctx).Info("stored")
	require.Contains(t, buf.String(), `"key":"d41d8cd9"`)
	require.Contains(t, buf.String(), `"size":42`)
}
