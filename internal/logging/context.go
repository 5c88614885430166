package logging

import (
	"context"
	"log/slog"
	"os"
)

type requestLoggerContextKey struct{}

// FromContext returns the request logger stored in ctx. Code that runs
// outside a request, store rebuild or swap-out completions for example,
// gets a marked fallback so its output is still structured.
func FromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(requestLoggerContextKey{}).(*slog.Logger); ok && logger != nil {
		return logger
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, nil)).With(slog.String("logger", "fallback"))
}

func AddToContext(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, requestLoggerContextKey{}, logger)
}

// AddMetaToContext attaches the given attributes to the context logger so
// every later log line in this request carries them.
func AddMetaToContext(ctx context.Context, attrs ...slog.Attr) context.Context {
	args := make([]any, 0, len(attrs))
	for _, attr := range attrs {
		args = append(args, attr)
	}
	return AddToContext(ctx, FromContext(ctx).With(args...))
}
