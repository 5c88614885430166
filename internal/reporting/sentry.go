package reporting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"time"

	"github.com/getsentry/sentry-go"
	sentryhttp "github.com/getsentry/sentry-go/http"

	"github.com/Sergey-Kirpa/squid/internal/config"
	"github.com/Sergey-Kirpa/squid/internal/logging"
)

// Content keys are 32 hex digits and swap paths embed parts of them; scrub
// both so error fingerprints group by failure, not by object.
var contentKeyRx = regexp.MustCompile(`\b[0-9a-fA-F]{32}\b`)
var hostRx = regexp.MustCompile(`\[:{0,2}([0-9a-f]{0,4}:?){1,8}\]:\d+`)

func sanitizeError(err string) string {
	err = contentKeyRx.ReplaceAllString(err, "<key>")
	err = hostRx.ReplaceAllString(err, "<host>")
	return err
}

func Report(ctx context.Context, err error, extras ...map[string]string) {
	hub := sentry.GetHubFromContext(ctx)
	logger := logging.FromContext(ctx)
	if hub == nil {
		logger.Warn("Failed to get Sentry hub from context", "Error:", err, "Extras:", extras)
		return
	}

	logger.Error(
		"Reporting error to Sentry",
		slog.String("error", err.Error()),
		slog.Any("extras", extras),
	)

	hub.WithScope(func(scope *sentry.Scope) {
		meta := MetaFromContext(ctx)
		scope.SetTags(meta.tags)
		for key, value := range meta.extras {
			scope.SetExtra(key, value)
		}
		scope.SetExtra("secondsSinceStart", time.Since(meta.startedAt).Seconds())

		for _, extra := range extras {
			if extra == nil {
				continue
			}
			for key, value := range extra {
				scope.SetExtra(key, value)
			}
		}

		if err == nil {
			err = errors.New("No error provided")
		}

		scope.SetFingerprint([]string{"{{ default }}", sanitizeError(err.Error())})
		hub.CaptureException(err)
	})
}

func addMetaMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		userAgent := r.UserAgent()
		if userAgent == "" {
			userAgent = "<missing>"
		}
		methodPath := fmt.Sprintf("%s %s", r.Method, r.URL.Path)

		ctx = AddTagsToContext(ctx,
			map[string]string{
				"userAgent":  userAgent,
				"methodPath": methodPath,
			},
		)

		ctx = setStartedAtInContext(ctx, time.Now())

		next(w, r.WithContext(ctx))
	}
}

func InitSentryMiddleware(sentryDSN string) (func(http.HandlerFunc) http.HandlerFunc, func(), error) {
	err := sentry.Init(sentry.ClientOptions{
		Dsn:              sentryDSN,
		EnableTracing:    true,
		TracesSampleRate: 1.0 / 100.0,
	})
	if err != nil {
		return nil, nil, err
	}

	sentryHandler := sentryhttp.New(sentryhttp.Options{})

	// Wrap sentry middleware in a http.HandlerFunc
	middleware := func(next http.HandlerFunc) http.HandlerFunc {
		withAddTags := addMetaMiddleware(next)
		return func(w http.ResponseWriter, r *http.Request) {
			sentryHandler.HandleFunc(withAddTags).ServeHTTP(w, r)
		}
	}

	flush := func() {
		sentry.Flush(5 * time.Second)
	}

	return middleware, flush, nil
}

func NewSentryMiddlewareOrMock(conf config.Config) (func(http.HandlerFunc) http.HandlerFunc, func(), error) {
	if conf.SentryDSN() != "" {
		return InitSentryMiddleware(conf.SentryDSN())
	}

	if conf.IsDevelopment() {
		middleware := func(next http.HandlerFunc) http.HandlerFunc {
			return next
		}
		flush := func() {}
		return middleware, flush, nil
	}

	return nil, nil, fmt.Errorf("Missing Sentry DSN in non-development environment")
}
