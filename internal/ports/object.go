package ports

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/Sergey-Kirpa/squid/internal/app"
	"github.com/Sergey-Kirpa/squid/internal/logging"
	"github.com/Sergey-Kirpa/squid/internal/ratelimiting"
	"github.com/Sergey-Kirpa/squid/internal/reporting"
	"github.com/Sergey-Kirpa/squid/internal/store"
)

// MakeStoreObjectHandler accepts an object body for the url named in the
// query string and stores it. Responds with the content key.
func MakeStoreObjectHandler(
	storeObject app.StoreObject,
	rootLogger *slog.Logger,
	sentryMiddleware func(http.HandlerFunc) http.HandlerFunc,
) http.HandlerFunc {
	ipLimiter, _ := ratelimiting.NewTokenBucketRateLimiter(
		ratelimiting.RefillPerSecond(8),
		ratelimiting.BurstSize(480),
	)
	ipRateLimiter := ratelimiting.NewRequestBasedRateLimiter(
		ipLimiter,
		ratelimiting.IPKeyFunc,
	)

	middleware := ComposeMiddlewares(
		buildMetricsMiddleware("store_object"),
		logging.NewRequestLoggerMiddleware(rootLogger),
		sentryMiddleware,
		NewRateLimitMiddleware(ipRateLimiter, onLimitExceeded),
	)

	handler := func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		logger := logging.FromContext(ctx)

		objectURL := r.URL.Query().Get("url")
		if objectURL == "" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"success":false,"cause":"missing url parameter"}`))
			return
		}
		ctx = reporting.AddExtrasToContext(ctx, map[string]string{"objectURL": objectURL})

		key, size, err := storeObject(ctx, objectURL, r.Body)
		if err != nil {
			logger.Error("error storing object", "error", err.Error())
			statusCode := writeErrorResponse(ctx, w, err)
			logger.Info("returning response", "statusCode", statusCode, "reason", "error")
			return
		}

		logger.Info("returning response", "statusCode", http.StatusCreated, "reason", "success")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		fmt.Fprintf(w, `{"success":true,"key":"%s","size":%d}`, key.String(), size)
	}

	return middleware(handler)
}

// MakeFetchObjectHandler streams the stored object for the url named in the
// query string.
func MakeFetchObjectHandler(
	fetchObject app.FetchObject,
	rootLogger *slog.Logger,
	sentryMiddleware func(http.HandlerFunc) http.HandlerFunc,
) http.HandlerFunc {
	ipLimiter, _ := ratelimiting.NewTokenBucketRateLimiter(
		ratelimiting.RefillPerSecond(32),
		ratelimiting.BurstSize(960),
	)
	ipRateLimiter := ratelimiting.NewRequestBasedRateLimiter(
		ipLimiter,
		ratelimiting.IPKeyFunc,
	)

	middleware := ComposeMiddlewares(
		buildMetricsMiddleware("fetch_object"),
		logging.NewRequestLoggerMiddleware(rootLogger),
		sentryMiddleware,
		NewRateLimitMiddleware(ipRateLimiter, onLimitExceeded),
	)

	handler := func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		logger := logging.FromContext(ctx)

		objectURL := r.URL.Query().Get("url")
		if objectURL == "" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"success":false,"cause":"missing url parameter"}`))
			return
		}
		ctx = reporting.AddExtrasToContext(ctx, map[string]string{"objectURL": objectURL})

		// Bytes stream directly to the client, so errors after the first
		// chunk cannot change the status code anymore.
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("X-Squid-Key", store.KeyForURL(objectURL).String())

		written, err := fetchObject(ctx, objectURL, w)
		if err != nil {
			if written == 0 {
				logger.Error("error fetching object", "error", err.Error())
				statusCode := writeErrorResponse(ctx, w, err)
				logger.Info("returning response", "statusCode", statusCode, "reason", "error")
				return
			}
			logger.Error("error fetching object mid-stream", "error", err.Error(), "written", written)
			return
		}

		logger.Info("returning response", "statusCode", http.StatusOK, "reason", "success", "contentLength", written)
	}

	return middleware(handler)
}

// MakePurgeObjectHandler removes the stored object for the url named in the
// query string.
func MakePurgeObjectHandler(
	purgeObject app.PurgeObject,
	rootLogger *slog.Logger,
	sentryMiddleware func(http.HandlerFunc) http.HandlerFunc,
) http.HandlerFunc {
	middleware := ComposeMiddlewares(
		buildMetricsMiddleware("purge_object"),
		logging.NewRequestLoggerMiddleware(rootLogger),
		sentryMiddleware,
	)

	handler := func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		logger := logging.FromContext(ctx)

		objectURL := r.URL.Query().Get("url")
		if objectURL == "" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"success":false,"cause":"missing url parameter"}`))
			return
		}

		if err := purgeObject(ctx, objectURL); err != nil {
			logger.Error("error purging object", "error", err.Error())
			statusCode := writeErrorResponse(ctx, w, err)
			logger.Info("returning response", "statusCode", statusCode, "reason", "error")
			return
		}

		logger.Info("returning response", "statusCode", http.StatusNoContent, "reason", "success")
		w.WriteHeader(http.StatusNoContent)
	}

	return middleware(handler)
}
