package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	_ "golang.org/x/crypto/x509roots/fallback"
	"golang.org/x/time/rate"

	"github.com/Sergey-Kirpa/squid/internal/adapters/database"
	"github.com/Sergey-Kirpa/squid/internal/adapters/swapdir"
	"github.com/Sergey-Kirpa/squid/internal/adapters/swaplog"
	"github.com/Sergey-Kirpa/squid/internal/app"
	"github.com/Sergey-Kirpa/squid/internal/config"
	"github.com/Sergey-Kirpa/squid/internal/logging"
	"github.com/Sergey-Kirpa/squid/internal/ports"
	"github.com/Sergey-Kirpa/squid/internal/reporting"
	"github.com/Sergey-Kirpa/squid/internal/store"
	"github.com/Sergey-Kirpa/squid/internal/telemetry"
)

func main() {
	ctx := context.Background()

	instanceID := uuid.New().String()

	conf, err := config.ConfigFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %s\n", err.Error())
		os.Exit(1)
	}

	logger := logging.NewLogger(conf.LogFile()).With("instanceID", instanceID)

	fail := func(msg string, args ...any) {
		logger.Error(msg, args...)
		os.Exit(1)
	}

	logger.Info("Loaded config", "config", conf.NonSensitiveString())

	shutdownOTel, err := telemetry.SetupOTelSDK(ctx, "squid")
	if err != nil {
		fail("Failed to set up OTel SDK", "error", err.Error())
	}
	defer func() {
		if err := shutdownOTel(context.Background()); err != nil {
			logger.Error("Failed to shut down OTel SDK", "error", err.Error())
		}
	}()

	storeMetrics, err := telemetry.NewStoreMetrics()
	if err != nil {
		fail("Failed to create store metrics", "error", err.Error())
	}

	sentryMiddleware, flushSentry, err := reporting.NewSentryMiddlewareOrMock(conf)
	if err != nil {
		fail("Failed to initialize Sentry", "error", err.Error())
	}
	defer flushSentry()
	logger.Info("Initialized Sentry middleware")

	sd, err := swapdir.New(0, conf.CacheDir(), conf.CacheDirL1(), conf.CacheDirL2(), logger.With("component", "swapdir"))
	if err != nil {
		fail("Failed to initialize swap directory", "error", err.Error())
	}
	if conf.IsDevelopment() {
		if err := sd.Init(); err != nil {
			fail("Failed to initialize swap directory tree", "error", err.Error())
		}
	}

	var objectSwapLog store.SwapLog
	if conf.IsDevelopment() && conf.DBUsername() == "" {
		objectSwapLog = swaplog.NewInMemorySwapLog()
		logger.Info("Using in-memory swap log")
	} else {
		logger.Info("Initializing database connection")
		db, err := database.NewCloudsqlPostgresDatabase(conf)
		if err != nil {
			fail("Failed to initialize database connection", "error", err.Error())
		}
		logger.Info("Initialized database connection")

		schemaName := database.GetSchemaName(!conf.IsProduction())

		err = database.NewDatabaseMigrator(db, logger.With("component", "migrator")).Migrate(ctx, schemaName)
		if err != nil {
			fail("Failed to migrate database", "error", err.Error())
		}

		objectSwapLog = swaplog.NewPostgresSwapLog(db, schemaName)
	}

	objectStore := store.New(
		store.Config{
			HotMemoryTTL: 1 * time.Minute,
			SwapOutRate:  rate.Limit(64),
			SwapOutBurst: 128,
		},
		sd,
		objectSwapLog,
		storeMetrics,
		logger.With("component", "store"),
	)
	defer objectStore.Close()

	// Move the allocation watermark past every replayed locator so fresh
	// swap-outs never collide with rebuilt ones.
	records, err := objectSwapLog.List(ctx)
	if err != nil {
		fail("Failed to list swap log", "error", err.Error())
	}
	for _, rec := range records {
		sd.Advance(rec.Locator.Filen)
	}

	validated, err := objectStore.Rebuild(ctx)
	if err != nil {
		fail("Failed to rebuild store from swap log", "error", err.Error())
	}
	logger.Info("Rebuilt store from swap log", "validated", validated)

	storeObject := app.BuildStoreObject(objectStore)
	fetchObject := app.BuildFetchObject(objectStore)
	purgeObject := app.BuildPurgeObject(objectStore)

	mux := http.NewServeMux()

	mux.HandleFunc(
		"PUT /v1/object",
		ports.MakeStoreObjectHandler(
			storeObject,
			logger.With("port", "storeobject"),
			sentryMiddleware,
		),
	)
	mux.HandleFunc(
		"GET /v1/object",
		ports.MakeFetchObjectHandler(
			fetchObject,
			logger.With("port", "fetchobject"),
			sentryMiddleware,
		),
	)
	mux.HandleFunc(
		"DELETE /v1/object",
		ports.MakePurgeObjectHandler(
			purgeObject,
			logger.With("port", "purgeobject"),
			sentryMiddleware,
		),
	)

	logger.Info("Init complete")
	err = http.ListenAndServe(fmt.Sprintf(":%s", conf.Port()), otelhttp.NewHandler(mux, "squid"))
	if errors.Is(err, http.ErrServerClosed) {
		logger.Info("Server shutdown")
	} else {
		fail("Server error", "error", err.Error())
	}
}
