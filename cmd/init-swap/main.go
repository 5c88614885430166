package main

import (
	"fmt"
	"os"

	"github.com/Sergey-Kirpa/squid/internal/adapters/swapdir"
	"github.com/Sergey-Kirpa/squid/internal/config"
	"github.com/Sergey-Kirpa/squid/internal/logging"
)

// Creates the swap directory fanout so the server can start writing swap
// files immediately. Safe to run on an already initialized cache directory.
func main() {
	conf, err := config.ConfigFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %s\n", err.Error())
		os.Exit(1)
	}

	logger := logging.NewLogger(conf.LogFile())

	sd, err := swapdir.New(0, conf.CacheDir(), conf.CacheDirL1(), conf.CacheDirL2(), logger)
	if err != nil {
		logger.Error("Failed to initialize swap directory", "error", err.Error())
		os.Exit(1)
	}

	if err := sd.Init(); err != nil {
		logger.Error("Failed to create swap directory tree", "error", err.Error())
		os.Exit(1)
	}

	logger.Info("Swap directory initialized",
		"cacheDir", conf.CacheDir(), "l1", conf.CacheDirL1(), "l2", conf.CacheDirL2())
}
