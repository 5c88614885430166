package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
)

var ErrMissingRequiredValue = errors.New("missing required value")
var ErrInvalidValue = errors.New("invalid value")

type environment string

const (
	production  environment = "production"
	staging     environment = "staging"
	development environment = "development"
)

type Config struct {
	cloudSQLUnixSocketPath string
	dBPassword             string
	dBUsername             string
	sentryDSN              string

	cacheDir   string
	cacheDirL1 int
	cacheDirL2 int
	logFile    string
	port       string

	env environment
}

func (c *Config) CloudSQLUnixSocketPath() string {
	return c.cloudSQLUnixSocketPath
}

func (c *Config) DBPassword() string {
	return c.dBPassword
}

func (c *Config) DBUsername() string {
	return c.dBUsername
}

func (c *Config) SentryDSN() string {
	return c.sentryDSN
}

// CacheDir is the root of the swap directory tree.
func (c *Config) CacheDir() string {
	return c.cacheDir
}

// CacheDirL1 and CacheDirL2 are the first- and second-level fanout of the
// swap directory tree.
func (c *Config) CacheDirL1() int {
	return c.cacheDirL1
}

func (c *Config) CacheDirL2() int {
	return c.cacheDirL2
}

func (c *Config) LogFile() string {
	return c.logFile
}

func (c *Config) Port() string {
	return c.port
}

func (c *Config) IsProduction() bool {
	return c.env == production
}

func (c *Config) IsStaging() bool {
	return c.env == staging
}

func (c *Config) IsDevelopment() bool {
	return c.env == development
}

// Return a string representation suitable for logging etc
func (c *Config) NonSensitiveString() string {
	return fmt.Sprintf("Config{env: %s, cacheDir: %s, l1: %d, l2: %d, ...}", string(c.env), c.cacheDir, c.cacheDirL1, c.cacheDirL2)
}

func ConfigFromEnv() (Config, error) {
	missingKey := func(key string) (Config, error) {
		return Config{}, fmt.Errorf("%w: %s", ErrMissingRequiredValue, key)
	}

	var env environment
	rawEnv, ok := os.LookupEnv("SQUID_ENVIRONMENT")
	if !ok {
		return missingKey("SQUID_ENVIRONMENT")
	}
	switch rawEnv {
	case "production":
		env = production
	case "staging":
		env = staging
	case "development":
		env = development
	default:
		return Config{}, fmt.Errorf("%w: SQUID_ENVIRONMENT (%s)", ErrInvalidValue, rawEnv)
	}
	if string(env) == "" {
		panic("logic error: env is empty")
	}

	cloudSQLUnixSocketPath := os.Getenv("CLOUDSQL_UNIX_SOCKET")
	dbPassword := os.Getenv("DB_PASSWORD")
	dbUsername := os.Getenv("DB_USERNAME")
	sentryDSN := os.Getenv("SENTRY_DSN")
	logFile := os.Getenv("SQUID_LOG_FILE")

	cacheDir := os.Getenv("SQUID_CACHE_DIR")
	if cacheDir == "" {
		cacheDir = "cache"
	}

	cacheDirL1, err := intFromEnv("SQUID_CACHE_DIR_L1", 16)
	if err != nil {
		return Config{}, err
	}
	cacheDirL2, err := intFromEnv("SQUID_CACHE_DIR_L2", 256)
	if err != nil {
		return Config{}, err
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	if env == production || env == staging {
		if cloudSQLUnixSocketPath == "" {
			return missingKey("CLOUDSQL_UNIX_SOCKET")
		}
		if dbUsername == "" {
			return missingKey("DB_USERNAME")
		}
		if dbPassword == "" {
			return missingKey("DB_PASSWORD")
		}
		if sentryDSN == "" {
			return missingKey("SENTRY_DSN")
		}
	}

	return Config{
		cloudSQLUnixSocketPath: cloudSQLUnixSocketPath,
		dBPassword:             dbPassword,
		dBUsername:             dbUsername,
		sentryDSN:              sentryDSN,
		cacheDir:               cacheDir,
		cacheDirL1:             cacheDirL1,
		cacheDirL2:             cacheDirL2,
		logFile:                logFile,
		port:                   port,
		env:                    env,
	}, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return 0, fmt.Errorf("%w: %s (%s)", ErrInvalidValue, key, raw)
	}
	return value, nil
}
