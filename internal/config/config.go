// Package config loads process configuration from the environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/wehubfusion/Daedalus/pkg/concurrency"
)

// Source tells where a value came from.
type Source string

const (
	SourceEnvVar     Source = "environment_variable"
	SourceAutoDetect Source = "auto_detect"
	SourceDefault    Source = "default"
)

// Config holds the process-wide settings.
type Config struct {
	StagingDir       string
	Partitions       int
	PartitionsSource Source
	ExecTimeout      time.Duration
	ContextCacheSize int

	// OTLPEndpoint enables tracing when set (host:port).
	OTLPEndpoint string
	Environment  string

	NATSURL   string
	SentryDSN string

	AzureConnectionString string
	SettingsContainer     string
}

// Load reads an optional .env file from the working directory, then the
// environment. Invalid numbers are reported instead of being ignored.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromEnv()
}

// LoadFile is Load with an explicit .env path.
func LoadFile(path string) (*Config, error) {
	if err := godotenv.Load(path); err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}
	return FromEnv()
}

// FromEnv builds the configuration from environment variables only.
func FromEnv() (*Config, error) {
	cfg := &Config{
		StagingDir:            getEnv("DAEDALUS_STAGING_DIR", filepath.Join(os.TempDir(), "daedalus-staging")),
		OTLPEndpoint:          getEnv("DAEDALUS_OTLP_ENDPOINT", ""),
		Environment:           getEnv("DAEDALUS_ENV", "development"),
		NATSURL:               getEnv("DAEDALUS_NATS_URL", "nats://127.0.0.1:4222"),
		SentryDSN:             getEnv("SENTRY_DSN", ""),
		AzureConnectionString: getEnv("AZURE_STORAGE_CONNECTION_STRING", ""),
		SettingsContainer:     getEnv("DAEDALUS_SETTINGS_CONTAINER", "daedalus-settings"),
	}

	var err error
	if cfg.Partitions, err = getEnvInt("DAEDALUS_PARTITIONS", 0); err != nil {
		return nil, err
	}
	if cfg.Partitions > 0 {
		cfg.PartitionsSource = SourceEnvVar
	} else {
		cfg.Partitions = concurrency.DefaultPartitions()
		cfg.PartitionsSource = SourceAutoDetect
	}

	if cfg.ContextCacheSize, err = getEnvInt("DAEDALUS_CONTEXT_CACHE_SIZE", 256); err != nil {
		return nil, err
	}
	if cfg.ContextCacheSize < 1 {
		return nil, fmt.Errorf("DAEDALUS_CONTEXT_CACHE_SIZE must be positive")
	}

	timeout := getEnv("DAEDALUS_EXEC_TIMEOUT", "30s")
	if cfg.ExecTimeout, err = time.ParseDuration(timeout); err != nil {
		return nil, fmt.Errorf("invalid DAEDALUS_EXEC_TIMEOUT %q: %w", timeout, err)
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return n, nil
}

// String returns a one-line summary without secrets.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{StagingDir: %s, Partitions: %d (%s), ExecTimeout: %s, ContextCacheSize: %d, NATS: %s, Tracing: %t, Sentry: %t, BlobSettings: %t}",
		c.StagingDir,
		c.Partitions,
		c.PartitionsSource,
		c.ExecTimeout,
		c.ContextCacheSize,
		c.NATSURL,
		c.OTLPEndpoint != "",
		c.SentryDSN != "",
		c.AzureConnectionString != "",
	)
}
