// Package config loads process configuration from environment variables.
package config

import "os"

// Config holds configuration for the patchlock CLI and any embedding service.
type Config struct {
	LogLevel string

	// KeyRegistryBackend selects the registry implementation:
	// "memory", "sqlite", or "postgres".
	KeyRegistryBackend string
	SQLitePath         string
	DatabaseURL        string

	// Mode bounds what automation may do without approvals.
	Mode string

	OTLPEndpoint string
	OTelEnabled  bool
}

// Load loads configuration from environment variables.
func Load() *Config {
	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "INFO"
	}

	backend := os.Getenv("KEY_REGISTRY_BACKEND")
	if backend == "" {
		backend = "sqlite"
	}

	sqlitePath := os.Getenv("KEY_REGISTRY_SQLITE_PATH")
	if sqlitePath == "" {
		sqlitePath = "patchlock-keys.db"
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		dbURL = "postgres://patchlock@localhost:5432/patchlock?sslmode=disable"
	}

	mode := os.Getenv("PATCHLOCK_MODE")
	if mode == "" {
		mode = "commit-after-approval"
	}

	otlp := os.Getenv("OTLP_ENDPOINT")
	if otlp == "" {
		otlp = "localhost:4317"
	}

	return &Config{
		LogLevel:           logLevel,
		KeyRegistryBackend: backend,
		SQLitePath:         sqlitePath,
		DatabaseURL:        dbURL,
		Mode:               mode,
		OTLPEndpoint:       otlp,
		OTelEnabled:        os.Getenv("OTEL_ENABLED") == "true",
	}
}
