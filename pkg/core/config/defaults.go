package config

import (
	"fmt"
	"path/filepath"
	"time"
)

// Default values for configuration fields.
const (
	// DefaultHost is the default bind address.
	DefaultHost = "0.0.0.0"

	// DefaultPort is the default HTTP listen port.
	DefaultPort = 9002

	// DefaultDataDir is the default root for rendered outputs.
	DefaultDataDir = "./data"

	// DefaultMetricsPort is the default port for Prometheus metrics.
	DefaultMetricsPort = 9090

	// DefaultConnectTimeout bounds TCP connect for template downloads.
	DefaultConnectTimeout = 5 * time.Second

	// DefaultReadTimeout bounds a whole template download request.
	DefaultReadTimeout = 30 * time.Second

	// DefaultLogLevel is the default log level.
	DefaultLogLevel = "INFO"

	// DefaultLogFormat is the default log output format.
	DefaultLogFormat = "text"

	// templateCacheSubdir is the cache directory created under the data
	// dir when no explicit cache dir is configured.
	templateCacheSubdir = "_templates"
)

// setDefaults applies default values to unset configuration fields.
// This modifies the config in-place and runs after parsing and environment
// overrides, before validation.
func setDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = DefaultHost
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = DefaultPort
	}

	if cfg.Storage.DataDir == "" {
		cfg.Storage.DataDir = DefaultDataDir
	}
	if cfg.Storage.PublicBaseURL == "" {
		cfg.Storage.PublicBaseURL = fmt.Sprintf("http://localhost:%d", cfg.Server.Port)
	}

	// The cache root lives under the data area unless placed explicitly.
	if cfg.Template.CacheDir == "" {
		cfg.Template.CacheDir = filepath.Join(cfg.Storage.DataDir, templateCacheSubdir)
	}

	// Metrics.Port stays a pointer: nil means "use the default", an
	// explicit 0 disables the listener. GetPort resolves the default.

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = DefaultLogLevel
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = DefaultLogFormat
	}
}
