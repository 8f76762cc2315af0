package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads configuration from an optional YAML file, applies environment
// overrides, fills in defaults and validates the result.
//
// An empty path skips the file step entirely; a non-empty path must exist.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		parsed, err := parseConfig(string(data))
		if err != nil {
			return nil, err
		}
		cfg = parsed
	}

	applyEnv(cfg)
	setDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadConfig parses YAML configuration and applies default values. It does
// not consult the environment; most callers should use Load instead. This
// function is primarily useful for testing parse and default behavior.
func LoadConfig(configYAML string) (*Config, error) {
	cfg, err := parseConfig(configYAML)
	if err != nil {
		return nil, err
	}

	setDefaults(cfg)

	return cfg, nil
}

// parseConfig parses YAML configuration into a Config struct. This is a
// pure function that only parses YAML; it does not apply defaults or
// perform validation.
func parseConfig(configYAML string) (*Config, error) {
	if configYAML == "" {
		return nil, fmt.Errorf("config YAML is empty")
	}

	var cfg Config
	if err := yaml.Unmarshal([]byte(configYAML), &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal YAML: %w", err)
	}

	return &cfg, nil
}

// applyEnv overrides configuration fields from environment variables.
//
// Recognized variables: PIPELINE_HOST, PIPELINE_PORT, PIPELINE_DATA_DIR,
// PUBLIC_BASE_URL, TEMPLATE_CACHE_DIR, METRICS_PORT, VERBOSE, LOG_FORMAT.
func applyEnv(cfg *Config) {
	if v := os.Getenv("PIPELINE_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("PIPELINE_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("PIPELINE_DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := os.Getenv("PUBLIC_BASE_URL"); v != "" {
		cfg.Storage.PublicBaseURL = strings.TrimRight(v, "/")
	}
	if v := os.Getenv("TEMPLATE_CACHE_DIR"); v != "" {
		cfg.Template.CacheDir = v
	}
	if v := os.Getenv("METRICS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Metrics.Port = &port
		}
	}

	// VERBOSE follows the 0/1/2 convention: WARNING, INFO, DEBUG.
	switch os.Getenv("VERBOSE") {
	case "0":
		cfg.Logging.Level = "WARNING"
	case "1":
		cfg.Logging.Level = "INFO"
	case "2":
		cfg.Logging.Level = "DEBUG"
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}
