// Copyright 2025 Philipp Hossner
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config provides configuration loading and validation for the
// image compose pipeline.
//
// Configuration is read from an optional YAML file, overridden by
// environment variables, and completed with defaults. Load order:
//
//  1. YAML file (lowest priority, optional)
//  2. Environment variables
//  3. Defaults for anything still unset
//
// Call Validate before using a loaded Config.
package config

import "time"

// Config is the root configuration for the pipeline service.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Storage  StorageConfig  `yaml:"storage"`
	Template TemplateConfig `yaml:"template"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig configures the public HTTP listener.
type ServerConfig struct {
	// Host is the bind address (env: PIPELINE_HOST).
	Host string `yaml:"host"`

	// Port is the listen port for the process and files endpoints
	// (env: PIPELINE_PORT).
	Port int `yaml:"port"`
}

// StorageConfig configures output persistence and URL minting.
type StorageConfig struct {
	// DataDir is the root directory for rendered outputs; preview/ and
	// final/ subtrees are created beneath it (env: PIPELINE_DATA_DIR).
	DataDir string `yaml:"dataDir"`

	// PublicBaseURL is the externally visible base for minted file URLs,
	// without a trailing slash (env: PUBLIC_BASE_URL).
	PublicBaseURL string `yaml:"publicBaseUrl"`
}

// TemplateConfig configures the template cache and download client.
type TemplateConfig struct {
	// CacheDir is the root of the content-addressed template cache
	// (env: TEMPLATE_CACHE_DIR). Defaults to {dataDir}/_templates.
	CacheDir string `yaml:"cacheDir"`

	// ConnectTimeout bounds TCP connection establishment for template
	// downloads, as a Go duration string.
	ConnectTimeout string `yaml:"connectTimeout"`

	// ReadTimeout bounds the whole download request, as a Go duration
	// string.
	ReadTimeout string `yaml:"readTimeout"`

	// DownloadRetries is the number of extra attempts after a failed
	// download. 0 means a single attempt.
	DownloadRetries int `yaml:"downloadRetries"`
}

// MetricsConfig configures the Prometheus metrics listener.
type MetricsConfig struct {
	// Port is the metrics listen port. An explicit 0 disables the metrics
	// server; leaving it unset selects DefaultMetricsPort.
	// (env: METRICS_PORT)
	Port *int `yaml:"port"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	// Level is one of ERROR, WARNING, INFO, DEBUG (env: VERBOSE maps
	// 0/1/2 to WARNING/INFO/DEBUG).
	Level string `yaml:"level"`

	// Format is "text" (logfmt) or "json".
	Format string `yaml:"format"`
}

// GetPort returns the configured metrics port, or DefaultMetricsPort when
// the field was never set. An explicit 0 is preserved: it means the
// metrics server is disabled.
func (m *MetricsConfig) GetPort() int {
	if m.Port != nil {
		return *m.Port
	}
	return DefaultMetricsPort
}

// GetConnectTimeout returns the configured connect timeout or the default
// if not specified or invalid.
func (t *TemplateConfig) GetConnectTimeout() time.Duration {
	if t.ConnectTimeout != "" {
		if d, err := time.ParseDuration(t.ConnectTimeout); err == nil {
			return d
		}
	}
	return DefaultConnectTimeout
}

// GetReadTimeout returns the configured read timeout or the default if not
// specified or invalid.
func (t *TemplateConfig) GetReadTimeout() time.Duration {
	if t.ReadTimeout != "" {
		if d, err := time.ParseDuration(t.ReadTimeout); err == nil {
			return d
		}
	}
	return DefaultReadTimeout
}
