package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// ValidationError describes a single invalid configuration field.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks the configuration for consistency. It returns the first
// violation found, field by field, so error messages always name a single
// actionable setting.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return ValidationError{"server.port", fmt.Sprintf("must be in 1..65535, got %d", c.Server.Port)}
	}

	if strings.TrimSpace(c.Storage.DataDir) == "" {
		return ValidationError{"storage.dataDir", "must not be empty"}
	}
	if err := validateBaseURL(c.Storage.PublicBaseURL); err != nil {
		return ValidationError{"storage.publicBaseUrl", err.Error()}
	}

	if strings.TrimSpace(c.Template.CacheDir) == "" {
		return ValidationError{"template.cacheDir", "must not be empty"}
	}
	if err := validateDuration(c.Template.ConnectTimeout); err != nil {
		return ValidationError{"template.connectTimeout", err.Error()}
	}
	if err := validateDuration(c.Template.ReadTimeout); err != nil {
		return ValidationError{"template.readTimeout", err.Error()}
	}
	if c.Template.DownloadRetries < 0 {
		return ValidationError{"template.downloadRetries", "must not be negative"}
	}

	metricsPort := c.Metrics.GetPort()
	if metricsPort < 0 || metricsPort > 65535 {
		return ValidationError{"metrics.port", fmt.Sprintf("must be in 0..65535, got %d", metricsPort)}
	}
	if metricsPort != 0 && metricsPort == c.Server.Port {
		return ValidationError{"metrics.port", "must differ from server.port"}
	}

	switch strings.ToUpper(strings.TrimSpace(c.Logging.Level)) {
	case "ERROR", "WARNING", "WARN", "INFO", "DEBUG":
	default:
		return ValidationError{"logging.level", fmt.Sprintf("unknown level %q", c.Logging.Level)}
	}
	switch strings.ToLower(strings.TrimSpace(c.Logging.Format)) {
	case "text", "json":
	default:
		return ValidationError{"logging.format", fmt.Sprintf("unknown format %q", c.Logging.Format)}
	}

	return nil
}

func validateBaseURL(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return fmt.Errorf("must not be empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("not a valid URL: %v", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https, got %q", u.Scheme)
	}
	if strings.HasSuffix(raw, "/") {
		return fmt.Errorf("must not end with a trailing slash")
	}
	return nil
}

// validateDuration accepts empty (default applies) or a positive Go
// duration string.
func validateDuration(raw string) error {
	if raw == "" {
		return nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("not a valid duration: %v", err)
	}
	if d <= 0 {
		return fmt.Errorf("must be positive, got %s", d)
	}
	return nil
}
