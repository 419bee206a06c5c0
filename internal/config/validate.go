package config

import (
	"fmt"
	"strings"
)

// ValidLogLevels are the allowed log level values.
var ValidLogLevels = []string{"debug", "info", "warn", "error"}

// Validate checks the configuration for internally inconsistent or unusable
// values and returns an error describing every problem found.
func Validate(cfg *Config) error {
	var errs []string

	validLevel := false
	for _, level := range ValidLogLevels {
		if cfg.Service.LogLevel == level {
			validLevel = true
			break
		}
	}
	if !validLevel {
		errs = append(errs, fmt.Sprintf("invalid log_level %q (must be one of: %s)",
			cfg.Service.LogLevel, strings.Join(ValidLogLevels, ", ")))
	}

	if cfg.Service.WorkDir == "" {
		errs = append(errs, "work_dir must not be empty")
	}
	if cfg.Service.DataDir == "" {
		errs = append(errs, "data_dir must not be empty")
	}
	if cfg.Service.CacheDir == "" {
		errs = append(errs, "cache_dir must not be empty")
	}

	if cfg.Manifest.AutoUpgrade && cfg.Manifest.URL == "" {
		errs = append(errs, "manifest.url is required when auto_upgrade is enabled")
	}

	if cfg.Download.MaxRetries < 0 {
		errs = append(errs, "download.max_retries must not be negative")
	}
	if cfg.Download.RetryBaseDelay < 0 {
		errs = append(errs, "download.retry_base_delay must not be negative")
	}
	if cfg.Download.FlushInterval < 0 {
		errs = append(errs, "download.flush_interval must not be negative")
	}

	if cfg.Timeouts.ManifestFetch <= 0 {
		errs = append(errs, "timeouts.manifest_fetch must be positive")
	}
	if cfg.Timeouts.StopServices <= 0 {
		errs = append(errs, "timeouts.stop_services must be positive")
	}
	if cfg.Timeouts.StartServices <= 0 {
		errs = append(errs, "timeouts.start_services must be positive")
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
}
