package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// ConfigFileName is the default bootstrap config file name.
const ConfigFileName = "svcupgrade.toml"

// Environment variable names.
const (
	EnvLogLevel       = "SVCUPGRADE_LOG_LEVEL"
	EnvWorkDir        = "SVCUPGRADE_WORK_DIR"
	EnvDataDir        = "SVCUPGRADE_DATA_DIR"
	EnvCacheDir       = "SVCUPGRADE_CACHE_DIR"
	EnvManifestURL    = "SVCUPGRADE_MANIFEST_URL"
	EnvAutoUpgrade    = "SVCUPGRADE_AUTO_UPGRADE"
	EnvPublicKey      = "SVCUPGRADE_PUBLIC_KEY"
	EnvComposeProject = "SVCUPGRADE_COMPOSE_PROJECT"
	EnvStopTimeout    = "SVCUPGRADE_STOP_TIMEOUT"
	EnvStartTimeout   = "SVCUPGRADE_START_TIMEOUT"
	EnvMaxRetries     = "SVCUPGRADE_MAX_RETRIES"
)

// Loader loads configuration from file, environment, and defaults.
type Loader struct {
	dataDir    string
	configPath string // explicit path; empty means dataDir/ConfigFileName
}

// NewLoader creates a Loader. dataDir is used to locate the default config
// file location; configPath, if set, overrides it.
func NewLoader(dataDir, configPath string) *Loader {
	return &Loader{dataDir: dataDir, configPath: configPath}
}

// Load loads configuration with priority: defaults < file < env.
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	if l.dataDir != "" {
		cfg.Service.DataDir = l.dataDir
		cfg.Service.CacheDir = DefaultCacheDir(l.dataDir)
		cfg.Service.DBPath = filepath.Join(l.dataDir, "svcupgrade.db")
	}

	fileCfg, err := l.loadFile()
	if err != nil {
		return nil, err
	}
	if fileCfg != nil {
		mergeFileConfig(cfg, fileCfg)
	}

	applyEnvVars(cfg)

	return cfg, nil
}

func (l *Loader) loadFile() (*FileConfig, error) {
	path := l.configPath
	if path == "" {
		path = filepath.Join(l.dataDir, ConfigFileName)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var fileCfg FileConfig
	if err := toml.Unmarshal(data, &fileCfg); err != nil {
		return nil, fmt.Errorf("config: invalid TOML in %s: %w", path, err)
	}
	return &fileCfg, nil
}

func mergeFileConfig(cfg *Config, file *FileConfig) {
	if file.Service.WorkDir != nil {
		cfg.Service.WorkDir = *file.Service.WorkDir
	}
	if file.Service.DataDir != nil {
		cfg.Service.DataDir = *file.Service.DataDir
	}
	if file.Service.CacheDir != nil {
		cfg.Service.CacheDir = *file.Service.CacheDir
	}
	if file.Service.DBPath != nil {
		cfg.Service.DBPath = *file.Service.DBPath
	}
	if file.Service.LogLevel != nil {
		cfg.Service.LogLevel = *file.Service.LogLevel
	}

	if file.Manifest.URL != nil {
		cfg.Manifest.URL = *file.Manifest.URL
	}
	if file.Manifest.AutoUpgrade != nil {
		cfg.Manifest.AutoUpgrade = *file.Manifest.AutoUpgrade
	}

	if file.Signing.PublicKeyBase64 != nil {
		cfg.Signing.PublicKeyBase64 = *file.Signing.PublicKeyBase64
	}

	if file.Docker.ComposeProject != nil {
		cfg.Docker.ComposeProject = *file.Docker.ComposeProject
	}

	if file.Timeouts.ManifestFetch != nil {
		if d, err := time.ParseDuration(*file.Timeouts.ManifestFetch); err == nil {
			cfg.Timeouts.ManifestFetch = d
		}
	}
	if file.Timeouts.StopServices != nil {
		if d, err := time.ParseDuration(*file.Timeouts.StopServices); err == nil {
			cfg.Timeouts.StopServices = d
		}
	}
	if file.Timeouts.StartServices != nil {
		if d, err := time.ParseDuration(*file.Timeouts.StartServices); err == nil {
			cfg.Timeouts.StartServices = d
		}
	}

	if file.Download.MaxRetries != nil {
		cfg.Download.MaxRetries = *file.Download.MaxRetries
	}
	if file.Download.RetryBaseDelay != nil {
		if d, err := time.ParseDuration(*file.Download.RetryBaseDelay); err == nil {
			cfg.Download.RetryBaseDelay = d
		}
	}
	if file.Download.FlushInterval != nil {
		if d, err := time.ParseDuration(*file.Download.FlushInterval); err == nil {
			cfg.Download.FlushInterval = d
		}
	}
}

func applyEnvVars(cfg *Config) {
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.Service.LogLevel = v
	}
	if v := os.Getenv(EnvWorkDir); v != "" {
		cfg.Service.WorkDir = v
	}
	if v := os.Getenv(EnvDataDir); v != "" {
		cfg.Service.DataDir = v
	}
	if v := os.Getenv(EnvCacheDir); v != "" {
		cfg.Service.CacheDir = v
	}
	if v := os.Getenv(EnvManifestURL); v != "" {
		cfg.Manifest.URL = v
	}
	if v := os.Getenv(EnvAutoUpgrade); v != "" {
		cfg.Manifest.AutoUpgrade = v == "true" || v == "1"
	}
	if v := os.Getenv(EnvPublicKey); v != "" {
		cfg.Signing.PublicKeyBase64 = v
	}
	if v := os.Getenv(EnvComposeProject); v != "" {
		cfg.Docker.ComposeProject = v
	}
	if v := os.Getenv(EnvStopTimeout); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Timeouts.StopServices = d
		}
	}
	if v := os.Getenv(EnvStartTimeout); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Timeouts.StartServices = d
		}
	}
	if v := os.Getenv(EnvMaxRetries); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.Download.MaxRetries = i
		}
	}
}
