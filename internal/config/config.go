// Package config is the single source of truth for svcupgrade's bootstrap
// configuration. Priority: defaults < config file < environment variables.
package config

import (
	"os"
	"path/filepath"
	"time"
)

// Config holds everything the upgrade core needs at startup.
type Config struct {
	Service  ServiceConfig  `toml:"service"`
	Manifest ManifestConfig `toml:"manifest"`
	Signing  SigningConfig  `toml:"signing"`
	Docker   DockerConfig   `toml:"docker"`
	Timeouts TimeoutConfig  `toml:"timeouts"`
	Download DownloadConfig `toml:"download"`
}

// ServiceConfig describes the working directory and logging.
type ServiceConfig struct {
	WorkDir  string `toml:"work_dir"`
	DataDir  string `toml:"data_dir"`
	CacheDir string `toml:"cache_dir"`
	DBPath   string `toml:"db_path"`
	LogLevel string `toml:"log_level"`
}

// ManifestConfig points to the remote manifest this instance tracks.
type ManifestConfig struct {
	URL         string `toml:"url"`
	AutoUpgrade bool   `toml:"auto_upgrade"`
}

// SigningConfig configures manifest artifact signature verification.
type SigningConfig struct {
	// PublicKeyBase64 is the Ed25519 public key (base64 standard
	// encoding) artifacts must be signed with. Empty disables signature
	// verification entirely.
	PublicKeyBase64 string `toml:"public_key"`
}

// DockerConfig holds the [docker] section. It is loaded and validated; the
// CLI does not pass ComposeProject to the Docker collaborator.
type DockerConfig struct {
	ComposeProject string `toml:"compose_project"`
}

// TimeoutConfig holds the phase-level timeout defaults.
type TimeoutConfig struct {
	ManifestFetch time.Duration `toml:"manifest_fetch"`
	StopServices  time.Duration `toml:"stop_services"`
	StartServices time.Duration `toml:"start_services"`
}

// DownloadConfig holds the [download] retry/flush settings. They are loaded
// and validated; the upgrade command does not pass them to the downloader,
// which uses its own defaults.
type DownloadConfig struct {
	MaxRetries     int           `toml:"max_retries"`
	RetryBaseDelay time.Duration `toml:"retry_base_delay"`
	FlushInterval  time.Duration `toml:"flush_interval"`
}

// DefaultWorkDir returns the default working directory for the managed
// service tree.
func DefaultWorkDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, "svcupgrade", "service")
}

// DefaultDataDir returns the default directory for the embedded store and
// cache.
func DefaultDataDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".svcupgrade")
}

// DefaultCacheDir returns the default download cache location under
// dataDir. Downloads can run to hundreds of MiB, so operators may point
// cache_dir (or SVCUPGRADE_CACHE_DIR) at a separate volume instead.
func DefaultCacheDir(dataDir string) string {
	return filepath.Join(dataDir, "cache")
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	dataDir := DefaultDataDir()
	return &Config{
		Service: ServiceConfig{
			WorkDir:  DefaultWorkDir(),
			DataDir:  dataDir,
			CacheDir: DefaultCacheDir(dataDir),
			DBPath:   filepath.Join(dataDir, "svcupgrade.db"),
			LogLevel: "info",
		},
		Manifest: ManifestConfig{
			AutoUpgrade: false,
		},
		Docker: DockerConfig{},
		Timeouts: TimeoutConfig{
			ManifestFetch: 30 * time.Second,
			StopServices:  5 * time.Minute,
			StartServices: 10 * time.Minute,
		},
		Download: DownloadConfig{
			MaxRetries:     3,
			RetryBaseDelay: 2 * time.Second,
			FlushInterval:  2 * time.Second,
		},
	}
}
