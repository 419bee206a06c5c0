package config

// FileConfig mirrors Config but with pointer fields, so the TOML decoder
// can distinguish "absent from file" (nil) from "explicitly zero value",
// letting mergeFileConfig apply only what the file actually set.
type FileConfig struct {
	Service  fileServiceConfig  `toml:"service"`
	Manifest fileManifestConfig `toml:"manifest"`
	Signing  fileSigningConfig  `toml:"signing"`
	Docker   fileDockerConfig   `toml:"docker"`
	Timeouts fileTimeoutConfig  `toml:"timeouts"`
	Download fileDownloadConfig `toml:"download"`
}

type fileServiceConfig struct {
	WorkDir  *string `toml:"work_dir"`
	DataDir  *string `toml:"data_dir"`
	CacheDir *string `toml:"cache_dir"`
	DBPath   *string `toml:"db_path"`
	LogLevel *string `toml:"log_level"`
}

type fileManifestConfig struct {
	URL         *string `toml:"url"`
	AutoUpgrade *bool   `toml:"auto_upgrade"`
}

type fileSigningConfig struct {
	PublicKeyBase64 *string `toml:"public_key"`
}

type fileDockerConfig struct {
	ComposeProject *string `toml:"compose_project"`
}

type fileTimeoutConfig struct {
	ManifestFetch *string `toml:"manifest_fetch"`
	StopServices  *string `toml:"stop_services"`
	StartServices *string `toml:"start_services"`
}

type fileDownloadConfig struct {
	MaxRetries     *int    `toml:"max_retries"`
	RetryBaseDelay *string `toml:"retry_base_delay"`
	FlushInterval  *string `toml:"flush_interval"`
}

// IsEmpty reports whether no field was set by the TOML file, i.e. every
// pointer is nil.
func (fc *FileConfig) IsEmpty() bool {
	return fc.Service.WorkDir == nil &&
		fc.Service.DataDir == nil &&
		fc.Service.CacheDir == nil &&
		fc.Service.DBPath == nil &&
		fc.Service.LogLevel == nil &&
		fc.Manifest.URL == nil &&
		fc.Manifest.AutoUpgrade == nil &&
		fc.Signing.PublicKeyBase64 == nil &&
		fc.Docker.ComposeProject == nil &&
		fc.Timeouts.ManifestFetch == nil &&
		fc.Timeouts.StopServices == nil &&
		fc.Timeouts.StartServices == nil &&
		fc.Download.MaxRetries == nil &&
		fc.Download.RetryBaseDelay == nil &&
		fc.Download.FlushInterval == nil
}
