package store

import "time"

// Metadata carries the bookkeeping fields every stored resource shares:
// an identity key plus optimistic-concurrency and audit timestamps.
type Metadata struct {
	Key        string    `json:"key"`
	Generation int       `json:"generation"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// DownloadTask records the resumable state of one cached artifact download,
// keyed by the artifact URL so repeated downloads of the same manifest
// entry reuse progress.
type DownloadTask struct {
	Metadata Metadata `json:"metadata"`

	URL          string `json:"url"`
	DestPath     string `json:"dest_path"`
	ExpectedHash string `json:"expected_hash,omitempty"`
	BytesTotal   int64  `json:"bytes_total"`
	BytesDone    int64  `json:"bytes_done"`
	Status       string `json:"status"` // in_progress, verified, failed
	Err          string `json:"err,omitempty"`
}

// BackupRecord describes one pre-upgrade snapshot, created before an Apply
// phase mutates the working tree.
type BackupRecord struct {
	Metadata Metadata `json:"metadata"`

	UpgradeID   string   `json:"upgrade_id"`
	ArchivePath string   `json:"archive_path"`
	Paths       []string `json:"paths"`
	SizeBytes   int64    `json:"size_bytes"`
	Restored    bool     `json:"restored"`
}

// UpgradeRecord is one row of upgrade history: a completed or failed run
// of the orchestrator, kept for audit and `status` reporting.
type UpgradeRecord struct {
	Metadata Metadata `json:"metadata"`

	FromVersion string    `json:"from_version"`
	ToVersion   string    `json:"to_version"`
	Strategy    string    `json:"strategy"`
	Phase       string    `json:"phase"`
	Outcome     string    `json:"outcome"` // success, failed
	Err         string    `json:"err,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
}

// AppConfig is the single persisted row of runtime configuration, distinct
// from the TOML bootstrap file: values here are written by the running
// process itself (e.g. the last
// manifest URL used, the last successful version) rather than supplied at
// startup.
type AppConfig struct {
	Metadata Metadata `json:"metadata"`

	ManifestURL   string `json:"manifest_url"`
	LastVersion   string `json:"last_version"`
	AutoUpgrade   bool   `json:"auto_upgrade"`
	ForceFullNext bool   `json:"force_full_next"`
}

// appConfigKey is the sentinel key for the single AppConfig row; the table
// never holds more than one record.
const appConfigKey = "singleton"
