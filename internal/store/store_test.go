package store

import (
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestDownloadTaskUpsert(t *testing.T) {
	s := openTestStore(t)

	task := &DownloadTask{
		Metadata: Metadata{Key: "https://example.com/a.zip"},
		URL:      "https://example.com/a.zip",
		Status:   "in_progress",
	}
	if err := s.PutDownloadTask(task); err != nil {
		t.Fatalf("PutDownloadTask: %v", err)
	}
	if task.Metadata.Generation != 1 {
		t.Errorf("Generation = %d, want 1", task.Metadata.Generation)
	}

	got, err := s.GetDownloadTask(task.Metadata.Key)
	if err != nil {
		t.Fatalf("GetDownloadTask: %v", err)
	}
	if got.Status != "in_progress" {
		t.Errorf("Status = %q, want in_progress", got.Status)
	}

	got.Status = "verified"
	if err := s.PutDownloadTask(got); err != nil {
		t.Fatalf("PutDownloadTask (update): %v", err)
	}
	if got.Metadata.Generation != 2 {
		t.Errorf("Generation = %d, want 2 after second upsert", got.Metadata.Generation)
	}

	if err := s.DeleteDownloadTask(task.Metadata.Key); err != nil {
		t.Fatalf("DeleteDownloadTask: %v", err)
	}
	if _, err := s.GetDownloadTask(task.Metadata.Key); !IsNotFound(err) {
		t.Errorf("expected NotFoundError after delete, got %v", err)
	}
}

func TestBackupRecordLifecycle(t *testing.T) {
	s := openTestStore(t)

	rec := &BackupRecord{
		Metadata:    Metadata{Key: "backup-1"},
		UpgradeID:   "upg-1",
		ArchivePath: "/var/lib/svcupgrade/backups/backup-1.tar.gz",
		Paths:       []string{"app/server"},
	}
	if err := s.CreateBackup(rec); err != nil {
		t.Fatalf("CreateBackup: %v", err)
	}
	if err := s.CreateBackup(rec); !IsAlreadyExists(err) {
		t.Errorf("expected AlreadyExistsError on duplicate create, got %v", err)
	}

	if err := s.MarkBackupRestored(rec.Metadata.Key); err != nil {
		t.Fatalf("MarkBackupRestored: %v", err)
	}
	got, err := s.GetBackup(rec.Metadata.Key)
	if err != nil {
		t.Fatalf("GetBackup: %v", err)
	}
	if !got.Restored {
		t.Errorf("expected Restored = true after MarkBackupRestored")
	}

	list, err := s.ListBackups("upg-1")
	if err != nil {
		t.Fatalf("ListBackups: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("ListBackups returned %d records, want 1", len(list))
	}

	if _, err := s.ListBackups("nonexistent"); err != nil {
		t.Fatalf("ListBackups(nonexistent): %v", err)
	}
}

func TestUpgradeRecordOptimisticConcurrency(t *testing.T) {
	s := openTestStore(t)

	rec := &UpgradeRecord{
		Metadata:    Metadata{Key: "upg-1"},
		FromVersion: "1.0.0.0",
		ToVersion:   "1.1.0.0",
		Strategy:    "patch_upgrade",
		Phase:       "CheckManifest",
		Outcome:     "",
	}
	if err := s.CreateUpgradeRecord(rec); err != nil {
		t.Fatalf("CreateUpgradeRecord: %v", err)
	}
	if err := s.CreateUpgradeRecord(rec); !IsAlreadyExists(err) {
		t.Errorf("expected AlreadyExistsError on duplicate create, got %v", err)
	}

	rec.Phase = "Download"
	if err := s.UpdateUpgradeRecord(rec); err != nil {
		t.Fatalf("UpdateUpgradeRecord: %v", err)
	}

	// rec now has generation 2. Updating with the stale generation should
	// surface a ConflictError.
	stale := &UpgradeRecord{Metadata: Metadata{Key: "upg-1", Generation: 1}, Phase: "Apply"}
	if err := s.UpdateUpgradeRecord(stale); !IsConflict(err) {
		t.Errorf("expected ConflictError on stale generation, got %v", err)
	}

	list, err := s.ListUpgradeRecords()
	if err != nil {
		t.Fatalf("ListUpgradeRecords: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("ListUpgradeRecords returned %d, want 1", len(list))
	}
}

func TestAppConfigSingleton(t *testing.T) {
	s := openTestStore(t)

	cfg, err := s.GetAppConfig()
	if err != nil {
		t.Fatalf("GetAppConfig (uninitialized): %v", err)
	}
	if cfg.Metadata.Key != appConfigKey {
		t.Errorf("Key = %q, want %q", cfg.Metadata.Key, appConfigKey)
	}

	cfg.ManifestURL = "https://example.com/manifest.json"
	cfg.AutoUpgrade = true
	if err := s.PutAppConfig(cfg); err != nil {
		t.Fatalf("PutAppConfig: %v", err)
	}

	got, err := s.GetAppConfig()
	if err != nil {
		t.Fatalf("GetAppConfig: %v", err)
	}
	if got.ManifestURL != "https://example.com/manifest.json" || !got.AutoUpgrade {
		t.Errorf("GetAppConfig = %+v, unexpected values", got)
	}
	if got.Metadata.Generation != 1 {
		t.Errorf("Generation = %d, want 1", got.Metadata.Generation)
	}
}
