package patch

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/b-harvest/svcupgrade/internal/manifest"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func TestApplyReplaceAndDelete(t *testing.T) {
	workDir := t.TempDir()
	extractDir := t.TempDir()

	writeFile(t, filepath.Join(workDir, "app", "server"), "old-binary")
	writeFile(t, filepath.Join(workDir, "app", "old.conf"), "stale")
	writeFile(t, filepath.Join(extractDir, "app", "server"), "new-binary")
	writeFile(t, filepath.Join(extractDir, "app", "migrations", "001.sql"), "create table x")

	exec := &Executor{WorkDir: workDir, ExtractDir: extractDir}
	ops := manifest.PatchOperations{
		Replace: manifest.FilesAndDirs{
			Files:       []string{"app/server"},
			Directories: []string{"app/migrations"},
		},
		Delete: manifest.FilesAndDirs{
			Files: []string{"app/old.conf"},
		},
	}

	if err := exec.Apply(ops); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(workDir, "app", "server"))
	if err != nil {
		t.Fatalf("ReadFile server: %v", err)
	}
	if string(got) != "new-binary" {
		t.Errorf("server = %q, want new-binary", got)
	}
	if _, err := os.Stat(filepath.Join(workDir, "app", "old.conf")); !os.IsNotExist(err) {
		t.Errorf("expected app/old.conf to be deleted")
	}
	if _, err := os.Stat(filepath.Join(workDir, "app", "migrations", "001.sql")); err != nil {
		t.Errorf("expected app/migrations/001.sql to exist: %v", err)
	}
}

func TestApplyIsIdempotent(t *testing.T) {
	workDir := t.TempDir()
	extractDir := t.TempDir()
	writeFile(t, filepath.Join(workDir, "app", "old.conf"), "stale")

	exec := &Executor{WorkDir: workDir, ExtractDir: extractDir}
	ops := manifest.PatchOperations{Delete: manifest.FilesAndDirs{Files: []string{"app/old.conf"}}}

	if err := exec.Apply(ops); err != nil {
		t.Fatalf("first Apply: %v", err)
	}
	if err := exec.Apply(ops); err != nil {
		t.Fatalf("second Apply (already absent) should be a no-op, got: %v", err)
	}
}

func TestApplyRejectsUnsafePaths(t *testing.T) {
	workDir := t.TempDir()
	extractDir := t.TempDir()
	exec := &Executor{WorkDir: workDir, ExtractDir: extractDir}

	cases := []manifest.PatchOperations{
		{Replace: manifest.FilesAndDirs{Files: []string{"../escape.txt"}}},
		{Delete: manifest.FilesAndDirs{Files: []string{"/etc/passwd"}}},
	}
	for _, ops := range cases {
		if err := exec.Apply(ops); !errors.Is(err, ErrUnsafePath) {
			t.Errorf("Apply(%+v) = %v, want ErrUnsafePath", ops, err)
		}
	}
}

func TestApplyRollsBackOnFailure(t *testing.T) {
	workDir := t.TempDir()
	extractDir := t.TempDir()

	writeFile(t, filepath.Join(workDir, "app", "old.conf"), "stale-but-important")
	// Intentionally do not create app/missing-in-patch/ in extractDir so the
	// replace.directories step (which runs after delete.files) fails and
	// triggers rollback of the already-applied delete.

	exec := &Executor{WorkDir: workDir, ExtractDir: extractDir}
	ops := manifest.PatchOperations{
		Delete: manifest.FilesAndDirs{
			Files: []string{"app/old.conf"},
		},
		Replace: manifest.FilesAndDirs{
			Directories: []string{"app/missing-in-patch"},
		},
	}

	err := exec.Apply(ops)
	if !errors.Is(err, ErrApplyFailed) {
		t.Fatalf("Apply = %v, want ErrApplyFailed", err)
	}

	got, readErr := os.ReadFile(filepath.Join(workDir, "app", "old.conf"))
	if readErr != nil {
		t.Fatalf("ReadFile old.conf after rollback: %v", readErr)
	}
	if string(got) != "stale-but-important" {
		t.Errorf("old.conf after rollback = %q, want restored content", got)
	}
}
