package manifest

import (
	"testing"
	"time"

	"github.com/b-harvest/svcupgrade/internal/version"
)

const enhancedJSON = `{
  "version": "1.2.3.4",
  "release_date": "2025-01-12T13:49:59Z",
  "release_notes": "fixes things",
  "platforms": {
    "x86_64": { "url": "https://example.com/docker-x86_64.zip", "signature": "c2ln" }
  },
  "patch": {
    "x86_64": {
      "url": "https://example.com/patch-x86_64.tar.gz",
      "hash": "abc123",
      "operations": {
        "replace": { "files": ["app/server"], "directories": ["app/migrations"] },
        "delete": { "files": ["app/old.conf"] }
      }
    }
  }
}`

const legacyJSON = `{
  "version": "1.0.0",
  "release_date": "2024-06-01T00:00:00Z",
  "release_notes": "legacy",
  "packages": { "url": "https://example.com/legacy.zip", "hash": "external" }
}`

func TestParseEnhanced(t *testing.T) {
	m, err := Parse([]byte(enhancedJSON))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	want := version.Version{Major: 1, Minor: 2, Patch: 3, Build: 4}
	if m.Version != want {
		t.Errorf("Version = %+v, want %+v", m.Version, want)
	}
	if m.LegacyPackage != nil {
		t.Errorf("expected no legacy package in enhanced manifest")
	}
	if !m.HasPackageFor("x86_64") {
		t.Errorf("expected platforms[x86_64]")
	}
	if !m.HasPatchFor("x86_64") {
		t.Errorf("expected patch[x86_64]")
	}
	if err := m.Validate(); err != nil {
		t.Errorf("Validate failed on valid manifest: %v", err)
	}
}

func TestParseLegacy(t *testing.T) {
	m, err := Parse([]byte(legacyJSON))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if m.LegacyPackage == nil {
		t.Fatalf("expected legacy package to be populated")
	}
	if len(m.Platforms) != 0 {
		t.Errorf("expected no platforms in legacy manifest")
	}
	ref, ok := m.PackageFor("x86_64")
	if !ok {
		t.Fatalf("expected legacy package to satisfy PackageFor for any arch")
	}
	if ref.Hash != "external" {
		t.Errorf("Hash = %q, want external", ref.Hash)
	}
	if err := m.Validate(); err != nil {
		t.Errorf("Validate failed on valid legacy manifest: %v", err)
	}
}

func TestParseLegacySingularKeyFallback(t *testing.T) {
	old := `{
  "version": "1.0.0",
  "release_date": "2024-06-01T00:00:00Z",
  "package": { "url": "https://example.com/legacy.zip" }
}`
	m, err := Parse([]byte(old))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if m.LegacyPackage == nil || m.LegacyPackage.URL != "https://example.com/legacy.zip" {
		t.Errorf("expected singular \"package\" key to populate the legacy package")
	}
}

func TestParseRejectsBadTimestamp(t *testing.T) {
	bad := `{"version":"1.0.0","release_date":"not-a-date","package":{"url":"https://x/y"}}`
	if _, err := Parse([]byte(bad)); err == nil {
		t.Errorf("expected Parse to reject malformed release_date")
	}
}

func TestValidateRejectsBadURL(t *testing.T) {
	m := &Manifest{
		Version:     version.Version{Major: 1},
		ReleaseDate: mustRFC3339(t, "2025-01-01T00:00:00Z"),
		Platforms: map[string]PackageRef{
			"x86_64": {URL: "ftp://bad-scheme/x"},
		},
	}
	if err := m.Validate(); err == nil {
		t.Errorf("expected Validate to reject non-http(s)/file URL")
	}
}

func TestValidateRejectsTraversalAndAbsolutePaths(t *testing.T) {
	base := func(ops PatchOperations) *Manifest {
		return &Manifest{
			Version:     version.Version{Major: 1},
			ReleaseDate: mustRFC3339(t, "2025-01-01T00:00:00Z"),
			Platforms:   map[string]PackageRef{"x86_64": {URL: "https://x/y"}},
			Patch: map[string]PatchRef{
				"x86_64": {URL: "https://x/patch.tar.gz", Operations: ops},
			},
		}
	}

	cases := []PatchOperations{
		{Replace: FilesAndDirs{Files: []string{"../escape.txt"}}},
		{Replace: FilesAndDirs{Files: []string{"/etc/passwd"}}},
		{Delete: FilesAndDirs{Directories: []string{"a/../../b"}}},
		{Delete: FilesAndDirs{Files: []string{`C:\Windows\system32`}}},
	}
	for _, ops := range cases {
		if err := base(ops).Validate(); err == nil {
			t.Errorf("expected Validate to reject unsafe operation paths: %+v", ops)
		}
	}
}

func TestValidateRequiresAtLeastOnePackageSource(t *testing.T) {
	m := &Manifest{
		Version:     version.Version{Major: 1},
		ReleaseDate: mustRFC3339(t, "2025-01-01T00:00:00Z"),
	}
	if err := m.Validate(); err == nil {
		t.Errorf("expected Validate to require platforms or legacyPackage")
	}
}

func TestPatchOperationsAllPaths(t *testing.T) {
	ops := PatchOperations{
		Replace: FilesAndDirs{Files: []string{"a"}, Directories: []string{"b"}},
		Delete:  FilesAndDirs{Files: []string{"a"}, Directories: []string{"c"}},
	}
	got := ops.AllPaths()
	want := map[string]bool{"a": true, "b": true, "c": true}
	if len(got) != len(want) {
		t.Fatalf("AllPaths() = %v, want dedup set %v", got, want)
	}
	for _, p := range got {
		if !want[p] {
			t.Errorf("unexpected path %q in AllPaths()", p)
		}
	}
}

func mustRFC3339(t *testing.T, s string) time.Time {
	t.Helper()
	tm, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t.Fatalf("mustRFC3339(%q): %v", s, err)
	}
	return tm
}
