// Package manifest provides the typed representation of the remote upgrade
// manifest, along with dual-format JSON parsing and validation.
package manifest

import (
	"time"

	"github.com/b-harvest/svcupgrade/internal/version"
)

// PackageRef describes a full-upgrade artifact for one architecture.
type PackageRef struct {
	URL       string `json:"url"`
	Signature string `json:"signature,omitempty"`
	// Hash is the expected SHA-256 of the artifact. The literal value
	// "external" marks a legacy package whose hash check is deliberately
	// skipped in favor of signature verification.
	Hash string `json:"hash,omitempty"`
}

// FilesAndDirs is a set of relative paths grouped by kind.
type FilesAndDirs struct {
	Files       []string `json:"files,omitempty"`
	Directories []string `json:"directories,omitempty"`
}

// IsEmpty reports whether neither files nor directories are listed.
func (f FilesAndDirs) IsEmpty() bool {
	return len(f.Files) == 0 && len(f.Directories) == 0
}

// PatchOperations is the structured set of file/directory mutations a patch
// applies against the working tree.
type PatchOperations struct {
	Replace FilesAndDirs `json:"replace,omitempty"`
	Delete  FilesAndDirs `json:"delete,omitempty"`
}

// IsEmpty reports whether the patch performs no I/O at all.
func (p PatchOperations) IsEmpty() bool {
	return p.Replace.IsEmpty() && p.Delete.IsEmpty()
}

// AllPaths returns every distinct relative path referenced anywhere in the
// operations, used by callers that need to know what a patch will touch
// (e.g. to decide what to back up).
func (p PatchOperations) AllPaths() []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(paths []string) {
		for _, pth := range paths {
			if _, ok := seen[pth]; ok {
				continue
			}
			seen[pth] = struct{}{}
			out = append(out, pth)
		}
	}
	add(p.Replace.Files)
	add(p.Replace.Directories)
	add(p.Delete.Files)
	add(p.Delete.Directories)
	return out
}

// PatchRef describes a patch-upgrade artifact for one architecture.
type PatchRef struct {
	URL        string          `json:"url"`
	Hash       string          `json:"hash,omitempty"`
	Signature  string          `json:"signature,omitempty"`
	Operations PatchOperations `json:"operations"`
	Notes      string          `json:"notes,omitempty"`
}

// Manifest is the typed representation of the remote upgrade manifest.
// It is produced by Parse and is immutable once validated.
type Manifest struct {
	Version       version.Version       `json:"-"`
	ReleaseDate   time.Time             `json:"-"`
	ReleaseNotes  string                `json:"release_notes,omitempty"`
	LegacyPackage *PackageRef           `json:"-"`
	Platforms     map[string]PackageRef `json:"-"`
	Patch         map[string]PatchRef   `json:"-"`
}

// HasPackageFor reports whether platforms contains a full-upgrade package
// for the given architecture key. Satisfies arch.Coverage.
func (m *Manifest) HasPackageFor(archKey string) bool {
	if m == nil {
		return false
	}
	_, ok := m.Platforms[archKey]
	return ok
}

// PackageFor returns the full-upgrade package for archKey, if any.
func (m *Manifest) PackageFor(archKey string) (PackageRef, bool) {
	if m == nil {
		return PackageRef{}, false
	}
	if ref, ok := m.Platforms[archKey]; ok {
		return ref, true
	}
	if m.LegacyPackage != nil && len(m.Platforms) == 0 {
		return *m.LegacyPackage, true
	}
	return PackageRef{}, false
}

// HasPatchFor reports whether a patch is available for archKey.
func (m *Manifest) HasPatchFor(archKey string) bool {
	if m == nil {
		return false
	}
	_, ok := m.Patch[archKey]
	return ok
}

// PatchFor returns the patch for archKey, if any.
func (m *Manifest) PatchFor(archKey string) (PatchRef, bool) {
	if m == nil {
		return PatchRef{}, false
	}
	ref, ok := m.Patch[archKey]
	return ref, ok
}
