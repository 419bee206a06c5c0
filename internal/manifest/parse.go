package manifest

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/b-harvest/svcupgrade/internal/version"
)

// wireManifest mirrors the on-wire JSON shape. version is decoded as a raw
// string through version.Parse rather than relying on encoding/json's
// numeric handling, since the grammar (optional "v" prefix, 3-or-4
// segments) isn't expressible as a plain struct field.
type wireManifest struct {
	VersionStr   string `json:"version"`
	ReleaseDate  string `json:"release_date"`
	ReleaseNotes string `json:"release_notes"`

	// Enhanced format.
	Platforms map[string]PackageRef `json:"platforms"`
	Patch     map[string]PatchRef   `json:"patch"`

	// Legacy format: a single pre-multi-arch package descriptor, named
	// "packages" on the wire. Some very old producers emitted the
	// singular "package"; both spellings are accepted, plural wins.
	Packages *PackageRef `json:"packages"`
	Package  *PackageRef `json:"package"`
}

// probe is used only to detect whether "platforms" is present at the top
// level, distinguishing the enhanced format from the legacy one.
type probe struct {
	Platforms json.RawMessage `json:"platforms"`
}

// Parse decodes raw JSON into a Manifest, normalizing the legacy format
// into the same shape as the enhanced one. It does not validate semantic
// constraints (URL syntax, path safety, etc.) — call Validate for that.
func Parse(data []byte) (*Manifest, error) {
	var p probe
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("manifest: invalid JSON: %w", err)
	}
	isEnhanced := p.Platforms != nil

	var w wireManifest
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("manifest: invalid JSON: %w", err)
	}

	v, err := version.Parse(w.VersionStr)
	if err != nil {
		return nil, fmt.Errorf("manifest: %w", err)
	}

	releaseDate, err := time.Parse(time.RFC3339, w.ReleaseDate)
	if err != nil {
		return nil, fmt.Errorf("manifest: release_date %q is not RFC3339: %w", w.ReleaseDate, err)
	}

	m := &Manifest{
		Version:      v,
		ReleaseDate:  releaseDate,
		ReleaseNotes: w.ReleaseNotes,
	}

	if isEnhanced {
		m.Platforms = w.Platforms
		m.Patch = w.Patch
	} else {
		m.LegacyPackage = w.Packages
		if m.LegacyPackage == nil {
			m.LegacyPackage = w.Package
		}
	}

	return m, nil
}
