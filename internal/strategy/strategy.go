// Package strategy selects the upgrade strategy for a given version
// comparison, architecture, and working-tree state, and reports what paths
// a caller should back up ahead of applying it.
package strategy

import (
	"errors"
	"fmt"

	"github.com/b-harvest/svcupgrade/internal/arch"
	"github.com/b-harvest/svcupgrade/internal/manifest"
	"github.com/b-harvest/svcupgrade/internal/version"
)

// Strategy is the upgrade path selected for a run.
type Strategy int

const (
	NoUpgrade Strategy = iota
	PatchUpgrade
	FullUpgrade
)

func (s Strategy) String() string {
	switch s {
	case NoUpgrade:
		return "NoUpgrade"
	case PatchUpgrade:
		return "PatchUpgrade"
	case FullUpgrade:
		return "FullUpgrade"
	default:
		return fmt.Sprintf("Strategy(%d)", int(s))
	}
}

// ErrNoCoverage is returned when FullUpgrade is selected but the manifest
// has no package for the target architecture.
var ErrNoCoverage = errors.New("manifest has no package for this architecture")

// Decision is the result of Select: the chosen Strategy plus whatever
// architecture-specific references it resolved.
type Decision struct {
	Strategy Strategy
	Package  manifest.PackageRef // set when Strategy == FullUpgrade
	Patch    manifest.PatchRef   // set when Strategy == PatchUpgrade
}

// Select implements the decision rules in order: a forced full upgrade or
// a missing working tree short-circuits straight to FullUpgrade; otherwise
// the version comparison (version.CompareDetailed) decides, falling back
// to FullUpgrade when PatchUpgradeable but no patch covers arch.
func Select(current version.Version, m *manifest.Manifest, a arch.Architecture, forceFull, workTreePresent bool) (Decision, error) {
	if forceFull {
		return fullUpgrade(m, a)
	}
	if !workTreePresent {
		return fullUpgrade(m, a)
	}

	switch version.CompareDetailed(current, m.Version) {
	case version.Equal, version.Newer:
		return Decision{Strategy: NoUpgrade}, nil
	case version.PatchUpgradeable:
		if ref, ok := m.PatchFor(a.ManifestKey()); ok {
			return Decision{Strategy: PatchUpgrade, Patch: ref}, nil
		}
		return fullUpgrade(m, a)
	case version.FullUpgradeRequired:
		return fullUpgrade(m, a)
	default:
		return Decision{}, fmt.Errorf("strategy: unrecognized version comparison result")
	}
}

func fullUpgrade(m *manifest.Manifest, a arch.Architecture) (Decision, error) {
	ref, ok := m.PackageFor(a.ManifestKey())
	if !ok {
		return Decision{}, fmt.Errorf("strategy: %w: %s", ErrNoCoverage, a.ManifestKey())
	}
	return Decision{Strategy: FullUpgrade, Package: ref}, nil
}

// ChangedPaths reports the paths a caller should back up ahead of applying
// d: the persistent data directory for FullUpgrade, the union of the
// patch's operation paths for PatchUpgrade, and nothing for NoUpgrade.
func (d Decision) ChangedPaths() []string {
	switch d.Strategy {
	case FullUpgrade:
		return []string{"data"}
	case PatchUpgrade:
		return d.Patch.Operations.AllPaths()
	default:
		return nil
	}
}
