// Package arch detects the host CPU architecture and maps it to the
// manifest's package selectors.
package arch

import (
	"fmt"
	"runtime"
)

// Architecture is a detected or declared CPU architecture.
type Architecture struct {
	kind Kind
	name string // original, unmapped string; only meaningful when kind == Unsupported
}

// Kind enumerates the supported architecture families.
type Kind int

const (
	// X86_64 covers amd64/x64 hosts.
	X86_64 Kind = iota
	// Aarch64 covers arm64/armv8 hosts.
	Aarch64
	// Unsupported covers any host architecture with no known package selector.
	Unsupported
)

// ManifestKey is the key used to index platform/patch maps in the manifest.
func (a Architecture) ManifestKey() string {
	switch a.kind {
	case X86_64:
		return "x86_64"
	case Aarch64:
		return "aarch64"
	default:
		return a.name
	}
}

// Kind returns the architecture's family.
func (a Architecture) Kind() Kind { return a.kind }

// String renders a human-readable architecture name.
func (a Architecture) String() string {
	if a.kind == Unsupported {
		return fmt.Sprintf("unsupported(%s)", a.name)
	}
	return a.ManifestKey()
}

// IsSupported reports whether the architecture has a known package selector.
func (a Architecture) IsSupported() bool {
	return a.kind != Unsupported
}

var aliases = map[string]Kind{
	"x86_64": X86_64,
	"amd64":  X86_64,
	"x64":    X86_64,

	"aarch64": Aarch64,
	"arm64":   Aarch64,
	"armv8":   Aarch64,
}

// FromString maps an architecture alias string to an Architecture value.
// Unknown strings map to Unsupported, carrying the original string for
// diagnostics.
func FromString(s string) Architecture {
	if kind, ok := aliases[s]; ok {
		return Architecture{kind: kind}
	}
	return Architecture{kind: Unsupported, name: s}
}

// Detect identifies the current host's architecture using runtime.GOARCH.
func Detect() Architecture {
	return FromString(runtime.GOARCH)
}

// Coverage describes something that can be queried for which architectures
// it covers — satisfied by manifest.Manifest for full-upgrade packages.
type Coverage interface {
	HasPackageFor(key string) bool
}

// Supports reports whether m covers arch for a full-upgrade package.
func Supports(a Architecture, m Coverage) bool {
	if !a.IsSupported() {
		return false
	}
	return m.HasPackageFor(a.ManifestKey())
}
