// Package version implements the four-segment version algebra used to
// decide whether an upgrade is a no-op, a patch, or a full replacement.
package version

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// MaxSegment is the exclusive upper bound for a version segment: the
// largest accepted value is MaxSegment-1, and anything at or above
// MaxSegment is treated as malformed input.
const MaxSegment = 1_000_000

// ErrMalformed is returned when a version string does not match the grammar.
var ErrMalformed = errors.New("malformed version string")

// Version is an ordered (major, minor, patch, build) tuple.
type Version struct {
	Major, Minor, Patch, Build int
}

// Parse parses a version string of the form "[v]major.minor.patch[.build]".
// Build defaults to 0 when the fourth segment is omitted. Parsing consumes
// the entire input; trailing characters are an error. Each segment must be
// a non-negative integer below MaxSegment.
func Parse(s string) (Version, error) {
	trimmed := s
	if strings.HasPrefix(s, "v") || strings.HasPrefix(s, "V") {
		trimmed = s[1:]
	}
	if trimmed == "" {
		return Version{}, fmt.Errorf("%w: %q: empty version", ErrMalformed, s)
	}

	parts := strings.Split(trimmed, ".")
	if len(parts) != 3 && len(parts) != 4 {
		return Version{}, fmt.Errorf("%w: %q: expected 3 or 4 dot-separated segments, got %d", ErrMalformed, s, len(parts))
	}

	segs := make([]int, 4)
	for i, p := range parts {
		n, err := parseSegment(p)
		if err != nil {
			return Version{}, fmt.Errorf("%w: %q: segment %d (%q): %v", ErrMalformed, s, i, p, err)
		}
		segs[i] = n
	}

	return Version{Major: segs[0], Minor: segs[1], Patch: segs[2], Build: segs[3]}, nil
}

func parseSegment(p string) (int, error) {
	if p == "" {
		return 0, errors.New("empty segment")
	}
	for _, r := range p {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("non-digit character %q", r)
		}
	}
	n, err := strconv.Atoi(p)
	if err != nil {
		return 0, err
	}
	if n >= MaxSegment {
		return 0, fmt.Errorf("segment %d exceeds maximum %d", n, MaxSegment)
	}
	return n, nil
}

// String renders the version in canonical "major.minor.patch.build" form.
func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d.%d", v.Major, v.Minor, v.Patch, v.Build)
}

// Base returns v with Build reset to zero.
func (v Version) Base() Version {
	return Version{Major: v.Major, Minor: v.Minor, Patch: v.Patch, Build: 0}
}

// Less reports whether v sorts strictly before other, lexicographically
// on (Major, Minor, Patch, Build).
func (v Version) Less(other Version) bool {
	if v.Major != other.Major {
		return v.Major < other.Major
	}
	if v.Minor != other.Minor {
		return v.Minor < other.Minor
	}
	if v.Patch != other.Patch {
		return v.Patch < other.Patch
	}
	return v.Build < other.Build
}

// Equal reports whether v and other are identical in all four segments.
func (v Version) Equal(other Version) bool {
	return v == other
}

// PatchCompatible reports whether v and other share the same base version.
func (v Version) PatchCompatible(other Version) bool {
	return v.Base() == other.Base()
}

// Comparison is the classification of a (current, target) version pair.
type Comparison int

const (
	// Equal means current and target are identical.
	Equal Comparison = iota
	// Newer means current is ahead of target; no upgrade applies.
	Newer
	// PatchUpgradeable means current and target share a base version and
	// target has a higher build number.
	PatchUpgradeable
	// FullUpgradeRequired means target has a strictly higher base version.
	FullUpgradeRequired
)

// String renders a human-readable name for the comparison.
func (c Comparison) String() string {
	switch c {
	case Equal:
		return "Equal"
	case Newer:
		return "Newer"
	case PatchUpgradeable:
		return "PatchUpgradeable"
	case FullUpgradeRequired:
		return "FullUpgradeRequired"
	default:
		return fmt.Sprintf("Comparison(%d)", int(c))
	}
}

// CompareDetailed classifies current relative to target: identical tuples
// are Equal; a shared base with a lower build is PatchUpgradeable and with
// a higher build is Newer; a lower base requires a full upgrade.
func CompareDetailed(current, target Version) Comparison {
	if current == target {
		return Equal
	}

	curBase, tgtBase := current.Base(), target.Base()

	if curBase == tgtBase {
		if current.Build > target.Build {
			return Newer
		}
		return PatchUpgradeable
	}

	if tgtBase.Less(curBase) {
		return Newer
	}
	return FullUpgradeRequired
}
