package manifest

import (
	"fmt"
	"path"
	"strings"
)

// ValidationError reports the offending field from Validate.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("manifest invalid: field %q: %s", e.Field, e.Reason)
}

// Validate enforces the manifest's structural and safety constraints. A
// Manifest that fails Validate must never be used by a caller — this
// function is the sole gate.
func (m *Manifest) Validate() error {
	if m.LegacyPackage == nil && len(m.Platforms) == 0 {
		return &ValidationError{Field: "platforms/legacyPackage", Reason: "at least one of platforms or legacyPackage must be present"}
	}

	for archKey, ref := range m.Platforms {
		if err := validatePackageRef(fmt.Sprintf("platforms[%s]", archKey), ref); err != nil {
			return err
		}
	}

	if m.LegacyPackage != nil {
		if err := validatePackageRef("legacyPackage", *m.LegacyPackage); err != nil {
			return err
		}
	}

	for archKey, ref := range m.Patch {
		field := fmt.Sprintf("patch[%s]", archKey)
		if err := validateURL(field+".url", ref.URL); err != nil {
			return err
		}
		if ref.Hash != "" && strings.TrimSpace(ref.Hash) == "" {
			return &ValidationError{Field: field + ".hash", Reason: "must be non-empty when present"}
		}
		if ref.Signature != "" && strings.TrimSpace(ref.Signature) == "" {
			return &ValidationError{Field: field + ".signature", Reason: "must be non-empty when present"}
		}
		if err := validatePatchOperations(field+".operations", ref.Operations); err != nil {
			return err
		}
	}

	return nil
}

func validatePackageRef(field string, ref PackageRef) error {
	if err := validateURL(field+".url", ref.URL); err != nil {
		return err
	}
	if ref.Signature != "" && strings.TrimSpace(ref.Signature) == "" {
		return &ValidationError{Field: field + ".signature", Reason: "must be non-empty when present"}
	}
	return nil
}

func validateURL(field, url string) error {
	if url == "" {
		return &ValidationError{Field: field, Reason: "must not be empty"}
	}
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") && !strings.HasPrefix(url, "file://") {
		return &ValidationError{Field: field, Reason: fmt.Sprintf("must be http(s):// or file://, got %q", url)}
	}
	return nil
}

func validatePatchOperations(field string, ops PatchOperations) error {
	check := func(kind string, paths []string) error {
		for _, p := range paths {
			if err := validateRelativeSafePath(p); err != nil {
				return &ValidationError{Field: fmt.Sprintf("%s.%s", field, kind), Reason: fmt.Sprintf("path %q: %v", p, err)}
			}
		}
		return nil
	}
	if err := check("replace.files", ops.Replace.Files); err != nil {
		return err
	}
	if err := check("replace.directories", ops.Replace.Directories); err != nil {
		return err
	}
	if err := check("delete.files", ops.Delete.Files); err != nil {
		return err
	}
	if err := check("delete.directories", ops.Delete.Directories); err != nil {
		return err
	}
	return nil
}

// ValidateRelativeSafePath rejects absolute paths, ".." traversal segments,
// and platform-specific system prefixes. Exported so the patch executor can
// re-run the same check independently at apply time.
func ValidateRelativeSafePath(p string) error {
	return validateRelativeSafePath(p)
}

// validateRelativeSafePath rejects absolute paths, ".." traversal segments,
// and platform-specific system prefixes. Both validation here and the patch
// executor's apply-time re-check call this single implementation.
func validateRelativeSafePath(p string) error {
	if p == "" {
		return fmt.Errorf("empty path")
	}
	if path.IsAbs(p) {
		return fmt.Errorf("absolute path not allowed")
	}
	if strings.HasPrefix(p, "/") || strings.HasPrefix(p, `\`) {
		return fmt.Errorf("absolute path not allowed")
	}
	if len(p) >= 2 && p[1] == ':' {
		// e.g. "C:\..." — Windows drive-letter prefix
		return fmt.Errorf("system path prefix not allowed")
	}
	for _, seg := range strings.Split(filepathSplit(p), "/") {
		if seg == ".." {
			return fmt.Errorf("path traversal segment not allowed")
		}
	}
	return nil
}

// filepathSplit normalizes backslashes to forward slashes before segment
// splitting so ".." is caught regardless of the separator style embedded in
// the manifest.
func filepathSplit(p string) string {
	return strings.ReplaceAll(p, `\`, "/")
}
