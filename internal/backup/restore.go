package backup

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Restore extracts the archive at archivePath back into WorkDir, overwriting
// whatever is currently there. Used by the orchestrator's rollback phase
// after a failed Apply.
func (s *Snapshotter) Restore(archivePath string) error {
	if err := ExtractTarGz(archivePath, s.WorkDir); err != nil {
		return err
	}
	s.Logger.Info("restored backup %s into %s", archivePath, s.WorkDir)
	return nil
}

// ExtractTarGz extracts a tar.gz archive into destDir, rejecting any entry
// that would escape destDir or exceed maxExtractedSize. Shared by backup
// restore and the orchestrator's Download phase, which extracts downloaded
// full/patch archives to a staging directory before Apply.
func ExtractTarGz(archivePath, destDir string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("backup: open %s: %w", archivePath, err)
	}
	defer f.Close()

	gzr, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("backup: open gzip %s: %w", archivePath, err)
	}
	defer gzr.Close()

	if err := os.MkdirAll(destDir, 0o750); err != nil {
		return fmt.Errorf("backup: create %s: %w", destDir, err)
	}

	tr := tar.NewReader(gzr)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("backup: read tar entry: %w", err)
		}
		if err := extractEntry(tr, hdr, destDir); err != nil {
			return err
		}
	}
	return nil
}

func extractEntry(tr *tar.Reader, hdr *tar.Header, destDir string) error {
	name := filepath.Clean(hdr.Name)
	if name == "." || strings.HasPrefix(name, ".."+string(filepath.Separator)) || name == ".." || filepath.IsAbs(name) {
		return fmt.Errorf("%w: %q", ErrPathEscapesArchive, hdr.Name)
	}

	target := filepath.Join(destDir, name)
	if !strings.HasPrefix(target, filepath.Clean(destDir)+string(filepath.Separator)) {
		return fmt.Errorf("%w: %q", ErrPathEscapesArchive, hdr.Name)
	}

	switch hdr.Typeflag {
	case tar.TypeDir:
		return os.MkdirAll(target, 0o750)
	case tar.TypeReg:
		if hdr.Size > maxExtractedSize {
			return fmt.Errorf("%w: %q is %d bytes", ErrEntryTooLarge, hdr.Name, hdr.Size)
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
			return err
		}
		out, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, os.FileMode(hdr.Mode)&0o777)
		if err != nil {
			return fmt.Errorf("backup: create %s: %w", target, err)
		}
		defer out.Close()

		if _, err := io.Copy(out, io.LimitReader(tr, maxExtractedSize)); err != nil {
			return fmt.Errorf("backup: write %s: %w", target, err)
		}
		return nil
	default:
		// Skip symlinks and other special entries; an archive never
		// carries anything an upgrade's working tree legitimately needs
		// beyond regular files and directories.
		return nil
	}
}
