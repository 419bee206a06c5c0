// Package backup snapshots the working tree before an upgrade mutates it,
// and restores that snapshot if the upgrade must be rolled back. Archives
// are tar.gz, created and extracted the way the rest of the corpus handles
// release archives.
package backup

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/b-harvest/svcupgrade/internal/output"
)

// maxExtractedSize bounds any single extracted file, guarding Restore
// against a maliciously or accidentally huge archive entry.
const maxExtractedSize = 1 << 30 // 1GiB

// Snapshotter creates and restores working-tree backups rooted at WorkDir.
type Snapshotter struct {
	WorkDir    string
	ArchiveDir string
	Logger     *output.Logger
}

// New creates a Snapshotter. archiveDir is where backup .tar.gz files are
// written; it is created if absent.
func New(workDir, archiveDir string, logger *output.Logger) *Snapshotter {
	if logger == nil {
		logger = output.DefaultLogger
	}
	return &Snapshotter{WorkDir: workDir, ArchiveDir: archiveDir, Logger: logger}
}

// Create archives the given paths (relative to WorkDir) into a new tar.gz
// under ArchiveDir, named after upgradeID. Paths that don't currently exist
// are skipped, matching the patch executor's treatment of absent entries.
// It returns the archive's path and total uncompressed size.
func (s *Snapshotter) Create(upgradeID string, paths []string) (archivePath string, sizeBytes int64, err error) {
	if err := os.MkdirAll(s.ArchiveDir, 0o750); err != nil {
		return "", 0, fmt.Errorf("backup: create archive dir: %w", err)
	}

	archivePath = filepath.Join(s.ArchiveDir, upgradeID+".tar.gz")
	tmpPath := archivePath + ".tmp"

	f, err := os.Create(tmpPath)
	if err != nil {
		return "", 0, fmt.Errorf("backup: create %s: %w", tmpPath, err)
	}
	defer func() {
		f.Close()
		if err != nil {
			os.Remove(tmpPath)
		}
	}()

	gzw := gzip.NewWriter(f)
	tw := tar.NewWriter(gzw)

	var total int64
	for _, rel := range paths {
		n, walkErr := s.addPath(tw, rel)
		if walkErr != nil {
			tw.Close()
			gzw.Close()
			return "", 0, walkErr
		}
		total += n
	}

	if err := tw.Close(); err != nil {
		return "", 0, fmt.Errorf("backup: finalize tar: %w", err)
	}
	if err := gzw.Close(); err != nil {
		return "", 0, fmt.Errorf("backup: finalize gzip: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", 0, fmt.Errorf("backup: close %s: %w", tmpPath, err)
	}

	if err := os.Rename(tmpPath, archivePath); err != nil {
		return "", 0, fmt.Errorf("backup: rename %s: %w", tmpPath, err)
	}

	s.Logger.Info("created backup %s (%d bytes, %d paths)", archivePath, total, len(paths))
	return archivePath, total, nil
}

// addPath walks one WorkDir-relative path, writing every regular file and
// directory it contains into tw. A missing path is silently skipped.
func (s *Snapshotter) addPath(tw *tar.Writer, rel string) (int64, error) {
	abs := filepath.Join(s.WorkDir, rel)
	_, err := os.Lstat(abs)
	if os.IsNotExist(err) {
		s.Logger.Debug("backup: %s does not exist, skipping", rel)
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("backup: stat %s: %w", rel, err)
	}

	var total int64
	walkErr := filepath.WalkDir(abs, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		relPath, err := filepath.Rel(s.WorkDir, path)
		if err != nil {
			return err
		}
		entryInfo, err := d.Info()
		if err != nil {
			return err
		}

		if d.Type()&os.ModeSymlink != 0 {
			return nil
		}

		hdr, err := tar.FileInfoHeader(entryInfo, "")
		if err != nil {
			return err
		}
		hdr.Name = filepath.ToSlash(relPath)
		if d.IsDir() {
			hdr.Name += "/"
		}

		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		file, err := os.Open(path)
		if err != nil {
			return err
		}
		defer file.Close()

		n, err := io.Copy(tw, file)
		total += n
		return err
	})
	if walkErr != nil {
		return total, fmt.Errorf("backup: archive %s: %w", rel, walkErr)
	}
	return total, nil
}
