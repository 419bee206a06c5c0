package orchestrator

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// preservedTopLevel names the entries a FullUpgrade carries forward
// untouched: the operator's compose configuration and environment file,
// plus the lock file guarding this very run.
var preservedTopLevel = map[string]bool{
	"docker-compose.yml": true,
	".env":               true,
	lockFileName:         true,
}

const dataDirName = "data"

// applyFullUpgrade performs a stage-then-swap replacement of the service
// tree: a complete replacement tree is assembled in a sibling
// staging directory — preserved files and the data directory copied in
// untouched, the rest taken from the staged extraction — and only once
// that tree is fully built is it swapped into place with two directory
// renames. The live working tree is never partially wiped: if assembly
// fails at any point, workDir is untouched and only the sibling staging
// directory needs cleanup.
func applyFullUpgrade(workDir, extractDir string) error {
	stageDir := workDir + ".staged"
	os.RemoveAll(stageDir)
	if err := os.MkdirAll(stageDir, 0o750); err != nil {
		return fmt.Errorf("orchestrator: create staging dir: %w", err)
	}

	if err := assembleStagedTree(workDir, extractDir, stageDir); err != nil {
		os.RemoveAll(stageDir)
		return fmt.Errorf("orchestrator: assemble staged tree: %w", err)
	}

	if err := swapIntoPlace(workDir, stageDir); err != nil {
		os.RemoveAll(stageDir)
		return fmt.Errorf("orchestrator: swap staged tree into place: %w", err)
	}
	return nil
}

// assembleStagedTree builds the complete post-upgrade tree under stageDir
// without touching workDir: preserved top-level files and the data
// directory are copied from the live tree, everything else comes from the
// staged extraction.
func assembleStagedTree(workDir, extractDir, stageDir string) error {
	if err := moveExtractedInto(extractDir, stageDir); err != nil {
		return err
	}

	// Preserved entries and the live data directory are copied in last so
	// they win over anything the archive shipped under the same names.
	for name := range preservedTopLevel {
		srcPath := filepath.Join(workDir, name)
		info, err := os.Stat(srcPath)
		if err != nil {
			continue
		}
		if info.IsDir() {
			if err := copyTree(srcPath, filepath.Join(stageDir, name)); err != nil {
				return err
			}
			continue
		}
		if err := copyFile(srcPath, filepath.Join(stageDir, name)); err != nil {
			return err
		}
	}

	dataPath := filepath.Join(workDir, dataDirName)
	if _, err := os.Stat(dataPath); err == nil {
		stagedData := filepath.Join(stageDir, dataDirName)
		os.RemoveAll(stagedData)
		if err := copyTree(dataPath, stagedData); err != nil {
			return err
		}
	}

	return nil
}

// swapIntoPlace atomically replaces workDir with stageDir: workDir is
// renamed aside, stageDir is renamed into workDir's place, and the
// original is only removed once the swap has fully succeeded. If the
// second rename fails, the first is undone so workDir is restored.
func swapIntoPlace(workDir, stageDir string) error {
	oldDir := workDir + ".old"
	os.RemoveAll(oldDir)

	if err := os.Rename(workDir, oldDir); err != nil {
		return fmt.Errorf("move live tree aside: %w", err)
	}
	if err := os.Rename(stageDir, workDir); err != nil {
		if restoreErr := os.Rename(oldDir, workDir); restoreErr != nil {
			return fmt.Errorf("move staged tree into place: %w (restore of live tree also failed: %v)", err, restoreErr)
		}
		return fmt.Errorf("move staged tree into place: %w", err)
	}

	os.RemoveAll(oldDir)
	return nil
}

// moveExtractedInto moves every entry from src into dst (rename, falling
// back to a copy when the rename fails), skipping any
// top-level preserved name so a freshly extracted archive never clobbers
// the operator's compose file or environment.
func moveExtractedInto(src, dst string) error {
	entries, err := os.ReadDir(src)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if preservedTopLevel[e.Name()] {
			continue
		}
		srcPath := filepath.Join(src, e.Name())
		dstPath := filepath.Join(dst, e.Name())
		os.RemoveAll(dstPath)
		if err := os.Rename(srcPath, dstPath); err != nil {
			if err := copyTree(srcPath, dstPath); err != nil {
				return err
			}
		}
	}
	return nil
}

// copyTree is the fallback used when Rename fails across filesystem
// boundaries (e.g. the cache dir and work dir are on different mounts).
func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o750)
		}
		return copyFile(path, target)
	})
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
		return err
	}
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}
