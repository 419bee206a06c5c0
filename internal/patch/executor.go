// Package patch applies a validated patch archive's operations against a
// working tree: an ordered sequence of deletes and replaces, staged ahead
// of time so any failure can be rolled back in full.
package patch

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/b-harvest/svcupgrade/internal/manifest"
	"github.com/b-harvest/svcupgrade/internal/output"
)

// Executor applies PatchOperations rooted at WorkDir, copying replacement
// content from ExtractDir (the already-downloaded, signature-verified
// patch archive, extracted to a local directory).
type Executor struct {
	WorkDir    string
	ExtractDir string
	Logger     *output.Logger
}

func (e *Executor) logger() *output.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return output.DefaultLogger
}

// Apply re-validates every path in ops, stages the current contents of
// every path ops will touch, then performs delete.files, delete.directories,
// replace.directories, replace.files in that order. Any failure restores
// every touched path from staging before returning.
func (e *Executor) Apply(ops manifest.PatchOperations) error {
	if ops.IsEmpty() {
		return nil
	}

	for _, p := range ops.AllPaths() {
		if err := manifest.ValidateRelativeSafePath(p); err != nil {
			return &ApplyError{Op: "validate", Path: p, Err: fmt.Errorf("%w: %v", ErrUnsafePath, err)}
		}
	}

	stagingDir, err := os.MkdirTemp("", "svcupgrade-patch-stage-*")
	if err != nil {
		return fmt.Errorf("patch: create staging dir: %w", err)
	}
	defer os.RemoveAll(stagingDir)

	touched := ops.AllPaths()
	if err := e.stage(stagingDir, touched); err != nil {
		return fmt.Errorf("patch: stage pre-mutation state: %w", err)
	}

	if applyErr := e.applyOperations(ops); applyErr != nil {
		e.logger().Warn("patch apply failed, rolling back: %v", applyErr)
		if rbErr := e.rollback(stagingDir, touched); rbErr != nil {
			return fmt.Errorf("%w: %v (rollback also failed: %v)", ErrApplyFailed, applyErr, rbErr)
		}
		return fmt.Errorf("%w: %v", ErrApplyFailed, applyErr)
	}

	return nil
}

func (e *Executor) applyOperations(ops manifest.PatchOperations) error {
	for _, rel := range ops.Delete.Files {
		if err := e.deleteFile(rel); err != nil {
			return &ApplyError{Op: "delete_file", Path: rel, Err: err}
		}
	}
	for _, rel := range ops.Delete.Directories {
		if err := e.deleteDir(rel); err != nil {
			return &ApplyError{Op: "delete_dir", Path: rel, Err: err}
		}
	}
	for _, rel := range ops.Replace.Directories {
		if err := e.replaceDir(rel); err != nil {
			return &ApplyError{Op: "replace_dir", Path: rel, Err: err}
		}
	}
	for _, rel := range ops.Replace.Files {
		if err := e.replaceFile(rel); err != nil {
			return &ApplyError{Op: "replace_file", Path: rel, Err: err}
		}
	}
	return nil
}

// deleteFile removes a file; a missing file is a soft warning, not an error,
// satisfying the idempotence requirement on repeated application.
func (e *Executor) deleteFile(rel string) error {
	target := filepath.Join(e.WorkDir, rel)
	if err := os.Remove(target); err != nil {
		if os.IsNotExist(err) {
			e.logger().Warn("delete.files: %s already absent", rel)
			return nil
		}
		return err
	}
	return nil
}

func (e *Executor) deleteDir(rel string) error {
	target := filepath.Join(e.WorkDir, rel)
	return os.RemoveAll(target)
}

// replaceDir removes the old directory, then copies the new directory
// tree from ExtractDir to the same relative path.
func (e *Executor) replaceDir(rel string) error {
	target := filepath.Join(e.WorkDir, rel)
	source := filepath.Join(e.ExtractDir, rel)

	if err := os.RemoveAll(target); err != nil {
		return fmt.Errorf("remove existing directory: %w", err)
	}
	if _, err := os.Stat(source); os.IsNotExist(err) {
		return fmt.Errorf("replacement directory %s not present in extracted patch", rel)
	}
	return copyDir(source, target)
}

func (e *Executor) replaceFile(rel string) error {
	target := filepath.Join(e.WorkDir, rel)
	source := filepath.Join(e.ExtractDir, rel)

	if _, err := os.Stat(source); os.IsNotExist(err) {
		return fmt.Errorf("replacement file %s not present in extracted patch", rel)
	}
	return copyFile(source, target)
}

// stage copies the current contents of every touched path into stagingDir,
// preserving its relative layout, so rollback can restore exactly what was
// there before mutation (including "was absent").
func (e *Executor) stage(stagingDir string, paths []string) error {
	for _, rel := range paths {
		source := filepath.Join(e.WorkDir, rel)
		dest := filepath.Join(stagingDir, rel)

		info, err := os.Stat(source)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return err
		}

		if info.IsDir() {
			if err := copyDir(source, dest); err != nil {
				return err
			}
		} else {
			if err := copyFile(source, dest); err != nil {
				return err
			}
		}
	}
	return nil
}

// rollback restores every touched path from stagingDir in reverse order,
// removing any path that was staged as absent.
func (e *Executor) rollback(stagingDir string, paths []string) error {
	for i := len(paths) - 1; i >= 0; i-- {
		rel := paths[i]
		staged := filepath.Join(stagingDir, rel)
		target := filepath.Join(e.WorkDir, rel)

		if err := os.RemoveAll(target); err != nil {
			return fmt.Errorf("rollback %s: remove mutated state: %w", rel, err)
		}

		info, err := os.Stat(staged)
		if os.IsNotExist(err) {
			continue // path was absent pre-mutation; leaving it removed is correct
		}
		if err != nil {
			return fmt.Errorf("rollback %s: stat staged copy: %w", rel, err)
		}

		if info.IsDir() {
			if err := copyDir(staged, target); err != nil {
				return fmt.Errorf("rollback %s: restore directory: %w", rel, err)
			}
		} else {
			if err := copyFile(staged, target); err != nil {
				return fmt.Errorf("rollback %s: restore file: %w", rel, err)
			}
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}

func copyDir(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		if d.IsDir() {
			return os.MkdirAll(target, 0755)
		}
		return copyFile(path, target)
	})
}
