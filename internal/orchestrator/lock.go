package orchestrator

import (
	"fmt"
	"os"
	"path/filepath"
)

const lockFileName = ".svcupgrade.lock"

// acquireLock creates an exclusive lock file in workDir so at most one
// upgrade runs per working directory at a time. The lock file
// contains the current process's PID for diagnosability; a stale lock left
// by a killed process must be removed manually (matching the file-based
// lock's documented tradeoff: simple, but not self-healing).
func acquireLock(workDir string) (release func() error, err error) {
	path := filepath.Join(workDir, lockFileName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return nil, ErrAlreadyRunning
		}
		return nil, fmt.Errorf("orchestrator: create lock file %s: %w", path, err)
	}
	fmt.Fprintf(f, "%d\n", os.Getpid())
	f.Close()

	return func() error {
		return os.Remove(path)
	}, nil
}
