package dockerctl

import (
	"errors"
	"fmt"
)

// Base errors for Docker collaborator operations.
var (
	ErrDockerUnavailable   = errors.New("docker daemon is not reachable")
	ErrServicesStillUp     = errors.New("persistent containers still running after stop timeout")
	ErrServicesNotHealthy  = errors.New("persistent containers did not become healthy before timeout")
	ErrComposeFileNotFound = errors.New("docker-compose.yml not found in working directory")
	ErrUnsupportedPlatform = errors.New("no Docker platform mapping for this architecture")
)

// ComposeError wraps a docker-compose subprocess failure with its combined
// output.
type ComposeError struct {
	Args   []string
	Output string
	Err    error
}

func (e *ComposeError) Error() string {
	return fmt.Sprintf("docker compose %v failed: %s: %v", e.Args, e.Output, e.Err)
}

func (e *ComposeError) Unwrap() error {
	return e.Err
}
