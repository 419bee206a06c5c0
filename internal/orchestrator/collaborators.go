package orchestrator

import (
	"context"
	"time"

	"github.com/b-harvest/svcupgrade/internal/arch"
	"github.com/b-harvest/svcupgrade/internal/dockerctl"
	"github.com/b-harvest/svcupgrade/internal/manifest"
)

// ManifestProvider fetches the remote upgrade manifest. Implementations
// own the HTTP transport, retries, and timeout.
type ManifestProvider interface {
	Fetch(ctx context.Context) (*manifest.Manifest, error)
}

// DockerController is the subset of dockerctl.Controller the orchestrator
// drives directly, narrowed to an interface so tests can substitute a fake
// without a real Docker daemon.
type DockerController interface {
	HealthCheck(ctx context.Context) ([]dockerctl.ContainerInfo, error)
	StopServices(ctx context.Context, timeout time.Duration) error
	StartServices(ctx context.Context, timeout time.Duration) error
	ComposeImages(ctx context.Context) ([]string, error)
	PullForArchitecture(ctx context.Context, image string, a arch.Architecture) error
	HasComposeFile() bool
}

// MigrationRunner is the external SQL schema-diff collaborator invoked by
// the Migrate phase. Its output is opaque SQL text applied by the database
// collaborator it owns; failure here is reported as a warning, never a
// terminal orchestrator error.
type MigrationRunner interface {
	Migrate(ctx context.Context, fromVersion, toVersion string) error
}

// NoopMigrationRunner is used when no migration collaborator is configured;
// Migrate always succeeds trivially.
type NoopMigrationRunner struct{}

func (NoopMigrationRunner) Migrate(ctx context.Context, fromVersion, toVersion string) error {
	return nil
}
