package dockerctl

import (
	"context"
	"fmt"
	"io"

	imagetypes "github.com/docker/docker/api/types/image"
	specs "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/b-harvest/svcupgrade/internal/arch"
)

// dockerArch maps an arch.Architecture to the Go/Docker architecture name
// OCI image platforms are tagged with.
func dockerArch(a arch.Architecture) (string, error) {
	switch a.Kind() {
	case arch.X86_64:
		return "amd64", nil
	case arch.Aarch64:
		return "arm64", nil
	default:
		return "", fmt.Errorf("dockerctl: %w: %s", ErrUnsupportedPlatform, a)
	}
}

// platformString renders an OCI platform descriptor (the same shape the
// Docker API accepts as an ImagePullOptions.Platform string) for a.
func platformString(a arch.Architecture) (string, error) {
	archName, err := dockerArch(a)
	if err != nil {
		return "", err
	}
	p := specs.Platform{OS: "linux", Architecture: archName}
	return p.OS + "/" + p.Architecture, nil
}

// PullForArchitecture pulls image explicitly for a's platform, guarding
// against a host accidentally running an emulated image of the wrong
// architecture after a full upgrade replaces the compose file's image tags.
func (c *Controller) PullForArchitecture(ctx context.Context, image string, a arch.Architecture) error {
	platform, err := platformString(a)
	if err != nil {
		return err
	}

	rc, err := c.cli.ImagePull(ctx, image, imagetypes.PullOptions{Platform: platform})
	if err != nil {
		return fmt.Errorf("dockerctl: pull %s for %s: %w", image, platform, err)
	}
	defer rc.Close()

	if _, err := io.Copy(io.Discard, rc); err != nil {
		return fmt.Errorf("dockerctl: read pull progress for %s: %w", image, err)
	}
	c.logger().Debug("pulled %s for platform %s", image, platform)
	return nil
}
