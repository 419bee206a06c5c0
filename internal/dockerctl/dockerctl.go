// Package dockerctl is the Docker collaborator for the upgrade
// orchestrator: container health classification via the Docker API, and
// service lifecycle management via `docker compose` subprocess calls.
package dockerctl

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	dockertypes "github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	imagetypes "github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"

	"github.com/b-harvest/svcupgrade/internal/output"
)

// dockerClient abstracts the subset of the Docker API client this package
// uses so tests can substitute a fake.
type dockerClient interface {
	ContainerList(ctx context.Context, options container.ListOptions) ([]dockertypes.Container, error)
	ContainerInspect(ctx context.Context, containerID string) (dockertypes.ContainerJSON, error)
	ImagePull(ctx context.Context, refStr string, options imagetypes.PullOptions) (io.ReadCloser, error)
	Close() error
}

// ContainerInfo is the classification result for one container.
type ContainerInfo struct {
	ID            string
	Name          string
	Image         string
	RestartPolicy string
	OneShot       bool
	Running       bool
}

// Controller manages the service tree in WorkDir: health-checking
// containers via the Docker API and stopping/starting them via
// `docker compose`.
type Controller struct {
	cli     dockerClient
	WorkDir string
	Logger  *output.Logger

	composeOnce sync.Once
	composeCmd  []string // e.g. ["docker", "compose"] or ["docker-compose"]
}

// New creates a Controller backed by a real Docker API client configured
// from the environment (DOCKER_HOST etc.).
func New(workDir string, logger *output.Logger) (*Controller, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("dockerctl: create docker client: %w", err)
	}
	if logger == nil {
		logger = output.DefaultLogger
	}
	return &Controller{cli: cli, WorkDir: workDir, Logger: logger}, nil
}

// Close releases the underlying Docker API client.
func (c *Controller) Close() error {
	return c.cli.Close()
}

func (c *Controller) logger() *output.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return output.DefaultLogger
}

// isOneShotPolicy reports whether a restart policy name exempts its
// container from "services running" precondition checks: any policy other
// than "always" or "unless-stopped".
func isOneShotPolicy(policy string) bool {
	return policy != "always" && policy != "unless-stopped"
}

// HealthCheck lists every container and classifies it by restart policy.
func (c *Controller) HealthCheck(ctx context.Context) ([]ContainerInfo, error) {
	containers, err := c.cli.ContainerList(ctx, container.ListOptions{All: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDockerUnavailable, err)
	}

	infos := make([]ContainerInfo, 0, len(containers))
	for _, ctr := range containers {
		info, err := c.cli.ContainerInspect(ctx, ctr.ID)
		if err != nil {
			c.logger().Warn("inspect %s failed, skipping health classification: %v", ctr.ID, err)
			continue
		}
		policy := string(info.HostConfig.RestartPolicy.Name)
		name := ""
		if len(ctr.Names) > 0 {
			name = strings.TrimPrefix(ctr.Names[0], "/")
		}
		infos = append(infos, ContainerInfo{
			ID:            ctr.ID,
			Name:          name,
			Image:         ctr.Image,
			RestartPolicy: policy,
			OneShot:       isOneShotPolicy(policy),
			Running:       info.State.Running,
		})
	}
	return infos, nil
}

// HasRunningPersistent reports whether any non-one-shot container in infos
// is currently running — the precondition StopServices must clear before
// the orchestrator proceeds.
func HasRunningPersistent(infos []ContainerInfo) bool {
	for _, i := range infos {
		if !i.OneShot && i.Running {
			return true
		}
	}
	return false
}

// StopServices issues `compose down`, escalating to a forced kill if the
// timeout elapses before containers terminate.
func (c *Controller) StopServices(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := c.compose(ctx, "down")
	if err == nil {
		return nil
	}
	if ctx.Err() != context.DeadlineExceeded {
		return err
	}

	c.logger().Warn("compose down exceeded %s, forcing kill", timeout)
	if killErr := c.compose(context.Background(), "kill"); killErr != nil {
		return fmt.Errorf("%w: %v (force-kill also failed: %v)", ErrServicesStillUp, err, killErr)
	}
	return nil
}

// StartServices issues `compose up -d` then polls HealthCheck until every
// persistent container is running or timeout elapses.
func (c *Controller) StartServices(ctx context.Context, timeout time.Duration) error {
	if err := c.compose(ctx, "up", "-d"); err != nil {
		return err
	}

	deadline := time.Now().Add(timeout)
	for {
		infos, err := c.HealthCheck(ctx)
		if err == nil && allPersistentRunning(infos) {
			return nil
		}
		if time.Now().After(deadline) {
			return ErrServicesNotHealthy
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
}

func allPersistentRunning(infos []ContainerInfo) bool {
	sawPersistent := false
	for _, i := range infos {
		if i.OneShot {
			continue
		}
		sawPersistent = true
		if !i.Running {
			return false
		}
	}
	return sawPersistent
}

// detectComposeCmd probes the host once for which Compose major version is
// available, preferring the `docker compose` v2 plugin and falling back to
// the standalone v1 `docker-compose` binary, per the orchestrator's
// requirement to not assume a specific Compose major version.
func detectComposeCmd() []string {
	if err := exec.Command("docker", "compose", "version").Run(); err == nil {
		return []string{"docker", "compose"}
	}
	if _, err := exec.LookPath("docker-compose"); err == nil {
		return []string{"docker-compose"}
	}
	// Neither probe succeeded; default to the v2 plugin invocation so the
	// resulting error surfaces the real underlying failure.
	return []string{"docker", "compose"}
}

// compose invokes the detected Compose binary with args, with WorkDir as
// the working directory, after confirming a compose file is actually
// present.
func (c *Controller) compose(ctx context.Context, args ...string) error {
	_, err := c.composeOutput(ctx, args...)
	return err
}

func (c *Controller) composeOutput(ctx context.Context, args ...string) (string, error) {
	composePath := filepath.Join(c.WorkDir, "docker-compose.yml")
	if _, err := os.Stat(composePath); os.IsNotExist(err) {
		return "", ErrComposeFileNotFound
	}

	c.composeOnce.Do(func() {
		c.composeCmd = detectComposeCmd()
	})

	name := c.composeCmd[0]
	fullArgs := append(append([]string{}, c.composeCmd[1:]...), args...)
	cmd := exec.CommandContext(ctx, name, fullArgs...)
	cmd.Dir = c.WorkDir
	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", &ComposeError{Args: args, Output: stdout.String() + stderr.String(), Err: err}
	}
	return stdout.String(), nil
}

// ComposeImages resolves the image references the compose file would run,
// via `compose config --images`, one reference per output line.
func (c *Controller) ComposeImages(ctx context.Context) ([]string, error) {
	out, err := c.composeOutput(ctx, "config", "--images")
	if err != nil {
		return nil, err
	}
	var images []string
	for _, line := range strings.Split(out, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			images = append(images, line)
		}
	}
	return images, nil
}

// HasComposeFile reports whether WorkDir contains a docker-compose.yml,
// the "working tree present" signal the strategy selector consults.
func (c *Controller) HasComposeFile() bool {
	_, err := os.Stat(filepath.Join(c.WorkDir, "docker-compose.yml"))
	return err == nil
}
