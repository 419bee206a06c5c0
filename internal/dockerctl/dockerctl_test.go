package dockerctl

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	dockertypes "github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	imagetypes "github.com/docker/docker/api/types/image"

	"github.com/b-harvest/svcupgrade/internal/arch"
	"github.com/b-harvest/svcupgrade/internal/output"
)

type fakeDockerClient struct {
	containers []dockertypes.Container
	inspected  map[string]dockertypes.ContainerJSON
}

func (f *fakeDockerClient) ImagePull(ctx context.Context, refStr string, options imagetypes.PullOptions) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader("")), nil
}

func (f *fakeDockerClient) ContainerList(ctx context.Context, opts container.ListOptions) ([]dockertypes.Container, error) {
	return f.containers, nil
}

func (f *fakeDockerClient) ContainerInspect(ctx context.Context, id string) (dockertypes.ContainerJSON, error) {
	info, ok := f.inspected[id]
	if !ok {
		return dockertypes.ContainerJSON{}, errors.New("not found")
	}
	return info, nil
}

func (f *fakeDockerClient) Close() error { return nil }

func newInspection(running bool, policy container.RestartPolicyMode) dockertypes.ContainerJSON {
	return dockertypes.ContainerJSON{
		ContainerJSONBase: &dockertypes.ContainerJSONBase{
			State:      &dockertypes.ContainerState{Running: running},
			HostConfig: &container.HostConfig{RestartPolicy: container.RestartPolicy{Name: policy}},
		},
	}
}

func TestHealthCheckClassifiesOneShotVsPersistent(t *testing.T) {
	fake := &fakeDockerClient{
		containers: []dockertypes.Container{
			{ID: "persistent-1", Names: []string{"/svc-api"}, Image: "svc:1"},
			{ID: "oneshot-1", Names: []string{"/svc-migrate"}, Image: "svc:1"},
		},
		inspected: map[string]dockertypes.ContainerJSON{
			"persistent-1": newInspection(true, container.RestartPolicyAlways),
			"oneshot-1":    newInspection(false, container.RestartPolicyDisabled),
		},
	}
	c := &Controller{cli: fake, WorkDir: t.TempDir()}

	infos, err := c.HealthCheck(context.Background())
	if err != nil {
		t.Fatalf("HealthCheck: %v", err)
	}
	if len(infos) != 2 {
		t.Fatalf("HealthCheck returned %d infos, want 2", len(infos))
	}

	var persistent, oneShot *ContainerInfo
	for i := range infos {
		switch infos[i].Name {
		case "svc-api":
			persistent = &infos[i]
		case "svc-migrate":
			oneShot = &infos[i]
		}
	}
	if persistent == nil || persistent.OneShot {
		t.Errorf("expected svc-api to be classified persistent")
	}
	if oneShot == nil || !oneShot.OneShot {
		t.Errorf("expected svc-migrate to be classified one-shot")
	}

	if !HasRunningPersistent(infos) {
		t.Errorf("expected HasRunningPersistent to be true with svc-api running")
	}
}

func TestHasRunningPersistentFalseWhenOnlyOneShotRunning(t *testing.T) {
	infos := []ContainerInfo{{OneShot: true, Running: true}}
	if HasRunningPersistent(infos) {
		t.Errorf("expected false when only one-shot containers are running")
	}
}

func TestComposeFailsWithoutComposeFile(t *testing.T) {
	c := &Controller{WorkDir: t.TempDir()}
	if err := c.compose(context.Background(), "down"); !errors.Is(err, ErrComposeFileNotFound) {
		t.Errorf("compose() = %v, want ErrComposeFileNotFound", err)
	}
}

func TestHasComposeFile(t *testing.T) {
	dir := t.TempDir()
	c := &Controller{WorkDir: dir}
	if c.HasComposeFile() {
		t.Errorf("expected HasComposeFile false before file is written")
	}
	if err := os.WriteFile(filepath.Join(dir, "docker-compose.yml"), []byte("services: {}"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if !c.HasComposeFile() {
		t.Errorf("expected HasComposeFile true after file is written")
	}
}

func TestPullForArchitectureUnsupported(t *testing.T) {
	fake := &fakeDockerClient{}
	c := &Controller{cli: fake, WorkDir: t.TempDir(), Logger: output.DefaultLogger}
	a := arch.FromString("riscv64")
	if err := c.PullForArchitecture(context.Background(), "example/service:1.0", a); !errors.Is(err, ErrUnsupportedPlatform) {
		t.Errorf("PullForArchitecture() = %v, want ErrUnsupportedPlatform", err)
	}
}

func TestPullForArchitectureSupported(t *testing.T) {
	fake := &fakeDockerClient{}
	c := &Controller{cli: fake, WorkDir: t.TempDir(), Logger: output.DefaultLogger}
	a := arch.FromString("amd64")
	if err := c.PullForArchitecture(context.Background(), "example/service:1.0", a); err != nil {
		t.Errorf("PullForArchitecture() unexpected error: %v", err)
	}
}
