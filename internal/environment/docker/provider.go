// Package docker implements the container execution environment on the
// Docker Engine API. Each execution gets a disposable keep-alive container
// with no host mounts; the command runs inside it via exec and the container
// is force-removed on teardown.
package docker

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/CynnixSinn/Cynetics-CLI/internal/environment"
	"github.com/CynnixSinn/Cynetics-CLI/internal/model"
)

// containerWorkDir is the working directory and allowed path root inside the
// container. Docker creates it on container start.
const containerWorkDir = "/work"

// apiClient is the subset of the Docker Engine API the provider uses.
// Narrowed from *client.Client so tests can substitute a fake.
type apiClient interface {
	Ping(ctx context.Context) (types.Ping, error)
	ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig *network.NetworkingConfig, platform *ocispec.Platform, containerName string) (container.CreateResponse, error)
	ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error
	ContainerExecCreate(ctx context.Context, containerID string, options container.ExecOptions) (types.IDResponse, error)
	ContainerExecAttach(ctx context.Context, execID string, options container.ExecStartOptions) (types.HijackedResponse, error)
	ContainerExecInspect(ctx context.Context, execID string) (container.ExecInspect, error)
	ContainerKill(ctx context.Context, containerID, signal string) error
	ContainerRemove(ctx context.Context, containerID string, options container.RemoveOptions) error
}

// Provider implements environment.Provider for the container kind.
type Provider struct {
	cli    apiClient
	image  string
	logger *slog.Logger
}

// NewProvider connects to the Docker daemon using the standard environment
// variables (DOCKER_HOST etc.) with API version negotiation. The daemon is
// not contacted until Prepare; an unreachable daemon fails fast there.
func NewProvider(image string, logger *slog.Logger) (*Provider, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}
	return &Provider{cli: cli, image: image, logger: logger}, nil
}

func (p *Provider) Kind() string {
	return model.EnvContainer
}

func (p *Provider) Capabilities() environment.Capabilities {
	return environment.Capabilities{
		Name:        "container",
		Description: fmt.Sprintf("runs in a disposable %s container with no host mounts", p.image),
		Isolated:    true,
	}
}

// Prepare pings the daemon, then creates and starts a keep-alive container.
// The image must already be present; missing images are an environment
// failure, not a trigger for an implicit pull.
func (p *Provider) Prepare(ctx context.Context, task *model.Task) (*environment.Context, error) {
	if _, err := p.cli.Ping(ctx); err != nil {
		return nil, fmt.Errorf("%w: container runtime unavailable: %v", environment.ErrUnavailable, err)
	}

	resp, err := p.cli.ContainerCreate(ctx,
		&container.Config{
			Image:      p.image,
			Cmd:        []string{"sleep", "infinity"},
			WorkingDir: containerWorkDir,
		},
		&container.HostConfig{},
		nil, nil, "cynetics-task-"+task.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: create container: %v", environment.ErrUnavailable, err)
	}

	if err := p.cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		if rmErr := p.cli.ContainerRemove(ctx, resp.ID, container.RemoveOptions{Force: true}); rmErr != nil {
			p.logger.Warn("remove container after failed start", "container_id", resp.ID, "error", rmErr)
		}
		return nil, fmt.Errorf("%w: start container: %v", environment.ErrUnavailable, err)
	}

	return &environment.Context{
		TaskID:      task.ID,
		Kind:        model.EnvContainer,
		Root:        containerWorkDir,
		WorkDir:     containerWorkDir,
		ContainerID: resp.ID,
	}, nil
}

// Start execs the command inside the running container, attached so that
// stdout and stderr stream back over the hijacked connection.
func (p *Provider) Start(ctx context.Context, ec *environment.Context, command string, stdout, stderr io.Writer) (environment.Handle, error) {
	exec, err := p.cli.ContainerExecCreate(ctx, ec.ContainerID, container.ExecOptions{
		Cmd:          []string{"/bin/sh", "-c", command},
		WorkingDir:   ec.WorkDir,
		AttachStdout: true,
		AttachStderr: true,
	})
	if err != nil {
		return nil, fmt.Errorf("create exec: %w", err)
	}

	attach, err := p.cli.ContainerExecAttach(ctx, exec.ID, container.ExecStartOptions{})
	if err != nil {
		return nil, fmt.Errorf("attach exec: %w", err)
	}

	return &execHandle{
		cli:         p.cli,
		containerID: ec.ContainerID,
		execID:      exec.ID,
		attach:      attach,
		stdout:      stdout,
		stderr:      stderr,
		exited:      make(chan struct{}),
	}, nil
}

// Teardown force-removes the container; the kernel reaps everything inside it.
func (p *Provider) Teardown(ctx context.Context, ec *environment.Context) error {
	if ec.ContainerID == "" {
		return nil
	}
	if err := p.cli.ContainerRemove(ctx, ec.ContainerID, container.RemoveOptions{Force: true}); err != nil {
		return fmt.Errorf("remove container: %w", err)
	}
	return nil
}

// execHandle wraps one exec inside a task's container.
type execHandle struct {
	cli         apiClient
	containerID string
	execID      string
	attach      types.HijackedResponse
	stdout      io.Writer
	stderr      io.Writer
	exited      chan struct{}
}

// Wait demultiplexes the attached stream until the exec finishes, then reads
// the exit code. A non-zero exit is a result, not an error.
func (h *execHandle) Wait(ctx context.Context) (environment.WaitStatus, error) {
	defer close(h.exited)
	defer h.attach.Close()

	if _, err := stdcopy.StdCopy(h.stdout, h.stderr, h.attach.Reader); err != nil {
		return environment.WaitStatus{}, fmt.Errorf("stream exec output: %w", err)
	}

	inspect, err := h.cli.ContainerExecInspect(ctx, h.execID)
	if err != nil {
		return environment.WaitStatus{}, fmt.Errorf("inspect exec: %w", err)
	}
	return environment.WaitStatus{ExitCode: inspect.ExitCode}, nil
}

// Terminate signals the container with SIGTERM, waits up to grace for the
// exec stream to end, then hard-kills the container. Killing the container is
// the only way to reach children the exec'd shell spawned.
func (h *execHandle) Terminate(ctx context.Context, grace time.Duration) {
	if err := h.cli.ContainerKill(ctx, h.containerID, "SIGTERM"); err != nil {
		h.attach.Close()
		return
	}

	select {
	case <-h.exited:
		return
	case <-ctx.Done():
	case <-time.After(grace):
	}

	_ = h.cli.ContainerKill(ctx, h.containerID, "SIGKILL")
}
