package container

import (
	"context"
	"fmt"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"

	"github.com/jihwankim/chaos-monkey/pkg/chaos"
)

// DockerAPI is the subset of the Docker client used for container faults
type DockerAPI interface {
	ContainerPause(ctx context.Context, containerID string) error
	ContainerUnpause(ctx context.Context, containerID string) error
	ContainerKill(ctx context.Context, containerID, signal string) error
	ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error
	ContainerRestart(ctx context.Context, containerID string, options container.StopOptions) error
	ContainerInspect(ctx context.Context, containerID string) (types.ContainerJSON, error)
}

// NewDockerClient creates a Docker client from the environment
func NewDockerClient() (*client.Client, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create Docker client: %w", err)
	}
	return cli, nil
}

// Provider generates chaos actions against local containers
type Provider struct {
	docker DockerAPI
	params Params
}

// New creates a container provider
func New(docker DockerAPI, params Params) *Provider {
	if params.PollInterval <= 0 {
		params.PollInterval = 500 * time.Millisecond
	}
	if params.Signal == "" {
		params.Signal = "SIGKILL"
	}
	return &Provider{
		docker: docker,
		params: params,
	}
}

func (p *Provider) Name() string {
	return "container"
}

// BuildActions returns pause, kill and restart actions per target
func (p *Provider) BuildActions() []*chaos.ActionSpec {
	actions := make([]*chaos.ActionSpec, 0, 3*len(p.params.Targets))
	for _, name := range p.params.Targets {
		name := name
		actions = append(actions,
			&chaos.ActionSpec{
				Group:       Group,
				Command:     "pause-" + name,
				Description: fmt.Sprintf("Pause the %s container.", name),
				Apply:       func(ctx context.Context) error { return p.pause(ctx, name) },
				Undo:        func(ctx context.Context) error { return p.unpause(ctx, name) },
			},
			&chaos.ActionSpec{
				Group:       Group,
				Command:     "kill-container-" + name,
				Description: fmt.Sprintf("Kill the %s container with %s.", name, p.params.Signal),
				Apply:       func(ctx context.Context) error { return p.kill(ctx, name) },
				Undo:        func(ctx context.Context) error { return p.start(ctx, name) },
			},
			&chaos.ActionSpec{
				Group:       Group,
				Command:     "restart-container-" + name,
				Description: fmt.Sprintf("Restart the %s container.", name),
				Apply:       func(ctx context.Context) error { return p.restart(ctx, name) },
			},
		)
	}
	return actions
}
