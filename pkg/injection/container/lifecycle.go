package container

import (
	"context"
	"fmt"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/rs/zerolog/log"
)

func (p *Provider) pause(ctx context.Context, name string) error {
	log.Info().Str("container", name).Msg("Pausing container")

	if err := p.docker.ContainerPause(ctx, name); err != nil {
		return fmt.Errorf("failed to pause container %s: %w", name, err)
	}
	return nil
}

// unpause tolerates containers that are no longer paused so it is safe to replay
func (p *Provider) unpause(ctx context.Context, name string) error {
	inspect, err := p.docker.ContainerInspect(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to inspect container %s: %w", name, err)
	}
	if inspect.ContainerJSONBase == nil || inspect.State == nil || !inspect.State.Paused {
		log.Debug().Str("container", name).Msg("Container not paused, nothing to undo")
		return nil
	}

	log.Info().Str("container", name).Msg("Unpausing container")
	if err := p.docker.ContainerUnpause(ctx, name); err != nil {
		return fmt.Errorf("failed to unpause container %s: %w", name, err)
	}
	return nil
}

func (p *Provider) kill(ctx context.Context, name string) error {
	log.Info().
		Str("container", name).
		Str("signal", p.params.Signal).
		Msg("Killing container")

	if err := p.docker.ContainerKill(ctx, name, p.params.Signal); err != nil {
		return fmt.Errorf("failed to kill container %s: %w", name, err)
	}

	if err := p.waitFor(ctx, name, false, p.params.StopTimeout); err != nil {
		// Container might already be stopped, which is fine
		log.Warn().Err(err).Str("container", name).Msg("Container state check after kill")
	}
	return nil
}

// start brings a killed container back; a running container is left alone
func (p *Provider) start(ctx context.Context, name string) error {
	running, err := p.isRunning(ctx, name)
	if err != nil {
		return err
	}
	if running {
		return nil
	}

	log.Info().Str("container", name).Msg("Restarting killed container")
	if err := p.docker.ContainerStart(ctx, name, container.StartOptions{}); err != nil {
		return fmt.Errorf("failed to start container %s: %w", name, err)
	}

	if err := p.waitFor(ctx, name, true, p.params.StartTimeout); err != nil {
		return fmt.Errorf("container %s did not restart in time: %w", name, err)
	}
	return nil
}

func (p *Provider) restart(ctx context.Context, name string) error {
	timeout := int(p.params.StopTimeout.Seconds())
	log.Info().
		Str("container", name).
		Int("grace_period", timeout).
		Msg("Restarting container")

	if err := p.docker.ContainerRestart(ctx, name, container.StopOptions{Timeout: &timeout}); err != nil {
		return fmt.Errorf("failed to restart container %s: %w", name, err)
	}

	if err := p.waitFor(ctx, name, true, p.params.StartTimeout); err != nil {
		return fmt.Errorf("container %s did not restart in time: %w", name, err)
	}
	return nil
}

func (p *Provider) isRunning(ctx context.Context, name string) (bool, error) {
	inspect, err := p.docker.ContainerInspect(ctx, name)
	if err != nil {
		return false, fmt.Errorf("failed to inspect container %s: %w", name, err)
	}
	if inspect.ContainerJSONBase == nil || inspect.State == nil {
		return false, nil
	}
	return inspect.State.Running, nil
}

// waitFor polls until the container's running state equals running
func (p *Provider) waitFor(ctx context.Context, name string, running bool, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)

	for {
		state, err := p.isRunning(ctx, name)
		if err != nil {
			return err
		}
		if state == running {
			return nil
		}
		if !time.Now().Before(deadline) {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.params.PollInterval):
		}
	}

	if running {
		return fmt.Errorf("container did not start within %v", timeout)
	}
	return fmt.Errorf("container did not stop within %v", timeout)
}
