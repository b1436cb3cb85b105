package process

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/sys/unix"

	"github.com/jihwankim/chaos-monkey/pkg/chaos"
	"github.com/jihwankim/chaos-monkey/pkg/injection/shell"
)

// Group is the group tag of every process action
const Group = "kill"

// RestartCommand is the host-terminating reboot action
const RestartCommand = "restart-unit"

// ErrProcessNotFound is returned when no PID matches a target name
var ErrProcessNotFound = errors.New("process not found")

// Params configures the kill actions
type Params struct {
	// Targets are process names; each becomes a kill-<name> command
	Targets []string

	// Signal is the signal sent to the target (SIGKILL, SIGTERM, ...)
	Signal string

	// RebootCommand reboots the host for restart-unit
	RebootCommand []string
}

// DefaultParams returns the stock kill targets
func DefaultParams() Params {
	return Params{
		Targets:       []string{"jujud", "mongod"},
		Signal:        "SIGKILL",
		RebootCommand: []string{"shutdown", "-r", "now"},
	}
}

// Signaler delivers a signal to a PID
type Signaler func(pid int, sig unix.Signal) error

// Provider generates process kill actions and the reboot action
type Provider struct {
	executor shell.Executor
	signal   Signaler
	params   Params
}

// New creates a process provider that signals through kill(2)
func New(executor shell.Executor, params Params) *Provider {
	return NewWithSignaler(executor, params, unix.Kill)
}

// NewWithSignaler creates a process provider with a custom signal sender
func NewWithSignaler(executor shell.Executor, params Params, signal Signaler) *Provider {
	return &Provider{
		executor: executor,
		signal:   signal,
		params:   params,
	}
}

func (p *Provider) Name() string {
	return "process"
}

// BuildActions returns one kill action per target plus restart-unit
func (p *Provider) BuildActions() []*chaos.ActionSpec {
	actions := make([]*chaos.ActionSpec, 0, len(p.params.Targets)+1)
	for _, target := range p.params.Targets {
		actions = append(actions, &chaos.ActionSpec{
			Group:       Group,
			Command:     "kill-" + target,
			Description: fmt.Sprintf("Kill %s process.", target),
			Apply:       p.killer(target),
		})
	}

	actions = append(actions, &chaos.ActionSpec{
		Group:       Group,
		Command:     RestartCommand,
		Description: "Restart the unit.",
		Apply:       p.reboot,
		Terminal:    true,
	})

	return actions
}

// FindPIDs returns the PIDs of processes named name
func (p *Provider) FindPIDs(ctx context.Context, name string) ([]int, error) {
	output, err := p.executor.Exec(ctx, []string{"pidof", name})
	// pidof exits 1 when nothing matches
	if strings.TrimSpace(output) == "" {
		return nil, fmt.Errorf("%w: %s", ErrProcessNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find process %s: %w", name, err)
	}

	pids := make([]int, 0)
	for _, field := range strings.Fields(output) {
		pid, err := strconv.Atoi(field)
		if err != nil {
			return nil, fmt.Errorf("unexpected pidof output %q: %w", output, err)
		}
		pids = append(pids, pid)
	}
	return pids, nil
}

func (p *Provider) killer(target string) chaos.Effect {
	return func(ctx context.Context) error {
		sig := unix.SignalNum(p.params.Signal)
		if sig == 0 {
			return fmt.Errorf("unknown signal %q", p.params.Signal)
		}

		pids, err := p.FindPIDs(ctx, target)
		if err != nil {
			return err
		}

		log.Info().
			Str("process", target).
			Int("pid", pids[0]).
			Str("signal", p.params.Signal).
			Msg("Killing process")

		if err := p.signal(pids[0], sig); err != nil {
			return fmt.Errorf("failed to signal %s (pid %d): %w", target, pids[0], err)
		}
		return nil
	}
}

func (p *Provider) reboot(ctx context.Context) error {
	log.Warn().Str("cmd", shell.Command(p.params.RebootCommand)).Msg("Rebooting the unit")

	output, err := p.executor.Exec(ctx, p.params.RebootCommand)
	if err != nil {
		return fmt.Errorf("failed to reboot: %w (output: %s)", err, output)
	}
	return nil
}
