package network

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/jihwankim/chaos-monkey/pkg/chaos"
	"github.com/jihwankim/chaos-monkey/pkg/injection/shell"
)

// Group is the group tag of every network action
const Group = "net"

// Params configures the network actions
type Params struct {
	// Device is the interface netem rules attach to
	Device string

	// StateServerPort, APIServerPort and SyslogPort are the ports the
	// deny-* port scenarios block
	StateServerPort int
	APIServerPort   int
	SyslogPort      int
}

// DefaultParams returns the stock ports and device
func DefaultParams() Params {
	return Params{
		Device:          "eth0",
		StateServerPort: 37017,
		APIServerPort:   17017,
		SyslogPort:      6514,
	}
}

// Provider generates chaos actions that affect networking on the host
type Provider struct {
	executor shell.Executor
	params   Params
}

// New creates a network provider
func New(executor shell.Executor, params Params) *Provider {
	return &Provider{
		executor: executor,
		params:   params,
	}
}

func (p *Provider) Name() string {
	return "network"
}

// BuildActions returns the firewall and netem scenarios
func (p *Provider) BuildActions() []*chaos.ActionSpec {
	allowSSH := FirewallRule("allow ssh")
	allowInToAny := FirewallRule("allow in to any")
	denyInToAny := FirewallRule("deny in to any")
	denyOutToAny := FirewallRule("deny out to any")
	enable := FirewallEnable()
	dev := p.params.Device

	return []*chaos.ActionSpec{
		p.scenario("deny-all",
			"Deny all incoming and outgoing network traffic except ssh.",
			allowSSH, denyInToAny, denyOutToAny, enable),
		p.scenario("deny-incoming",
			"Deny all incoming network traffic except ssh.",
			allowSSH, denyInToAny, enable),
		p.scenario("deny-outgoing",
			"Deny all outgoing network traffic except ssh.",
			allowSSH, denyOutToAny, allowInToAny, enable),
		p.scenario("deny-state-server",
			"Deny network traffic to the state server.",
			DenyPort(p.params.StateServerPort), allowInToAny, enable),
		p.scenario("deny-api-server",
			"Deny network traffic to the API server.",
			DenyPort(p.params.APIServerPort), allowInToAny, enable),
		p.scenario("deny-sys-log",
			"Deny network traffic to the syslog.",
			DenyPort(p.params.SyslogPort), allowInToAny, enable),
		p.scenario("delay",
			"Delay network traffic.",
			Netem(dev, "delay", "300ms", "20ms", "distribution", "normal")),
		p.scenario("delay-long",
			"Delay network traffic for seconds.",
			Netem(dev, "delay", "5s", "1s", "distribution", "normal")),
		p.scenario("drop",
			"Drop network packets.",
			Netem(dev, "loss", "50%", "30%")),
		p.scenario("corrupt",
			"Corrupt network packets.",
			Netem(dev, "corrupt", "50%", "30%")),
		p.scenario("duplicate",
			"Duplicate network packets.",
			Netem(dev, "duplicate", "50%", "30%")),
	}
}

func (p *Provider) scenario(command, description string, rules ...Rule) *chaos.ActionSpec {
	steps := make([]chaos.Step, len(rules))
	for i, rule := range rules {
		steps[i] = p.step(rule)
	}
	return chaos.NewComposite(Group, command, description, steps...)
}

func (p *Provider) step(rule Rule) chaos.Step {
	return chaos.Step{
		Name: rule.String(),
		Do:   p.run(rule.Do),
		Undo: p.run(rule.Undo),
	}
}

func (p *Provider) run(cmd []string) chaos.Effect {
	return func(ctx context.Context) error {
		log.Debug().Str("cmd", shell.Command(cmd)).Msg("Changing network behaviour")
		output, err := p.executor.Exec(ctx, cmd)
		if err != nil {
			return fmt.Errorf("failed to run %s: %w (output: %s)", shell.Command(cmd), err, output)
		}
		return nil
	}
}
