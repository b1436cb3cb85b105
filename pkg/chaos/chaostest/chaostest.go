// Package chaostest provides in-memory providers and call recorders for
// exercising the runner without touching the host.
package chaostest

import (
	"context"
	"fmt"
	"sync"

	"github.com/jihwankim/chaos-monkey/pkg/chaos"
)

// Journal records apply/undo calls in the order they happen
type Journal struct {
	mu    sync.Mutex
	calls []string
	fail  map[string]error
}

// NewJournal creates an empty journal
func NewJournal() *Journal {
	return &Journal{fail: make(map[string]error)}
}

// FailOn makes the call with the given name return err
func (j *Journal) FailOn(call string, err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.fail[call] = err
}

// Effect returns an effect that records name when invoked
func (j *Journal) Effect(name string) chaos.Effect {
	return func(ctx context.Context) error {
		j.mu.Lock()
		defer j.mu.Unlock()
		j.calls = append(j.calls, name)
		return j.fail[name]
	}
}

// Calls returns a copy of the recorded calls
func (j *Journal) Calls() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]string, len(j.calls))
	copy(out, j.calls)
	return out
}

// Count returns how many times name was recorded
func (j *Journal) Count(name string) int {
	n := 0
	for _, c := range j.Calls() {
		if c == name {
			n++
		}
	}
	return n
}

// Provider is a static provider with a fixed action list
type Provider struct {
	ProviderName string
	Actions      []*chaos.ActionSpec
}

func (p *Provider) Name() string {
	return p.ProviderName
}

func (p *Provider) BuildActions() []*chaos.ActionSpec {
	return p.Actions
}

// Action builds a reversible action whose effects are recorded as
// "<command>:apply" and "<command>:undo"
func (j *Journal) Action(group, command string) *chaos.ActionSpec {
	return &chaos.ActionSpec{
		Group:       group,
		Command:     command,
		Description: fmt.Sprintf("Test action %s.", command),
		Apply:       j.Effect(command + ":apply"),
		Undo:        j.Effect(command + ":undo"),
	}
}

// OneShot builds an action without undo
func (j *Journal) OneShot(group, command string) *chaos.ActionSpec {
	a := j.Action(group, command)
	a.Undo = nil
	return a
}

// Terminal builds a host-terminating one-shot action
func (j *Journal) Terminal(group, command string) *chaos.ActionSpec {
	a := j.OneShot(group, command)
	a.Terminal = true
	return a
}

// Catalog builds the reference catalog used across tests: six net
// commands and two kill commands, plus restart-unit when withRestart is set.
func (j *Journal) Catalog(withRestart bool) *chaos.Catalog {
	net := &Provider{ProviderName: "net"}
	for _, cmd := range []string{"deny-all", "deny-incoming", "deny-outgoing", "delay", "drop", "corrupt"} {
		net.Actions = append(net.Actions, j.Action("net", cmd))
	}
	kill := &Provider{ProviderName: "kill"}
	kill.Actions = append(kill.Actions, j.OneShot("kill", "jujud"), j.OneShot("kill", "mongod"))
	if withRestart {
		kill.Actions = append(kill.Actions, j.Terminal("kill", "restart-unit"))
	}
	return chaos.NewCatalog(net, kill)
}
