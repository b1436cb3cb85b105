package network

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jihwankim/chaos-monkey/pkg/chaos"
	"github.com/jihwankim/chaos-monkey/pkg/injection/shell/shelltest"
)

func TestRules(t *testing.T) {
	r := FirewallRule("allow in to any")
	assert.Equal(t, []string{"ufw", "allow", "in", "to", "any"}, r.Do)
	assert.Equal(t, []string{"ufw", "delete", "allow", "in", "to", "any"}, r.Undo)

	r = DenyPort(6514)
	assert.Equal(t, "ufw deny 6514", r.String())

	r = Netem("", "loss", "50%", "30%")
	assert.Equal(t, "tc qdisc add dev eth0 root netem loss 50% 30%", r.String())
	assert.Equal(t, []string{"tc", "qdisc", "del", "dev", "eth0", "root"}, r.Undo)
}

func TestBuildActions(t *testing.T) {
	p := New(shelltest.New(), DefaultParams())
	actions := p.BuildActions()

	require.Len(t, actions, 11)
	for _, a := range actions {
		assert.Equal(t, Group, a.Group)
		assert.True(t, a.Reversible(), a.Command)
		assert.False(t, a.Terminal, a.Command)
	}

	// Must be accepted by the catalog without duplicates
	cat := chaos.NewCatalog(p)
	assert.Equal(t, 11, cat.Len())
}

func TestDenyAllRoundTrip(t *testing.T) {
	exec := shelltest.New()
	cat := chaos.NewCatalog(New(exec, DefaultParams()))
	action, ok := cat.Find("deny-all")
	require.True(t, ok)

	ctx := context.Background()
	require.NoError(t, action.Run(ctx))
	require.NoError(t, action.Revert(ctx))

	assert.Equal(t, []string{
		"ufw allow ssh",
		"ufw deny in to any",
		"ufw deny out to any",
		"ufw --force enable",
		"ufw disable",
		"ufw delete deny out to any",
		"ufw delete deny in to any",
		"ufw delete allow ssh",
	}, exec.Commands())
}

func TestNetemUsesConfiguredDevice(t *testing.T) {
	exec := shelltest.New()
	params := DefaultParams()
	params.Device = "ens5"
	cat := chaos.NewCatalog(New(exec, params))
	action, _ := cat.Find("delay")

	ctx := context.Background()
	require.NoError(t, action.Run(ctx))
	require.NoError(t, action.Revert(ctx))

	assert.Equal(t, []string{
		"tc qdisc add dev ens5 root netem delay 300ms 20ms distribution normal",
		"tc qdisc del dev ens5 root",
	}, exec.Commands())
}

func TestDenyPortUsesConfiguredPort(t *testing.T) {
	exec := shelltest.New()
	params := DefaultParams()
	params.APIServerPort = 8443
	cat := chaos.NewCatalog(New(exec, params))
	action, _ := cat.Find("deny-api-server")

	require.NoError(t, action.Run(context.Background()))
	assert.Equal(t, "ufw deny 8443", exec.Commands()[0])
}

func TestStepFailureIdentifiesRule(t *testing.T) {
	exec := shelltest.New()
	exec.Fail("ufw deny in to any", errors.New("exit status 1"))
	cat := chaos.NewCatalog(New(exec, DefaultParams()))
	action, _ := cat.Find("deny-incoming")

	err := action.Run(context.Background())
	var actionErr *chaos.ActionError
	require.True(t, errors.As(err, &actionErr))
	assert.Equal(t, "ufw deny in to any", actionErr.Step)
	assert.Equal(t, []string{"ufw allow ssh", "ufw deny in to any", "ufw delete allow ssh"}, exec.Commands())
}
