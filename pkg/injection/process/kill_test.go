package process

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/jihwankim/chaos-monkey/pkg/chaos"
	"github.com/jihwankim/chaos-monkey/pkg/injection/shell/shelltest"
)

type sent struct {
	pid int
	sig unix.Signal
}

func newTestProvider(exec *shelltest.Executor, params Params) (*Provider, *[]sent) {
	signals := &[]sent{}
	p := NewWithSignaler(exec, params, func(pid int, sig unix.Signal) error {
		*signals = append(*signals, sent{pid, sig})
		return nil
	})
	return p, signals
}

func TestBuildActions(t *testing.T) {
	p, _ := newTestProvider(shelltest.New(), DefaultParams())
	cat := chaos.NewCatalog(p)

	assert.Equal(t, []string{"kill-jujud", "kill-mongod", "restart-unit"}, cat.Commands())

	restart, ok := cat.Find(RestartCommand)
	require.True(t, ok)
	assert.True(t, restart.Terminal)
	assert.False(t, restart.Reversible())

	kill, _ := cat.Find("kill-jujud")
	assert.False(t, kill.Terminal)
	assert.False(t, kill.Reversible())
	assert.Equal(t, "Kill jujud process.", kill.Description)
}

func TestKillSignalsFirstPID(t *testing.T) {
	exec := shelltest.New()
	exec.Reply("pidof jujud", "4242 4243\n")
	p, signals := newTestProvider(exec, DefaultParams())
	action, _ := chaos.NewCatalog(p).Find("kill-jujud")

	require.NoError(t, action.Run(context.Background()))
	require.Len(t, *signals, 1)
	assert.Equal(t, 4242, (*signals)[0].pid)
	assert.Equal(t, unix.SIGKILL, (*signals)[0].sig)
}

func TestKillMissingProcess(t *testing.T) {
	exec := shelltest.New()
	exec.Fail("pidof mongod", errors.New("exit status 1"))
	p, signals := newTestProvider(exec, DefaultParams())
	action, _ := chaos.NewCatalog(p).Find("kill-mongod")

	err := action.Run(context.Background())
	assert.ErrorIs(t, err, ErrProcessNotFound)
	assert.Empty(t, *signals)
}

func TestKillCustomSignal(t *testing.T) {
	exec := shelltest.New()
	exec.Reply("pidof jujud", "7")
	params := DefaultParams()
	params.Signal = "SIGTERM"
	p, signals := newTestProvider(exec, params)
	action, _ := chaos.NewCatalog(p).Find("kill-jujud")

	require.NoError(t, action.Run(context.Background()))
	assert.Equal(t, unix.SIGTERM, (*signals)[0].sig)
}

func TestKillUnknownSignal(t *testing.T) {
	params := DefaultParams()
	params.Signal = "SIGBOGUS"
	p, _ := newTestProvider(shelltest.New(), params)
	action, _ := chaos.NewCatalog(p).Find("kill-jujud")

	assert.Error(t, action.Run(context.Background()))
}

func TestRestartRunsRebootCommand(t *testing.T) {
	exec := shelltest.New()
	p, _ := newTestProvider(exec, DefaultParams())
	action, _ := chaos.NewCatalog(p).Find(RestartCommand)

	require.NoError(t, action.Run(context.Background()))
	assert.Equal(t, []string{"shutdown -r now"}, exec.Commands())
}

func TestRestartFailure(t *testing.T) {
	exec := shelltest.New()
	exec.Fail("shutdown -r now", errors.New("permission denied"))
	p, _ := newTestProvider(exec, DefaultParams())
	action, _ := chaos.NewCatalog(p).Find(RestartCommand)

	err := action.Run(context.Background())
	var actionErr *chaos.ActionError
	require.True(t, errors.As(err, &actionErr))
	assert.Equal(t, RestartCommand, actionErr.Command)
}
