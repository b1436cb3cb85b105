package chaos_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jihwankim/chaos-monkey/pkg/chaos"
	"github.com/jihwankim/chaos-monkey/pkg/chaos/chaostest"
)

func TestCompositeUndoReversesApply(t *testing.T) {
	j := chaostest.NewJournal()
	action := chaos.NewComposite("net", "deny-all", "Deny all traffic.",
		chaos.Step{Name: "allow ssh", Do: j.Effect("do:allow ssh"), Undo: j.Effect("undo:allow ssh")},
		chaos.Step{Name: "deny in", Do: j.Effect("do:deny in"), Undo: j.Effect("undo:deny in")},
		chaos.Step{Name: "deny out", Do: j.Effect("do:deny out"), Undo: j.Effect("undo:deny out")},
		chaos.Step{Name: "enable", Do: j.Effect("do:enable"), Undo: j.Effect("undo:enable")},
	)

	ctx := context.Background()
	require.NoError(t, action.Run(ctx))
	require.NoError(t, action.Revert(ctx))

	calls := j.Calls()
	require.Len(t, calls, 8)

	applied := calls[:4]
	undone := calls[4:]
	for i := range applied {
		assert.Equal(t, applied[i][len("do:"):], undone[len(undone)-1-i][len("undo:"):])
	}
	assert.Equal(t, []string{"undo:enable", "undo:deny out", "undo:deny in", "undo:allow ssh"}, undone)
}

func TestCompositeStepFailureRollsBackAppliedSteps(t *testing.T) {
	j := chaostest.NewJournal()
	boom := errors.New("ufw exited 1")
	j.FailOn("do:second", boom)

	action := chaos.NewComposite("net", "deny-incoming", "Deny incoming.",
		chaos.Step{Name: "first", Do: j.Effect("do:first"), Undo: j.Effect("undo:first")},
		chaos.Step{Name: "second", Do: j.Effect("do:second"), Undo: j.Effect("undo:second")},
		chaos.Step{Name: "third", Do: j.Effect("do:third"), Undo: j.Effect("undo:third")},
	)

	err := action.Run(context.Background())
	require.Error(t, err)

	var actionErr *chaos.ActionError
	require.True(t, errors.As(err, &actionErr))
	assert.Equal(t, "net", actionErr.Group)
	assert.Equal(t, "deny-incoming", actionErr.Command)
	assert.Equal(t, chaos.PhaseApply, actionErr.Phase)
	assert.Equal(t, "second", actionErr.Step)
	assert.ErrorIs(t, err, boom)
	// Only the step that completed is rolled back; second and third never ran
	assert.Equal(t, []string{"do:first", "do:second", "undo:first"}, j.Calls())
}

func TestCompositeRollbackReversesAppliedSteps(t *testing.T) {
	j := chaostest.NewJournal()
	j.FailOn("do:enable", errors.New("ufw exited 1"))

	action := chaos.NewComposite("net", "deny-all", "Deny all traffic.",
		chaos.Step{Name: "allow ssh", Do: j.Effect("do:allow ssh"), Undo: j.Effect("undo:allow ssh")},
		chaos.Step{Name: "deny in", Do: j.Effect("do:deny in"), Undo: j.Effect("undo:deny in")},
		chaos.Step{Name: "deny out", Do: j.Effect("do:deny out"), Undo: j.Effect("undo:deny out")},
		chaos.Step{Name: "enable", Do: j.Effect("do:enable"), Undo: j.Effect("undo:enable")},
	)

	require.Error(t, action.Run(context.Background()))
	assert.Equal(t, []string{
		"do:allow ssh", "do:deny in", "do:deny out", "do:enable",
		"undo:deny out", "undo:deny in", "undo:allow ssh",
	}, j.Calls())
}

func TestCompositeRollbackContinuesPastFailure(t *testing.T) {
	j := chaostest.NewJournal()
	applyErr := errors.New("ufw exited 1")
	rollbackErr := errors.New("rule not found")
	j.FailOn("do:third", applyErr)
	j.FailOn("undo:second", rollbackErr)

	action := chaos.NewComposite("net", "deny-incoming", "Deny incoming.",
		chaos.Step{Name: "first", Do: j.Effect("do:first"), Undo: j.Effect("undo:first")},
		chaos.Step{Name: "second", Do: j.Effect("do:second"), Undo: j.Effect("undo:second")},
		chaos.Step{Name: "third", Do: j.Effect("do:third"), Undo: j.Effect("undo:third")},
	)

	err := action.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, applyErr)
	assert.ErrorIs(t, err, rollbackErr)

	var actionErr *chaos.ActionError
	require.True(t, errors.As(err, &actionErr))
	assert.Equal(t, chaos.PhaseApply, actionErr.Phase)
	assert.Equal(t, "third", actionErr.Step)
	assert.Equal(t, []string{"do:first", "do:second", "do:third", "undo:second", "undo:first"}, j.Calls())
}

func TestCompositeUndoContinuesPastFailure(t *testing.T) {
	j := chaostest.NewJournal()
	j.FailOn("undo:second", errors.New("rule not found"))

	action := chaos.NewComposite("net", "deny-incoming", "Deny incoming.",
		chaos.Step{Name: "first", Do: j.Effect("do:first"), Undo: j.Effect("undo:first")},
		chaos.Step{Name: "second", Do: j.Effect("do:second"), Undo: j.Effect("undo:second")},
		chaos.Step{Name: "third", Do: j.Effect("do:third"), Undo: j.Effect("undo:third")},
	)

	ctx := context.Background()
	require.NoError(t, action.Run(ctx))
	err := action.Revert(ctx)

	var actionErr *chaos.ActionError
	require.True(t, errors.As(err, &actionErr))
	assert.Equal(t, chaos.PhaseUndo, actionErr.Phase)
	assert.Equal(t, "second", actionErr.Step)
	assert.Equal(t, []string{"undo:third", "undo:second", "undo:first"}, j.Calls()[3:])
}

func TestCompositeUndoFailureNamesStep(t *testing.T) {
	j := chaostest.NewJournal()
	j.FailOn("undo:first", errors.New("rule not found"))

	action := chaos.NewComposite("net", "delay", "Delay traffic.",
		chaos.Step{Name: "first", Do: j.Effect("do:first"), Undo: j.Effect("undo:first")},
	)

	err := action.Revert(context.Background())
	var actionErr *chaos.ActionError
	require.True(t, errors.As(err, &actionErr))
	assert.Equal(t, chaos.PhaseUndo, actionErr.Phase)
	assert.Equal(t, "first", actionErr.Step)
}

func TestRevertOneShotIsNoop(t *testing.T) {
	j := chaostest.NewJournal()
	action := j.OneShot("kill", "kill-jujud")

	assert.False(t, action.Reversible())
	require.NoError(t, action.Revert(context.Background()))
	assert.Empty(t, j.Calls())
}

func TestRunWrapsPlainErrors(t *testing.T) {
	j := chaostest.NewJournal()
	j.FailOn("kill-mongod:apply", errors.New("process not found"))
	action := j.OneShot("kill", "kill-mongod")

	err := action.Run(context.Background())
	var actionErr *chaos.ActionError
	require.True(t, errors.As(err, &actionErr))
	assert.Equal(t, "kill", actionErr.Group)
	assert.Equal(t, "kill-mongod", actionErr.Command)
	assert.Empty(t, actionErr.Step)
	assert.Contains(t, err.Error(), "kill/kill-mongod failed during apply")
}

func TestCatalogCommandsAreUnique(t *testing.T) {
	j := chaostest.NewJournal()
	a := &chaostest.Provider{ProviderName: "a", Actions: []*chaos.ActionSpec{j.Action("net", "drop")}}
	b := &chaostest.Provider{ProviderName: "b", Actions: []*chaos.ActionSpec{j.Action("kill", "drop")}}

	assert.Panics(t, func() { chaos.NewCatalog(a, b) })
}

func TestCatalogRejectsIncompleteAction(t *testing.T) {
	p := &chaostest.Provider{ProviderName: "broken", Actions: []*chaos.ActionSpec{{Group: "net", Command: "x"}}}

	assert.Panics(t, func() { chaos.NewCatalog(p) })
}

func TestCatalogLookups(t *testing.T) {
	cat := chaostest.NewJournal().Catalog(true)

	assert.Equal(t, 9, cat.Len())
	assert.Equal(t, []string{"kill", "net"}, cat.Groups())
	assert.Equal(t, "deny-all", cat.Commands()[0])
	assert.Equal(t, "restart-unit", cat.Commands()[8])

	action, ok := cat.Find("restart-unit")
	require.True(t, ok)
	assert.True(t, action.Terminal)

	_, ok = cat.Find("bogus")
	assert.False(t, ok)

	byGroup := cat.ByGroup()
	assert.Len(t, byGroup["net"], 6)
	assert.Len(t, byGroup["kill"], 3)
}

func TestCatalogAllReturnsCopy(t *testing.T) {
	cat := chaostest.NewJournal().Catalog(false)
	all := cat.All()
	all[0] = nil

	assert.NotNil(t, cat.All()[0])
}
