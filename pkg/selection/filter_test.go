package selection

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jihwankim/chaos-monkey/pkg/chaos/chaostest"
)

func TestIncludeAllMatchesCatalog(t *testing.T) {
	cat := chaostest.NewJournal().Catalog(true)

	sel := IncludeGroups(cat, []string{"all"})
	assert.ElementsMatch(t, cat.Commands(), Commands(sel))
}

func TestIncludeGroups(t *testing.T) {
	cat := chaostest.NewJournal().Catalog(false)

	sel := IncludeGroups(cat, []string{"kill"})
	assert.Equal(t, []string{"jujud", "mongod"}, Commands(sel))

	sel = IncludeGroups(cat, []string{"net", "kill"})
	assert.Len(t, sel, 8)
}

func TestExcludeGroups(t *testing.T) {
	cat := chaostest.NewJournal().Catalog(false)

	sel := ExcludeGroups(cat.All(), []string{"net"})
	assert.Equal(t, []string{"jujud", "mongod"}, Commands(sel))

	sel = ExcludeGroups(cat.All(), []string{"net", "kill"})
	assert.Empty(t, sel)
}

func TestIncludeCommandsIsIdempotent(t *testing.T) {
	cat := chaostest.NewJournal().Catalog(false)

	sel := IncludeCommands(cat, nil, []string{"jujud"})
	sel = IncludeCommands(cat, sel, []string{"jujud", "drop"})
	assert.Equal(t, []string{"jujud", "drop"}, Commands(sel))
}

func TestExcludeCommandsIsIdempotent(t *testing.T) {
	cat := chaostest.NewJournal().Catalog(false)

	once := ExcludeCommands(cat.All(), []string{"delay"})
	twice := ExcludeCommands(once, []string{"delay"})
	assert.Equal(t, Commands(once), Commands(twice))
	assert.NotContains(t, Commands(once), "delay")
	assert.Len(t, once, 7)
}

func TestValidate(t *testing.T) {
	err := Validate([]string{"bogus"}, []string{"net", "kill"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidSelector))

	var selErr *InvalidSelectorError
	require.True(t, errors.As(err, &selErr))
	assert.Equal(t, "bogus", selErr.Name)

	assert.NoError(t, Validate([]string{"net"}, []string{"net", "kill"}))
	assert.NoError(t, Validate(nil, []string{"net"}))
}

func TestFilterDefaultsToAll(t *testing.T) {
	cat := chaostest.NewJournal().Catalog(true)

	sel, err := Filter(cat, Criteria{})
	require.NoError(t, err)
	assert.Equal(t, cat.Commands(), Commands(sel))
}

func TestFilterIncludeCommandThenGroup(t *testing.T) {
	cat := chaostest.NewJournal().Catalog(false)

	// Flag order does not matter: group includes are applied first and the
	// command include is additive on top of them.
	sel, err := Filter(cat, Criteria{
		IncludeCommands: []string{"jujud"},
		IncludeGroups:   []string{"net"},
	})
	require.NoError(t, err)
	assert.Len(t, sel, 7)
	assert.Contains(t, Commands(sel), "jujud")
	assert.NotContains(t, Commands(sel), "mongod")
}

func TestFilterIncludeCommandOnly(t *testing.T) {
	cat := chaostest.NewJournal().Catalog(false)

	sel, err := Filter(cat, Criteria{IncludeCommands: []string{"deny-all", "jujud"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"deny-all", "jujud"}, Commands(sel))
}

func TestFilterExcludeGroupThenIncludeCommand(t *testing.T) {
	cat := chaostest.NewJournal().Catalog(false)

	sel, err := Filter(cat, Criteria{
		ExcludeGroups:   []string{"kill"},
		IncludeCommands: []string{"mongod"},
		ExcludeCommands: []string{"drop", "corrupt"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"deny-all", "deny-incoming", "deny-outgoing", "delay", "mongod"}, Commands(sel))
}

func TestFilterRejectsUnknownNames(t *testing.T) {
	cat := chaostest.NewJournal().Catalog(false)

	tests := []struct {
		name     string
		criteria Criteria
		bad      string
	}{
		{"include group", Criteria{IncludeGroups: []string{"disk"}}, "disk"},
		{"exclude group", Criteria{ExcludeGroups: []string{"all"}}, "all"},
		{"include command", Criteria{IncludeCommands: []string{"kill-everything"}}, "kill-everything"},
		{"exclude command", Criteria{ExcludeCommands: []string{"net"}}, "net"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Filter(cat, tt.criteria)
			var selErr *InvalidSelectorError
			require.True(t, errors.As(err, &selErr))
			assert.Equal(t, tt.bad, selErr.Name)
		})
	}
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"net", "kill"}, SplitList("net, kill"))
	assert.Equal(t, []string{"a", "c"}, SplitList("a,,c,"))
	assert.Empty(t, SplitList(""))
}
