package replay

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadPreservesDeclaredOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "replay.yaml")
	require.NoError(t, os.WriteFile(path, []byte("- [deny-incoming, 2]\n- [deny-all, 3]\n- [restart-unit, 2]\n"), 0644))

	entries, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []Entry{
		{Command: "deny-incoming", Timeout: 2},
		{Command: "deny-all", Timeout: 3},
		{Command: "restart-unit", Timeout: 2},
	}, entries)
	assert.Equal(t, []string{"deny-incoming", "deny-all", "restart-unit"}, Commands(entries))
}

func TestSaveWritesFlowPairs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "replay.yaml")
	require.NoError(t, Save(path, []Entry{{Command: "deny-incoming", Timeout: 2}, {Command: "delay", Timeout: 0}}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "- [deny-incoming, 2]\n- [delay, 0]\n", string(data))
}

func TestSaveEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "replay.yaml")
	require.NoError(t, Save(path, nil))

	entries, err := Load(path)
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.NotNil(t, entries)
}

func TestLoadRejectsMalformedEntries(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "single element", body: "- [deny-all]\n"},
		{name: "mapping", body: "- command: deny-all\n"},
		{name: "non numeric timeout", body: "- [deny-all, soon]\n"},
		{name: "negative timeout", body: "- [deny-all, -1]\n"},
		{name: "empty command", body: "- ['', 2]\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "replay.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.body), 0644))

			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestLoadForRunConsumesRemainderOnRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "replay.yaml")
	require.NoError(t, Save(path, []Entry{{Command: "deny-all", Timeout: 1}}))
	require.NoError(t, SaveRemainder(path, []Entry{{Command: "drop", Timeout: 4}}))

	entries, err := LoadForRun(path, false)
	require.NoError(t, err)
	assert.Equal(t, []Entry{{Command: "deny-all", Timeout: 1}}, entries)

	entries, err = LoadForRun(path, true)
	require.NoError(t, err)
	assert.Equal(t, []Entry{{Command: "drop", Timeout: 4}}, entries)

	_, err = os.Stat(PartPath(path))
	assert.True(t, os.IsNotExist(err), "remainder must be deleted once consumed")

	// A second restart finds nothing left
	entries, err = LoadForRun(path, true)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDiscardRemainder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "replay.yaml")
	require.NoError(t, DiscardRemainder(path))

	require.NoError(t, SaveRemainder(path, nil))
	require.NoError(t, DiscardRemainder(path))
	_, err := os.Stat(PartPath(path))
	assert.True(t, os.IsNotExist(err))
}

func TestRecorderOutputReplays(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log", RunListFile)
	rec, err := NewRecorder(path)
	require.NoError(t, err)

	require.NoError(t, rec.Record(Entry{Command: "deny-all", Timeout: 3}))
	require.NoError(t, rec.Record(Entry{Command: "kill-mongod", Timeout: 3}))
	require.NoError(t, rec.Close())
	require.NoError(t, rec.Close())

	assert.Error(t, rec.Record(Entry{Command: "drop", Timeout: 1}))

	entries, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []Entry{
		{Command: "deny-all", Timeout: 3},
		{Command: "kill-mongod", Timeout: 3},
	}, entries)

	// Reopening appends
	rec, err = NewRecorder(path)
	require.NoError(t, err)
	require.NoError(t, rec.Record(Entry{Command: "drop", Timeout: 1}))
	require.NoError(t, rec.Close())

	entries, err = Load(path)
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}
