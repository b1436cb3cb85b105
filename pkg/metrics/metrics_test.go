package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveActions(t *testing.T) {
	m := New()
	at := time.Unix(1700000000, 0)

	m.ObserveApply("net", "deny-all", at, nil)
	m.ObserveUndo("net", "deny-all", nil)
	m.ObserveApply("net", "drop", at, errors.New("tc failed"))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.ActiveActions))
	m.ObserveApply("kill", "kill-jujud", at, nil)
	m.ObserveSettled()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ActionsTotal.WithLabelValues("net", "deny-all", "apply", ResultSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ActionsTotal.WithLabelValues("net", "drop", "apply", ResultError)))
	assert.Equal(t, 4, testutil.CollectAndCount(m.ActionsTotal))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.ActiveActions))
	assert.Equal(t, 1700000000.0, testutil.ToFloat64(m.LastActionTimestamp))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveApply("net", "deny-all", time.Now(), nil)
	m.ObserveUndo("net", "deny-all", nil)
	m.ObserveSettled()
	m.SetExpiry(time.Now())
	m.ObserveRun("completed")
	assert.NoError(t, m.WriteTextfile(filepath.Join(t.TempDir(), TextfileName)))
}

func TestWriteTextfile(t *testing.T) {
	m := New()
	m.SetExpiry(time.Unix(1700000600, 0))
	m.ObserveApply("net", "delay", time.Unix(1700000000, 0), nil)
	m.ObserveRun("expired")

	path := filepath.Join(t.TempDir(), "log", TextfileName)
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, "# TYPE chaos_runner_actions_total counter")
	assert.Contains(t, text, `chaos_runner_actions_total{command="delay",group="net",phase="apply",result="success"} 1`)
	assert.Contains(t, text, `chaos_runner_runs_total{state="expired"} 1`)
	assert.Contains(t, text, "chaos_runner_expire_timestamp_seconds 1.7000006e+09")

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files must not be left behind")

	// Rewrites replace the previous content
	m.ObserveRun("expired")
	require.NoError(t, m.WriteTextfile(path))
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `chaos_runner_runs_total{state="expired"} 2`)
}
