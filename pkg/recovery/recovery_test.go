package recovery

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResumeArgs(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want []string
	}{
		{
			name: "no markers",
			args: []string{"run", "/ws", "--include-group", "net"},
			want: []string{"run", "/ws", "--include-group", "net"},
		},
		{
			name: "restart and separate expire value",
			args: []string{"run", "--restart", "/ws", "--expire-time", "1700000000.5", "--run-once"},
			want: []string{"run", "/ws", "--run-once"},
		},
		{
			name: "inline expire value",
			args: []string{"run", "/ws", "--expire-time=1700000000.000", "--restart"},
			want: []string{"run", "/ws"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResumeArgs(tt.args))
		})
	}
}

func TestDescriptorCommand(t *testing.T) {
	d := Descriptor{
		Executable: "/usr/local/bin/chaos-runner",
		Args:       []string{"run", "/ws"},
		ExpireAt:   time.Unix(1700000000, 500000000),
	}

	assert.Equal(t, []string{
		"/usr/local/bin/chaos-runner", "run", "/ws", "--expire-time=1700000000.500", "--restart",
	}, d.Command())
}

func TestExpireTimeRoundTrip(t *testing.T) {
	at := time.Unix(1700000000, 250000000)

	parsed, err := ParseExpireTime(1700000000.25)
	require.NoError(t, err)
	assert.WithinDuration(t, at, parsed, time.Millisecond)
	assert.Equal(t, "1700000000.250", FormatExpireTime(at))

	_, err = ParseExpireTime(0)
	assert.Error(t, err)
}

func TestSystemdInstallUninstall(t *testing.T) {
	dir := t.TempDir()
	job := NewSystemdJob(filepath.Join(dir, "system"), "", "")

	err := job.Install(Descriptor{
		Executable: "/opt/chaos runner/chaos-runner",
		Args:       []string{"run", "/ws", "--include-command", "delay"},
		ExpireAt:   time.Unix(1700000000, 0),
	})
	require.NoError(t, err)

	unit, err := os.ReadFile(job.UnitPath())
	require.NoError(t, err)
	assert.Contains(t, string(unit),
		`ExecStart="/opt/chaos runner/chaos-runner" run /ws --include-command delay --expire-time=1700000000.000 --restart`)
	assert.Contains(t, string(unit), "WantedBy=multi-user.target")
	assert.NotContains(t, string(unit), "WorkingDirectory=")

	target, err := os.Readlink(job.LinkPath())
	require.NoError(t, err)
	assert.Equal(t, job.UnitPath(), target)

	// Installing again replaces the previous job
	require.NoError(t, job.Install(Descriptor{Executable: "/bin/chaos-runner", ExpireAt: time.Unix(1, 0)}))

	require.NoError(t, job.Uninstall())
	_, err = os.Stat(job.UnitPath())
	assert.True(t, os.IsNotExist(err))
	_, err = os.Lstat(job.LinkPath())
	assert.True(t, os.IsNotExist(err))

	// Nothing installed is fine
	require.NoError(t, job.Uninstall())
}

func TestSystemdUnitKeepsWorkingDirectory(t *testing.T) {
	job := NewSystemdJob(filepath.Join(t.TempDir(), "system"), "", "")

	err := job.Install(Descriptor{
		Executable: "/usr/local/bin/chaos-runner",
		Args:       []string{"run", "ws", "--config", "conf/chaos_runner.yaml"},
		ExpireAt:   time.Unix(1700000000, 0),
		WorkingDir: "/home/ops/100%",
	})
	require.NoError(t, err)

	unit, err := os.ReadFile(job.UnitPath())
	require.NoError(t, err)
	assert.Contains(t, string(unit), "Type=simple\nWorkingDirectory=/home/ops/100%%\nExecStart=/usr/local/bin/chaos-runner run ws")
}

func TestQuoteCommand(t *testing.T) {
	tests := []struct {
		name string
		argv []string
		want string
	}{
		{"plain", []string{"/bin/x", "run", "/ws"}, "/bin/x run /ws"},
		{"whitespace", []string{"/bin/x", "a b"}, `/bin/x "a b"`},
		{"empty", []string{"/bin/x", ""}, `/bin/x ""`},
		{"quotes", []string{"/bin/x", `say "hi"`}, `/bin/x "say \"hi\""`},
		{"specifier", []string{"/bin/x", "50%"}, "/bin/x 50%%"},
		{"variable", []string{"/bin/x", "/srv/$HOME/ws"}, "/bin/x /srv/$$HOME/ws"},
		{"variable with space", []string{"/bin/x", "$A b"}, `/bin/x "$$A b"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, quoteCommand(tt.argv))
		})
	}
}
