package recovery

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/rs/zerolog/log"
)

// SystemdJob installs the resumption job as a systemd unit enabled for
// multi-user.target. The unit is removed by the resumed run itself.
type SystemdJob struct {
	// UnitDir holds the unit file (e.g. /etc/systemd/system)
	UnitDir string

	// WantsDir holds the enablement symlink
	// (e.g. /etc/systemd/system/multi-user.target.wants)
	WantsDir string

	// UnitName is the unit file name
	UnitName string
}

// DefaultUnitName is the unit installed when none is configured
const DefaultUnitName = "chaos-runner-restart.service"

// NewSystemdJob creates a systemd job, filling in default names
func NewSystemdJob(unitDir, wantsDir, unitName string) *SystemdJob {
	if unitDir == "" {
		unitDir = "/etc/systemd/system"
	}
	if wantsDir == "" {
		wantsDir = filepath.Join(unitDir, "multi-user.target.wants")
	}
	if unitName == "" {
		unitName = DefaultUnitName
	}
	return &SystemdJob{
		UnitDir:  unitDir,
		WantsDir: wantsDir,
		UnitName: unitName,
	}
}

var unitTemplate = template.Must(template.New("unit").Parse(`[Unit]
Description=Resume chaos runner after reboot
After=network-online.target
Wants=network-online.target

[Service]
Type=simple
{{- if .WorkingDirectory }}
WorkingDirectory={{ .WorkingDirectory }}
{{- end }}
ExecStart={{ .ExecStart }}

[Install]
WantedBy=multi-user.target
`))

// UnitPath returns the unit file path
func (j *SystemdJob) UnitPath() string {
	return filepath.Join(j.UnitDir, j.UnitName)
}

// LinkPath returns the enablement symlink path
func (j *SystemdJob) LinkPath() string {
	return filepath.Join(j.WantsDir, j.UnitName)
}

// Install writes the unit and enables it for the next boot
func (j *SystemdJob) Install(d Descriptor) error {
	var b strings.Builder
	unit := struct {
		WorkingDirectory string
		ExecStart        string
	}{
		WorkingDirectory: escapeSpecifiers(d.WorkingDir),
		ExecStart:        quoteCommand(d.Command()),
	}
	if err := unitTemplate.Execute(&b, unit); err != nil {
		return fmt.Errorf("failed to render unit: %w", err)
	}

	if err := os.MkdirAll(j.UnitDir, 0755); err != nil {
		return fmt.Errorf("failed to create unit directory: %w", err)
	}
	if err := os.WriteFile(j.UnitPath(), []byte(b.String()), 0644); err != nil {
		return fmt.Errorf("failed to write unit file: %w", err)
	}

	if err := os.MkdirAll(j.WantsDir, 0755); err != nil {
		return fmt.Errorf("failed to create wants directory: %w", err)
	}
	if err := os.Remove(j.LinkPath()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to replace unit link: %w", err)
	}
	if err := os.Symlink(j.UnitPath(), j.LinkPath()); err != nil {
		return fmt.Errorf("failed to enable unit: %w", err)
	}

	log.Info().
		Str("unit", j.UnitPath()).
		Strs("args", d.Args).
		Str("dir", d.WorkingDir).
		Str("expire_time", FormatExpireTime(d.ExpireAt)).
		Msg("Boot recovery job installed")
	return nil
}

// Uninstall removes the unit and its link. Missing files are not an error.
func (j *SystemdJob) Uninstall() error {
	removed := false
	for _, path := range []string{j.LinkPath(), j.UnitPath()} {
		err := os.Remove(path)
		if err == nil {
			removed = true
			continue
		}
		if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to remove %s: %w", path, err)
		}
	}
	if removed {
		log.Info().Str("unit", j.UnitPath()).Msg("Boot recovery job removed")
	}
	return nil
}

// escapeSpecifiers doubles the % that systemd would expand as a unit
// specifier
func escapeSpecifiers(s string) string {
	return strings.ReplaceAll(s, "%", "%%")
}

// quoteCommand renders argv for ExecStart, double-quoting words that
// contain whitespace or quotes. ExecStart also expands % specifiers and
// $VAR references, so both are escaped.
func quoteCommand(argv []string) string {
	words := make([]string, len(argv))
	for i, arg := range argv {
		arg = strings.ReplaceAll(escapeSpecifiers(arg), "$", "$$")
		if arg == "" || strings.ContainsAny(arg, " \t\"'\\") {
			r := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
			words[i] = `"` + r.Replace(arg) + `"`
			continue
		}
		words[i] = arg
	}
	return strings.Join(words, " ")
}
