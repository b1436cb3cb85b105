// Package recovery installs a boot-time job that resumes an interrupted
// chaos run after the host reboots.
package recovery

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	// RestartFlag marks an invocation as a resumption after reboot
	RestartFlag = "--restart"

	// ExpireTimeFlag carries the absolute deadline of the original run
	ExpireTimeFlag = "--expire-time"
)

// Descriptor is everything needed to re-invoke the runner on boot
type Descriptor struct {
	// Executable is the absolute path of the runner binary
	Executable string

	// Args is the original command line without resume markers
	Args []string

	// ExpireAt is the deadline of the original run
	ExpireAt time.Time

	// WorkingDir is the directory the original run was started from, so
	// relative paths in Args resolve the same way on boot
	WorkingDir string
}

// Command returns the full argv the boot job runs
func (d Descriptor) Command() []string {
	cmd := make([]string, 0, len(d.Args)+3)
	cmd = append(cmd, d.Executable)
	cmd = append(cmd, d.Args...)
	cmd = append(cmd, ExpireTimeFlag+"="+FormatExpireTime(d.ExpireAt), RestartFlag)
	return cmd
}

// Job installs and removes the boot-time resumption job
type Job interface {
	Install(d Descriptor) error
	Uninstall() error
}

// ResumeArgs strips any previous resume markers from args so a resumed run
// never accumulates duplicate --restart or --expire-time flags.
func ResumeArgs(args []string) []string {
	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == RestartFlag, strings.HasPrefix(arg, RestartFlag+"="):
			continue
		case arg == ExpireTimeFlag:
			// Drop the flag and its value
			i++
			continue
		case strings.HasPrefix(arg, ExpireTimeFlag+"="):
			continue
		}
		out = append(out, arg)
	}
	return out
}

// FormatExpireTime renders t as a UNIX timestamp with sub-second precision
func FormatExpireTime(t time.Time) string {
	return strconv.FormatFloat(float64(t.UnixNano())/1e9, 'f', 3, 64)
}

// ParseExpireTime parses a UNIX timestamp as produced by FormatExpireTime
func ParseExpireTime(value float64) (time.Time, error) {
	if value <= 0 {
		return time.Time{}, fmt.Errorf("invalid expire time: %v", value)
	}
	sec := int64(value)
	nsec := int64((value - float64(sec)) * 1e9)
	return time.Unix(sec, nsec), nil
}
