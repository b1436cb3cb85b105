// Package lock guards a workspace against concurrent chaos runs with a PID
// file. The presence of the file is the sole authority for "an instance is
// running here".
//
// A fresh run creates the file exclusively. A run resuming after a reboot
// takes the file over, because the previous instance legitimately left it
// behind when the host went down.
package lock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/sys/unix"
)

// FileName is the lock file created inside the workspace
const FileName = "chaos_runner.lock"

var (
	// ErrAlreadyRunning means another instance holds the workspace
	ErrAlreadyRunning = errors.New("chaos runner already running in workspace")

	// ErrLockCorrupted means the lock file does not hold our PID
	ErrLockCorrupted = errors.New("lock file corrupted")

	// ErrNotLocked means Verify was called before Acquire
	ErrNotLocked = errors.New("workspace is not locked")
)

// Manager owns the lock file of one workspace
type Manager struct {
	path string
	pid  int
	held bool
}

// New creates a lock manager for workspace
func New(workspace string) *Manager {
	return &Manager{
		path: filepath.Join(workspace, FileName),
		pid:  os.Getpid(),
	}
}

// Path returns the lock file path
func (m *Manager) Path() string {
	return m.path
}

// Acquire writes our PID into the lock file. Without takeover the file must
// not exist yet.
func (m *Manager) Acquire(takeover bool) error {
	flags := os.O_CREATE | os.O_WRONLY
	if takeover {
		flags |= os.O_TRUNC
	} else {
		flags |= os.O_EXCL
	}

	f, err := os.OpenFile(m.path, flags, 0644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return m.alreadyRunning()
		}
		return fmt.Errorf("failed to create lock file %s: %w", m.path, err)
	}

	if _, err := f.WriteString(strconv.Itoa(m.pid)); err != nil {
		f.Close()
		return fmt.Errorf("failed to write lock file %s: %w", m.path, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("failed to sync lock file %s: %w", m.path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close lock file %s: %w", m.path, err)
	}

	m.held = true
	log.Debug().Str("path", m.path).Int("pid", m.pid).Bool("takeover", takeover).Msg("Workspace locked")

	return m.Verify()
}

// Verify re-reads the lock file and checks it holds our PID
func (m *Manager) Verify() error {
	if !m.held {
		return ErrNotLocked
	}

	data, err := os.ReadFile(m.path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLockCorrupted, err)
	}

	pid := string(data)
	if pid != strconv.Itoa(m.pid) {
		return fmt.Errorf("%w: unexpected pid %q in %s, expected %d", ErrLockCorrupted, pid, m.path, m.pid)
	}
	return nil
}

// Release deletes the lock file. A missing file is tolerated and logged
// unless quiet is set.
func (m *Manager) Release(quiet bool) error {
	m.held = false

	err := os.Remove(m.path)
	if err == nil {
		return nil
	}
	if errors.Is(err, os.ErrNotExist) {
		if !quiet {
			log.Warn().Str("path", m.path).Msg("Lock file not found")
		}
		return nil
	}
	return fmt.Errorf("failed to remove lock file %s: %w", m.path, err)
}

// Owner returns the PID recorded in the lock file
func (m *Manager) Owner() (int, error) {
	data, err := os.ReadFile(m.path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrLockCorrupted, err)
	}
	return pid, nil
}

func (m *Manager) alreadyRunning() error {
	pid, err := m.Owner()
	if err != nil {
		return fmt.Errorf("%w: lock file already exists: %s", ErrAlreadyRunning, m.path)
	}
	state := "stale"
	if IsProcessAlive(pid) {
		state = "alive"
	}
	return fmt.Errorf("%w: lock file already exists: %s (pid %d, %s)", ErrAlreadyRunning, m.path, pid, state)
}

// IsProcessAlive checks if a process exists using kill -0
func IsProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := unix.Kill(pid, 0)
	// EPERM means the process exists but belongs to someone else
	return err == nil || errors.Is(err, unix.EPERM)
}
