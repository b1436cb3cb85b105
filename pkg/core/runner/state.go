package runner

import (
	"errors"
	"fmt"
	"time"

	"github.com/jihwankim/chaos-monkey/pkg/chaos"
)

// State represents where the runner is in its lifecycle
type State int

const (
	StateIdle State = iota
	StateLocked
	StateRunning
	StateStopping
	StateExpired
	StateCompleted
	StateUnlocked
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateLocked:
		return "LOCKED"
	case StateRunning:
		return "RUNNING"
	case StateStopping:
		return "STOPPING"
	case StateExpired:
		return "EXPIRED"
	case StateCompleted:
		return "COMPLETED"
	case StateUnlocked:
		return "UNLOCKED"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Mode is how the next command is chosen
type Mode string

const (
	ModeRandom Mode = "random"
	ModeReplay Mode = "replay"
)

var (
	// ErrConfiguration classifies invalid run options; nothing was touched
	ErrConfiguration = errors.New("configuration error")

	// ErrWorkspace means the workspace is not an existing directory
	ErrWorkspace = fmt.Errorf("%w: workspace is not an existing directory", ErrConfiguration)

	// ErrTerminalAction means a host-terminating action failed to start.
	// The recovery job has been removed again.
	ErrTerminalAction = errors.New("host-terminating action failed")
)

// ActionResult records one executed action
type ActionResult struct {
	Command     string
	Group       string
	Description string
	Enablement  time.Duration
	AppliedAt   time.Time
	RevertedAt  time.Time
	Terminal    bool
	Err         error
}

// Result is the outcome of a run
type Result struct {
	// State is the terminal state reached before the lock was released
	State      State
	StopReason string
	Mode       Mode
	Expiry     time.Time
	Selection  []string
	Actions    []ActionResult
}

func newActionResult(action *chaos.ActionSpec, enablement time.Duration, at time.Time) ActionResult {
	return ActionResult{
		Command:     action.Command,
		Group:       action.Group,
		Description: action.Description,
		Enablement:  enablement,
		AppliedAt:   at,
		Terminal:    action.Terminal,
	}
}
