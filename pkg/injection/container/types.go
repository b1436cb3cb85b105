package container

import "time"

// Group is the group tag of every container action
const Group = "container"

// Params defines the containers put under chaos and how they are handled
type Params struct {
	// Targets are container names; each yields pause, kill and restart actions
	Targets []string

	// Signal is the signal sent by kill-container-<name>
	Signal string

	// StopTimeout is the grace period given to restart-container-<name>
	StopTimeout time.Duration

	// StartTimeout bounds the wait for a container to report running
	StartTimeout time.Duration

	// PollInterval is the delay between state checks
	PollInterval time.Duration
}

// DefaultParams returns the default container settings with no targets
func DefaultParams() Params {
	return Params{
		Signal:       "SIGKILL",
		StopTimeout:  10 * time.Second,
		StartTimeout: 30 * time.Second,
		PollInterval: 500 * time.Millisecond,
	}
}
