package chaos

import (
	"context"
	"errors"
	"fmt"
)

// Effect is a single side effect issued against the host
type Effect func(ctx context.Context) error

// Phase identifies which half of an action failed
type Phase string

const (
	PhaseApply Phase = "apply"
	PhaseUndo  Phase = "undo"
)

// ActionSpec is a named chaos operation with an apply effect and an
// optional undo effect. Specs are built once by providers and never mutated.
type ActionSpec struct {
	// Group is the coarse category tag (e.g. "net", "kill")
	Group string

	// Command is the globally unique identifier of the action
	Command string

	// Description is human readable text used in logs
	Description string

	// Apply performs the disruptive effect
	Apply Effect

	// Undo reverses Apply. Nil means the action is one-shot.
	Undo Effect

	// Terminal marks actions that take the host down (e.g. a reboot).
	// The runner never waits for or reverts a terminal action.
	Terminal bool
}

// Reversible reports whether the action has an undo effect
func (a *ActionSpec) Reversible() bool {
	return a.Undo != nil
}

// Run applies the action, wrapping any failure in an ActionError
func (a *ActionSpec) Run(ctx context.Context) error {
	if err := a.Apply(ctx); err != nil {
		return a.wrap(PhaseApply, err)
	}
	return nil
}

// Revert undoes the action. It is a no-op for one-shot actions.
func (a *ActionSpec) Revert(ctx context.Context) error {
	if a.Undo == nil {
		return nil
	}
	if err := a.Undo(ctx); err != nil {
		return a.wrap(PhaseUndo, err)
	}
	return nil
}

func (a *ActionSpec) wrap(phase Phase, err error) error {
	var actionErr *ActionError
	if errors.As(err, &actionErr) {
		// Composite steps already carry their step name
		if actionErr.Command == "" {
			actionErr.Command = a.Command
			actionErr.Group = a.Group
		}
		return actionErr
	}
	return &ActionError{
		Group:   a.Group,
		Command: a.Command,
		Phase:   phase,
		Err:     err,
	}
}

// String returns "group/command"
func (a *ActionSpec) String() string {
	return a.Group + "/" + a.Command
}

// ActionError reports a failed apply or undo, identifying the step that failed
type ActionError struct {
	Group   string
	Command string
	Phase   Phase
	Step    string
	Err     error
}

func (e *ActionError) Error() string {
	if e.Step != "" {
		return fmt.Sprintf("chaos %s/%s failed during %s at step %q: %v", e.Group, e.Command, e.Phase, e.Step, e.Err)
	}
	return fmt.Sprintf("chaos %s/%s failed during %s: %v", e.Group, e.Command, e.Phase, e.Err)
}

func (e *ActionError) Unwrap() error {
	return e.Err
}

// Provider builds the actions of one chaos family
type Provider interface {
	// Name identifies the provider in logs
	Name() string

	// BuildActions returns the provider's actions in a stable order
	BuildActions() []*ActionSpec
}
