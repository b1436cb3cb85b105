package chaos

import (
	"context"
	"errors"
	"fmt"
)

// Step is one atomic (do, undo) pair of a composite action
type Step struct {
	// Name identifies the step in errors, usually the rendered command line
	Name string
	Do   Effect
	Undo Effect
}

// NewComposite builds an action from ordered steps. Apply runs the steps in
// declared order. When a step fails, the steps already applied are undone in
// reverse order before the error is returned, so a failed apply leaves
// nothing behind and must not be reverted. Undo runs every step's undo in
// reverse order; a failing undo does not stop the remaining ones.
func NewComposite(group, command, description string, steps ...Step) *ActionSpec {
	ordered := make([]Step, len(steps))
	copy(ordered, steps)

	return &ActionSpec{
		Group:       group,
		Command:     command,
		Description: description,
		Apply: func(ctx context.Context) error {
			for i, step := range ordered {
				if err := step.Do(ctx); err != nil {
					if rerr := undoSteps(ctx, group, command, ordered[:i]); rerr != nil {
						err = errors.Join(err, rerr)
					}
					return &ActionError{
						Group:   group,
						Command: command,
						Phase:   PhaseApply,
						Step:    step.Name,
						Err:     err,
					}
				}
			}
			return nil
		},
		Undo: func(ctx context.Context) error {
			return undoSteps(ctx, group, command, ordered)
		},
	}
}

// undoSteps undoes steps last to first. The returned error names the first
// step that failed and carries every failure.
func undoSteps(ctx context.Context, group, command string, steps []Step) error {
	var (
		failed string
		errs   []error
	)
	for i := len(steps) - 1; i >= 0; i-- {
		step := steps[i]
		if step.Undo == nil {
			continue
		}
		if err := step.Undo(ctx); err != nil {
			if failed == "" {
				failed = step.Name
			}
			errs = append(errs, fmt.Errorf("%s: %w", step.Name, err))
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return &ActionError{
		Group:   group,
		Command: command,
		Phase:   PhaseUndo,
		Step:    failed,
		Err:     errors.Join(errs...),
	}
}
