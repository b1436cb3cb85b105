package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jihwankim/chaos-monkey/pkg/chaos"
	"github.com/jihwankim/chaos-monkey/pkg/recovery"
	"github.com/jihwankim/chaos-monkey/pkg/replay"
	"github.com/jihwankim/chaos-monkey/pkg/selection"
)

// runRandom picks uniformly from the selection until the run expires, a stop
// is requested, or a single iteration completes in run-once mode
func (r *Runner) runRandom(ctx context.Context, opts Options, result *Result) error {
	sel, err := selection.Filter(r.catalog, opts.Criteria)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	if len(sel) == 0 {
		return fmt.Errorf("%w: %w", ErrConfiguration, selection.ErrEmptySelection)
	}
	result.Selection = selection.Commands(sel)

	expiry := opts.ExpireAt
	if expiry.IsZero() {
		expiry = r.now().Add(opts.RunTimeout)
	}
	result.Expiry = expiry
	r.metrics.SetExpiry(expiry)

	r.transitionState(StateRunning)
	r.logger.Info("Selected chaos commands",
		"count", len(sel),
		"commands", result.Selection,
		"expire_time", recovery.FormatExpireTime(expiry))

	for r.now().Before(expiry) && !r.StopRequested() && !opts.DryRun {
		action := sel[r.intn(len(sel))]
		if err := r.execute(ctx, opts, action, opts.EnablementTimeout, expiry, result); err != nil {
			return err
		}
		if opts.RunOnce {
			break
		}
	}

	r.finish(opts, result, expiry)
	return nil
}

// runReplay executes a persisted queue in declared order, each entry once
func (r *Runner) runReplay(ctx context.Context, opts Options, result *Result) error {
	entries, err := replay.LoadForRun(opts.ReplayFile, opts.Restart)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	if err := selection.Validate(replay.Commands(entries), r.catalog.Commands()); err != nil {
		return fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	result.Selection = replay.Commands(entries)

	// The deadline only matters to a recovery job installed by a terminal
	// entry; replay itself runs every entry once
	expiry := opts.ExpireAt
	if expiry.IsZero() {
		expiry = r.now().Add(replayBudget(entries))
	}
	result.Expiry = expiry
	r.metrics.SetExpiry(expiry)

	r.transitionState(StateRunning)
	r.logger.Info("Replaying commands", "file", opts.ReplayFile, "count", len(entries))

	for i, entry := range entries {
		if r.StopRequested() {
			break
		}

		action, _ := r.catalog.Find(entry.Command)
		enablement := time.Duration(entry.Timeout) * time.Second

		if opts.DryRun {
			r.logger.Info("Dry run, skipping", "command", action.Command, "timeout", entry.Timeout)
			continue
		}

		if action.Terminal {
			// The host goes down with the rest of the queue unexecuted
			if err := replay.SaveRemainder(opts.ReplayFile, entries[i+1:]); err != nil {
				return err
			}
		}

		if err := r.execute(ctx, opts, action, enablement, expiry, result); err != nil {
			// No reboot is coming, so nothing will resume from the remainder
			if derr := replay.DiscardRemainder(opts.ReplayFile); derr != nil {
				r.logger.Warn("Failed to remove replay remainder", "error", derr)
			}
			return err
		}

		if action.Terminal {
			break
		}
	}

	if !r.StopRequested() {
		if err := replay.DiscardRemainder(opts.ReplayFile); err != nil {
			r.logger.Warn("Failed to remove stale replay remainder", "error", err)
		}
	}

	if r.StopRequested() {
		result.State = StateStopping
		result.StopReason = r.StopReason()
	} else {
		result.State = StateCompleted
		result.StopReason = "replay queue drained"
	}
	r.transitionState(result.State)
	return nil
}

// finish decides why the random loop ended
func (r *Runner) finish(opts Options, result *Result, expiry time.Time) {
	switch {
	case r.StopRequested():
		result.State = StateStopping
		result.StopReason = r.StopReason()
	case opts.DryRun:
		result.State = StateCompleted
		result.StopReason = "dry run"
	case opts.RunOnce && len(result.Actions) > 0:
		result.State = StateCompleted
		result.StopReason = "run-once finished"
	default:
		result.State = StateExpired
		result.StopReason = "expire time reached"
	}
	r.transitionState(result.State)
}

// execute applies one action. Only a failed host-terminating action is
// returned as an error; every other failure is logged and the run goes on.
func (r *Runner) execute(ctx context.Context, opts Options, action *chaos.ActionSpec, enablement time.Duration, expiry time.Time, result *Result) error {
	r.logger.Info(action.Description, "command", action.Command, "group", action.Group)

	if r.recorder != nil {
		entry := replay.Entry{Command: action.Command, Timeout: int(enablement / time.Second)}
		if err := r.recorder.Record(entry); err != nil {
			r.logger.Warn("Failed to record command", "command", action.Command, "error", err)
		}
	}

	record := newActionResult(action, enablement, r.now())

	if action.Terminal {
		err := r.executeTerminal(ctx, opts, action, expiry)
		record.Err = err
		result.Actions = append(result.Actions, record)
		return err
	}

	// A failed apply has already rolled back its own steps
	if err := action.Run(ctx); err != nil {
		r.metrics.ObserveApply(action.Group, action.Command, record.AppliedAt, err)
		record.Err = err
		r.logActionError(action, err)
		result.Actions = append(result.Actions, record)
		return nil
	}
	r.metrics.ObserveApply(action.Group, action.Command, record.AppliedAt, nil)
	r.cleanup.Track(action)

	if err := r.sleep(ctx, enablement); err != nil {
		r.logger.Warn("Enablement wait interrupted", "command", action.Command, "error", err)
		r.RequestStop(err.Error())
	}

	if action.Reversible() {
		rerr := r.cleanup.Revert(ctx, action)
		r.metrics.ObserveUndo(action.Group, action.Command, rerr)
		record.RevertedAt = r.now()
		if rerr != nil {
			r.logActionError(action, rerr)
			record.Err = rerr
		}
	} else {
		r.metrics.ObserveSettled()
	}

	result.Actions = append(result.Actions, record)
	return nil
}

// executeTerminal installs the recovery job and applies an action that takes
// the host down. It never waits or reverts.
func (r *Runner) executeTerminal(ctx context.Context, opts Options, action *chaos.ActionSpec, expiry time.Time) error {
	r.RequestStop("host restart: " + action.Command)

	desc := recovery.Descriptor{
		Executable: opts.Executable,
		Args:       recovery.ResumeArgs(opts.Args),
		ExpireAt:   expiry,
		WorkingDir: opts.WorkingDir,
	}
	if err := r.job.Install(desc); err != nil {
		return fmt.Errorf("%w: failed to install recovery job: %w", ErrTerminalAction, err)
	}

	err := action.Run(ctx)
	r.metrics.ObserveApply(action.Group, action.Command, r.now(), err)
	if err != nil {
		r.logActionError(action, err)
		if uerr := r.job.Uninstall(); uerr != nil {
			r.logger.Error("Failed to remove recovery job", "error", uerr)
		}
		return fmt.Errorf("%w: %w", ErrTerminalAction, err)
	}

	// The host may vanish at any moment
	r.metrics.ObserveSettled()
	r.writeMetrics()
	return nil
}

func (r *Runner) logActionError(action *chaos.ActionSpec, err error) {
	fields := []interface{}{
		"command", action.Command,
		"group", action.Group,
		"description", action.Description,
		"error", err,
	}
	var actionErr *chaos.ActionError
	if errors.As(err, &actionErr) {
		fields = append(fields, "phase", string(actionErr.Phase))
		if actionErr.Step != "" {
			fields = append(fields, "step", actionErr.Step)
		}
	}
	r.logger.Error("Chaos action failed", fields...)
}

// replayBudget is the sum of all entry timeouts
func replayBudget(entries []replay.Entry) time.Duration {
	var total time.Duration
	for _, e := range entries {
		total += time.Duration(e.Timeout) * time.Second
	}
	return total
}
