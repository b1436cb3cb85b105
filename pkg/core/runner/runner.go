// Package runner drives a chaos run: it holds the workspace lock, picks
// actions (at random or from a replay queue), applies them, waits, and
// reverts them until the run expires or is asked to stop.
package runner

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jihwankim/chaos-monkey/pkg/chaos"
	"github.com/jihwankim/chaos-monkey/pkg/core/cleanup"
	"github.com/jihwankim/chaos-monkey/pkg/metrics"
	"github.com/jihwankim/chaos-monkey/pkg/recovery"
	"github.com/jihwankim/chaos-monkey/pkg/replay"
	"github.com/jihwankim/chaos-monkey/pkg/reporting"
	"github.com/jihwankim/chaos-monkey/pkg/selection"
)

// Locker is the workspace lock
type Locker interface {
	Acquire(takeover bool) error
	Verify() error
	Release(quiet bool) error
}

// Recorder receives every executed command
type Recorder interface {
	Record(e replay.Entry) error
}

// Deps are the collaborators of a Runner
type Deps struct {
	Catalog *chaos.Catalog
	Lock    Locker
	Job     recovery.Job
	Logger  *reporting.Logger
	Cleanup *cleanup.Coordinator

	// Metrics and Recorder are optional
	Metrics     *metrics.Metrics
	MetricsFile string
	Recorder    Recorder

	// Now, Sleep and Intn default to the real clock and math/rand/v2
	Now   func() time.Time
	Sleep func(ctx context.Context, d time.Duration) error
	Intn  func(n int) int
}

// Options describe one invocation
type Options struct {
	// Workspace must be an existing directory
	Workspace string

	// EnablementTimeout is how long each action stays applied
	EnablementTimeout time.Duration

	// RunTimeout is the total budget of a fresh random run
	RunTimeout time.Duration

	// ExpireAt overrides RunTimeout with an absolute deadline
	ExpireAt time.Time

	Criteria selection.Criteria

	RunOnce bool
	DryRun  bool

	// Restart marks a resumption after reboot
	Restart bool

	// ReplayFile switches to replay mode
	ReplayFile string

	// Executable and Args are re-invoked by the recovery job from WorkingDir
	Executable string
	Args       []string
	WorkingDir string
}

// Runner is the chaos scheduler
type Runner struct {
	catalog     *chaos.Catalog
	lock        Locker
	job         recovery.Job
	logger      *reporting.Logger
	cleanup     *cleanup.Coordinator
	metrics     *metrics.Metrics
	metricsFile string
	recorder    Recorder
	now         func() time.Time
	sleep       func(ctx context.Context, d time.Duration) error
	intn        func(n int) int

	state         atomic.Int32
	stopRequested atomic.Bool
	reasonMu      sync.Mutex
	stopReason    string
}

// New creates a runner
func New(deps Deps) *Runner {
	r := &Runner{
		catalog:     deps.Catalog,
		lock:        deps.Lock,
		job:         deps.Job,
		logger:      deps.Logger,
		cleanup:     deps.Cleanup,
		metrics:     deps.Metrics,
		metricsFile: deps.MetricsFile,
		recorder:    deps.Recorder,
		now:         deps.Now,
		sleep:       deps.Sleep,
		intn:        deps.Intn,
	}
	if r.logger == nil {
		r.logger = reporting.Nop()
	}
	if r.cleanup == nil {
		r.cleanup = cleanup.New(r.logger.GetZerologLogger())
	}
	if r.now == nil {
		r.now = time.Now
	}
	if r.sleep == nil {
		r.sleep = sleepContext
	}
	if r.intn == nil {
		r.intn = rand.IntN
	}
	return r
}

// RequestStop asks the loop to stop after the current action. It only flips
// a flag and is safe to call from a signal handler goroutine.
func (r *Runner) RequestStop(reason string) {
	r.reasonMu.Lock()
	if r.stopReason == "" {
		r.stopReason = reason
	}
	r.reasonMu.Unlock()
	r.stopRequested.Store(true)
}

// StopRequested reports whether a stop was requested
func (r *Runner) StopRequested() bool {
	return r.stopRequested.Load()
}

// StopReason returns the reason given to the first RequestStop
func (r *Runner) StopReason() string {
	r.reasonMu.Lock()
	defer r.reasonMu.Unlock()
	return r.stopReason
}

// State returns the current lifecycle state
func (r *Runner) State() State {
	return State(r.state.Load())
}

func (r *Runner) transitionState(s State) {
	old := State(r.state.Swap(int32(s)))
	if old != s {
		r.logger.Debug("State transition", "from", old.String(), "to", s.String())
	}
}

// Run executes a chaos run. The lock is always released before returning.
func (r *Runner) Run(ctx context.Context, opts Options) (*Result, error) {
	result := &Result{State: StateIdle, Mode: ModeRandom}
	if opts.ReplayFile != "" {
		result.Mode = ModeReplay
	}
	r.transitionState(StateIdle)

	if opts.Restart {
		r.logger.Info("Chaos Monkey restarted after a reboot", "workspace", opts.Workspace)
	} else {
		r.logger.Info("Chaos Monkey started", "workspace", opts.Workspace)
	}
	r.logger.Debug("Run options", "dry_run", opts.DryRun, "run_once", opts.RunOnce, "mode", string(result.Mode))

	// The restart action was the last step of a one-shot run; the resumed
	// invocation only tidies up
	if opts.RunOnce && opts.Restart {
		if err := r.job.Uninstall(); err != nil {
			r.logger.Warn("Failed to remove recovery job", "error", err)
		}
		if err := r.lock.Release(true); err != nil {
			r.logger.Error("Failed to release lock", "error", err)
		}
		result.State = StateCompleted
		result.StopReason = "run-once finished before restart"
		r.transitionState(StateUnlocked)
		r.logger.Info("Chaos Monkey stopped")
		r.metrics.ObserveRun(result.State.String())
		return result, nil
	}

	if err := checkWorkspace(opts.Workspace); err != nil {
		return r.fail(result, err)
	}

	// On a restart this removes the job that just launched us
	if err := r.job.Uninstall(); err != nil {
		return r.fail(result, fmt.Errorf("failed to remove recovery job: %w", err))
	}

	if err := r.lock.Acquire(opts.Restart); err != nil {
		return r.fail(result, err)
	}
	r.transitionState(StateLocked)

	defer r.release(ctx, result)

	var err error
	if opts.ReplayFile != "" {
		err = r.runReplay(ctx, opts, result)
	} else {
		err = r.runRandom(ctx, opts, result)
	}
	if err != nil {
		result.State = StateFailed
		return result, err
	}
	return result, nil
}

func (r *Runner) release(ctx context.Context, result *Result) {
	if err := r.cleanup.RevertAll(ctx); err != nil {
		r.logger.Error("Failed to revert outstanding chaos", "error", err)
	}

	if err := r.lock.Release(false); err != nil {
		r.logger.Error("Failed to release lock", "error", err)
	}
	r.transitionState(StateUnlocked)

	r.metrics.ObserveRun(result.State.String())
	r.writeMetrics()

	r.logger.Info("Chaos Monkey stopped", "state", result.State.String(), "actions", len(result.Actions))
}

func (r *Runner) fail(result *Result, err error) (*Result, error) {
	result.State = StateFailed
	r.transitionState(StateFailed)
	r.logger.Error("Chaos Monkey failed", "error", err)
	return result, err
}

func (r *Runner) writeMetrics() {
	if r.metrics == nil || r.metricsFile == "" {
		return
	}
	if err := r.metrics.WriteTextfile(r.metricsFile); err != nil {
		r.logger.Warn("Failed to write metrics", "path", r.metricsFile, "error", err)
	}
}

func checkWorkspace(path string) error {
	if path == "" {
		return ErrWorkspace
	}
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrWorkspace, path)
		}
		return fmt.Errorf("%w: %s: %v", ErrWorkspace, path, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrWorkspace, path)
	}
	return nil
}

// sleepContext waits for d or until ctx is done
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
