package main

import (
	"context"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jihwankim/chaos-monkey/pkg/chaos"
	"github.com/jihwankim/chaos-monkey/pkg/core/cleanup"
	"github.com/jihwankim/chaos-monkey/pkg/core/runner"
	"github.com/jihwankim/chaos-monkey/pkg/emergency"
	"github.com/jihwankim/chaos-monkey/pkg/injection/container"
	"github.com/jihwankim/chaos-monkey/pkg/injection/shell"
	"github.com/jihwankim/chaos-monkey/pkg/lock"
	"github.com/jihwankim/chaos-monkey/pkg/metrics"
	"github.com/jihwankim/chaos-monkey/pkg/recovery"
	"github.com/jihwankim/chaos-monkey/pkg/replay"
	"github.com/jihwankim/chaos-monkey/pkg/reporting"
	"github.com/jihwankim/chaos-monkey/pkg/selection"
)

var runCmd = &cobra.Command{
	Use:   "run WORKSPACE",
	Args:  cobra.ExactArgs(1),
	Short: "Run chaos against this host",
	Long: `Repeatedly picks a random chaos command from the selection, applies it for
the enablement timeout and reverts it, until the total timeout expires. With
--replay the commands of a previously recorded run list are executed in order.`,
	RunE: runChaos,
}

func init() {
	runCmd.Flags().IntP("enablement-timeout", "e", 10, "seconds each chaos command stays applied")
	runCmd.Flags().IntP("total-timeout", "t", 0, "seconds to run chaos for (default: the enablement timeout)")
	runCmd.Flags().String("include-group", "", "comma separated groups to select, or \"all\"")
	runCmd.Flags().String("exclude-group", "", "comma separated groups to remove from the selection")
	runCmd.Flags().String("include-command", "", "comma separated commands to add to the selection")
	runCmd.Flags().String("exclude-command", "", "comma separated commands to remove from the selection")
	runCmd.Flags().Bool("dry-run", false, "log the selection without applying anything")
	runCmd.Flags().Bool("run-once", false, "run a single chaos command and exit")
	runCmd.Flags().Bool("restart", false, "resume a run interrupted by a host restart")
	runCmd.Flags().Float64("expire-time", 0, "absolute unix time at which the run ends")
	runCmd.Flags().String("replay", "", "absolute path of a run list to replay in order")
	runCmd.Flags().Int64("seed", 0, "random seed (default: time based)")
	runCmd.Flags().Int("log-count", -1, "number of rotated results.log files to keep (default from config)")
	_ = runCmd.Flags().MarkHidden("restart")
	_ = runCmd.Flags().MarkHidden("expire-time")
}

// runFlags are the parsed run options before they become runner.Options
type runFlags struct {
	Workspace         string
	EnablementTimeout int
	TotalTimeout      int
	TotalSet          bool
	Criteria          selection.Criteria
	DryRun            bool
	RunOnce           bool
	Restart           bool
	ExpireTime        float64
	ExpireSet         bool
	ReplayFile        string
	Seed              int64
	LogCount          int

	// WorkingDir is where the runner was started; the recovery job
	// resumes from it so relative arguments keep their meaning
	WorkingDir string
}

func parseRunFlags(cmd *cobra.Command, args []string) (*runFlags, error) {
	f := &runFlags{Workspace: args[0]}

	f.EnablementTimeout, _ = cmd.Flags().GetInt("enablement-timeout")
	f.TotalTimeout, _ = cmd.Flags().GetInt("total-timeout")
	f.TotalSet = cmd.Flags().Changed("total-timeout")
	includeGroup, _ := cmd.Flags().GetString("include-group")
	excludeGroup, _ := cmd.Flags().GetString("exclude-group")
	includeCommand, _ := cmd.Flags().GetString("include-command")
	excludeCommand, _ := cmd.Flags().GetString("exclude-command")
	f.DryRun, _ = cmd.Flags().GetBool("dry-run")
	f.RunOnce, _ = cmd.Flags().GetBool("run-once")
	f.Restart, _ = cmd.Flags().GetBool("restart")
	f.ExpireTime, _ = cmd.Flags().GetFloat64("expire-time")
	f.ExpireSet = cmd.Flags().Changed("expire-time")
	f.ReplayFile, _ = cmd.Flags().GetString("replay")
	f.Seed, _ = cmd.Flags().GetInt64("seed")
	f.LogCount, _ = cmd.Flags().GetInt("log-count")

	f.Criteria = selection.Criteria{
		IncludeGroups:   selection.SplitList(includeGroup),
		ExcludeGroups:   selection.SplitList(excludeGroup),
		IncludeCommands: selection.SplitList(includeCommand),
		ExcludeCommands: selection.SplitList(excludeCommand),
	}

	if err := f.validate(); err != nil {
		return nil, err
	}
	return f, nil
}

// validate checks the flag combinations. The total timeout checks are
// skipped for a resumed run, whose deadline comes from --expire-time.
func (f *runFlags) validate() error {
	if f.RunOnce && f.TotalSet {
		return fmt.Errorf("--run-once and --total-timeout can not be used together")
	}

	if f.EnablementTimeout < 0 {
		return fmt.Errorf("invalid value for --enablement-timeout: %d (must be >= 0)", f.EnablementTimeout)
	}

	if !f.ExpireSet {
		if !f.TotalSet {
			f.TotalTimeout = f.EnablementTimeout
		}
		if f.EnablementTimeout > f.TotalTimeout {
			return fmt.Errorf("--enablement-timeout (%d) must not exceed --total-timeout (%d)", f.EnablementTimeout, f.TotalTimeout)
		}
		if f.TotalTimeout <= 0 {
			return fmt.Errorf("invalid value for --total-timeout: %d (must be > 0)", f.TotalTimeout)
		}
	}

	if f.ReplayFile != "" && !filepath.IsAbs(f.ReplayFile) {
		return fmt.Errorf("--replay requires an absolute path, got %q", f.ReplayFile)
	}

	return nil
}

// resolvePaths makes the workspace absolute and records the working
// directory for the recovery job
func (f *runFlags) resolvePaths() error {
	wd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get working directory: %w", err)
	}
	f.WorkingDir = wd

	if !filepath.IsAbs(f.Workspace) {
		f.Workspace = filepath.Join(wd, f.Workspace)
	}
	f.Workspace = filepath.Clean(f.Workspace)
	return nil
}

// options converts the flags into runner options
func (f *runFlags) options() (runner.Options, error) {
	opts := runner.Options{
		Workspace:         f.Workspace,
		EnablementTimeout: time.Duration(f.EnablementTimeout) * time.Second,
		RunTimeout:        time.Duration(f.TotalTimeout) * time.Second,
		Criteria:          f.Criteria,
		RunOnce:           f.RunOnce,
		DryRun:            f.DryRun,
		Restart:           f.Restart,
		ReplayFile:        f.ReplayFile,
		WorkingDir:        f.WorkingDir,
	}

	if f.ExpireSet {
		expireAt, err := recovery.ParseExpireTime(f.ExpireTime)
		if err != nil {
			return runner.Options{}, err
		}
		opts.ExpireAt = expireAt
	}

	return opts, nil
}

func runChaos(cmd *cobra.Command, args []string) error {
	flags, err := parseRunFlags(cmd, args)
	if err != nil {
		return err
	}
	if err := flags.resolvePaths(); err != nil {
		return err
	}

	opts, err := flags.options()
	if err != nil {
		return err
	}

	// The results log lives inside the workspace, so check it first
	if info, err := os.Stat(flags.Workspace); err != nil || !info.IsDir() {
		return fmt.Errorf("%w: %s", runner.ErrWorkspace, flags.Workspace)
	}

	cfg, err := loadConfig(flags.Workspace)
	if err != nil {
		return err
	}
	if flags.LogCount >= 0 {
		cfg.Framework.LogCount = flags.LogCount
	}

	resultsLog, err := reporting.OpenResultsLog(flags.Workspace, cfg.Framework.LogCount)
	if err != nil {
		return err
	}
	defer resultsLog.Close()

	logCfg, err := loggerConfig(cfg)
	if err != nil {
		return err
	}
	logCfg.File = resultsLog
	logger := reporting.NewLogger(logCfg)
	reporting.InitGlobalLogger(logCfg)

	logger.Debug("Chaos Runner starting", "version", version, "workspace", flags.Workspace)

	// Build the catalog
	var docker container.DockerAPI
	if len(cfg.Container.Targets) > 0 {
		dockerClient, err := container.NewDockerClient()
		if err != nil {
			return fmt.Errorf("failed to create docker client: %w", err)
		}
		defer dockerClient.Close()
		docker = dockerClient
	}
	catalog := chaos.NewCatalog(buildProviders(cfg, shell.NewHostExecutor(), docker)...)

	recorder, err := replay.NewRecorder(filepath.Join(flags.Workspace, reporting.LogDir, replay.RunListFile))
	if err != nil {
		return err
	}
	defer recorder.Close()

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	seed := flags.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewPCG(uint64(seed), uint64(seed>>32)))
	logger.Debug("Random seed", "seed", seed)

	coordinator := cleanup.New(logger.GetZerologLogger())
	r := runner.New(runner.Deps{
		Catalog:     catalog,
		Lock:        lock.New(flags.Workspace),
		Job:         recovery.NewSystemdJob(cfg.Recovery.UnitDir, cfg.Recovery.WantsDir, cfg.Recovery.UnitName),
		Logger:      logger,
		Cleanup:     coordinator,
		Metrics:     m,
		MetricsFile: cfg.Metrics.Textfile,
		Recorder:    recorder,
		Intn:        rng.IntN,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Stop requests: SIGINT/SIGTERM or the workspace stop file
	emergencyCtrl := emergency.New(emergency.Config{
		StopFile:             cfg.Emergency.StopFile,
		PollInterval:         cfg.Emergency.PollInterval,
		EnableSignalHandlers: true,
	})
	if err := emergencyCtrl.RemoveStopFile(); err != nil {
		logger.Warn("Failed to remove stale stop file", "error", err)
	}
	emergencyCtrl.OnStop(r.RequestStop)
	emergencyCtrl.Start(ctx)

	executable, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to resolve executable path: %w", err)
	}
	opts.Executable = executable
	opts.Args = os.Args[1:]

	startTime := time.Now()
	result, runErr := r.Run(ctx, opts)
	endTime := time.Now()

	report := buildReport(flags, result, runErr, startTime, endTime)
	report.CleanupSummary = coordinator.GetSummary()
	report.CleanupLog = reporting.ConvertAuditLog(coordinator.GetAuditLog())

	storage, err := reporting.NewStorage(cfg.Reporting.OutputDir, cfg.Reporting.KeepLastN, logger)
	if err != nil {
		logger.Warn("Failed to create report storage", "error", err)
	} else if path, err := storage.SaveReport(report); err != nil {
		logger.Warn("Failed to save report", "error", err)
	} else {
		logger.Debug("Report saved", "path", path, "run_id", report.RunID)
	}

	if runErr != nil {
		logger.Error("Chaos run failed", "error", runErr)
		return runErr
	}
	return nil
}

// buildReport converts a runner result into a stored run report
func buildReport(flags *runFlags, result *runner.Result, runErr error, start, end time.Time) *reporting.RunReport {
	report := &reporting.RunReport{
		RunID:     uuid.New().String(),
		Workspace: flags.Workspace,
		Mode:      reporting.ModeRandom,
		Restart:   flags.Restart,
		DryRun:    flags.DryRun,
		StartTime: start,
		EndTime:   end,
		Duration:  end.Sub(start).Round(time.Millisecond).String(),
		Status:    reporting.StatusFailed,
		Actions:   make([]reporting.ActionRecord, 0),
	}
	if flags.ReplayFile != "" {
		report.Mode = reporting.ModeReplay
	}

	if runErr != nil {
		report.Errors = append(report.Errors, runErr.Error())
	}
	if result == nil {
		return report
	}

	report.Status = runStatus(result)
	report.StopReason = result.StopReason
	report.ExpireAt = result.Expiry
	report.Selection = result.Selection

	var actionErrs []error
	for _, a := range result.Actions {
		record := reporting.ActionRecord{
			Command:           a.Command,
			Group:             a.Group,
			Description:       a.Description,
			EnablementTimeout: int(a.Enablement / time.Second),
			AppliedAt:         a.AppliedAt,
			RevertedAt:        a.RevertedAt,
			Terminal:          a.Terminal,
		}
		if a.Err != nil {
			record.Error = a.Err.Error()
			actionErrs = append(actionErrs, a.Err)
		}
		report.Actions = append(report.Actions, record)
	}
	report.Errors = append(report.Errors, convertErrors(actionErrs)...)

	return report
}

// runStatus maps the runner's terminal state to a report status
func runStatus(result *runner.Result) reporting.RunStatus {
	switch result.State {
	case runner.StateCompleted:
		return reporting.StatusCompleted
	case runner.StateExpired:
		return reporting.StatusExpired
	case runner.StateStopping:
		if n := len(result.Actions); n > 0 {
			last := result.Actions[n-1]
			if last.Terminal && last.Err == nil {
				return reporting.StatusRebooting
			}
		}
		return reporting.StatusStopped
	case runner.StateFailed:
		return reporting.StatusFailed
	default:
		return reporting.StatusRunning
	}
}
