package main

import (
	"fmt"
	"os"

	"github.com/jihwankim/chaos-monkey/pkg/chaos"
	"github.com/jihwankim/chaos-monkey/pkg/config"
	"github.com/jihwankim/chaos-monkey/pkg/injection/container"
	"github.com/jihwankim/chaos-monkey/pkg/injection/network"
	"github.com/jihwankim/chaos-monkey/pkg/injection/process"
	"github.com/jihwankim/chaos-monkey/pkg/injection/shell"
	"github.com/jihwankim/chaos-monkey/pkg/reporting"
)

// loadConfig loads --config, or the workspace config file when present,
// falling back to defaults
func loadConfig(workspace string) (*config.Config, error) {
	cfg, err := config.LoadForWorkspace(cfgFile, workspace)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loggerConfig derives logger settings from the config and --verbose
func loggerConfig(cfg *config.Config) (reporting.LoggerConfig, error) {
	level, err := reporting.ParseLogLevel(cfg.Framework.LogLevel)
	if err != nil {
		return reporting.LoggerConfig{}, err
	}
	if verbose {
		level = reporting.LogLevelDebug
	}
	return reporting.LoggerConfig{
		Level:  level,
		Format: reporting.LogFormat(cfg.Framework.LogFormat),
		Output: os.Stdout,
	}, nil
}

// buildProviders wires the chaos families enabled by cfg. The container
// family is only offered when targets are configured.
func buildProviders(cfg *config.Config, executor shell.Executor, docker container.DockerAPI) []chaos.Provider {
	providers := []chaos.Provider{
		network.New(executor, network.Params{
			Device:          cfg.Network.Device,
			StateServerPort: cfg.Network.StateServerPort,
			APIServerPort:   cfg.Network.APIServerPort,
			SyslogPort:      cfg.Network.SyslogPort,
		}),
		process.New(executor, process.Params{
			Targets:       cfg.Process.Targets,
			Signal:        cfg.Process.Signal,
			RebootCommand: cfg.Process.RebootCommand,
		}),
	}

	if len(cfg.Container.Targets) > 0 {
		params := container.DefaultParams()
		params.Targets = cfg.Container.Targets
		params.Signal = cfg.Container.Signal
		params.StopTimeout = cfg.Container.StopTimeout
		params.StartTimeout = cfg.Container.StartTimeout
		providers = append(providers, container.New(docker, params))
	}

	return providers
}

// convertErrors converts error slice to string slice
func convertErrors(errs []error) []string {
	result := make([]string, 0, len(errs))
	for _, err := range errs {
		if err != nil {
			result = append(result, err.Error())
		}
	}
	return result
}
