package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	verbose bool
	version = "dev" // Will be set by build flags
)

var rootCmd = &cobra.Command{
	Use:   "chaos-runner",
	Short: "Chaos monkey for a single host",
	Long: `Chaos Runner injects controlled failures into the machine it runs on:
firewall partitions, traffic degradation, process and container kills, and
host restarts. Every reversible fault is undone after its enablement timeout,
and a run interrupted by a restart resumes automatically after boot.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is WORKSPACE/chaos_runner.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	// Add subcommands
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(reportCmd)
}

// Commands are defined in separate files:
// - runCmd in run.go
// - listCmd in list.go
// - stopCmd in stop.go
// - reportCmd in report.go

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
