package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jihwankim/chaos-monkey/pkg/emergency"
)

var stopCmd = &cobra.Command{
	Use:   "stop WORKSPACE",
	Args:  cobra.ExactArgs(1),
	Short: "Ask a running chaos runner to stop",
	Long: `Creates the stop file watched by the runner of WORKSPACE. The runner
finishes the current command, reverts it and exits.`,
	RunE: stopRunner,
}

func stopRunner(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(args[0])
	if err != nil {
		return err
	}

	ctrl := emergency.New(emergency.Config{StopFile: cfg.Emergency.StopFile})
	if err := ctrl.CreateStopFile(); err != nil {
		return err
	}

	fmt.Printf("Stop requested: %s\n", ctrl.GetStopFilePath())
	return nil
}
