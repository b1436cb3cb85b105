package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jihwankim/chaos-monkey/pkg/reporting"
)

var reportCmd = &cobra.Command{
	Use:   "report WORKSPACE [RUN_ID]",
	Args:  cobra.RangeArgs(1, 2),
	Short: "Show stored run reports",
	Long: `Without RUN_ID, lists the stored reports of WORKSPACE, newest first.
With RUN_ID (a unique prefix of it, or "latest"), prints that report.`,
	RunE: showReports,
}

func init() {
	reportCmd.Flags().String("format", "text", "output format (text, json)")
}

func showReports(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")

	cfg, err := loadConfig(args[0])
	if err != nil {
		return err
	}

	storage, err := reporting.NewStorage(cfg.Reporting.OutputDir, cfg.Reporting.KeepLastN, reporting.Nop())
	if err != nil {
		return fmt.Errorf("failed to open report storage: %w", err)
	}

	formatter := reporting.NewFormatter(os.Stdout)

	if len(args) == 1 {
		summaries, err := storage.ListReports()
		if err != nil {
			return err
		}
		return formatter.WriteSummaries(summaries)
	}

	report, err := storage.FindReport(args[1])
	if err != nil {
		return err
	}
	return formatter.WriteReport(report, reporting.ReportFormat(format))
}
