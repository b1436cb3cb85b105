package reporting

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// ReportFormat represents the report output format
type ReportFormat string

const (
	ReportFormatText ReportFormat = "text"
	ReportFormatJSON ReportFormat = "json"
)

// Formatter renders run reports for humans
type Formatter struct {
	out io.Writer
}

// NewFormatter creates a formatter writing to out
func NewFormatter(out io.Writer) *Formatter {
	return &Formatter{out: out}
}

// WriteReport renders a single report in the given format
func (f *Formatter) WriteReport(report *RunReport, format ReportFormat) error {
	switch format {
	case ReportFormatText, "":
		return f.writeText(report)
	case ReportFormatJSON:
		enc := json.NewEncoder(f.out)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	default:
		return fmt.Errorf("unsupported report format: %s", format)
	}
}

func (f *Formatter) writeText(report *RunReport) error {
	var buf bytes.Buffer

	buf.WriteString(strings.Repeat("=", 80) + "\n")
	buf.WriteString("   CHAOS RUN REPORT\n")
	buf.WriteString(strings.Repeat("=", 80) + "\n\n")

	buf.WriteString("RUN SUMMARY\n")
	buf.WriteString(strings.Repeat("-", 80) + "\n")
	buf.WriteString(fmt.Sprintf("Status:       %s\n", strings.ToUpper(string(report.Status))))
	buf.WriteString(fmt.Sprintf("Run ID:       %s\n", report.RunID))
	buf.WriteString(fmt.Sprintf("Workspace:    %s\n", report.Workspace))
	buf.WriteString(fmt.Sprintf("Mode:         %s", report.Mode))
	if report.Restart {
		buf.WriteString(" (resumed after reboot)")
	}
	if report.DryRun {
		buf.WriteString(" (dry run)")
	}
	buf.WriteString("\n")
	buf.WriteString(fmt.Sprintf("Start Time:   %s\n", report.StartTime.Format("2006-01-02 15:04:05")))
	buf.WriteString(fmt.Sprintf("End Time:     %s\n", report.EndTime.Format("2006-01-02 15:04:05")))
	buf.WriteString(fmt.Sprintf("Duration:     %s\n", report.Duration))
	if report.StopReason != "" {
		buf.WriteString(fmt.Sprintf("Stop Reason:  %s\n", report.StopReason))
	}
	buf.WriteString("\n")

	if len(report.Actions) > 0 {
		buf.WriteString("ACTIONS\n")
		buf.WriteString(strings.Repeat("-", 80) + "\n")
		for i, action := range report.Actions {
			status := "OK"
			if action.Error != "" {
				status = "FAILED"
			}
			buf.WriteString(fmt.Sprintf("%d. [%s] %s/%s\n", i+1, status, action.Group, action.Command))
			if action.Description != "" {
				buf.WriteString(fmt.Sprintf("   Description: %s\n", action.Description))
			}
			buf.WriteString(fmt.Sprintf("   Applied:     %s\n", action.AppliedAt.Format("15:04:05")))
			if !action.RevertedAt.IsZero() {
				buf.WriteString(fmt.Sprintf("   Reverted:    %s\n", action.RevertedAt.Format("15:04:05")))
			}
			buf.WriteString(fmt.Sprintf("   Enabled for: %ds\n", action.EnablementTimeout))
			if action.Terminal {
				buf.WriteString("   Terminal:    host restart\n")
			}
			if action.Error != "" {
				buf.WriteString(fmt.Sprintf("   Error:       %s\n", action.Error))
			}
			buf.WriteString("\n")
		}
	}

	buf.WriteString("CLEANUP SUMMARY\n")
	buf.WriteString(strings.Repeat("-", 80) + "\n")
	buf.WriteString(fmt.Sprintf("Total Actions: %d\n", report.CleanupSummary.TotalActions))
	buf.WriteString(fmt.Sprintf("Succeeded:     %d\n", report.CleanupSummary.Succeeded))
	buf.WriteString(fmt.Sprintf("Failed:        %d\n", report.CleanupSummary.Failed))
	buf.WriteString("\n")

	if len(report.Errors) > 0 {
		buf.WriteString("ERRORS\n")
		buf.WriteString(strings.Repeat("-", 80) + "\n")
		for i, err := range report.Errors {
			buf.WriteString(fmt.Sprintf("%d. %s\n", i+1, err))
		}
		buf.WriteString("\n")
	}

	buf.WriteString(strings.Repeat("=", 80) + "\n")

	_, err := f.out.Write(buf.Bytes())
	return err
}

// WriteSummaries renders a table of stored reports
func (f *Formatter) WriteSummaries(summaries []ReportSummary) error {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("%-36s %-20s %-7s %-10s %-8s %s\n",
		"RUN ID", "STARTED", "MODE", "STATUS", "ACTIONS", "DURATION"))
	for _, s := range summaries {
		mode := string(s.Mode)
		if s.Restart {
			mode += "*"
		}
		buf.WriteString(fmt.Sprintf("%-36s %-20s %-7s %-10s %-8d %s\n",
			s.RunID,
			s.StartTime.Format("2006-01-02 15:04:05"),
			mode,
			s.Status,
			s.Actions,
			s.Duration,
		))
	}

	_, err := f.out.Write(buf.Bytes())
	return err
}
