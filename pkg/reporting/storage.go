package reporting

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const (
	// ReportDir is the report directory inside a workspace
	ReportDir = "reports"

	// LatestRef selects the most recent report in FindReport
	LatestRef = "latest"

	reportPrefix = "run-"
	reportExt    = ".json"

	// UTC so that file name order is start time order
	reportStamp = "20060102T150405Z"
)

// ErrReportNotFound means no stored report matches a reference
var ErrReportNotFound = errors.New("report not found")

// Storage keeps one JSON file per run, named run-<start>-<run id>.json
type Storage struct {
	dir    string
	keep   int
	logger *Logger
}

// NewStorage creates dir if needed. keep > 0 bounds the number of stored
// reports; older ones are removed after every save.
func NewStorage(dir string, keep int, logger *Logger) (*Storage, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create report directory: %w", err)
	}
	if logger == nil {
		logger = Nop()
	}
	return &Storage{dir: dir, keep: keep, logger: logger}, nil
}

// Dir returns the report directory
func (s *Storage) Dir() string {
	return s.dir
}

// SaveReport writes report and returns its path. The file is written under
// a temporary name and renamed, since a run that ends in a host restart may
// be cut off at any point.
func (s *Storage) SaveReport(report *RunReport) (string, error) {
	if report.RunID == "" {
		return "", errors.New("report has no run ID")
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal report: %w", err)
	}

	path := filepath.Join(s.dir, reportName(report))
	if err := writeAtomic(s.dir, path, data); err != nil {
		return "", err
	}
	s.logger.Info("Run report saved", "path", path, "status", string(report.Status))

	s.prune()
	return path, nil
}

func reportName(report *RunReport) string {
	return reportPrefix + report.StartTime.UTC().Format(reportStamp) + "-" + report.RunID + reportExt
}

// runIDFromName is the inverse of reportName, empty for foreign files
func runIDFromName(name string) string {
	if !strings.HasPrefix(name, reportPrefix) || !strings.HasSuffix(name, reportExt) {
		return ""
	}
	rest := strings.TrimSuffix(strings.TrimPrefix(name, reportPrefix), reportExt)
	if len(rest) <= len(reportStamp)+1 || rest[len(reportStamp)] != '-' {
		return ""
	}
	if _, err := time.Parse(reportStamp, rest[:len(reportStamp)]); err != nil {
		return ""
	}
	return rest[len(reportStamp)+1:]
}

func writeAtomic(dir, path string, data []byte) error {
	tmp, err := os.CreateTemp(dir, ".run-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write report file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync report file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close report file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return fmt.Errorf("failed to set report permissions: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to store report file: %w", err)
	}
	return nil
}

// LoadReport reads a report file
func (s *Storage) LoadReport(path string) (*RunReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read report file: %w", err)
	}

	var report RunReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("failed to parse report %s: %w", path, err)
	}
	return &report, nil
}

// files returns report file names, newest first. Ordering uses the names
// alone, so unreadable reports are still ordered and pruned.
func (s *Storage) files() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read report directory: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.Type().IsRegular() && runIDFromName(entry.Name()) != "" {
			names = append(names, entry.Name())
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(names)))
	return names, nil
}

// ListReports summarizes the stored reports, newest first. Unreadable
// reports are skipped with a warning.
func (s *Storage) ListReports() ([]ReportSummary, error) {
	names, err := s.files()
	if err != nil {
		return nil, err
	}

	summaries := make([]ReportSummary, 0, len(names))
	for _, name := range names {
		path := filepath.Join(s.dir, name)
		report, err := s.LoadReport(path)
		if err != nil {
			s.logger.Warn("Skipping unreadable report", "path", path, "error", err)
			continue
		}
		summaries = append(summaries, summarize(report, path))
	}
	return summaries, nil
}

func summarize(report *RunReport, path string) ReportSummary {
	return ReportSummary{
		RunID:     report.RunID,
		Mode:      report.Mode,
		Restart:   report.Restart,
		StartTime: report.StartTime,
		Duration:  report.Duration,
		Status:    report.Status,
		Actions:   len(report.Actions),
		Filepath:  path,
	}
}

// FindReport resolves ref to a report: LatestRef, a full run ID or a
// unique run ID prefix
func (s *Storage) FindReport(ref string) (*RunReport, error) {
	if ref == "" {
		return nil, errors.New("empty run ID")
	}

	names, err := s.files()
	if err != nil {
		return nil, err
	}

	if ref == LatestRef {
		if len(names) == 0 {
			return nil, fmt.Errorf("%w: no runs recorded", ErrReportNotFound)
		}
		return s.LoadReport(filepath.Join(s.dir, names[0]))
	}

	var matches []string
	for _, name := range names {
		id := runIDFromName(name)
		if id == ref {
			return s.LoadReport(filepath.Join(s.dir, name))
		}
		if strings.HasPrefix(id, ref) {
			matches = append(matches, name)
		}
	}

	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("%w: run ID %s", ErrReportNotFound, ref)
	case 1:
		return s.LoadReport(filepath.Join(s.dir, matches[0]))
	default:
		return nil, fmt.Errorf("ambiguous run ID prefix %s matches %d runs", ref, len(matches))
	}
}

// prune removes all but the newest keep reports
func (s *Storage) prune() {
	if s.keep <= 0 {
		return
	}

	names, err := s.files()
	if err != nil {
		s.logger.Warn("Failed to prune reports", "error", err)
		return
	}
	if len(names) <= s.keep {
		return
	}

	for _, name := range names[s.keep:] {
		path := filepath.Join(s.dir, name)
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("Failed to remove old report", "path", path, "error", err)
			continue
		}
		s.logger.Debug("Removed old report", "path", path)
	}
}

// ReportSummary is one line of the report listing
type ReportSummary struct {
	RunID     string    `json:"run_id"`
	Mode      RunMode   `json:"mode"`
	Restart   bool      `json:"restart"`
	StartTime time.Time `json:"start_time"`
	Duration  string    `json:"duration"`
	Status    RunStatus `json:"status"`
	Actions   int       `json:"actions"`
	Filepath  string    `json:"filepath"`
}
