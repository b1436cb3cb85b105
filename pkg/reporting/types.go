package reporting

import (
	"time"

	"github.com/jihwankim/chaos-monkey/pkg/core/cleanup"
)

// RunReport represents a complete chaos run
type RunReport struct {
	// Run metadata
	RunID     string    `json:"run_id"`
	Workspace string    `json:"workspace"`
	Mode      RunMode   `json:"mode"`
	Restart   bool      `json:"restart"`
	DryRun    bool      `json:"dry_run"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Duration  string    `json:"duration"`
	ExpireAt  time.Time `json:"expire_at,omitempty"`

	// Run result
	Status     RunStatus `json:"status"`
	StopReason string    `json:"stop_reason,omitempty"`

	// Selection the run drew from
	Selection []string `json:"selection,omitempty"`

	// Actions executed in order
	Actions []ActionRecord `json:"actions"`

	// Cleanup audit
	CleanupSummary cleanup.CleanupSummary `json:"cleanup_summary"`
	CleanupLog     []CleanupRecord        `json:"cleanup_log,omitempty"`

	// Errors encountered
	Errors []string `json:"errors,omitempty"`
}

// RunMode is how commands were chosen
type RunMode string

const (
	ModeRandom RunMode = "random"
	ModeReplay RunMode = "replay"
)

// RunStatus represents the outcome of a run
type RunStatus string

const (
	StatusRunning   RunStatus = "running"
	StatusCompleted RunStatus = "completed"
	StatusExpired   RunStatus = "expired"
	StatusStopped   RunStatus = "stopped"
	StatusRebooting RunStatus = "rebooting"
	StatusFailed    RunStatus = "failed"
)

// ActionRecord describes one executed chaos command
type ActionRecord struct {
	Command           string    `json:"command"`
	Group             string    `json:"group"`
	Description       string    `json:"description,omitempty"`
	EnablementTimeout int       `json:"enablement_timeout"`
	AppliedAt         time.Time `json:"applied_at"`
	RevertedAt        time.Time `json:"reverted_at,omitempty"`
	Terminal          bool      `json:"terminal,omitempty"`
	Error             string    `json:"error,omitempty"`
}

// CleanupRecord is the serializable form of a cleanup audit entry
type CleanupRecord struct {
	Timestamp time.Time `json:"timestamp"`
	Action    string    `json:"action"`
	Group     string    `json:"group"`
	Success   bool      `json:"success"`
	Error     string    `json:"error,omitempty"`
	Details   string    `json:"details"`
}

// ConvertAuditLog converts the cleanup coordinator audit log for a report
func ConvertAuditLog(entries []cleanup.AuditEntry) []CleanupRecord {
	records := make([]CleanupRecord, 0, len(entries))
	for _, e := range entries {
		r := CleanupRecord{
			Timestamp: e.Timestamp,
			Action:    e.Action,
			Group:     e.Group,
			Success:   e.Success,
			Details:   e.Details,
		}
		if e.Error != nil {
			r.Error = e.Error.Error()
		}
		records = append(records, r)
	}
	return records
}
