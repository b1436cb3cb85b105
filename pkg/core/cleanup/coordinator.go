package cleanup

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/jihwankim/chaos-monkey/pkg/chaos"
)

// Coordinator reverts applied chaos actions and keeps an audit log of
// every undo it performed
type Coordinator struct {
	logger zerolog.Logger
	now    func() time.Time

	mu       sync.Mutex
	pending  []*chaos.ActionSpec
	auditLog []AuditEntry
}

// AuditEntry represents a cleanup action
type AuditEntry struct {
	Timestamp time.Time
	Action    string
	Group     string
	Success   bool
	Error     error
	Details   string
}

// New creates a new cleanup coordinator
func New(logger zerolog.Logger) *Coordinator {
	return &Coordinator{
		logger:   logger,
		now:      time.Now,
		pending:  make([]*chaos.ActionSpec, 0),
		auditLog: make([]AuditEntry, 0),
	}
}

// Track records that action has been applied and must be reverted
func (c *Coordinator) Track(action *chaos.ActionSpec) {
	if !action.Reversible() {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = append(c.pending, action)
}

// Pending returns the applied actions that were not reverted yet, oldest first
func (c *Coordinator) Pending() []*chaos.ActionSpec {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*chaos.ActionSpec, len(c.pending))
	copy(out, c.pending)
	return out
}

// Revert undoes a single action. One-shot actions are skipped without an
// audit entry. The undo runs even when ctx is already cancelled, so a stop
// request never leaves the host degraded.
func (c *Coordinator) Revert(ctx context.Context, action *chaos.ActionSpec) error {
	c.untrack(action)

	if !action.Reversible() {
		return nil
	}

	c.logger.Debug().Str("command", action.Command).Str("group", action.Group).Msg("Reverting chaos")

	err := action.Revert(context.WithoutCancel(ctx))
	if err != nil {
		c.logger.Error().
			Err(err).
			Str("command", action.Command).
			Str("group", action.Group).
			Msg("Failed to revert chaos")
		c.logAudit(action, "Revert failed", err)
		return fmt.Errorf("failed to revert %s: %w", action.Command, err)
	}

	c.logAudit(action, "Reverted", nil)
	return nil
}

// RevertAll undoes every tracked action in reverse order of application
func (c *Coordinator) RevertAll(ctx context.Context) error {
	pending := c.Pending()
	if len(pending) == 0 {
		return nil
	}

	c.logger.Info().Int("count", len(pending)).Msg("Reverting outstanding chaos")

	var firstErr error
	failed := 0
	for i := len(pending) - 1; i >= 0; i-- {
		if err := c.Revert(ctx, pending[i]); err != nil {
			failed++
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	if firstErr != nil {
		return fmt.Errorf("cleanup completed with %d errors: %w", failed, firstErr)
	}
	return nil
}

func (c *Coordinator) untrack(action *chaos.ActionSpec) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.pending) - 1; i >= 0; i-- {
		if c.pending[i] == action {
			c.pending = append(c.pending[:i], c.pending[i+1:]...)
			return
		}
	}
}

// logAudit adds an entry to the audit log
func (c *Coordinator) logAudit(action *chaos.ActionSpec, details string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.auditLog = append(c.auditLog, AuditEntry{
		Timestamp: c.now(),
		Action:    action.Command,
		Group:     action.Group,
		Success:   err == nil,
		Error:     err,
		Details:   details,
	})
}

// GetAuditLog returns the complete audit log
func (c *Coordinator) GetAuditLog() []AuditEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]AuditEntry, len(c.auditLog))
	copy(out, c.auditLog)
	return out
}

// GetSummary returns a summary of cleanup actions
func (c *Coordinator) GetSummary() CleanupSummary {
	c.mu.Lock()
	defer c.mu.Unlock()

	summary := CleanupSummary{TotalActions: len(c.auditLog)}
	for _, entry := range c.auditLog {
		if entry.Success {
			summary.Succeeded++
		} else {
			summary.Failed++
		}
	}
	return summary
}

// CleanupSummary contains summary statistics
type CleanupSummary struct {
	TotalActions int `json:"total_actions"`
	Succeeded    int `json:"succeeded"`
	Failed       int `json:"failed"`
}

// String returns a string representation of the summary
func (s CleanupSummary) String() string {
	return fmt.Sprintf("Cleanup Summary: %d total actions, %d succeeded, %d failed",
		s.TotalActions, s.Succeeded, s.Failed)
}
