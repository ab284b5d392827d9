package models

import "time"

// LogSeverity is the severity of one execution log entry.
type LogSeverity string

const (
	SeverityInfo  LogSeverity = "info"
	SeverityWarn  LogSeverity = "warn"
	SeverityError LogSeverity = "error"
)

// ExecutionLogEntry is one append-only record of workflow run activity. Entries
// are never mutated or deleted by normal operation; the log is the durable
// trace an operator reads to diagnose failures.
type ExecutionLogEntry struct {
	ID          string         `json:"id"`
	WorkflowID  string         `json:"workflow_id" validate:"required"`
	ExecutionID string         `json:"execution_id,omitempty"`
	NodeID      string         `json:"node_id,omitempty"`
	Severity    LogSeverity    `json:"severity"`
	Message     string         `json:"message"`
	Context     map[string]any `json:"context,omitempty"`
	Timestamp   time.Time      `json:"timestamp"`
}
