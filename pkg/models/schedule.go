package models

import (
	"errors"
	"time"
)

// ScheduleRecord is the durable next-fire-time state for one schedulable node.
// At most one record exists per node id. NextRunAt is precomputed so the
// scheduler can query due records without evaluating every cron expression.
type ScheduleRecord struct {
	ID         string `json:"id"          validate:"required"`
	WorkflowID string `json:"workflow_id" validate:"required"`
	NodeID     string `json:"node_id"     validate:"required"`

	Cron      string `json:"cron,omitempty"`
	Frequency string `json:"frequency,omitempty"`
	Timezone  string `json:"timezone"`

	StartAt *time.Time `json:"start_at,omitempty"`
	EndAt   *time.Time `json:"end_at,omitempty"`

	IsActive  bool       `json:"is_active"`
	LastRunAt *time.Time `json:"last_run_at,omitempty"`
	NextRunAt *time.Time `json:"next_run_at,omitempty"`

	// Metadata stashes scheduler bookkeeping: retry counters and continuation
	// payloads for delay/approval resumption.
	Metadata map[string]any `json:"metadata,omitempty"`

	// Version guards read-modify-write updates. Stores reject a save whose
	// version does not match the stored record.
	Version int64 `json:"version"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Metadata keys used by the scheduler.
const (
	MetaRetryCount = "retry_count"
	MetaLastError  = "last_error"

	// Continuation records (delay resumption, approval timeouts) are one-shot:
	// the scheduler fires them once and deletes them.
	MetaKind             = "kind"
	MetaKindContinuation = "continuation"
	MetaResumeNodeID     = "resume_node_id"
	MetaResumeBranch     = "resume_branch"
	MetaResumeScope      = "resume_scope"
	MetaExecutionID      = "execution_id"
)

// ErrInvalidSchedule is returned when schedule record validation fails.
var ErrInvalidSchedule = errors.New("invalid schedule record")

// IsDue reports whether the record should fire at the given time: active, next
// run reached, and inside its validity window.
func (s *ScheduleRecord) IsDue(now time.Time) bool {
	if !s.IsActive || s.NextRunAt == nil {
		return false
	}

	if s.NextRunAt.After(now) {
		return false
	}

	return s.InWindow(now)
}

// InWindow reports whether now falls inside the record's [StartAt, EndAt] window.
func (s *ScheduleRecord) InWindow(now time.Time) bool {
	if s.StartAt != nil && now.Before(*s.StartAt) {
		return false
	}

	if s.EndAt != nil && now.After(*s.EndAt) {
		return false
	}

	return true
}

// RetryCount reads the retry counter carried in metadata.
func (s *ScheduleRecord) RetryCount() int {
	if s.Metadata == nil {
		return 0
	}

	switch v := s.Metadata[MetaRetryCount].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		// JSON round-trips numbers as float64.
		return int(v)
	default:
		return 0
	}
}

// IsContinuation reports whether this is a one-shot continuation record.
func (s *ScheduleRecord) IsContinuation() bool {
	if s.Metadata == nil {
		return false
	}

	kind, _ := s.Metadata[MetaKind].(string)

	return kind == MetaKindContinuation
}

// Validate checks the record's required fields and that it carries a firing rule.
func (s *ScheduleRecord) Validate() error {
	if s.ID == "" || s.WorkflowID == "" || s.NodeID == "" {
		return ErrInvalidSchedule
	}

	if s.Cron == "" && s.Frequency == "" && !s.IsContinuation() {
		return ErrInvalidSchedule
	}

	return nil
}
