// Package persistence provides the data storage abstraction for workflow
// definitions, schedules, execution logs, templates, and pending approvals.
package persistence

import (
	"context"
	"time"

	"github.com/flowhive/flowhive/pkg/models"
)

// WorkflowRepository stores workflow definitions. Deleting a definition
// cascades to its nodes, connections, and variables (exclusively owned) and
// must be followed by schedule cleanup (referential, handled by the scheduler).
type WorkflowRepository interface {
	Workflows(ctx context.Context, organizationID string) ([]*models.WorkflowDefinition, error)
	WorkflowByID(ctx context.Context, id string) (*models.WorkflowDefinition, error)
	SaveWorkflow(ctx context.Context, workflow *models.WorkflowDefinition) error
	DeleteWorkflow(ctx context.Context, id string) error
}

// ScheduleStore stores per-node schedule records. SaveSchedule applies
// optimistic concurrency: the save fails with ErrScheduleVersionConflict when
// the stored record's version differs from the version the caller read.
type ScheduleStore interface {
	SaveSchedule(ctx context.Context, record *models.ScheduleRecord) error
	ScheduleByID(ctx context.Context, id string) (*models.ScheduleRecord, error)
	ScheduleByNodeID(ctx context.Context, nodeID string) (*models.ScheduleRecord, error)
	// DueSchedules returns up to limit active records due at or before the
	// given time and inside their validity window, ordered ascending by
	// NextRunAt. The ordering bounds starvation under a capacity limit.
	DueSchedules(ctx context.Context, before time.Time, limit int) ([]*models.ScheduleRecord, error)
	DeleteSchedule(ctx context.Context, id string) error
	DeleteSchedulesByWorkflowID(ctx context.Context, workflowID string) error
}

// ExecutionLogStore is the append-only execution trail. AppendLogEntry is the
// sole write path; entries are never mutated or deleted by normal operation.
type ExecutionLogStore interface {
	AppendLogEntry(ctx context.Context, entry *models.ExecutionLogEntry) error
	LogEntries(ctx context.Context, workflowID string, severity models.LogSeverity, limit int) ([]*models.ExecutionLogEntry, error)
}

// TemplateStore stores organization-owned action templates. System templates
// (reserved id prefix) are resolved by the template resolver before this store
// is consulted.
type TemplateStore interface {
	TemplateByID(ctx context.Context, organizationID, id string) (*models.ActionTemplate, error)
	SaveTemplate(ctx context.Context, template *models.ActionTemplate) error
}

// ApprovalStore stores suspended branches waiting on approval decisions.
type ApprovalStore interface {
	SaveApproval(ctx context.Context, approval *models.PendingApproval) error
	ApprovalByToken(ctx context.Context, token string) (*models.PendingApproval, error)
	PendingApprovals(ctx context.Context, workflowID string) ([]*models.PendingApproval, error)
}

// Persistence is the full durable store consumed by the scheduler, dispatcher,
// and executor.
type Persistence interface {
	WorkflowRepository
	ScheduleStore
	ExecutionLogStore
	TemplateStore
	ApprovalStore

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}
