// Package approval applies decisions to pending approvals and resumes the
// suspended workflow branch.
package approval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/flowhive/flowhive/pkg/eventbus"
	"github.com/flowhive/flowhive/pkg/events"
	"github.com/flowhive/flowhive/pkg/execlog"
	"github.com/flowhive/flowhive/pkg/models"
	"github.com/flowhive/flowhive/pkg/persistence"
)

var (
	// ErrAlreadyDecided is returned when the approval left the pending state.
	ErrAlreadyDecided = errors.New("approval already decided")

	// ErrExpired is returned when the decision arrives after the timeout.
	ErrExpired = errors.New("approval expired")
)

// Service decides pending approvals. A decision flips the approval record and
// publishes a resume trigger down the approved or rejected branch.
type Service struct {
	approvals persistence.ApprovalStore
	publisher eventbus.EventPublisher
	trail     *execlog.Logger
	logger    *slog.Logger
}

// NewService creates an approval service.
func NewService(approvals persistence.ApprovalStore, publisher eventbus.EventPublisher, trail *execlog.Logger, logger *slog.Logger) *Service {
	return &Service{
		approvals: approvals,
		publisher: publisher,
		trail:     trail,
		logger:    logger.With("module", "approval"),
	}
}

// Decide applies an approve/reject decision to the approval identified by
// token. Expiry is enforced here, at decision time: a late decision marks the
// record expired and fails with ErrExpired instead of resuming the workflow.
func (s *Service) Decide(ctx context.Context, token string, approve bool, decidedBy string) (*models.PendingApproval, error) {
	approval, err := s.approvals.ApprovalByToken(ctx, token)
	if err != nil {
		return nil, err
	}

	if approval.Status != models.ApprovalPending {
		return approval, fmt.Errorf("%w: %s", ErrAlreadyDecided, approval.Status)
	}

	now := time.Now().UTC()

	if approval.ExpiresAt != nil && now.After(*approval.ExpiresAt) {
		approval.Status = models.ApprovalExpired
		approval.UpdatedAt = now

		if err := s.approvals.SaveApproval(ctx, approval); err != nil {
			return nil, fmt.Errorf("failed to expire approval: %w", err)
		}

		return approval, ErrExpired
	}

	branch := models.BranchRejected
	approval.Status = models.ApprovalRejected

	if approve {
		branch = models.BranchApproved
		approval.Status = models.ApprovalApproved
	}

	approval.DecidedBy = decidedBy
	approval.UpdatedAt = now

	if err := s.approvals.SaveApproval(ctx, approval); err != nil {
		return nil, fmt.Errorf("failed to save approval decision: %w", err)
	}

	s.trail.Info(ctx, approval.WorkflowID, approval.ExecutionID, approval.NodeID,
		"Approval decided", map[string]any{"status": approval.Status, "decided_by": decidedBy})

	decided := events.ApprovalDecided{
		BaseEvent:   events.NewBaseEvent(events.ApprovalDecidedEvent, approval.WorkflowID),
		ExecutionID: approval.ExecutionID,
		NodeID:      approval.NodeID,
		Token:       approval.Token,
		Status:      approval.Status,
		DecidedBy:   decidedBy,
	}
	decided.OrganizationID = approval.OrganizationID

	if err := s.publisher.Publish(ctx, approval.WorkflowID, decided); err != nil {
		s.logger.Warn("Failed to publish approval decision", "token", token, "error", err)
	}

	resume := events.WorkflowTriggered{
		BaseEvent:         events.NewBaseEvent(events.WorkflowTriggeredEvent, approval.WorkflowID),
		TriggerNodeID:     approval.NodeID,
		Source:            events.TriggerSourceApproval,
		ResumeExecutionID: approval.ExecutionID,
		ResumeNodeID:      approval.NodeID,
		ResumeBranch:      branch,
		ResumeScope:       approval.Scope,
	}
	resume.OrganizationID = approval.OrganizationID

	if err := s.publisher.Publish(ctx, approval.WorkflowID, resume); err != nil {
		return nil, fmt.Errorf("failed to publish resume trigger: %w", err)
	}

	return approval, nil
}
