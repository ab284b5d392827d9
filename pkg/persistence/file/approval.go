package file

import (
	"context"
	"time"

	"github.com/flowhive/flowhive/pkg/models"
	"github.com/flowhive/flowhive/pkg/persistence"
)

// SaveApproval creates or updates a pending approval.
func (fp *Persistence) SaveApproval(_ context.Context, approval *models.PendingApproval) error {
	fp.mu.Lock()
	defer fp.mu.Unlock()

	now := time.Now().UTC()
	if approval.CreatedAt.IsZero() {
		approval.CreatedAt = now
	}

	approval.UpdatedAt = now

	raw, err := encode(approval)
	if err != nil {
		return err
	}

	fp.approvals[approval.Token] = raw

	return fp.flush("approvals.json", fp.approvals)
}

// ApprovalByToken retrieves a pending approval by its token.
func (fp *Persistence) ApprovalByToken(_ context.Context, token string) (*models.PendingApproval, error) {
	fp.mu.RLock()
	defer fp.mu.RUnlock()

	raw, exists := fp.approvals[token]
	if !exists {
		return nil, persistence.ErrApprovalNotFound
	}

	return decode[models.PendingApproval](raw)
}

// PendingApprovals returns all approvals still pending for a workflow.
func (fp *Persistence) PendingApprovals(_ context.Context, workflowID string) ([]*models.PendingApproval, error) {
	fp.mu.RLock()
	defer fp.mu.RUnlock()

	var pending []*models.PendingApproval

	for _, raw := range fp.approvals {
		approval, err := decode[models.PendingApproval](raw)
		if err != nil {
			return nil, err
		}

		if approval.WorkflowID == workflowID && approval.Status == models.ApprovalPending {
			pending = append(pending, approval)
		}
	}

	return pending, nil
}
