package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/flowhive/flowhive/pkg/models"
	"github.com/flowhive/flowhive/pkg/persistence"
)

// SaveApproval creates or updates a pending approval.
func (p *Persistence) SaveApproval(ctx context.Context, approval *models.PendingApproval) error {
	now := time.Now().UTC()
	if approval.CreatedAt.IsZero() {
		approval.CreatedAt = now
	}

	approval.UpdatedAt = now

	approvers, err := json.Marshal(approval.Approvers)
	if err != nil {
		return fmt.Errorf("failed to marshal approvers: %w", err)
	}

	scope, err := json.Marshal(approval.Scope)
	if err != nil {
		return fmt.Errorf("failed to marshal scope: %w", err)
	}

	query := `
		INSERT INTO pending_approvals (
			token, workflow_id, organization_id, execution_id, node_id,
			approvers, scope, status, decided_by, expires_at, created_at, updated_at
		) VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8, NULLIF($9, ''), $10, $11, $12)
		ON CONFLICT (token) DO UPDATE SET
			status = EXCLUDED.status,
			decided_by = EXCLUDED.decided_by,
			updated_at = EXCLUDED.updated_at
	`

	_, err = p.db.ExecContext(ctx, query,
		approval.Token, approval.WorkflowID, approval.OrganizationID, approval.ExecutionID,
		approval.NodeID, approvers, scope, approval.Status, approval.DecidedBy,
		approval.ExpiresAt, approval.CreatedAt, approval.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save approval: %w", err)
	}

	return nil
}

// ApprovalByToken retrieves a pending approval by its token.
func (p *Persistence) ApprovalByToken(ctx context.Context, token string) (*models.PendingApproval, error) {
	query := approvalSelect + ` WHERE token = $1`

	approval, err := scanApproval(p.db.QueryRowContext(ctx, query, token))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrApprovalNotFound
		}

		return nil, fmt.Errorf("failed to scan approval: %w", err)
	}

	return approval, nil
}

// PendingApprovals returns all approvals still pending for a workflow.
func (p *Persistence) PendingApprovals(ctx context.Context, workflowID string) ([]*models.PendingApproval, error) {
	query := approvalSelect + ` WHERE workflow_id = $1 AND status = 'pending' ORDER BY created_at ASC`

	rows, err := p.db.QueryContext(ctx, query, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to query approvals: %w", err)
	}

	defer func() {
		if err := rows.Close(); err != nil {
			p.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	approvals := make([]*models.PendingApproval, 0)

	for rows.Next() {
		approval, err := scanApproval(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan approval: %w", err)
		}

		approvals = append(approvals, approval)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating approvals: %w", err)
	}

	return approvals, nil
}

const approvalSelect = `
	SELECT
		token
	  , workflow_id
	  , organization_id
	  , COALESCE(execution_id, '')
	  , node_id
	  , approvers
	  , scope
	  , status
	  , COALESCE(decided_by, '')
	  , expires_at
	  , created_at
	  , updated_at
	FROM pending_approvals
`

func scanApproval(row rowScanner) (*models.PendingApproval, error) {
	var (
		approval  models.PendingApproval
		approvers []byte
		scope     []byte
		expiresAt sql.NullTime
	)

	err := row.Scan(
		&approval.Token, &approval.WorkflowID, &approval.OrganizationID,
		&approval.ExecutionID, &approval.NodeID, &approvers, &scope,
		&approval.Status, &approval.DecidedBy, &expiresAt,
		&approval.CreatedAt, &approval.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(approvers, &approval.Approvers); err != nil {
		return nil, fmt.Errorf("failed to unmarshal approvers: %w", err)
	}

	if len(scope) > 0 {
		if err := json.Unmarshal(scope, &approval.Scope); err != nil {
			return nil, fmt.Errorf("failed to unmarshal scope: %w", err)
		}
	}

	if expiresAt.Valid {
		approval.ExpiresAt = &expiresAt.Time
	}

	return &approval, nil
}
