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

const workflowColumns = `
	id
  , organization_id
  , name
  , description
  , is_active
  , nodes
  , connections
  , variables
  , metadata
  , created_at
  , updated_at
  , deleted_at
`

// Workflows returns all definitions for the organization, newest first.
func (p *Persistence) Workflows(ctx context.Context, organizationID string) ([]*models.WorkflowDefinition, error) {
	query := `
		SELECT ` + workflowColumns + `
		FROM workflows
		WHERE deleted_at IS NULL AND ($1 = '' OR organization_id = $1)
		ORDER BY created_at DESC
	`

	rows, err := p.db.QueryContext(ctx, query, organizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflows: %w", err)
	}

	defer func() {
		if err := rows.Close(); err != nil {
			p.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	workflows := make([]*models.WorkflowDefinition, 0)

	for rows.Next() {
		workflow, err := scanWorkflow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow: %w", err)
		}

		workflows = append(workflows, workflow)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating workflows: %w", err)
	}

	return workflows, nil
}

// WorkflowByID returns the definition with the given id.
func (p *Persistence) WorkflowByID(ctx context.Context, id string) (*models.WorkflowDefinition, error) {
	query := `
		SELECT ` + workflowColumns + `
		FROM workflows
		WHERE id = $1 AND deleted_at IS NULL
	`

	workflow, err := scanWorkflow(p.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewWorkflowError("GetByID", id, persistence.ErrWorkflowNotFound)
		}

		return nil, fmt.Errorf("failed to scan workflow: %w", err)
	}

	return workflow, nil
}

// SaveWorkflow creates or replaces a definition after graph validation.
func (p *Persistence) SaveWorkflow(ctx context.Context, workflow *models.WorkflowDefinition) error {
	if err := workflow.ValidateGraph(); err != nil {
		return persistence.NewWorkflowError("Save", workflow.ID, err)
	}

	now := time.Now().UTC()
	if workflow.CreatedAt.IsZero() {
		workflow.CreatedAt = now
	}

	workflow.UpdatedAt = now

	nodes, err := json.Marshal(workflow.Nodes)
	if err != nil {
		return fmt.Errorf("failed to marshal nodes: %w", err)
	}

	connections, err := json.Marshal(workflow.Connections)
	if err != nil {
		return fmt.Errorf("failed to marshal connections: %w", err)
	}

	variables, err := json.Marshal(workflow.Variables)
	if err != nil {
		return fmt.Errorf("failed to marshal variables: %w", err)
	}

	metadata, err := json.Marshal(workflow.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	query := `
		INSERT INTO workflows (
			id, organization_id, name, description, is_active,
			nodes, connections, variables, metadata, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			is_active = EXCLUDED.is_active,
			nodes = EXCLUDED.nodes,
			connections = EXCLUDED.connections,
			variables = EXCLUDED.variables,
			metadata = EXCLUDED.metadata,
			updated_at = EXCLUDED.updated_at
	`

	_, err = p.db.ExecContext(ctx, query,
		workflow.ID, workflow.OrganizationID, workflow.Name, workflow.Description,
		workflow.IsActive, nodes, connections, variables, metadata,
		workflow.CreatedAt, workflow.UpdatedAt)
	if err != nil {
		return persistence.NewWorkflowError("Save", workflow.ID, err)
	}

	return nil
}

// DeleteWorkflow soft-deletes a definition. Nodes, connections, and variables
// are embedded in the row, so the delete cascades by construction.
func (p *Persistence) DeleteWorkflow(ctx context.Context, id string) error {
	result, err := p.db.ExecContext(ctx,
		"UPDATE workflows SET deleted_at = NOW() WHERE id = $1 AND deleted_at IS NULL", id)
	if err != nil {
		return persistence.NewWorkflowError("Delete", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewWorkflowError("Delete", id, err)
	}

	if affected == 0 {
		return persistence.NewWorkflowError("Delete", id, persistence.ErrWorkflowNotFound)
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWorkflow(row rowScanner) (*models.WorkflowDefinition, error) {
	var (
		workflow    models.WorkflowDefinition
		nodes       []byte
		connections []byte
		variables   []byte
		metadata    []byte
		deletedAt   sql.NullTime
	)

	err := row.Scan(
		&workflow.ID, &workflow.OrganizationID, &workflow.Name, &workflow.Description,
		&workflow.IsActive, &nodes, &connections, &variables, &metadata,
		&workflow.CreatedAt, &workflow.UpdatedAt, &deletedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(nodes, &workflow.Nodes); err != nil {
		return nil, fmt.Errorf("failed to unmarshal nodes: %w", err)
	}

	if err := json.Unmarshal(connections, &workflow.Connections); err != nil {
		return nil, fmt.Errorf("failed to unmarshal connections: %w", err)
	}

	if err := json.Unmarshal(variables, &workflow.Variables); err != nil {
		return nil, fmt.Errorf("failed to unmarshal variables: %w", err)
	}

	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &workflow.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}

	if deletedAt.Valid {
		workflow.DeletedAt = &deletedAt.Time
	}

	return &workflow, nil
}
