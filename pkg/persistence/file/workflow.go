package file

import (
	"context"
	"sort"
	"time"

	"github.com/flowhive/flowhive/pkg/models"
	"github.com/flowhive/flowhive/pkg/persistence"
)

// Workflows returns all definitions for the organization, newest first.
func (fp *Persistence) Workflows(_ context.Context, organizationID string) ([]*models.WorkflowDefinition, error) {
	fp.mu.RLock()
	defer fp.mu.RUnlock()

	var workflows []*models.WorkflowDefinition

	for _, raw := range fp.workflows {
		workflow, err := decode[models.WorkflowDefinition](raw)
		if err != nil {
			return nil, err
		}

		if workflow.DeletedAt != nil {
			continue
		}

		if organizationID == "" || workflow.OrganizationID == organizationID {
			workflows = append(workflows, workflow)
		}
	}

	sort.Slice(workflows, func(i, j int) bool {
		return workflows[i].CreatedAt.After(workflows[j].CreatedAt)
	})

	return workflows, nil
}

// WorkflowByID returns the definition with the given id.
func (fp *Persistence) WorkflowByID(_ context.Context, id string) (*models.WorkflowDefinition, error) {
	fp.mu.RLock()
	defer fp.mu.RUnlock()

	raw, exists := fp.workflows[id]
	if !exists {
		return nil, persistence.NewWorkflowError("GetByID", id, persistence.ErrWorkflowNotFound)
	}

	workflow, err := decode[models.WorkflowDefinition](raw)
	if err != nil {
		return nil, err
	}

	if workflow.DeletedAt != nil {
		return nil, persistence.NewWorkflowError("GetByID", id, persistence.ErrWorkflowNotFound)
	}

	return workflow, nil
}

// SaveWorkflow creates or replaces a definition after graph validation.
func (fp *Persistence) SaveWorkflow(_ context.Context, workflow *models.WorkflowDefinition) error {
	if err := workflow.ValidateGraph(); err != nil {
		return persistence.NewWorkflowError("Save", workflow.ID, err)
	}

	fp.mu.Lock()
	defer fp.mu.Unlock()

	now := time.Now().UTC()
	if workflow.CreatedAt.IsZero() {
		workflow.CreatedAt = now
	}

	workflow.UpdatedAt = now

	raw, err := encode(workflow)
	if err != nil {
		return persistence.NewWorkflowError("Save", workflow.ID, err)
	}

	fp.workflows[workflow.ID] = raw

	return fp.flush("workflows.json", fp.workflows)
}

// DeleteWorkflow removes a definition. Nodes, connections, and variables live
// inside the definition document, so the delete cascades by construction.
func (fp *Persistence) DeleteWorkflow(_ context.Context, id string) error {
	fp.mu.Lock()
	defer fp.mu.Unlock()

	if _, exists := fp.workflows[id]; !exists {
		return persistence.NewWorkflowError("Delete", id, persistence.ErrWorkflowNotFound)
	}

	delete(fp.workflows, id)

	return fp.flush("workflows.json", fp.workflows)
}
