package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/flowhive/flowhive/pkg/models"
	"github.com/flowhive/flowhive/pkg/persistence"
	"github.com/flowhive/flowhive/pkg/scheduler"
)

// ErrWorkflowNotFound re-exports the persistence sentinel for API callers.
var ErrWorkflowNotFound = persistence.ErrWorkflowNotFound

// Workflow is the workflow definition service. Saving a definition validates
// its graph and synchronizes schedule records, so definition errors surface to
// the caller synchronously instead of at fire time.
type Workflow struct {
	persistence persistence.Persistence
	scheduler   *scheduler.Scheduler
	validator   *validator.Validate
}

// NewWorkflow creates the workflow service.
func NewWorkflow(store persistence.Persistence, sched *scheduler.Scheduler, validate *validator.Validate) *Workflow {
	return &Workflow{
		persistence: store,
		scheduler:   sched,
		validator:   validate,
	}
}

// HealthCheck checks the health of the persistence layer.
func (w *Workflow) HealthCheck(ctx context.Context) (string, bool) {
	if w.persistence == nil {
		return "Persistence layer not initialized", false
	}

	if err := w.persistence.HealthCheck(ctx); err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// List retrieves the organization's workflow definitions, excluding
// soft-deleted ones.
func (w *Workflow) List(ctx context.Context, organizationID string) ([]*models.WorkflowDefinition, error) {
	if organizationID == "" {
		return nil, ErrOrganizationRequired
	}

	workflows, err := w.persistence.Workflows(ctx, organizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}

	visible := make([]*models.WorkflowDefinition, 0, len(workflows))

	for _, workflow := range workflows {
		if workflow.DeletedAt == nil {
			visible = append(visible, workflow)
		}
	}

	return visible, nil
}

// FetchByID retrieves a workflow definition by id.
func (w *Workflow) FetchByID(ctx context.Context, id string) (*models.WorkflowDefinition, error) {
	workflow, err := w.persistence.WorkflowByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if workflow.DeletedAt != nil {
		return nil, ErrWorkflowNotFound
	}

	return workflow, nil
}

// Create validates and stores a new workflow definition, then creates
// schedule records for its schedule triggers.
func (w *Workflow) Create(ctx context.Context, workflow *models.WorkflowDefinition) (*models.WorkflowDefinition, error) {
	if workflow == nil {
		return nil, ErrWorkflowNil
	}

	workflow.ID = uuid.New().String()

	if err := w.validate(workflow); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	workflow.CreatedAt = now
	workflow.UpdatedAt = now

	if err := w.persistence.SaveWorkflow(ctx, workflow); err != nil {
		return nil, fmt.Errorf("failed to create workflow: %w", err)
	}

	if err := w.scheduler.SyncWorkflow(ctx, workflow); err != nil {
		return nil, err
	}

	return workflow, nil
}

// Update validates and stores changes to an existing definition and re-syncs
// its schedules. Spec changes take effect from the next occurrence.
func (w *Workflow) Update(ctx context.Context, workflowID string, workflow *models.WorkflowDefinition) (*models.WorkflowDefinition, error) {
	existing, err := w.FetchByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	if workflow == nil {
		return nil, ErrWorkflowNil
	}

	workflow.ID = workflowID
	workflow.OrganizationID = existing.OrganizationID

	if err := w.validate(workflow); err != nil {
		return nil, err
	}
	workflow.CreatedAt = existing.CreatedAt
	workflow.UpdatedAt = time.Now().UTC()

	if err := w.persistence.SaveWorkflow(ctx, workflow); err != nil {
		return nil, fmt.Errorf("failed to update workflow: %w", err)
	}

	if err := w.scheduler.SyncWorkflow(ctx, workflow); err != nil {
		return nil, err
	}

	return workflow, nil
}

// Delete soft-deletes a workflow and removes its schedule records, including
// pending continuations. The execution log is retained.
func (w *Workflow) Delete(ctx context.Context, workflowID string) error {
	existing, err := w.FetchByID(ctx, workflowID)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	existing.DeletedAt = &now
	existing.IsActive = false
	existing.UpdatedAt = now

	if err := w.persistence.SaveWorkflow(ctx, existing); err != nil {
		return fmt.Errorf("failed to delete workflow: %w", err)
	}

	if err := w.scheduler.RemoveWorkflow(ctx, workflowID); err != nil {
		return fmt.Errorf("failed to remove schedules for workflow %s: %w", workflowID, err)
	}

	return nil
}

// SetActive toggles a workflow's active flag and re-syncs schedules so
// deactivated workflows stop firing.
func (w *Workflow) SetActive(ctx context.Context, workflowID string, active bool) (*models.WorkflowDefinition, error) {
	existing, err := w.FetchByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	existing.IsActive = active
	existing.UpdatedAt = time.Now().UTC()

	if err := w.persistence.SaveWorkflow(ctx, existing); err != nil {
		return nil, fmt.Errorf("failed to update workflow: %w", err)
	}

	if err := w.scheduler.SyncWorkflow(ctx, existing); err != nil {
		return nil, err
	}

	return existing, nil
}

func (w *Workflow) validate(workflow *models.WorkflowDefinition) error {
	if workflow == nil {
		return ErrWorkflowNil
	}

	if workflow.Name == "" {
		return ErrWorkflowNameRequired
	}

	if workflow.OrganizationID == "" {
		return ErrOrganizationRequired
	}

	if len(workflow.TriggerNodes()) == 0 {
		return ErrTriggerNodeRequired
	}

	if err := w.validator.Struct(workflow); err != nil {
		var invalid *validator.InvalidValidationError
		if errors.As(err, &invalid) {
			return fmt.Errorf("workflow validation failed: %w", err)
		}

		return &ServiceError{Op: "validate", Message: err.Error(), Err: models.ErrDefinitionInvalid}
	}

	if err := workflow.ValidateGraph(); err != nil {
		return err
	}

	return nil
}
