// Package services provides the application services behind the HTTP API:
// workflow CRUD with graph validation and schedule synchronization, and
// template management with locked-template protection.
package services

import (
	"errors"
	"fmt"

	"github.com/flowhive/flowhive/pkg/models"
)

// Validation errors map to 400 responses; conflicts to 409.
var (
	ErrWorkflowNil          = errors.New("workflow cannot be nil")
	ErrWorkflowNameRequired = errors.New("workflow name is required")
	ErrOrganizationRequired = errors.New("organization id is required")
	ErrTriggerNodeRequired  = errors.New("workflow must have at least one trigger node")

	ErrTemplateNil      = errors.New("template cannot be nil")
	ErrTemplateLocked   = errors.New("template is locked")
	ErrReservedPrefix   = errors.New("template id uses the reserved system prefix")
	ErrTemplateChannels = errors.New("template channel must be email or sms")
)

// ServiceError wraps service-level errors with operation context.
type ServiceError struct {
	Op      string
	Message string
	Err     error
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}

	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func (e *ServiceError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// IsValidationError checks if an error should produce an HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrWorkflowNil) ||
		errors.Is(err, models.ErrDefinitionInvalid) ||
		errors.Is(err, ErrWorkflowNameRequired) ||
		errors.Is(err, ErrOrganizationRequired) ||
		errors.Is(err, ErrTriggerNodeRequired) ||
		errors.Is(err, ErrTemplateNil) ||
		errors.Is(err, ErrReservedPrefix) ||
		errors.Is(err, ErrTemplateChannels)
}

// IsConflictError checks if an error should produce an HTTP 409.
func IsConflictError(err error) bool {
	return errors.Is(err, ErrTemplateLocked)
}
