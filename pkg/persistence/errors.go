// Package persistence provides standardized error types for persistence operations.
package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrWorkflowNotFound indicates a workflow definition was not found.
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrScheduleNotFound indicates a schedule record was not found.
	ErrScheduleNotFound = errors.New("schedule not found")

	// ErrScheduleVersionConflict indicates a schedule save lost a
	// read-modify-write race: the stored version moved underneath the caller.
	ErrScheduleVersionConflict = errors.New("schedule version conflict")

	// ErrTemplateNotFound indicates no template exists for the given id.
	ErrTemplateNotFound = errors.New("template not found")

	// ErrApprovalNotFound indicates no pending approval exists for the token.
	ErrApprovalNotFound = errors.New("approval not found")
)

// ScheduleError wraps schedule-related errors with operation context.
type ScheduleError struct {
	Op         string // Operation being performed (e.g. "Save", "Due", "Delete")
	ScheduleID string
	Err        error
}

func (e *ScheduleError) Error() string {
	return fmt.Sprintf("%s operation failed for schedule %s: %v", e.Op, e.ScheduleID, e.Err)
}

func (e *ScheduleError) Unwrap() error {
	return e.Err
}

func (e *ScheduleError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewScheduleError creates a schedule error with context.
func NewScheduleError(op, scheduleID string, err error) *ScheduleError {
	return &ScheduleError{Op: op, ScheduleID: scheduleID, Err: err}
}

// WorkflowError wraps workflow-related errors with operation context.
type WorkflowError struct {
	Op         string
	WorkflowID string
	Err        error
}

func (e *WorkflowError) Error() string {
	return fmt.Sprintf("%s operation failed for workflow %s: %v", e.Op, e.WorkflowID, e.Err)
}

func (e *WorkflowError) Unwrap() error {
	return e.Err
}

func (e *WorkflowError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewWorkflowError creates a workflow error with context.
func NewWorkflowError(op, workflowID string, err error) *WorkflowError {
	return &WorkflowError{Op: op, WorkflowID: workflowID, Err: err}
}

// IsWorkflowNotFound checks if an error indicates a missing workflow.
func IsWorkflowNotFound(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound)
}

// IsScheduleNotFound checks if an error indicates a missing schedule.
func IsScheduleNotFound(err error) bool {
	return errors.Is(err, ErrScheduleNotFound)
}

// IsVersionConflict checks if an error indicates a lost schedule update race.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrScheduleVersionConflict)
}

// IsTemplateNotFound checks if an error indicates a missing template.
func IsTemplateNotFound(err error) bool {
	return errors.Is(err, ErrTemplateNotFound)
}

// IsApprovalNotFound checks if an error indicates a missing approval.
func IsApprovalNotFound(err error) bool {
	return errors.Is(err, ErrApprovalNotFound)
}
