package models

import "time"

// RunStatus is the terminal status of one executor traversal.
type RunStatus string

const (
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	// RunStatusSuspended marks a run whose remaining progress waits on an
	// external signal (approval decision or delay continuation).
	RunStatusSuspended RunStatus = "suspended"
)

// ExecutionResult is the outcome of one executor invocation.
type ExecutionResult struct {
	ExecutionID      string         `json:"execution_id"`
	WorkflowID       string         `json:"workflow_id"`
	Status           RunStatus      `json:"status"`
	CompletedNodeIDs []string       `json:"completed_node_ids"`
	FailedNodeID     string         `json:"failed_node_id,omitempty"`
	NodeResults      []NodeResult   `json:"node_results,omitempty"`
	FinalScope       map[string]any `json:"final_scope,omitempty"`
	StartedAt        time.Time      `json:"started_at"`
	FinishedAt       time.Time      `json:"finished_at"`
}

// ApprovalStatus is the lifecycle state of a pending approval.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
	ApprovalExpired  ApprovalStatus = "expired"
)

// PendingApproval captures a suspended branch waiting on an approval decision.
// Token is the capability handed to the approval-signal producer; Scope is the
// snapshot restored when traversal resumes from the approval node's branch.
type PendingApproval struct {
	Token          string         `json:"token"           validate:"required"`
	WorkflowID     string         `json:"workflow_id"     validate:"required"`
	OrganizationID string         `json:"organization_id"`
	ExecutionID    string         `json:"execution_id"`
	NodeID         string         `json:"node_id"         validate:"required"`
	Approvers      []string       `json:"approvers"`
	Scope          map[string]any `json:"scope,omitempty"`
	Status         ApprovalStatus `json:"status"`
	DecidedBy      string         `json:"decided_by,omitempty"`
	ExpiresAt      *time.Time     `json:"expires_at,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}
