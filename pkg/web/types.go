// Package web provides HTTP request and response types for the workflow API.
package web

import "github.com/flowhive/flowhive/pkg/models"

// CreateWorkflowRequest represents the request body for creating a new workflow.
type CreateWorkflowRequest struct {
	OrganizationID string                `json:"organization_id" validate:"required"`
	Name           string                `json:"name"            validate:"required,min=3"`
	Description    string                `json:"description"`
	IsActive       bool                  `json:"is_active"`
	Nodes          []*models.Node        `json:"nodes"           validate:"required,min=1"`
	Connections    []*models.Connection  `json:"connections"`
	Variables      []*models.Variable    `json:"variables,omitempty"`
	Metadata       map[string]any        `json:"metadata,omitempty"`
}

// UpdateWorkflowRequest represents the request body for updating a workflow.
// The graph is replaced wholesale; schedule changes take effect from the next
// occurrence.
type UpdateWorkflowRequest struct {
	Name        string               `json:"name"        validate:"required,min=3"`
	Description string               `json:"description"`
	IsActive    bool                 `json:"is_active"`
	Nodes       []*models.Node       `json:"nodes"       validate:"required,min=1"`
	Connections []*models.Connection `json:"connections"`
	Variables   []*models.Variable   `json:"variables,omitempty"`
	Metadata    map[string]any       `json:"metadata,omitempty"`
}

// SetActiveRequest toggles a workflow's active flag.
type SetActiveRequest struct {
	Active bool `json:"active"`
}

// IngestEventRequest represents one business event posted for dispatch.
type IngestEventRequest struct {
	ID             string         `json:"id"`
	OrganizationID string         `json:"organization_id" validate:"required"`
	Category       string         `json:"category"        validate:"required"`
	EntityType     string         `json:"entity_type"     validate:"required"`
	Action         string         `json:"action"          validate:"required"`
	Payload        map[string]any `json:"payload,omitempty"`
}

// DecideApprovalRequest represents an approve/reject decision on a pending
// approval token.
type DecideApprovalRequest struct {
	Approve   *bool  `json:"approve"    validate:"required"`
	DecidedBy string `json:"decided_by" validate:"required"`
}

// CreateTemplateRequest represents the request body for creating a template.
type CreateTemplateRequest struct {
	ID             string `json:"id,omitempty"`
	OrganizationID string `json:"organization_id" validate:"required"`
	Name           string `json:"name"            validate:"required"`
	Channel        string `json:"channel"         validate:"required,oneof=email sms"`
	Subject        string `json:"subject"`
	Body           string `json:"body"            validate:"required"`
	IsLocked       bool   `json:"is_locked"`
}

// UpdateTemplateRequest represents a partial template update.
type UpdateTemplateRequest struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}
