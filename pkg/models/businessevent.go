package models

import "time"

// BusinessEvent is a domain occurrence emitted by an application module, the
// input to event-trigger dispatch. The category/entity/action triple ("crm",
// "contact", "created") is what trigger nodes match on.
type BusinessEvent struct {
	ID             string         `json:"id"`
	OrganizationID string         `json:"organization_id" validate:"required"`
	Category       string         `json:"category"        validate:"required"`
	EntityType     string         `json:"entity_type"     validate:"required"`
	Action         string         `json:"action"          validate:"required"`
	Payload        map[string]any `json:"payload,omitempty"`
	OccurredAt     time.Time      `json:"occurred_at"`
}
