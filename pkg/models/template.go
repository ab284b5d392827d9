package models

import (
	"strings"
	"time"
)

// NotificationChannel is the delivery channel of a message template.
type NotificationChannel string

const (
	ChannelEmail NotificationChannel = "email"
	ChannelSMS   NotificationChannel = "sms"
)

// SystemTemplatePrefix reserves an id namespace for system-defined templates.
// System templates are matched before the organization's own template store.
const SystemTemplatePrefix = "sys."

// ActionTemplate is a message template used by notification-emitting action
// nodes. Locked templates ignore caller-supplied content overrides: the stored
// content is used verbatim, an integrity guarantee for compliance templates.
type ActionTemplate struct {
	ID             string              `json:"id"      validate:"required"`
	OrganizationID string              `json:"organization_id,omitempty"` // empty for system templates
	Name           string              `json:"name"    validate:"required"`
	Channel        NotificationChannel `json:"channel" validate:"required"`
	Subject        string              `json:"subject,omitempty"`
	Body           string              `json:"body"    validate:"required"`
	IsLocked       bool                `json:"is_locked"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
}

// IsSystem reports whether the template lives in the reserved system namespace.
func (t *ActionTemplate) IsSystem() bool {
	return strings.HasPrefix(t.ID, SystemTemplatePrefix)
}
