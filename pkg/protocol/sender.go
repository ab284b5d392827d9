// Package protocol defines the contracts between the execution engine and the
// outbound integrations it drives (notification delivery, business records).
package protocol

import (
	"context"

	"github.com/flowhive/flowhive/pkg/models"
)

// SendResult reports the outcome of a notification delivery attempt.
type SendResult struct {
	Success           bool   `json:"success"`
	ProviderMessageID string `json:"provider_message_id,omitempty"`
}

// NotificationSender delivers rendered message content over a channel.
// Implementations wrap a concrete provider (SMTP relay, SMS gateway) and must
// be safe for concurrent use.
type NotificationSender interface {
	Send(ctx context.Context, channel models.NotificationChannel, content *models.TemplateContent, recipient string) (*SendResult, error)
}
