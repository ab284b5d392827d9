// Package notify provides notification sender implementations.
package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/flowhive/flowhive/pkg/models"
	"github.com/flowhive/flowhive/pkg/protocol"
)

// LogSender is a development NotificationSender that logs deliveries instead
// of calling a provider. Every send succeeds and gets a synthetic message id.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender creates a sender that writes deliveries to the logger.
func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{
		logger: logger.With("module", "notify"),
	}
}

// Send logs the would-be delivery and reports success.
func (s *LogSender) Send(ctx context.Context, channel models.NotificationChannel, content *models.TemplateContent, recipient string) (*protocol.SendResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if recipient == "" {
		return nil, fmt.Errorf("notification recipient is empty")
	}

	messageID := "dev-" + uuid.New().String()

	s.logger.InfoContext(ctx, "Delivering notification",
		"channel", channel,
		"recipient", recipient,
		"subject", content.Subject,
		"provider_message_id", messageID)

	return &protocol.SendResult{
		Success:           true,
		ProviderMessageID: messageID,
	}, nil
}
