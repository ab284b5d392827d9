// Package execlog provides the append-only execution logger: every workflow
// run attempt, node outcome, and diagnostic lands here. The durable store is
// the audit trail operators read; a structured logger mirrors each entry for
// live observation.
package execlog

import (
	"context"
	"log/slog"
	"time"

	"github.com/flowhive/flowhive/pkg/models"
	"github.com/flowhive/flowhive/pkg/persistence"
)

// Logger appends execution log entries to the durable store and mirrors them
// to slog. Append failures are reported to the caller but also logged, since
// losing trail entries is itself diagnostic information.
type Logger struct {
	store  persistence.ExecutionLogStore
	logger *slog.Logger
}

// NewLogger creates an execution logger over the given store.
func NewLogger(store persistence.ExecutionLogStore, logger *slog.Logger) *Logger {
	return &Logger{
		store:  store,
		logger: logger.With("module", "execution_log"),
	}
}

// Entry is the builder for one log append.
type Entry struct {
	WorkflowID  string
	ExecutionID string
	NodeID      string
	Severity    models.LogSeverity
	Message     string
	Context     map[string]any
}

// Append writes one entry to the store.
func (l *Logger) Append(ctx context.Context, entry Entry) error {
	record := &models.ExecutionLogEntry{
		WorkflowID:  entry.WorkflowID,
		ExecutionID: entry.ExecutionID,
		NodeID:      entry.NodeID,
		Severity:    entry.Severity,
		Message:     entry.Message,
		Context:     entry.Context,
		Timestamp:   time.Now().UTC(),
	}

	l.mirror(record)

	if err := l.store.AppendLogEntry(ctx, record); err != nil {
		l.logger.Error("Failed to append execution log entry",
			"workflow_id", entry.WorkflowID, "error", err)

		return err
	}

	return nil
}

// Info appends an info-severity entry, swallowing store errors: informational
// trail gaps must not fail the operation being logged.
func (l *Logger) Info(ctx context.Context, workflowID, executionID, nodeID, message string, logContext map[string]any) {
	_ = l.Append(ctx, Entry{
		WorkflowID:  workflowID,
		ExecutionID: executionID,
		NodeID:      nodeID,
		Severity:    models.SeverityInfo,
		Message:     message,
		Context:     logContext,
	})
}

// Warn appends a warn-severity entry.
func (l *Logger) Warn(ctx context.Context, workflowID, executionID, nodeID, message string, logContext map[string]any) {
	_ = l.Append(ctx, Entry{
		WorkflowID:  workflowID,
		ExecutionID: executionID,
		NodeID:      nodeID,
		Severity:    models.SeverityWarn,
		Message:     message,
		Context:     logContext,
	})
}

// Error appends an error-severity entry.
func (l *Logger) Error(ctx context.Context, workflowID, executionID, nodeID, message string, logContext map[string]any) {
	_ = l.Append(ctx, Entry{
		WorkflowID:  workflowID,
		ExecutionID: executionID,
		NodeID:      nodeID,
		Severity:    models.SeverityError,
		Message:     message,
		Context:     logContext,
	})
}

func (l *Logger) mirror(record *models.ExecutionLogEntry) {
	attrs := []any{
		"workflow_id", record.WorkflowID,
	}

	if record.ExecutionID != "" {
		attrs = append(attrs, "execution_id", record.ExecutionID)
	}

	if record.NodeID != "" {
		attrs = append(attrs, "node_id", record.NodeID)
	}

	switch record.Severity {
	case models.SeverityError:
		l.logger.Error(record.Message, attrs...)
	case models.SeverityWarn:
		l.logger.Warn(record.Message, attrs...)
	default:
		l.logger.Info(record.Message, attrs...)
	}
}
