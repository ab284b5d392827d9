package postgresql

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/flowhive/flowhive/pkg/models"
)

// AppendLogEntry appends one entry to the execution log table. This INSERT is
// the sole write path; nothing updates or deletes log rows.
func (p *Persistence) AppendLogEntry(ctx context.Context, entry *models.ExecutionLogEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}

	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	logContext, err := json.Marshal(entry.Context)
	if err != nil {
		return fmt.Errorf("failed to marshal log context: %w", err)
	}

	query := `
		INSERT INTO execution_log (
			id, workflow_id, execution_id, node_id, severity, message, context, timestamp
		) VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), $5, $6, $7, $8)
	`

	_, err = p.db.ExecContext(ctx, query,
		entry.ID, entry.WorkflowID, entry.ExecutionID, entry.NodeID,
		entry.Severity, entry.Message, logContext, entry.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to append log entry: %w", err)
	}

	return nil
}

// LogEntries returns up to limit entries for a workflow, newest first,
// optionally filtered by severity.
func (p *Persistence) LogEntries(ctx context.Context, workflowID string, severity models.LogSeverity, limit int) ([]*models.ExecutionLogEntry, error) {
	query := `
		SELECT
			id
		  , workflow_id
		  , COALESCE(execution_id, '')
		  , COALESCE(node_id, '')
		  , severity
		  , message
		  , context
		  , timestamp
		FROM execution_log
		WHERE workflow_id = $1 AND ($2 = '' OR severity = $2)
		ORDER BY timestamp DESC
		LIMIT $3
	`

	rows, err := p.db.QueryContext(ctx, query, workflowID, string(severity), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query log entries: %w", err)
	}

	defer func() {
		if err := rows.Close(); err != nil {
			p.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	entries := make([]*models.ExecutionLogEntry, 0)

	for rows.Next() {
		var (
			entry      models.ExecutionLogEntry
			logContext []byte
		)

		err := rows.Scan(&entry.ID, &entry.WorkflowID, &entry.ExecutionID, &entry.NodeID,
			&entry.Severity, &entry.Message, &logContext, &entry.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("failed to scan log entry: %w", err)
		}

		if len(logContext) > 0 {
			if err := json.Unmarshal(logContext, &entry.Context); err != nil {
				return nil, fmt.Errorf("failed to unmarshal log context: %w", err)
			}
		}

		entries = append(entries, &entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating log entries: %w", err)
	}

	return entries, nil
}
