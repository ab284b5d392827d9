package file

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/flowhive/flowhive/pkg/models"
)

// AppendLogEntry appends one entry to the execution log. Entries are
// append-only: nothing in this store mutates or removes them.
func (fp *Persistence) AppendLogEntry(_ context.Context, entry *models.ExecutionLogEntry) error {
	fp.mu.Lock()
	defer fp.mu.Unlock()

	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}

	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	raw, err := encode(entry)
	if err != nil {
		return err
	}

	fp.logs = append(fp.logs, raw)

	return fp.flush("execution_log.json", fp.logs)
}

// LogEntries returns up to limit entries for a workflow, newest first,
// optionally filtered by severity.
func (fp *Persistence) LogEntries(_ context.Context, workflowID string, severity models.LogSeverity, limit int) ([]*models.ExecutionLogEntry, error) {
	fp.mu.RLock()
	defer fp.mu.RUnlock()

	var entries []*models.ExecutionLogEntry

	for i := len(fp.logs) - 1; i >= 0; i-- {
		entry, err := decode[models.ExecutionLogEntry](fp.logs[i])
		if err != nil {
			return nil, err
		}

		if entry.WorkflowID != workflowID {
			continue
		}

		if severity != "" && entry.Severity != severity {
			continue
		}

		entries = append(entries, entry)

		if limit > 0 && len(entries) >= limit {
			break
		}
	}

	return entries, nil
}
