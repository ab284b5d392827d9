package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/flowhive/flowhive/pkg/models"
	"github.com/flowhive/flowhive/pkg/persistence"
)

const scheduleColumns = `
	id
  , workflow_id
  , node_id
  , cron
  , frequency
  , timezone
  , start_at
  , end_at
  , is_active
  , last_run_at
  , next_run_at
  , metadata
  , version
  , created_at
  , updated_at
`

// SaveSchedule creates or replaces a schedule record under optimistic
// concurrency. Updates are predicated on the version the caller read; a
// mismatch reports ErrScheduleVersionConflict without touching the row.
func (p *Persistence) SaveSchedule(ctx context.Context, record *models.ScheduleRecord) error {
	if err := record.Validate(); err != nil {
		return persistence.NewScheduleError("Save", record.ID, err)
	}

	now := time.Now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}

	record.UpdatedAt = now

	metadata, err := json.Marshal(record.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	if record.Version == 0 {
		query := `
			INSERT INTO schedules (
				id, workflow_id, node_id, cron, frequency, timezone,
				start_at, end_at, is_active, last_run_at, next_run_at,
				metadata, version, created_at, updated_at
			) VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), $6,
				$7, $8, $9, $10, $11, $12, 1, $13, $14)
		`

		_, err = p.db.ExecContext(ctx, query,
			record.ID, record.WorkflowID, record.NodeID, record.Cron, record.Frequency,
			record.Timezone, record.StartAt, record.EndAt, record.IsActive,
			record.LastRunAt, record.NextRunAt, metadata,
			record.CreatedAt, record.UpdatedAt)
		if err != nil {
			return persistence.NewScheduleError("Save", record.ID, err)
		}

		record.Version = 1

		return nil
	}

	query := `
		UPDATE schedules SET
			cron = NULLIF($2, ''),
			frequency = NULLIF($3, ''),
			timezone = $4,
			start_at = $5,
			end_at = $6,
			is_active = $7,
			last_run_at = $8,
			next_run_at = $9,
			metadata = $10,
			version = version + 1,
			updated_at = $11
		WHERE id = $1 AND version = $12
	`

	result, err := p.db.ExecContext(ctx, query,
		record.ID, record.Cron, record.Frequency, record.Timezone,
		record.StartAt, record.EndAt, record.IsActive,
		record.LastRunAt, record.NextRunAt, metadata,
		record.UpdatedAt, record.Version)
	if err != nil {
		return persistence.NewScheduleError("Save", record.ID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewScheduleError("Save", record.ID, err)
	}

	if affected == 0 {
		return persistence.NewScheduleError("Save", record.ID, persistence.ErrScheduleVersionConflict)
	}

	record.Version++

	return nil
}

// ScheduleByID retrieves a schedule record by id.
func (p *Persistence) ScheduleByID(ctx context.Context, id string) (*models.ScheduleRecord, error) {
	query := `SELECT ` + scheduleColumns + ` FROM schedules WHERE id = $1`

	record, err := scanSchedule(p.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewScheduleError("GetByID", id, persistence.ErrScheduleNotFound)
		}

		return nil, fmt.Errorf("failed to scan schedule: %w", err)
	}

	return record, nil
}

// ScheduleByNodeID retrieves the schedule for a node.
func (p *Persistence) ScheduleByNodeID(ctx context.Context, nodeID string) (*models.ScheduleRecord, error) {
	query := `SELECT ` + scheduleColumns + ` FROM schedules WHERE node_id = $1`

	record, err := scanSchedule(p.db.QueryRowContext(ctx, query, nodeID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewScheduleError("GetByNodeID", nodeID, persistence.ErrScheduleNotFound)
		}

		return nil, fmt.Errorf("failed to scan schedule: %w", err)
	}

	return record, nil
}

// DueSchedules returns up to limit active records due at or before the given
// time and inside their validity window, earliest NextRunAt first.
func (p *Persistence) DueSchedules(ctx context.Context, before time.Time, limit int) ([]*models.ScheduleRecord, error) {
	query := `
		SELECT ` + scheduleColumns + `
		FROM schedules
		WHERE is_active
		  AND next_run_at IS NOT NULL
		  AND next_run_at <= $1
		  AND (start_at IS NULL OR start_at <= $1)
		  AND (end_at IS NULL OR end_at >= $1)
		ORDER BY next_run_at ASC
		LIMIT $2
	`

	rows, err := p.db.QueryContext(ctx, query, before, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query due schedules: %w", err)
	}

	defer func() {
		if err := rows.Close(); err != nil {
			p.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	records := make([]*models.ScheduleRecord, 0)

	for rows.Next() {
		record, err := scanSchedule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan schedule: %w", err)
		}

		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating schedules: %w", err)
	}

	return records, nil
}

// DeleteSchedule removes a schedule record by id.
func (p *Persistence) DeleteSchedule(ctx context.Context, id string) error {
	_, err := p.db.ExecContext(ctx, "DELETE FROM schedules WHERE id = $1", id)
	if err != nil {
		return persistence.NewScheduleError("Delete", id, err)
	}

	return nil
}

// DeleteSchedulesByWorkflowID removes all schedule records of a workflow.
func (p *Persistence) DeleteSchedulesByWorkflowID(ctx context.Context, workflowID string) error {
	_, err := p.db.ExecContext(ctx, "DELETE FROM schedules WHERE workflow_id = $1", workflowID)
	if err != nil {
		return persistence.NewScheduleError("DeleteByWorkflow", workflowID, err)
	}

	return nil
}

func scanSchedule(row rowScanner) (*models.ScheduleRecord, error) {
	var (
		record    models.ScheduleRecord
		cron      sql.NullString
		frequency sql.NullString
		startAt   sql.NullTime
		endAt     sql.NullTime
		lastRunAt sql.NullTime
		nextRunAt sql.NullTime
		metadata  []byte
	)

	err := row.Scan(
		&record.ID, &record.WorkflowID, &record.NodeID, &cron, &frequency,
		&record.Timezone, &startAt, &endAt, &record.IsActive,
		&lastRunAt, &nextRunAt, &metadata, &record.Version,
		&record.CreatedAt, &record.UpdatedAt)
	if err != nil {
		return nil, err
	}

	record.Cron = cron.String
	record.Frequency = frequency.String

	if startAt.Valid {
		record.StartAt = &startAt.Time
	}

	if endAt.Valid {
		record.EndAt = &endAt.Time
	}

	if lastRunAt.Valid {
		record.LastRunAt = &lastRunAt.Time
	}

	if nextRunAt.Valid {
		record.NextRunAt = &nextRunAt.Time
	}

	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &record.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}

	return &record, nil
}
