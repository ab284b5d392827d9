package file

import (
	"context"
	"sort"
	"time"

	"github.com/flowhive/flowhive/pkg/models"
	"github.com/flowhive/flowhive/pkg/persistence"
)

// SaveSchedule creates or replaces a schedule record under optimistic
// concurrency: the caller's Version must match the stored record's Version.
// The stored version increments on every successful save.
func (fp *Persistence) SaveSchedule(_ context.Context, record *models.ScheduleRecord) error {
	if err := record.Validate(); err != nil {
		return persistence.NewScheduleError("Save", record.ID, err)
	}

	fp.mu.Lock()
	defer fp.mu.Unlock()

	if raw, exists := fp.schedules[record.ID]; exists {
		stored, err := decode[models.ScheduleRecord](raw)
		if err != nil {
			return persistence.NewScheduleError("Save", record.ID, err)
		}

		if stored.Version != record.Version {
			return persistence.NewScheduleError("Save", record.ID, persistence.ErrScheduleVersionConflict)
		}
	} else if record.Version != 0 {
		return persistence.NewScheduleError("Save", record.ID, persistence.ErrScheduleVersionConflict)
	}

	now := time.Now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}

	record.UpdatedAt = now
	record.Version++

	raw, err := encode(record)
	if err != nil {
		return persistence.NewScheduleError("Save", record.ID, err)
	}

	fp.schedules[record.ID] = raw

	return fp.flush("schedules.json", fp.schedules)
}

// ScheduleByID retrieves a schedule record by id.
func (fp *Persistence) ScheduleByID(_ context.Context, id string) (*models.ScheduleRecord, error) {
	fp.mu.RLock()
	defer fp.mu.RUnlock()

	raw, exists := fp.schedules[id]
	if !exists {
		return nil, persistence.NewScheduleError("GetByID", id, persistence.ErrScheduleNotFound)
	}

	return decode[models.ScheduleRecord](raw)
}

// ScheduleByNodeID retrieves the schedule for a node. Node ids are unique
// across schedules: at most one active schedule exists per node.
func (fp *Persistence) ScheduleByNodeID(_ context.Context, nodeID string) (*models.ScheduleRecord, error) {
	fp.mu.RLock()
	defer fp.mu.RUnlock()

	for _, raw := range fp.schedules {
		record, err := decode[models.ScheduleRecord](raw)
		if err != nil {
			return nil, err
		}

		if record.NodeID == nodeID {
			return record, nil
		}
	}

	return nil, persistence.NewScheduleError("GetByNodeID", nodeID, persistence.ErrScheduleNotFound)
}

// DueSchedules returns up to limit records due at or before the given time,
// inside their validity window, ordered ascending by NextRunAt.
func (fp *Persistence) DueSchedules(_ context.Context, before time.Time, limit int) ([]*models.ScheduleRecord, error) {
	fp.mu.RLock()
	defer fp.mu.RUnlock()

	var due []*models.ScheduleRecord

	for _, raw := range fp.schedules {
		record, err := decode[models.ScheduleRecord](raw)
		if err != nil {
			return nil, err
		}

		if record.IsDue(before) {
			due = append(due, record)
		}
	}

	sort.Slice(due, func(i, j int) bool {
		return due[i].NextRunAt.Before(*due[j].NextRunAt)
	})

	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}

	return due, nil
}

// DeleteSchedule removes a schedule record by id.
func (fp *Persistence) DeleteSchedule(_ context.Context, id string) error {
	fp.mu.Lock()
	defer fp.mu.Unlock()

	delete(fp.schedules, id)

	return fp.flush("schedules.json", fp.schedules)
}

// DeleteSchedulesByWorkflowID removes all schedule records of a workflow.
// Called on workflow deletion as referential cleanup.
func (fp *Persistence) DeleteSchedulesByWorkflowID(_ context.Context, workflowID string) error {
	fp.mu.Lock()
	defer fp.mu.Unlock()

	for id, raw := range fp.schedules {
		record, err := decode[models.ScheduleRecord](raw)
		if err != nil {
			return err
		}

		if record.WorkflowID == workflowID {
			delete(fp.schedules, id)
		}
	}

	return fp.flush("schedules.json", fp.schedules)
}
