package file

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowhive/flowhive/pkg/models"
	"github.com/flowhive/flowhive/pkg/persistence"
)

func newScheduleRecord(id string, nextRunAt time.Time) *models.ScheduleRecord {
	next := nextRunAt

	return &models.ScheduleRecord{
		ID:         id,
		WorkflowID: "wf-1",
		NodeID:     "node-" + id,
		Cron:       "0 9 * * *",
		IsActive:   true,
		NextRunAt:  &next,
	}
}

func TestDueSchedules_OrdersAscendingAndHonorsLimit(t *testing.T) {
	store, err := NewPersistence(t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	// Saved out of order on purpose.
	require.NoError(t, store.SaveSchedule(ctx, newScheduleRecord("late", now.Add(-time.Minute))))
	require.NoError(t, store.SaveSchedule(ctx, newScheduleRecord("early", now.Add(-time.Hour))))
	require.NoError(t, store.SaveSchedule(ctx, newScheduleRecord("middle", now.Add(-30*time.Minute))))
	require.NoError(t, store.SaveSchedule(ctx, newScheduleRecord("future", now.Add(time.Hour))))

	due, err := store.DueSchedules(ctx, now, 0)
	require.NoError(t, err)

	ids := make([]string, 0, len(due))
	for _, record := range due {
		ids = append(ids, record.ID)
	}

	assert.Equal(t, []string{"early", "middle", "late"}, ids)

	limited, err := store.DueSchedules(ctx, now, 2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, "early", limited[0].ID)
	assert.Equal(t, "middle", limited[1].ID)
}

func TestDueSchedules_SkipsInactiveAndOutOfWindow(t *testing.T) {
	store, err := NewPersistence(t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	inactive := newScheduleRecord("inactive", now.Add(-time.Minute))
	inactive.IsActive = false
	require.NoError(t, store.SaveSchedule(ctx, inactive))

	windowEnd := now.Add(-time.Hour)
	expired := newScheduleRecord("expired-window", now.Add(-2*time.Hour))
	expired.EndAt = &windowEnd
	require.NoError(t, store.SaveSchedule(ctx, expired))

	windowStart := now.Add(time.Hour)
	notStarted := newScheduleRecord("not-started", now.Add(-time.Minute))
	notStarted.StartAt = &windowStart
	require.NoError(t, store.SaveSchedule(ctx, notStarted))

	require.NoError(t, store.SaveSchedule(ctx, newScheduleRecord("live", now.Add(-time.Minute))))

	due, err := store.DueSchedules(ctx, now, 0)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "live", due[0].ID)
}

func TestSaveSchedule_RejectsStaleVersion(t *testing.T) {
	store, err := NewPersistence(t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()
	record := newScheduleRecord("sched-1", time.Now().UTC())
	require.NoError(t, store.SaveSchedule(ctx, record))
	assert.EqualValues(t, 1, record.Version)

	stale := newScheduleRecord("sched-1", time.Now().UTC())
	stale.Version = 0

	err = store.SaveSchedule(ctx, stale)
	require.ErrorIs(t, err, persistence.ErrScheduleVersionConflict)

	record.Metadata = map[string]any{models.MetaRetryCount: 1}
	require.NoError(t, store.SaveSchedule(ctx, record))
	assert.EqualValues(t, 2, record.Version)
}

func TestSchedules_SurviveReload(t *testing.T) {
	root := t.TempDir()
	ctx := context.Background()

	store, err := NewPersistence(root)
	require.NoError(t, err)

	next := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	require.NoError(t, store.SaveSchedule(ctx, newScheduleRecord("sched-1", next)))

	reopened, err := NewPersistence(root)
	require.NoError(t, err)

	record, err := reopened.ScheduleByID(ctx, "sched-1")
	require.NoError(t, err)
	assert.Equal(t, "node-sched-1", record.NodeID)
	require.NotNil(t, record.NextRunAt)
	assert.True(t, record.NextRunAt.Equal(next))

	require.NoError(t, reopened.DeleteSchedulesByWorkflowID(ctx, "wf-1"))

	_, err = reopened.ScheduleByID(ctx, "sched-1")
	require.ErrorIs(t, err, persistence.ErrScheduleNotFound)
}
