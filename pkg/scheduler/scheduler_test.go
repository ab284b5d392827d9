package scheduler

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowhive/flowhive/pkg/eventbus"
	"github.com/flowhive/flowhive/pkg/events"
	"github.com/flowhive/flowhive/pkg/execlog"
	"github.com/flowhive/flowhive/pkg/models"
	"github.com/flowhive/flowhive/pkg/persistence"
	"github.com/flowhive/flowhive/pkg/persistence/file"
)

type capturePublisher struct {
	mu     sync.Mutex
	events []eventbus.Event
}

func (c *capturePublisher) Publish(_ context.Context, _ string, event eventbus.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.events = append(c.events, event)

	return nil
}

func (c *capturePublisher) triggered() []*events.WorkflowTriggered {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []*events.WorkflowTriggered

	for _, event := range c.events {
		if typed, isTriggered := event.(events.WorkflowTriggered); isTriggered {
			out = append(out, &typed)
		}
	}

	return out
}

type schedulerFixture struct {
	scheduler *Scheduler
	store     *file.Persistence
	publisher *capturePublisher
}

func newSchedulerFixture(t *testing.T, opts ...Option) *schedulerFixture {
	t.Helper()

	store, err := file.NewPersistence(t.TempDir())
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	publisher := &capturePublisher{}

	return &schedulerFixture{
		scheduler: NewScheduler(store, publisher, execlog.NewLogger(store, logger), logger, opts...),
		store:     store,
		publisher: publisher,
	}
}

func scheduleWorkflow(cron string) (*models.WorkflowDefinition, *models.Node) {
	node := &models.Node{
		ID:   "n-sched",
		Type: models.NodeTypeTrigger,
		Name: "every morning",
		Trigger: &models.TriggerConfig{
			Kind:     models.TriggerSchedule,
			Cron:     cron,
			Timezone: "UTC",
		},
	}

	workflow := &models.WorkflowDefinition{
		ID:             "wf-sched",
		OrganizationID: "org-1",
		Name:           "daily digest",
		IsActive:       true,
		Nodes:          []*models.Node{node},
	}

	return workflow, node
}

func TestScheduler_UpsertScheduleIsIdempotent(t *testing.T) {
	fixture := newSchedulerFixture(t)
	ctx := context.Background()

	workflow, node := scheduleWorkflow("0 9 * * *")

	require.NoError(t, fixture.scheduler.UpsertSchedule(ctx, workflow, node))

	first, err := fixture.store.ScheduleByNodeID(ctx, node.ID)
	require.NoError(t, err)
	require.NotNil(t, first.NextRunAt)
	assert.True(t, first.NextRunAt.After(time.Now().UTC()))

	// Second upsert with a changed spec updates the same record in place.
	node.Trigger.Cron = "30 18 * * *"
	require.NoError(t, fixture.scheduler.UpsertSchedule(ctx, workflow, node))

	second, err := fixture.store.ScheduleByNodeID(ctx, node.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "30 18 * * *", second.Cron)
}

func TestScheduler_UpsertScheduleRejectsInvalidSpec(t *testing.T) {
	fixture := newSchedulerFixture(t)

	workflow, node := scheduleWorkflow("not a cron")
	assert.Error(t, fixture.scheduler.UpsertSchedule(context.Background(), workflow, node))

	workflow, node = scheduleWorkflow("0 9 * * *")
	node.Trigger.Timezone = "Mars/Olympus"
	assert.Error(t, fixture.scheduler.UpsertSchedule(context.Background(), workflow, node))

	// Nothing was persisted for the rejected specs.
	_, err := fixture.store.ScheduleByNodeID(context.Background(), node.ID)
	assert.True(t, persistence.IsScheduleNotFound(err))
}

func TestScheduler_DispatchPublishesAndAdvances(t *testing.T) {
	fixture := newSchedulerFixture(t)
	ctx := context.Background()

	workflow, node := scheduleWorkflow("* * * * *")
	require.NoError(t, fixture.scheduler.UpsertSchedule(ctx, workflow, node))

	// Force the record due.
	record, err := fixture.store.ScheduleByNodeID(ctx, node.ID)
	require.NoError(t, err)

	past := time.Now().UTC().Add(-time.Minute)
	record.NextRunAt = &past
	require.NoError(t, fixture.store.SaveSchedule(ctx, record))

	fixture.scheduler.ProcessDueSchedules(ctx)

	triggered := fixture.publisher.triggered()
	require.Len(t, triggered, 1)
	assert.Equal(t, "wf-sched", triggered[0].WorkflowID)
	assert.Equal(t, node.ID, triggered[0].TriggerNodeID)
	assert.Equal(t, events.TriggerSourceSchedule, triggered[0].Source)
	assert.NotEmpty(t, triggered[0].ScheduleID)

	// The record advanced past now; a second poll fires nothing.
	advanced, err := fixture.store.ScheduleByNodeID(ctx, node.ID)
	require.NoError(t, err)
	assert.True(t, advanced.NextRunAt.After(time.Now().UTC()))
	assert.NotNil(t, advanced.LastRunAt)

	fixture.scheduler.ProcessDueSchedules(ctx)
	assert.Len(t, fixture.publisher.triggered(), 1)
}

func TestScheduler_ContinuationFiresOnceAndIsDeleted(t *testing.T) {
	fixture := newSchedulerFixture(t)
	ctx := context.Background()

	resumeAt := time.Now().UTC().Add(-time.Second)
	scope := map[string]any{"outcome": "pending"}

	require.NoError(t, fixture.scheduler.ScheduleContinuation(ctx,
		"wf-delay", "exec-1", "n-wait", "", resumeAt, scope))

	fixture.scheduler.ProcessDueSchedules(ctx)

	triggered := fixture.publisher.triggered()
	require.Len(t, triggered, 1)
	assert.Equal(t, events.TriggerSourceContinuation, triggered[0].Source)
	assert.Equal(t, "exec-1", triggered[0].ResumeExecutionID)
	assert.Equal(t, "n-wait", triggered[0].ResumeNodeID)
	assert.Equal(t, "pending", triggered[0].ResumeScope["outcome"])

	// One-shot: the record is gone and a second poll fires nothing.
	fixture.scheduler.ProcessDueSchedules(ctx)
	assert.Len(t, fixture.publisher.triggered(), 1)
}

func TestScheduler_MarkRunFailureBacksOffExponentially(t *testing.T) {
	fixture := newSchedulerFixture(t)
	ctx := context.Background()

	workflow, node := scheduleWorkflow("0 9 * * *")
	require.NoError(t, fixture.scheduler.UpsertSchedule(ctx, workflow, node))

	record, err := fixture.store.ScheduleByNodeID(ctx, node.ID)
	require.NoError(t, err)

	expectedDelays := []time.Duration{
		time.Minute, 2 * time.Minute, 4 * time.Minute, 8 * time.Minute,
	}

	for attempt, expected := range expectedDelays {
		before := time.Now().UTC()
		require.NoError(t, fixture.scheduler.MarkRunFailure(ctx, record.ID, "provider down"))

		updated, err := fixture.store.ScheduleByID(ctx, record.ID)
		require.NoError(t, err)
		assert.Equal(t, attempt+1, updated.RetryCount())

		delay := updated.NextRunAt.Sub(before)
		assert.InDelta(t, expected.Seconds(), delay.Seconds(), 5,
			"attempt %d should back off about %s", attempt+1, expected)
	}
}

func TestRetryDelayCapsAtMaximum(t *testing.T) {
	assert.Equal(t, time.Minute, retryDelay(1))
	assert.Equal(t, 2*time.Minute, retryDelay(2))
	assert.Equal(t, 32*time.Minute, retryDelay(6))
	assert.Equal(t, 6*time.Hour, retryDelay(10))
	assert.Equal(t, 6*time.Hour, retryDelay(100), "counter keeps incrementing but delay stays capped")
}

func TestScheduler_MarkRunSuccessRecomputesWithoutDrift(t *testing.T) {
	fixture := newSchedulerFixture(t)
	ctx := context.Background()

	workflow, node := scheduleWorkflow("0 9 * * *")
	require.NoError(t, fixture.scheduler.UpsertSchedule(ctx, workflow, node))

	record, err := fixture.store.ScheduleByNodeID(ctx, node.ID)
	require.NoError(t, err)

	// Seed retry state as if earlier runs failed.
	require.NoError(t, fixture.scheduler.MarkRunFailure(ctx, record.ID, "transient"))

	// The run fired at 09:00 and finished 20s later; the next occurrence is
	// 09:00 tomorrow, not 09:00:20.
	executedAt := time.Date(2025, 3, 10, 9, 0, 20, 0, time.UTC)
	require.NoError(t, fixture.scheduler.MarkRunSuccess(ctx, record.ID, executedAt))

	updated, err := fixture.store.ScheduleByID(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, updated.RetryCount())
	assert.Equal(t, time.Date(2025, 3, 11, 9, 0, 0, 0, time.UTC), updated.NextRunAt.UTC())
	assert.Equal(t, executedAt, updated.LastRunAt.UTC())
}

func TestScheduler_OutcomeRecomputeAnchorsOnFireInstant(t *testing.T) {
	fixture := newSchedulerFixture(t)
	ctx := context.Background()

	workflow, node := scheduleWorkflow("0 9 * * *")
	require.NoError(t, fixture.scheduler.UpsertSchedule(ctx, workflow, node))

	record, err := fixture.store.ScheduleByNodeID(ctx, node.ID)
	require.NoError(t, err)

	// Make the 09:00 occurrence due and dispatch it.
	occurrence := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	record.NextRunAt = &occurrence
	require.NoError(t, fixture.store.SaveSchedule(ctx, record))

	fixture.scheduler.ProcessDueSchedules(ctx)

	triggered := fixture.publisher.triggered()
	require.Len(t, triggered, 1)
	assert.Equal(t, occurrence, triggered[0].FiredAt.UTC(),
		"trigger carries the occurrence instant, not poll time")

	// The worker finishes some time later and echoes the fire instant on the
	// outcome. The next occurrence is 09:00 the following day; neither poll
	// latency nor run duration shifts it.
	completed := &events.WorkflowExecutionCompleted{
		BaseEvent:  events.NewBaseEvent(events.WorkflowExecutionCompletedEvent, workflow.ID),
		ScheduleID: triggered[0].ScheduleID,
		FiredAt:    triggered[0].FiredAt,
	}
	require.NoError(t, fixture.scheduler.handleCompleted(ctx, completed))

	updated, err := fixture.store.ScheduleByID(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 11, 9, 0, 0, 0, time.UTC), updated.NextRunAt.UTC())
	require.NotNil(t, updated.LastRunAt)
	assert.Equal(t, occurrence, updated.LastRunAt.UTC())
}

func TestScheduler_OutcomeHandlers(t *testing.T) {
	fixture := newSchedulerFixture(t)
	ctx := context.Background()

	workflow, node := scheduleWorkflow("0 9 * * *")
	require.NoError(t, fixture.scheduler.UpsertSchedule(ctx, workflow, node))

	record, err := fixture.store.ScheduleByNodeID(ctx, node.ID)
	require.NoError(t, err)

	failed := &events.WorkflowExecutionFailed{
		BaseEvent:  events.NewBaseEvent(events.WorkflowExecutionFailedEvent, workflow.ID),
		ScheduleID: record.ID,
		Error:      "smtp timeout",
	}
	require.NoError(t, fixture.scheduler.handleFailed(ctx, failed))

	afterFailure, err := fixture.store.ScheduleByID(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, afterFailure.RetryCount())

	completed := &events.WorkflowExecutionCompleted{
		BaseEvent:  events.NewBaseEvent(events.WorkflowExecutionCompletedEvent, workflow.ID),
		ScheduleID: record.ID,
	}
	require.NoError(t, fixture.scheduler.handleCompleted(ctx, completed))

	afterSuccess, err := fixture.store.ScheduleByID(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, afterSuccess.RetryCount())

	// Outcomes of event-triggered runs carry no schedule id and are ignored.
	require.NoError(t, fixture.scheduler.handleCompleted(ctx, &events.WorkflowExecutionCompleted{
		BaseEvent: events.NewBaseEvent(events.WorkflowExecutionCompletedEvent, workflow.ID),
	}))
}

func TestScheduler_RemoveWorkflowDeletesSchedules(t *testing.T) {
	fixture := newSchedulerFixture(t)
	ctx := context.Background()

	workflow, node := scheduleWorkflow("0 9 * * *")
	require.NoError(t, fixture.scheduler.UpsertSchedule(ctx, workflow, node))
	require.NoError(t, fixture.scheduler.ScheduleContinuation(ctx,
		workflow.ID, "exec-1", "n-wait", "", time.Now().UTC().Add(time.Hour), nil))

	require.NoError(t, fixture.scheduler.RemoveWorkflow(ctx, workflow.ID))

	_, err := fixture.store.ScheduleByNodeID(ctx, node.ID)
	assert.True(t, persistence.IsScheduleNotFound(err))

	due, err := fixture.store.DueSchedules(ctx, time.Now().UTC().Add(2*time.Hour), 10)
	require.NoError(t, err)
	assert.Empty(t, due)
}
