package worker

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
	"github.com/flowhive/flowhive/pkg/execution"
	"github.com/flowhive/flowhive/pkg/expression"
	"github.com/flowhive/flowhive/pkg/models"
	"github.com/flowhive/flowhive/pkg/notify"
	"github.com/flowhive/flowhive/pkg/persistence/file"
	"github.com/flowhive/flowhive/pkg/scheduler"
	"github.com/flowhive/flowhive/pkg/template"
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

func (c *capturePublisher) byType(eventType events.EventType) []eventbus.Event {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []eventbus.Event

	for _, event := range c.events {
		if event.GetType() == eventType {
			out = append(out, event)
		}
	}

	return out
}

type workerFixture struct {
	worker    *Worker
	store     *file.Persistence
	publisher *capturePublisher
}

func newWorkerFixture(t *testing.T) *workerFixture {
	t.Helper()

	store, err := file.NewPersistence(t.TempDir())
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	trail := execlog.NewLogger(store, logger)
	publisher := &capturePublisher{}

	executor := execution.NewExecutor(execution.Config{
		Expressions: expression.NewEngine(),
		Templates:   template.NewResolver(store, nil),
		Sender:      notify.NewLogSender(logger),
		Records:     notify.NewMemoryRecords(),
		Approvals:   store,
		Trail:       trail,
		Publisher:   publisher,
		Logger:      logger,
		WorkerID:    "worker-test",
	})

	sched := scheduler.NewScheduler(store, publisher, trail, logger)

	return &workerFixture{
		worker:    NewWorker(store, executor, sched, nil, logger, "worker-test"),
		store:     store,
		publisher: publisher,
	}
}

func delayWorkflow() *models.WorkflowDefinition {
	return &models.WorkflowDefinition{
		ID:             "wf-delay",
		OrganizationID: "org-1",
		Name:           "pause then mark",
		IsActive:       true,
		Nodes: []*models.Node{
			{
				ID:      "n-trigger",
				Type:    models.NodeTypeTrigger,
				Name:    "start",
				Trigger: &models.TriggerConfig{Kind: models.TriggerSchedule, Cron: "0 9 * * *"},
			},
			{
				ID:    "n-wait",
				Type:  models.NodeTypeDelay,
				Name:  "cool off",
				Delay: &models.DelayConfig{DurationSeconds: 7200},
			},
			{
				ID:        "n-mark",
				Type:      models.NodeTypeTransform,
				Name:      "mark",
				Transform: &models.TransformConfig{Expression: `"done"`, OutputVariable: "mark"},
			},
		},
		Connections: []*models.Connection{
			{ID: "c1", FromNodeID: "n-trigger", ToNodeID: "n-wait"},
			{ID: "c2", FromNodeID: "n-wait", ToNodeID: "n-mark"},
		},
	}
}

func simpleWorkflow() *models.WorkflowDefinition {
	workflow := delayWorkflow()
	workflow.ID = "wf-simple"
	workflow.Nodes = []*models.Node{workflow.Nodes[0], workflow.Nodes[2]}
	workflow.Connections = []*models.Connection{
		{ID: "c1", FromNodeID: "n-trigger", ToNodeID: "n-mark"},
	}

	return workflow
}

func TestWorker_HandleTriggeredExecutes(t *testing.T) {
	fixture := newWorkerFixture(t)
	ctx := context.Background()

	require.NoError(t, fixture.store.SaveWorkflow(ctx, simpleWorkflow()))

	firedAt := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

	trigger := &events.WorkflowTriggered{
		BaseEvent:     events.NewBaseEvent(events.WorkflowTriggeredEvent, "wf-simple"),
		TriggerNodeID: "n-trigger",
		Source:        events.TriggerSourceSchedule,
		ScheduleID:    "sched-1",
		FiredAt:       firedAt,
	}

	require.NoError(t, fixture.worker.handleTriggered(ctx, trigger))

	published := fixture.publisher.byType(events.WorkflowExecutionCompletedEvent)
	require.Len(t, published, 1)

	completed, isCompleted := published[0].(events.WorkflowExecutionCompleted)
	require.True(t, isCompleted)
	assert.Equal(t, "sched-1", completed.ScheduleID)
	assert.Equal(t, firedAt, completed.FiredAt, "outcome echoes the fire instant for the recompute anchor")
}

func TestWorker_UnknownWorkflowIsDropped(t *testing.T) {
	fixture := newWorkerFixture(t)

	trigger := &events.WorkflowTriggered{
		BaseEvent:     events.NewBaseEvent(events.WorkflowTriggeredEvent, "wf-gone"),
		TriggerNodeID: "n-trigger",
	}

	// No workflow stored: the trigger is acked, not redelivered forever.
	assert.NoError(t, fixture.worker.handleTriggered(context.Background(), trigger))
	assert.Empty(t, fixture.publisher.events)
}

func TestWorker_InactiveWorkflowIsDropped(t *testing.T) {
	fixture := newWorkerFixture(t)
	ctx := context.Background()

	inactive := simpleWorkflow()
	inactive.IsActive = false
	require.NoError(t, fixture.store.SaveWorkflow(ctx, inactive))

	trigger := &events.WorkflowTriggered{
		BaseEvent:     events.NewBaseEvent(events.WorkflowTriggeredEvent, inactive.ID),
		TriggerNodeID: "n-trigger",
	}

	require.NoError(t, fixture.worker.handleTriggered(ctx, trigger))
	assert.Empty(t, fixture.publisher.byType(events.WorkflowExecutionCompletedEvent))
}

func TestWorker_DelaySuspensionSchedulesContinuation(t *testing.T) {
	fixture := newWorkerFixture(t)
	ctx := context.Background()

	require.NoError(t, fixture.store.SaveWorkflow(ctx, delayWorkflow()))

	trigger := &events.WorkflowTriggered{
		BaseEvent:     events.NewBaseEvent(events.WorkflowTriggeredEvent, "wf-delay"),
		TriggerNodeID: "n-trigger",
		Source:        events.TriggerSourceSchedule,
	}

	require.NoError(t, fixture.worker.handleTriggered(ctx, trigger))

	suspended := fixture.publisher.byType(events.WorkflowExecutionSuspendedEvent)
	require.Len(t, suspended, 1)

	// A one-shot continuation schedule now exists, due in about two hours.
	due, err := fixture.store.DueSchedules(ctx, time.Now().UTC().Add(3*time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "wf-delay", due[0].WorkflowID)
	assert.InDelta(t, time.Until(*due[0].NextRunAt).Hours(), 2.0, 0.1)
}
