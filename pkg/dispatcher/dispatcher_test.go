package dispatcher

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

func eventTriggerWorkflow(id string, active bool, trigger *models.TriggerConfig) *models.WorkflowDefinition {
	return &models.WorkflowDefinition{
		ID:             id,
		OrganizationID: "org-1",
		Name:           "workflow " + id,
		IsActive:       active,
		Nodes: []*models.Node{
			{ID: id + "-trigger", Type: models.NodeTypeTrigger, Name: "on event", Trigger: trigger},
		},
	}
}

func taskCreatedTrigger() *models.TriggerConfig {
	return &models.TriggerConfig{
		Kind:          models.TriggerEvent,
		EventCategory: "project",
		EntityType:    "task",
		EventAction:   "created",
	}
}

func newDispatcherFixture(t *testing.T, workflows ...*models.WorkflowDefinition) (*Dispatcher, *capturePublisher) {
	t.Helper()

	store, err := file.NewPersistence(t.TempDir())
	require.NoError(t, err)

	for _, workflow := range workflows {
		require.NoError(t, store.SaveWorkflow(context.Background(), workflow))
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	publisher := &capturePublisher{}

	return NewDispatcher(store, publisher, execlog.NewLogger(store, logger), logger, nil), publisher
}

func taskCreatedEvent(payload map[string]any) *models.BusinessEvent {
	return &models.BusinessEvent{
		ID:             "evt-1",
		OrganizationID: "org-1",
		Category:       "project",
		EntityType:     "task",
		Action:         "created",
		Payload:        payload,
		OccurredAt:     time.Now().UTC(),
	}
}

func TestDispatcher_FansOutToAllMatches(t *testing.T) {
	dispatcher, publisher := newDispatcherFixture(t,
		eventTriggerWorkflow("wf-a", true, taskCreatedTrigger()),
		eventTriggerWorkflow("wf-b", true, taskCreatedTrigger()),
		eventTriggerWorkflow("wf-inactive", false, taskCreatedTrigger()),
		eventTriggerWorkflow("wf-other", true, &models.TriggerConfig{
			Kind:          models.TriggerEvent,
			EventCategory: "crm",
			EntityType:    "contact",
			EventAction:   "created",
		}),
	)

	fired, err := dispatcher.Dispatch(context.Background(), taskCreatedEvent(map[string]any{"priority": "high"}))
	require.NoError(t, err)
	assert.Equal(t, 2, fired)

	triggered := publisher.triggered()
	require.Len(t, triggered, 2)

	workflowIDs := []string{triggered[0].WorkflowID, triggered[1].WorkflowID}
	assert.ElementsMatch(t, []string{"wf-a", "wf-b"}, workflowIDs)

	for _, event := range triggered {
		assert.Equal(t, events.TriggerSourceEvent, event.Source)
		assert.Equal(t, "org-1", event.OrganizationID)

		payload, isMap := event.TriggerData["payload"].(map[string]any)
		require.True(t, isMap)
		assert.Equal(t, "high", payload["priority"])
	}
}

func TestDispatcher_ZeroMatchesIsNormal(t *testing.T) {
	dispatcher, publisher := newDispatcherFixture(t,
		eventTriggerWorkflow("wf-a", true, taskCreatedTrigger()),
	)

	event := taskCreatedEvent(nil)
	event.Action = "archived"

	fired, err := dispatcher.Dispatch(context.Background(), event)
	require.NoError(t, err)
	assert.Zero(t, fired)
	assert.Empty(t, publisher.triggered())
}

func TestDispatcher_ExactMatchFilters(t *testing.T) {
	trigger := taskCreatedTrigger()
	trigger.Filters = map[string]any{"priority": "high", "team": "platform"}

	dispatcher, publisher := newDispatcherFixture(t,
		eventTriggerWorkflow("wf-filtered", true, trigger),
	)

	testCases := []struct {
		name     string
		payload  map[string]any
		expected int
	}{
		{
			name:     "all filters match",
			payload:  map[string]any{"priority": "high", "team": "platform", "extra": "ignored"},
			expected: 1,
		},
		{
			name:     "one filter differs",
			payload:  map[string]any{"priority": "low", "team": "platform"},
			expected: 0,
		},
		{
			name:     "filter key missing",
			payload:  map[string]any{"priority": "high"},
			expected: 0,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			before := len(publisher.triggered())

			event := taskCreatedEvent(tc.payload)
			event.ID = "evt-" + tc.name

			fired, err := dispatcher.Dispatch(context.Background(), event)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, fired)
			assert.Len(t, publisher.triggered(), before+tc.expected)
		})
	}
}

func TestDispatcher_PayloadSchemaFilter(t *testing.T) {
	trigger := taskCreatedTrigger()
	trigger.PayloadSchema = map[string]any{
		"type":     "object",
		"required": []any{"amount"},
		"properties": map[string]any{
			"amount": map[string]any{"type": "number", "minimum": 100},
		},
	}

	dispatcher, _ := newDispatcherFixture(t,
		eventTriggerWorkflow("wf-schema", true, trigger),
	)

	fired, err := dispatcher.Dispatch(context.Background(), taskCreatedEvent(map[string]any{"amount": 250}))
	require.NoError(t, err)
	assert.Equal(t, 1, fired)

	fired, err = dispatcher.Dispatch(context.Background(), taskCreatedEvent(map[string]any{"amount": 10}))
	require.NoError(t, err)
	assert.Zero(t, fired)

	fired, err = dispatcher.Dispatch(context.Background(), taskCreatedEvent(map[string]any{"other": true}))
	require.NoError(t, err)
	assert.Zero(t, fired)
}

func TestDispatcher_SoftDeletedWorkflowNeverMatches(t *testing.T) {
	workflow := eventTriggerWorkflow("wf-deleted", true, taskCreatedTrigger())
	deletedAt := time.Now().UTC()
	workflow.DeletedAt = &deletedAt

	dispatcher, publisher := newDispatcherFixture(t, workflow)

	fired, err := dispatcher.Dispatch(context.Background(), taskCreatedEvent(nil))
	require.NoError(t, err)
	assert.Zero(t, fired)
	assert.Empty(t, publisher.triggered())
}

func TestMatchFilters(t *testing.T) {
	assert.True(t, matchFilters(nil, map[string]any{"a": 1}))
	assert.True(t, matchFilters(map[string]any{"a": 1}, map[string]any{"a": 1, "b": 2}))
	// JSON round-trips turn ints into float64; filters still match by value.
	assert.True(t, matchFilters(map[string]any{"a": float64(1)}, map[string]any{"a": 1}))
	assert.False(t, matchFilters(map[string]any{"a": 1}, map[string]any{"a": 2}))
	assert.False(t, matchFilters(map[string]any{"a": 1}, map[string]any{}))
}
