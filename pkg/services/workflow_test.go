package services

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowhive/flowhive/pkg/eventbus"
	"github.com/flowhive/flowhive/pkg/execlog"
	"github.com/flowhive/flowhive/pkg/models"
	"github.com/flowhive/flowhive/pkg/persistence"
	"github.com/flowhive/flowhive/pkg/persistence/file"
	"github.com/flowhive/flowhive/pkg/scheduler"
)

type nullPublisher struct {
	mu sync.Mutex
	n  int
}

func (p *nullPublisher) Publish(context.Context, string, eventbus.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.n++

	return nil
}

type serviceFixture struct {
	workflows *Workflow
	templates *Template
	store     *file.Persistence
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()

	store, err := file.NewPersistence(t.TempDir())
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sched := scheduler.NewScheduler(store, &nullPublisher{}, execlog.NewLogger(store, logger), logger)

	return &serviceFixture{
		workflows: NewWorkflow(store, sched, validator.New()),
		templates: NewTemplate(store),
		store:     store,
	}
}

func validWorkflow() *models.WorkflowDefinition {
	return &models.WorkflowDefinition{
		OrganizationID: "org-1",
		Name:           "daily digest",
		IsActive:       true,
		Nodes: []*models.Node{
			{
				ID:   "n-trigger",
				Type: models.NodeTypeTrigger,
				Name: "every morning",
				Trigger: &models.TriggerConfig{
					Kind: models.TriggerSchedule,
					Cron: "0 9 * * *",
				},
			},
			{
				ID:        "n-digest",
				Type:      models.NodeTypeTransform,
				Name:      "build digest",
				Transform: &models.TransformConfig{Expression: `"digest"`, OutputVariable: "digest"},
			},
		},
		Connections: []*models.Connection{
			{ID: "c1", FromNodeID: "n-trigger", ToNodeID: "n-digest"},
		},
	}
}

func TestWorkflow_CreateSyncsSchedules(t *testing.T) {
	fixture := newServiceFixture(t)
	ctx := context.Background()

	created, err := fixture.workflows.Create(ctx, validWorkflow())
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)

	record, err := fixture.store.ScheduleByNodeID(ctx, "n-trigger")
	require.NoError(t, err)
	assert.Equal(t, created.ID, record.WorkflowID)
	assert.True(t, record.IsActive)
	require.NotNil(t, record.NextRunAt)
	assert.True(t, record.NextRunAt.After(time.Now().UTC()))
}

func TestWorkflow_CreateRejectsInvalidDefinitions(t *testing.T) {
	fixture := newServiceFixture(t)
	ctx := context.Background()

	noTrigger := validWorkflow()
	noTrigger.Nodes = noTrigger.Nodes[1:]
	noTrigger.Connections = nil

	_, err := fixture.workflows.Create(ctx, noTrigger)
	assert.ErrorIs(t, err, ErrTriggerNodeRequired)

	unnamed := validWorkflow()
	unnamed.Name = ""
	_, err = fixture.workflows.Create(ctx, unnamed)
	assert.ErrorIs(t, err, ErrWorkflowNameRequired)

	// A cycle not bounded by a loop body must be rejected.
	cyclic := validWorkflow()
	cyclic.Connections = append(cyclic.Connections,
		&models.Connection{ID: "c-back", FromNodeID: "n-digest", ToNodeID: "n-digest"})
	_, err = fixture.workflows.Create(ctx, cyclic)
	assert.ErrorIs(t, err, models.ErrDefinitionInvalid)

	badCron := validWorkflow()
	badCron.Nodes[0].Trigger.Cron = "every now and then"
	_, err = fixture.workflows.Create(ctx, badCron)
	assert.Error(t, err, "invalid cron must fail the save, not the fire")
}

func TestWorkflow_UpdateResyncsSchedule(t *testing.T) {
	fixture := newServiceFixture(t)
	ctx := context.Background()

	created, err := fixture.workflows.Create(ctx, validWorkflow())
	require.NoError(t, err)

	changed := validWorkflow()
	changed.Nodes[0].Trigger.Cron = "30 18 * * *"

	_, err = fixture.workflows.Update(ctx, created.ID, changed)
	require.NoError(t, err)

	record, err := fixture.store.ScheduleByNodeID(ctx, "n-trigger")
	require.NoError(t, err)
	assert.Equal(t, "30 18 * * *", record.Cron)
}

func TestWorkflow_DeleteSoftDeletesAndRemovesSchedules(t *testing.T) {
	fixture := newServiceFixture(t)
	ctx := context.Background()

	created, err := fixture.workflows.Create(ctx, validWorkflow())
	require.NoError(t, err)

	require.NoError(t, fixture.workflows.Delete(ctx, created.ID))

	_, err = fixture.workflows.FetchByID(ctx, created.ID)
	assert.ErrorIs(t, err, ErrWorkflowNotFound)

	_, err = fixture.store.ScheduleByNodeID(ctx, "n-trigger")
	assert.True(t, persistence.IsScheduleNotFound(err))

	// The raw record still exists, soft-deleted.
	raw, err := fixture.store.WorkflowByID(ctx, created.ID)
	require.NoError(t, err)
	assert.NotNil(t, raw.DeletedAt)

	listed, err := fixture.workflows.List(ctx, "org-1")
	require.NoError(t, err)
	assert.Empty(t, listed)
}

func TestWorkflow_SetActiveTogglesSchedules(t *testing.T) {
	fixture := newServiceFixture(t)
	ctx := context.Background()

	created, err := fixture.workflows.Create(ctx, validWorkflow())
	require.NoError(t, err)

	_, err = fixture.workflows.SetActive(ctx, created.ID, false)
	require.NoError(t, err)

	record, err := fixture.store.ScheduleByNodeID(ctx, "n-trigger")
	require.NoError(t, err)
	assert.False(t, record.IsActive)
}

func TestTemplate_LockedTemplateCannotBeUpdated(t *testing.T) {
	fixture := newServiceFixture(t)
	ctx := context.Background()

	locked := &models.ActionTemplate{
		ID:             "tpl-locked",
		OrganizationID: "org-1",
		Name:           "compliance notice",
		Channel:        models.ChannelEmail,
		Subject:        "Official",
		Body:           "Do not change",
		IsLocked:       true,
	}
	require.NoError(t, fixture.store.SaveTemplate(ctx, locked))

	_, err := fixture.templates.Update(ctx, "org-1", "tpl-locked", "hacked", "hacked")
	assert.ErrorIs(t, err, ErrTemplateLocked)
}

func TestTemplate_CreateRejectsReservedPrefix(t *testing.T) {
	fixture := newServiceFixture(t)

	_, err := fixture.templates.Create(context.Background(), &models.ActionTemplate{
		ID:             "sys.fake",
		OrganizationID: "org-1",
		Name:           "imposter",
		Channel:        models.ChannelEmail,
	})
	assert.ErrorIs(t, err, ErrReservedPrefix)
}
