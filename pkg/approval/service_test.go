package approval

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

func (c *capturePublisher) resumeTriggers() []*events.WorkflowTriggered {
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

func newServiceFixture(t *testing.T, approval *models.PendingApproval) (*Service, *file.Persistence, *capturePublisher) {
	t.Helper()

	store, err := file.NewPersistence(t.TempDir())
	require.NoError(t, err)

	if approval != nil {
		require.NoError(t, store.SaveApproval(context.Background(), approval))
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	publisher := &capturePublisher{}

	return NewService(store, publisher, execlog.NewLogger(store, logger), logger), store, publisher
}

func pendingApproval() *models.PendingApproval {
	now := time.Now().UTC()

	return &models.PendingApproval{
		Token:          "tok-1",
		WorkflowID:     "wf-1",
		OrganizationID: "org-1",
		ExecutionID:    "exec-1",
		NodeID:         "n-approve",
		Approvers:      []string{"manager@example.com"},
		Scope:          map[string]any{"amount": float64(900)},
		Status:         models.ApprovalPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func TestService_DecideApprove(t *testing.T) {
	service, store, publisher := newServiceFixture(t, pendingApproval())

	decided, err := service.Decide(context.Background(), "tok-1", true, "manager@example.com")
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalApproved, decided.Status)
	assert.Equal(t, "manager@example.com", decided.DecidedBy)

	stored, err := store.ApprovalByToken(context.Background(), "tok-1")
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalApproved, stored.Status)

	resumes := publisher.resumeTriggers()
	require.Len(t, resumes, 1)
	assert.Equal(t, events.TriggerSourceApproval, resumes[0].Source)
	assert.Equal(t, models.BranchApproved, resumes[0].ResumeBranch)
	assert.Equal(t, "exec-1", resumes[0].ResumeExecutionID)
	assert.Equal(t, "n-approve", resumes[0].ResumeNodeID)
	assert.Equal(t, float64(900), resumes[0].ResumeScope["amount"])
}

func TestService_DecideReject(t *testing.T) {
	service, _, publisher := newServiceFixture(t, pendingApproval())

	decided, err := service.Decide(context.Background(), "tok-1", false, "manager@example.com")
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalRejected, decided.Status)

	resumes := publisher.resumeTriggers()
	require.Len(t, resumes, 1)
	assert.Equal(t, models.BranchRejected, resumes[0].ResumeBranch)
}

func TestService_DecideTwiceFails(t *testing.T) {
	service, _, publisher := newServiceFixture(t, pendingApproval())

	_, err := service.Decide(context.Background(), "tok-1", true, "manager@example.com")
	require.NoError(t, err)

	_, err = service.Decide(context.Background(), "tok-1", false, "other@example.com")
	assert.ErrorIs(t, err, ErrAlreadyDecided)

	// No second resume was published.
	assert.Len(t, publisher.resumeTriggers(), 1)
}

func TestService_DecideExpired(t *testing.T) {
	approval := pendingApproval()
	expiresAt := time.Now().UTC().Add(-time.Minute)
	approval.ExpiresAt = &expiresAt

	service, store, publisher := newServiceFixture(t, approval)

	_, err := service.Decide(context.Background(), "tok-1", true, "manager@example.com")
	assert.ErrorIs(t, err, ErrExpired)

	stored, err := store.ApprovalByToken(context.Background(), "tok-1")
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalExpired, stored.Status)
	assert.Empty(t, publisher.resumeTriggers())
}

func TestService_UnknownToken(t *testing.T) {
	service, _, _ := newServiceFixture(t, nil)

	_, err := service.Decide(context.Background(), "missing", true, "manager@example.com")
	assert.True(t, persistence.IsApprovalNotFound(err))
}
