// Package dispatcher fans business events out to the workflows whose event
// triggers match them.
package dispatcher

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/flowhive/flowhive/pkg/eventbus"
	"github.com/flowhive/flowhive/pkg/events"
	"github.com/flowhive/flowhive/pkg/execlog"
	"github.com/flowhive/flowhive/pkg/models"
	"github.com/flowhive/flowhive/pkg/persistence"
)

// dedupeTTL bounds how long a (event, trigger) pair is remembered. Producers
// that retry inside this window do not double-trigger workflows.
const dedupeTTL = 24 * time.Hour

// Dispatcher matches incoming business events against active workflow
// definitions and publishes one WorkflowTriggered per match. Workflows are
// isolated from each other: one failed publish does not block the rest.
type Dispatcher struct {
	workflows persistence.WorkflowRepository
	publisher eventbus.EventPublisher
	matcher   *TriggerMatcher
	trail     *execlog.Logger
	logger    *slog.Logger

	// redis, when configured, deduplicates redelivered events. Nil disables
	// dedupe; at-least-once delivery then falls through to the consumers.
	redis *redis.Client
}

// NewDispatcher creates a dispatcher. redisClient may be nil.
func NewDispatcher(workflows persistence.WorkflowRepository, publisher eventbus.EventPublisher, trail *execlog.Logger, logger *slog.Logger, redisClient *redis.Client) *Dispatcher {
	return &Dispatcher{
		workflows: workflows,
		publisher: publisher,
		matcher:   NewTriggerMatcher(logger),
		trail:     trail,
		logger:    logger.With("module", "dispatcher"),
		redis:     redisClient,
	}
}

// Dispatch fans one business event out to every matching workflow trigger and
// returns how many triggers fired. Zero matches is a normal outcome. Publish
// failures are isolated per workflow; the first one is returned after all
// matches were attempted.
func (d *Dispatcher) Dispatch(ctx context.Context, event *models.BusinessEvent) (int, error) {
	definitions, err := d.workflows.Workflows(ctx, event.OrganizationID)
	if err != nil {
		return 0, fmt.Errorf("failed to load workflows for organization %s: %w", event.OrganizationID, err)
	}

	matches := d.matcher.MatchWorkflows(event, definitions)
	if len(matches) == 0 {
		return 0, nil
	}

	fired := 0

	var firstErr error

	for _, match := range matches {
		duplicate, err := d.isDuplicate(ctx, event, match)
		if err != nil {
			d.logger.Warn("Dedupe check failed, dispatching anyway",
				"workflow_id", match.Workflow.ID, "error", err)
		}

		if duplicate {
			d.logger.Info("Skipping duplicate trigger",
				"event_id", event.ID, "workflow_id", match.Workflow.ID, "node_id", match.TriggerNode.ID)

			continue
		}

		if err := d.fire(ctx, event, match); err != nil {
			d.logger.Error("Failed to trigger workflow",
				"workflow_id", match.Workflow.ID, "node_id", match.TriggerNode.ID, "error", err)

			if firstErr == nil {
				firstErr = err
			}

			continue
		}

		fired++
	}

	return fired, firstErr
}

func (d *Dispatcher) fire(ctx context.Context, event *models.BusinessEvent, match MatchResult) error {
	triggered := events.WorkflowTriggered{
		BaseEvent:     events.NewBaseEvent(events.WorkflowTriggeredEvent, match.Workflow.ID),
		TriggerNodeID: match.TriggerNode.ID,
		Source:        events.TriggerSourceEvent,
		TriggerData: map[string]any{
			"event_id":    event.ID,
			"category":    event.Category,
			"entity_type": event.EntityType,
			"action":      event.Action,
			"payload":     event.Payload,
		},
	}
	triggered.OrganizationID = event.OrganizationID

	if err := d.publisher.Publish(ctx, match.Workflow.ID, triggered); err != nil {
		return err
	}

	d.trail.Info(ctx, match.Workflow.ID, "", match.TriggerNode.ID, "Event trigger fired",
		map[string]any{
			"event_id": event.ID,
			"event":    event.Category + "." + event.EntityType + "." + event.Action,
		})

	return nil
}

// isDuplicate claims the (event, workflow, node) triple in redis. The first
// claim wins; redeliveries of the same producer event id inside the TTL lose.
func (d *Dispatcher) isDuplicate(ctx context.Context, event *models.BusinessEvent, match MatchResult) (bool, error) {
	if d.redis == nil || event.ID == "" {
		return false, nil
	}

	key := fmt.Sprintf("flowhive:dispatch:%s:%s:%s", event.ID, match.Workflow.ID, match.TriggerNode.ID)

	claimed, err := d.redis.SetNX(ctx, key, 1, dedupeTTL).Result()
	if err != nil {
		return false, err
	}

	return !claimed, nil
}
