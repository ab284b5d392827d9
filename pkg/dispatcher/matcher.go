package dispatcher

import (
	"fmt"
	"log/slog"

	"github.com/xeipuuv/gojsonschema"

	"github.com/flowhive/flowhive/pkg/models"
)

// TriggerMatcher matches business events against the event-trigger nodes of
// workflow definitions.
type TriggerMatcher struct {
	logger *slog.Logger
}

// MatchResult is one workflow trigger node a business event activates.
type MatchResult struct {
	Workflow    *models.WorkflowDefinition
	TriggerNode *models.Node
}

// NewTriggerMatcher creates a trigger matcher.
func NewTriggerMatcher(logger *slog.Logger) *TriggerMatcher {
	return &TriggerMatcher{
		logger: logger.With("module", "trigger_matcher"),
	}
}

// MatchWorkflows finds every (workflow, trigger node) pair the event activates.
// Inactive and soft-deleted workflows never match. A matching error in one
// workflow is logged and does not affect the others.
func (tm *TriggerMatcher) MatchWorkflows(event *models.BusinessEvent, workflows []*models.WorkflowDefinition) []MatchResult {
	var results []MatchResult

	for _, workflow := range workflows {
		if !workflow.IsActive || workflow.DeletedAt != nil {
			continue
		}

		for _, node := range workflow.TriggerNodes() {
			matched, err := tm.matchTrigger(event, node)
			if err != nil {
				tm.logger.Warn("Trigger matching failed, skipping node",
					"workflow_id", workflow.ID, "node_id", node.ID, "error", err)

				continue
			}

			if matched {
				results = append(results, MatchResult{Workflow: workflow, TriggerNode: node})
			}
		}
	}

	tm.logger.Debug("Completed trigger matching",
		"category", event.Category,
		"entity_type", event.EntityType,
		"action", event.Action,
		"matches_found", len(results))

	return results
}

// matchTrigger checks one trigger node against the event: the
// category/entity/action triple must match exactly, then the optional payload
// filters and JSON schema apply.
func (tm *TriggerMatcher) matchTrigger(event *models.BusinessEvent, node *models.Node) (bool, error) {
	cfg := node.Trigger
	if cfg == nil || cfg.Kind != models.TriggerEvent {
		return false, nil
	}

	if cfg.EventCategory != event.Category ||
		cfg.EntityType != event.EntityType ||
		cfg.EventAction != event.Action {
		return false, nil
	}

	if !matchFilters(cfg.Filters, event.Payload) {
		return false, nil
	}

	if len(cfg.PayloadSchema) > 0 {
		return matchSchema(cfg.PayloadSchema, event.Payload)
	}

	return true, nil
}

// matchFilters applies exact-match filters: every filter key must be present
// in the payload with an equal value.
func matchFilters(filters map[string]any, payload map[string]any) bool {
	for key, expected := range filters {
		actual, exists := payload[key]
		if !exists {
			return false
		}

		if fmt.Sprintf("%v", actual) != fmt.Sprintf("%v", expected) {
			return false
		}
	}

	return true
}

// matchSchema validates the payload against the trigger's JSON schema.
func matchSchema(schema map[string]any, payload map[string]any) (bool, error) {
	result, err := gojsonschema.Validate(
		gojsonschema.NewGoLoader(schema),
		gojsonschema.NewGoLoader(payload),
	)
	if err != nil {
		return false, fmt.Errorf("payload schema validation failed: %w", err)
	}

	return result.Valid(), nil
}
