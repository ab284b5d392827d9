// Package worker consumes trigger events and drives the executor.
package worker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/flowhive/flowhive/pkg/eventbus"
	"github.com/flowhive/flowhive/pkg/events"
	"github.com/flowhive/flowhive/pkg/execution"
	"github.com/flowhive/flowhive/pkg/persistence"
	"github.com/flowhive/flowhive/pkg/scheduler"
)

// Worker subscribes to WorkflowTriggered events, loads the workflow, and runs
// or resumes it. Delay suspensions turn into one-shot continuation schedules.
type Worker struct {
	workflows persistence.WorkflowRepository
	executor  *execution.Executor
	scheduler *scheduler.Scheduler
	bus       eventbus.EventBus
	logger    *slog.Logger
	workerID  string
}

// NewWorker creates a worker.
func NewWorker(workflows persistence.WorkflowRepository, executor *execution.Executor, sched *scheduler.Scheduler, bus eventbus.EventBus, logger *slog.Logger, workerID string) *Worker {
	return &Worker{
		workflows: workflows,
		executor:  executor,
		scheduler: sched,
		bus:       bus,
		logger:    logger.With("module", "worker", "worker_id", workerID),
		workerID:  workerID,
	}
}

// Start registers the trigger handler and begins consuming.
func (w *Worker) Start(ctx context.Context) error {
	if err := w.bus.Handle(events.WorkflowTriggeredEvent, w.handleTriggered); err != nil {
		return err
	}

	w.logger.Info("Worker started")

	return w.bus.Subscribe(ctx)
}

// handleTriggered runs one workflow in response to a trigger event. Execution
// failures are terminal for this delivery: the executor has already published
// the failure outcome, so the message is acked rather than redelivered.
func (w *Worker) handleTriggered(ctx context.Context, event any) error {
	triggered, ok := event.(*events.WorkflowTriggered)
	if !ok {
		return fmt.Errorf("unexpected event payload %T", event)
	}

	logger := w.logger.With("workflow_id", triggered.WorkflowID, "source", triggered.Source)

	workflow, err := w.workflows.WorkflowByID(ctx, triggered.WorkflowID)
	if err != nil {
		if persistence.IsWorkflowNotFound(err) {
			logger.Warn("Workflow no longer exists, dropping trigger")

			return nil
		}

		// Store trouble: let the bus redeliver.
		return fmt.Errorf("failed to load workflow %s: %w", triggered.WorkflowID, err)
	}

	if !workflow.IsActive || workflow.DeletedAt != nil {
		logger.Info("Workflow is inactive, dropping trigger")

		return nil
	}

	var result *execution.Result

	if triggered.ResumeNodeID != "" {
		result, err = w.executor.Resume(ctx, workflow, execution.ResumeOptions{
			ExecutionID: triggered.ResumeExecutionID,
			NodeID:      triggered.ResumeNodeID,
			Branch:      triggered.ResumeBranch,
			Scope:       triggered.ResumeScope,
		})
	} else {
		result, err = w.executor.Execute(ctx, workflow, execution.ExecOptions{
			TriggerNodeID: triggered.TriggerNodeID,
			TriggerData:   triggered.TriggerData,
			ScheduleID:    triggered.ScheduleID,
			FiredAt:       triggered.FiredAt,
		})
	}

	if err != nil {
		logger.Error("Workflow run failed", "error", err)

		return nil
	}

	if result.Suspension != nil && result.Suspension.Kind == execution.SuspendDelay {
		if err := w.scheduler.ScheduleContinuation(ctx,
			workflow.ID,
			result.ExecutionID,
			result.Suspension.NodeID,
			result.Suspension.ResumeBranch,
			result.Suspension.ResumeAt,
			result.Suspension.Scope,
		); err != nil {
			logger.Error("Failed to schedule delay continuation",
				"execution_id", result.ExecutionID, "error", err)

			return err
		}
	}

	logger.Info("Workflow run finished",
		"execution_id", result.ExecutionID, "status", result.Status)

	return nil
}
