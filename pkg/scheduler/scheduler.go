// Package scheduler owns schedule records: it keeps one precomputed
// next-fire-time record per schedulable node, polls for due records, and
// publishes trigger events for workers to pick up.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"

	"github.com/flowhive/flowhive/pkg/eventbus"
	"github.com/flowhive/flowhive/pkg/events"
	"github.com/flowhive/flowhive/pkg/execlog"
	"github.com/flowhive/flowhive/pkg/models"
	"github.com/flowhive/flowhive/pkg/persistence"
	"github.com/flowhive/flowhive/pkg/schedule"
)

const (
	defaultPollInterval = 30 * time.Second
	defaultBatchLimit   = 100

	// Retry backoff: baseRetryDelay doubles per consecutive failure, capped at
	// maxRetryDelay. The counter keeps incrementing so the cap keeps applying.
	baseRetryDelay = time.Minute
	maxRetryDelay  = 6 * time.Hour
)

// versionConflictBackoff drives re-reads when two schedulers race on a record.
func versionConflictBackoff() retry.Backoff {
	return retry.WithMaxRetries(3, retry.NewConstant(50*time.Millisecond))
}

// Scheduler polls due schedule records and publishes WorkflowTriggered events.
type Scheduler struct {
	store     persistence.ScheduleStore
	publisher eventbus.EventPublisher
	trail     *execlog.Logger
	logger    *slog.Logger

	pollInterval time.Duration
	batchLimit   int

	ticker  *time.Ticker
	done    chan bool
	started bool
	mu      sync.RWMutex
}

// Option adjusts scheduler construction.
type Option func(*Scheduler)

// WithPollInterval overrides the poll cadence.
func WithPollInterval(interval time.Duration) Option {
	return func(s *Scheduler) { s.pollInterval = interval }
}

// WithBatchLimit caps how many due records one poll dispatches.
func WithBatchLimit(limit int) Option {
	return func(s *Scheduler) { s.batchLimit = limit }
}

// NewScheduler creates a scheduler over the given store and publisher.
func NewScheduler(store persistence.ScheduleStore, publisher eventbus.EventPublisher, trail *execlog.Logger, logger *slog.Logger, opts ...Option) *Scheduler {
	scheduler := &Scheduler{
		store:        store,
		publisher:    publisher,
		trail:        trail,
		logger:       logger.With("module", "scheduler"),
		pollInterval: defaultPollInterval,
		batchLimit:   defaultBatchLimit,
	}

	for _, opt := range opts {
		opt(scheduler)
	}

	return scheduler
}

// UpsertSchedule creates or updates the schedule record for one schedule
// trigger node. The operation is idempotent by node id: repeated upserts with
// the same spec leave a single record. Invalid specs are rejected here,
// synchronously, so definition errors surface to the caller saving the
// workflow.
func (s *Scheduler) UpsertSchedule(ctx context.Context, workflow *models.WorkflowDefinition, node *models.Node) error {
	if node.Type != models.NodeTypeTrigger || node.Trigger == nil || node.Trigger.Kind != models.TriggerSchedule {
		return fmt.Errorf("node %s is not a schedule trigger", node.ID)
	}

	spec := schedule.Spec{Cron: node.Trigger.Cron, Frequency: node.Trigger.Frequency}
	if err := schedule.Validate(spec, node.Trigger.Timezone); err != nil {
		return err
	}

	next, err := schedule.NextFireTime(spec, node.Trigger.Timezone, time.Now().UTC())
	if err != nil {
		return err
	}

	now := time.Now().UTC()

	existing, err := s.store.ScheduleByNodeID(ctx, node.ID)

	switch {
	case err == nil:
		return s.update(ctx, existing.ID, func(record *models.ScheduleRecord) error {
			record.WorkflowID = workflow.ID
			record.Cron = node.Trigger.Cron
			record.Frequency = node.Trigger.Frequency
			record.Timezone = node.Trigger.Timezone
			record.StartAt = node.Trigger.StartAt
			record.EndAt = node.Trigger.EndAt
			record.IsActive = workflow.IsActive
			record.NextRunAt = &next
			record.UpdatedAt = time.Now().UTC()

			return nil
		})

	case persistence.IsScheduleNotFound(err):
		record := &models.ScheduleRecord{
			ID:         "sched-" + uuid.New().String(),
			WorkflowID: workflow.ID,
			NodeID:     node.ID,
			Cron:       node.Trigger.Cron,
			Frequency:  node.Trigger.Frequency,
			Timezone:   node.Trigger.Timezone,
			StartAt:    node.Trigger.StartAt,
			EndAt:      node.Trigger.EndAt,
			IsActive:   workflow.IsActive,
			NextRunAt:  &next,
			CreatedAt:  now,
			UpdatedAt:  now,
		}

		return s.store.SaveSchedule(ctx, record)

	default:
		return fmt.Errorf("failed to look up schedule for node %s: %w", node.ID, err)
	}
}

// SyncWorkflow upserts schedule records for every schedule trigger in the
// workflow. Called after workflow create and update.
func (s *Scheduler) SyncWorkflow(ctx context.Context, workflow *models.WorkflowDefinition) error {
	for _, node := range workflow.TriggerNodes() {
		if node.Trigger == nil || node.Trigger.Kind != models.TriggerSchedule {
			continue
		}

		if err := s.UpsertSchedule(ctx, workflow, node); err != nil {
			return fmt.Errorf("failed to sync schedule for node %s: %w", node.ID, err)
		}
	}

	return nil
}

// RemoveWorkflow deletes every schedule record owned by the workflow,
// including in-flight continuations. Called on workflow deletion.
func (s *Scheduler) RemoveWorkflow(ctx context.Context, workflowID string) error {
	return s.store.DeleteSchedulesByWorkflowID(ctx, workflowID)
}

// ScheduleContinuation creates a one-shot record that fires at resumeAt and
// resumes a suspended execution. The record is deleted after dispatch.
func (s *Scheduler) ScheduleContinuation(ctx context.Context, workflowID, executionID, nodeID, branch string, resumeAt time.Time, scope map[string]any) error {
	now := time.Now().UTC()

	record := &models.ScheduleRecord{
		ID:         "sched-" + uuid.New().String(),
		WorkflowID: workflowID,
		// Synthetic node id: concurrent executions may suspend on the same
		// delay node and each needs its own record.
		NodeID:    executionID + ":" + nodeID,
		IsActive:  true,
		NextRunAt: &resumeAt,
		Metadata: map[string]any{
			models.MetaKind:         models.MetaKindContinuation,
			models.MetaResumeNodeID: nodeID,
			models.MetaResumeBranch: branch,
			models.MetaResumeScope:  scope,
			models.MetaExecutionID:  executionID,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	return s.store.SaveSchedule(ctx, record)
}

// FetchDueSchedules returns the records due now, ordered by next run time.
func (s *Scheduler) FetchDueSchedules(ctx context.Context) ([]*models.ScheduleRecord, error) {
	return s.store.DueSchedules(ctx, time.Now().UTC(), s.batchLimit)
}

// MarkRunSuccess records a successful run: the retry counter resets and the
// next fire time is recomputed from the time the run actually fired, so
// execution latency never drifts the cadence.
func (s *Scheduler) MarkRunSuccess(ctx context.Context, scheduleID string, executedAt time.Time) error {
	return s.update(ctx, scheduleID, func(record *models.ScheduleRecord) error {
		delete(record.Metadata, models.MetaRetryCount)
		delete(record.Metadata, models.MetaLastError)

		record.LastRunAt = &executedAt

		next, err := schedule.NextFireTime(
			schedule.Spec{Cron: record.Cron, Frequency: record.Frequency},
			record.Timezone, executedAt)
		if err != nil {
			return err
		}

		record.NextRunAt = &next
		record.UpdatedAt = time.Now().UTC()

		return nil
	})
}

// MarkRunFailure records a failed run: the retry counter increments and the
// next attempt backs off exponentially.
func (s *Scheduler) MarkRunFailure(ctx context.Context, scheduleID string, cause string) error {
	return s.update(ctx, scheduleID, func(record *models.ScheduleRecord) error {
		if record.Metadata == nil {
			record.Metadata = make(map[string]any)
		}

		retries := record.RetryCount() + 1
		record.Metadata[models.MetaRetryCount] = retries
		record.Metadata[models.MetaLastError] = cause

		next := time.Now().UTC().Add(retryDelay(retries))
		record.NextRunAt = &next
		record.UpdatedAt = time.Now().UTC()

		s.trail.Warn(ctx, record.WorkflowID, "", record.NodeID, "Run failed, backing off",
			map[string]any{"retry_count": retries, "next_run_at": next, "error": cause})

		return nil
	})
}

// retryDelay is baseRetryDelay * 2^(retries-1), capped at maxRetryDelay.
func retryDelay(retries int) time.Duration {
	if retries < 1 {
		retries = 1
	}

	delay := baseRetryDelay
	for i := 1; i < retries; i++ {
		delay *= 2
		if delay >= maxRetryDelay {
			return maxRetryDelay
		}
	}

	return delay
}

// update applies a read-modify-write under optimistic concurrency, re-reading
// and reapplying on version conflict.
func (s *Scheduler) update(ctx context.Context, scheduleID string, mutate func(*models.ScheduleRecord) error) error {
	return retry.Do(ctx, versionConflictBackoff(), func(ctx context.Context) error {
		record, err := s.store.ScheduleByID(ctx, scheduleID)
		if err != nil {
			return err
		}

		if err := mutate(record); err != nil {
			return err
		}

		if err := s.store.SaveSchedule(ctx, record); err != nil {
			if persistence.IsVersionConflict(err) {
				return retry.RetryableError(err)
			}

			return err
		}

		return nil
	})
}

// Start begins the poll loop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	s.logger.Info("Starting schedule poller", "poll_interval", s.pollInterval)

	s.ticker = time.NewTicker(s.pollInterval)
	s.done = make(chan bool)
	s.started = true

	go s.poll(ctx)

	return nil
}

// Stop halts the poll loop.
func (s *Scheduler) Stop(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}

	s.ticker.Stop()

	select {
	case s.done <- true:
	default:
	}

	s.started = false
	s.logger.Info("Schedule poller stopped")

	return nil
}

func (s *Scheduler) poll(ctx context.Context) {
	for {
		select {
		case <-s.done:
			return
		case <-ctx.Done():
			return
		case <-s.ticker.C:
			s.ProcessDueSchedules(ctx)
		}
	}
}

// ProcessDueSchedules fetches and dispatches every record due now. Exported so
// tests and one-shot invocations can drive the scheduler without the ticker.
func (s *Scheduler) ProcessDueSchedules(ctx context.Context) {
	due, err := s.FetchDueSchedules(ctx)
	if err != nil {
		s.logger.Error("Failed to fetch due schedules", "error", err)

		return
	}

	if len(due) == 0 {
		return
	}

	s.logger.Info("Dispatching due schedules", "count", len(due))

	for _, record := range due {
		if err := s.dispatch(ctx, record); err != nil {
			s.logger.Error("Failed to dispatch schedule",
				"schedule_id", record.ID, "workflow_id", record.WorkflowID, "error", err)
		}
	}
}

// dispatch fires one due record. Recurring records are claimed first by
// advancing NextRunAt under the version guard, so concurrent scheduler
// instances fire each occurrence exactly once; the loser of the race skips.
func (s *Scheduler) dispatch(ctx context.Context, record *models.ScheduleRecord) error {
	if record.IsContinuation() {
		return s.dispatchContinuation(ctx, record)
	}

	now := time.Now().UTC()

	// The record's precomputed NextRunAt is the occurrence this dispatch
	// covers. It rides on the trigger so the worker can echo it back and the
	// success recompute anchors on the intended instant, not on poll or
	// completion time.
	firedAt := now
	if record.NextRunAt != nil {
		firedAt = *record.NextRunAt
	}

	next, err := schedule.NextFireTime(
		schedule.Spec{Cron: record.Cron, Frequency: record.Frequency},
		record.Timezone, now)
	if err != nil {
		return err
	}

	record.LastRunAt = &firedAt
	record.NextRunAt = &next
	record.UpdatedAt = now

	if record.EndAt != nil && next.After(*record.EndAt) {
		record.IsActive = false
	}

	if err := s.store.SaveSchedule(ctx, record); err != nil {
		if persistence.IsVersionConflict(err) {
			s.logger.Info("Schedule claimed by another instance", "schedule_id", record.ID)

			return nil
		}

		return err
	}

	triggered := events.WorkflowTriggered{
		BaseEvent:     events.NewBaseEvent(events.WorkflowTriggeredEvent, record.WorkflowID),
		TriggerNodeID: record.NodeID,
		Source:        events.TriggerSourceSchedule,
		ScheduleID:    record.ID,
		FiredAt:       firedAt,
		TriggerData: map[string]any{
			"fired_at":    firedAt.Format(time.RFC3339),
			"schedule_id": record.ID,
		},
	}

	if err := s.publisher.Publish(ctx, record.WorkflowID, triggered); err != nil {
		return fmt.Errorf("failed to publish trigger for schedule %s: %w", record.ID, err)
	}

	s.trail.Info(ctx, record.WorkflowID, "", record.NodeID, "Schedule fired",
		map[string]any{"schedule_id": record.ID, "next_run_at": next})

	return nil
}

// dispatchContinuation fires a one-shot record and deletes it.
func (s *Scheduler) dispatchContinuation(ctx context.Context, record *models.ScheduleRecord) error {
	resumeNodeID, _ := record.Metadata[models.MetaResumeNodeID].(string)
	branch, _ := record.Metadata[models.MetaResumeBranch].(string)
	executionID, _ := record.Metadata[models.MetaExecutionID].(string)
	scope, _ := record.Metadata[models.MetaResumeScope].(map[string]any)

	if resumeNodeID == "" {
		// Malformed record; drop it rather than refiring forever.
		s.logger.Error("Continuation record missing resume node", "schedule_id", record.ID)

		return s.store.DeleteSchedule(ctx, record.ID)
	}

	triggered := events.WorkflowTriggered{
		BaseEvent:         events.NewBaseEvent(events.WorkflowTriggeredEvent, record.WorkflowID),
		TriggerNodeID:     resumeNodeID,
		Source:            events.TriggerSourceContinuation,
		ResumeExecutionID: executionID,
		ResumeNodeID:      resumeNodeID,
		ResumeBranch:      branch,
		ResumeScope:       scope,
	}

	if err := s.publisher.Publish(ctx, record.WorkflowID, triggered); err != nil {
		return fmt.Errorf("failed to publish continuation for schedule %s: %w", record.ID, err)
	}

	s.trail.Info(ctx, record.WorkflowID, executionID, resumeNodeID, "Continuation fired",
		map[string]any{"schedule_id": record.ID})

	return s.store.DeleteSchedule(ctx, record.ID)
}

// RegisterOutcomeHandlers subscribes the scheduler to run outcome events so
// schedule records advance on success and back off on failure.
func (s *Scheduler) RegisterOutcomeHandlers(bus eventbus.EventSubscriber) error {
	if err := bus.Handle(events.WorkflowExecutionCompletedEvent, s.handleCompleted); err != nil {
		return err
	}

	return bus.Handle(events.WorkflowExecutionFailedEvent, s.handleFailed)
}

func (s *Scheduler) handleCompleted(ctx context.Context, event any) error {
	completed, ok := event.(*events.WorkflowExecutionCompleted)
	if !ok {
		return fmt.Errorf("unexpected event payload %T", event)
	}

	if completed.ScheduleID == "" {
		// Event-triggered or resumed run; nothing to advance.
		return nil
	}

	// Anchor the recompute on the occurrence instant the dispatch claimed, so
	// queue latency and run duration never drift the cadence. Events without
	// one fall back to their publish time.
	executedAt := completed.FiredAt
	if executedAt.IsZero() {
		executedAt = completed.Timestamp
	}

	if err := s.MarkRunSuccess(ctx, completed.ScheduleID, executedAt); err != nil {
		if persistence.IsScheduleNotFound(err) {
			return nil
		}

		return err
	}

	return nil
}

func (s *Scheduler) handleFailed(ctx context.Context, event any) error {
	failed, ok := event.(*events.WorkflowExecutionFailed)
	if !ok {
		return fmt.Errorf("unexpected event payload %T", event)
	}

	if failed.ScheduleID == "" {
		return nil
	}

	if err := s.MarkRunFailure(ctx, failed.ScheduleID, failed.Error); err != nil {
		if persistence.IsScheduleNotFound(err) {
			return nil
		}

		return err
	}

	return nil
}
