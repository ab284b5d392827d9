// Package execution interprets workflow node graphs: it walks connections from
// a trigger, dispatches on node type, layers variable scopes, and suspends
// traversal on approval and delay nodes.
package execution

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/flowhive/flowhive/pkg/eventbus"
	"github.com/flowhive/flowhive/pkg/events"
	"github.com/flowhive/flowhive/pkg/execlog"
	"github.com/flowhive/flowhive/pkg/expression"
	"github.com/flowhive/flowhive/pkg/models"
	"github.com/flowhive/flowhive/pkg/persistence"
	"github.com/flowhive/flowhive/pkg/protocol"
	"github.com/flowhive/flowhive/pkg/template"
	"github.com/flowhive/flowhive/pkg/tracer"
)

// maxTraversalSteps bounds a single traversal as a runtime safety net on top
// of graph validation. A workflow hitting this is misconfigured.
const maxTraversalSteps = 10000

// defaultLoopCap applies when a loop node sets no max_iterations.
const defaultLoopCap = 1000

// SuspensionKind says why a traversal halted before completing.
type SuspensionKind string

const (
	SuspendApproval SuspensionKind = "approval"
	SuspendDelay    SuspensionKind = "delay"
)

// Suspension carries everything needed to resume a halted traversal.
type Suspension struct {
	Kind         SuspensionKind
	NodeID       string
	Token        string         // approval suspensions
	ResumeAt     time.Time      // delay suspensions
	ResumeBranch string         // branch label to follow on resume
	Scope        map[string]any // flattened scope snapshot
}

// Result is the outcome of one Execute or Resume call.
type Result struct {
	models.ExecutionResult

	Suspension *Suspension
}

var errSuspendedInLoop = errors.New("approval and delay nodes are not supported inside a loop body")

// Executor interprets workflow definitions. All dependencies are required
// except Tracer, which defaults to a no-op.
type Executor struct {
	expressions *expression.Engine
	templates   *template.Resolver
	sender      protocol.NotificationSender
	records     protocol.RecordRepository
	approvals   persistence.ApprovalStore
	trail       *execlog.Logger
	publisher   eventbus.EventPublisher
	httpClient  *http.Client
	tracer      trace.Tracer
	logger      *slog.Logger
	workerID    string
}

// Config collects the executor's dependencies.
type Config struct {
	Expressions *expression.Engine
	Templates   *template.Resolver
	Sender      protocol.NotificationSender
	Records     protocol.RecordRepository
	Approvals   persistence.ApprovalStore
	Trail       *execlog.Logger
	Publisher   eventbus.EventPublisher
	HTTPClient  *http.Client
	Tracer      trace.Tracer
	Logger      *slog.Logger
	WorkerID    string
}

// NewExecutor creates an executor from the given dependencies.
func NewExecutor(cfg Config) *Executor {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	execTracer := cfg.Tracer
	if execTracer == nil {
		execTracer = noop.NewTracerProvider().Tracer("execution")
	}

	return &Executor{
		expressions: cfg.Expressions,
		templates:   cfg.Templates,
		sender:      cfg.Sender,
		records:     cfg.Records,
		approvals:   cfg.Approvals,
		trail:       cfg.Trail,
		publisher:   cfg.Publisher,
		httpClient:  httpClient,
		tracer:      execTracer,
		logger:      cfg.Logger.With("module", "executor"),
		workerID:    cfg.WorkerID,
	}
}

// ExecOptions parameterizes one traversal start.
type ExecOptions struct {
	TriggerNodeID string
	TriggerData   map[string]any
	// ScheduleID, when the run was fired by the scheduler, is echoed on the
	// outcome events so the scheduler can advance or back off the record.
	ScheduleID string
	// FiredAt is the occurrence instant the schedule meant this run for. It is
	// echoed on the outcome events so the success recompute anchors on the
	// intended time rather than on run completion.
	FiredAt time.Time
}

// ResumeOptions parameterizes the continuation of a suspended traversal.
type ResumeOptions struct {
	ExecutionID string
	NodeID      string
	Branch      string
	Scope       map[string]any
}

// Execute runs a workflow from the given trigger node. Trigger data is exposed
// to expressions and templates under the "trigger" key.
func (e *Executor) Execute(ctx context.Context, workflow *models.WorkflowDefinition, opts ExecOptions) (*Result, error) {
	scope := NewScope(nil)
	for _, variable := range workflow.Variables {
		scope.Set(variable.Name, variable.InitialValue)
	}

	triggerData := opts.TriggerData
	if triggerData == nil {
		triggerData = map[string]any{}
	}

	scope.Set("trigger", triggerData)

	trigger := workflow.NodeByID(opts.TriggerNodeID)
	if trigger == nil || trigger.Type != models.NodeTypeTrigger {
		return nil, fmt.Errorf("workflow %s has no trigger node %q", workflow.ID, opts.TriggerNodeID)
	}

	// Definitions normally pass structural validation at save time, but
	// triggers can arrive for workflows written through other paths.
	if err := workflow.ValidateGraph(); err != nil {
		return nil, fmt.Errorf("workflow %s: %w", workflow.ID, err)
	}

	run := e.newRun(workflow)
	run.scheduleID = opts.ScheduleID
	run.firedAt = opts.FiredAt
	run.recordNode(trigger.ID, models.NodeStatusSuccess, map[string]any{"trigger": triggerData}, "")

	e.publishStarted(ctx, run, triggerData)
	e.trail.Info(ctx, workflow.ID, run.executionID, opts.TriggerNodeID, "Workflow execution started",
		map[string]any{"trigger_node_id": opts.TriggerNodeID})

	return e.run(ctx, run, scope, workflow.Successors(opts.TriggerNodeID, ""))
}

// Resume continues a previously suspended traversal from the given node's
// branch, with the scope snapshot persisted at suspension time.
func (e *Executor) Resume(ctx context.Context, workflow *models.WorkflowDefinition, opts ResumeOptions) (*Result, error) {
	node := workflow.NodeByID(opts.NodeID)
	if node == nil {
		return nil, fmt.Errorf("workflow %s has no node %q to resume from", workflow.ID, opts.NodeID)
	}

	if err := workflow.ValidateGraph(); err != nil {
		return nil, fmt.Errorf("workflow %s: %w", workflow.ID, err)
	}

	run := e.newRun(workflow)
	if opts.ExecutionID != "" {
		run.executionID = opts.ExecutionID
	}

	scope := NewScope(opts.Scope)

	e.trail.Info(ctx, workflow.ID, run.executionID, opts.NodeID, "Workflow execution resumed",
		map[string]any{"branch": opts.Branch})

	return e.run(ctx, run, scope, workflow.Successors(opts.NodeID, opts.Branch))
}

// runState tracks one traversal's bookkeeping.
type runState struct {
	executionID string
	scheduleID  string
	firedAt     time.Time
	workflow    *models.WorkflowDefinition
	startedAt   time.Time
	completed   []string
	results     []models.NodeResult
	steps       int
}

func (e *Executor) newRun(workflow *models.WorkflowDefinition) *runState {
	return &runState{
		executionID: "exec-" + uuid.New().String(),
		workflow:    workflow,
		startedAt:   time.Now().UTC(),
	}
}

func (r *runState) recordNode(nodeID string, status models.NodeStatus, output map[string]any, errMessage string) {
	r.results = append(r.results, models.NodeResult{
		NodeID:    nodeID,
		Status:    status,
		Output:    output,
		Error:     errMessage,
		Timestamp: time.Now().UTC(),
	})

	if status == models.NodeStatusSuccess {
		r.completed = append(r.completed, nodeID)
	}
}

// run walks the graph breadth-first from the given frontier until it empties,
// a node fails, or a suspending node halts the traversal.
func (e *Executor) run(ctx context.Context, run *runState, scope *Scope, frontier []string) (*Result, error) {
	type workItem struct {
		nodeID string
		scope  *Scope
	}

	queue := make([]workItem, 0, len(frontier))
	for _, nodeID := range frontier {
		queue = append(queue, workItem{nodeID: nodeID, scope: scope})
	}

	// Unbounded cycles are rejected before the traversal starts, so reaching
	// a node twice here means two branches reconverged on it. The join runs
	// once, with the scope of whichever branch arrived first.
	visited := make(map[string]bool)

	for len(queue) > 0 {
		item := queue[0]
		queue = queue[1:]

		if visited[item.nodeID] {
			continue
		}

		visited[item.nodeID] = true

		run.steps++
		if run.steps > maxTraversalSteps {
			return e.fail(ctx, run, scope, item.nodeID,
				fmt.Errorf("traversal exceeded %d steps, aborting", maxTraversalSteps))
		}

		node := run.workflow.NodeByID(item.nodeID)
		if node == nil {
			return e.fail(ctx, run, scope, item.nodeID,
				fmt.Errorf("connection references unknown node %q", item.nodeID))
		}

		next, suspension, err := e.executeNode(ctx, run, node, item.scope)
		if err != nil {
			return e.fail(ctx, run, item.scope, node.ID, err)
		}

		if suspension != nil {
			return e.suspend(ctx, run, node, suspension)
		}

		for _, nextID := range next {
			queue = append(queue, workItem{nodeID: nextID, scope: item.scope})
		}
	}

	return e.complete(ctx, run, scope)
}

// executeNode dispatches on node type and returns the ids to visit next.
func (e *Executor) executeNode(ctx context.Context, run *runState, node *models.Node, scope *Scope) ([]string, *Suspension, error) {
	ctx, span := tracer.StartSpan(ctx, e.tracer, "execution.node",
		attribute.String(tracer.WorkflowIDKey, run.workflow.ID),
		attribute.String(tracer.ExecutionIDKey, run.executionID),
		attribute.String(tracer.NodeIDKey, node.ID),
		attribute.String(tracer.NodeTypeKey, string(node.Type)),
	)
	defer span.End()

	started := time.Now()

	switch node.Type {
	case models.NodeTypeTrigger:
		// A trigger reached mid-graph is a pass-through.
		e.finishNode(ctx, run, node, nil, started)

		return run.workflow.Successors(node.ID, ""), nil, nil

	case models.NodeTypeAction:
		output, err := e.executeAction(ctx, run, node, scope)
		if err != nil {
			return nil, nil, e.nodeError(ctx, run, node, err, started)
		}

		if node.Action.OutputKey != "" {
			scope.Set(node.Action.OutputKey, output)
		}

		e.finishNode(ctx, run, node, output, started)

		return run.workflow.Successors(node.ID, ""), nil, nil

	case models.NodeTypeTransform:
		value, err := e.expressions.Evaluate(ctx, node.Transform.Expression, scope.Snapshot())
		if err != nil {
			return nil, nil, e.nodeError(ctx, run, node, err, started)
		}

		scope.Set(node.Transform.OutputVariable, value)
		e.finishNode(ctx, run, node, map[string]any{node.Transform.OutputVariable: value}, started)

		return run.workflow.Successors(node.ID, ""), nil, nil

	case models.NodeTypeCondition:
		verdict, err := e.expressions.EvaluateBool(ctx, node.Condition.Expression, scope.Snapshot())
		if err != nil {
			return nil, nil, e.nodeError(ctx, run, node, err, started)
		}

		branch := models.BranchFalse
		if verdict {
			branch = models.BranchTrue
		}

		e.finishNode(ctx, run, node, map[string]any{"result": verdict}, started)

		return run.workflow.Successors(node.ID, branch), nil, nil

	case models.NodeTypeLoop:
		next, err := e.executeLoop(ctx, run, node, scope)
		if err != nil {
			return nil, nil, e.nodeError(ctx, run, node, err, started)
		}

		e.finishNode(ctx, run, node, nil, started)

		return next, nil, nil

	case models.NodeTypeApproval:
		suspension, err := e.requestApproval(ctx, run, node, scope)
		if err != nil {
			return nil, nil, e.nodeError(ctx, run, node, err, started)
		}

		return nil, suspension, nil

	case models.NodeTypeDelay:
		duration := time.Duration(node.Delay.DurationSeconds) * time.Second

		return nil, &Suspension{
			Kind:     SuspendDelay,
			NodeID:   node.ID,
			ResumeAt: time.Now().UTC().Add(duration),
			Scope:    scope.Snapshot(),
		}, nil

	default:
		return nil, nil, e.nodeError(ctx, run, node,
			fmt.Errorf("unknown node type %q", node.Type), started)
	}
}

// executeLoop iterates the loop body inline, one child scope per item. The
// body subgraph must terminate without suspending; loop-exit successors are
// returned for the caller to continue with.
func (e *Executor) executeLoop(ctx context.Context, run *runState, node *models.Node, scope *Scope) ([]string, error) {
	cfg := node.Loop

	source, exists := scope.Get(cfg.SourceKey)
	if !exists {
		return nil, fmt.Errorf("loop source %q not found in scope", cfg.SourceKey)
	}

	items, err := asSlice(source)
	if err != nil {
		return nil, fmt.Errorf("loop source %q: %w", cfg.SourceKey, err)
	}

	limit := cfg.MaxIterations
	if limit <= 0 {
		limit = defaultLoopCap
	}

	if len(items) > limit {
		e.trail.Warn(ctx, run.workflow.ID, run.executionID, node.ID,
			"Loop source exceeds iteration cap, truncating",
			map[string]any{"items": len(items), "cap": limit})

		items = items[:limit]
	}

	var collected []any

	body := run.workflow.Successors(node.ID, models.BranchLoopBody)

	for index, loopItem := range items {
		iteration := scope.Child()
		iteration.Set(cfg.ItemVariable, loopItem)

		if cfg.IndexVariable != "" {
			iteration.Set(cfg.IndexVariable, index)
		}

		if err := e.runLoopBody(ctx, run, node.ID, iteration, body); err != nil {
			return nil, fmt.Errorf("loop iteration %d: %w", index, err)
		}

		if cfg.ResultKey != "" {
			value, _ := iteration.Get(cfg.ItemVariable)
			collected = append(collected, value)
		}
	}

	if cfg.ResultKey != "" {
		scope.Set(cfg.ResultKey, collected)
	}

	return run.workflow.Successors(node.ID, models.BranchLoopExit), nil
}

// runLoopBody walks the body subgraph to exhaustion with the iteration scope.
// An edge pointing back at the owning loop node marks the end of one iteration
// and is not followed.
func (e *Executor) runLoopBody(ctx context.Context, run *runState, loopNodeID string, scope *Scope, frontier []string) error {
	queue := append([]string(nil), frontier...)
	visited := make(map[string]bool)

	for len(queue) > 0 {
		nodeID := queue[0]
		queue = queue[1:]

		if nodeID == loopNodeID {
			continue
		}

		// Reconvergent body branches join the same way the outer traversal
		// does: each body node runs once per iteration.
		if visited[nodeID] {
			continue
		}

		visited[nodeID] = true

		run.steps++
		if run.steps > maxTraversalSteps {
			return fmt.Errorf("traversal exceeded %d steps, aborting", maxTraversalSteps)
		}

		node := run.workflow.NodeByID(nodeID)
		if node == nil {
			return fmt.Errorf("connection references unknown node %q", nodeID)
		}

		if node.Type == models.NodeTypeApproval || node.Type == models.NodeTypeDelay {
			return errSuspendedInLoop
		}

		next, _, err := e.executeNode(ctx, run, node, scope)
		if err != nil {
			return err
		}

		queue = append(queue, next...)
	}

	return nil
}

// requestApproval persists a pending approval and halts the traversal.
func (e *Executor) requestApproval(ctx context.Context, run *runState, node *models.Node, scope *Scope) (*Suspension, error) {
	token := uuid.New().String()
	now := time.Now().UTC()

	approval := &models.PendingApproval{
		Token:          token,
		WorkflowID:     run.workflow.ID,
		OrganizationID: run.workflow.OrganizationID,
		ExecutionID:    run.executionID,
		NodeID:         node.ID,
		Approvers:      node.Approval.Approvers,
		Scope:          scope.Snapshot(),
		Status:         models.ApprovalPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if node.Approval.TimeoutMinutes > 0 {
		expiresAt := now.Add(time.Duration(node.Approval.TimeoutMinutes) * time.Minute)
		approval.ExpiresAt = &expiresAt
	}

	if err := e.approvals.SaveApproval(ctx, approval); err != nil {
		return nil, fmt.Errorf("failed to persist pending approval: %w", err)
	}

	if e.publisher != nil {
		requested := events.ApprovalRequested{
			BaseEvent:   events.NewBaseEvent(events.ApprovalRequestedEvent, run.workflow.ID),
			ExecutionID: run.executionID,
			NodeID:      node.ID,
			Token:       token,
			Approvers:   node.Approval.Approvers,
			ExpiresAt:   approval.ExpiresAt,
		}
		requested.OrganizationID = run.workflow.OrganizationID

		if err := e.publisher.Publish(ctx, run.workflow.ID, requested); err != nil {
			e.logger.Warn("Failed to publish approval request", "error", err)
		}
	}

	return &Suspension{
		Kind:   SuspendApproval,
		NodeID: node.ID,
		Token:  token,
		Scope:  approval.Scope,
	}, nil
}

func (e *Executor) finishNode(ctx context.Context, run *runState, node *models.Node, output map[string]any, started time.Time) {
	run.recordNode(node.ID, models.NodeStatusSuccess, output, "")

	e.trail.Info(ctx, run.workflow.ID, run.executionID, node.ID, "Node executed",
		map[string]any{"node_type": node.Type})

	if e.publisher != nil {
		finished := events.NodeExecutionFinished{
			BaseEvent:   events.NewBaseEvent(events.NodeExecutionFinishedEvent, run.workflow.ID),
			ExecutionID: run.executionID,
			NodeID:      node.ID,
			Status:      models.NodeStatusSuccess,
			OutputData:  output,
			Duration:    time.Since(started),
		}

		if err := e.publisher.Publish(ctx, run.workflow.ID, finished); err != nil {
			e.logger.Warn("Failed to publish node finish", "error", err)
		}
	}
}

func (e *Executor) nodeError(ctx context.Context, run *runState, node *models.Node, err error, started time.Time) error {
	run.recordNode(node.ID, models.NodeStatusFailed, nil, err.Error())

	e.trail.Error(ctx, run.workflow.ID, run.executionID, node.ID, "Node failed",
		map[string]any{"node_type": node.Type, "error": err.Error()})

	if e.publisher != nil {
		failed := events.NodeExecutionFailed{
			BaseEvent:   events.NewBaseEvent(events.NodeExecutionFailedEvent, run.workflow.ID),
			ExecutionID: run.executionID,
			NodeID:      node.ID,
			Error:       err.Error(),
			Duration:    time.Since(started),
		}

		if publishErr := e.publisher.Publish(ctx, run.workflow.ID, failed); publishErr != nil {
			e.logger.Warn("Failed to publish node failure", "error", publishErr)
		}
	}

	return fmt.Errorf("node %s: %w", node.ID, err)
}

func (e *Executor) complete(ctx context.Context, run *runState, scope *Scope) (*Result, error) {
	finished := time.Now().UTC()

	result := &Result{
		ExecutionResult: models.ExecutionResult{
			ExecutionID:      run.executionID,
			WorkflowID:       run.workflow.ID,
			Status:           models.RunStatusCompleted,
			CompletedNodeIDs: run.completed,
			NodeResults:      run.results,
			FinalScope:       scope.Snapshot(),
			StartedAt:        run.startedAt,
			FinishedAt:       finished,
		},
	}

	e.trail.Info(ctx, run.workflow.ID, run.executionID, "", "Workflow execution completed",
		map[string]any{"nodes_executed": len(run.completed)})

	if e.publisher != nil {
		completed := events.WorkflowExecutionCompleted{
			BaseEvent:     events.NewBaseEvent(events.WorkflowExecutionCompletedEvent, run.workflow.ID),
			ExecutionID:   run.executionID,
			ScheduleID:    run.scheduleID,
			FiredAt:       run.firedAt,
			DurationMs:    finished.Sub(run.startedAt).Milliseconds(),
			NodesExecuted: len(run.completed),
			FinalResults:  result.FinalScope,
		}
		completed.OrganizationID = run.workflow.OrganizationID
		completed.WorkerID = e.workerID

		if err := e.publisher.Publish(ctx, run.workflow.ID, completed); err != nil {
			e.logger.Warn("Failed to publish execution completion", "error", err)
		}
	}

	return result, nil
}

func (e *Executor) fail(ctx context.Context, run *runState, scope *Scope, nodeID string, cause error) (*Result, error) {
	finished := time.Now().UTC()

	result := &Result{
		ExecutionResult: models.ExecutionResult{
			ExecutionID:      run.executionID,
			WorkflowID:       run.workflow.ID,
			Status:           models.RunStatusFailed,
			CompletedNodeIDs: run.completed,
			FailedNodeID:     nodeID,
			NodeResults:      run.results,
			FinalScope:       scope.Snapshot(),
			StartedAt:        run.startedAt,
			FinishedAt:       finished,
		},
	}

	e.trail.Error(ctx, run.workflow.ID, run.executionID, nodeID, "Workflow execution failed",
		map[string]any{"error": cause.Error()})

	if e.publisher != nil {
		failed := events.WorkflowExecutionFailed{
			BaseEvent:     events.NewBaseEvent(events.WorkflowExecutionFailedEvent, run.workflow.ID),
			ExecutionID:   run.executionID,
			ScheduleID:    run.scheduleID,
			FiredAt:       run.firedAt,
			DurationMs:    finished.Sub(run.startedAt).Milliseconds(),
			FailedNodeID:  nodeID,
			Error:         cause.Error(),
			NodesExecuted: len(run.completed),
		}
		failed.OrganizationID = run.workflow.OrganizationID
		failed.WorkerID = e.workerID

		if err := e.publisher.Publish(ctx, run.workflow.ID, failed); err != nil {
			e.logger.Warn("Failed to publish execution failure", "error", err)
		}
	}

	return result, cause
}

func (e *Executor) suspend(ctx context.Context, run *runState, node *models.Node, suspension *Suspension) (*Result, error) {
	finished := time.Now().UTC()

	run.recordNode(node.ID, models.NodeStatusSuspended, nil, "")

	result := &Result{
		ExecutionResult: models.ExecutionResult{
			ExecutionID:      run.executionID,
			WorkflowID:       run.workflow.ID,
			Status:           models.RunStatusSuspended,
			CompletedNodeIDs: run.completed,
			NodeResults:      run.results,
			FinalScope:       suspension.Scope,
			StartedAt:        run.startedAt,
			FinishedAt:       finished,
		},
		Suspension: suspension,
	}

	e.trail.Info(ctx, run.workflow.ID, run.executionID, node.ID, "Workflow execution suspended",
		map[string]any{"kind": suspension.Kind})

	if e.publisher != nil {
		suspended := events.WorkflowExecutionSuspended{
			BaseEvent:       events.NewBaseEvent(events.WorkflowExecutionSuspendedEvent, run.workflow.ID),
			ExecutionID:     run.executionID,
			SuspendedNodeID: node.ID,
			Reason:          string(suspension.Kind),
			ApprovalToken:   suspension.Token,
		}
		suspended.OrganizationID = run.workflow.OrganizationID

		if !suspension.ResumeAt.IsZero() {
			suspended.ResumeAt = suspension.ResumeAt.Format(time.RFC3339)
		}

		if err := e.publisher.Publish(ctx, run.workflow.ID, suspended); err != nil {
			e.logger.Warn("Failed to publish execution suspension", "error", err)
		}
	}

	return result, nil
}

func (e *Executor) publishStarted(ctx context.Context, run *runState, triggerData map[string]any) {
	if e.publisher == nil {
		return
	}

	started := events.WorkflowExecutionStarted{
		BaseEvent:    events.NewBaseEvent(events.WorkflowExecutionStartedEvent, run.workflow.ID),
		ExecutionID:  run.executionID,
		WorkflowName: run.workflow.Name,
		TriggerData:  triggerData,
	}
	started.OrganizationID = run.workflow.OrganizationID
	started.WorkerID = e.workerID

	if err := e.publisher.Publish(ctx, run.workflow.ID, started); err != nil {
		e.logger.Warn("Failed to publish execution start", "error", err)
	}
}

// asSlice normalizes the loop source collection to []any.
func asSlice(value any) ([]any, error) {
	switch typed := value.(type) {
	case []any:
		return typed, nil
	case []map[string]any:
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = item
		}

		return out, nil
	case []string:
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = item
		}

		return out, nil
	case nil:
		return nil, nil
	default:
		return nil, fmt.Errorf("value of type %T is not iterable", value)
	}
}
