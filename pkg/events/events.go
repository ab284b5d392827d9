// Package events defines event types and structures for workflow lifecycle notifications.
package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/flowhive/flowhive/pkg/models"
)

type EventType string

// Topic is the Kafka topic all workflow lifecycle events flow through.
const Topic = "flowhive.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Trigger events.
	WorkflowTriggeredEvent EventType = "workflow.triggered"

	// Workflow execution lifecycle events.
	WorkflowExecutionStartedEvent   EventType = "workflow.execution.started"
	WorkflowExecutionCompletedEvent EventType = "workflow.execution.completed"
	WorkflowExecutionFailedEvent    EventType = "workflow.execution.failed"
	WorkflowExecutionSuspendedEvent EventType = "workflow.execution.suspended"

	// Node-level events.
	NodeExecutionFinishedEvent EventType = "node.execution.finished"
	NodeExecutionFailedEvent   EventType = "node.execution.failed"

	// Approval events.
	ApprovalRequestedEvent EventType = "approval.requested"
	ApprovalDecidedEvent   EventType = "approval.decided"
)

// Trigger sources carried on WorkflowTriggered.
const (
	TriggerSourceSchedule     = "schedule"
	TriggerSourceEvent        = "event"
	TriggerSourceContinuation = "continuation"
	TriggerSourceApproval     = "approval"
)

type BaseEvent struct {
	ID             string         `json:"id"`
	Type           EventType      `json:"type"`
	Timestamp      time.Time      `json:"timestamp"`
	WorkflowID     string         `json:"workflow_id"`
	OrganizationID string         `json:"organization_id,omitempty"`
	WorkerID       string         `json:"worker_id,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// WorkflowTriggered asks a worker to start (or resume) one workflow run.
// Source tells the worker how the run came about; the resume fields are only
// set for continuation and approval resumes.
type WorkflowTriggered struct {
	BaseEvent

	TriggerNodeID string         `json:"trigger_node_id"`
	Source        string         `json:"source"`
	TriggerData   map[string]any `json:"trigger_data,omitempty"`

	// ScheduleID and FiredAt are set on schedule-fired runs. FiredAt is the
	// occurrence instant the schedule covered, not the publish time; workers
	// echo it on the outcome events.
	ScheduleID string    `json:"schedule_id,omitempty"`
	FiredAt    time.Time `json:"fired_at,omitempty"`

	ResumeExecutionID string         `json:"resume_execution_id,omitempty"`
	ResumeNodeID      string         `json:"resume_node_id,omitempty"`
	ResumeBranch      string         `json:"resume_branch,omitempty"`
	ResumeScope       map[string]any `json:"resume_scope,omitempty"`
}

func (w WorkflowTriggered) GetType() EventType {
	return WorkflowTriggeredEvent
}

type WorkflowExecutionStarted struct {
	BaseEvent

	ExecutionID  string         `json:"execution_id"`
	WorkflowName string         `json:"workflow_name"`
	TriggerData  map[string]any `json:"trigger_data,omitempty"`
	Variables    map[string]any `json:"variables,omitempty"`
}

func (w WorkflowExecutionStarted) GetType() EventType {
	return WorkflowExecutionStartedEvent
}

type WorkflowExecutionCompleted struct {
	BaseEvent

	ExecutionID   string         `json:"execution_id"`
	ScheduleID    string         `json:"schedule_id,omitempty"`
	FiredAt       time.Time      `json:"fired_at,omitempty"`
	DurationMs    int64          `json:"duration_ms"`
	NodesExecuted int            `json:"nodes_executed"`
	FinalResults  map[string]any `json:"final_results,omitempty"`
}

func (w WorkflowExecutionCompleted) GetType() EventType {
	return WorkflowExecutionCompletedEvent
}

type WorkflowExecutionFailed struct {
	BaseEvent

	ExecutionID   string    `json:"execution_id"`
	ScheduleID    string    `json:"schedule_id,omitempty"`
	FiredAt       time.Time `json:"fired_at,omitempty"`
	DurationMs    int64     `json:"duration_ms"`
	FailedNodeID  string    `json:"failed_node_id"`
	Error         string    `json:"error"`
	NodesExecuted int       `json:"nodes_executed"`
}

func (w WorkflowExecutionFailed) GetType() EventType {
	return WorkflowExecutionFailedEvent
}

// WorkflowExecutionSuspended is published when a run halts on an approval or
// delay node. The run resumes through a later WorkflowTriggered.
type WorkflowExecutionSuspended struct {
	BaseEvent

	ExecutionID     string `json:"execution_id"`
	SuspendedNodeID string `json:"suspended_node_id"`
	Reason          string `json:"reason"`
	ApprovalToken   string `json:"approval_token,omitempty"`
	ResumeAt        string `json:"resume_at,omitempty"`
}

func (w WorkflowExecutionSuspended) GetType() EventType {
	return WorkflowExecutionSuspendedEvent
}

type NodeExecutionFinished struct {
	BaseEvent

	ExecutionID string            `json:"execution_id"`
	NodeID      string            `json:"node_id"`
	Status      models.NodeStatus `json:"status"`
	OutputData  map[string]any    `json:"output_data,omitempty"`
	Duration    time.Duration     `json:"duration"`
}

func (n NodeExecutionFinished) GetType() EventType {
	return NodeExecutionFinishedEvent
}

type NodeExecutionFailed struct {
	BaseEvent

	ExecutionID string        `json:"execution_id"`
	NodeID      string        `json:"node_id"`
	Error       string        `json:"error"`
	Duration    time.Duration `json:"duration"`
}

func (n NodeExecutionFailed) GetType() EventType {
	return NodeExecutionFailedEvent
}

type ApprovalRequested struct {
	BaseEvent

	ExecutionID string     `json:"execution_id"`
	NodeID      string     `json:"node_id"`
	Token       string     `json:"token"`
	Approvers   []string   `json:"approvers"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

func (a ApprovalRequested) GetType() EventType {
	return ApprovalRequestedEvent
}

type ApprovalDecided struct {
	BaseEvent

	ExecutionID string                `json:"execution_id"`
	NodeID      string                `json:"node_id"`
	Token       string                `json:"token"`
	Status      models.ApprovalStatus `json:"status"`
	DecidedBy   string                `json:"decided_by"`
}

func (a ApprovalDecided) GetType() EventType {
	return ApprovalDecidedEvent
}

func NewBaseEvent(eventType EventType, workflowID string) BaseEvent {
	return BaseEvent{
		ID:         uuid.New().String(),
		Type:       eventType,
		Timestamp:  time.Now().UTC(),
		WorkflowID: workflowID,
		Metadata:   make(map[string]any),
	}
}
