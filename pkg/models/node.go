package models

import (
	"errors"
	"fmt"
	"time"
)

// NodeType enumerates the closed set of node kinds the executor interprets.
// Adding a value here requires a matching case in the executor's dispatch.
type NodeType string

const (
	NodeTypeTrigger   NodeType = "trigger"
	NodeTypeAction    NodeType = "action"
	NodeTypeTransform NodeType = "data_transform"
	NodeTypeCondition NodeType = "condition"
	NodeTypeLoop      NodeType = "loop"
	NodeTypeApproval  NodeType = "approval"
	NodeTypeDelay     NodeType = "delay"
)

// ActionKind enumerates the externally-visible effects an ACTION node can perform.
type ActionKind string

const (
	ActionEmail        ActionKind = "email"
	ActionSMS          ActionKind = "sms"
	ActionWebhook      ActionKind = "webhook"
	ActionCreateRecord ActionKind = "create_record"
	ActionUpdateRecord ActionKind = "update_record"
)

// TriggerKind distinguishes scheduled triggers from business-event triggers.
type TriggerKind string

const (
	TriggerSchedule TriggerKind = "schedule"
	TriggerEvent    TriggerKind = "event"
)

// Node is one step in a workflow graph. Exactly one of the typed config
// pointers is set, matching Type.
type Node struct {
	ID   string   `json:"id"   validate:"required"`
	Type NodeType `json:"type" validate:"required"`
	Name string   `json:"name" validate:"required,min=1"`

	Trigger   *TriggerConfig   `json:"trigger,omitempty"`
	Action    *ActionConfig    `json:"action,omitempty"`
	Transform *TransformConfig `json:"transform,omitempty"`
	Condition *ConditionConfig `json:"condition,omitempty"`
	Loop      *LoopConfig      `json:"loop,omitempty"`
	Approval  *ApprovalConfig  `json:"approval,omitempty"`
	Delay     *DelayConfig     `json:"delay,omitempty"`
}

// TriggerConfig configures a TRIGGER node. Schedule triggers carry a cron
// expression or coarse frequency plus an optional validity window; event
// triggers name the business event they react to and optional payload filters.
type TriggerConfig struct {
	Kind TriggerKind `json:"kind" validate:"required"`

	// Schedule triggers.
	Cron      string     `json:"cron,omitempty"`
	Frequency string     `json:"frequency,omitempty"` // daily, weekly, monthly
	Timezone  string     `json:"timezone,omitempty"`
	StartAt   *time.Time `json:"start_at,omitempty"`
	EndAt     *time.Time `json:"end_at,omitempty"`

	// Event triggers.
	EventCategory string         `json:"event_category,omitempty"` // e.g. "project"
	EntityType    string         `json:"entity_type,omitempty"`    // e.g. "task"
	EventAction   string         `json:"event_action,omitempty"`   // e.g. "created"
	Filters       map[string]any `json:"filters,omitempty"`        // exact-match payload filters
	PayloadSchema map[string]any `json:"payload_schema,omitempty"` // optional JSON schema filter
}

// ActionConfig configures an ACTION node.
type ActionConfig struct {
	Kind ActionKind `json:"kind" validate:"required"`

	// email / sms
	TemplateID string           `json:"template_id,omitempty"`
	Recipient  string           `json:"recipient,omitempty"` // supports {placeholders}
	Content    *TemplateContent `json:"content,omitempty"`   // inline overrides / CUSTOM mode
	Mode       string           `json:"mode,omitempty"`      // "template" (default) or "custom"

	// webhook
	URL     string            `json:"url,omitempty"`
	Method  string            `json:"method,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`

	// create_record / update_record
	Model    string         `json:"model,omitempty"`     // target entity, e.g. "crm.contact"
	RecordID string         `json:"record_id,omitempty"` // supports {placeholders}
	Fields   map[string]any `json:"fields,omitempty"`

	// OutputKey, when set, receives the action result in the variable scope.
	OutputKey string `json:"output_key,omitempty"`
}

// TemplateContent carries message content supplied inline on an action.
type TemplateContent struct {
	Subject string `json:"subject,omitempty"`
	Body    string `json:"body,omitempty"`
}

// TransformConfig configures a DATA_TRANSFORM node: a pure expression over the
// current scope whose result lands in OutputVariable.
type TransformConfig struct {
	Expression     string `json:"expression"      validate:"required"`
	OutputVariable string `json:"output_variable" validate:"required"`
}

// ConditionConfig configures a CONDITION node with a boolean expression over scope.
type ConditionConfig struct {
	Expression string `json:"expression" validate:"required"`
}

// LoopConfig configures a LOOP node iterating over the collection at SourceKey.
type LoopConfig struct {
	SourceKey     string `json:"source_key"     validate:"required"`
	ItemVariable  string `json:"item_variable"  validate:"required"`
	IndexVariable string `json:"index_variable,omitempty"`
	MaxIterations int    `json:"max_iterations,omitempty"` // 0 means unbounded by config
	ResultKey     string `json:"result_key,omitempty"`
}

// ApprovalConfig configures a GROUP/APPROVAL node.
type ApprovalConfig struct {
	Approvers      []string `json:"approvers"       validate:"required,min=1"`
	TimeoutMinutes int      `json:"timeout_minutes,omitempty"`
}

// DelayConfig configures a DELAY node. Continuation is scheduled, not slept.
type DelayConfig struct {
	DurationSeconds int64 `json:"duration_seconds" validate:"required,gt=0"`
}

var errConfigMismatch = errors.New("node config does not match node type")

// ValidateConfig checks that the node carries exactly the config its type requires.
func (n *Node) ValidateConfig() error {
	configs := map[NodeType]bool{
		NodeTypeTrigger:   n.Trigger != nil,
		NodeTypeAction:    n.Action != nil,
		NodeTypeTransform: n.Transform != nil,
		NodeTypeCondition: n.Condition != nil,
		NodeTypeLoop:      n.Loop != nil,
		NodeTypeApproval:  n.Approval != nil,
		NodeTypeDelay:     n.Delay != nil,
	}

	present, known := configs[n.Type]
	if !known {
		return fmt.Errorf("%w: unknown node type %q", errConfigMismatch, n.Type)
	}

	if !present {
		return fmt.Errorf("%w: missing %s config", errConfigMismatch, n.Type)
	}

	count := 0

	for _, set := range configs {
		if set {
			count++
		}
	}

	if count > 1 {
		return fmt.Errorf("%w: multiple configs set on %s node", errConfigMismatch, n.Type)
	}

	return nil
}

// NodeStatus defines the possible outcomes of a node execution.
type NodeStatus string

const (
	NodeStatusSuccess   NodeStatus = "success"
	NodeStatusFailed    NodeStatus = "failed"
	NodeStatusSkipped   NodeStatus = "skipped"
	NodeStatusSuspended NodeStatus = "suspended"
)

// NodeResult is the outcome of executing one node.
type NodeResult struct {
	NodeID    string         `json:"node_id"`
	Status    NodeStatus     `json:"status"`
	Output    map[string]any `json:"output,omitempty"`
	Error     string         `json:"error,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}
