// Package models defines the core domain models for organization-owned workflow automation.
package models

import (
	"errors"
	"fmt"
	"time"
)

// WorkflowDefinition is an organization-owned automation: a trigger set plus a
// directed node graph the executor interprets.
type WorkflowDefinition struct {
	ID             string         `json:"id"                validate:"required"`
	OrganizationID string         `json:"organization_id"   validate:"required"`
	Name           string         `json:"name"              validate:"required,min=3"`
	Description    string         `json:"description,omitempty"`
	IsActive       bool           `json:"is_active"`
	Nodes          []*Node        `json:"nodes"`
	Connections    []*Connection  `json:"connections"`
	Variables      []*Variable    `json:"variables,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      *time.Time     `json:"deleted_at,omitempty"`
}

// Variable is a named scratch value seeded into the execution scope.
type Variable struct {
	Name         string `json:"name" validate:"required"`
	Type         string `json:"type,omitempty"` // string, number, boolean, list, object
	InitialValue any    `json:"initial_value,omitempty"`
}

// Connection is a directed edge between two node ids, optionally tagged with a
// branch label ("true"/"false" for conditions, "loop-body"/"loop-exit" for
// loops, "approved"/"rejected" for approval gates).
type Connection struct {
	ID         string `json:"id"`
	FromNodeID string `json:"from_node_id" validate:"required"`
	ToNodeID   string `json:"to_node_id"   validate:"required"`
	Label      string `json:"label,omitempty"`
}

// Branch labels used on connections.
const (
	BranchTrue     = "true"
	BranchFalse    = "false"
	BranchLoopBody = "loop-body"
	BranchLoopExit = "loop-exit"
	BranchApproved = "approved"
	BranchRejected = "rejected"
)

var (
	// ErrDefinitionInvalid is returned when a workflow definition fails structural validation.
	ErrDefinitionInvalid = errors.New("invalid workflow definition")
)

// NodeByID returns the node with the given id, or nil.
func (w *WorkflowDefinition) NodeByID(id string) *Node {
	for _, node := range w.Nodes {
		if node.ID == id {
			return node
		}
	}

	return nil
}

// TriggerNodes returns all trigger nodes in the definition.
func (w *WorkflowDefinition) TriggerNodes() []*Node {
	var triggers []*Node

	for _, node := range w.Nodes {
		if node.Type == NodeTypeTrigger {
			triggers = append(triggers, node)
		}
	}

	return triggers
}

// Successors returns the target node ids of connections leaving fromNodeID with
// the given label. The empty label matches unlabeled connections only.
func (w *WorkflowDefinition) Successors(fromNodeID, label string) []string {
	var targets []string

	for _, conn := range w.Connections {
		if conn.FromNodeID == fromNodeID && conn.Label == label {
			targets = append(targets, conn.ToNodeID)
		}
	}

	return targets
}

// ValidateGraph checks structural invariants of the node graph: node ids are
// unique, every connection endpoint references an existing node, node configs
// match their declared type, and any cycle is bounded by a LOOP node's body.
func (w *WorkflowDefinition) ValidateGraph() error {
	seen := make(map[string]bool, len(w.Nodes))

	for _, node := range w.Nodes {
		if seen[node.ID] {
			return fmt.Errorf("%w: duplicate node id %q", ErrDefinitionInvalid, node.ID)
		}

		seen[node.ID] = true

		if err := node.ValidateConfig(); err != nil {
			return fmt.Errorf("%w: node %q: %w", ErrDefinitionInvalid, node.ID, err)
		}
	}

	for _, conn := range w.Connections {
		if !seen[conn.FromNodeID] {
			return fmt.Errorf("%w: connection %q references unknown source node %q",
				ErrDefinitionInvalid, conn.ID, conn.FromNodeID)
		}

		if !seen[conn.ToNodeID] {
			return fmt.Errorf("%w: connection %q references unknown target node %q",
				ErrDefinitionInvalid, conn.ID, conn.ToNodeID)
		}
	}

	if cycleNode := w.findUnboundedCycle(); cycleNode != "" {
		return fmt.Errorf("%w: unbounded cycle through node %q", ErrDefinitionInvalid, cycleNode)
	}

	return nil
}

// findUnboundedCycle runs cycle detection over the graph with loop-body edges
// removed. Cycles closed through a LOOP body are bounded by the loop's
// iteration semantics; any remaining cycle is a definition error. Returns the
// id of a node on the offending cycle, or "".
func (w *WorkflowDefinition) findUnboundedCycle() string {
	adjacency := make(map[string][]string, len(w.Nodes))

	for _, conn := range w.Connections {
		if conn.Label == BranchLoopBody {
			continue
		}

		adjacency[conn.FromNodeID] = append(adjacency[conn.FromNodeID], conn.ToNodeID)
	}

	const (
		unvisited = 0
		inStack   = 1
		done      = 2
	)

	state := make(map[string]int, len(w.Nodes))

	var visit func(id string) string

	visit = func(id string) string {
		state[id] = inStack

		for _, next := range adjacency[id] {
			switch state[next] {
			case inStack:
				return next
			case unvisited:
				if found := visit(next); found != "" {
					return found
				}
			}
		}

		state[id] = done

		return ""
	}

	for _, node := range w.Nodes {
		if state[node.ID] == unvisited {
			if found := visit(node.ID); found != "" {
				return found
			}
		}
	}

	return ""
}
