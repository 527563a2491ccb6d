package models

import (
	"sync/atomic"
	"time"
)

// ExecutionStatus represents the overall lifecycle state of a workflow run.
type ExecutionStatus string

const (
	ExecutionStatusDraft     ExecutionStatus = "draft"
	ExecutionStatusRunning   ExecutionStatus = "running"
	ExecutionStatusCompleted ExecutionStatus = "completed"
	ExecutionStatusFailed    ExecutionStatus = "failed"
	ExecutionStatusCancelled ExecutionStatus = "cancelled"
)

// IsTerminal reports whether the status is final for a run.
func (s ExecutionStatus) IsTerminal() bool {
	switch s {
	case ExecutionStatusCompleted, ExecutionStatusFailed, ExecutionStatusCancelled:
		return true
	default:
		return false
	}
}

// NodeStatus defines the possible states of a node execution.
type NodeStatus string

const (
	NodeStatusPending   NodeStatus = "pending"
	NodeStatusRunning   NodeStatus = "running"
	NodeStatusCompleted NodeStatus = "completed"
	NodeStatusFailed    NodeStatus = "failed"
	NodeStatusSkipped   NodeStatus = "skipped"
	NodeStatusCancelled NodeStatus = "cancelled"
)

// Done reports whether the node status counts toward progress.
func (s NodeStatus) Done() bool {
	return s == NodeStatusCompleted || s == NodeStatusSkipped
}

// ExecutionContext is the shared-by-reference bundle passed to every node
// during one run. It is owned by the execution state tracker; all other
// components must only read it or request mutation through tracker methods.
type ExecutionContext struct {
	WorkflowID  string         `json:"workflow_id"`
	ExecutionID string         `json:"execution_id"`
	NodeResults map[string]any `json:"node_results"`
	Variables   map[string]any `json:"variables"`
	StartedAt   time.Time      `json:"started_at"`
	Deadline    *time.Time     `json:"deadline,omitempty"`

	cancelled atomic.Bool
}

// NewExecutionContext creates a fresh context with empty result and
// variable maps and the cancellation flag cleared.
func NewExecutionContext(workflowID, executionID string) *ExecutionContext {
	return &ExecutionContext{
		WorkflowID:  workflowID,
		ExecutionID: executionID,
		NodeResults: make(map[string]any),
		Variables:   make(map[string]any),
		StartedAt:   time.Now().UTC(),
	}
}

// Cancelled reports whether cooperative cancellation was requested. Long
// running node bodies poll this between units of work.
func (c *ExecutionContext) Cancelled() bool {
	return c.cancelled.Load()
}

// MarkCancelled sets the cancellation flag. Reserved for the execution
// state tracker; nodes and dispatchers must treat the flag as read-only.
func (c *ExecutionContext) MarkCancelled() {
	c.cancelled.Store(true)
}

// Snapshot returns a point-in-time copy that stays safe to read while the
// run keeps mutating the original. The result and variable maps are copied
// and the cancellation flag is carried over.
func (c *ExecutionContext) Snapshot() *ExecutionContext {
	if c == nil {
		return nil
	}

	snapshot := &ExecutionContext{
		WorkflowID:  c.WorkflowID,
		ExecutionID: c.ExecutionID,
		NodeResults: make(map[string]any, len(c.NodeResults)),
		Variables:   make(map[string]any, len(c.Variables)),
		StartedAt:   c.StartedAt,
		Deadline:    c.Deadline,
	}

	for id, result := range c.NodeResults {
		snapshot.NodeResults[id] = result
	}

	for key, value := range c.Variables {
		snapshot.Variables[key] = value
	}

	if c.Cancelled() {
		snapshot.cancelled.Store(true)
	}

	return snapshot
}

// ExecutionState is the tracker's full record of a single run.
type ExecutionState struct {
	WorkflowID    string                `json:"workflow_id"`
	ExecutionID   string                `json:"execution_id"`
	Status        ExecutionStatus       `json:"status"`
	NodeStatuses  map[string]NodeStatus `json:"node_statuses"`
	Context       *ExecutionContext     `json:"context"`
	CurrentNodeID string                `json:"current_node_id,omitempty"`
	Progress      int                   `json:"progress"` // 0-100
}

// NodeExecutionResult is the dispatcher's return value for one node run.
type NodeExecutionResult struct {
	NodeID     string     `json:"node_id"`
	Status     NodeStatus `json:"status"`
	Output     any        `json:"output,omitempty"`
	Error      string     `json:"error,omitempty"`
	DurationMS int64      `json:"duration_ms"`
}

// WorkflowExecutionResult is the executor's final output for a run. It is
// intended to be serialized by the hosting layer; timestamps marshal as
// RFC 3339 strings.
type WorkflowExecutionResult struct {
	ExecutionID string          `json:"execution_id"`
	WorkflowID  string          `json:"workflow_id"`
	Status      ExecutionStatus `json:"status"`
	NodeResults map[string]any  `json:"node_results"`
	DurationMS  int64           `json:"duration_ms"`
	Error       string          `json:"error,omitempty"`
	StartedAt   time.Time       `json:"started_at"`
	FinishedAt  time.Time       `json:"finished_at"`
}
