// Package tracker owns the mutable record of a single workflow run: per-node
// statuses, the shared execution context, cooperative cancellation, and the
// derived progress percentage.
//
// Exactly one tracker instance exists per run and it is the only writer of
// the context's result, variable, and cancellation fields. The executor and
// dispatcher hold the context for reads only, which keeps a single source of
// truth for what happened so far.
package tracker

import (
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/loomworks/loom/pkg/models"
)

// Tracker tracks the execution state of one workflow run at a time.
// A fresh InitializeExecution call is required to run again; terminal
// overall statuses never transition further within one initialization.
type Tracker struct {
	mu     sync.Mutex
	logger *slog.Logger
	state  *models.ExecutionState
	total  int
}

// NewTracker creates an empty tracker in draft status.
func NewTracker(logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}

	return &Tracker{
		logger: logger.With("module", "tracker"),
		state: &models.ExecutionState{
			Status:       models.ExecutionStatusDraft,
			NodeStatuses: make(map[string]models.NodeStatus),
		},
	}
}

// InitializeExecution resets the tracker for a new run: every node pending,
// a fresh context with empty result and variable maps, cancellation cleared,
// overall status running. A zero-node run starts at 100% progress.
func (t *Tracker) InitializeExecution(workflowID, executionID string, nodes []*models.WorkflowNode) {
	t.mu.Lock()
	defer t.mu.Unlock()

	statuses := make(map[string]models.NodeStatus, len(nodes))
	for _, node := range nodes {
		statuses[node.ID] = models.NodeStatusPending
	}

	t.total = len(nodes)
	t.state = &models.ExecutionState{
		WorkflowID:   workflowID,
		ExecutionID:  executionID,
		Status:       models.ExecutionStatusRunning,
		NodeStatuses: statuses,
		Context:      models.NewExecutionContext(workflowID, executionID),
	}
	t.state.Progress = t.progressLocked()

	t.logger.Debug("initialized execution",
		"workflow_id", workflowID,
		"execution_id", executionID,
		"nodes", len(nodes))
}

// SetNodeStatus records a node status transition and recomputes progress.
func (t *Tracker) SetNodeStatus(nodeID string, status models.NodeStatus) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.state.NodeStatuses[nodeID] = status
	if status == models.NodeStatusRunning {
		t.state.CurrentNodeID = nodeID
	}

	t.state.Progress = t.progressLocked()
}

// SetNodeResult stores a node's output in the context's result map.
func (t *Tracker) SetNodeResult(nodeID string, result any) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.state.Context.NodeResults[nodeID] = result
}

// SetDeadline records the run's optional deadline on the context.
func (t *Tracker) SetDeadline(deadline time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state.Context != nil {
		t.state.Context.Deadline = &deadline
	}
}

// SetVariable stores a user-defined variable in the context.
func (t *Tracker) SetVariable(key string, value any) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.state.Context.Variables[key] = value
}

// SetWorkflowStatus transitions the overall status. Terminal statuses are
// final; attempts to leave them are ignored.
func (t *Tracker) SetWorkflowStatus(status models.ExecutionStatus) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state.Status.IsTerminal() {
		t.logger.Debug("ignoring status transition from terminal state",
			"from", t.state.Status, "to", status)

		return
	}

	t.state.Status = status
}

// Cancel requests cooperative termination: it sets the context's
// cancellation flag and marks the run cancelled. Idempotent, and a no-op
// once the run reached a terminal status.
func (t *Tracker) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state.Status.IsTerminal() {
		return
	}

	if t.state.Context != nil {
		t.state.Context.MarkCancelled()
	}

	t.state.Status = models.ExecutionStatusCancelled
}

// IsCancelled reports whether cancellation was requested for the run.
func (t *Tracker) IsCancelled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.state.Context != nil && t.state.Context.Cancelled()
}

// Context returns the live execution context shared with node executors.
// Callers must treat it as read-only.
func (t *Tracker) Context() *models.ExecutionContext {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.state.Context
}

// NodeResult returns the stored output of a node, if any.
func (t *Tracker) NodeResult(nodeID string) (any, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state.Context == nil {
		return nil, false
	}

	result, ok := t.state.Context.NodeResults[nodeID]

	return result, ok
}

// AllNodeResults returns a copy of the node-id-to-output mapping.
func (t *Tracker) AllNodeResults() map[string]any {
	t.mu.Lock()
	defer t.mu.Unlock()

	results := make(map[string]any)
	if t.state.Context != nil {
		for id, result := range t.state.Context.NodeResults {
			results[id] = result
		}
	}

	return results
}

// Progress returns the current 0-100 progress value.
func (t *Tracker) Progress() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.state.Progress
}

// State returns a defensive copy of the current state for progress polling.
// The status map and the context's result and variable maps are all copied,
// so pollers on other goroutines never race with the run's own writes.
func (t *Tracker) State() *models.ExecutionState {
	t.mu.Lock()
	defer t.mu.Unlock()

	statuses := make(map[string]models.NodeStatus, len(t.state.NodeStatuses))
	for id, status := range t.state.NodeStatuses {
		statuses[id] = status
	}

	return &models.ExecutionState{
		WorkflowID:    t.state.WorkflowID,
		ExecutionID:   t.state.ExecutionID,
		Status:        t.state.Status,
		NodeStatuses:  statuses,
		Context:       t.state.Context.Snapshot(),
		CurrentNodeID: t.state.CurrentNodeID,
		Progress:      t.state.Progress,
	}
}

// progressLocked computes completed-or-skipped over total, rounded to the
// nearest integer percentage. Zero nodes is 100% by convention.
func (t *Tracker) progressLocked() int {
	if t.total == 0 {
		return 100
	}

	done := 0
	for _, status := range t.state.NodeStatuses {
		if status.Done() {
			done++
		}
	}

	return int(math.Round(float64(done) / float64(t.total) * 100))
}
