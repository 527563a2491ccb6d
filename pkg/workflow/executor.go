// Package workflow orchestrates a single run: it computes the execution
// order, drives the state tracker through node lifecycle transitions,
// delegates node work to the dispatcher, and assembles the final result.
package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/loomworks/loom/pkg/dispatcher"
	"github.com/loomworks/loom/pkg/models"
	"github.com/loomworks/loom/pkg/otelhelper"
	"github.com/loomworks/loom/pkg/protocol"
	"github.com/loomworks/loom/pkg/tracker"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Executor runs workflows sequentially in topological order. Nodes are
// dispatched one at a time; cancellation is cooperative and checked once per
// node plus inside long-running node bodies.
//
// An executor handles one run at a time. State may be polled from other
// goroutines while a run is in flight, and Cancel may be called from any
// goroutine.
type Executor struct {
	logger     *slog.Logger
	dispatcher *dispatcher.Dispatcher
	tracker    *tracker.Tracker
	tracer     trace.Tracer
	triggers   map[string]protocol.Trigger
}

// Option configures an Executor.
type Option func(*Executor)

// WithDispatcher replaces the default built-ins dispatcher.
func WithDispatcher(d *dispatcher.Dispatcher) Option {
	return func(e *Executor) {
		e.dispatcher = d
	}
}

// WithTracer enables OpenTelemetry spans per run and per node.
func WithTracer(tracer trace.Tracer) Option {
	return func(e *Executor) {
		e.tracer = tracer
	}
}

// NewExecutor creates an executor with a fresh dispatcher carrying the
// built-in node vocabulary. The dispatcher and tracker are owned by this
// executor, so independent executors in one process stay fully isolated.
func NewExecutor(logger *slog.Logger, opts ...Option) *Executor {
	if logger == nil {
		logger = slog.Default()
	}

	executor := &Executor{
		logger:   logger.With("module", "workflow_executor"),
		tracker:  tracker.NewTracker(logger),
		triggers: make(map[string]protocol.Trigger),
	}

	for _, opt := range opts {
		opt(executor)
	}

	if executor.dispatcher == nil {
		d := dispatcher.NewDispatcher(logger)
		d.RegisterBuiltins()
		executor.dispatcher = d
	}

	return executor
}

// RegisterNodeExecutor extends the node vocabulary prior to a run. It
// forwards to the owned dispatcher; the last registration for a type wins.
func (e *Executor) RegisterNodeExecutor(nodeType string, fn protocol.ExecutorFunc) {
	e.dispatcher.Register(nodeType, fn)
}

// Cancel requests cooperative termination of the current run. A node
// already dispatched runs to its own completion or internal cancellation
// check; the loop stops before the next node.
func (e *Executor) Cancel() {
	e.tracker.Cancel()
}

// State returns a defensive snapshot of the current run state for progress
// polling.
func (e *Executor) State() *models.ExecutionState {
	return e.tracker.State()
}

// Execute runs the workflow and always returns a fully-populated result:
// success, failure, or cancellation. It never panics and never returns a Go
// error for node-level problems; everything surfaces as result data.
func (e *Executor) Execute(ctx context.Context, workflow *models.Workflow) *models.WorkflowExecutionResult {
	started := time.Now().UTC()
	executionID := generateExecutionID()

	logger := e.logger.With(
		"workflow_id", workflow.ID,
		"execution_id", executionID,
	)
	logger.Info("starting workflow execution", "nodes", len(workflow.Nodes))

	e.tracker.InitializeExecution(workflow.ID, executionID, workflow.Nodes)

	if deadline, ok := ctx.Deadline(); ok {
		e.tracker.SetDeadline(deadline)
	}

	for key, value := range workflow.Variables {
		e.tracker.SetVariable(key, value)
	}

	ctx, span := e.startSpan(ctx, "workflow.execute",
		attribute.String(otelhelper.WorkflowIDKey, workflow.ID),
		attribute.String(otelhelper.ExecutionIDKey, executionID),
	)

	status, errMessage := e.run(ctx, workflow, logger)

	e.tracker.SetWorkflowStatus(status)

	finished := time.Now().UTC()
	result := &models.WorkflowExecutionResult{
		ExecutionID: executionID,
		WorkflowID:  workflow.ID,
		Status:      status,
		NodeResults: e.tracker.AllNodeResults(),
		DurationMS:  finished.Sub(started).Milliseconds(),
		Error:       errMessage,
		StartedAt:   started,
		FinishedAt:  finished,
	}

	if span != nil {
		if errMessage != "" {
			otelhelper.SetError(span, fmt.Errorf("%s", errMessage))
		}

		span.End()
	}

	logger.Info("workflow execution finished",
		"status", result.Status,
		"duration_ms", result.DurationMS,
		"error", result.Error)

	return result
}

// run drives the execution loop. Any panic escaping a component is caught
// here and converted into a failed status so the caller never sees it.
func (e *Executor) run(ctx context.Context, workflow *models.Workflow, logger *slog.Logger) (status models.ExecutionStatus, errMessage string) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("unexpected panic during execution", "panic", r)
			status = models.ExecutionStatusFailed
			errMessage = fmt.Sprintf("internal error: %v", r)
		}
	}()

	// An empty workflow completes immediately; this is an explicit base
	// case, not an error.
	if len(workflow.Nodes) == 0 {
		return models.ExecutionStatusCompleted, ""
	}

	order, err := buildExecutionOrder(workflow)
	if err != nil {
		logger.Error("failed to compute execution order", "error", err)

		return models.ExecutionStatusFailed, err.Error()
	}

	nodesByID := make(map[string]*models.WorkflowNode, len(workflow.Nodes))
	for _, node := range workflow.Nodes {
		nodesByID[node.ID] = node
	}

	for _, nodeID := range order {
		if e.tracker.IsCancelled() {
			logger.Info("execution cancelled", "before_node", nodeID)

			return models.ExecutionStatusCancelled, ""
		}

		node, ok := nodesByID[nodeID]
		if !ok {
			// The order only contains known ids; reaching this indicates a
			// malformed graph slipped through scheduling.
			return models.ExecutionStatusFailed, fmt.Sprintf("node %q not found in workflow", nodeID)
		}

		result := e.executeNode(ctx, node)

		e.tracker.SetNodeStatus(nodeID, result.Status)

		switch result.Status {
		case models.NodeStatusCompleted:
			e.tracker.SetNodeResult(nodeID, result.Output)
		case models.NodeStatusCancelled:
			logger.Info("execution cancelled", "at_node", nodeID)

			return models.ExecutionStatusCancelled, ""
		case models.NodeStatusFailed:
			logger.Warn("node failed, halting run", "node_id", nodeID, "error", result.Error)

			return models.ExecutionStatusFailed, fmt.Sprintf("node %q failed: %s", nodeID, result.Error)
		default:
			return models.ExecutionStatusFailed, fmt.Sprintf("node %q returned unexpected status %q", nodeID, result.Status)
		}
	}

	return models.ExecutionStatusCompleted, ""
}

func (e *Executor) executeNode(ctx context.Context, node *models.WorkflowNode) *models.NodeExecutionResult {
	e.tracker.SetNodeStatus(node.ID, models.NodeStatusRunning)

	ctx, span := e.startSpan(ctx, "workflow.node",
		attribute.String(otelhelper.NodeIDKey, node.ID),
		attribute.String(otelhelper.NodeTypeKey, node.Type),
	)

	result := e.dispatcher.ExecuteNode(ctx, node, e.tracker.Context())

	if span != nil {
		if result.Status == models.NodeStatusFailed {
			otelhelper.SetError(span, fmt.Errorf("%s", result.Error))
		}

		span.End()
	}

	return result
}

// startSpan starts a span when tracing is enabled; otherwise it is a no-op.
func (e *Executor) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if e.tracer == nil {
		return ctx, nil
	}

	return otelhelper.StartSpan(ctx, e.tracer, name, attrs...)
}

// generateExecutionID generates a unique run id.
func generateExecutionID() string {
	return fmt.Sprintf("exec-%s", uuid.New().String()[:8])
}
