// Package dispatcher maps node types to executor functions and runs a single
// node to completion, wrapping the call with timing, panic capture, and the
// coarse cancellation check.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/loomworks/loom/pkg/models"
	"github.com/loomworks/loom/pkg/protocol"
	"github.com/xeipuuv/gojsonschema"
)

// Dispatcher owns a registry of node executors. Each dispatcher instance is
// fully isolated; there is no process-wide registry, so independent runs and
// tests never share registrations.
type Dispatcher struct {
	logger    *slog.Logger
	executors map[string]protocol.ExecutorFunc
	schemas   map[string]*gojsonschema.Schema
}

// NewDispatcher creates a dispatcher with an empty registry.
func NewDispatcher(logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}

	return &Dispatcher{
		logger:    logger.With("module", "dispatcher"),
		executors: make(map[string]protocol.ExecutorFunc),
		schemas:   make(map[string]*gojsonschema.Schema),
	}
}

// Register binds an executor function to a node type. The last registration
// for a type wins, allowing callers to override built-ins for testing.
func (d *Dispatcher) Register(nodeType string, fn protocol.ExecutorFunc) {
	d.executors[nodeType] = fn
	delete(d.schemas, nodeType)
}

// RegisterWithSchema binds an executor function together with a JSON schema
// for its node configuration. The config is validated against the schema
// before every dispatch.
func (d *Dispatcher) RegisterWithSchema(nodeType string, fn protocol.ExecutorFunc, schema map[string]any) error {
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(schema))
	if err != nil {
		return fmt.Errorf("invalid config schema for node type %q: %w", nodeType, err)
	}

	d.executors[nodeType] = fn
	d.schemas[nodeType] = compiled

	return nil
}

// Registered reports whether an executor is bound to the node type.
func (d *Dispatcher) Registered(nodeType string) bool {
	_, ok := d.executors[nodeType]

	return ok
}

// ExecuteNode runs one node against the execution context and reports the
// outcome as data. Node-level problems never surface as errors or panics
// across this boundary: unknown types, config schema violations, executor
// errors, and executor panics all come back as a failed result.
func (d *Dispatcher) ExecuteNode(ctx context.Context, node *models.WorkflowNode, execCtx *models.ExecutionContext) *models.NodeExecutionResult {
	fn, ok := d.executors[node.Type]
	if !ok {
		return &models.NodeExecutionResult{
			NodeID: node.ID,
			Status: models.NodeStatusFailed,
			Error:  fmt.Sprintf("no executor registered for node type %q", node.Type),
		}
	}

	if execCtx.Cancelled() {
		return &models.NodeExecutionResult{
			NodeID: node.ID,
			Status: models.NodeStatusCancelled,
		}
	}

	if schema, ok := d.schemas[node.Type]; ok {
		if err := validateConfig(schema, node.Config); err != nil {
			return &models.NodeExecutionResult{
				NodeID: node.ID,
				Status: models.NodeStatusFailed,
				Error:  err.Error(),
			}
		}
	}

	logger := d.logger.With("node_id", node.ID, "node_type", node.Type)
	logger.Debug("dispatching node")

	started := time.Now()
	output, err := d.invoke(ctx, fn, node, execCtx)
	duration := time.Since(started).Milliseconds()

	result := &models.NodeExecutionResult{
		NodeID:     node.ID,
		DurationMS: duration,
	}

	switch {
	case errors.Is(err, protocol.ErrExecutionCancelled):
		result.Status = models.NodeStatusCancelled
		logger.Info("node cancelled mid-execution", "duration_ms", duration)
	case err != nil:
		result.Status = models.NodeStatusFailed
		result.Error = err.Error()
		// Executors may return partial output alongside the error, such as
		// the items an iterator finished before halting. Keep it visible.
		result.Output = output
		logger.Warn("node failed", "error", err, "duration_ms", duration)
	default:
		result.Status = models.NodeStatusCompleted
		result.Output = output
		logger.Debug("node completed", "duration_ms", duration)
	}

	return result
}

// invoke calls the executor, converting a panic into an ordinary error so a
// buggy node implementation cannot take down the run.
func (d *Dispatcher) invoke(ctx context.Context, fn protocol.ExecutorFunc, node *models.WorkflowNode, execCtx *models.ExecutionContext) (output any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("node executor panicked: %v", r)
		}
	}()

	return fn(ctx, node, execCtx)
}

func validateConfig(schema *gojsonschema.Schema, config map[string]any) error {
	if config == nil {
		config = map[string]any{}
	}

	result, err := schema.Validate(gojsonschema.NewGoLoader(config))
	if err != nil {
		return fmt.Errorf("config validation: %w", err)
	}

	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			details = append(details, desc.String())
		}

		return fmt.Errorf("invalid node config: %s", strings.Join(details, "; "))
	}

	return nil
}
