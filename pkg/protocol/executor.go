// Package protocol defines the interfaces and contracts for pluggable nodes.
package protocol

import (
	"context"
	"errors"

	"github.com/loomworks/loom/pkg/models"
)

// ErrExecutionCancelled is returned by node bodies that observe the
// cooperative cancellation flag mid-work. The dispatcher maps it to a
// cancelled node result instead of a failure.
var ErrExecutionCancelled = errors.New("execution cancelled")

// ExecutorFunc runs a single node against the current execution context and
// returns the node's output. Implementations must only read the context;
// mutation goes through the execution state tracker.
//
// Richer behaviors (retry, caching, iteration) are expressed as wrapper
// functions applied around a plain ExecutorFunc, keeping new node kinds
// additive.
type ExecutorFunc func(ctx context.Context, node *models.WorkflowNode, execCtx *models.ExecutionContext) (any, error)

// InputValue resolves the node's single input value from the context's
// result map. A node with no declared inputs resolves to nil.
func InputValue(node *models.WorkflowNode, execCtx *models.ExecutionContext) any {
	if len(node.Inputs) == 0 {
		return nil
	}

	return execCtx.NodeResults[node.Inputs[0]]
}

// InputValues resolves every declared input of the node, in declaration
// order. Missing results resolve to nil entries.
func InputValues(node *models.WorkflowNode, execCtx *models.ExecutionContext) []any {
	if len(node.Inputs) == 0 {
		return nil
	}

	values := make([]any, 0, len(node.Inputs))
	for _, id := range node.Inputs {
		values = append(values, execCtx.NodeResults[id])
	}

	return values
}
