package contract

import (
	"context"
	"fmt"

	"github.com/loomworks/loom/pkg/models"
	"github.com/loomworks/loom/pkg/protocol"
)

// ItemFunc processes one element of an iterator node's items input.
type ItemFunc func(ctx context.Context, index int, item any, execCtx *models.ExecutionContext) (any, error)

// IterationError records a per-item failure.
type IterationError struct {
	Index int    `json:"index"`
	Error string `json:"error"`
}

// IteratorOutput carries accumulated per-item results and errors.
type IteratorOutput struct {
	Results []any            `json:"results"`
	Errors  []IterationError `json:"errors,omitempty"`
}

// IteratorConfig controls iteration behavior.
type IteratorConfig struct {
	// ContinueOnError keeps iterating past item failures, accumulating them
	// in the error list. When false the iterator halts on the first failure,
	// surfacing already-processed results alongside the error.
	ContinueOnError bool
}

// Iterator wraps a per-item step into an executor that expects an "items"
// array input. The items come from the node's single input when it resolves
// to a slice, or from the "items" config key.
func Iterator(step ItemFunc, config IteratorConfig) protocol.ExecutorFunc {
	return func(ctx context.Context, node *models.WorkflowNode, execCtx *models.ExecutionContext) (any, error) {
		items, err := resolveItems(node, execCtx)
		if err != nil {
			return nil, err
		}

		output := IteratorOutput{Results: make([]any, 0, len(items))}

		for index, item := range items {
			if execCtx.Cancelled() {
				return output, protocol.ErrExecutionCancelled
			}

			result, err := step(ctx, index, item, execCtx)
			if err != nil {
				output.Errors = append(output.Errors, IterationError{
					Index: index,
					Error: err.Error(),
				})

				if !config.ContinueOnError {
					return output, fmt.Errorf("item %d failed: %w", index, err)
				}

				continue
			}

			output.Results = append(output.Results, result)
		}

		return output, nil
	}
}

func resolveItems(node *models.WorkflowNode, execCtx *models.ExecutionContext) ([]any, error) {
	source := protocol.InputValue(node, execCtx)
	if source == nil {
		source = node.Config["items"]
	}

	switch items := source.(type) {
	case nil:
		return nil, nil
	case []any:
		return items, nil
	case []string:
		converted := make([]any, len(items))
		for i, item := range items {
			converted[i] = item
		}

		return converted, nil
	default:
		return nil, fmt.Errorf("iterator expects an items array, got %T", source)
	}
}
