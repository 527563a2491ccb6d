package contract

import (
	"context"
	"fmt"
	"strconv"

	"github.com/loomworks/loom/pkg/models"
	"github.com/loomworks/loom/pkg/protocol"
)

// Predicate evaluates an opaque condition against the node and context and
// returns an arbitrary result value. The engine does not interpret the
// expression; it only coerces the result to a boolean.
type Predicate func(ctx context.Context, node *models.WorkflowNode, execCtx *models.ExecutionContext) (any, error)

// ConditionOutput is the output shape of a condition node.
type ConditionOutput struct {
	Result any  `json:"result"`
	Met    bool `json:"met"`
}

// Condition wraps a predicate into an executor that reports both the raw
// predicate result and whether the condition was met.
func Condition(predicate Predicate) protocol.ExecutorFunc {
	return func(ctx context.Context, node *models.WorkflowNode, execCtx *models.ExecutionContext) (any, error) {
		result, err := predicate(ctx, node, execCtx)
		if err != nil {
			return nil, fmt.Errorf("condition evaluation: %w", err)
		}

		met, err := Truthy(result)
		if err != nil {
			return nil, fmt.Errorf("condition result: %w", err)
		}

		return ConditionOutput{Result: result, Met: met}, nil
	}
}

// Truthy coerces a predicate result to a boolean. Nil and empty strings are
// treated as true so that an unset condition never blocks a branch.
func Truthy(value any) (bool, error) {
	if value == nil {
		return true, nil
	}

	switch v := value.(type) {
	case bool:
		return v, nil
	case string:
		if v == "" {
			return true, nil
		}

		result, err := strconv.ParseBool(v)
		if err != nil {
			return false, fmt.Errorf("cannot convert string %q to boolean: %w", v, err)
		}

		return result, nil
	case int:
		return v != 0, nil
	case int64:
		return v != 0, nil
	case float64:
		return v != 0, nil
	default:
		return false, fmt.Errorf("cannot convert %T to boolean", value)
	}
}
