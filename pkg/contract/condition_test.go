package contract

import (
	"context"
	"errors"
	"testing"

	"github.com/loomworks/loom/pkg/models"
	"github.com/loomworks/loom/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newExecContext() *models.ExecutionContext {
	return models.NewExecutionContext("wf-1", "exec-1")
}

func TestCondition_ReportsResultAndMet(t *testing.T) {
	fn := Condition(func(_ context.Context, _ *models.WorkflowNode, execCtx *models.ExecutionContext) (any, error) {
		return execCtx.Variables["threshold"], nil
	})

	execCtx := newExecContext()
	execCtx.Variables["threshold"] = true

	output, err := fn(context.Background(), testutil.CreateTestNode(), execCtx)
	require.NoError(t, err)

	condition, ok := output.(ConditionOutput)
	require.True(t, ok)
	assert.Equal(t, true, condition.Result)
	assert.True(t, condition.Met)
}

func TestCondition_NotMet(t *testing.T) {
	fn := Condition(func(_ context.Context, _ *models.WorkflowNode, _ *models.ExecutionContext) (any, error) {
		return false, nil
	})

	output, err := fn(context.Background(), testutil.CreateTestNode(), newExecContext())
	require.NoError(t, err)

	condition := output.(ConditionOutput)
	assert.False(t, condition.Met)
}

func TestCondition_PredicateError(t *testing.T) {
	fn := Condition(func(_ context.Context, _ *models.WorkflowNode, _ *models.ExecutionContext) (any, error) {
		return nil, errors.New("lookup failed")
	})

	_, err := fn(context.Background(), testutil.CreateTestNode(), newExecContext())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lookup failed")
}

func TestTruthy(t *testing.T) {
	testCases := []struct {
		name     string
		value    any
		expected bool
		wantErr  bool
	}{
		{name: "nil is true", value: nil, expected: true},
		{name: "bool true", value: true, expected: true},
		{name: "bool false", value: false, expected: false},
		{name: "empty string is true", value: "", expected: true},
		{name: "string true", value: "true", expected: true},
		{name: "string false", value: "false", expected: false},
		{name: "unparsable string", value: "maybe", wantErr: true},
		{name: "zero int", value: 0, expected: false},
		{name: "nonzero int", value: 7, expected: true},
		{name: "zero float", value: 0.0, expected: false},
		{name: "nonzero float", value: 0.5, expected: true},
		{name: "unsupported type", value: []string{"a"}, wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			result, err := Truthy(tc.value)
			if tc.wantErr {
				assert.Error(t, err)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.expected, result)
		})
	}
}
