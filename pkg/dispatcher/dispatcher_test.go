package dispatcher

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/loomworks/loom/pkg/contract"
	"github.com/loomworks/loom/pkg/models"
	"github.com/loomworks/loom/pkg/protocol"
	"github.com/loomworks/loom/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestContext() *models.ExecutionContext {
	return models.NewExecutionContext("wf-1", "exec-1")
}

func TestDispatcher_ExecuteNode_UnknownType(t *testing.T) {
	d := NewDispatcher(nil)

	node := testutil.CreateTestNode(testutil.WithType("does-not-exist"))
	result := d.ExecuteNode(context.Background(), node, newTestContext())

	assert.Equal(t, models.NodeStatusFailed, result.Status)
	assert.Contains(t, result.Error, `no executor registered for node type "does-not-exist"`)
}

func TestDispatcher_ExecuteNode_CancelledBeforeDispatch(t *testing.T) {
	d := NewDispatcher(nil)

	called := false
	d.Register("noop", func(_ context.Context, _ *models.WorkflowNode, _ *models.ExecutionContext) (any, error) {
		called = true

		return nil, nil
	})

	execCtx := newTestContext()
	execCtx.MarkCancelled()

	node := testutil.CreateTestNode(testutil.WithType("noop"))
	result := d.ExecuteNode(context.Background(), node, execCtx)

	assert.Equal(t, models.NodeStatusCancelled, result.Status)
	assert.Zero(t, result.DurationMS)
	assert.False(t, called, "executor must not run once cancellation is requested")
}

func TestDispatcher_ExecuteNode_CapturesPanic(t *testing.T) {
	d := NewDispatcher(nil)

	d.Register("boom", func(_ context.Context, _ *models.WorkflowNode, _ *models.ExecutionContext) (any, error) {
		panic("executor bug")
	})

	node := testutil.CreateTestNode(testutil.WithType("boom"))
	result := d.ExecuteNode(context.Background(), node, newTestContext())

	assert.Equal(t, models.NodeStatusFailed, result.Status)
	assert.Contains(t, result.Error, "executor bug")
}

func TestDispatcher_ExecuteNode_ErrorBecomesFailedResult(t *testing.T) {
	d := NewDispatcher(nil)

	d.Register("failing", func(_ context.Context, _ *models.WorkflowNode, _ *models.ExecutionContext) (any, error) {
		return nil, errors.New("downstream unavailable")
	})

	node := testutil.CreateTestNode(testutil.WithType("failing"))
	result := d.ExecuteNode(context.Background(), node, newTestContext())

	assert.Equal(t, models.NodeStatusFailed, result.Status)
	assert.Equal(t, "downstream unavailable", result.Error)
}

func TestDispatcher_ExecuteNode_FailureKeepsPartialOutput(t *testing.T) {
	d := NewDispatcher(nil)

	d.Register("batch", contract.Iterator(func(_ context.Context, index int, item any, _ *models.ExecutionContext) (any, error) {
		if index == 2 {
			return nil, errors.New("item broke")
		}

		return item, nil
	}, contract.IteratorConfig{}))

	node := testutil.CreateTestNode(
		testutil.WithType("batch"),
		testutil.WithConfig(map[string]any{"items": []any{"a", "b", "c"}}),
	)
	result := d.ExecuteNode(context.Background(), node, newTestContext())

	require.Equal(t, models.NodeStatusFailed, result.Status)
	assert.Contains(t, result.Error, "item 2 failed")

	// Items processed before the halt stay visible on the failed result.
	output, ok := result.Output.(contract.IteratorOutput)
	require.True(t, ok)
	assert.Equal(t, []any{"a", "b"}, output.Results)
}

func TestDispatcher_ExecuteNode_CancelledMidExecution(t *testing.T) {
	d := NewDispatcher(nil)

	d.Register("cancels", func(_ context.Context, _ *models.WorkflowNode, _ *models.ExecutionContext) (any, error) {
		return nil, protocol.ErrExecutionCancelled
	})

	node := testutil.CreateTestNode(testutil.WithType("cancels"))
	result := d.ExecuteNode(context.Background(), node, newTestContext())

	assert.Equal(t, models.NodeStatusCancelled, result.Status)
	assert.Empty(t, result.Error)
}

func TestDispatcher_ExecuteNode_SuccessWithTiming(t *testing.T) {
	d := NewDispatcher(nil)

	d.Register("slowish", func(_ context.Context, _ *models.WorkflowNode, _ *models.ExecutionContext) (any, error) {
		time.Sleep(20 * time.Millisecond)

		return "done", nil
	})

	node := testutil.CreateTestNode(testutil.WithType("slowish"))
	result := d.ExecuteNode(context.Background(), node, newTestContext())

	assert.Equal(t, models.NodeStatusCompleted, result.Status)
	assert.Equal(t, "done", result.Output)
	assert.GreaterOrEqual(t, result.DurationMS, int64(15))
}

func TestDispatcher_Register_LastRegistrationWins(t *testing.T) {
	d := NewDispatcher(nil)
	d.RegisterBuiltins()

	d.Register(NodeTypeStart, func(_ context.Context, _ *models.WorkflowNode, _ *models.ExecutionContext) (any, error) {
		return "overridden", nil
	})

	node := testutil.CreateTestNode(testutil.WithType(NodeTypeStart), testutil.WithConfig(map[string]any{"value": "original"}))
	result := d.ExecuteNode(context.Background(), node, newTestContext())

	require.Equal(t, models.NodeStatusCompleted, result.Status)
	assert.Equal(t, "overridden", result.Output)
}

func TestDispatcher_RegisterWithSchema_RejectsInvalidConfig(t *testing.T) {
	d := NewDispatcher(nil)

	err := d.RegisterWithSchema("typed", func(_ context.Context, _ *models.WorkflowNode, _ *models.ExecutionContext) (any, error) {
		return "ok", nil
	}, map[string]any{
		"type":     "object",
		"required": []string{"target"},
		"properties": map[string]any{
			"target": map[string]any{"type": "string"},
		},
	})
	require.NoError(t, err)

	node := testutil.CreateTestNode(testutil.WithType("typed"), testutil.WithConfig(map[string]any{}))
	result := d.ExecuteNode(context.Background(), node, newTestContext())

	assert.Equal(t, models.NodeStatusFailed, result.Status)
	assert.Contains(t, result.Error, "invalid node config")

	node = testutil.CreateTestNode(testutil.WithType("typed"), testutil.WithConfig(map[string]any{"target": "somewhere"}))
	result = d.ExecuteNode(context.Background(), node, newTestContext())

	assert.Equal(t, models.NodeStatusCompleted, result.Status)
}

func TestDispatcher_Registered(t *testing.T) {
	d := NewDispatcher(nil)
	d.RegisterBuiltins()

	assert.True(t, d.Registered(NodeTypeStart))
	assert.True(t, d.Registered(NodeTypeDelay))
	assert.False(t, d.Registered("never-registered"))
}
