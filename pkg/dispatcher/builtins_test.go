package dispatcher

import (
	"context"
	"testing"
	"time"

	"github.com/loomworks/loom/pkg/models"
	"github.com/loomworks/loom/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBuiltinDispatcher() *Dispatcher {
	d := NewDispatcher(nil)
	d.RegisterBuiltins()

	return d
}

func TestBuiltin_Start_EchoesConfiguredValue(t *testing.T) {
	d := newBuiltinDispatcher()

	node := testutil.CreateTestNode(
		testutil.WithType(NodeTypeStart),
		testutil.WithConfig(map[string]any{"value": "hello"}),
	)

	result := d.ExecuteNode(context.Background(), node, newTestContext())

	require.Equal(t, models.NodeStatusCompleted, result.Status)
	assert.Equal(t, "hello", result.Output)
}

func TestBuiltin_Start_NoValueIsNil(t *testing.T) {
	d := newBuiltinDispatcher()

	node := testutil.CreateTestNode(testutil.WithType(NodeTypeStart), testutil.WithConfig(map[string]any{}))
	result := d.ExecuteNode(context.Background(), node, newTestContext())

	require.Equal(t, models.NodeStatusCompleted, result.Status)
	assert.Nil(t, result.Output)
}

func TestBuiltin_Transform_Operations(t *testing.T) {
	testCases := []struct {
		operation string
		input     any
		expected  any
	}{
		{operation: "uppercase", input: "hello", expected: "HELLO"},
		{operation: "lowercase", input: "HeLLo", expected: "hello"},
		{operation: "trim", input: "  spaced  ", expected: "spaced"},
		{operation: "passthrough", input: 42, expected: 42},
	}

	d := newBuiltinDispatcher()

	for _, tc := range testCases {
		t.Run(tc.operation, func(t *testing.T) {
			execCtx := newTestContext()
			execCtx.NodeResults["upstream"] = tc.input

			node := testutil.CreateTestNode(
				testutil.WithType(NodeTypeTransform),
				testutil.WithConfig(map[string]any{"operation": tc.operation}),
				testutil.WithInputs("upstream"),
			)

			result := d.ExecuteNode(context.Background(), node, execCtx)

			require.Equal(t, models.NodeStatusCompleted, result.Status)
			assert.Equal(t, tc.expected, result.Output)
		})
	}
}

func TestBuiltin_Transform_NoInputResolvesEmpty(t *testing.T) {
	d := newBuiltinDispatcher()

	node := testutil.CreateTestNode(
		testutil.WithType(NodeTypeTransform),
		testutil.WithConfig(map[string]any{"operation": "uppercase"}),
	)

	result := d.ExecuteNode(context.Background(), node, newTestContext())

	require.Equal(t, models.NodeStatusCompleted, result.Status)
	assert.Equal(t, "", result.Output)
}

func TestBuiltin_Transform_RejectsUnknownOperation(t *testing.T) {
	d := newBuiltinDispatcher()

	node := testutil.CreateTestNode(
		testutil.WithType(NodeTypeTransform),
		testutil.WithConfig(map[string]any{"operation": "reverse"}),
	)

	result := d.ExecuteNode(context.Background(), node, newTestContext())

	// The schema restricts operations before the executor runs.
	assert.Equal(t, models.NodeStatusFailed, result.Status)
	assert.Contains(t, result.Error, "invalid node config")
}

func TestBuiltin_Delay_WaitsConfiguredDuration(t *testing.T) {
	d := newBuiltinDispatcher()

	node := testutil.CreateTestNode(
		testutil.WithType(NodeTypeDelay),
		testutil.WithConfig(map[string]any{"duration_ms": 50}),
	)

	started := time.Now()
	result := d.ExecuteNode(context.Background(), node, newTestContext())
	elapsed := time.Since(started)

	require.Equal(t, models.NodeStatusCompleted, result.Status)
	assert.GreaterOrEqual(t, elapsed, 50*time.Millisecond)
}

func TestBuiltin_Delay_CancelledMidWait(t *testing.T) {
	d := newBuiltinDispatcher()

	execCtx := newTestContext()

	node := testutil.CreateTestNode(
		testutil.WithType(NodeTypeDelay),
		testutil.WithConfig(map[string]any{"duration_ms": 2000}),
	)

	timer := time.AfterFunc(30*time.Millisecond, execCtx.MarkCancelled)
	defer timer.Stop()

	started := time.Now()
	result := d.ExecuteNode(context.Background(), node, execCtx)
	elapsed := time.Since(started)

	assert.Equal(t, models.NodeStatusCancelled, result.Status)
	// Cancellation is honored within one poll interval, far before the
	// configured two seconds.
	assert.Less(t, elapsed, 500*time.Millisecond)
}

func TestBuiltin_Error_FailsWhenConfigured(t *testing.T) {
	d := newBuiltinDispatcher()

	node := testutil.CreateTestNode(
		testutil.WithType(NodeTypeError),
		testutil.WithConfig(map[string]any{"throw_error": true, "message": "deliberate failure"}),
	)

	result := d.ExecuteNode(context.Background(), node, newTestContext())

	assert.Equal(t, models.NodeStatusFailed, result.Status)
	assert.Equal(t, "deliberate failure", result.Error)
}

func TestBuiltin_Error_SucceedsWhenNotConfigured(t *testing.T) {
	d := newBuiltinDispatcher()

	node := testutil.CreateTestNode(
		testutil.WithType(NodeTypeError),
		testutil.WithConfig(map[string]any{"throw_error": false}),
	)

	result := d.ExecuteNode(context.Background(), node, newTestContext())

	assert.Equal(t, models.NodeStatusCompleted, result.Status)
}

func TestBuiltin_Logger_AppendsToSink(t *testing.T) {
	d := newBuiltinDispatcher()

	var sink []string

	node := testutil.CreateTestNode(
		testutil.WithType(NodeTypeLogger),
		testutil.WithConfig(map[string]any{"value": "step-1", "sink": &sink}),
	)

	result := d.ExecuteNode(context.Background(), node, newTestContext())

	require.Equal(t, models.NodeStatusCompleted, result.Status)
	assert.Equal(t, []string{"step-1"}, sink)
}

func TestBuiltin_Logger_SliceSink(t *testing.T) {
	d := newBuiltinDispatcher()

	sink := &SliceSink{}

	execCtx := newTestContext()
	execCtx.NodeResults["upstream"] = "from-input"

	node := testutil.CreateTestNode(
		testutil.WithType(NodeTypeLogger),
		testutil.WithConfig(map[string]any{"sink": sink}),
		testutil.WithInputs("upstream"),
	)

	result := d.ExecuteNode(context.Background(), node, execCtx)

	require.Equal(t, models.NodeStatusCompleted, result.Status)
	assert.Equal(t, []string{"from-input"}, sink.Messages)
}

func TestBuiltin_Passthrough_ReturnsInputUnchanged(t *testing.T) {
	d := newBuiltinDispatcher()

	execCtx := newTestContext()
	execCtx.NodeResults["upstream"] = map[string]any{"k": "v"}

	node := testutil.CreateTestNode(
		testutil.WithType(NodeTypePassthrough),
		testutil.WithInputs("upstream"),
	)

	result := d.ExecuteNode(context.Background(), node, execCtx)

	require.Equal(t, models.NodeStatusCompleted, result.Status)
	assert.Equal(t, map[string]any{"k": "v"}, result.Output)
}

func TestBuiltin_Passthrough_NoInputIsNil(t *testing.T) {
	d := newBuiltinDispatcher()

	node := testutil.CreateTestNode(testutil.WithType(NodeTypePassthrough))
	result := d.ExecuteNode(context.Background(), node, newTestContext())

	require.Equal(t, models.NodeStatusCompleted, result.Status)
	assert.Nil(t, result.Output)
}
