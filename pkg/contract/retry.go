package contract

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/loomworks/loom/pkg/models"
	"github.com/loomworks/loom/pkg/protocol"
)

// ErrAttemptTimeout marks an attempt that lost the race against its timer.
var ErrAttemptTimeout = errors.New("attempt timed out")

// RetryPolicy configures the Retryable wrapper.
type RetryPolicy struct {
	// MaxAttempts is the total number of tries, including the first.
	// Values below 1 are treated as 1.
	MaxAttempts int
	// Delay is the wait between a failed attempt and the next one.
	Delay time.Duration
	// Timeout, when positive, races each attempt against a timer and fails
	// the attempt if the timer wins.
	Timeout time.Duration
}

// Retryable wraps an operation with retry, inter-attempt delay, and an
// optional per-attempt timeout. When attempts are exhausted the last error
// is reported.
func Retryable(op protocol.ExecutorFunc, policy RetryPolicy) protocol.ExecutorFunc {
	attempts := policy.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	return func(ctx context.Context, node *models.WorkflowNode, execCtx *models.ExecutionContext) (any, error) {
		var lastErr error

		for attempt := 1; attempt <= attempts; attempt++ {
			if execCtx.Cancelled() {
				return nil, protocol.ErrExecutionCancelled
			}

			output, err := runAttempt(ctx, op, policy.Timeout, node, execCtx)
			if err == nil {
				return output, nil
			}

			if errors.Is(err, protocol.ErrExecutionCancelled) {
				return nil, err
			}

			lastErr = err

			if attempt < attempts && policy.Delay > 0 {
				select {
				case <-ctx.Done():
					return nil, protocol.ErrExecutionCancelled
				case <-time.After(policy.Delay):
				}
			}
		}

		return nil, fmt.Errorf("all %d attempts failed: %w", attempts, lastErr)
	}
}

// runAttempt executes one attempt, racing it against the configured timeout.
// A timed-out operation keeps running in its goroutine until it returns; its
// result is discarded.
func runAttempt(ctx context.Context, op protocol.ExecutorFunc, timeout time.Duration, node *models.WorkflowNode, execCtx *models.ExecutionContext) (any, error) {
	if timeout <= 0 {
		return op(ctx, node, execCtx)
	}

	type attemptResult struct {
		output any
		err    error
	}

	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan attemptResult, 1)

	go func() {
		output, err := op(attemptCtx, node, execCtx)
		done <- attemptResult{output: output, err: err}
	}()

	select {
	case result := <-done:
		return result.output, result.err
	case <-attemptCtx.Done():
		if ctx.Err() != nil {
			return nil, protocol.ErrExecutionCancelled
		}

		return nil, fmt.Errorf("%w after %s", ErrAttemptTimeout, timeout)
	}
}
