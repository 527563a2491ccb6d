package workflow

import (
	"context"
	"fmt"

	"github.com/loomworks/loom/pkg/protocol"
)

// RegisterTrigger attaches an external event source to the executor. The
// trigger is validated on registration and started on StartTriggers.
func (e *Executor) RegisterTrigger(id string, trigger protocol.Trigger) error {
	if err := trigger.Validate(); err != nil {
		return fmt.Errorf("trigger %q validation: %w", id, err)
	}

	e.triggers[id] = trigger

	return nil
}

// StartTriggers starts listening on every registered trigger, invoking the
// callback when an external event fires. Part of engine init, not of any
// single run.
func (e *Executor) StartTriggers(ctx context.Context, callback protocol.TriggerCallback) error {
	for id, trigger := range e.triggers {
		if err := trigger.Start(ctx, callback); err != nil {
			return fmt.Errorf("failed to start trigger %q: %w", id, err)
		}

		e.logger.Info("started trigger", "trigger_id", id)
	}

	return nil
}

// StopTriggers stops every registered trigger. Part of engine cleanup; the
// first stop error is reported after all triggers were attempted.
func (e *Executor) StopTriggers(ctx context.Context) error {
	var firstErr error

	for id, trigger := range e.triggers {
		if err := trigger.Stop(ctx); err != nil {
			e.logger.Error("failed to stop trigger", "trigger_id", id, "error", err)

			if firstErr == nil {
				firstErr = fmt.Errorf("failed to stop trigger %q: %w", id, err)
			}
		}
	}

	return firstErr
}
