package protocol

import (
	"context"
	"log/slog"
)

// TriggerCallback is invoked by a trigger when its external event fires.
type TriggerCallback func(ctx context.Context, data map[string]any) error

// Trigger represents an external event source. Triggers declare no inputs
// and expose start/stop listening hooks invoked on engine init and cleanup
// rather than per-run execution.
type Trigger interface {
	Start(ctx context.Context, callback TriggerCallback) error
	Stop(ctx context.Context) error
	Validate() error
}

// TriggerFactory creates trigger instances from a configuration map.
type TriggerFactory interface {
	Create(config map[string]any, logger *slog.Logger) (Trigger, error)
	ID() string
}
