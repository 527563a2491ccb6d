package schedule

import (
	"log/slog"

	"github.com/loomworks/loom/pkg/protocol"
)

// Factory creates schedule triggers from configuration maps.
type Factory struct{}

// NewFactory creates a schedule trigger factory.
func NewFactory() protocol.TriggerFactory {
	return &Factory{}
}

// Create builds a schedule trigger from its configuration.
func (f *Factory) Create(config map[string]any, logger *slog.Logger) (protocol.Trigger, error) {
	return NewTrigger(config, logger)
}

// ID returns the trigger type identifier.
func (f *Factory) ID() string {
	return "schedule"
}
