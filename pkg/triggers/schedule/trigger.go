// Package schedule provides a cron-based trigger implementation.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/loomworks/loom/pkg/protocol"
	"github.com/robfig/cron/v3"
)

// Trigger fires its callback on a cron schedule. It implements the trigger
// lifecycle contract: Start begins listening, Stop ends it.
type Trigger struct {
	ID       string
	CronExpr string
	Enabled  bool

	cron     *cron.Cron
	callback protocol.TriggerCallback
	logger   *slog.Logger
}

// NewTrigger creates a schedule trigger from its configuration map.
func NewTrigger(config map[string]any, logger *slog.Logger) (*Trigger, error) {
	id, _ := config["id"].(string)
	cronExpr, _ := config["cron"].(string)

	if logger == nil {
		logger = slog.Default()
	}

	trigger := &Trigger{
		ID:       id,
		CronExpr: cronExpr,
		Enabled:  true,
		logger: logger.With(
			"module", "schedule_trigger",
			"trigger_id", id,
			"cron", cronExpr,
		),
	}

	if enabled, ok := config["enabled"].(bool); ok {
		trigger.Enabled = enabled
	}

	if err := trigger.Validate(); err != nil {
		return nil, err
	}

	return trigger, nil
}

// Validate checks the trigger configuration.
func (t *Trigger) Validate() error {
	if t.ID == "" {
		return errors.New("schedule trigger id is required")
	}

	if t.CronExpr == "" {
		return errors.New("schedule trigger cron expression is required")
	}

	if _, err := cron.ParseStandard(t.CronExpr); err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}

	return nil
}

// Start begins the cron schedule and fires the callback on each tick.
func (t *Trigger) Start(_ context.Context, callback protocol.TriggerCallback) error {
	if !t.Enabled {
		t.logger.Info("schedule trigger is disabled")

		return nil
	}

	t.logger.Info("starting schedule trigger")
	t.callback = callback

	t.cron = cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DefaultLogger),
		cron.Recover(cron.DefaultLogger),
	))

	if _, err := t.cron.AddFunc(t.CronExpr, t.fire); err != nil {
		return fmt.Errorf("failed to schedule trigger %s: %w", t.ID, err)
	}

	t.cron.Start()

	return nil
}

func (t *Trigger) fire() {
	data := map[string]any{
		"trigger_id": t.ID,
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
	}

	go func() {
		if err := t.callback(context.Background(), data); err != nil {
			t.logger.Error("trigger callback failed", "error", err)
		}
	}()
}

// Stop ends the cron schedule.
func (t *Trigger) Stop(_ context.Context) error {
	t.logger.Info("stopping schedule trigger")

	if t.cron != nil {
		t.cron.Stop()
	}

	return nil
}
