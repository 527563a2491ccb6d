package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/loomworks/loom/pkg/models"
	"github.com/loomworks/loom/pkg/protocol"
)

// Built-in node type tags.
const (
	NodeTypeStart       = "start"
	NodeTypeTransform   = "transform"
	NodeTypeDelay       = "delay"
	NodeTypeError       = "error"
	NodeTypeLogger      = "logger"
	NodeTypePassthrough = "passthrough"
)

// delayPollInterval bounds the worst-case cancellation latency of a delay
// node: the wait loop checks the cancellation flag once per interval.
const delayPollInterval = 10 * time.Millisecond

// LogSink receives messages emitted by logger nodes. Tests use it to assert
// execution order.
type LogSink interface {
	Append(message string)
}

// SliceSink is a LogSink backed by a string slice.
type SliceSink struct {
	Messages []string
}

func (s *SliceSink) Append(message string) {
	s.Messages = append(s.Messages, message)
}

// RegisterBuiltins registers the built-in node vocabulary on the dispatcher,
// each with its config schema.
func (d *Dispatcher) RegisterBuiltins() {
	// Schema compilation of the static schemas below cannot fail.
	_ = d.RegisterWithSchema(NodeTypeStart, executeStart, map[string]any{
		"type":       "object",
		"properties": map[string]any{"value": map[string]any{}},
	})
	_ = d.RegisterWithSchema(NodeTypeTransform, executeTransform, map[string]any{
		"type": "object",
		"properties": map[string]any{
			"operation": map[string]any{
				"type": "string",
				"enum": []string{"uppercase", "lowercase", "trim", "passthrough"},
			},
		},
	})
	_ = d.RegisterWithSchema(NodeTypeDelay, executeDelay, map[string]any{
		"type": "object",
		"properties": map[string]any{
			"duration_ms": map[string]any{"type": "number", "minimum": 0},
		},
	})
	_ = d.RegisterWithSchema(NodeTypeError, executeError, map[string]any{
		"type": "object",
		"properties": map[string]any{
			"throw_error": map[string]any{"type": "boolean"},
			"message":     map[string]any{"type": "string"},
		},
	})
	d.Register(NodeTypeLogger, d.executeLogger)
	d.Register(NodeTypePassthrough, executePassthrough)
}

// executeStart echoes the configured value.
func executeStart(_ context.Context, node *models.WorkflowNode, _ *models.ExecutionContext) (any, error) {
	return node.Config["value"], nil
}

// executeTransform applies a text case operation to the node's single input.
func executeTransform(_ context.Context, node *models.WorkflowNode, execCtx *models.ExecutionContext) (any, error) {
	operation, _ := node.Config["operation"].(string)
	if operation == "" {
		operation = "passthrough"
	}

	input := protocol.InputValue(node, execCtx)
	text := ""
	if input != nil {
		text = fmt.Sprintf("%v", input)
	}

	switch operation {
	case "uppercase":
		return strings.ToUpper(text), nil
	case "lowercase":
		return strings.ToLower(text), nil
	case "trim":
		return strings.TrimSpace(text), nil
	case "passthrough":
		return input, nil
	default:
		return nil, fmt.Errorf("unknown transform operation %q", operation)
	}
}

// executeDelay blocks for the configured duration in small increments,
// polling the cancellation flag between increments so a long delay can be
// aborted within one poll interval.
func executeDelay(ctx context.Context, node *models.WorkflowNode, execCtx *models.ExecutionContext) (any, error) {
	duration := time.Duration(configNumber(node.Config, "duration_ms", 0)) * time.Millisecond
	deadline := time.Now().Add(duration)

	for remaining := time.Until(deadline); remaining > 0; remaining = time.Until(deadline) {
		if execCtx.Cancelled() {
			return nil, protocol.ErrExecutionCancelled
		}

		interval := delayPollInterval
		if remaining < interval {
			interval = remaining
		}

		select {
		case <-ctx.Done():
			return nil, protocol.ErrExecutionCancelled
		case <-time.After(interval):
		}
	}

	return map[string]any{"delayed_ms": duration.Milliseconds()}, nil
}

// executeError fails deliberately when configured to, for test harnesses.
func executeError(_ context.Context, node *models.WorkflowNode, _ *models.ExecutionContext) (any, error) {
	throwError, _ := node.Config["throw_error"].(bool)
	if !throwError {
		return map[string]any{"ok": true}, nil
	}

	message, _ := node.Config["message"].(string)
	if message == "" {
		message = "node configured to fail"
	}

	return nil, errors.New(message)
}

// executeLogger appends the configured value to the caller-supplied sink and
// logs it through the dispatcher's logger.
func (d *Dispatcher) executeLogger(_ context.Context, node *models.WorkflowNode, execCtx *models.ExecutionContext) (any, error) {
	value, ok := node.Config["value"]
	if !ok {
		value = protocol.InputValue(node, execCtx)
	}

	message := fmt.Sprintf("%v", value)

	switch sink := node.Config["sink"].(type) {
	case LogSink:
		sink.Append(message)
	case *[]string:
		*sink = append(*sink, message)
	case func(string):
		sink(message)
	}

	d.logger.Info(message, slog.String("node_id", node.ID))

	return message, nil
}

// executePassthrough returns the node's single input unchanged.
func executePassthrough(_ context.Context, node *models.WorkflowNode, execCtx *models.ExecutionContext) (any, error) {
	return protocol.InputValue(node, execCtx), nil
}

// configNumber reads a numeric config value, tolerating the int/float64
// variance of decoded JSON.
func configNumber(config map[string]any, key string, fallback float64) float64 {
	switch v := config[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	default:
		return fallback
	}
}
