package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	lancetErrors "github.com/lancet-ai/lancet/internal/errors"
	"github.com/lancet-ai/lancet/internal/logger"
)

// Runner executes validated tool calls against a fixed registry.
type Runner struct {
	registry *Registry
}

func NewRunner(registry *Registry) *Runner {
	return &Runner{registry: registry}
}

// Execute handles the full lifecycle for one tool call: lookup, input
// validation, at-most-once invocation. A validation failure never reaches
// the handler. Handler errors are returned as-is; callers decide whether
// they are protocol errors or result data.
func (r *Runner) Execute(ctx context.Context, toolName string, input json.RawMessage) (json.RawMessage, error) {
	t, ok := r.registry.Get(toolName)
	if !ok {
		return nil, lancetErrors.NotFound(fmt.Sprintf("tool %q is not registered", toolName))
	}

	if len(input) == 0 {
		input = json.RawMessage("{}")
	}

	if err := ValidateInput(t.Parameters(), input); err != nil {
		slog.Warn("Tool input validation failed", "tool", toolName, "error", err)
		return nil, fmt.Errorf("%w: %s", lancetErrors.ErrInvalidInput, err.Error())
	}

	start := time.Now()
	turnID := logger.GetTurnID(ctx)
	slog.Info("Executing tool", "tool", toolName, "turn_id", turnID)

	result, err := t.Execute(ctx, input)

	duration := time.Since(start)
	if err != nil {
		slog.Error("Tool execution failed", "tool", toolName, "error", err, "duration", duration, "turn_id", turnID)
		return nil, err
	}

	slog.Info("Tool execution success", "tool", toolName, "duration", duration, "turn_id", turnID)
	return result, nil
}
