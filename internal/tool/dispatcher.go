package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	"github.com/capitalize-ai/conversation-engine/internal/model"
	"github.com/capitalize-ai/conversation-engine/pkg/logger"
	"github.com/capitalize-ai/conversation-engine/pkg/metrics"
)

// DefaultMaxParallel bounds concurrent tool executions per dispatch.
const DefaultMaxParallel = 5

// Dispatcher executes batches of tool calls against a registry. Failures are
// isolated per call: the result list always has one entry per request, in
// request order.
type Dispatcher struct {
	registry    *Registry
	maxParallel int
	logger      *logger.Logger
}

// NewDispatcher creates a dispatcher over the given registry. maxParallel <= 0
// selects the default.
func NewDispatcher(registry *Registry, maxParallel int, log *logger.Logger) *Dispatcher {
	if maxParallel <= 0 {
		maxParallel = DefaultMaxParallel
	}
	return &Dispatcher{
		registry:    registry,
		maxParallel: maxParallel,
		logger:      log,
	}
}

// Dispatch runs all requested calls, up to maxParallel at a time, and returns
// one tool-result turn per request. results[i] always answers requests[i]
// regardless of completion order. Dispatch blocks until every call has
// settled; there is no per-call timeout or partial cancellation.
func (d *Dispatcher) Dispatch(ctx context.Context, requests []model.ToolCallRequest) []model.Turn {
	if len(requests) == 0 {
		return nil
	}

	results := make([]model.Turn, len(requests))

	p := pool.New().WithMaxGoroutines(d.maxParallel)
	for i, req := range requests {
		i, req := i, req
		p.Go(func() {
			results[i] = d.execute(ctx, req)
		})
	}
	p.Wait()

	return results
}

// execute runs a single call and converts its outcome into a tool-result
// turn. Panics inside a tool are contained here.
func (d *Dispatcher) execute(ctx context.Context, req model.ToolCallRequest) (turn model.Turn) {
	start := time.Now()

	turn = model.Turn{
		ID:         uuid.Must(uuid.NewV7()).String(),
		Kind:       model.TurnToolResult,
		ToolCallID: req.ID,
		ToolName:   req.Name,
		CreatedAt:  start,
	}

	defer func() {
		if r := recover(); r != nil {
			turn.Content = fmt.Sprintf("tool execution failed: panic: %v", r)
			turn.IsError = true
		}
		status := "success"
		if turn.IsError {
			status = "error"
		}
		metrics.RecordToolCall(req.Name, status, time.Since(start).Seconds())
	}()

	t, ok := d.registry.Get(req.Name)
	if !ok {
		d.logger.Warn("tool not found", zap.String("tool", req.Name))
		turn.Content = fmt.Sprintf("tool not found: %s", req.Name)
		turn.IsError = true
		return turn
	}

	result, err := t.Invoke(ctx, req.Arguments)
	if err != nil {
		d.logger.Warn("tool call failed",
			zap.String("tool", req.Name),
			zap.Error(err),
		)
		turn.Content = fmt.Sprintf("tool execution failed: %v", err)
		turn.IsError = true
		return turn
	}

	turn.Content = FormatResult(result)
	return turn
}

// FormatResult renders a tool's raw return value deterministically:
// mapping-shaped results serialize to indented JSON, sequences join as
// newline-separated items, scalars stringify directly.
func FormatResult(result any) string {
	switch v := result.(type) {
	case map[string]any:
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(data)
	case []any:
		items := make([]string, len(v))
		for i, item := range v {
			items[i] = fmt.Sprint(item)
		}
		return strings.Join(items, "\n")
	case []string:
		return strings.Join(v, "\n")
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}
