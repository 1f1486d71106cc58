package tool

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/conversation-engine/internal/model"
	"github.com/capitalize-ai/conversation-engine/pkg/logger"
)

type stubTool struct {
	name   string
	delay  time.Duration
	result any
	err    error
	panics bool
}

func (t *stubTool) Name() string               { return t.name }
func (t *stubTool) Description() string        { return "stub tool" }
func (t *stubTool) Parameters() map[string]any { return map[string]any{} }

func (t *stubTool) Invoke(ctx context.Context, args map[string]any) (any, error) {
	if t.delay > 0 {
		time.Sleep(t.delay)
	}
	if t.panics {
		panic("boom")
	}
	return t.result, t.err
}

func newTestDispatcher(t *testing.T, tools ...Tool) *Dispatcher {
	t.Helper()
	registry := NewRegistry()
	for _, tl := range tools {
		require.NoError(t, registry.Register(tl))
	}
	return NewDispatcher(registry, 0, logger.NewNop())
}

func TestDispatchPreservesRequestOrder(t *testing.T) {
	// The slowest tool comes first; results must still line up with requests.
	d := newTestDispatcher(t,
		&stubTool{name: "slow", delay: 50 * time.Millisecond, result: "slow result"},
		&stubTool{name: "fast", result: "fast result"},
	)

	requests := []model.ToolCallRequest{
		{ID: "c1", Name: "slow"},
		{ID: "c2", Name: "fast"},
	}

	results := d.Dispatch(context.Background(), requests)
	require.Len(t, results, 2)

	assert.Equal(t, "c1", results[0].ToolCallID)
	assert.Equal(t, "slow result", results[0].Content)
	assert.Equal(t, "c2", results[1].ToolCallID)
	assert.Equal(t, "fast result", results[1].Content)
}

func TestDispatchIsolatesFailures(t *testing.T) {
	d := newTestDispatcher(t,
		&stubTool{name: "ok", result: "fine"},
		&stubTool{name: "broken", err: errors.New("network down")},
		&stubTool{name: "crashy", panics: true},
	)

	requests := []model.ToolCallRequest{
		{ID: "a", Name: "ok"},
		{ID: "b", Name: "broken"},
		{ID: "c", Name: "crashy"},
	}

	results := d.Dispatch(context.Background(), requests)
	require.Len(t, results, 3)

	assert.False(t, results[0].IsError)
	assert.Equal(t, "fine", results[0].Content)

	assert.True(t, results[1].IsError)
	assert.Contains(t, results[1].Content, "tool execution failed")
	assert.Contains(t, results[1].Content, "network down")

	assert.True(t, results[2].IsError)
	assert.Contains(t, results[2].Content, "panic")
}

func TestDispatchUnknownTool(t *testing.T) {
	d := newTestDispatcher(t)

	results := d.Dispatch(context.Background(), []model.ToolCallRequest{
		{ID: "x", Name: "nonexistent"},
	})
	require.Len(t, results, 1)

	assert.True(t, results[0].IsError)
	assert.Equal(t, "tool not found: nonexistent", results[0].Content)
	assert.Equal(t, model.TurnToolResult, results[0].Kind)
	assert.Equal(t, "nonexistent", results[0].ToolName)
}

func TestDispatchEmptyRequests(t *testing.T) {
	d := newTestDispatcher(t)
	assert.Nil(t, d.Dispatch(context.Background(), nil))
}

func TestDispatchManyCallsWithBoundedParallelism(t *testing.T) {
	registry := NewRegistry()
	require.NoError(t, registry.Register(&stubTool{name: "echo", result: "ok", delay: time.Millisecond}))
	d := NewDispatcher(registry, 2, logger.NewNop())

	var requests []model.ToolCallRequest
	for i := 0; i < 20; i++ {
		requests = append(requests, model.ToolCallRequest{ID: fmt.Sprintf("c%d", i), Name: "echo"})
	}

	results := d.Dispatch(context.Background(), requests)
	require.Len(t, results, 20)
	for i, res := range results {
		assert.Equal(t, fmt.Sprintf("c%d", i), res.ToolCallID)
		assert.False(t, res.IsError)
	}
}

func TestFormatResult(t *testing.T) {
	tests := []struct {
		name   string
		input  any
		expect string
	}{
		{"string passthrough", "hello", "hello"},
		{"string slice joins", []string{"a", "b"}, "a\nb"},
		{"any slice joins", []any{"x", 42}, "x\n42"},
		{"int stringifies", 7, "7"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expect, FormatResult(tt.input))
		})
	}

	t.Run("map serializes to indented JSON", func(t *testing.T) {
		out := FormatResult(map[string]any{"answer": "yes"})
		assert.JSONEq(t, `{"answer":"yes"}`, out)
		assert.Contains(t, out, "\n")
	})
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	registry := NewRegistry()
	require.NoError(t, registry.Register(&stubTool{name: "dup"}))
	assert.Error(t, registry.Register(&stubTool{name: "dup"}))
	assert.Equal(t, 1, registry.Len())
}
