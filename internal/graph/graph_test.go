package graph

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/conversation-engine/internal/llm"
	"github.com/capitalize-ai/conversation-engine/internal/model"
	"github.com/capitalize-ai/conversation-engine/internal/tool"
	"github.com/capitalize-ai/conversation-engine/pkg/logger"
)

// scriptedModel returns pre-canned turns in sequence, or a fixed error.
type scriptedModel struct {
	turns []model.Turn
	err   error
	calls int
}

func (m *scriptedModel) Invoke(ctx context.Context, turns []model.Turn) (model.Turn, error) {
	return m.next()
}

func (m *scriptedModel) InvokeStream(ctx context.Context, turns []model.Turn, callback llm.StreamCallback) (model.Turn, error) {
	turn, err := m.next()
	if err != nil {
		return model.Turn{}, err
	}
	if cbErr := callback(turn.Content, 0); cbErr != nil {
		return model.Turn{}, cbErr
	}
	return turn, nil
}

func (m *scriptedModel) next() (model.Turn, error) {
	if m.err != nil {
		return model.Turn{}, m.err
	}
	if m.calls >= len(m.turns) {
		return assistantTurn("out of script"), nil
	}
	turn := m.turns[m.calls]
	m.calls++
	return turn, nil
}

func assistantTurn(content string) model.Turn {
	return model.Turn{
		ID:        "a-" + content,
		Kind:      model.TurnAssistant,
		Content:   content,
		CreatedAt: time.Now(),
	}
}

func userTurn(content string) model.Turn {
	return model.Turn{
		ID:        "u-" + content,
		Kind:      model.TurnUser,
		Content:   content,
		CreatedAt: time.Now(),
	}
}

type echoTool struct{}

func (echoTool) Name() string               { return "echo" }
func (echoTool) Description() string        { return "echoes input" }
func (echoTool) Parameters() map[string]any { return map[string]any{} }
func (echoTool) Invoke(ctx context.Context, args map[string]any) (any, error) {
	return args["text"], nil
}

func newToolDispatcher(t *testing.T) *tool.Dispatcher {
	t.Helper()
	registry := tool.NewRegistry()
	require.NoError(t, registry.Register(echoTool{}))
	return tool.NewDispatcher(registry, 0, logger.NewNop())
}

func TestRunEmptyLogFails(t *testing.T) {
	g := New(&scriptedModel{}, nil, false, logger.NewNop())

	res, err := g.Run(context.Background(), nil)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, ErrNoTurns)
}

func TestRunPlainResponse(t *testing.T) {
	m := &scriptedModel{turns: []model.Turn{assistantTurn("hi there")}}
	g := New(m, nil, false, logger.NewNop())

	input := []model.Turn{userTurn("hello")}
	res, err := g.Run(context.Background(), input)
	require.NoError(t, err)

	assert.Equal(t, "hi there", res.Response.Content)
	assert.Len(t, res.Turns, 2)
	assert.Equal(t, 0, res.ToolCallCount)

	// Caller's slice must not be mutated.
	assert.Len(t, input, 1)
}

func TestRunModelFailureProducesDegradedTurn(t *testing.T) {
	m := &scriptedModel{err: errors.New("provider unavailable")}
	g := New(m, nil, false, logger.NewNop())

	res, err := g.Run(context.Background(), []model.Turn{userTurn("hello")})
	require.NoError(t, err)

	assert.Equal(t, model.TurnAssistant, res.Response.Kind)
	assert.Contains(t, res.Response.Content, "Sorry, I encountered an error")
	assert.Contains(t, res.Response.Content, "provider unavailable")
	assert.Len(t, res.Turns, 2)
}

func TestRunToolRoundTrip(t *testing.T) {
	requesting := assistantTurn("let me check")
	requesting.ToolCalls = []model.ToolCallRequest{
		{ID: "c1", Name: "echo", Arguments: map[string]any{"text": "pong"}},
	}
	m := &scriptedModel{turns: []model.Turn{
		requesting,
		assistantTurn("the tool said pong"),
	}}
	g := New(m, newToolDispatcher(t), true, logger.NewNop())

	res, err := g.Run(context.Background(), []model.Turn{userTurn("ping")})
	require.NoError(t, err)

	// user, assistant(with calls), tool result, synthesized assistant
	require.Len(t, res.Turns, 4)
	assert.Equal(t, model.TurnToolResult, res.Turns[2].Kind)
	assert.Equal(t, "pong", res.Turns[2].Content)
	assert.Equal(t, "c1", res.Turns[2].ToolCallID)

	assert.Equal(t, "the tool said pong", res.Response.Content)
	assert.Empty(t, res.Response.ToolCalls)
	assert.Equal(t, 1, res.ToolCallCount)
}

func TestRunDropsToolCallsWhenNoToolsRegistered(t *testing.T) {
	// A model without bound tools can still emit tool-call shaped text that
	// the output parser recovers. The run must finish normally, not reach
	// the (nil) dispatcher.
	requesting := assistantTurn("let me look that up")
	requesting.ToolCalls = []model.ToolCallRequest{
		{ID: "c1", Name: "web_search", Arguments: map[string]any{"query": "x"}},
	}
	m := &scriptedModel{turns: []model.Turn{requesting}}
	g := New(m, nil, false, logger.NewNop())

	res, err := g.Run(context.Background(), []model.Turn{userTurn("hello")})
	require.NoError(t, err)

	require.Len(t, res.Turns, 2)
	assert.Equal(t, "let me look that up", res.Response.Content)
	assert.Empty(t, res.Turns[1].ToolCalls)
	assert.Equal(t, 0, res.ToolCallCount)
}

func TestRunUnknownToolStillCompletes(t *testing.T) {
	requesting := assistantTurn("calling something odd")
	requesting.ToolCalls = []model.ToolCallRequest{{ID: "c1", Name: "missing"}}
	m := &scriptedModel{turns: []model.Turn{
		requesting,
		assistantTurn("could not find that tool"),
	}}
	g := New(m, newToolDispatcher(t), true, logger.NewNop())

	res, err := g.Run(context.Background(), []model.Turn{userTurn("go")})
	require.NoError(t, err)

	require.Len(t, res.Turns, 4)
	assert.True(t, res.Turns[2].IsError)
	assert.Equal(t, "could not find that tool", res.Response.Content)
}

func TestRunSynthesisFailureProducesDegradedTurn(t *testing.T) {
	requesting := assistantTurn("let me check")
	requesting.ToolCalls = []model.ToolCallRequest{
		{ID: "c1", Name: "echo", Arguments: map[string]any{"text": "data"}},
	}
	m := &failAfterFirst{first: requesting}
	g := New(m, newToolDispatcher(t), true, logger.NewNop())

	res, err := g.Run(context.Background(), []model.Turn{userTurn("go")})
	require.NoError(t, err)

	assert.Equal(t, model.TurnAssistant, res.Response.Kind)
	assert.Contains(t, res.Response.Content, "encountered an error processing it")
	// Raw tool result is still in the log.
	assert.Equal(t, model.TurnToolResult, res.Turns[2].Kind)
}

type failAfterFirst struct {
	first model.Turn
	done  bool
}

func (m *failAfterFirst) Invoke(ctx context.Context, turns []model.Turn) (model.Turn, error) {
	if !m.done {
		m.done = true
		return m.first, nil
	}
	return model.Turn{}, errors.New("synthesis blew up")
}

func (m *failAfterFirst) InvokeStream(ctx context.Context, turns []model.Turn, callback llm.StreamCallback) (model.Turn, error) {
	return m.Invoke(ctx, turns)
}

func TestRunStreamWithoutToolsDeliversTokens(t *testing.T) {
	m := &scriptedModel{turns: []model.Turn{assistantTurn("streamed reply")}}
	g := New(m, nil, false, logger.NewNop())

	var chunks []string
	res, err := g.RunStream(context.Background(), []model.Turn{userTurn("hello")}, func(token string, index int) error {
		chunks = append(chunks, token)
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"streamed reply"}, chunks)
	assert.Equal(t, "streamed reply", res.Response.Content)
}

func TestRunStreamWithToolsEmitsTerminalChunk(t *testing.T) {
	// With tools registered the first model call is not streamed; a run that
	// ends without tool calls must still deliver the response once.
	m := &scriptedModel{turns: []model.Turn{assistantTurn("no tools needed")}}
	g := New(m, newToolDispatcher(t), true, logger.NewNop())

	var chunks []string
	res, err := g.RunStream(context.Background(), []model.Turn{userTurn("hello")}, func(token string, index int) error {
		chunks = append(chunks, token)
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"no tools needed"}, chunks)
	assert.Equal(t, "no tools needed", res.Response.Content)
}

func TestRunAlwaysEndsWithAssistantTurn(t *testing.T) {
	cases := []struct {
		name  string
		model Model
	}{
		{"healthy model", &scriptedModel{turns: []model.Turn{assistantTurn("ok")}}},
		{"failing model", &scriptedModel{err: errors.New("down")}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			g := New(tc.model, nil, false, logger.NewNop())
			res, err := g.Run(context.Background(), []model.Turn{userTurn("hi")})
			require.NoError(t, err)

			last := res.Turns[len(res.Turns)-1]
			assert.Equal(t, model.TurnAssistant, last.Kind)
			assert.Equal(t, res.Response.ID, last.ID)
		})
	}
}
