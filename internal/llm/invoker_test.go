package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/conversation-engine/internal/model"
)

type fakeClient struct {
	resp    *CompletionResponse
	lastReq *CompletionRequest
}

func (c *fakeClient) Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	c.lastReq = req
	return c.resp, nil
}

func (c *fakeClient) CompleteStream(ctx context.Context, req *CompletionRequest, callback StreamCallback) (*CompletionResponse, error) {
	c.lastReq = req
	if err := callback(c.resp.Content, 0); err != nil {
		return nil, err
	}
	return c.resp, nil
}

func (c *fakeClient) Name() string     { return "fake" }
func (c *fakeClient) Models() []string { return []string{"fake-1"} }

func TestInvokePrefersNativeToolCalls(t *testing.T) {
	client := &fakeClient{resp: &CompletionResponse{
		Content: `[{"name": "parsed_tool", "arguments": {}}]`,
		ToolCalls: []ToolCall{
			{ID: "n1", Name: "native_tool", Arguments: map[string]any{"q": "x"}},
		},
		Model: "fake-1",
	}}
	iv := NewInvoker(client)

	turn, err := iv.Invoke(context.Background(), []model.Turn{{Kind: model.TurnUser, Content: "go"}})
	require.NoError(t, err)

	require.Len(t, turn.ToolCalls, 1)
	assert.Equal(t, "native_tool", turn.ToolCalls[0].Name)
	assert.Equal(t, "n1", turn.ToolCalls[0].ID)
}

func TestInvokeFallsBackToParsedToolCalls(t *testing.T) {
	client := &fakeClient{resp: &CompletionResponse{
		Content: `[{"name": "web_search", "arguments": {"query": "go"}}]`,
		Model:   "fake-1",
	}}
	iv := NewInvoker(client)

	turn, err := iv.Invoke(context.Background(), []model.Turn{{Kind: model.TurnUser, Content: "go"}})
	require.NoError(t, err)

	require.Len(t, turn.ToolCalls, 1)
	assert.Equal(t, "web_search", turn.ToolCalls[0].Name)
	// Parsed calls carry no provider id, so one is assigned.
	assert.NotEmpty(t, turn.ToolCalls[0].ID)
	assert.Equal(t, model.TurnAssistant, turn.Kind)
}

func TestInvokePlainResponse(t *testing.T) {
	client := &fakeClient{resp: &CompletionResponse{Content: "plain answer", Model: "fake-1"}}
	iv := NewInvoker(client, WithModel("fake-1"), WithMaxTokens(512), WithTemperature(0.1))

	turn, err := iv.Invoke(context.Background(), []model.Turn{{Kind: model.TurnUser, Content: "hi"}})
	require.NoError(t, err)

	assert.Equal(t, "plain answer", turn.Content)
	assert.Empty(t, turn.ToolCalls)

	require.NotNil(t, client.lastReq)
	assert.Equal(t, "fake-1", client.lastReq.Model)
	assert.Equal(t, 512, client.lastReq.MaxTokens)
	assert.InDelta(t, 0.1, client.lastReq.Temperature, 1e-9)
}

func TestTurnsToMessages(t *testing.T) {
	turns := []model.Turn{
		{Kind: model.TurnSystem, Content: "be helpful"},
		{Kind: model.TurnUser, Content: "hi"},
		{Kind: model.TurnAssistant, Content: "checking", ToolCalls: []model.ToolCallRequest{
			{ID: "c1", Name: "web_search", Arguments: map[string]any{"query": "x"}},
		}},
		{Kind: model.TurnToolResult, Content: "result body", ToolCallID: "c1", ToolName: "web_search"},
	}

	msgs := turnsToMessages(turns)
	require.Len(t, msgs, 4)

	assert.Equal(t, "system", msgs[0].Role)
	assert.Equal(t, "user", msgs[1].Role)

	assert.Equal(t, "assistant", msgs[2].Role)
	require.Len(t, msgs[2].ToolCalls, 1)
	assert.Equal(t, "web_search", msgs[2].ToolCalls[0].Name)

	assert.Equal(t, "tool", msgs[3].Role)
	assert.Equal(t, "c1", msgs[3].ToolCallID)
	assert.Equal(t, "web_search", msgs[3].Name)
}
