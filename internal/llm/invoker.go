package llm

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/capitalize-ai/conversation-engine/internal/model"
	"github.com/capitalize-ai/conversation-engine/pkg/metrics"
)

// Invoker adapts a Client to the turn-level model port the conversation
// graph consumes: ordered turns in, one assistant turn out.
type Invoker struct {
	client      Client
	parser      *OutputParser
	model       string
	maxTokens   int
	temperature float64
	tools       []ToolDefinition
}

// InvokerOption configures an Invoker.
type InvokerOption func(*Invoker)

// WithModel sets the model name used for completions.
func WithModel(name string) InvokerOption {
	return func(iv *Invoker) { iv.model = name }
}

// WithMaxTokens caps completion length.
func WithMaxTokens(n int) InvokerOption {
	return func(iv *Invoker) { iv.maxTokens = n }
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) InvokerOption {
	return func(iv *Invoker) { iv.temperature = t }
}

// WithTools declares the tools the model may call.
func WithTools(tools []ToolDefinition) InvokerOption {
	return func(iv *Invoker) { iv.tools = tools }
}

// NewInvoker creates an invoker over the given client.
func NewInvoker(client Client, opts ...InvokerOption) *Invoker {
	iv := &Invoker{
		client:      client,
		parser:      NewOutputParser(),
		maxTokens:   4096,
		temperature: 0.7,
	}
	for _, opt := range opts {
		opt(iv)
	}
	return iv
}

// Invoke sends the full turn sequence to the model and returns the assistant
// turn it produced, including any tool-call requests.
func (iv *Invoker) Invoke(ctx context.Context, turns []model.Turn) (model.Turn, error) {
	return iv.invoke(ctx, turns, nil)
}

// InvokeStream is Invoke with per-token delivery through callback.
func (iv *Invoker) InvokeStream(ctx context.Context, turns []model.Turn, callback StreamCallback) (model.Turn, error) {
	return iv.invoke(ctx, turns, callback)
}

func (iv *Invoker) invoke(ctx context.Context, turns []model.Turn, callback StreamCallback) (model.Turn, error) {
	req := &CompletionRequest{
		Model:       iv.model,
		Messages:    turnsToMessages(turns),
		Tools:       iv.tools,
		MaxTokens:   iv.maxTokens,
		Temperature: iv.temperature,
	}

	var resp *CompletionResponse
	var err error
	if callback != nil {
		resp, err = iv.client.CompleteStream(ctx, req, callback)
	} else {
		resp, err = iv.client.Complete(ctx, req)
	}
	if err != nil {
		return model.Turn{}, err
	}

	metrics.RecordLLMTokens(resp.Model, resp.TokensIn, resp.TokensOut)

	// Prefer native tool calls; fall back to calls parsed out of the text.
	toolCalls := resp.ToolCalls
	if len(toolCalls) == 0 {
		toolCalls = iv.parser.ParseToolCalls(resp.Content)
	}

	turn := model.Turn{
		ID:        uuid.Must(uuid.NewV7()).String(),
		Kind:      model.TurnAssistant,
		Content:   resp.Content,
		CreatedAt: time.Now(),
	}
	for _, tc := range toolCalls {
		id := tc.ID
		if id == "" {
			id = uuid.Must(uuid.NewV7()).String()
		}
		turn.ToolCalls = append(turn.ToolCalls, model.ToolCallRequest{
			ID:        id,
			Name:      tc.Name,
			Arguments: tc.Arguments,
		})
	}

	return turn, nil
}

// turnsToMessages converts conversation turns into provider chat messages.
// The switch is exhaustive over TurnKind.
func turnsToMessages(turns []model.Turn) []ChatMessage {
	msgs := make([]ChatMessage, 0, len(turns))
	for _, t := range turns {
		switch t.Kind {
		case model.TurnSystem:
			msgs = append(msgs, ChatMessage{Role: "system", Content: t.Content})
		case model.TurnUser:
			msgs = append(msgs, ChatMessage{Role: "user", Content: t.Content})
		case model.TurnAssistant:
			msg := ChatMessage{Role: "assistant", Content: t.Content}
			for _, tc := range t.ToolCalls {
				msg.ToolCalls = append(msg.ToolCalls, ToolCall{
					ID:        tc.ID,
					Name:      tc.Name,
					Arguments: tc.Arguments,
				})
			}
			msgs = append(msgs, msg)
		case model.TurnToolResult:
			msgs = append(msgs, ChatMessage{
				Role:       "tool",
				Content:    t.Content,
				ToolCallID: t.ToolCallID,
				Name:       t.ToolName,
			})
		}
	}
	return msgs
}
