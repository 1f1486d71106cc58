// Package model defines data structures for the conversation engine.
package model

import (
	"time"
)

// TurnKind identifies the variant of a Turn. The set is closed: switches over
// TurnKind should handle every constant below.
type TurnKind string

const (
	TurnSystem     TurnKind = "system"
	TurnUser       TurnKind = "user"
	TurnAssistant  TurnKind = "assistant"
	TurnToolResult TurnKind = "tool_result"
)

// ToolCallRequest is a tool invocation requested by the model. It lives only
// for the routing cycle that executes it; the Turn that carries it is what
// gets persisted.
type ToolCallRequest struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// Turn is one unit of a conversation. Exactly one kind applies; the
// kind-specific fields are zero for the others.
type Turn struct {
	ID        string    `json:"id"`
	Kind      TurnKind  `json:"kind"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`

	// Assistant turns only.
	ToolCalls []ToolCallRequest `json:"tool_calls,omitempty"`

	// Tool-result turns only.
	ToolCallID string `json:"tool_call_id,omitempty"`
	ToolName   string `json:"tool_name,omitempty"`
	IsError    bool   `json:"is_error,omitempty"`
}

// HasToolCalls reports whether the turn is an assistant turn with pending
// tool-call requests.
func (t Turn) HasToolCalls() bool {
	return t.Kind == TurnAssistant && len(t.ToolCalls) > 0
}

// ThreadState is the persisted state of one conversation thread. It is owned
// by a single writer at a time; callers must not mutate it concurrently.
type ThreadState struct {
	ThreadID     string         `json:"thread_id"`
	Turns        []Turn         `json:"turns"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	NeedsSummary bool           `json:"needs_summary"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// NewThreadState creates an empty state for a thread.
func NewThreadState(threadID string) *ThreadState {
	return &ThreadState{
		ThreadID: threadID,
		Metadata: map[string]any{},
	}
}
