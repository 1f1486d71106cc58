package model

// SendMessageRequest is the request to send a message on a thread.
type SendMessageRequest struct {
	Content string `json:"content"`
	Model   string `json:"model,omitempty"`
	Stream  bool   `json:"stream"`
}

// SendMessageResponse is the response after a turn completes.
type SendMessageResponse struct {
	Response string         `json:"response"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// ListTurnsResponse is the response for listing a thread's history.
type ListTurnsResponse struct {
	ThreadID string `json:"thread_id"`
	Turns    []Turn `json:"turns"`
	Total    int    `json:"total"`
}

// ListSummariesResponse is the response for listing summaries.
type ListSummariesResponse struct {
	Summaries []ConversationSummary `json:"summaries"`
	Total     int                   `json:"total"`
}

// TokenEvent represents a streaming token event.
type TokenEvent struct {
	Token string `json:"token"`
	Index int    `json:"index"`
}

// TurnCompleteEvent represents the completion of a turn on a stream.
type TurnCompleteEvent struct {
	ThreadID string         `json:"thread_id"`
	Response string         `json:"response"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// ErrorEvent represents an error event on a stream.
type ErrorEvent struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
