// Package session composes the conversation graph, checkpoint store and
// summary subsystem into the public per-message API.
package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/capitalize-ai/conversation-engine/internal/checkpoint"
	"github.com/capitalize-ai/conversation-engine/internal/graph"
	"github.com/capitalize-ai/conversation-engine/internal/llm"
	"github.com/capitalize-ai/conversation-engine/internal/model"
	"github.com/capitalize-ai/conversation-engine/internal/summary"
	"github.com/capitalize-ai/conversation-engine/pkg/logger"
	"github.com/capitalize-ai/conversation-engine/pkg/metrics"
)

const (
	// DefaultMaxInputChars caps user input length.
	DefaultMaxInputChars = 10000

	// DefaultSummaryThreshold is the stored-message count that triggers
	// auto-summarization.
	DefaultSummaryThreshold = 20

	invalidInputResponse = "Please provide a valid message."
)

// SendResult is the outcome of one completed turn.
type SendResult struct {
	Response string
	Metadata map[string]any
}

// Session is the per-message facade over the conversation engine. Turns for
// one thread are serialized by a per-thread mutex; distinct threads proceed
// concurrently.
type Session struct {
	graph       *graph.Graph
	checkpoints checkpoint.Store
	engine      *summary.Engine
	summaries   summary.Store
	logger      *logger.Logger

	defaultThreadID  string
	maxInputChars    int
	autoSummarize    bool
	summaryThreshold int

	locks sync.Map // threadID -> *sync.Mutex
}

// Option configures a Session.
type Option func(*Session)

// WithDefaultThread sets the thread used when the caller supplies no id.
func WithDefaultThread(threadID string) Option {
	return func(s *Session) { s.defaultThreadID = threadID }
}

// WithMaxInputChars overrides the input length cap.
func WithMaxInputChars(n int) Option {
	return func(s *Session) { s.maxInputChars = n }
}

// WithAutoSummarize enables threshold-triggered summarization after each
// turn. threshold <= 0 selects the default.
func WithAutoSummarize(threshold int) Option {
	return func(s *Session) {
		s.autoSummarize = true
		if threshold > 0 {
			s.summaryThreshold = threshold
		}
	}
}

// New creates a session.
func New(
	g *graph.Graph,
	checkpoints checkpoint.Store,
	engine *summary.Engine,
	summaries summary.Store,
	log *logger.Logger,
	opts ...Option,
) *Session {
	s := &Session{
		graph:            g,
		checkpoints:      checkpoints,
		engine:           engine,
		summaries:        summaries,
		logger:           log,
		defaultThreadID:  "default",
		maxInputChars:    DefaultMaxInputChars,
		summaryThreshold: DefaultSummaryThreshold,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Send processes one user message to completion and returns the response.
// Invalid input yields a fixed validation result without entering the graph.
func (s *Session) Send(ctx context.Context, threadID, text string) (*SendResult, error) {
	return s.send(ctx, threadID, text, nil)
}

// SendWithStream is Send with response content delivered through callback as
// it becomes available.
func (s *Session) SendWithStream(ctx context.Context, threadID, text string, callback llm.StreamCallback) (*SendResult, error) {
	return s.send(ctx, threadID, text, callback)
}

// Stream processes one user message and returns a channel of response chunks
// plus a cancel function. The channel closes when the turn completes. A
// consumer that stops reading before the channel closes must call cancel;
// this aborts the in-flight turn, releases the thread, and commits nothing.
func (s *Session) Stream(ctx context.Context, threadID, text string) (<-chan string, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	ch := make(chan string, 16)
	go func() {
		defer close(ch)
		defer cancel()
		_, err := s.send(ctx, threadID, text, func(token string, index int) error {
			select {
			case ch <- token:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
		if err != nil {
			s.logger.Error("stream turn failed", zap.Error(err))
			select {
			case ch <- fmt.Sprintf("Error: %v", err):
			case <-ctx.Done():
			}
		}
	}()
	return ch, cancel
}

func (s *Session) send(ctx context.Context, threadID, text string, callback llm.StreamCallback) (*SendResult, error) {
	threadID = s.resolveThread(threadID)

	sanitized, ok := sanitizeInput(text, s.maxInputChars)
	if !ok {
		if callback != nil {
			_ = callback(invalidInputResponse, 0)
		}
		return &SendResult{
			Response: invalidInputResponse,
			Metadata: map[string]any{"error": "invalid input"},
		}, nil
	}

	mu := s.lockThread(threadID)
	defer mu.Unlock()

	state, err := s.checkpoints.Get(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("failed to load thread state: %w", err)
	}
	if state == nil {
		state = model.NewThreadState(threadID)
	}

	userTurn := model.Turn{
		ID:        uuid.Must(uuid.NewV7()).String(),
		Kind:      model.TurnUser,
		Content:   sanitized,
		CreatedAt: time.Now(),
	}
	turns := append(append([]model.Turn(nil), state.Turns...), userTurn)

	var result *graph.Result
	if callback != nil {
		result, err = s.graph.RunStream(ctx, turns, callback)
	} else {
		result, err = s.graph.Run(ctx, turns)
	}
	if err != nil {
		return nil, fmt.Errorf("conversation turn failed: %w", err)
	}

	// A cancelled turn commits nothing; the degraded output the graph
	// produced on the way down never reaches the checkpoint store.
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("conversation turn cancelled: %w", err)
	}

	state.Turns = result.Turns
	state.UpdatedAt = time.Now()

	metrics.RecordTurn(string(model.TurnUser))
	metrics.RecordTurn(string(model.TurnAssistant))

	metadata := map[string]any{
		"thread_id":     threadID,
		"message_count": len(state.Turns),
		"tool_calls":    result.ToolCallCount,
	}

	if s.autoSummarize {
		if generated := s.autoSummarizeIfNeeded(ctx, state); generated != nil {
			metadata["summary_generated"] = true
			metadata["summary_title"] = generated.Title
		}
	}

	// Single atomic commit at the end of the turn: either the whole turn is
	// persisted or none of it is.
	if err := s.checkpoints.Put(ctx, threadID, state); err != nil {
		s.logger.Error("failed to persist thread state",
			zap.String("thread_id", threadID),
			zap.Error(err),
		)
		metadata["checkpoint_error"] = err.Error()
	}

	return &SendResult{Response: result.Response.Content, Metadata: metadata}, nil
}

// autoSummarizeIfNeeded generates and stores a summary once the thread
// crosses the message threshold. Runs under the thread lock, so the
// existence check and generation cannot race for one thread. Returns the
// generated summary, or nil when nothing was done.
func (s *Session) autoSummarizeIfNeeded(ctx context.Context, state *model.ThreadState) *model.ConversationSummary {
	existing, err := s.summaries.Load(state.ThreadID)
	if err != nil {
		s.logger.Error("failed to check existing summary", zap.Error(err))
		return nil
	}
	if existing != nil {
		return nil
	}

	if len(state.Turns) < s.summaryThreshold {
		return nil
	}
	state.NeedsSummary = true

	s.logger.Info("auto-generating summary",
		zap.String("thread_id", state.ThreadID),
		zap.Int("message_count", len(state.Turns)),
	)

	generated := s.engine.Generate(ctx, state.Turns, state.ThreadID)
	if err := s.summaries.Save(generated); err != nil {
		s.logger.Error("failed to save summary", zap.Error(err))
		return nil
	}

	state.NeedsSummary = false
	return &generated
}

// History returns the stored turns for a thread.
func (s *Session) History(ctx context.Context, threadID string) ([]model.Turn, error) {
	threadID = s.resolveThread(threadID)

	state, err := s.checkpoints.Get(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("failed to load thread state: %w", err)
	}
	if state == nil {
		return []model.Turn{}, nil
	}
	return state.Turns, nil
}

// ClearThread removes a thread's stored state. The bool reports whether a
// thread existed.
func (s *Session) ClearThread(ctx context.Context, threadID string) (bool, error) {
	threadID = s.resolveThread(threadID)

	mu := s.lockThread(threadID)
	defer mu.Unlock()

	return s.checkpoints.Delete(ctx, threadID)
}

// GenerateSummary produces and stores a summary for the thread's current
// history. The summary itself is always well-formed; the error covers
// persistence only.
func (s *Session) GenerateSummary(ctx context.Context, threadID string) (model.ConversationSummary, error) {
	threadID = s.resolveThread(threadID)

	mu := s.lockThread(threadID)
	defer mu.Unlock()

	return s.generateSummaryLocked(ctx, threadID)
}

func (s *Session) generateSummaryLocked(ctx context.Context, threadID string) (model.ConversationSummary, error) {
	state, err := s.checkpoints.Get(ctx, threadID)
	if err != nil {
		return model.ConversationSummary{}, fmt.Errorf("failed to load thread state: %w", err)
	}

	var turns []model.Turn
	if state != nil {
		turns = state.Turns
	}

	generated := s.engine.Generate(ctx, turns, threadID)
	if err := s.summaries.Save(generated); err != nil {
		return generated, fmt.Errorf("failed to save summary: %w", err)
	}
	return generated, nil
}

// GetSummary returns the stored summary for a thread, or nil.
func (s *Session) GetSummary(threadID string) (*model.ConversationSummary, error) {
	return s.summaries.Load(s.resolveThread(threadID))
}

// ListSummaries returns all stored summaries, newest first.
func (s *Session) ListSummaries() ([]model.ConversationSummary, error) {
	return s.summaries.List()
}

// SearchSummaries returns summaries matching the query.
func (s *Session) SearchSummaries(query string) ([]model.ConversationSummary, error) {
	return s.summaries.Search(query)
}

// UpdateSummary regenerates a thread's summary from its current history.
// Summaries are immutable, so this is delete-then-recreate.
func (s *Session) UpdateSummary(ctx context.Context, threadID string) (model.ConversationSummary, error) {
	threadID = s.resolveThread(threadID)

	mu := s.lockThread(threadID)
	defer mu.Unlock()

	if _, err := s.summaries.Delete(threadID); err != nil {
		return model.ConversationSummary{}, fmt.Errorf("failed to delete summary: %w", err)
	}
	return s.generateSummaryLocked(ctx, threadID)
}

// DeleteSummary removes the stored summary for a thread.
func (s *Session) DeleteSummary(threadID string) (bool, error) {
	return s.summaries.Delete(s.resolveThread(threadID))
}

func (s *Session) resolveThread(threadID string) string {
	if threadID == "" {
		return s.defaultThreadID
	}
	return threadID
}

// lockThread acquires the per-thread mutex, creating it on first use.
func (s *Session) lockThread(threadID string) *sync.Mutex {
	v, _ := s.locks.LoadOrStore(threadID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu
}

// sanitizeInput trims the input and enforces the length cap. Inputs over the
// cap are truncated with an ellipsis marker; empty input is rejected.
func sanitizeInput(text string, maxChars int) (string, bool) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", false
	}

	runes := []rune(trimmed)
	if len(runes) > maxChars {
		return string(runes[:maxChars]) + "...", true
	}
	return trimmed, true
}
