// Package summary distills conversation history into structured digests and
// persists them keyed by thread identifier.
package summary

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/capitalize-ai/conversation-engine/internal/llm"
	"github.com/capitalize-ai/conversation-engine/internal/model"
	"github.com/capitalize-ai/conversation-engine/pkg/logger"
	"github.com/capitalize-ai/conversation-engine/pkg/metrics"
)

// DefaultWindow is how many recent turns feed the summary prompt.
const DefaultWindow = 10

const fallbackTextLimit = 200

const summaryPromptTemplate = `Analyze the following conversation and produce a structured summary.

Conversation:
%s

Respond with a single JSON object containing exactly these fields:
{
  "title": "conversation title (at most 20 words)",
  "summary_text": "summary of the conversation (100-200 words)",
  "main_topics": ["topic 1", "topic 2"],
  "key_points": ["key point 1", "key point 2", "key point 3"],
  "user_goals": ["user goal 1", "user goal 2"],
  "sentiment": "positive, negative or neutral",
  "tags": ["tag 1", "tag 2", "tag 3"]
}`

// Engine generates conversation summaries using the model. Generate never
// returns an error: every failure path produces a well-formed summary whose
// fields signal the failure mode.
type Engine struct {
	client    llm.Client
	parser    *llm.OutputParser
	modelName string
	window    int
	logger    *logger.Logger
	now       func() time.Time
}

// NewEngine creates a summary engine. window <= 0 selects the default.
func NewEngine(client llm.Client, modelName string, window int, log *logger.Logger) *Engine {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Engine{
		client:    client,
		parser:    llm.NewOutputParser(),
		modelName: modelName,
		window:    window,
		logger:    log,
		now:       time.Now,
	}
}

type summaryPayload struct {
	Title       string   `json:"title"`
	SummaryText string   `json:"summary_text"`
	MainTopics  []string `json:"main_topics"`
	KeyPoints   []string `json:"key_points"`
	UserGoals   []string `json:"user_goals"`
	Sentiment   string   `json:"sentiment"`
	Tags        []string `json:"tags"`
}

// Generate produces a summary for the given history.
func (e *Engine) Generate(ctx context.Context, turns []model.Turn, threadID string) model.ConversationSummary {
	if len(turns) == 0 {
		e.logger.Warn("no turns to summarize", zap.String("thread_id", threadID))
		metrics.RecordSummary("empty")
		return e.emptySummary(threadID)
	}

	transcript := e.formatTranscript(turns)

	resp, err := e.client.Complete(ctx, &llm.CompletionRequest{
		Model:       e.modelName,
		Messages:    []llm.ChatMessage{{Role: "user", Content: fmt.Sprintf(summaryPromptTemplate, transcript)}},
		MaxTokens:   1000,
		Temperature: 0.3,
	})
	if err != nil {
		e.logger.Error("summary generation failed", zap.String("thread_id", threadID), zap.Error(err))
		metrics.RecordSummary("error")
		return e.errorSummary(threadID, err)
	}

	payload, ok := e.parsePayload(resp.Content)
	if !ok {
		e.logger.Warn("failed to parse summary JSON, using fallback", zap.String("thread_id", threadID))
		metrics.RecordSummary("fallback")
		payload = fallbackPayload(transcript)
	} else {
		metrics.RecordSummary("success")
	}

	return model.ConversationSummary{
		ThreadID:     threadID,
		Title:        defaultIfEmpty(payload.Title, "untitled conversation"),
		MainTopics:   emptyIfNil(payload.MainTopics),
		KeyPoints:    emptyIfNil(payload.KeyPoints),
		UserGoals:    emptyIfNil(payload.UserGoals),
		CreatedAt:    e.now(),
		MessageCount: len(turns),
		Sentiment:    model.ParseSentiment(payload.Sentiment),
		Tags:         emptyIfNil(payload.Tags),
		SummaryText:  payload.SummaryText,
	}
}

// formatTranscript renders the most recent window of turns as a role-tagged
// transcript. Tool-result turns are omitted; their content reaches the model
// through the synthesized assistant turns that follow them.
func (e *Engine) formatTranscript(turns []model.Turn) string {
	recent := turns
	if len(recent) > e.window {
		recent = recent[len(recent)-e.window:]
	}

	var lines []string
	for _, t := range recent {
		switch t.Kind {
		case model.TurnUser:
			lines = append(lines, "User: "+t.Content)
		case model.TurnAssistant:
			lines = append(lines, "Assistant: "+t.Content)
		case model.TurnSystem:
			lines = append(lines, "System: "+t.Content)
		case model.TurnToolResult:
			// skipped
		}
	}

	return strings.Join(lines, "\n\n")
}

func (e *Engine) parsePayload(text string) (summaryPayload, bool) {
	var payload summaryPayload

	raw, err := e.parser.ParseJSONObject(text)
	if err != nil {
		return payload, false
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return payload, false
	}
	return payload, true
}

// fallbackPayload is the deterministic stand-in used when the model's output
// cannot be parsed.
func fallbackPayload(transcript string) summaryPayload {
	text := transcript
	// Truncate on runes so a multi-byte transcript is never cut mid-character.
	if runes := []rune(text); len(runes) > fallbackTextLimit {
		text = string(runes[:fallbackTextLimit]) + "..."
	}
	return summaryPayload{
		Title:       "conversation summary",
		SummaryText: text,
		MainTopics:  []string{"conversation"},
		KeyPoints:   []string{"user and assistant exchanged messages"},
		UserGoals:   []string{"information seeking"},
		Sentiment:   string(model.SentimentNeutral),
		Tags:        []string{"uncategorized"},
	}
}

func (e *Engine) emptySummary(threadID string) model.ConversationSummary {
	return model.ConversationSummary{
		ThreadID:     threadID,
		Title:        "empty conversation",
		MainTopics:   []string{},
		KeyPoints:    []string{},
		UserGoals:    []string{},
		CreatedAt:    e.now(),
		MessageCount: 0,
		Sentiment:    model.SentimentNeutral,
		Tags:         []string{"empty"},
		SummaryText:  "this conversation has no content yet.",
	}
}

func (e *Engine) errorSummary(threadID string, cause error) model.ConversationSummary {
	return model.ConversationSummary{
		ThreadID:     threadID,
		Title:        "summary generation failed",
		MainTopics:   []string{"error"},
		KeyPoints:    []string{fmt.Sprintf("summary generation error: %v", cause)},
		UserGoals:    []string{},
		CreatedAt:    e.now(),
		MessageCount: 0,
		Sentiment:    model.SentimentNegative,
		Tags:         []string{"error"},
		SummaryText:  "summary generation failed; please try again later.",
	}
}

func defaultIfEmpty(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
