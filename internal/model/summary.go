package model

import (
	"time"
)

// Sentiment classifies the overall tone of a conversation.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
)

// ParseSentiment normalizes a model-produced sentiment string. Anything
// unrecognized maps to neutral.
func ParseSentiment(s string) Sentiment {
	switch Sentiment(s) {
	case SentimentPositive, SentimentNegative, SentimentNeutral:
		return Sentiment(s)
	default:
		return SentimentNeutral
	}
}

// ConversationSummary is a structured digest of one thread. Summaries are
// immutable once created; updating means delete-then-recreate.
type ConversationSummary struct {
	ThreadID     string    `json:"thread_id"`
	Title        string    `json:"title"`
	MainTopics   []string  `json:"main_topics"`
	KeyPoints    []string  `json:"key_points"`
	UserGoals    []string  `json:"user_goals"`
	CreatedAt    time.Time `json:"created_at"`
	MessageCount int       `json:"message_count"`
	Sentiment    Sentiment `json:"sentiment"`
	Tags         []string  `json:"tags"`
	SummaryText  string    `json:"summary_text"`
}
