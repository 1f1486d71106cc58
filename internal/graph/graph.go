// Package graph implements the per-turn conversation state machine: one model
// round-trip, including any tool sub-round-trip, per run.
package graph

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/capitalize-ai/conversation-engine/internal/llm"
	"github.com/capitalize-ai/conversation-engine/internal/model"
	"github.com/capitalize-ai/conversation-engine/internal/tool"
	"github.com/capitalize-ai/conversation-engine/pkg/logger"
)

// ErrNoTurns is returned when a run is started on an empty log. It is the
// only error Run propagates; every model failure is absorbed into a degraded
// assistant turn instead.
var ErrNoTurns = errors.New("no messages supplied")

// Model is the opaque model collaborator: ordered turns in, one assistant
// turn out (possibly carrying tool-call requests).
type Model interface {
	Invoke(ctx context.Context, turns []model.Turn) (model.Turn, error)
	InvokeStream(ctx context.Context, turns []model.Turn, callback llm.StreamCallback) (model.Turn, error)
}

type state int

const (
	stateAwaitingModel state = iota
	stateRouting
	stateExecutingTools
	stateFinalizing
	stateDone
)

// Result is the committed outcome of one run.
type Result struct {
	// Turns is the full updated log: the input snapshot plus every turn this
	// run appended.
	Turns []model.Turn

	// Response is the final assistant turn of the run.
	Response model.Turn

	// ToolCallCount is the number of tool calls executed during the run.
	ToolCallCount int
}

// Graph advances a conversation by exactly one model round-trip. Each run
// consumes an immutable snapshot of the log and returns the updated log; the
// caller commits it.
type Graph struct {
	model      Model
	dispatcher *tool.Dispatcher
	hasTools   bool
	logger     *logger.Logger
}

// New creates a graph. dispatcher may be nil when no tools are registered.
func New(m Model, dispatcher *tool.Dispatcher, hasTools bool, log *logger.Logger) *Graph {
	return &Graph{
		model:      m,
		dispatcher: dispatcher,
		hasTools:   hasTools && dispatcher != nil,
		logger:     log,
	}
}

// Run advances the conversation to Done and returns the updated log.
func (g *Graph) Run(ctx context.Context, turns []model.Turn) (*Result, error) {
	return g.run(ctx, turns, nil)
}

// RunStream is Run with the response content delivered through callback as it
// becomes available. A tool-backed run may deliver a single terminal chunk.
func (g *Graph) RunStream(ctx context.Context, turns []model.Turn, callback llm.StreamCallback) (*Result, error) {
	return g.run(ctx, turns, callback)
}

func (g *Graph) run(ctx context.Context, turns []model.Turn, callback llm.StreamCallback) (*Result, error) {
	if len(turns) == 0 {
		return nil, ErrNoTurns
	}

	ctx, span := otel.Tracer("conversation-engine/graph").Start(ctx, "graph.run")
	defer span.End()

	// Work on a snapshot; the caller's slice is never mutated.
	log := append([]model.Turn(nil), turns...)

	res := &Result{}
	streamed := false
	st := stateAwaitingModel

	for st != stateDone {
		switch st {
		case stateAwaitingModel:
			// The full log goes to the model untrimmed; context-window policy
			// belongs to the model collaborator.
			var turn model.Turn
			var err error
			if callback != nil && !g.hasTools {
				turn, err = g.model.InvokeStream(ctx, log, callback)
				streamed = err == nil
			} else {
				turn, err = g.model.Invoke(ctx, log)
			}
			if err != nil {
				g.logger.Error("model call failed", zap.Error(err))
				turn = degradedTurn(fmt.Sprintf("Sorry, I encountered an error: %v", err))
				log = append(log, turn)
				res.Response = turn
				if callback != nil {
					_ = callback(turn.Content, 0)
				}
				st = stateDone
				break
			}
			log = append(log, turn)
			st = stateRouting

		case stateRouting:
			last := log[len(log)-1]
			switch {
			case last.HasToolCalls() && !g.hasTools:
				// Models without bound tools can still emit tool-call shaped
				// text that the parser picks up. There is nothing to execute,
				// so the calls are dropped rather than left dangling.
				g.logger.Warn("dropping tool calls, no tools registered",
					zap.Int("count", len(last.ToolCalls)),
				)
				log[len(log)-1].ToolCalls = nil
				st = stateFinalizing
			case last.HasToolCalls():
				st = stateExecutingTools
			default:
				st = stateFinalizing
			}

		case stateExecutingTools:
			calls := log[len(log)-1].ToolCalls
			g.logger.Debug("executing tool calls", zap.Int("count", len(calls)))
			results := g.dispatcher.Dispatch(ctx, calls)
			log = append(log, results...)
			res.ToolCallCount = len(calls)
			st = stateFinalizing

		case stateFinalizing:
			last := log[len(log)-1]
			if last.Kind == model.TurnToolResult {
				// Tool results stay in history; the synthesized narration is
				// appended alongside them.
				final := g.synthesize(ctx, log, callback)
				log = append(log, final)
				res.Response = final
			} else {
				res.Response = last
				if callback != nil && !streamed {
					_ = callback(last.Content, 0)
				}
			}
			st = stateDone
		}
	}

	res.Turns = log

	span.SetAttributes(
		attribute.Int("turns", len(res.Turns)),
		attribute.Int("tool_calls", res.ToolCallCount),
	)

	return res, nil
}

// synthesize asks the model to narrate the tool results: the conversation
// prefix (everything before the assistant turn that requested tools) plus a
// synthetic user turn carrying the results.
func (g *Graph) synthesize(ctx context.Context, log []model.Turn, callback llm.StreamCallback) model.Turn {
	i := len(log) - 1
	var results []model.Turn
	for i >= 0 && log[i].Kind == model.TurnToolResult {
		results = append(results, log[i])
		i--
	}

	var sb strings.Builder
	for j := len(results) - 1; j >= 0; j-- {
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(results[j].Content)
	}

	prefix := append([]model.Turn(nil), log[:i]...)
	prefix = append(prefix, model.Turn{
		ID:        uuid.Must(uuid.NewV7()).String(),
		Kind:      model.TurnUser,
		Content:   fmt.Sprintf("Based on these tool results:\n\n%s\n\nplease provide a helpful response to the user.", sb.String()),
		CreatedAt: time.Now(),
	})

	var turn model.Turn
	var err error
	if callback != nil {
		turn, err = g.model.InvokeStream(ctx, prefix, callback)
	} else {
		turn, err = g.model.Invoke(ctx, prefix)
	}
	if err != nil {
		g.logger.Error("tool result synthesis failed", zap.Error(err))
		turn = degradedTurn(fmt.Sprintf("I found some information but encountered an error processing it: %v", err))
		if callback != nil {
			_ = callback(turn.Content, 0)
		}
		return turn
	}

	// Synthesis is the last model call of the run; a nested tool request here
	// would dangle, so it is dropped.
	turn.ToolCalls = nil
	return turn
}

func degradedTurn(content string) model.Turn {
	return model.Turn{
		ID:        uuid.Must(uuid.NewV7()).String(),
		Kind:      model.TurnAssistant,
		Content:   content,
		CreatedAt: time.Now(),
	}
}
