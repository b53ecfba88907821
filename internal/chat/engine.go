package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/tidwall/gjson"
	"github.com/zeromicro/go-zero/core/logx"

	"github.com/andrewkylim/chatkin-chat-sub002/internal/ai"
	"github.com/andrewkylim/chatkin-chat-sub002/internal/db"
)

const queryToolLimit = 200

// overflowApology terminates a runaway query-tool loop
const overflowApology = "Sorry, I couldn't gather everything I needed to act on that. " +
	"Could you narrow the request down a little?"

// Engine drives the tool-use round trip with the completion provider and
// classifies the result into one of three outcomes: a plain message, a set of
// clarifying questions, or a proposed operation batch.
//
// The safety property the whole design hangs on: query tools never mutate,
// and action tools never execute without user confirmation.
type Engine struct {
	store          *db.Store
	provider       ai.Provider
	history        *History
	snapshots      *SnapshotBuilder
	maxQueryRounds int
	maxTokens      int
}

// NewEngine creates a dialogue engine
func NewEngine(store *db.Store, provider ai.Provider, history *History, snapshots *SnapshotBuilder, maxQueryRounds, maxTokens int) *Engine {
	if maxQueryRounds <= 0 {
		maxQueryRounds = 5
	}
	return &Engine{
		store:          store,
		provider:       provider,
		history:        history,
		snapshots:      snapshots,
		maxQueryRounds: maxQueryRounds,
		maxTokens:      maxTokens,
	}
}

// ConverseRequest is one user message with its explicit context. No ambient
// state: everything the engine needs arrives here.
type ConverseRequest struct {
	UserID    string
	Scope     string
	ProjectID string
	Message   string
}

// Converse runs one full dialogue turn. The user message and, for message
// outcomes, the assistant reply are persisted before returning; a proposed
// batch defers its durable assistant message to the confirmation step.
func (e *Engine) Converse(ctx context.Context, req ConverseRequest) (*Outcome, db.Conversation, error) {
	conv, err := e.history.GetOrCreate(ctx, req.UserID, req.Scope, req.ProjectID)
	if err != nil {
		return nil, db.Conversation{}, err
	}

	// Snapshot is read once per turn and reused across the query-tool loop;
	// staleness inside a single turn is accepted.
	snapshot := e.snapshots.Build(ctx, req.UserID, req.Scope, req.ProjectID)

	summary, recent, err := e.history.Served(ctx, conv)
	if err != nil {
		return nil, db.Conversation{}, err
	}

	messages := make([]ai.Message, 0, len(recent)+1)
	for _, m := range recent {
		messages = append(messages, ai.Message{Role: m.Role, Content: m.Content})
	}
	messages = append(messages, ai.Message{Role: "user", Content: req.Message})

	system := systemPrompt(req.Scope, snapshot, summary)

	outcome, err := e.runLoop(ctx, req, system, messages)
	if err != nil {
		// Turn-level failure: nothing is persisted, the client shows a
		// generic error bubble.
		return nil, db.Conversation{}, err
	}

	if err := e.persistOutcome(ctx, conv.ID, req.Message, outcome); err != nil {
		return nil, db.Conversation{}, err
	}

	// Opportunistic summarization check; the cron sweep is the backstop.
	go func() {
		sctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()
		if err := e.history.SummarizeIfNeeded(sctx, conv.ID); err != nil {
			logx.Errorf("post-turn summarize: %v", err)
		}
	}()

	return outcome, conv, nil
}

// runLoop is the bounded query-tool state machine. Each iteration is one
// completion; query tools feed results back in and loop, everything else
// terminates. The iteration counter is the structural guarantee against
// infinite tool loops.
func (e *Engine) runLoop(ctx context.Context, req ConverseRequest, system string, messages []ai.Message) (*Outcome, error) {
	for round := 0; round <= e.maxQueryRounds; round++ {
		turn, err := e.provider.Complete(ctx, &ai.CompleteRequest{
			System:    system,
			Messages:  messages,
			Tools:     toolDefs(),
			MaxTokens: e.maxTokens,
		})
		if err != nil {
			return nil, fmt.Errorf("completion failed: %w", err)
		}

		if turn.ToolCall == nil {
			return &Outcome{Type: OutcomeMessage, Message: turn.Text}, nil
		}

		name := toolName(turn.ToolCall.Name)
		switch name {
		case toolAskQuestions:
			questions, err := parseQuestions(turn.ToolCall.Input)
			if err != nil {
				return nil, err
			}
			return &Outcome{Type: OutcomeQuestions, Questions: questions}, nil

		case toolProposeOperations:
			batch, err := parseBatch(turn.ToolCall.ID, turn.ToolCall.Input)
			if err != nil {
				return nil, err
			}
			return &Outcome{Type: OutcomeBatch, Batch: batch}, nil

		default:
			if !name.isQueryTool() {
				return nil, fmt.Errorf("%w: unknown tool %q", ai.ErrMalformedTurn, turn.ToolCall.Name)
			}
			result, qerr := e.runQuery(ctx, req.UserID, name, turn.ToolCall.Input)
			toolResult := ai.ToolResult{ToolCallID: turn.ToolCall.ID, Content: result}
			if qerr != nil {
				toolResult.Content = "query failed: " + qerr.Error()
				toolResult.IsError = true
			}
			messages = append(messages,
				ai.Message{Role: "assistant", Content: turn.Text, ToolCalls: []ai.ToolCall{*turn.ToolCall}},
				ai.Message{Role: "tool", ToolResults: []ai.ToolResult{toolResult}},
			)
			// Loop back for another completion with the query result in hand
		}
	}

	logx.Infof("query-tool loop exhausted after %d rounds (user %s)", e.maxQueryRounds, req.UserID)
	return &Outcome{Type: OutcomeMessage, Message: overflowApology}, nil
}

// runQuery executes a read-only query tool against the entity store
func (e *Engine) runQuery(ctx context.Context, userID string, name toolName, input json.RawMessage) (string, error) {
	limit := int(gjson.GetBytes(input, "limit").Int())
	if limit <= 0 || limit > queryToolLimit {
		limit = queryToolLimit
	}

	switch name {
	case toolQueryTasks:
		tasks, err := e.store.ListTasks(ctx, userID, db.TaskFilter{
			Status:    gjson.GetBytes(input, "status").String(),
			ProjectID: gjson.GetBytes(input, "project_id").String(),
			Limit:     limit,
		})
		if err != nil {
			return "", err
		}
		return marshalQueryResult(tasks)

	case toolQueryNotes:
		notes, err := e.store.ListNotes(ctx, userID,
			gjson.GetBytes(input, "project_id").String(), limit, 0)
		if err != nil {
			return "", err
		}
		return marshalQueryResult(notes)

	case toolQueryProjects:
		projects, err := e.store.GetProjects(ctx, userID)
		if err != nil {
			return "", err
		}
		return marshalQueryResult(projects)
	}
	return "", fmt.Errorf("not a query tool: %s", name)
}

func marshalQueryResult(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	if string(data) == "null" {
		return "[]", nil
	}
	return string(data), nil
}

// persistOutcome writes the durable messages for a terminal outcome. The
// user message is always written; the assistant side depends on the outcome:
// a plain message and rendered question text are final, but a proposed batch
// gets its assistant message only after the user confirms (the executor
// writes the confirmation summary).
func (e *Engine) persistOutcome(ctx context.Context, conversationID, userMessage string, outcome *Outcome) error {
	if err := e.history.Append(ctx, conversationID, "user", userMessage); err != nil {
		return err
	}

	switch outcome.Type {
	case OutcomeMessage:
		return e.history.Append(ctx, conversationID, "assistant", outcome.Message)
	case OutcomeQuestions:
		return e.history.Append(ctx, conversationID, "assistant", renderQuestions(outcome.Questions))
	case OutcomeBatch:
		return nil
	}
	return fmt.Errorf("unknown outcome type %q", outcome.Type)
}

// renderQuestions flattens a question set into the durable assistant text
func renderQuestions(questions []Question) string {
	text := ""
	for i, q := range questions {
		if i > 0 {
			text += "\n"
		}
		text += q.Question
		for _, opt := range q.Options {
			text += "\n- " + opt
		}
	}
	return text
}
