package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	"github.com/andrewkylim/chatkin-chat-sub002/internal/ai"
	"github.com/andrewkylim/chatkin-chat-sub002/internal/db"
)

// History owns conversation persistence and progressive summarization.
// The invariant it maintains: the rolling summary covers messages
// [0, summarized_count) and the served window covers the rest, so the union
// is the full history with no gap and no duplication.
type History struct {
	store    *db.Store
	provider ai.Provider
	window   int64
}

// NewHistory creates a conversation history manager
func NewHistory(store *db.Store, provider ai.Provider, window int) *History {
	if window <= 0 {
		window = 50
	}
	return &History{store: store, provider: provider, window: int64(window)}
}

// Window returns the configured recent-window size
func (h *History) Window() int {
	return int(h.window)
}

// ErrInvalidRequest marks turn parameters the client can correct
var ErrInvalidRequest = errors.New("invalid chat request")

// GetOrCreate returns the conversation for a (user, scope, project) tuple,
// creating it lazily on first chat interaction.
func (h *History) GetOrCreate(ctx context.Context, userID, scope, projectID string) (db.Conversation, error) {
	switch scope {
	case "global", "tasks", "notes":
		projectID = ""
	case "project":
		if projectID == "" {
			return db.Conversation{}, fmt.Errorf("%w: project scope requires a project id", ErrInvalidRequest)
		}
	default:
		return db.Conversation{}, fmt.Errorf("%w: unknown scope %q", ErrInvalidRequest, scope)
	}
	return h.store.GetOrCreateConversation(ctx, userID, scope, projectID)
}

// Append persists one immutable message and bumps the conversation counter
func (h *History) Append(ctx context.Context, conversationID, role, content string) error {
	_, err := h.store.AppendConversationMessage(ctx, conversationID, role, content, "")
	return err
}

// Served returns what a model call should see: the rolling summary plus the
// trailing messages it does not cover. When the summarizer has fallen behind
// the window, the whole unsummarized tail is served; a longer prompt beats a
// hole in the history.
func (h *History) Served(ctx context.Context, conv db.Conversation) (summary string, msgs []db.ConversationMessage, err error) {
	tail := conv.MessageCount - conv.SummarizedCount
	if tail < h.window {
		tail = h.window
	}
	msgs, err = h.store.RecentMessages(ctx, conv.ID, int(tail))
	if err != nil {
		return "", nil, err
	}
	return conv.Summary, msgs, nil
}

// SummarizeIfNeeded folds messages older than the recent window into the
// rolling summary, moving the boundary to exactly message_count - window.
// No-op when the backlog hasn't outgrown the window. On provider failure the
// old summary keeps serving and the boundary does not move.
func (h *History) SummarizeIfNeeded(ctx context.Context, conversationID string) error {
	conv, err := h.store.GetConversationByID(ctx, conversationID)
	if err != nil {
		return err
	}

	target := conv.MessageCount - h.window
	if target <= conv.SummarizedCount {
		return nil
	}

	batch, err := h.store.MessagesAfter(ctx, conv.ID, conv.SummarizedCount, target-conv.SummarizedCount)
	if err != nil {
		return err
	}
	if int64(len(batch)) != target-conv.SummarizedCount {
		return fmt.Errorf("summarize %s: expected %d messages, got %d",
			conv.ID, target-conv.SummarizedCount, len(batch))
	}

	var transcript strings.Builder
	if conv.Summary != "" {
		transcript.WriteString("Existing summary:\n")
		transcript.WriteString(conv.Summary)
		transcript.WriteString("\n\n")
	}
	transcript.WriteString("New messages:\n")
	for _, m := range batch {
		fmt.Fprintf(&transcript, "%s: %s\n", m.Role, m.Content)
	}

	turn, err := h.provider.Complete(ctx, &ai.CompleteRequest{
		System:   summarizerPrompt,
		Messages: []ai.Message{{Role: "user", Content: transcript.String()}},
	})
	if err != nil {
		return fmt.Errorf("summarize %s: %w", conv.ID, err)
	}
	newSummary := strings.TrimSpace(turn.Text)
	if newSummary == "" {
		return fmt.Errorf("summarize %s: empty summary", conv.ID)
	}

	return h.store.UpdateConversationSummary(ctx, conv.ID, newSummary, target)
}

// Sweep summarizes every conversation whose backlog has outgrown the window.
// Called on a cron cadence; per-conversation failures are logged and skipped.
func (h *History) Sweep(ctx context.Context) {
	convs, err := h.store.ConversationsNeedingSummary(ctx, h.window)
	if err != nil {
		logx.Errorf("summary sweep: %v", err)
		return
	}
	for _, conv := range convs {
		cctx, cancel := context.WithTimeout(ctx, 60*time.Second)
		if err := h.SummarizeIfNeeded(cctx, conv.ID); err != nil {
			logx.Errorf("summary sweep: conversation %s: %v", conv.ID, err)
		}
		cancel()
	}
}
