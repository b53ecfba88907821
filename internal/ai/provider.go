package ai

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
)

// Message is one turn of the transcript sent to a provider. Tool calls and
// results only appear on the ephemeral turns inside a single query-tool loop;
// persisted history is plain user/assistant text.
type Message struct {
	Role        string       `json:"role"` // user, assistant, tool
	Content     string       `json:"content,omitempty"`
	ToolCalls   []ToolCall   `json:"tool_calls,omitempty"`
	ToolResults []ToolResult `json:"tool_results,omitempty"`
}

// ToolCall is a structured function invocation emitted by the model
type ToolCall struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input"`
}

// ToolResult is the outcome of executing a tool call, fed back to the model
type ToolResult struct {
	ToolCallID string `json:"tool_call_id"`
	Content    string `json:"content"`
	IsError    bool   `json:"is_error,omitempty"`
}

// ToolDef describes a tool offered to the model
type ToolDef struct {
	Name        string
	Description string
	InputSchema json.RawMessage
}

// CompleteRequest is a single round trip to a completion provider
type CompleteRequest struct {
	System    string
	Messages  []Message
	Tools     []ToolDef
	Model     string
	MaxTokens int
}

// ModelTurn is the classified output of one completion: free text, a tool
// invocation, or both (some models emit preamble text before the tool call).
type ModelTurn struct {
	Text     string
	ToolCall *ToolCall
}

// Provider is the abstract completion capability. Implementations wrap a
// vendor SDK; callers never see vendor wire types.
type Provider interface {
	ID() string
	Complete(ctx context.Context, req *CompleteRequest) (*ModelTurn, error)
}

// ErrMalformedTurn is returned when the provider response cannot be
// classified (e.g. a tool call with unparseable input).
var ErrMalformedTurn = errors.New("malformed model turn")

// IsRateLimitOrAuth reports whether an error looks like a quota or
// credential failure rather than a transient fault.
func IsRateLimitOrAuth(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "429") ||
		strings.Contains(msg, "401") ||
		strings.Contains(msg, "authentication")
}
