package chat

import (
	"encoding/json"
	"fmt"

	"github.com/andrewkylim/chatkin-chat-sub002/internal/ai"
)

// toolName is the closed set of tools offered to the model. Classification
// switches over this exhaustively; an unknown name is a malformed turn, not a
// branch to be handled ad hoc elsewhere.
type toolName string

const (
	toolAskQuestions      toolName = "ask_questions"
	toolProposeOperations toolName = "propose_operations"
	toolQueryTasks        toolName = "query_tasks"
	toolQueryNotes        toolName = "query_notes"
	toolQueryProjects     toolName = "query_projects"
)

// isQueryTool reports whether a tool is read-only. Query tools may touch the
// entity store during the dialogue loop; action tools may not, they only
// produce proposals that wait for user confirmation.
func (t toolName) isQueryTool() bool {
	switch t {
	case toolQueryTasks, toolQueryNotes, toolQueryProjects:
		return true
	}
	return false
}

// Question is one clarifying question with optional canned options
type Question struct {
	Question string   `json:"question"`
	Options  []string `json:"options,omitempty"`
}

// ProposedOperation is a single not-yet-executed mutation
type ProposedOperation struct {
	Operation string          `json:"operation"` // create, update, delete
	Entity    string          `json:"entity"`    // task, note, project
	ID        string          `json:"id,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Changes   json.RawMessage `json:"changes,omitempty"`
	Reason    string          `json:"reason,omitempty"`
}

// ProposedBatch is a set of operations awaiting user confirmation.
// ToolUseID correlates the batch to the model turn that produced it and is
// the idempotence key once the batch is confirmed.
type ProposedBatch struct {
	ToolUseID  string              `json:"tool_use_id"`
	Summary    string              `json:"summary"`
	Operations []ProposedOperation `json:"operations"`
}

// OutcomeType is the closed classification of a dialogue turn
type OutcomeType string

const (
	OutcomeMessage   OutcomeType = "message"
	OutcomeQuestions OutcomeType = "questions"
	OutcomeBatch     OutcomeType = "actions"
)

// Outcome is the terminal result of one Converse call
type Outcome struct {
	Type      OutcomeType
	Message   string
	Questions []Question
	Batch     *ProposedBatch
}

// toolDefs returns the tool definitions sent with every completion
func toolDefs() []ai.ToolDef {
	return []ai.ToolDef{
		{
			Name: string(toolAskQuestions),
			Description: "Ask the user clarifying questions before acting. " +
				"Use when the request is ambiguous or missing details you need.",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"questions": {
						"type": "array",
						"items": {
							"type": "object",
							"properties": {
								"question": {"type": "string"},
								"options": {"type": "array", "items": {"type": "string"}}
							},
							"required": ["question"]
						}
					}
				},
				"required": ["questions"]
			}`),
		},
		{
			Name: string(toolProposeOperations),
			Description: "Propose a batch of create/update/delete operations on the user's " +
				"tasks, notes and projects. Nothing is written until the user confirms. " +
				"Use ids from the workspace context or from query tool results.",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"summary": {"type": "string", "description": "One sentence describing the batch"},
					"operations": {
						"type": "array",
						"items": {
							"type": "object",
							"properties": {
								"operation": {"type": "string", "enum": ["create", "update", "delete"]},
								"entity": {"type": "string", "enum": ["task", "note", "project"]},
								"id": {"type": "string"},
								"data": {"type": "object"},
								"changes": {"type": "object"},
								"reason": {"type": "string"}
							},
							"required": ["operation", "entity"]
						}
					}
				},
				"required": ["summary", "operations"]
			}`),
		},
		{
			Name: string(toolQueryTasks),
			Description: "Read the user's tasks beyond what the workspace context shows. " +
				"Read-only. Use before proposing operations that need the full task list.",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"status": {"type": "string", "enum": ["todo", "in_progress", "done"]},
					"project_id": {"type": "string"},
					"limit": {"type": "integer"}
				}
			}`),
		},
		{
			Name: string(toolQueryNotes),
			Description: "Read the user's notes beyond what the workspace context shows. Read-only.",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"project_id": {"type": "string"},
					"limit": {"type": "integer"}
				}
			}`),
		},
		{
			Name:        string(toolQueryProjects),
			Description: "Read the user's projects with task counts. Read-only.",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {}
			}`),
		},
	}
}

// parseQuestions decodes ask_questions tool input
func parseQuestions(input json.RawMessage) ([]Question, error) {
	var payload struct {
		Questions []Question `json:"questions"`
	}
	if err := json.Unmarshal(input, &payload); err != nil {
		return nil, fmt.Errorf("%w: ask_questions input: %v", ai.ErrMalformedTurn, err)
	}
	if len(payload.Questions) == 0 {
		return nil, fmt.Errorf("%w: ask_questions with no questions", ai.ErrMalformedTurn)
	}
	return payload.Questions, nil
}

// parseBatch decodes propose_operations tool input
func parseBatch(toolUseID string, input json.RawMessage) (*ProposedBatch, error) {
	var payload struct {
		Summary    string              `json:"summary"`
		Operations []ProposedOperation `json:"operations"`
	}
	if err := json.Unmarshal(input, &payload); err != nil {
		return nil, fmt.Errorf("%w: propose_operations input: %v", ai.ErrMalformedTurn, err)
	}
	if len(payload.Operations) == 0 {
		return nil, fmt.Errorf("%w: propose_operations with no operations", ai.ErrMalformedTurn)
	}
	return &ProposedBatch{
		ToolUseID:  toolUseID,
		Summary:    payload.Summary,
		Operations: payload.Operations,
	}, nil
}
