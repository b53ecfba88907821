package types

import "encoding/json"

// Chat

type ChatContext struct {
	Scope     string `json:"scope"`                // global, tasks, notes, project
	ProjectId string `json:"project_id,omitempty"` // required when scope is project
}

type ChatRequest struct {
	Message string       `json:"message"`
	Context *ChatContext `json:"context,omitempty"`
	// Flat form, accepted when no context object is sent
	Scope     string `json:"scope,omitempty"`
	ProjectId string `json:"project_id,omitempty"`
}

type QuestionItem struct {
	Question string   `json:"question"`
	Options  []string `json:"options,omitempty"`
}

type OperationItem struct {
	Operation string          `json:"operation"` // create, update, delete
	Entity    string          `json:"entity"`    // task, note, project
	Id        string          `json:"id,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Changes   json.RawMessage `json:"changes,omitempty"`
	Reason    string          `json:"reason,omitempty"`
}

type ChatResponse struct {
	Type           string          `json:"type"` // message, questions, actions
	ConversationId string          `json:"conversation_id"`
	Message        string          `json:"message,omitempty"`
	Questions      []QuestionItem  `json:"questions,omitempty"`
	ToolUseId      string          `json:"tool_use_id,omitempty"`
	Summary        string          `json:"summary,omitempty"`
	Actions        []OperationItem `json:"actions,omitempty"`
}

type ConfirmRequest struct {
	Scope      string          `json:"scope"`
	ProjectId  string          `json:"project_id,omitempty"`
	ToolUseId  string          `json:"tool_use_id"`
	Summary    string          `json:"summary,omitempty"`
	Operations []OperationItem `json:"operations"`
}

type OperationFailureItem struct {
	Index     int    `json:"index"`
	Operation string `json:"operation"`
	Entity    string `json:"entity"`
	Id        string `json:"id,omitempty"`
	Error     string `json:"error"`
}

type ConfirmResponse struct {
	Message      string                 `json:"message"`
	CreatedCount int                    `json:"created_count"`
	UpdatedCount int                    `json:"updated_count"`
	DeletedCount int                    `json:"deleted_count"`
	Failures     []OperationFailureItem `json:"failures,omitempty"`
}

// Conversations

type GetConversationRequest struct {
	Id string `path:"id"`
}

type ListMessagesRequest struct {
	Id    string `path:"id"`
	Limit int    `form:"limit,optional"`
}

// Tasks

type CreateTaskRequest struct {
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	Status      string          `json:"status,omitempty"`
	Priority    string          `json:"priority,omitempty"`
	Domain      string          `json:"domain,omitempty"`
	ProjectId   string          `json:"project_id,omitempty"`
	DueDate     string          `json:"due_date,omitempty"` // YYYY-MM-DD
	Recurrence  *RecurrenceSpec `json:"recurrence,omitempty"`
}

type RecurrenceSpec struct {
	Frequency  string `json:"frequency"` // daily, weekly, monthly, yearly
	Interval   int    `json:"interval,omitempty"`
	DaysOfWeek []int  `json:"days_of_week,omitempty"`
	DayOfMonth int    `json:"day_of_month,omitempty"`
	EndDate    string `json:"end_date,omitempty"` // YYYY-MM-DD
}

type UpdateTaskRequest struct {
	Id          string  `path:"id"`
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Status      *string `json:"status,omitempty"`
	Priority    *string `json:"priority,omitempty"`
	Domain      *string `json:"domain,omitempty"`
	ProjectId   *string `json:"project_id,omitempty"`
	DueDate     *string `json:"due_date,omitempty"` // empty string clears
}

type ListTasksRequest struct {
	Status    string `form:"status,optional"`
	ProjectId string `form:"project_id,optional"`
	Limit     int    `form:"limit,optional"`
	Offset    int    `form:"offset,optional"`
}

type IdRequest struct {
	Id string `path:"id"`
}

// Notes

type CreateNoteRequest struct {
	Title     string `json:"title"`
	Content   string `json:"content,omitempty"`
	ProjectId string `json:"project_id,omitempty"`
}

type UpdateNoteRequest struct {
	Id        string  `path:"id"`
	Title     *string `json:"title,omitempty"`
	Content   *string `json:"content,omitempty"`
	ProjectId *string `json:"project_id,omitempty"`
}

type ListNotesRequest struct {
	ProjectId string `form:"project_id,optional"`
	Limit     int    `form:"limit,optional"`
	Offset    int    `form:"offset,optional"`
}

// Projects

type CreateProjectRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Color       string `json:"color,omitempty"`
}

type UpdateProjectRequest struct {
	Id          string  `path:"id"`
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	Color       *string `json:"color,omitempty"`
}
