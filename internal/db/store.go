package db

import (
	"database/sql"
	"time"
)

// Store wraps the SQLite connection with typed accessors for the entity
// tables. Every read and write is scoped to a user id; there is no call that
// crosses user boundaries.
type Store struct {
	db *sql.DB
}

// NewStore creates a Store from an open database connection
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// GetDB returns the underlying database connection for sharing with other components
func (s *Store) GetDB() *sql.DB {
	return s.db
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Task is a row in the tasks table. Recurrence fields are zero-valued for
// non-recurring tasks; instances of a recurring task link to the root through
// ParentTaskID and never carry recurrence fields of their own.
type Task struct {
	ID           string `json:"id"`
	UserID       string `json:"-"`
	ProjectID    string `json:"project_id,omitempty"`
	ParentTaskID string `json:"parent_task_id,omitempty"`
	Title        string `json:"title"`
	Description  string `json:"description,omitempty"`
	Status       string `json:"status"`
	Priority     string `json:"priority"`
	Domain       string `json:"domain,omitempty"`
	DueDate      *time.Time `json:"due_date,omitempty"`

	IsRecurring          bool       `json:"is_recurring,omitempty"`
	RecurrenceFrequency  string     `json:"recurrence_frequency,omitempty"`
	RecurrenceInterval   int        `json:"recurrence_interval,omitempty"`
	RecurrenceDaysOfWeek string     `json:"recurrence_days_of_week,omitempty"`
	RecurrenceDayOfMonth int        `json:"recurrence_day_of_month,omitempty"`
	RecurrenceEndDate    *time.Time `json:"recurrence_end_date,omitempty"`

	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Note is a row in the notes table
type Note struct {
	ID        string    `json:"id"`
	UserID    string    `json:"-"`
	ProjectID string    `json:"project_id,omitempty"`
	Title     string    `json:"title"`
	Content   string    `json:"content,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Project is a row in the projects table
type Project struct {
	ID          string    `json:"id"`
	UserID      string    `json:"-"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Color       string    `json:"color,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ProjectStats aggregates task counts for a project
type ProjectStats struct {
	Project
	TaskCount int64 `json:"task_count"`
	DoneCount int64 `json:"done_count"`
}

// Conversation is a row in the conversations table. There is at most one per
// (user_id, scope, project_id); message_count is maintained by the append and
// delete paths, never recomputed ad hoc.
type Conversation struct {
	ID               string     `json:"id"`
	UserID           string     `json:"-"`
	Scope            string     `json:"scope"`
	ProjectID        string     `json:"project_id,omitempty"`
	Mode             string     `json:"mode"`
	MessageCount     int64      `json:"message_count"`
	Summary          string     `json:"conversation_summary,omitempty"`
	SummarizedCount  int64      `json:"-"`
	LastSummarizedAt *time.Time `json:"last_summarized_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// ConversationMessage is a row in the conversation_messages table.
// Immutable once written; seq gives a total order within a conversation.
type ConversationMessage struct {
	Seq            int64     `json:"-"`
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	Metadata       string    `json:"metadata,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// ExecutedBatch is the idempotence ledger for confirmed operation batches.
// The id is the tool_use_id of the model turn that proposed the batch.
type ExecutedBatch struct {
	ID             string
	ConversationID string
	UserID         string
	Summary        string
	Report         string
	ExecutedAt     time.Time
}

// unixPtr converts a nullable unix-seconds column to *time.Time
func unixPtr(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.Unix(v.Int64, 0).UTC()
	return &t
}

// unixOrNull converts *time.Time to a nullable unix-seconds value
func unixOrNull(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.Unix(), Valid: true}
}
