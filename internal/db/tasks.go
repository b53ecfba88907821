package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const taskColumns = `id, user_id, project_id, parent_task_id, title, description,
	status, priority, domain, due_date, is_recurring, recurrence_frequency,
	recurrence_interval, recurrence_days_of_week, recurrence_day_of_month,
	recurrence_end_date, completed_at, created_at, updated_at`

func scanTask(row interface{ Scan(...any) error }) (Task, error) {
	var t Task
	var projectID, parentID sql.NullString
	var dueDate, recurrenceEnd, completedAt sql.NullInt64
	var isRecurring int64
	var createdAt, updatedAt int64
	err := row.Scan(&t.ID, &t.UserID, &projectID, &parentID, &t.Title, &t.Description,
		&t.Status, &t.Priority, &t.Domain, &dueDate, &isRecurring, &t.RecurrenceFrequency,
		&t.RecurrenceInterval, &t.RecurrenceDaysOfWeek, &t.RecurrenceDayOfMonth,
		&recurrenceEnd, &completedAt, &createdAt, &updatedAt)
	if err != nil {
		return Task{}, err
	}
	t.ProjectID = projectID.String
	t.ParentTaskID = parentID.String
	t.DueDate = unixPtr(dueDate)
	t.IsRecurring = isRecurring == 1
	t.RecurrenceEndDate = unixPtr(recurrenceEnd)
	t.CompletedAt = unixPtr(completedAt)
	t.CreatedAt = time.Unix(createdAt, 0).UTC()
	t.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return t, nil
}

// CreateTask inserts a task. ID and timestamps are filled in when empty.
func (s *Store) CreateTask(ctx context.Context, t *Task) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	if t.Status == "" {
		t.Status = "todo"
	}
	if t.Priority == "" {
		t.Priority = "medium"
	}
	isRecurring := int64(0)
	if t.IsRecurring {
		isRecurring = 1
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tasks (id, user_id, project_id, parent_task_id, title, description,
			status, priority, domain, due_date, is_recurring, recurrence_frequency,
			recurrence_interval, recurrence_days_of_week, recurrence_day_of_month,
			recurrence_end_date, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.UserID, nullString(t.ProjectID), nullString(t.ParentTaskID),
		t.Title, t.Description, t.Status, t.Priority, t.Domain,
		unixOrNull(t.DueDate), isRecurring, t.RecurrenceFrequency,
		t.RecurrenceInterval, t.RecurrenceDaysOfWeek, t.RecurrenceDayOfMonth,
		unixOrNull(t.RecurrenceEndDate), unixOrNull(t.CompletedAt))
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}
	return nil
}

// GetTask returns a task owned by the given user
func (s *Store) GetTask(ctx context.Context, userID, id string) (Task, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = ? AND user_id = ?`, id, userID)
	return scanTask(row)
}

// TaskFilter narrows ListTasks. Zero values mean "no constraint".
type TaskFilter struct {
	Status       string
	ProjectID    string
	ParentTaskID string
	Limit        int
	Offset       int
}

// ListTasks returns the user's tasks, newest first
func (s *Store) ListTasks(ctx context.Context, userID string, f TaskFilter) ([]Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE user_id = ?`
	args := []any{userID}
	if f.Status != "" {
		query += ` AND status = ?`
		args = append(args, f.Status)
	}
	if f.ProjectID != "" {
		query += ` AND project_id = ?`
		args = append(args, f.ProjectID)
	}
	if f.ParentTaskID != "" {
		query += ` AND parent_task_id = ?`
		args = append(args, f.ParentTaskID)
	}
	query += ` ORDER BY created_at DESC, id`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
		if f.Offset > 0 {
			query += ` OFFSET ?`
			args = append(args, f.Offset)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// CountTasksByStatus returns how many of the user's tasks have the given status
func (s *Store) CountTasksByStatus(ctx context.Context, userID, status string) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM tasks WHERE user_id = ? AND status = ?`, userID, status).Scan(&n)
	return n, err
}

// TaskUpdate is a partial update; nil fields are left untouched.
type TaskUpdate struct {
	Title        *string
	Description  *string
	Status       *string
	Priority     *string
	Domain       *string
	ProjectID    *string
	DueDate      *time.Time
	ClearDueDate bool
	CompletedAt  *time.Time
}

// UpdateTask applies a partial update to a task owned by the given user.
// Returns sql.ErrNoRows when the id does not resolve to a task of that user.
func (s *Store) UpdateTask(ctx context.Context, userID, id string, u TaskUpdate) (Task, error) {
	sets := []string{"updated_at = unixepoch()"}
	var args []any
	add := func(col string, v any) {
		sets = append(sets, col+" = ?")
		args = append(args, v)
	}
	if u.Title != nil {
		add("title", *u.Title)
	}
	if u.Description != nil {
		add("description", *u.Description)
	}
	if u.Status != nil {
		add("status", *u.Status)
	}
	if u.Priority != nil {
		add("priority", *u.Priority)
	}
	if u.Domain != nil {
		add("domain", *u.Domain)
	}
	if u.ProjectID != nil {
		add("project_id", nullString(*u.ProjectID))
	}
	if u.DueDate != nil {
		add("due_date", u.DueDate.Unix())
	} else if u.ClearDueDate {
		add("due_date", nil)
	}
	if u.CompletedAt != nil {
		add("completed_at", u.CompletedAt.Unix())
	}

	args = append(args, id, userID)
	res, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET `+strings.Join(sets, ", ")+` WHERE id = ? AND user_id = ?`, args...)
	if err != nil {
		return Task{}, fmt.Errorf("failed to update task: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return Task{}, sql.ErrNoRows
	}
	return s.GetTask(ctx, userID, id)
}

// DeleteTask removes a task owned by the given user.
// Returns sql.ErrNoRows when nothing was deleted.
func (s *Store) DeleteTask(ctx context.Context, userID, id string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM tasks WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
