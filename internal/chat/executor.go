package chat

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"github.com/zeromicro/go-zero/core/logx"

	"github.com/andrewkylim/chatkin-chat-sub002/internal/db"
	"github.com/andrewkylim/chatkin-chat-sub002/internal/recurrence"
)

// OperationFailure records one operation that did not apply
type OperationFailure struct {
	Index     int    `json:"index"`
	Operation string `json:"operation"`
	Entity    string `json:"entity"`
	ID        string `json:"id,omitempty"`
	Error     string `json:"error"`
}

// ExecutionReport is the per-batch result. Counts cover what actually
// happened; a batch with failures still reports the operations that landed.
type ExecutionReport struct {
	CreatedCount int                `json:"created_count"`
	UpdatedCount int                `json:"updated_count"`
	DeletedCount int                `json:"deleted_count"`
	Failures     []OperationFailure `json:"failures,omitempty"`
}

// Applied returns how many operations succeeded
func (r *ExecutionReport) Applied() int {
	return r.CreatedCount + r.UpdatedCount + r.DeletedCount
}

// Executor runs a user-confirmed operation batch against the entity store.
// Each operation is applied independently: one bad id does not roll back its
// siblings. The batch as a whole runs at most once, enforced by claiming the
// ledger row before the first operation.
type Executor struct {
	store      *db.Store
	history    *History
	recurrence *recurrence.Materializer
}

// NewExecutor creates a batch executor
func NewExecutor(store *db.Store, history *History, materializer *recurrence.Materializer) *Executor {
	return &Executor{store: store, history: history, recurrence: materializer}
}

// Execute applies a confirmed batch for a user. A replayed batch id returns
// ErrBatchExecuted with the original report; nothing runs twice.
func (e *Executor) Execute(ctx context.Context, userID, conversationID string, batch *ProposedBatch) (*ExecutionReport, error) {
	if batch.ToolUseID == "" {
		return nil, fmt.Errorf("batch has no tool_use_id")
	}
	if len(batch.Operations) == 0 {
		return nil, fmt.Errorf("batch has no operations")
	}

	if err := e.store.ClaimBatch(ctx, batch.ToolUseID, conversationID, userID, batch.Summary); err != nil {
		if errors.Is(err, db.ErrBatchExecuted) {
			if prior, gerr := e.store.GetExecutedBatch(ctx, batch.ToolUseID); gerr == nil && prior.Report != "" {
				var report ExecutionReport
				if jerr := json.Unmarshal([]byte(prior.Report), &report); jerr == nil {
					return &report, db.ErrBatchExecuted
				}
			}
			return nil, db.ErrBatchExecuted
		}
		return nil, err
	}

	report := &ExecutionReport{}
	for i, op := range batch.Operations {
		if err := e.apply(ctx, userID, op, report); err != nil {
			logx.Errorf("batch %s op %d (%s %s %s): %v",
				batch.ToolUseID, i, op.Operation, op.Entity, op.ID, err)
			report.Failures = append(report.Failures, OperationFailure{
				Index:     i,
				Operation: op.Operation,
				Entity:    op.Entity,
				ID:        op.ID,
				Error:     failureMessage(err),
			})
		}
	}

	if data, err := json.Marshal(report); err == nil {
		if err := e.store.SetBatchReport(ctx, batch.ToolUseID, string(data)); err != nil {
			logx.Errorf("batch %s: store report: %v", batch.ToolUseID, err)
		}
	}

	if conversationID != "" {
		if err := e.history.Append(ctx, conversationID, "assistant", ConfirmationText(batch, report)); err != nil {
			logx.Errorf("batch %s: append confirmation: %v", batch.ToolUseID, err)
		}
	}

	return report, nil
}

// apply dispatches one operation on its (operation, entity) pair
func (e *Executor) apply(ctx context.Context, userID string, op ProposedOperation, report *ExecutionReport) error {
	switch op.Operation + "/" + op.Entity {
	case "create/task":
		task, err := decodeTask(op.Data)
		if err != nil {
			return err
		}
		task.UserID = userID
		if err := e.store.CreateTask(ctx, task); err != nil {
			return err
		}
		report.CreatedCount++
		return nil

	case "update/task":
		return e.updateTask(ctx, userID, op, report)

	case "delete/task":
		if err := requireID(op); err != nil {
			return err
		}
		if err := e.store.DeleteTask(ctx, userID, op.ID); err != nil {
			return err
		}
		report.DeletedCount++
		return nil

	case "create/note":
		note, err := decodeNote(op.Data)
		if err != nil {
			return err
		}
		note.UserID = userID
		if err := e.store.CreateNote(ctx, note); err != nil {
			return err
		}
		report.CreatedCount++
		return nil

	case "update/note":
		if err := requireID(op); err != nil {
			return err
		}
		if _, err := e.store.UpdateNote(ctx, userID, op.ID, noteUpdateFrom(op.Changes)); err != nil {
			return err
		}
		report.UpdatedCount++
		return nil

	case "delete/note":
		if err := requireID(op); err != nil {
			return err
		}
		if err := e.store.DeleteNote(ctx, userID, op.ID); err != nil {
			return err
		}
		report.DeletedCount++
		return nil

	case "create/project":
		project, err := decodeProject(op.Data)
		if err != nil {
			return err
		}
		project.UserID = userID
		if err := e.store.CreateProject(ctx, project); err != nil {
			return err
		}
		report.CreatedCount++
		return nil

	case "update/project":
		if err := requireID(op); err != nil {
			return err
		}
		if _, err := e.store.UpdateProject(ctx, userID, op.ID, projectUpdateFrom(op.Changes)); err != nil {
			return err
		}
		report.UpdatedCount++
		return nil

	case "delete/project":
		if err := requireID(op); err != nil {
			return err
		}
		if err := e.store.DeleteProject(ctx, userID, op.ID); err != nil {
			return err
		}
		report.DeletedCount++
		return nil
	}
	return fmt.Errorf("unsupported operation %q on entity %q", op.Operation, op.Entity)
}

// updateTask applies a task update and, when the update completes a recurring
// task, materializes its next occurrence.
func (e *Executor) updateTask(ctx context.Context, userID string, op ProposedOperation, report *ExecutionReport) error {
	if err := requireID(op); err != nil {
		return err
	}
	update, err := taskUpdateFrom(op.Changes)
	if err != nil {
		return err
	}

	prior, err := e.store.GetTask(ctx, userID, op.ID)
	if err != nil {
		return err
	}

	// Materialize only on the open -> done transition. Re-confirming a task
	// that is already done must not spawn another occurrence.
	completing := update.Status != nil && *update.Status == "done" && prior.Status != "done"
	if completing {
		now := time.Now().UTC()
		update.CompletedAt = &now
	}

	task, err := e.store.UpdateTask(ctx, userID, op.ID, update)
	if err != nil {
		return err
	}
	report.UpdatedCount++

	if completing {
		if child, rerr := e.recurrence.OnComplete(ctx, &task); rerr != nil {
			logx.Errorf("task %s: materialize recurrence: %v", task.ID, rerr)
		} else if child != nil {
			report.CreatedCount++
		}
	}
	return nil
}

func requireID(op ProposedOperation) error {
	if op.ID == "" {
		return fmt.Errorf("%s %s requires an id", op.Operation, op.Entity)
	}
	return nil
}

// failureMessage keeps store internals out of the user-facing report
func failureMessage(err error) string {
	if errors.Is(err, sql.ErrNoRows) {
		return "not found"
	}
	return err.Error()
}

// decodeTask builds a Task from create/task payload data
func decodeTask(data json.RawMessage) (*db.Task, error) {
	title := gjson.GetBytes(data, "title").String()
	if title == "" {
		return nil, fmt.Errorf("create task requires a title")
	}
	task := &db.Task{
		Title:       title,
		Description: gjson.GetBytes(data, "description").String(),
		Status:      gjson.GetBytes(data, "status").String(),
		Priority:    gjson.GetBytes(data, "priority").String(),
		Domain:      gjson.GetBytes(data, "domain").String(),
		ProjectID:   gjson.GetBytes(data, "project_id").String(),
	}
	if due := gjson.GetBytes(data, "due_date").String(); due != "" {
		t, err := parseDate(due)
		if err != nil {
			return nil, fmt.Errorf("due_date: %w", err)
		}
		task.DueDate = &t
	}
	if rec := gjson.GetBytes(data, "recurrence"); rec.Exists() {
		task.IsRecurring = true
		task.RecurrenceFrequency = rec.Get("frequency").String()
		task.RecurrenceInterval = int(rec.Get("interval").Int())
		task.RecurrenceDayOfMonth = int(rec.Get("day_of_month").Int())
		task.RecurrenceDaysOfWeek = joinDays(rec.Get("days_of_week"))
		if until := rec.Get("end_date").String(); until != "" {
			t, err := parseDate(until)
			if err != nil {
				return nil, fmt.Errorf("recurrence end_date: %w", err)
			}
			task.RecurrenceEndDate = &t
		}
	}
	return task, nil
}

func taskUpdateFrom(changes json.RawMessage) (db.TaskUpdate, error) {
	var u db.TaskUpdate
	if v := gjson.GetBytes(changes, "title"); v.Exists() {
		s := v.String()
		u.Title = &s
	}
	if v := gjson.GetBytes(changes, "description"); v.Exists() {
		s := v.String()
		u.Description = &s
	}
	if v := gjson.GetBytes(changes, "status"); v.Exists() {
		s := v.String()
		u.Status = &s
	}
	if v := gjson.GetBytes(changes, "priority"); v.Exists() {
		s := v.String()
		u.Priority = &s
	}
	if v := gjson.GetBytes(changes, "domain"); v.Exists() {
		s := v.String()
		u.Domain = &s
	}
	if v := gjson.GetBytes(changes, "project_id"); v.Exists() {
		s := v.String()
		u.ProjectID = &s
	}
	if v := gjson.GetBytes(changes, "due_date"); v.Exists() {
		if v.String() == "" {
			u.ClearDueDate = true
		} else {
			t, err := parseDate(v.String())
			if err != nil {
				return u, fmt.Errorf("due_date: %w", err)
			}
			u.DueDate = &t
		}
	}
	return u, nil
}

// decodeNote builds a Note from create/note payload data
func decodeNote(data json.RawMessage) (*db.Note, error) {
	title := gjson.GetBytes(data, "title").String()
	if title == "" {
		return nil, fmt.Errorf("create note requires a title")
	}
	return &db.Note{
		Title:     title,
		Content:   gjson.GetBytes(data, "content").String(),
		ProjectID: gjson.GetBytes(data, "project_id").String(),
	}, nil
}

func noteUpdateFrom(changes json.RawMessage) db.NoteUpdate {
	var u db.NoteUpdate
	if v := gjson.GetBytes(changes, "title"); v.Exists() {
		s := v.String()
		u.Title = &s
	}
	if v := gjson.GetBytes(changes, "content"); v.Exists() {
		s := v.String()
		u.Content = &s
	}
	if v := gjson.GetBytes(changes, "project_id"); v.Exists() {
		s := v.String()
		u.ProjectID = &s
	}
	return u
}

// decodeProject builds a Project from create/project payload data
func decodeProject(data json.RawMessage) (*db.Project, error) {
	name := gjson.GetBytes(data, "name").String()
	if name == "" {
		name = gjson.GetBytes(data, "title").String()
	}
	if name == "" {
		return nil, fmt.Errorf("create project requires a name")
	}
	return &db.Project{
		Name:        name,
		Description: gjson.GetBytes(data, "description").String(),
		Color:       gjson.GetBytes(data, "color").String(),
	}, nil
}

func projectUpdateFrom(changes json.RawMessage) db.ProjectUpdate {
	var u db.ProjectUpdate
	if v := gjson.GetBytes(changes, "name"); v.Exists() {
		s := v.String()
		u.Name = &s
	}
	if v := gjson.GetBytes(changes, "description"); v.Exists() {
		s := v.String()
		u.Description = &s
	}
	if v := gjson.GetBytes(changes, "color"); v.Exists() {
		s := v.String()
		u.Color = &s
	}
	return u
}

// parseDate accepts ISO dates with or without a time component
func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, want YYYY-MM-DD", s)
	}
	return t.UTC(), nil
}

func joinDays(v gjson.Result) string {
	if !v.IsArray() {
		return ""
	}
	var parts []string
	for _, d := range v.Array() {
		parts = append(parts, d.String())
	}
	return strings.Join(parts, ",")
}

// ConfirmationText renders the durable assistant message written after a
// batch runs. The conversation keeps the aggregate result; the itemized
// report goes back to the client in the API response only.
func ConfirmationText(batch *ProposedBatch, report *ExecutionReport) string {
	var sb strings.Builder
	sb.WriteString("Done")
	if batch.Summary != "" {
		sb.WriteString(": ")
		sb.WriteString(batch.Summary)
	}
	sb.WriteString(".")

	var parts []string
	if report.CreatedCount > 0 {
		parts = append(parts, fmt.Sprintf("%d created", report.CreatedCount))
	}
	if report.UpdatedCount > 0 {
		parts = append(parts, fmt.Sprintf("%d updated", report.UpdatedCount))
	}
	if report.DeletedCount > 0 {
		parts = append(parts, fmt.Sprintf("%d deleted", report.DeletedCount))
	}
	if len(parts) > 0 {
		sb.WriteString(" " + strings.Join(parts, ", ") + ".")
	}
	if n := len(report.Failures); n > 0 {
		fmt.Fprintf(&sb, " %d operation(s) failed.", n)
	}
	return sb.String()
}
