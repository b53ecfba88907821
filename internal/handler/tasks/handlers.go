package tasks

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	"github.com/andrewkylim/chatkin-chat-sub002/internal/db"
	"github.com/andrewkylim/chatkin-chat-sub002/internal/httputil"
	"github.com/andrewkylim/chatkin-chat-sub002/internal/middleware"
	"github.com/andrewkylim/chatkin-chat-sub002/internal/svc"
	"github.com/andrewkylim/chatkin-chat-sub002/internal/types"
)

// ListTasksHandler returns the user's tasks, optionally filtered
func ListTasksHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.UserID(r.Context())
		if !ok {
			httputil.Unauthorized(w, "")
			return
		}

		var req types.ListTasksRequest
		if err := httputil.Parse(r, &req); err != nil {
			httputil.Error(w, err)
			return
		}
		if req.Limit <= 0 || req.Limit > 200 {
			req.Limit = 100
		}

		tasks, err := svcCtx.Store.ListTasks(r.Context(), userID, db.TaskFilter{
			Status:    req.Status,
			ProjectID: req.ProjectId,
			Limit:     req.Limit,
			Offset:    req.Offset,
		})
		if err != nil {
			logx.Errorf("list tasks: %v", err)
			httputil.InternalError(w, "failed to list tasks")
			return
		}
		if tasks == nil {
			tasks = []db.Task{}
		}
		httputil.OkJSON(w, tasks)
	}
}

// GetTaskHandler returns one task by id
func GetTaskHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.UserID(r.Context())
		if !ok {
			httputil.Unauthorized(w, "")
			return
		}

		task, err := svcCtx.Store.GetTask(r.Context(), userID, httputil.PathVar(r, "id"))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				httputil.NotFound(w, "task not found")
				return
			}
			logx.Errorf("get task: %v", err)
			httputil.InternalError(w, "failed to get task")
			return
		}
		httputil.OkJSON(w, task)
	}
}

// CreateTaskHandler creates a task, optionally with a recurrence pattern
func CreateTaskHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.UserID(r.Context())
		if !ok {
			httputil.Unauthorized(w, "")
			return
		}

		var req types.CreateTaskRequest
		if err := httputil.Parse(r, &req); err != nil {
			httputil.Error(w, err)
			return
		}
		if strings.TrimSpace(req.Title) == "" {
			httputil.BadRequest(w, "title is required")
			return
		}

		task := db.Task{
			UserID:      userID,
			Title:       req.Title,
			Description: req.Description,
			Status:      req.Status,
			Priority:    req.Priority,
			Domain:      req.Domain,
			ProjectID:   req.ProjectId,
		}
		if req.DueDate != "" {
			due, err := parseDate(req.DueDate)
			if err != nil {
				httputil.BadRequest(w, "invalid due_date, want YYYY-MM-DD")
				return
			}
			task.DueDate = &due
		}
		if rec := req.Recurrence; rec != nil {
			task.IsRecurring = true
			task.RecurrenceFrequency = rec.Frequency
			task.RecurrenceInterval = rec.Interval
			task.RecurrenceDayOfMonth = rec.DayOfMonth
			task.RecurrenceDaysOfWeek = joinDays(rec.DaysOfWeek)
			if rec.EndDate != "" {
				end, err := parseDate(rec.EndDate)
				if err != nil {
					httputil.BadRequest(w, "invalid recurrence end_date, want YYYY-MM-DD")
					return
				}
				task.RecurrenceEndDate = &end
			}
		}

		if err := svcCtx.Store.CreateTask(r.Context(), &task); err != nil {
			logx.Errorf("create task: %v", err)
			httputil.InternalError(w, "failed to create task")
			return
		}
		httputil.WriteJSON(w, http.StatusCreated, task)
	}
}

// UpdateTaskHandler applies a partial update to a task
func UpdateTaskHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.UserID(r.Context())
		if !ok {
			httputil.Unauthorized(w, "")
			return
		}

		var req types.UpdateTaskRequest
		if err := httputil.Parse(r, &req); err != nil {
			httputil.Error(w, err)
			return
		}

		update := db.TaskUpdate{
			Title:       req.Title,
			Description: req.Description,
			Status:      req.Status,
			Priority:    req.Priority,
			Domain:      req.Domain,
			ProjectID:   req.ProjectId,
		}
		if req.DueDate != nil {
			if *req.DueDate == "" {
				update.ClearDueDate = true
			} else {
				due, err := parseDate(*req.DueDate)
				if err != nil {
					httputil.BadRequest(w, "invalid due_date, want YYYY-MM-DD")
					return
				}
				update.DueDate = &due
			}
		}

		prior, err := svcCtx.Store.GetTask(r.Context(), userID, req.Id)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				httputil.NotFound(w, "task not found")
				return
			}
			logx.Errorf("get task: %v", err)
			httputil.InternalError(w, "failed to update task")
			return
		}

		// Only the open -> done transition counts as completing; a repeated
		// done-mark must not spawn another occurrence of a recurring task.
		completing := req.Status != nil && *req.Status == "done" && prior.Status != "done"
		if completing {
			now := time.Now().UTC()
			update.CompletedAt = &now
		}

		task, err := svcCtx.Store.UpdateTask(r.Context(), userID, req.Id, update)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				httputil.NotFound(w, "task not found")
				return
			}
			logx.Errorf("update task: %v", err)
			httputil.InternalError(w, "failed to update task")
			return
		}

		// Completing a recurring task spawns its next occurrence
		if completing {
			if _, err := svcCtx.Recurrence.OnComplete(r.Context(), &task); err != nil {
				logx.Errorf("task %s: materialize recurrence: %v", task.ID, err)
			}
		}

		httputil.OkJSON(w, task)
	}
}

// DeleteTaskHandler removes a task
func DeleteTaskHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.UserID(r.Context())
		if !ok {
			httputil.Unauthorized(w, "")
			return
		}

		if err := svcCtx.Store.DeleteTask(r.Context(), userID, httputil.PathVar(r, "id")); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				httputil.NotFound(w, "task not found")
				return
			}
			logx.Errorf("delete task: %v", err)
			httputil.InternalError(w, "failed to delete task")
			return
		}
		httputil.OkJSON(w, map[string]bool{"deleted": true})
	}
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	return time.Parse("2006-01-02", s)
}

func joinDays(days []int) string {
	parts := make([]string, len(days))
	for i, d := range days {
		parts[i] = strconv.Itoa(d)
	}
	return strings.Join(parts, ",")
}
