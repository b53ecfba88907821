package tasks

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrewkylim/chatkin-chat-sub002/internal/db"
	"github.com/andrewkylim/chatkin-chat-sub002/internal/middleware"
	"github.com/andrewkylim/chatkin-chat-sub002/internal/recurrence"
	"github.com/andrewkylim/chatkin-chat-sub002/internal/svc"
)

func newTestRouter(t *testing.T) (chi.Router, *db.Store) {
	t.Helper()
	store, err := db.NewMemory()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	svcCtx := &svc.ServiceContext{
		Store:      store,
		Recurrence: recurrence.NewMaterializer(store),
	}

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(middleware.WithUserID(req.Context(), "u1")))
		})
	})
	r.Get("/tasks", ListTasksHandler(svcCtx))
	r.Post("/tasks", CreateTaskHandler(svcCtx))
	r.Get("/tasks/{id}", GetTaskHandler(svcCtx))
	r.Patch("/tasks/{id}", UpdateTaskHandler(svcCtx))
	r.Delete("/tasks/{id}", DeleteTaskHandler(svcCtx))
	return r, store
}

func doJSON(t *testing.T, r chi.Router, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestCreateAndGetTask(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := doJSON(t, r, "POST", "/tasks", map[string]any{
		"title":    "Ship the release",
		"priority": "high",
		"due_date": "2026-04-01",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created db.Task
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "high", created.Priority)
	require.NotNil(t, created.DueDate)

	rec = doJSON(t, r, "GET", "/tasks/"+created.ID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCreateTaskValidation(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := doJSON(t, r, "POST", "/tasks", map[string]any{"title": "   "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, r, "POST", "/tasks", map[string]any{"title": "x", "due_date": "soon"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateTaskNotFound(t *testing.T) {
	r, _ := newTestRouter(t)
	rec := doJSON(t, r, "PATCH", "/tasks/ghost", map[string]any{"title": "renamed"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCompleteRecurringTaskOverREST(t *testing.T) {
	r, store := newTestRouter(t)

	rec := doJSON(t, r, "POST", "/tasks", map[string]any{
		"title":    "Water plants",
		"due_date": "2026-03-02",
		"recurrence": map[string]any{
			"frequency": "weekly",
			"interval":  1,
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created db.Task
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = doJSON(t, r, "PATCH", "/tasks/"+created.ID, map[string]any{"status": "done"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	children, err := store.ListTasks(context.Background(), "u1",
		db.TaskFilter{ParentTaskID: created.ID})
	require.NoError(t, err)
	require.Len(t, children, 1, "completion spawned the next occurrence")
	assert.Equal(t, "todo", children[0].Status)
}

func TestRecompleteRecurringTaskOverRESTDoesNotDuplicate(t *testing.T) {
	r, store := newTestRouter(t)

	rec := doJSON(t, r, "POST", "/tasks", map[string]any{
		"title":    "Water plants",
		"due_date": "2026-03-02",
		"recurrence": map[string]any{
			"frequency": "weekly",
			"interval":  1,
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created db.Task
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	for i := 0; i < 2; i++ {
		rec = doJSON(t, r, "PATCH", "/tasks/"+created.ID, map[string]any{"status": "done"})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}

	children, err := store.ListTasks(context.Background(), "u1",
		db.TaskFilter{ParentTaskID: created.ID})
	require.NoError(t, err)
	require.Len(t, children, 1, "a repeated done-mark does not spawn another occurrence")
}

func TestDeleteTask(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := doJSON(t, r, "POST", "/tasks", map[string]any{"title": "short lived"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var created db.Task
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = doJSON(t, r, "DELETE", "/tasks/"+created.ID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, r, "DELETE", "/tasks/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListTasksFilterByStatus(t *testing.T) {
	r, _ := newTestRouter(t)

	for _, title := range []string{"a", "b"} {
		rec := doJSON(t, r, "POST", "/tasks", map[string]any{"title": title})
		require.Equal(t, http.StatusCreated, rec.Code)
	}
	rec := doJSON(t, r, "POST", "/tasks", map[string]any{"title": "c", "status": "done"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, r, "GET", "/tasks?status=todo", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var tasks []db.Task
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tasks))
	assert.Len(t, tasks, 2)
}
