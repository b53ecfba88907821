package db

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewMemory()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestTaskCRUD(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	task := &Task{UserID: "u1", Title: "Write report"}
	require.NoError(t, store.CreateTask(ctx, task))
	require.NotEmpty(t, task.ID)
	assert.Equal(t, "todo", task.Status)
	assert.Equal(t, "medium", task.Priority)

	got, err := store.GetTask(ctx, "u1", task.ID)
	require.NoError(t, err)
	assert.Equal(t, "Write report", got.Title)

	// Other users cannot see it
	_, err = store.GetTask(ctx, "u2", task.ID)
	assert.ErrorIs(t, err, sql.ErrNoRows)

	status := "in_progress"
	updated, err := store.UpdateTask(ctx, "u1", task.ID, TaskUpdate{Status: &status})
	require.NoError(t, err)
	assert.Equal(t, "in_progress", updated.Status)

	require.NoError(t, store.DeleteTask(ctx, "u1", task.ID))
	assert.ErrorIs(t, store.DeleteTask(ctx, "u1", task.ID), sql.ErrNoRows)
}

func TestUpdateTaskUnknownID(t *testing.T) {
	store := newTestStore(t)

	title := "x"
	_, err := store.UpdateTask(context.Background(), "u1", "nope", TaskUpdate{Title: &title})
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestListTasksFilters(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	project := &Project{UserID: "u1", Name: "Launch"}
	require.NoError(t, store.CreateProject(ctx, project))

	require.NoError(t, store.CreateTask(ctx, &Task{UserID: "u1", Title: "a", Status: "todo"}))
	require.NoError(t, store.CreateTask(ctx, &Task{UserID: "u1", Title: "b", Status: "done"}))
	require.NoError(t, store.CreateTask(ctx, &Task{UserID: "u1", Title: "c", Status: "todo", ProjectID: project.ID}))
	require.NoError(t, store.CreateTask(ctx, &Task{UserID: "u2", Title: "other user"}))

	todo, err := store.ListTasks(ctx, "u1", TaskFilter{Status: "todo"})
	require.NoError(t, err)
	assert.Len(t, todo, 2)

	inProject, err := store.ListTasks(ctx, "u1", TaskFilter{ProjectID: project.ID})
	require.NoError(t, err)
	require.Len(t, inProject, 1)
	assert.Equal(t, "c", inProject[0].Title)

	n, err := store.CountTasksByStatus(ctx, "u1", "done")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestDueDateClear(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	due := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	task := &Task{UserID: "u1", Title: "with due", DueDate: &due}
	require.NoError(t, store.CreateTask(ctx, task))

	got, err := store.GetTask(ctx, "u1", task.ID)
	require.NoError(t, err)
	require.NotNil(t, got.DueDate)
	assert.True(t, got.DueDate.Equal(due))

	updated, err := store.UpdateTask(ctx, "u1", task.ID, TaskUpdate{ClearDueDate: true})
	require.NoError(t, err)
	assert.Nil(t, updated.DueDate)
}

func TestProjectStatsRollup(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	project := &Project{UserID: "u1", Name: "Q2 plan"}
	require.NoError(t, store.CreateProject(ctx, project))
	require.NoError(t, store.CreateTask(ctx, &Task{UserID: "u1", Title: "a", ProjectID: project.ID}))
	require.NoError(t, store.CreateTask(ctx, &Task{UserID: "u1", Title: "b", ProjectID: project.ID, Status: "done"}))

	stats, err := store.GetProjects(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.EqualValues(t, 2, stats[0].TaskCount)
	assert.EqualValues(t, 1, stats[0].DoneCount)
}

func TestDeleteProjectDetachesTasks(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	project := &Project{UserID: "u1", Name: "Temp"}
	require.NoError(t, store.CreateProject(ctx, project))
	task := &Task{UserID: "u1", Title: "survives", ProjectID: project.ID}
	require.NoError(t, store.CreateTask(ctx, task))

	require.NoError(t, store.DeleteProject(ctx, "u1", project.ID))

	got, err := store.GetTask(ctx, "u1", task.ID)
	require.NoError(t, err)
	assert.Empty(t, got.ProjectID)
}

func TestConversationUniquePerScope(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	a, err := store.GetOrCreateConversation(ctx, "u1", "global", "")
	require.NoError(t, err)
	b, err := store.GetOrCreateConversation(ctx, "u1", "global", "")
	require.NoError(t, err)
	assert.Equal(t, a.ID, b.ID)

	c, err := store.GetOrCreateConversation(ctx, "u1", "tasks", "")
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, c.ID)

	p1, err := store.GetOrCreateConversation(ctx, "u1", "project", "proj-1")
	require.NoError(t, err)
	p2, err := store.GetOrCreateConversation(ctx, "u1", "project", "proj-2")
	require.NoError(t, err)
	assert.NotEqual(t, p1.ID, p2.ID)
}

func TestMessageCounterInvariant(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	conv, err := store.GetOrCreateConversation(ctx, "u1", "global", "")
	require.NoError(t, err)

	for i := 0; i < 7; i++ {
		role := "user"
		if i%2 == 1 {
			role = "assistant"
		}
		_, err := store.AppendConversationMessage(ctx, conv.ID, role, "msg", "")
		require.NoError(t, err)
	}

	fresh, err := store.GetConversationByID(ctx, conv.ID)
	require.NoError(t, err)
	rows, err := store.CountConversationMessages(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, rows, fresh.MessageCount, "message_count must match live rows")
	assert.EqualValues(t, 7, fresh.MessageCount)
}

func TestRecentMessagesOrder(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	conv, err := store.GetOrCreateConversation(ctx, "u1", "global", "")
	require.NoError(t, err)
	for _, content := range []string{"one", "two", "three", "four"} {
		_, err := store.AppendConversationMessage(ctx, conv.ID, "user", content, "")
		require.NoError(t, err)
	}

	msgs, err := store.RecentMessages(ctx, conv.ID, 2)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "three", msgs[0].Content)
	assert.Equal(t, "four", msgs[1].Content)

	span, err := store.MessagesAfter(ctx, conv.ID, 1, 2)
	require.NoError(t, err)
	require.Len(t, span, 2)
	assert.Equal(t, "two", span[0].Content)
	assert.Equal(t, "three", span[1].Content)
}

func TestDeleteConversationCascades(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	conv, err := store.GetOrCreateConversation(ctx, "u1", "global", "")
	require.NoError(t, err)
	_, err = store.AppendConversationMessage(ctx, conv.ID, "user", "hello", "")
	require.NoError(t, err)

	require.NoError(t, store.DeleteConversation(ctx, "u1", conv.ID))

	rows, err := store.CountConversationMessages(ctx, conv.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 0, rows)
}

func TestClaimBatchOnce(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.ClaimBatch(ctx, "toolu_1", "conv", "u1", "delete everything"))
	assert.ErrorIs(t, store.ClaimBatch(ctx, "toolu_1", "conv", "u1", "delete everything"), ErrBatchExecuted)

	require.NoError(t, store.SetBatchReport(ctx, "toolu_1", `{"deleted_count":3}`))
	got, err := store.GetExecutedBatch(ctx, "toolu_1")
	require.NoError(t, err)
	assert.Equal(t, `{"deleted_count":3}`, got.Report)
}
