package chat

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrewkylim/chatkin-chat-sub002/internal/db"
)

func TestSnapshotEmptyWorkspace(t *testing.T) {
	store := newTestStore(t)
	got := NewSnapshotBuilder(store).Build(context.Background(), "u1", "global", "")
	assert.Contains(t, got, "No open tasks.")
}

func TestSnapshotListsOpenWorkAndRollsUpDone(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateTask(ctx, &db.Task{UserID: "u1", Title: "Draft slides", Status: "in_progress"}))
	require.NoError(t, store.CreateTask(ctx, &db.Task{UserID: "u1", Title: "Send invites", Status: "todo"}))
	for i := 0; i < 4; i++ {
		require.NoError(t, store.CreateTask(ctx, &db.Task{
			UserID: "u1", Title: fmt.Sprintf("done %d", i), Status: "done",
		}))
	}
	require.NoError(t, store.CreateNote(ctx, &db.Note{UserID: "u1", Title: "Standup notes"}))
	require.NoError(t, store.CreateProject(ctx, &db.Project{UserID: "u1", Name: "Offsite"}))

	got := NewSnapshotBuilder(store).Build(ctx, "u1", "global", "")
	assert.Contains(t, got, "Draft slides")
	assert.Contains(t, got, "Send invites")
	assert.Contains(t, got, "Completed tasks: 4 (not listed)")
	assert.Contains(t, got, "Standup notes")
	assert.Contains(t, got, "Offsite")
	assert.NotContains(t, got, "done 0", "completed tasks appear only as a count")
}

func TestSnapshotBounded(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < snapshotTodoLimit+20; i++ {
		require.NoError(t, store.CreateTask(ctx, &db.Task{
			UserID: "u1", Title: fmt.Sprintf("todo %d", i),
		}))
	}

	got := NewSnapshotBuilder(store).Build(ctx, "u1", "global", "")
	listed := strings.Count(got, "- [")
	assert.Equal(t, snapshotTodoLimit, listed, "todo list capped")
}

func TestSnapshotProjectScopeFilters(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	project := &db.Project{UserID: "u1", Name: "Focused"}
	require.NoError(t, store.CreateProject(ctx, project))
	require.NoError(t, store.CreateTask(ctx, &db.Task{UserID: "u1", Title: "inside", ProjectID: project.ID}))
	require.NoError(t, store.CreateTask(ctx, &db.Task{UserID: "u1", Title: "outside"}))

	got := NewSnapshotBuilder(store).Build(ctx, "u1", "project", project.ID)
	assert.Contains(t, got, "inside")
	assert.NotContains(t, got, "outside")
}

func TestSnapshotNeverFails(t *testing.T) {
	store := newTestStore(t)
	store.Close() // every query now errors

	got := NewSnapshotBuilder(store).Build(context.Background(), "u1", "global", "")
	assert.NotNil(t, got, "degrades instead of failing the turn")
}
