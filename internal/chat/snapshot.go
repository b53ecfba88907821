package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/zeromicro/go-zero/core/logx"

	"github.com/andrewkylim/chatkin-chat-sub002/internal/db"
)

// Snapshot caps. The snapshot is deliberately bounded to keep prompt size
// flat as the workspace grows; full visibility comes from the query tools,
// not from inflating these numbers.
const (
	snapshotTodoLimit       = 10
	snapshotInProgressLimit = 5
	snapshotNoteLimit       = 15
)

// SnapshotBuilder assembles the bounded workspace digest injected into every
// model call.
type SnapshotBuilder struct {
	store *db.Store
}

// NewSnapshotBuilder creates a snapshot builder over the entity store
func NewSnapshotBuilder(store *db.Store) *SnapshotBuilder {
	return &SnapshotBuilder{store: store}
}

// Build returns a point-in-time textual digest of the user's workspace.
// Read errors degrade to a partial snapshot; a thinner context beats failing
// the whole turn.
func (b *SnapshotBuilder) Build(ctx context.Context, userID, scope, projectID string) string {
	var sb strings.Builder

	projectFilter := ""
	if scope == "project" {
		projectFilter = projectID
	}

	todo, err := b.store.ListTasks(ctx, userID, db.TaskFilter{
		Status: "todo", ProjectID: projectFilter, Limit: snapshotTodoLimit,
	})
	if err != nil {
		logx.Errorf("snapshot: list todo tasks: %v", err)
	}
	inProgress, err := b.store.ListTasks(ctx, userID, db.TaskFilter{
		Status: "in_progress", ProjectID: projectFilter, Limit: snapshotInProgressLimit,
	})
	if err != nil {
		logx.Errorf("snapshot: list in-progress tasks: %v", err)
	}

	if len(todo) > 0 || len(inProgress) > 0 {
		sb.WriteString("Open tasks:\n")
		for _, t := range inProgress {
			writeTaskLine(&sb, t, "in progress")
		}
		for _, t := range todo {
			writeTaskLine(&sb, t, "todo")
		}
	} else {
		sb.WriteString("No open tasks.\n")
	}

	doneCount, err := b.store.CountTasksByStatus(ctx, userID, "done")
	if err != nil {
		logx.Errorf("snapshot: count done tasks: %v", err)
	} else {
		fmt.Fprintf(&sb, "Completed tasks: %d (not listed)\n", doneCount)
	}

	notes, err := b.store.ListNotes(ctx, userID, projectFilter, snapshotNoteLimit, 0)
	if err != nil {
		logx.Errorf("snapshot: list notes: %v", err)
	}
	if len(notes) > 0 {
		sb.WriteString("Notes:\n")
		for _, n := range notes {
			fmt.Fprintf(&sb, "- [%s] %s\n", n.ID, n.Title)
		}
	}

	projects, err := b.store.GetProjects(ctx, userID)
	if err != nil {
		logx.Errorf("snapshot: list projects: %v", err)
	}
	if len(projects) > 0 {
		sb.WriteString("Projects:\n")
		for _, p := range projects {
			fmt.Fprintf(&sb, "- [%s] %s (%d tasks, %d done)\n",
				p.ID, p.Name, p.TaskCount, p.DoneCount)
		}
	}

	return sb.String()
}

func writeTaskLine(sb *strings.Builder, t db.Task, status string) {
	fmt.Fprintf(sb, "- [%s] %s (%s, %s priority", t.ID, t.Title, status, t.Priority)
	if t.DueDate != nil {
		fmt.Fprintf(sb, ", due %s", t.DueDate.Format("2006-01-02"))
	}
	sb.WriteString(")\n")
}
