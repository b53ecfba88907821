package recurrence

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrewkylim/chatkin-chat-sub002/internal/db"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestNextOccurrenceDaily(t *testing.T) {
	p := &Pattern{Frequency: FreqDaily, Interval: 1}
	next, ok := p.NextOccurrence(date(2026, 3, 10))
	require.True(t, ok)
	assert.Equal(t, date(2026, 3, 11), next)

	p.Interval = 3
	next, ok = p.NextOccurrence(date(2026, 3, 10))
	require.True(t, ok)
	assert.Equal(t, date(2026, 3, 13), next)
}

func TestNextOccurrenceWeekly(t *testing.T) {
	p := &Pattern{Frequency: FreqWeekly, Interval: 1}
	next, ok := p.NextOccurrence(date(2026, 3, 10))
	require.True(t, ok)
	assert.Equal(t, date(2026, 3, 17), next)
}

func TestNextOccurrenceWeeklyDaysOfWeek(t *testing.T) {
	// Mon/Wed/Fri pattern; 2026-03-10 is a Tuesday
	p := &Pattern{Frequency: FreqWeekly, Interval: 1, DaysOfWeek: []int{1, 3, 5}}

	next, ok := p.NextOccurrence(date(2026, 3, 10))
	require.True(t, ok)
	assert.Equal(t, date(2026, 3, 11), next, "Tuesday rolls to Wednesday")
	assert.Equal(t, time.Wednesday, next.Weekday())

	// From Friday the rest of the week is empty, jump to next week's Monday
	next, ok = p.NextOccurrence(date(2026, 3, 13))
	require.True(t, ok)
	assert.Equal(t, date(2026, 3, 16), next)
	assert.Equal(t, time.Monday, next.Weekday())
}

func TestNextOccurrenceMonthlyClamps(t *testing.T) {
	p := &Pattern{Frequency: FreqMonthly, Interval: 1}

	// Jan 31 lands on the last day of February, not March 3
	next, ok := p.NextOccurrence(date(2026, 1, 31))
	require.True(t, ok)
	assert.Equal(t, date(2026, 2, 28), next)

	// Leap year gets the 29th
	next, ok = p.NextOccurrence(date(2028, 1, 31))
	require.True(t, ok)
	assert.Equal(t, date(2028, 2, 29), next)
}

func TestNextOccurrenceMonthlyDayOfMonthRecovers(t *testing.T) {
	// A day-31 pattern stepping off a clamped Feb 28 goes back to Mar 31
	p := &Pattern{Frequency: FreqMonthly, Interval: 1, DayOfMonth: 31}
	next, ok := p.NextOccurrence(date(2026, 2, 28))
	require.True(t, ok)
	assert.Equal(t, date(2026, 3, 31), next)
}

func TestNextOccurrenceYearly(t *testing.T) {
	p := &Pattern{Frequency: FreqYearly, Interval: 1}
	next, ok := p.NextOccurrence(date(2026, 7, 4))
	require.True(t, ok)
	assert.Equal(t, date(2027, 7, 4), next)

	// Feb 29 in a leap year clamps to Feb 28 the next year
	next, ok = p.NextOccurrence(date(2028, 2, 29))
	require.True(t, ok)
	assert.Equal(t, date(2029, 2, 28), next)
}

func TestNextOccurrenceEndDate(t *testing.T) {
	end := date(2026, 3, 12)
	p := &Pattern{Frequency: FreqDaily, Interval: 1, EndDate: &end}

	next, ok := p.NextOccurrence(date(2026, 3, 11))
	require.True(t, ok)
	assert.Equal(t, date(2026, 3, 12), next)

	_, ok = p.NextOccurrence(date(2026, 3, 12))
	assert.False(t, ok, "series closed once the next date passes the end")
}

func TestNextOccurrenceUnknownFrequency(t *testing.T) {
	p := &Pattern{Frequency: "fortnightly"}
	_, ok := p.NextOccurrence(date(2026, 3, 10))
	assert.False(t, ok)
}

func TestFromTask(t *testing.T) {
	assert.Nil(t, FromTask(&db.Task{Title: "plain"}))

	task := &db.Task{
		IsRecurring:          true,
		RecurrenceFrequency:  FreqWeekly,
		RecurrenceDaysOfWeek: "1, 3,5,bogus,9",
	}
	p := FromTask(task)
	require.NotNil(t, p)
	assert.Equal(t, 1, p.Interval, "zero interval defaults to 1")
	assert.Equal(t, []int{1, 3, 5}, p.DaysOfWeek, "malformed entries dropped")
}

func TestOnCompleteSpawnsNextInstance(t *testing.T) {
	store, err := db.NewMemory()
	require.NoError(t, err)
	defer store.Close()
	ctx := context.Background()

	due := date(2026, 1, 31)
	parent := &db.Task{
		UserID:              "u1",
		Title:               "Pay rent",
		Priority:            "high",
		Status:              "done",
		DueDate:             &due,
		IsRecurring:         true,
		RecurrenceFrequency: FreqMonthly,
		RecurrenceInterval:  1,
	}
	require.NoError(t, store.CreateTask(ctx, parent))

	child, err := NewMaterializer(store).OnComplete(ctx, parent)
	require.NoError(t, err)
	require.NotNil(t, child)

	assert.Equal(t, "Pay rent", child.Title)
	assert.Equal(t, "todo", child.Status)
	assert.Equal(t, "high", child.Priority)
	assert.Equal(t, parent.ID, child.ParentTaskID)
	require.NotNil(t, child.DueDate)
	assert.Equal(t, date(2026, 2, 28), *child.DueDate)
	assert.False(t, child.IsRecurring, "instances are never recurring roots")

	// And it is actually persisted
	got, err := store.GetTask(ctx, "u1", child.ID)
	require.NoError(t, err)
	assert.Equal(t, parent.ID, got.ParentTaskID)
}

func TestOnCompleteInstanceContinuesSeries(t *testing.T) {
	store, err := db.NewMemory()
	require.NoError(t, err)
	defer store.Close()
	ctx := context.Background()

	rootDue := date(2026, 3, 2)
	root := &db.Task{
		UserID:              "u1",
		Title:               "Water plants",
		DueDate:             &rootDue,
		IsRecurring:         true,
		RecurrenceFrequency: FreqWeekly,
		RecurrenceInterval:  1,
	}
	require.NoError(t, store.CreateTask(ctx, root))

	m := NewMaterializer(store)
	first, err := m.OnComplete(ctx, root)
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, date(2026, 3, 9), *first.DueDate)

	// Completing the instance spawns the next one off the same root
	done := "done"
	firstDone, err := store.UpdateTask(ctx, "u1", first.ID, db.TaskUpdate{Status: &done})
	require.NoError(t, err)
	second, err := m.OnComplete(ctx, &firstDone)
	require.NoError(t, err)
	require.NotNil(t, second)
	assert.Equal(t, root.ID, second.ParentTaskID, "tree stays at depth one")
	assert.Equal(t, date(2026, 3, 16), *second.DueDate)
}

func TestOnCompleteRepeatedDoesNotDuplicate(t *testing.T) {
	store, err := db.NewMemory()
	require.NoError(t, err)
	defer store.Close()
	ctx := context.Background()

	due := date(2026, 1, 10)
	task := &db.Task{
		UserID:              "u1",
		Title:               "Daily standup",
		Status:              "done",
		DueDate:             &due,
		IsRecurring:         true,
		RecurrenceFrequency: FreqDaily,
		RecurrenceInterval:  1,
	}
	require.NoError(t, store.CreateTask(ctx, task))

	m := NewMaterializer(store)
	first, err := m.OnComplete(ctx, task)
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, date(2026, 1, 11), *first.DueDate)

	// A second done-mark while the instance is still open is a no-op
	again, err := m.OnComplete(ctx, task)
	require.NoError(t, err)
	assert.Nil(t, again)

	children, err := store.ListTasks(ctx, "u1", db.TaskFilter{ParentTaskID: task.ID})
	require.NoError(t, err)
	require.Len(t, children, 1)
}

func TestOnCompleteNonRecurring(t *testing.T) {
	store, err := db.NewMemory()
	require.NoError(t, err)
	defer store.Close()

	child, err := NewMaterializer(store).OnComplete(context.Background(), &db.Task{Title: "one-off"})
	require.NoError(t, err)
	assert.Nil(t, child)
}
