package recurrence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	"github.com/andrewkylim/chatkin-chat-sub002/internal/db"
)

// Frequency values a recurring task can carry
const (
	FreqDaily   = "daily"
	FreqWeekly  = "weekly"
	FreqMonthly = "monthly"
	FreqYearly  = "yearly"
)

// Pattern describes how a recurring task repeats. Interval is in units of the
// frequency (every N days/weeks/months/years); DaysOfWeek restricts weekly
// patterns to specific weekdays (0=Sunday..6=Saturday); DayOfMonth pins
// monthly patterns to a day, clamped in shorter months; EndDate, when set,
// closes the series.
type Pattern struct {
	Frequency  string
	Interval   int
	DaysOfWeek []int
	DayOfMonth int
	EndDate    *time.Time
}

// FromTask extracts the recurrence pattern off a task, or nil when the task
// does not recur.
func FromTask(t *db.Task) *Pattern {
	if !t.IsRecurring || t.RecurrenceFrequency == "" {
		return nil
	}
	p := &Pattern{
		Frequency:  t.RecurrenceFrequency,
		Interval:   t.RecurrenceInterval,
		DaysOfWeek: parseDaysOfWeek(t.RecurrenceDaysOfWeek),
		DayOfMonth: t.RecurrenceDayOfMonth,
		EndDate:    t.RecurrenceEndDate,
	}
	if p.Interval <= 0 {
		p.Interval = 1
	}
	return p
}

// parseDaysOfWeek decodes the comma-separated weekday column ("1,3,5").
// Malformed entries are dropped rather than failing the pattern.
func parseDaysOfWeek(s string) []int {
	if s == "" {
		return nil
	}
	var days []int
	for _, part := range strings.Split(s, ",") {
		d, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || d < 0 || d > 6 {
			continue
		}
		days = append(days, d)
	}
	return days
}

// NextOccurrence returns the due date following from, or false when the
// series has ended (EndDate passed) or the pattern is invalid.
//
// Monthly and yearly steps clamp the day of month: a task due Jan 31
// recurring monthly lands on Feb 28 (or 29), not Mar 3.
func (p *Pattern) NextOccurrence(from time.Time) (time.Time, bool) {
	interval := p.Interval
	if interval <= 0 {
		interval = 1
	}

	var next time.Time
	switch p.Frequency {
	case FreqDaily:
		next = from.AddDate(0, 0, interval)
	case FreqWeekly:
		if len(p.DaysOfWeek) > 0 {
			next = p.nextWeekday(from, interval)
		} else {
			next = from.AddDate(0, 0, 7*interval)
		}
	case FreqMonthly:
		next = addMonthsClamped(from, interval, p.DayOfMonth)
	case FreqYearly:
		next = addMonthsClamped(from, 12*interval, p.DayOfMonth)
	default:
		return time.Time{}, false
	}

	if p.EndDate != nil && next.After(*p.EndDate) {
		return time.Time{}, false
	}
	return next, true
}

// nextWeekday finds the next allowed weekday strictly after from. When the
// rest of the current week has no allowed day, it jumps interval weeks ahead
// to the earliest allowed day.
func (p *Pattern) nextWeekday(from time.Time, interval int) time.Time {
	allowed := make(map[int]bool, len(p.DaysOfWeek))
	for _, d := range p.DaysOfWeek {
		allowed[d] = true
	}

	for i := 1; i <= 6-int(from.Weekday()); i++ {
		if allowed[int(from.Weekday())+i] {
			return from.AddDate(0, 0, i)
		}
	}

	first := 0
	for d := 0; d < 7; d++ {
		if allowed[d] {
			first = d
			break
		}
	}
	weekStart := from.AddDate(0, 0, -int(from.Weekday()))
	return weekStart.AddDate(0, 0, 7*interval+first)
}

// addMonthsClamped advances by whole months keeping the target day of month
// where possible and clamping to the last day of shorter months. A plain
// time.AddDate normalizes overflow forward (Jan 31 + 1 month = Mar 3), which
// is wrong for scheduling.
func addMonthsClamped(t time.Time, months, dayOfMonth int) time.Time {
	day := dayOfMonth
	if day <= 0 {
		day = t.Day()
	}
	year, month, _ := t.Date()
	first := time.Date(year, month, 1, t.Hour(), t.Minute(), t.Second(), 0, t.Location())
	shifted := first.AddDate(0, months, 0)

	if last := daysInMonth(shifted.Year(), shifted.Month()); day > last {
		day = last
	}
	return time.Date(shifted.Year(), shifted.Month(), day,
		t.Hour(), t.Minute(), t.Second(), 0, t.Location())
}

func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// Materializer creates the next instance of a recurring task when the
// current one completes.
type Materializer struct {
	store *db.Store
}

// NewMaterializer creates a recurrence materializer over the entity store
func NewMaterializer(store *db.Store) *Materializer {
	return &Materializer{store: store}
}

// OnComplete spawns the next occurrence when a task in a recurring series is
// marked done. The completed task is either the recurring root itself or one
// of its instances; either way the new instance hangs off the root, keeping
// the tree at depth one. Instances never carry the pattern themselves. The
// next due date steps from the completed task's due date. Non-recurring tasks
// and closed series are no-ops.
func (m *Materializer) OnComplete(ctx context.Context, completed *db.Task) (*db.Task, error) {
	root, err := m.seriesRoot(ctx, completed)
	if err != nil || root == nil {
		return nil, err
	}
	pattern := FromTask(root)
	if pattern == nil {
		return nil, nil
	}

	// An open instance means this completion was already materialized.
	// Repeated done-marks must not stack up duplicate occurrences.
	children, err := m.store.ListTasks(ctx, root.UserID, db.TaskFilter{ParentTaskID: root.ID})
	if err != nil {
		return nil, err
	}
	for i := range children {
		if children[i].Status != "done" {
			return nil, nil
		}
	}

	from := time.Now().UTC()
	if completed.DueDate != nil {
		from = *completed.DueDate
	}
	next, ok := pattern.NextOccurrence(from)
	if !ok {
		logx.Infof("recurring task %s reached end of series", root.ID)
		return nil, nil
	}

	child := &db.Task{
		UserID:       root.UserID,
		Title:        root.Title,
		Description:  root.Description,
		Status:       "todo",
		Priority:     root.Priority,
		Domain:       root.Domain,
		ProjectID:    root.ProjectID,
		DueDate:      &next,
		ParentTaskID: root.ID,
	}
	if err := m.store.CreateTask(ctx, child); err != nil {
		return nil, fmt.Errorf("materialize next occurrence of %s: %w", root.ID, err)
	}
	return child, nil
}

// seriesRoot resolves the recurring root for a completed task, or nil when
// the task belongs to no live series.
func (m *Materializer) seriesRoot(ctx context.Context, completed *db.Task) (*db.Task, error) {
	if completed.IsRecurring {
		return completed, nil
	}
	if completed.ParentTaskID == "" {
		return nil, nil
	}
	root, err := m.store.GetTask(ctx, completed.UserID, completed.ParentTaskID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if !root.IsRecurring {
		return nil, nil
	}
	return &root, nil
}
