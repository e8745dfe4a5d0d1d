package model

import (
	"slices"
	"time"

	"github.com/secmon-lab/companion/pkg/domain/types"
)

// DateLayout is the wire layout of calendar dates (YYYY-MM-DD)
const DateLayout = "2006-01-02"

// TimeLayout is the wire layout of times of day (HH:MM)
const TimeLayout = "15:04"

// Task is a to-do entry of the task list
type Task struct {
	ID        string
	Title     string
	Priority  types.Priority
	Category  string
	DueDate   string // YYYY-MM-DD, empty when the task has no due date
	Completed bool
	Recurring bool
}

// IsOverdue reports whether the task is incomplete, non-recurring and due before today
func (t *Task) IsOverdue(today string) bool {
	if t.Completed || t.Recurring || t.DueDate == "" {
		return false
	}
	return t.DueDate < today
}

// Habit is a repeated activity tracked by the habit tracker
type Habit struct {
	ID          string
	Name        string
	Cadence     types.Cadence
	CompletedOn []string // YYYY-MM-DD
}

// DoneOn reports whether a completion was logged on the given day
func (h *Habit) DoneOn(day string) bool {
	return slices.Contains(h.CompletedOn, day)
}

// Appointment is a calendar entry
type Appointment struct {
	ID          string
	Title       string
	Date        string // YYYY-MM-DD
	Time        string // HH:MM, empty for all-day entries
	Description string
}

// StartsAt returns the start time in loc. All-day or malformed entries return false.
func (a *Appointment) StartsAt(loc *time.Location) (time.Time, bool) {
	if a.Time == "" {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation(DateLayout+" "+TimeLayout, a.Date+" "+a.Time, loc)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// CategoryXP is the experience ledger entry of one category
type CategoryXP struct {
	Name    string
	Level   int
	TotalXP int
}

// XPSnapshot is a read-only view of the XP ledger
type XPSnapshot struct {
	Categories    []CategoryXP
	GlobalLevel   int
	GlobalTotalXP int
}

// DomainSnapshot is a read-only point-in-time view of the life-management domain
type DomainSnapshot struct {
	Tasks        []*Task
	Habits       []*Habit
	Appointments []*Appointment
	XP           XPSnapshot
	TakenAt      time.Time
}

// Today returns the snapshot date in YYYY-MM-DD
func (s *DomainSnapshot) Today() string {
	return s.TakenAt.Format(DateLayout)
}

// FindTask returns the task with the given ID or nil
func (s *DomainSnapshot) FindTask(id string) *Task {
	for _, t := range s.Tasks {
		if t.ID == id {
			return t
		}
	}
	return nil
}

// FindHabit returns the habit with the given ID or nil
func (s *DomainSnapshot) FindHabit(id string) *Habit {
	for _, h := range s.Habits {
		if h.ID == id {
			return h
		}
	}
	return nil
}
