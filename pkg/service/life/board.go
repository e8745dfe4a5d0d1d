package life

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/companion/pkg/domain/model"
	"github.com/secmon-lab/companion/pkg/domain/types"
	"github.com/secmon-lab/companion/pkg/utils/logging"
)

var (
	ErrTaskNotFound       = goerr.New("task not found")
	ErrHabitNotFound      = goerr.New("habit not found")
	ErrAlreadyCompleted   = goerr.New("already completed")
	ErrInvalidAppointment = goerr.New("invalid appointment")
)

const (
	// HabitCategory receives the XP of completed habits
	HabitCategory = "habits"
	HabitXP       = 15
	xpPerLevel    = 100
)

// Board is an in-memory task list, habit tracker, calendar and XP ledger
type Board struct {
	mu           sync.RWMutex
	tasks        []*model.Task
	habits       []*model.Habit
	appointments []*model.Appointment
	xp           map[string]int
	now          func() time.Time
}

type Option func(*Board)

// WithClock replaces the clock used for completion dates
func WithClock(now func() time.Time) Option {
	return func(b *Board) {
		b.now = now
	}
}

// WithSeed loads initial records
func WithSeed(seed *Seed) Option {
	return func(b *Board) {
		if seed == nil {
			return
		}
		b.tasks = append(b.tasks, seed.tasks()...)
		b.habits = append(b.habits, seed.habits()...)
		b.appointments = append(b.appointments, seed.appointments()...)
		for name, xp := range seed.XP {
			b.xp[name] += xp
		}
	}
}

// New creates a board. It implements the task, habit, appointment and XP services.
func New(opts ...Option) *Board {
	b := &Board{
		xp:  make(map[string]int),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

func (b *Board) today() string {
	return b.now().Format(model.DateLayout)
}

// ListTasks returns copies of all tasks
func (b *Board) ListTasks(ctx context.Context) ([]*model.Task, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]*model.Task, len(b.tasks))
	for i, t := range b.tasks {
		c := *t
		out[i] = &c
	}
	return out, nil
}

// AddTask creates an incomplete task without a due date
func (b *Board) AddTask(ctx context.Context, title string, priority types.Priority, category string) (*model.Task, error) {
	if title == "" {
		return nil, goerr.New("task title is empty")
	}
	if !priority.IsValid() {
		return nil, goerr.New("invalid priority", goerr.V("priority", priority))
	}

	task := &model.Task{
		ID:       newID(),
		Title:    title,
		Priority: priority,
		Category: category,
	}

	b.mu.Lock()
	b.tasks = append(b.tasks, task)
	b.mu.Unlock()

	logging.From(ctx).Info("task added", "task_id", task.ID, "title", title)
	c := *task
	return &c, nil
}

// CompleteTask marks the task completed and awards XP to its category
func (b *Board) CompleteTask(ctx context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	idx := slices.IndexFunc(b.tasks, func(t *model.Task) bool { return t.ID == id })
	if idx < 0 {
		return goerr.Wrap(ErrTaskNotFound, "failed to complete task", goerr.V("task_id", id))
	}
	task := b.tasks[idx]
	if task.Completed {
		return goerr.Wrap(ErrAlreadyCompleted, "failed to complete task", goerr.V("task_id", id))
	}

	task.Completed = true
	b.xp[task.Category] += task.Priority.XP()
	logging.From(ctx).Info("task completed", "task_id", id, "xp", task.Priority.XP())
	return nil
}

// ListHabits returns copies of all habits
func (b *Board) ListHabits(ctx context.Context) ([]*model.Habit, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]*model.Habit, len(b.habits))
	for i, h := range b.habits {
		c := *h
		c.CompletedOn = slices.Clone(h.CompletedOn)
		out[i] = &c
	}
	return out, nil
}

// CompleteHabitToday logs a completion for today and awards habit XP
func (b *Board) CompleteHabitToday(ctx context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	idx := slices.IndexFunc(b.habits, func(h *model.Habit) bool { return h.ID == id })
	if idx < 0 {
		return goerr.Wrap(ErrHabitNotFound, "failed to complete habit", goerr.V("habit_id", id))
	}
	habit := b.habits[idx]
	today := b.today()
	if habit.DoneOn(today) {
		return goerr.Wrap(ErrAlreadyCompleted, "failed to complete habit", goerr.V("habit_id", id), goerr.V("date", today))
	}

	habit.CompletedOn = append(habit.CompletedOn, today)
	b.xp[HabitCategory] += HabitXP
	logging.From(ctx).Info("habit completed", "habit_id", id, "date", today)
	return nil
}

// ListAppointments returns copies of all appointments ordered by date and time
func (b *Board) ListAppointments(ctx context.Context) ([]*model.Appointment, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]*model.Appointment, len(b.appointments))
	for i, a := range b.appointments {
		c := *a
		out[i] = &c
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].Time < out[j].Time
	})
	return out, nil
}

// AddAppointment creates a calendar entry. clock may be empty for an all-day entry.
func (b *Board) AddAppointment(ctx context.Context, title, date, clock, description string) (*model.Appointment, error) {
	if title == "" {
		return nil, goerr.Wrap(ErrInvalidAppointment, "title is empty")
	}
	if _, err := time.Parse(model.DateLayout, date); err != nil {
		return nil, goerr.Wrap(ErrInvalidAppointment, "invalid date", goerr.V("date", date))
	}
	if clock != "" {
		if _, err := time.Parse(model.TimeLayout, clock); err != nil {
			return nil, goerr.Wrap(ErrInvalidAppointment, "invalid time", goerr.V("time", clock))
		}
	}

	appt := &model.Appointment{
		ID:          newID(),
		Title:       title,
		Date:        date,
		Time:        clock,
		Description: description,
	}

	b.mu.Lock()
	b.appointments = append(b.appointments, appt)
	b.mu.Unlock()

	logging.From(ctx).Info("appointment added", "appointment_id", appt.ID, "date", date)
	c := *appt
	return &c, nil
}

// XPSnapshot returns the ledger by category, sorted by name
func (b *Board) XPSnapshot(ctx context.Context) (*model.XPSnapshot, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	snap := &model.XPSnapshot{}
	for name, total := range b.xp {
		snap.Categories = append(snap.Categories, model.CategoryXP{
			Name:    name,
			Level:   LevelOf(total),
			TotalXP: total,
		})
		snap.GlobalTotalXP += total
	}
	sort.Slice(snap.Categories, func(i, j int) bool {
		return snap.Categories[i].Name < snap.Categories[j].Name
	})
	snap.GlobalLevel = LevelOf(snap.GlobalTotalXP)
	return snap, nil
}

// LevelOf converts total XP into a level starting at 1
func LevelOf(total int) int {
	if total < 0 {
		return 1
	}
	return 1 + total/xpPerLevel
}
