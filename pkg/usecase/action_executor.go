package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/companion/pkg/domain/interfaces"
	"github.com/secmon-lab/companion/pkg/domain/model"
	"github.com/secmon-lab/companion/pkg/domain/types"
	"github.com/secmon-lab/companion/pkg/utils/logging"
)

// Collaborators are the domain services the agent reads and acts on
type Collaborators struct {
	Tasks        interfaces.TaskService
	Habits       interfaces.HabitService
	Appointments interfaces.AppointmentService
	XP           interfaces.XPService
}

// Validate checks that every collaborator is set
func (c Collaborators) Validate() error {
	if c.Tasks == nil || c.Habits == nil || c.Appointments == nil || c.XP == nil {
		return goerr.New("all domain collaborators are required",
			goerr.V("tasks", c.Tasks != nil),
			goerr.V("habits", c.Habits != nil),
			goerr.V("appointments", c.Appointments != nil),
			goerr.V("xp", c.XP != nil))
	}
	return nil
}

// Snapshot assembles a read-only view of the current domain state
func (c Collaborators) Snapshot(ctx context.Context, now time.Time) (*model.DomainSnapshot, error) {
	tasks, err := c.Tasks.ListTasks(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list tasks")
	}
	habits, err := c.Habits.ListHabits(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list habits")
	}
	appointments, err := c.Appointments.ListAppointments(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list appointments")
	}
	xp, err := c.XP.XPSnapshot(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get XP snapshot")
	}

	snap := &model.DomainSnapshot{
		Tasks:        tasks,
		Habits:       habits,
		Appointments: appointments,
		TakenAt:      now,
	}
	if xp != nil {
		snap.XP = *xp
	}
	return snap, nil
}

// MemoryAppender appends a fact to a character's memory
type MemoryAppender interface {
	AppendMemory(ctx context.Context, id types.CharacterID, fact string) error
}

// ActionExecutor validates parsed actions against a domain snapshot and applies them
type ActionExecutor struct {
	collab Collaborators
	memory MemoryAppender

	navMu     sync.RWMutex
	navigator interfaces.Navigator
}

// NewActionExecutor creates an executor without a navigator
func NewActionExecutor(collab Collaborators, memory MemoryAppender) *ActionExecutor {
	return &ActionExecutor{
		collab: collab,
		memory: memory,
	}
}

// SetNavigator registers the navigation handler. nil unregisters it.
func (x *ActionExecutor) SetNavigator(nav interfaces.Navigator) {
	x.navMu.Lock()
	defer x.navMu.Unlock()
	x.navigator = nav
}

func (x *ActionExecutor) currentNavigator() interfaces.Navigator {
	x.navMu.RLock()
	defer x.navMu.RUnlock()
	return x.navigator
}

// Execute applies actions in order and returns one result per action. IDs are
// validated against snapshot, which must be taken right before the call. A
// failing action never stops the others.
func (x *ActionExecutor) Execute(ctx context.Context, characterID types.CharacterID, actions []model.Action, snapshot *model.DomainSnapshot) []model.ActionResult {
	results := make([]model.ActionResult, 0, len(actions))
	for _, action := range actions {
		result := x.executeOne(ctx, characterID, action, snapshot)
		logging.From(ctx).Debug("action executed",
			"character_id", characterID,
			"kind", action.Kind,
			"success", result.Success,
			"description", result.Description)
		results = append(results, result)
	}
	return results
}

func failed(format string, args ...any) model.ActionResult {
	return model.ActionResult{Description: fmt.Sprintf(format, args...), Success: false}
}

func succeeded(format string, args ...any) model.ActionResult {
	return model.ActionResult{Description: fmt.Sprintf(format, args...), Success: true}
}

func (x *ActionExecutor) executeOne(ctx context.Context, characterID types.CharacterID, action model.Action, snapshot *model.DomainSnapshot) (result model.ActionResult) {
	defer func() {
		if r := recover(); r != nil {
			logging.From(ctx).Error("panic while executing action", "kind", action.Kind, "panic", r)
			result = failed("Could not run %s", action.Kind)
		}
	}()

	if len(action.Args) != action.Kind.Arity() {
		return failed("Malformed %s action", action.Kind)
	}

	switch action.Kind {
	case types.ActionKindCompleteHabit:
		return x.completeHabit(ctx, action.Arg(0), snapshot)
	case types.ActionKindCompleteTask:
		return x.completeTask(ctx, action.Arg(0), snapshot)
	case types.ActionKindAddTask:
		return x.addTask(ctx, action.Arg(0), action.Arg(1), action.Arg(2))
	case types.ActionKindAddAppointment:
		return x.addAppointment(ctx, action.Arg(0), action.Arg(1), action.Arg(2), action.Arg(3))
	case types.ActionKindNavigate:
		return x.navigate(ctx, action.Arg(0))
	case types.ActionKindRemember:
		return x.remember(ctx, characterID, action.Arg(0))
	default:
		return failed("Unknown action %q", action.Kind)
	}
}

func (x *ActionExecutor) completeHabit(ctx context.Context, id string, snapshot *model.DomainSnapshot) model.ActionResult {
	habit := snapshot.FindHabit(id)
	if habit == nil {
		return failed("Unknown habit %q", id)
	}
	if habit.DoneOn(snapshot.Today()) {
		return failed("Habit %q is already done today", habit.Name)
	}
	if err := x.collab.Habits.CompleteHabitToday(ctx, id); err != nil {
		logging.From(ctx).Warn("failed to complete habit", logging.ErrAttr(err), "habit_id", id)
		return failed("Could not complete habit %q", habit.Name)
	}
	return succeeded("Completed habit %q", habit.Name)
}

func (x *ActionExecutor) completeTask(ctx context.Context, id string, snapshot *model.DomainSnapshot) model.ActionResult {
	task := snapshot.FindTask(id)
	if task == nil {
		return failed("Unknown task %q", id)
	}
	if task.Completed {
		return failed("Task %q is already completed", task.Title)
	}
	if err := x.collab.Tasks.CompleteTask(ctx, id); err != nil {
		logging.From(ctx).Warn("failed to complete task", logging.ErrAttr(err), "task_id", id)
		return failed("Could not complete task %q", task.Title)
	}
	return succeeded("Completed task %q", task.Title)
}

func (x *ActionExecutor) addTask(ctx context.Context, title, priority, category string) model.ActionResult {
	if title == "" {
		return failed("Task title is empty")
	}
	p, err := types.ParsePriority(priority)
	if err != nil {
		return failed("Invalid priority %q for task %q", priority, title)
	}
	if category == "" {
		return failed("Task %q has no category", title)
	}
	task, err := x.collab.Tasks.AddTask(ctx, title, p, category)
	if err != nil {
		logging.From(ctx).Warn("failed to add task", logging.ErrAttr(err), "title", title)
		return failed("Could not add task %q", title)
	}
	return succeeded("Added task %q (%s, %s)", task.Title, task.Priority, task.Category)
}

func (x *ActionExecutor) addAppointment(ctx context.Context, title, date, clock, description string) model.ActionResult {
	if title == "" {
		return failed("Appointment title is empty")
	}
	if _, err := time.Parse(model.DateLayout, date); err != nil {
		return failed("Invalid date %q for appointment %q", date, title)
	}
	if clock != "" {
		if _, err := time.Parse(model.TimeLayout, clock); err != nil {
			return failed("Invalid time %q for appointment %q", clock, title)
		}
	}
	appt, err := x.collab.Appointments.AddAppointment(ctx, title, date, clock, description)
	if err != nil {
		logging.From(ctx).Warn("failed to add appointment", logging.ErrAttr(err), "title", title)
		return failed("Could not add appointment %q", title)
	}
	when := appt.Date
	if appt.Time != "" {
		when += " " + appt.Time
	}
	return succeeded("Added appointment %q on %s", appt.Title, when)
}

func (x *ActionExecutor) navigate(ctx context.Context, pageID string) model.ActionResult {
	if pageID == "" {
		return failed("Navigation target is empty")
	}
	nav := x.currentNavigator()
	if nav == nil {
		logging.From(ctx).Warn("navigate action without handler", "page_id", pageID, logging.ErrAttr(ErrNavigatorNotRegistered))
		return failed("Cannot open %q right now", pageID)
	}
	if err := nav.Navigate(ctx, pageID); err != nil {
		logging.From(ctx).Warn("failed to navigate", logging.ErrAttr(err), "page_id", pageID)
		return failed("Could not open %q", pageID)
	}
	return succeeded("Opened %q", pageID)
}

func (x *ActionExecutor) remember(ctx context.Context, characterID types.CharacterID, fact string) model.ActionResult {
	if fact == "" {
		return failed("Nothing to remember")
	}
	if err := x.memory.AppendMemory(ctx, characterID, fact); err != nil {
		logging.From(ctx).Warn("failed to remember fact", logging.ErrAttr(err), "character_id", characterID)
		return failed("Could not remember that")
	}
	return succeeded("Remembered: %s", fact)
}
