package interfaces

import (
	"context"

	"github.com/secmon-lab/companion/pkg/domain/model"
	"github.com/secmon-lab/companion/pkg/domain/types"
)

// TaskService is the narrow surface of the task list used by the agent
type TaskService interface {
	ListTasks(ctx context.Context) ([]*model.Task, error)
	AddTask(ctx context.Context, title string, priority types.Priority, category string) (*model.Task, error)
	CompleteTask(ctx context.Context, id string) error
}

// HabitService is the narrow surface of the habit tracker used by the agent
type HabitService interface {
	ListHabits(ctx context.Context) ([]*model.Habit, error)
	CompleteHabitToday(ctx context.Context, id string) error
}

// AppointmentService is the narrow surface of the calendar used by the agent
type AppointmentService interface {
	ListAppointments(ctx context.Context) ([]*model.Appointment, error)
	// AddAppointment takes date as YYYY-MM-DD and clock as HH:MM or ""
	AddAppointment(ctx context.Context, title, date, clock, description string) (*model.Appointment, error)
}

// XPService exposes the read-only XP ledger
type XPService interface {
	XPSnapshot(ctx context.Context) (*model.XPSnapshot, error)
}

// Navigator moves the user interface to a page
type Navigator interface {
	Navigate(ctx context.Context, pageID string) error
}

// NavigatorFunc adapts a function to Navigator
type NavigatorFunc func(ctx context.Context, pageID string) error

// Navigate calls f(ctx, pageID)
func (f NavigatorFunc) Navigate(ctx context.Context, pageID string) error {
	return f(ctx, pageID)
}

// ImageArchive keeps uploaded images outside of the conversation history
type ImageArchive interface {
	PutImage(ctx context.Context, owner string, characterID types.CharacterID, messageID model.MessageID, image *model.Image) error
}
