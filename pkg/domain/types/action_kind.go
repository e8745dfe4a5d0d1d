package types

import "fmt"

// ActionKind is the kind part of an in-band action tag
type ActionKind string

const (
	ActionKindCompleteHabit  ActionKind = "complete_habit"
	ActionKindCompleteTask   ActionKind = "complete_task"
	ActionKindAddTask        ActionKind = "add_task"
	ActionKindAddAppointment ActionKind = "add_appointment"
	ActionKindNavigate       ActionKind = "navigate"
	ActionKindRemember       ActionKind = "remember"
)

// AllActionKinds returns all recognized action kinds in grammar order
func AllActionKinds() []ActionKind {
	return []ActionKind{
		ActionKindCompleteHabit,
		ActionKindCompleteTask,
		ActionKindAddTask,
		ActionKindAddAppointment,
		ActionKindNavigate,
		ActionKindRemember,
	}
}

// IsValid checks if the action kind is recognized. Kinds are case-sensitive.
func (k ActionKind) IsValid() bool {
	switch k {
	case ActionKindCompleteHabit,
		ActionKindCompleteTask,
		ActionKindAddTask,
		ActionKindAddAppointment,
		ActionKindNavigate,
		ActionKindRemember:
		return true
	default:
		return false
	}
}

// Arity returns the number of arguments the kind takes. Unknown kinds return -1.
func (k ActionKind) Arity() int {
	switch k {
	case ActionKindCompleteHabit, ActionKindCompleteTask, ActionKindNavigate, ActionKindRemember:
		return 1
	case ActionKindAddTask:
		return 3
	case ActionKindAddAppointment:
		return 4
	default:
		return -1
	}
}

// Params returns the argument names of the kind, used to describe the grammar
func (k ActionKind) Params() []string {
	switch k {
	case ActionKindCompleteHabit:
		return []string{"habitId"}
	case ActionKindCompleteTask:
		return []string{"taskId"}
	case ActionKindAddTask:
		return []string{"title", "priority(low|medium|high)", "category"}
	case ActionKindAddAppointment:
		return []string{"title", "date(YYYY-MM-DD)", "time(HH:MM or empty)", "description"}
	case ActionKindNavigate:
		return []string{"pageId"}
	case ActionKindRemember:
		return []string{"fact"}
	default:
		return nil
	}
}

// String returns the string representation of the action kind
func (k ActionKind) String() string {
	return string(k)
}

// ParseActionKind parses a string into an ActionKind
func ParseActionKind(s string) (ActionKind, error) {
	kind := ActionKind(s)
	if !kind.IsValid() {
		return "", fmt.Errorf("invalid action kind: %s", s)
	}
	return kind, nil
}
