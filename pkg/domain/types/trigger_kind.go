package types

// TriggerKind is the condition that produced a proactive reminder
type TriggerKind string

const (
	TriggerKindHabitPending    TriggerKind = "habit_pending"
	TriggerKindTaskOverdue     TriggerKind = "task_overdue"
	TriggerKindAppointmentSoon TriggerKind = "appointment_soon"
)

// IsValid checks if the trigger kind is valid
func (k TriggerKind) IsValid() bool {
	switch k {
	case TriggerKindHabitPending, TriggerKindTaskOverdue, TriggerKindAppointmentSoon:
		return true
	default:
		return false
	}
}

// String returns the string representation of the trigger kind
func (k TriggerKind) String() string {
	return string(k)
}
