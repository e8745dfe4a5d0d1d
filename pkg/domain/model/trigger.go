package model

import "github.com/secmon-lab/companion/pkg/domain/types"

// ProactiveTrigger is a reminder-worthy condition found in the domain state.
// Key identifies the condition for deduplication.
type ProactiveTrigger struct {
	Kind        types.TriggerKind
	Description string
	Key         string
}
