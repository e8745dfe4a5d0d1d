package model

import (
	"time"

	"github.com/secmon-lab/companion/pkg/domain/types"
)

// ChatHistory is the durable record of one character's conversation for an owner
type ChatHistory struct {
	Owner       string
	CharacterID types.CharacterID
	Messages    []Message
	UpdatedAt   time.Time
}

// CharacterMemory is the durable free-text memory of one character for an owner.
// Facts are joined with newlines.
type CharacterMemory struct {
	Owner       string
	CharacterID types.CharacterID
	Content     string
	UpdatedAt   time.Time
}

// FiredTrigger records a proactive trigger key that already produced a reminder
type FiredTrigger struct {
	Owner   string
	Key     string
	FiredAt time.Time
}
