package memory

import (
	"github.com/secmon-lab/companion/pkg/domain/interfaces"
)

// ErrNotFound is returned (wrapped) when a record does not exist
var ErrNotFound = interfaces.ErrNotFound

// Repository is an alias for Memory to match the pattern
type Repository = Memory

// Memory is an in-process repository. Records are lost on exit.
type Memory struct {
	chatHistory     *chatHistoryRepository
	characterMemory *characterMemoryRepository
	firedTrigger    *firedTriggerRepository
}

var _ interfaces.Repository = &Memory{}

func New() *Memory {
	return &Memory{
		chatHistory:     newChatHistoryRepository(),
		characterMemory: newCharacterMemoryRepository(),
		firedTrigger:    newFiredTriggerRepository(),
	}
}

func (m *Memory) ChatHistory() interfaces.ChatHistoryRepository {
	return m.chatHistory
}

func (m *Memory) CharacterMemory() interfaces.CharacterMemoryRepository {
	return m.characterMemory
}

func (m *Memory) FiredTrigger() interfaces.FiredTriggerRepository {
	return m.firedTrigger
}

func (m *Memory) Close() error {
	return nil
}
