package interfaces

import (
	"context"
	"time"

	"github.com/secmon-lab/companion/pkg/domain/model"
	"github.com/secmon-lab/companion/pkg/domain/types"
)

// Repository defines the interface for data persistence
type Repository interface {
	ChatHistory() ChatHistoryRepository
	CharacterMemory() CharacterMemoryRepository
	FiredTrigger() FiredTriggerRepository

	Close() error
}

// ChatHistoryRepository persists bounded message arrays keyed by (owner, character)
type ChatHistoryRepository interface {
	// Get returns ErrNotFound when the character has no stored history
	Get(ctx context.Context, owner string, characterID types.CharacterID) (*model.ChatHistory, error)

	// Put upserts the whole history record
	Put(ctx context.Context, history *model.ChatHistory) error

	// List returns every stored history of the owner
	List(ctx context.Context, owner string) ([]*model.ChatHistory, error)
}

// CharacterMemoryRepository persists free-text memory blobs keyed by (owner, character)
type CharacterMemoryRepository interface {
	// Get returns ErrNotFound when the character has no stored memory
	Get(ctx context.Context, owner string, characterID types.CharacterID) (*model.CharacterMemory, error)

	// Put upserts the memory record
	Put(ctx context.Context, memory *model.CharacterMemory) error

	// List returns every stored memory of the owner
	List(ctx context.Context, owner string) ([]*model.CharacterMemory, error)
}

// FiredTriggerRepository persists proactive trigger keys that already produced a reminder
type FiredTriggerRepository interface {
	Put(ctx context.Context, trigger *model.FiredTrigger) error

	// ListSince returns triggers of the owner fired at or after since, newest first
	ListSince(ctx context.Context, owner string, since time.Time) ([]*model.FiredTrigger, error)
}
