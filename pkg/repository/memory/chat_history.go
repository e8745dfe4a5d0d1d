package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/companion/pkg/domain/model"
	"github.com/secmon-lab/companion/pkg/domain/types"
)

// ownerKey is a composite key for per-character records (owner + characterID)
type ownerKey struct {
	owner       string
	characterID types.CharacterID
}

type chatHistoryRepository struct {
	mu        sync.RWMutex
	histories map[ownerKey]*model.ChatHistory
}

func newChatHistoryRepository() *chatHistoryRepository {
	return &chatHistoryRepository{
		histories: make(map[ownerKey]*model.ChatHistory),
	}
}

func copyChatHistory(h *model.ChatHistory) *model.ChatHistory {
	return &model.ChatHistory{
		Owner:       h.Owner,
		CharacterID: h.CharacterID,
		Messages:    model.CloneMessages(h.Messages),
		UpdatedAt:   h.UpdatedAt,
	}
}

func (r *chatHistoryRepository) Get(ctx context.Context, owner string, characterID types.CharacterID) (*model.ChatHistory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, ok := r.histories[ownerKey{owner: owner, characterID: characterID}]
	if !ok {
		return nil, goerr.Wrap(ErrNotFound, "chat history not found",
			goerr.V("owner", owner), goerr.V("character_id", characterID))
	}
	return copyChatHistory(h), nil
}

func (r *chatHistoryRepository) Put(ctx context.Context, history *model.ChatHistory) error {
	if history == nil {
		return goerr.New("chat history is nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.histories[ownerKey{owner: history.Owner, characterID: history.CharacterID}] = copyChatHistory(history)
	return nil
}

func (r *chatHistoryRepository) List(ctx context.Context, owner string) ([]*model.ChatHistory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*model.ChatHistory
	for key, h := range r.histories {
		if key.owner == owner {
			out = append(out, copyChatHistory(h))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CharacterID < out[j].CharacterID
	})
	return out, nil
}
