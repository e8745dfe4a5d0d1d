package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/companion/pkg/domain/model"
	"github.com/secmon-lab/companion/pkg/domain/types"
)

type characterMemoryRepository struct {
	mu       sync.RWMutex
	memories map[ownerKey]model.CharacterMemory
}

func newCharacterMemoryRepository() *characterMemoryRepository {
	return &characterMemoryRepository{
		memories: make(map[ownerKey]model.CharacterMemory),
	}
}

func (r *characterMemoryRepository) Get(ctx context.Context, owner string, characterID types.CharacterID) (*model.CharacterMemory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.memories[ownerKey{owner: owner, characterID: characterID}]
	if !ok {
		return nil, goerr.Wrap(ErrNotFound, "character memory not found",
			goerr.V("owner", owner), goerr.V("character_id", characterID))
	}
	return &m, nil
}

func (r *characterMemoryRepository) Put(ctx context.Context, mem *model.CharacterMemory) error {
	if mem == nil {
		return goerr.New("character memory is nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.memories[ownerKey{owner: mem.Owner, characterID: mem.CharacterID}] = *mem
	return nil
}

func (r *characterMemoryRepository) List(ctx context.Context, owner string) ([]*model.CharacterMemory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*model.CharacterMemory
	for key, m := range r.memories {
		if key.owner == owner {
			copied := m
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CharacterID < out[j].CharacterID
	})
	return out, nil
}
