package usecase

import (
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/companion/pkg/domain/model"
	"github.com/secmon-lab/companion/pkg/domain/types"
)

// CharacterRegistry is the static persona catalog. It is read-only after construction.
type CharacterRegistry struct {
	characters []*model.Character
	byID       map[types.CharacterID]*model.Character
}

// NewCharacterRegistry validates the characters and builds the catalog.
// The first character is the default one.
func NewCharacterRegistry(characters ...*model.Character) (*CharacterRegistry, error) {
	if len(characters) == 0 {
		return nil, goerr.Wrap(ErrNoCharacter, "failed to build character registry")
	}

	r := &CharacterRegistry{
		byID: make(map[types.CharacterID]*model.Character, len(characters)),
	}
	for _, c := range characters {
		if c == nil {
			return nil, goerr.New("character is nil")
		}
		if err := c.Validate(); err != nil {
			return nil, goerr.Wrap(err, "invalid character", goerr.V(CharacterIDKey, c.ID))
		}
		if _, exists := r.byID[c.ID]; exists {
			return nil, goerr.Wrap(ErrDuplicateCharacter, "failed to build character registry", goerr.V(CharacterIDKey, c.ID))
		}
		r.byID[c.ID] = c
		r.characters = append(r.characters, c)
	}

	return r, nil
}

// Get returns the character with the given ID
func (r *CharacterRegistry) Get(id types.CharacterID) (*model.Character, error) {
	c, ok := r.byID[id]
	if !ok {
		return nil, goerr.Wrap(ErrUnknownCharacter, "character not found", goerr.V(CharacterIDKey, id))
	}
	return c, nil
}

// Has reports whether the catalog contains id
func (r *CharacterRegistry) Has(id types.CharacterID) bool {
	_, ok := r.byID[id]
	return ok
}

// List returns all characters in catalog order
func (r *CharacterRegistry) List() []*model.Character {
	out := make([]*model.Character, len(r.characters))
	copy(out, r.characters)
	return out
}

// IDs returns all character IDs in catalog order
func (r *CharacterRegistry) IDs() []types.CharacterID {
	ids := make([]types.CharacterID, len(r.characters))
	for i, c := range r.characters {
		ids[i] = c.ID
	}
	return ids
}

// Default returns the first character of the catalog
func (r *CharacterRegistry) Default() *model.Character {
	return r.characters[0]
}
