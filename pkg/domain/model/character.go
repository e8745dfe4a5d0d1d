package model

import (
	"sort"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/companion/pkg/domain/types"
)

// Accent holds presentation metadata for a character
type Accent struct {
	Color string
	Emoji string
}

// RelationshipLabel names the relationship with the user once the global level reaches MinLevel
type RelationshipLabel struct {
	MinLevel int
	Label    string
}

// Character is a configured conversational persona. It is immutable after loading.
type Character struct {
	ID                 types.CharacterID
	Name               string
	Identity           string
	Accent             Accent
	RelationshipLabels []RelationshipLabel
}

// Validate checks required fields of the character
func (c *Character) Validate() error {
	if err := c.ID.Validate(); err != nil {
		return goerr.Wrap(err, "invalid character ID")
	}
	if c.Name == "" {
		return goerr.New("character name is required", goerr.V("id", c.ID))
	}
	if c.Identity == "" {
		return goerr.New("character identity is required", goerr.V("id", c.ID))
	}
	for _, l := range c.RelationshipLabels {
		if l.Label == "" {
			return goerr.New("relationship label is empty", goerr.V("id", c.ID), goerr.V("min_level", l.MinLevel))
		}
	}
	return nil
}

// LabelFor returns the relationship label for the given level, or "" when no label applies
func (c *Character) LabelFor(level int) string {
	labels := make([]RelationshipLabel, len(c.RelationshipLabels))
	copy(labels, c.RelationshipLabels)
	sort.SliceStable(labels, func(i, j int) bool {
		return labels[i].MinLevel < labels[j].MinLevel
	})

	var label string
	for _, l := range labels {
		if l.MinLevel > level {
			break
		}
		label = l.Label
	}
	return label
}
