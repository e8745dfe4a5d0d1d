package config

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"

	"github.com/m-mizutani/goerr/v2"
	"github.com/pelletier/go-toml/v2"
	"github.com/secmon-lab/companion/pkg/domain/model"
	"github.com/secmon-lab/companion/pkg/domain/types"
	"github.com/secmon-lab/companion/pkg/usecase"
	"github.com/urfave/cli/v3"
)

// CharacterCatalog is the TOML layout of the persona catalog
type CharacterCatalog struct {
	Characters []CharacterEntry `toml:"character"`
}

// CharacterEntry is one persona of the catalog
type CharacterEntry struct {
	ID           string              `toml:"id"`
	Name         string              `toml:"name"`
	Identity     string              `toml:"identity"`
	Accent       AccentEntry         `toml:"accent"`
	Relationship []RelationshipEntry `toml:"relationship"`
}

type AccentEntry struct {
	Color string `toml:"color"`
	Emoji string `toml:"emoji"`
}

type RelationshipEntry struct {
	MinLevel int    `toml:"min_level"`
	Label    string `toml:"label"`
}

// ToModel converts the entry into a domain character
func (e *CharacterEntry) ToModel() *model.Character {
	c := &model.Character{
		ID:       types.CharacterID(e.ID),
		Name:     e.Name,
		Identity: e.Identity,
		Accent: model.Accent{
			Color: e.Accent.Color,
			Emoji: e.Accent.Emoji,
		},
	}
	for _, r := range e.Relationship {
		c.RelationshipLabels = append(c.RelationshipLabels, model.RelationshipLabel{
			MinLevel: r.MinLevel,
			Label:    r.Label,
		})
	}
	return c
}

// DefaultCharacter is used when no catalog file is configured
var DefaultCharacter = CharacterEntry{
	ID:       "mika",
	Name:     "Mika",
	Identity: "You are Mika, a cheerful and caring companion who helps the user keep up with their tasks, habits and plans. You speak casually and warmly and keep replies short.",
	Accent:   AccentEntry{Color: "#ff77aa", Emoji: "🌸"},
	Relationship: []RelationshipEntry{
		{MinLevel: 1, Label: "new friend"},
		{MinLevel: 3, Label: "good friend"},
		{MinLevel: 6, Label: "close friend"},
		{MinLevel: 10, Label: "best friend"},
	},
}

// ParseCharacterCatalog decodes a TOML persona catalog and builds the registry
func ParseCharacterCatalog(data []byte) (*usecase.CharacterRegistry, error) {
	var catalog CharacterCatalog
	if err := toml.Unmarshal(data, &catalog); err != nil {
		return nil, goerr.Wrap(ErrInvalidConfig, "failed to parse character catalog", goerr.V("error", err.Error()))
	}

	characters := make([]*model.Character, 0, len(catalog.Characters))
	for i := range catalog.Characters {
		characters = append(characters, catalog.Characters[i].ToModel())
	}

	registry, err := usecase.NewCharacterRegistry(characters...)
	if err != nil {
		return nil, goerr.Wrap(err, "invalid character catalog")
	}
	return registry, nil
}

// Character holds CLI flags for the persona catalog
type Character struct {
	path string
}

// Flags returns CLI flags for character configuration
func (c *Character) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "character-file",
			Aliases:     []string{"c"},
			Usage:       "Persona catalog file (TOML). A built-in persona is used when empty.",
			Category:    "Character",
			Sources:     cli.EnvVars("COMPANION_CHARACTER_FILE"),
			Destination: &c.path,
		},
	}
}

// LogAttrs returns log attributes for the character configuration
func (c *Character) LogAttrs() []slog.Attr {
	return []slog.Attr{slog.String("path", c.path)}
}

// Configure loads the persona catalog
func (c *Character) Configure() (*usecase.CharacterRegistry, error) {
	if c.path == "" {
		return usecase.NewCharacterRegistry(DefaultCharacter.ToModel())
	}

	data, err := os.ReadFile(c.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, goerr.Wrap(ErrConfigNotFound, "character catalog not found", goerr.V(ConfigPathKey, c.path))
		}
		return nil, goerr.Wrap(err, "failed to read character catalog", goerr.V(ConfigPathKey, c.path))
	}

	registry, err := ParseCharacterCatalog(data)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to load character catalog", goerr.V(ConfigPathKey, c.path))
	}
	return registry, nil
}
