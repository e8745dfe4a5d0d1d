package types

import (
	"regexp"

	"github.com/m-mizutani/goerr/v2"
)

// CharacterID identifies a persona in the character catalog
type CharacterID string

var characterIDPattern = regexp.MustCompile(`^[a-z][a-z0-9_-]{0,31}$`)

// Validate checks if the CharacterID is valid
func (c CharacterID) Validate() error {
	if c == "" {
		return goerr.New("character ID cannot be empty")
	}
	if !characterIDPattern.MatchString(string(c)) {
		return goerr.New("character ID must start with a lowercase letter followed by lowercase alphanumerics, '-' or '_'", goerr.V("id", c))
	}
	return nil
}

// String returns the string representation of CharacterID
func (c CharacterID) String() string {
	return string(c)
}
