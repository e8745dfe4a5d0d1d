package types

import "fmt"

// Cadence is how often a habit is expected to be performed
type Cadence string

const (
	CadenceDaily  Cadence = "daily"
	CadenceWeekly Cadence = "weekly"
)

// IsValid checks if the cadence is valid
func (c Cadence) IsValid() bool {
	return c == CadenceDaily || c == CadenceWeekly
}

// String returns the string representation of the cadence
func (c Cadence) String() string {
	return string(c)
}

// ParseCadence parses a string into a Cadence
func ParseCadence(s string) (Cadence, error) {
	c := Cadence(s)
	if !c.IsValid() {
		return "", fmt.Errorf("invalid cadence: %s", s)
	}
	return c, nil
}
