package model

import (
	"strings"

	"github.com/secmon-lab/companion/pkg/domain/types"
)

// Action is a command parsed from generated text. Arguments are not validated.
type Action struct {
	Kind types.ActionKind
	Args []string
}

// Arg returns the i-th argument or "" when it is missing
func (a Action) Arg(i int) string {
	if i < 0 || i >= len(a.Args) {
		return ""
	}
	return a.Args[i]
}

// Tag renders the action back into its wire form
func (a Action) Tag() string {
	return "[ACTION:" + a.Kind.String() + ":" + strings.Join(a.Args, "|") + "]"
}

// ActionResult is the outcome of executing one Action
type ActionResult struct {
	Description string `json:"description"`
	Success     bool   `json:"success"`
}
