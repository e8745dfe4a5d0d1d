package usecase

import (
	"bytes"
	"strings"

	"github.com/secmon-lab/companion/pkg/domain/model"
	"github.com/secmon-lab/companion/pkg/domain/types"
)

const actionTagOpen = "[ACTION:"

// ParseActions extracts action tags from generated text. Every tag is removed
// from the returned text; only well-formed tags of recognized kinds become
// actions, in order of appearance. A tag ends at its matching ']' and an
// unclosed tag runs to the end of its line. Spacing is only adjusted where a
// tag was removed. It never fails.
func ParseActions(raw string) (string, []model.Action) {
	var actions []model.Action
	var out []byte

	rest := raw
	for {
		start := strings.Index(rest, actionTagOpen)
		if start < 0 {
			break
		}

		body, n, closed := scanActionTag(rest[start+len(actionTagOpen):])
		if closed {
			if action, ok := parseActionBody(body); ok {
				actions = append(actions, action)
			}
		}

		out, rest = joinAroundTag(append(out, rest[:start]...), rest[start+len(actionTagOpen)+n:])
	}
	out = append(out, rest...)

	return strings.TrimSpace(string(out)), actions
}

// scanActionTag reads a tag body up to the ']' matching the opening bracket.
// It returns the body, the bytes consumed and whether the tag was closed.
func scanActionTag(s string) (string, int, bool) {
	depth := 1
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return s[:i], i + 1, true
			}
		case '\n':
			return s[:i], i, false
		}
	}
	return s, len(s), false
}

// joinAroundTag fixes up the whitespace left on both sides of a removed tag
func joinAroundTag(left []byte, right string) ([]byte, string) {
	trimmedLeft := bytes.TrimRight(left, " \t")
	trimmedRight := strings.TrimLeft(right, " \t")

	switch {
	case trimmedRight == "" || trimmedRight[0] == '\n' || strings.HasPrefix(trimmedRight, "\r\n"):
		left, right = trimmedLeft, trimmedRight
	case len(trimmedLeft) == 0 || trimmedLeft[len(trimmedLeft)-1] == '\n':
		right = trimmedRight
	case len(trimmedLeft) < len(left) && len(trimmedRight) < len(right):
		right = trimmedRight
	}

	// a tag on a line of its own must not leave an extra blank line
	leading := len(right) - len(strings.TrimLeft(right, "\n"))
	trailing := len(left) - len(bytes.TrimRight(left, "\n"))
	if extra := leading + trailing - 2; extra > 0 {
		right = right[min(extra, leading):]
	}

	return left, right
}

// parseActionBody parses "kind:arg1|arg2|..." into an Action
func parseActionBody(body string) (model.Action, bool) {
	kindPart, argPart, found := strings.Cut(body, ":")
	if !found {
		return model.Action{}, false
	}

	kind := types.ActionKind(kindPart)
	if !kind.IsValid() {
		return model.Action{}, false
	}

	var args []string
	if kind == types.ActionKindRemember {
		// a fact is free text and may itself contain '|'
		args = []string{strings.TrimSpace(argPart)}
	} else {
		for _, a := range strings.Split(argPart, "|") {
			args = append(args, strings.TrimSpace(a))
		}
	}

	if len(args) != kind.Arity() {
		return model.Action{}, false
	}
	if args[0] == "" {
		return model.Action{}, false
	}

	return model.Action{Kind: kind, Args: args}, true
}

// ActionGrammar describes the tag syntax and the recognized kinds for the system prompt
func ActionGrammar() string {
	var b strings.Builder
	b.WriteString("Embed a tag of the exact form [ACTION:kind:arg1|arg2|...] in your reply to act on the user's data. ")
	b.WriteString("Tags are removed before the user sees the reply. Recognized kinds:\n")
	for _, k := range types.AllActionKinds() {
		b.WriteString("- [ACTION:")
		b.WriteString(k.String())
		b.WriteString(":")
		b.WriteString(strings.Join(k.Params(), "|"))
		b.WriteString("]\n")
	}
	b.WriteString("Only use IDs that appear in the current state. Never invent IDs.")
	return b.String()
}
