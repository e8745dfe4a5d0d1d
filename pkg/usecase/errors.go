package usecase

import "errors"

// Sentinel errors for use case layer
var (
	// Catalog errors
	ErrUnknownCharacter   = errors.New("unknown character")
	ErrDuplicateCharacter = errors.New("duplicate character")
	ErrNoCharacter        = errors.New("at least one character is required")

	// Conversation errors
	ErrMessageNotFound  = errors.New("message not found")
	ErrEmptyMessage     = errors.New("message has neither text nor image")
	ErrAlreadyStreaming = errors.New("character is already streaming")

	// Collaborator errors
	ErrNavigatorNotRegistered = errors.New("no navigation handler is registered")
)

// Context keys for error values
const (
	CharacterIDKey = "character_id"
	MessageIDKey   = "message_id"
	ActionKindKey  = "action_kind"
)
