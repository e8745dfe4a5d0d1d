package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/secmon-lab/companion/pkg/domain/types"
)

// MessageID is a UUIDv7 identifier of a conversation message
type MessageID string

// NewMessageID generates a new time-ordered MessageID
func NewMessageID() MessageID {
	id, err := uuid.NewV7()
	if err != nil {
		return MessageID(uuid.New().String())
	}
	return MessageID(id.String())
}

// String returns the string representation of MessageID
func (id MessageID) String() string {
	return string(id)
}

// Message is a single entry of a character's conversation. Content may only
// change while Streaming is true.
type Message struct {
	ID        MessageID      `json:"id"`
	Role      types.Role     `json:"role"`
	Content   string         `json:"content"`
	CreatedAt time.Time      `json:"created_at"`
	Streaming bool           `json:"streaming"`
	Proactive bool           `json:"proactive"`
	HadImage  bool           `json:"had_image"`
	Results   []ActionResult `json:"results,omitempty"`
}

// NewUserMessage creates a committed user message
func NewUserMessage(content string, hadImage bool, now time.Time) Message {
	return Message{
		ID:        NewMessageID(),
		Role:      types.RoleUser,
		Content:   content,
		CreatedAt: now,
		HadImage:  hadImage,
	}
}

// NewStreamingPlaceholder creates an empty assistant message that will receive stream fragments
func NewStreamingPlaceholder(now time.Time) Message {
	return Message{
		ID:        NewMessageID(),
		Role:      types.RoleAssistant,
		CreatedAt: now,
		Streaming: true,
	}
}

// NewProactiveMessage creates a committed assistant message produced without a user prompt
func NewProactiveMessage(content string, now time.Time) Message {
	return Message{
		ID:        NewMessageID(),
		Role:      types.RoleAssistant,
		Content:   content,
		CreatedAt: now,
		Proactive: true,
	}
}

// Clone returns a deep copy of the message
func (m Message) Clone() Message {
	if m.Results != nil {
		results := make([]ActionResult, len(m.Results))
		copy(results, m.Results)
		m.Results = results
	}
	return m
}

// CloneMessages returns a deep copy of the slice
func CloneMessages(msgs []Message) []Message {
	if msgs == nil {
		return nil
	}
	out := make([]Message, len(msgs))
	for i, m := range msgs {
		out[i] = m.Clone()
	}
	return out
}
