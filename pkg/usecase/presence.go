package usecase

import (
	"sync"

	"github.com/secmon-lab/companion/pkg/domain/types"
)

// Presence tracks session-scoped UI state shared by the conversation and
// proactive flows: the active character, per-character streaming locks, the
// conversation view and unread counters.
type Presence struct {
	mu        sync.Mutex
	active    types.CharacterID
	streaming map[types.CharacterID]bool
	viewOpen  bool
	unread    map[types.CharacterID]int
}

// NewPresence creates a presence with the given active character and a closed view
func NewPresence(active types.CharacterID) *Presence {
	return &Presence{
		active:    active,
		streaming: make(map[types.CharacterID]bool),
		unread:    make(map[types.CharacterID]int),
	}
}

// Active returns the active character
func (p *Presence) Active() types.CharacterID {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

// SetActive switches the active character. An open view marks the new character read.
func (p *Presence) SetActive(id types.CharacterID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.active = id
	if p.viewOpen {
		delete(p.unread, id)
	}
}

// TryLockStreaming acquires the character's streaming lock. It returns false when already held.
func (p *Presence) TryLockStreaming(id types.CharacterID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.streaming[id] {
		return false
	}
	p.streaming[id] = true
	return true
}

// UnlockStreaming releases the character's streaming lock
func (p *Presence) UnlockStreaming(id types.CharacterID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.streaming, id)
}

// IsStreaming reports whether the character's streaming lock is held
func (p *Presence) IsStreaming(id types.CharacterID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.streaming[id]
}

// SetViewOpen records whether the conversation view is visible. Opening it
// marks the active character read.
func (p *Presence) SetViewOpen(open bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.viewOpen = open
	if open {
		delete(p.unread, p.active)
	}
}

// ViewOpen reports whether the conversation view is visible
func (p *Presence) ViewOpen() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.viewOpen
}

// NotifyUnread increments the unread counter of id unless the user is
// looking at that conversation. It returns the new count.
func (p *Presence) NotifyUnread(id types.CharacterID) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.viewOpen && p.active == id {
		return 0
	}
	p.unread[id]++
	return p.unread[id]
}

// Unread returns the unread counter of id
func (p *Presence) Unread(id types.CharacterID) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.unread[id]
}

// MarkRead clears the unread counter of id
func (p *Presence) MarkRead(id types.CharacterID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.unread, id)
}
