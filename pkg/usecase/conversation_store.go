package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/companion/pkg/domain/interfaces"
	"github.com/secmon-lab/companion/pkg/domain/model"
	"github.com/secmon-lab/companion/pkg/domain/types"
	"github.com/secmon-lab/companion/pkg/utils/logging"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultStorageCap     = 100
	DefaultContextCap     = 40
	DefaultMemoryLimit    = 4000
	DefaultPersistTimeout = 10 * time.Second
)

// ConversationEvent notifies subscribers that a message was added or changed
type ConversationEvent struct {
	CharacterID types.CharacterID
	Message     model.Message
}

// characterState holds one character's conversation. mu guards the in-memory
// state; persistMu sequences durable writes so an older snapshot never
// overwrites a newer one.
type characterState struct {
	mu             sync.Mutex
	messages       []model.Message
	memory         string
	historyVersion uint64
	memoryVersion  uint64

	persistMu        sync.Mutex
	persistedHistory uint64
	persistedMemory  uint64
}

// ConversationStore owns per-character chat history and memory. In-memory
// state is authoritative; the repository is a mirror updated by upsert.
type ConversationStore struct {
	repo           interfaces.Repository
	owner          string
	storageCap     int
	contextCap     int
	memoryLimit    int
	persistTimeout time.Duration
	now            func() time.Time

	// states is built at construction and never mutated afterwards
	states map[types.CharacterID]*characterState

	subMu       sync.RWMutex
	subscribers map[int]func(ConversationEvent)
	nextSubID   int
}

// StoreOption configures ConversationStore
type StoreOption func(*ConversationStore)

// WithStorageCap sets the maximum number of messages kept per character
func WithStorageCap(n int) StoreOption {
	return func(s *ConversationStore) {
		if n > 0 {
			s.storageCap = n
		}
	}
}

// WithContextCap sets the maximum number of trailing messages replayed into a prompt
func WithContextCap(n int) StoreOption {
	return func(s *ConversationStore) {
		if n > 0 {
			s.contextCap = n
		}
	}
}

// WithMemoryLimit sets the maximum memory blob size in characters. Oldest facts are dropped first.
func WithMemoryLimit(n int) StoreOption {
	return func(s *ConversationStore) {
		if n > 0 {
			s.memoryLimit = n
		}
	}
}

// WithPersistTimeout bounds each durable write
func WithPersistTimeout(d time.Duration) StoreOption {
	return func(s *ConversationStore) {
		if d > 0 {
			s.persistTimeout = d
		}
	}
}

// WithStoreClock replaces the clock used for record timestamps
func WithStoreClock(now func() time.Time) StoreOption {
	return func(s *ConversationStore) {
		s.now = now
	}
}

// NewConversationStore creates an empty store for the given characters. Call Load to restore durable state.
func NewConversationStore(repo interfaces.Repository, owner string, characterIDs []types.CharacterID, opts ...StoreOption) *ConversationStore {
	s := &ConversationStore{
		repo:           repo,
		owner:          owner,
		storageCap:     DefaultStorageCap,
		contextCap:     DefaultContextCap,
		memoryLimit:    DefaultMemoryLimit,
		persistTimeout: DefaultPersistTimeout,
		now:            time.Now,
		states:         make(map[types.CharacterID]*characterState, len(characterIDs)),
		subscribers:    make(map[int]func(ConversationEvent)),
	}
	for _, id := range characterIDs {
		s.states[id] = &characterState{}
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Owner returns the owner ID the records are keyed by
func (s *ConversationStore) Owner() string {
	return s.owner
}

// ContextCap returns the number of trailing messages replayed into a prompt
func (s *ConversationStore) ContextCap() int {
	return s.contextCap
}

func (s *ConversationStore) state(id types.CharacterID) (*characterState, error) {
	st, ok := s.states[id]
	if !ok {
		return nil, goerr.Wrap(ErrUnknownCharacter, "character is not registered in the store", goerr.V(CharacterIDKey, id))
	}
	return st, nil
}

// Load reads the durable histories and memories of every known character.
// Characters without a stored record start empty; records of unknown
// characters are ignored.
func (s *ConversationStore) Load(ctx context.Context) error {
	var histories []*model.ChatHistory
	var memories []*model.CharacterMemory

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		var err error
		histories, err = s.repo.ChatHistory().List(egCtx, s.owner)
		if err != nil {
			return goerr.Wrap(err, "failed to list chat histories", goerr.V("owner", s.owner))
		}
		return nil
	})
	eg.Go(func() error {
		var err error
		memories, err = s.repo.CharacterMemory().List(egCtx, s.owner)
		if err != nil {
			return goerr.Wrap(err, "failed to list character memories", goerr.V("owner", s.owner))
		}
		return nil
	})
	if err := eg.Wait(); err != nil {
		return err
	}

	logger := logging.From(ctx)
	for _, h := range histories {
		st, ok := s.states[h.CharacterID]
		if !ok {
			logger.Warn("ignoring chat history of unknown character", "character_id", h.CharacterID)
			continue
		}
		msgs := s.truncate(closeStaleStreams(model.CloneMessages(h.Messages)))
		st.mu.Lock()
		st.messages = msgs
		st.mu.Unlock()
	}
	for _, m := range memories {
		st, ok := s.states[m.CharacterID]
		if !ok {
			logger.Warn("ignoring memory of unknown character", "character_id", m.CharacterID)
			continue
		}
		st.mu.Lock()
		st.memory = m.Content
		st.mu.Unlock()
	}

	logger.Info("conversation store loaded",
		"owner", s.owner,
		"histories", len(histories),
		"memories", len(memories))
	return nil
}

// closeStaleStreams finalizes placeholders left by an exchange that never committed
func closeStaleStreams(msgs []model.Message) []model.Message {
	out := msgs[:0]
	for _, m := range msgs {
		if m.Streaming {
			if m.Content == "" {
				continue
			}
			m.Streaming = false
		}
		out = append(out, m)
	}
	return out
}

func (s *ConversationStore) truncate(msgs []model.Message) []model.Message {
	if len(msgs) <= s.storageCap {
		return msgs
	}
	return msgs[len(msgs)-s.storageCap:]
}

// History returns a copy of the character's whole history, oldest first
func (s *ConversationStore) History(id types.CharacterID) ([]model.Message, error) {
	st, err := s.state(id)
	if err != nil {
		return nil, err
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	return model.CloneMessages(st.messages), nil
}

// PromptHistory returns up to the context cap of trailing committed messages, oldest first.
// Messages still streaming are excluded.
func (s *ConversationStore) PromptHistory(id types.CharacterID) ([]model.Message, error) {
	st, err := s.state(id)
	if err != nil {
		return nil, err
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	committed := make([]model.Message, 0, len(st.messages))
	for _, m := range st.messages {
		if !m.Streaming {
			committed = append(committed, m)
		}
	}
	if len(committed) > s.contextCap {
		committed = committed[len(committed)-s.contextCap:]
	}
	return model.CloneMessages(committed), nil
}

// Memory returns the character's memory blob
func (s *ConversationStore) Memory(id types.CharacterID) (string, error) {
	st, err := s.state(id)
	if err != nil {
		return "", err
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	return st.memory, nil
}

// Commit replaces the character's history, truncates it to the storage cap and persists it.
func (s *ConversationStore) Commit(ctx context.Context, id types.CharacterID, messages []model.Message) error {
	return s.mutate(ctx, id, true, func(_ []model.Message) ([]model.Message, []model.Message, error) {
		return model.CloneMessages(messages), nil, nil
	})
}

// Append adds messages at the end of the history in one critical section and persists the result.
func (s *ConversationStore) Append(ctx context.Context, id types.CharacterID, messages ...model.Message) error {
	return s.mutate(ctx, id, true, func(current []model.Message) ([]model.Message, []model.Message, error) {
		added := model.CloneMessages(messages)
		return append(current, added...), added, nil
	})
}

// Revise replaces the message with the same ID. Streaming fragments are
// applied with persist=false; the final version is persisted.
func (s *ConversationStore) Revise(ctx context.Context, id types.CharacterID, message model.Message, persist bool) error {
	return s.mutate(ctx, id, persist, func(current []model.Message) ([]model.Message, []model.Message, error) {
		for i := range current {
			if current[i].ID == message.ID {
				current[i] = message.Clone()
				return current, []model.Message{current[i]}, nil
			}
		}
		return nil, nil, goerr.Wrap(ErrMessageNotFound, "failed to revise message",
			goerr.V(CharacterIDKey, id), goerr.V(MessageIDKey, message.ID))
	})
}

// mutate is the single serialization point of history writes. mutate runs
// under the character lock and returns the new history plus the messages to
// notify subscribers about.
func (s *ConversationStore) mutate(ctx context.Context, id types.CharacterID, persist bool,
	mutate func(current []model.Message) ([]model.Message, []model.Message, error)) error {
	st, err := s.state(id)
	if err != nil {
		return err
	}

	st.mu.Lock()
	next, changed, err := mutate(st.messages)
	if err != nil {
		st.mu.Unlock()
		return err
	}
	st.messages = s.truncate(next)
	st.historyVersion++
	version := st.historyVersion
	var snapshot []model.Message
	if persist {
		snapshot = model.CloneMessages(st.messages)
	}
	st.mu.Unlock()

	for _, m := range changed {
		s.publish(ConversationEvent{CharacterID: id, Message: m})
	}

	if persist {
		s.persistHistory(ctx, id, st, snapshot, version)
	}
	return nil
}

// persistHistory writes the snapshot unless a newer version is already stored.
// Failures are logged only.
func (s *ConversationStore) persistHistory(ctx context.Context, id types.CharacterID, st *characterState, snapshot []model.Message, version uint64) {
	st.persistMu.Lock()
	defer st.persistMu.Unlock()

	if version <= st.persistedHistory {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.persistTimeout)
	defer cancel()

	history := &model.ChatHistory{
		Owner:       s.owner,
		CharacterID: id,
		Messages:    snapshot,
		UpdatedAt:   s.now(),
	}
	if err := s.repo.ChatHistory().Put(ctx, history); err != nil {
		logging.From(ctx).Error("failed to persist chat history",
			logging.ErrAttr(err),
			"character_id", id,
			"version", version)
		return
	}
	st.persistedHistory = version
}

// AppendMemory adds a fact as a new line of the character's memory and persists it.
// Newlines in the fact are folded into spaces so one line is one fact.
func (s *ConversationStore) AppendMemory(ctx context.Context, id types.CharacterID, fact string) error {
	fact = strings.Join(strings.Fields(fact), " ")
	if fact == "" {
		return goerr.New("memory fact is empty", goerr.V(CharacterIDKey, id))
	}

	st, err := s.state(id)
	if err != nil {
		return err
	}

	st.mu.Lock()
	if st.memory == "" {
		st.memory = fact
	} else {
		st.memory = st.memory + "\n" + fact
	}
	st.memory = boundMemory(st.memory, s.memoryLimit)
	st.memoryVersion++
	version := st.memoryVersion
	content := st.memory
	st.mu.Unlock()

	s.persistMemory(ctx, id, st, content, version)
	return nil
}

func (s *ConversationStore) persistMemory(ctx context.Context, id types.CharacterID, st *characterState, content string, version uint64) {
	st.persistMu.Lock()
	defer st.persistMu.Unlock()

	if version <= st.persistedMemory {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.persistTimeout)
	defer cancel()

	mem := &model.CharacterMemory{
		Owner:       s.owner,
		CharacterID: id,
		Content:     content,
		UpdatedAt:   s.now(),
	}
	if err := s.repo.CharacterMemory().Put(ctx, mem); err != nil {
		logging.From(ctx).Error("failed to persist character memory",
			logging.ErrAttr(err),
			"character_id", id,
			"version", version)
		return
	}
	st.persistedMemory = version
}

// boundMemory drops the oldest lines until the blob fits in limit characters.
// A single line longer than limit keeps its first limit characters.
func boundMemory(memory string, limit int) string {
	if utf8.RuneCountInString(memory) <= limit {
		return memory
	}

	lines := strings.Split(memory, "\n")
	for len(lines) > 1 && utf8.RuneCountInString(strings.Join(lines, "\n")) > limit {
		lines = lines[1:]
	}
	if len(lines) == 1 && utf8.RuneCountInString(lines[0]) > limit {
		return string([]rune(lines[0])[:limit])
	}
	return strings.Join(lines, "\n")
}

// Subscribe registers fn to receive message events. fn is called synchronously
// after the state lock is released and must not block.
func (s *ConversationStore) Subscribe(fn func(ConversationEvent)) (unsubscribe func()) {
	s.subMu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = fn
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.subscribers, id)
		s.subMu.Unlock()
	}
}

func (s *ConversationStore) publish(ev ConversationEvent) {
	s.subMu.RLock()
	fns := make([]func(ConversationEvent), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		fns = append(fns, fn)
	}
	s.subMu.RUnlock()

	for _, fn := range fns {
		fn(ConversationEvent{CharacterID: ev.CharacterID, Message: ev.Message.Clone()})
	}
}

// IsUnknownCharacter reports whether err was caused by an unregistered character
func IsUnknownCharacter(err error) bool {
	return errors.Is(err, ErrUnknownCharacter)
}
