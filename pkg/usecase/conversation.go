package usecase

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"sync"
	"text/template"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/companion/pkg/domain/interfaces"
	"github.com/secmon-lab/companion/pkg/domain/model"
	"github.com/secmon-lab/companion/pkg/domain/types"
	"github.com/secmon-lab/companion/pkg/utils/errutil"
	"github.com/secmon-lab/companion/pkg/utils/logging"
)

//go:embed prompt/conversation_system.md
var conversationSystemPromptTmpl string

var conversationSystemPrompt = template.Must(template.New("conversation_system").Parse(conversationSystemPromptTmpl))

// DefaultStreamTimeout bounds a whole streamed reply
const DefaultStreamTimeout = 2 * time.Minute

const (
	errorReplyMessage   = "⚠️ Sorry, I couldn't finish that reply. Please try again in a moment."
	timeoutReplyMessage = "⚠️ Sorry, that reply took too long. Please try again."
)

// ConversationUseCase drives request/response exchanges with the active character
type ConversationUseCase struct {
	registry      *CharacterRegistry
	store         *ConversationStore
	client        interfaces.CompletionClient
	collab        Collaborators
	executor      *ActionExecutor
	presence      *Presence
	archive       interfaces.ImageArchive
	streamTimeout time.Duration
	now           func() time.Time
}

// ConversationOption configures ConversationUseCase
type ConversationOption func(*ConversationUseCase)

// WithStreamTimeout bounds each streamed reply. Exceeding it commits an error reply.
func WithStreamTimeout(d time.Duration) ConversationOption {
	return func(uc *ConversationUseCase) {
		if d > 0 {
			uc.streamTimeout = d
		}
	}
}

// WithImageArchive stores uploaded images outside of the history
func WithImageArchive(archive interfaces.ImageArchive) ConversationOption {
	return func(uc *ConversationUseCase) {
		uc.archive = archive
	}
}

// WithConversationClock replaces the clock used for messages and snapshots
func WithConversationClock(now func() time.Time) ConversationOption {
	return func(uc *ConversationUseCase) {
		uc.now = now
	}
}

// NewConversationUseCase creates the orchestrator. All collaborators are injected here.
func NewConversationUseCase(registry *CharacterRegistry, store *ConversationStore, client interfaces.CompletionClient,
	collab Collaborators, executor *ActionExecutor, presence *Presence, opts ...ConversationOption) *ConversationUseCase {
	uc := &ConversationUseCase{
		registry:      registry,
		store:         store,
		client:        client,
		collab:        collab,
		executor:      executor,
		presence:      presence,
		streamTimeout: DefaultStreamTimeout,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// ActiveCharacter returns the character receiving new messages
func (uc *ConversationUseCase) ActiveCharacter() *model.Character {
	c, err := uc.registry.Get(uc.presence.Active())
	if err != nil {
		return uc.registry.Default()
	}
	return c
}

// SetActiveCharacter switches the active character. Other characters' history and memory are untouched.
func (uc *ConversationUseCase) SetActiveCharacter(id types.CharacterID) error {
	if !uc.registry.Has(id) {
		return goerr.Wrap(ErrUnknownCharacter, "failed to switch character", goerr.V(CharacterIDKey, id))
	}
	uc.presence.SetActive(id)
	return nil
}

// SetNavigator registers the handler of navigate actions. nil unregisters it.
func (uc *ConversationUseCase) SetNavigator(nav interfaces.Navigator) {
	uc.executor.SetNavigator(nav)
}

// SendMessage runs one full exchange with the active character and returns
// when it is committed. It is a no-op when the character is already streaming
// or when both text and image are empty.
func (uc *ConversationUseCase) SendMessage(ctx context.Context, text string, image *model.Image) error {
	ex, err := uc.Begin(ctx, text, image)
	if err != nil {
		if IsNoopSend(err) {
			logging.From(ctx).Debug("message ignored", logging.ErrAttr(err))
			return nil
		}
		return err
	}
	return ex.Run(ctx)
}

// Begin validates preconditions, takes the streaming lock and appends the user
// message and the streaming placeholder. It fails with ErrEmptyMessage or
// ErrAlreadyStreaming when the send is a no-op. The caller must call Run on
// the returned Exchange to release the lock.
func (uc *ConversationUseCase) Begin(ctx context.Context, text string, image *model.Image) (*Exchange, error) {
	if strings.TrimSpace(text) == "" && image.IsEmpty() {
		return nil, goerr.Wrap(ErrEmptyMessage, "nothing to send")
	}

	character := uc.ActiveCharacter()
	if !uc.presence.TryLockStreaming(character.ID) {
		return nil, goerr.Wrap(ErrAlreadyStreaming, "reply in progress", goerr.V(CharacterIDKey, character.ID))
	}

	history, err := uc.store.PromptHistory(character.ID)
	if err != nil {
		uc.presence.UnlockStreaming(character.ID)
		return nil, goerr.Wrap(err, "failed to read prompt history", goerr.V(CharacterIDKey, character.ID))
	}

	now := uc.now()
	userMsg := model.NewUserMessage(text, !image.IsEmpty(), now)
	placeholder := model.NewStreamingPlaceholder(now)
	if err := uc.store.Append(ctx, character.ID, userMsg, placeholder); err != nil {
		uc.presence.UnlockStreaming(character.ID)
		return nil, goerr.Wrap(err, "failed to append user message", goerr.V(CharacterIDKey, character.ID))
	}

	ex := &Exchange{
		uc:          uc,
		character:   character,
		assistantID: placeholder.ID,
		text:        text,
		image:       image,
		history:     history,
		userMsg:     userMsg,
		assistant:   placeholder,
		state:       types.ExchangeStateSending,
	}
	logging.From(ctx).Debug("exchange started",
		"character_id", character.ID,
		"message_id", placeholder.ID,
		"state", ex.state)
	return ex, nil
}

// IsNoopSend reports whether err means the send was ignored without side effects
func IsNoopSend(err error) bool {
	return errors.Is(err, ErrEmptyMessage) || errors.Is(err, ErrAlreadyStreaming)
}

// Exchange is one request/response round. It is created by Begin and must be run exactly once.
// Fields above mu are immutable after Begin.
type Exchange struct {
	uc          *ConversationUseCase
	character   *model.Character
	assistantID model.MessageID
	text        string
	image       *model.Image
	history     []model.Message
	userMsg     model.Message

	mu        sync.Mutex
	assistant model.Message
	state     types.ExchangeState
	ran       bool
}

// CharacterID returns the character of the exchange
func (ex *Exchange) CharacterID() types.CharacterID {
	return ex.character.ID
}

// AssistantMessageID returns the ID of the assistant message being produced
func (ex *Exchange) AssistantMessageID() model.MessageID {
	return ex.assistantID
}

// State returns the current lifecycle state
func (ex *Exchange) State() types.ExchangeState {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	return ex.state
}

func (ex *Exchange) setAssistant(msg model.Message) {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	ex.assistant = msg
}

func (ex *Exchange) transition(ctx context.Context, next types.ExchangeState) {
	ex.mu.Lock()
	prev := ex.state
	ex.state = next
	ex.mu.Unlock()

	logging.From(ctx).Debug("exchange state changed",
		"character_id", ex.character.ID,
		"message_id", ex.assistantID,
		"from", prev,
		"to", next)
}

// Run streams the reply, executes embedded actions and commits the final
// message. A failure is reported once and committed as a short error reply,
// after which Run returns nil. Run returns an error only when no reply could
// be committed. The streaming lock is always released.
func (ex *Exchange) Run(ctx context.Context) (err error) {
	ex.mu.Lock()
	if ex.ran {
		ex.mu.Unlock()
		return goerr.New("exchange already ran", goerr.V(MessageIDKey, ex.assistantID))
	}
	ex.ran = true
	ex.mu.Unlock()

	uc := ex.uc
	defer uc.presence.UnlockStreaming(ex.character.ID)

	defer func() {
		if r := recover(); r != nil {
			err = ex.commitError(ctx, goerr.New("panic during exchange", goerr.V("panic", r), goerr.V(MessageIDKey, ex.assistantID)))
		}
	}()

	ctx = logging.With(ctx, logging.From(ctx).With("character_id", ex.character.ID))

	uc.archiveImage(ctx, ex.character.ID, ex.userMsg.ID, ex.image)

	streamCtx, cancel := context.WithTimeout(ctx, uc.streamTimeout)
	defer cancel()

	turns, err := uc.buildTurns(streamCtx, ex.character, ex.history, ex.text, ex.image)
	if err != nil {
		return ex.commitError(ctx, err)
	}

	ex.transition(ctx, types.ExchangeStateStreaming)
	raw, err := ex.consume(streamCtx, turns)
	if err != nil {
		return ex.commitError(ctx, err)
	}

	ex.transition(ctx, types.ExchangeStateParsing)
	clean, actions := ParseActions(raw)

	ex.transition(ctx, types.ExchangeStateExecuting)
	var results []model.ActionResult
	if len(actions) > 0 {
		snapshot, err := uc.collab.Snapshot(ctx, uc.now())
		if err != nil {
			return ex.commitError(ctx, goerr.Wrap(err, "failed to take execution snapshot"))
		}
		results = uc.executor.Execute(ctx, ex.character.ID, actions, snapshot)
	}

	final := ex.assistant
	final.Content = clean
	final.Results = results
	final.Streaming = false
	if err := uc.store.Revise(ctx, ex.character.ID, final, true); err != nil {
		return goerr.Wrap(err, "failed to commit assistant message", goerr.V(MessageIDKey, final.ID))
	}
	ex.setAssistant(final)
	ex.transition(ctx, types.ExchangeStateCommitted)

	logging.From(ctx).Info("exchange committed",
		"message_id", final.ID,
		"actions", len(actions),
		"reply_length", len(clean))
	return nil
}

// consume applies fragments to the placeholder in arrival order and returns the full text
func (ex *Exchange) consume(ctx context.Context, turns []model.Turn) (string, error) {
	uc := ex.uc
	var acc strings.Builder

	opts := model.StreamOptions{HasImage: !ex.image.IsEmpty()}
	for fragment, err := range uc.client.Stream(ctx, turns, opts) {
		if err != nil {
			return "", goerr.Wrap(err, "completion stream failed", goerr.V("received", acc.Len()))
		}
		if ctx.Err() != nil {
			return "", goerr.Wrap(ctx.Err(), "completion stream interrupted", goerr.V("received", acc.Len()))
		}
		if fragment == "" {
			continue
		}

		acc.WriteString(fragment)
		partial := ex.assistant
		partial.Content = acc.String()
		if err := uc.store.Revise(ctx, ex.character.ID, partial, false); err != nil {
			return "", goerr.Wrap(err, "failed to apply stream fragment")
		}
	}
	if ctx.Err() != nil {
		return "", goerr.Wrap(ctx.Err(), "completion stream interrupted", goerr.V("received", acc.Len()))
	}

	return acc.String(), nil
}

// commitError reports cause and replaces the placeholder with a
// human-readable error reply. It returns an error only when the reply could
// not be committed.
func (ex *Exchange) commitError(ctx context.Context, cause error) error {
	uc := ex.uc
	errutil.Handle(ctx, cause, "exchange failed")

	final := ex.assistant
	final.Streaming = false
	final.Results = nil
	final.Content = errorReplyMessage
	if errors.Is(cause, context.DeadlineExceeded) {
		final.Content = timeoutReplyMessage
	}

	if err := uc.store.Revise(ctx, ex.character.ID, final, true); err != nil {
		return goerr.Wrap(err, "failed to commit error reply", goerr.V(MessageIDKey, final.ID))
	}
	ex.setAssistant(final)
	ex.transition(ctx, types.ExchangeStateErrorCommitted)
	return nil
}

func (uc *ConversationUseCase) archiveImage(ctx context.Context, id types.CharacterID, msgID model.MessageID, image *model.Image) {
	if uc.archive == nil || image.IsEmpty() {
		return
	}
	if err := uc.archive.PutImage(ctx, uc.store.Owner(), id, msgID, image); err != nil {
		logging.From(ctx).Warn("failed to archive image", logging.ErrAttr(err), "message_id", msgID)
	}
}

// buildTurns assembles the system turn, the trailing history and the new user turn
func (uc *ConversationUseCase) buildTurns(ctx context.Context, character *model.Character, history []model.Message, text string, image *model.Image) ([]model.Turn, error) {
	snapshot, err := uc.collab.Snapshot(ctx, uc.now())
	if err != nil {
		return nil, goerr.Wrap(err, "failed to take prompt snapshot")
	}

	memory, err := uc.store.Memory(character.ID)
	if err != nil {
		return nil, err
	}

	system, err := renderConversationPrompt(character, memory, snapshot)
	if err != nil {
		return nil, err
	}

	turns := make([]model.Turn, 0, len(history)+2)
	turns = append(turns, model.Turn{Role: types.RoleSystem, Content: system})
	for _, m := range history {
		content := m.Content
		if m.HadImage && m.Role == types.RoleUser {
			content = strings.TrimSpace(content + " [image attached]")
		}
		turns = append(turns, model.Turn{Role: m.Role, Content: content})
	}

	final := model.Turn{Role: types.RoleUser, Content: text}
	if !image.IsEmpty() {
		final.Image = image
	}
	turns = append(turns, final)

	return turns, nil
}

// conversation prompt template data

type promptTask struct {
	ID        string
	Title     string
	Priority  string
	Category  string
	DueDate   string
	Completed bool
	Recurring bool
}

type promptHabit struct {
	ID        string
	Name      string
	Cadence   string
	DoneToday bool
}

type conversationPromptData struct {
	Identity     string
	Relationship string
	Memory       string
	Now          string
	Tasks        []promptTask
	Habits       []promptHabit
	Appointments []*model.Appointment
	XP           model.XPSnapshot
	Grammar      string
}

func renderConversationPrompt(character *model.Character, memory string, snapshot *model.DomainSnapshot) (string, error) {
	data := conversationPromptData{
		Identity:     character.Identity,
		Relationship: character.LabelFor(snapshot.XP.GlobalLevel),
		Memory:       memory,
		Now:          snapshot.TakenAt.Format("Monday, 2006-01-02 15:04"),
		Appointments: snapshot.Appointments,
		XP:           snapshot.XP,
		Grammar:      ActionGrammar(),
	}
	for _, t := range snapshot.Tasks {
		data.Tasks = append(data.Tasks, promptTask{
			ID:        t.ID,
			Title:     t.Title,
			Priority:  t.Priority.String(),
			Category:  t.Category,
			DueDate:   t.DueDate,
			Completed: t.Completed,
			Recurring: t.Recurring,
		})
	}
	today := snapshot.Today()
	for _, h := range snapshot.Habits {
		data.Habits = append(data.Habits, promptHabit{
			ID:        h.ID,
			Name:      h.Name,
			Cadence:   h.Cadence.String(),
			DoneToday: h.DoneOn(today),
		})
	}

	var buf bytes.Buffer
	if err := conversationSystemPrompt.Execute(&buf, data); err != nil {
		return "", goerr.Wrap(err, "failed to execute conversation system prompt template",
			goerr.V(CharacterIDKey, character.ID))
	}
	return buf.String(), nil
}

// Summary returns a one-line description of the character's conversation, used by the console
func (uc *ConversationUseCase) Summary(id types.CharacterID) string {
	history, err := uc.store.History(id)
	if err != nil {
		return fmt.Sprintf("%s: unknown", id)
	}
	return fmt.Sprintf("%s: %d messages, %d unread", id, len(history), uc.presence.Unread(id))
}
