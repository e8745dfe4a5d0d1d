package usecase

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"strings"
	"sync"
	"text/template"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/companion/pkg/domain/interfaces"
	"github.com/secmon-lab/companion/pkg/domain/model"
	"github.com/secmon-lab/companion/pkg/domain/types"
	"github.com/secmon-lab/companion/pkg/utils/logging"
)

//go:embed prompt/proactive_system.md
var proactiveSystemPromptTmpl string

var proactiveSystemPrompt = template.Must(template.New("proactive_system").Parse(proactiveSystemPromptTmpl))

const (
	DefaultHabitStartHour = 9
	DefaultLookahead      = 90 * time.Minute
	// firedRetention is how far back durable dedup keys are preloaded. Keys embed their date.
	firedRetention = 48 * time.Hour
)

// ProactiveUseCase looks for reminder-worthy conditions and lets the active character speak first
type ProactiveUseCase struct {
	registry   *CharacterRegistry
	store      *ConversationStore
	client     interfaces.CompletionClient
	collab     Collaborators
	presence   *Presence
	firedRepo  interfaces.FiredTriggerRepository
	habitStart int
	lookahead  time.Duration
	timeout    time.Duration
	now        func() time.Time

	firedMu sync.Mutex
	fired   map[string]struct{}
}

// ProactiveOption configures ProactiveUseCase
type ProactiveOption func(*ProactiveUseCase)

// WithHabitStartHour sets the hour of day from which pending daily habits are reminded
func WithHabitStartHour(hour int) ProactiveOption {
	return func(uc *ProactiveUseCase) {
		if hour >= 0 && hour < 24 {
			uc.habitStart = hour
		}
	}
}

// WithLookahead sets how far ahead appointments are reminded
func WithLookahead(d time.Duration) ProactiveOption {
	return func(uc *ProactiveUseCase) {
		if d > 0 {
			uc.lookahead = d
		}
	}
}

// WithProactiveTimeout bounds the one-shot generation
func WithProactiveTimeout(d time.Duration) ProactiveOption {
	return func(uc *ProactiveUseCase) {
		if d > 0 {
			uc.timeout = d
		}
	}
}

// WithFiredTriggerRepository makes trigger dedup survive restarts
func WithFiredTriggerRepository(repo interfaces.FiredTriggerRepository) ProactiveOption {
	return func(uc *ProactiveUseCase) {
		uc.firedRepo = repo
	}
}

// WithProactiveClock replaces the clock used for trigger evaluation
func WithProactiveClock(now func() time.Time) ProactiveOption {
	return func(uc *ProactiveUseCase) {
		uc.now = now
	}
}

// NewProactiveUseCase creates the trigger engine. Dedup is in-process unless a fired trigger repository is given.
func NewProactiveUseCase(registry *CharacterRegistry, store *ConversationStore, client interfaces.CompletionClient,
	collab Collaborators, presence *Presence, opts ...ProactiveOption) *ProactiveUseCase {
	uc := &ProactiveUseCase{
		registry:   registry,
		store:      store,
		client:     client,
		collab:     collab,
		presence:   presence,
		habitStart: DefaultHabitStartHour,
		lookahead:  DefaultLookahead,
		timeout:    DefaultStreamTimeout,
		now:        time.Now,
		fired:      make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// LoadFired preloads recently fired keys from the durable store. It is a no-op without a repository.
func (uc *ProactiveUseCase) LoadFired(ctx context.Context) error {
	if uc.firedRepo == nil {
		return nil
	}

	records, err := uc.firedRepo.ListSince(ctx, uc.store.Owner(), uc.now().Add(-firedRetention))
	if err != nil {
		return goerr.Wrap(err, "failed to load fired triggers", goerr.V("owner", uc.store.Owner()))
	}

	uc.firedMu.Lock()
	for _, r := range records {
		uc.fired[r.Key] = struct{}{}
	}
	uc.firedMu.Unlock()

	logging.From(ctx).Info("fired triggers loaded", "count", len(records))
	return nil
}

// Evaluate runs one trigger pass. It returns the triggers that produced a
// message; failures are logged and swallowed.
func (uc *ProactiveUseCase) Evaluate(ctx context.Context) []model.ProactiveTrigger {
	logger := logging.From(ctx)

	character := uc.activeCharacter()
	if uc.presence.IsStreaming(character.ID) {
		logger.Debug("skipping proactive pass while streaming", "character_id", character.ID)
		return nil
	}

	now := uc.now()
	snapshot, err := uc.collab.Snapshot(ctx, now)
	if err != nil {
		logger.Warn("failed to take proactive snapshot", logging.ErrAttr(err))
		return nil
	}

	triggers := uc.unfired(EvaluateTriggers(snapshot, now, uc.habitStart, uc.lookahead))
	if len(triggers) == 0 {
		return nil
	}

	content, err := uc.generate(ctx, character, triggers, now)
	if err != nil {
		logger.Warn("failed to generate proactive message", logging.ErrAttr(err), "character_id", character.ID)
		return nil
	}

	msg := model.NewProactiveMessage(content, uc.now())
	if err := uc.store.Append(ctx, character.ID, msg); err != nil {
		logger.Warn("failed to append proactive message", logging.ErrAttr(err), "character_id", character.ID)
		return nil
	}
	unread := uc.presence.NotifyUnread(character.ID)
	uc.markFired(ctx, triggers, now)

	logger.Info("proactive message sent",
		"character_id", character.ID,
		"message_id", msg.ID,
		"triggers", len(triggers),
		"unread", unread)
	return triggers
}

func (uc *ProactiveUseCase) activeCharacter() *model.Character {
	c, err := uc.registry.Get(uc.presence.Active())
	if err != nil {
		return uc.registry.Default()
	}
	return c
}

func (uc *ProactiveUseCase) unfired(triggers []model.ProactiveTrigger) []model.ProactiveTrigger {
	uc.firedMu.Lock()
	defer uc.firedMu.Unlock()

	var out []model.ProactiveTrigger
	for _, t := range triggers {
		if _, ok := uc.fired[t.Key]; !ok {
			out = append(out, t)
		}
	}
	return out
}

func (uc *ProactiveUseCase) markFired(ctx context.Context, triggers []model.ProactiveTrigger, now time.Time) {
	uc.firedMu.Lock()
	for _, t := range triggers {
		uc.fired[t.Key] = struct{}{}
	}
	uc.firedMu.Unlock()

	if uc.firedRepo == nil {
		return
	}
	for _, t := range triggers {
		record := &model.FiredTrigger{Owner: uc.store.Owner(), Key: t.Key, FiredAt: now}
		if err := uc.firedRepo.Put(ctx, record); err != nil {
			logging.From(ctx).Warn("failed to persist fired trigger", logging.ErrAttr(err), "key", t.Key)
		}
	}
}

func (uc *ProactiveUseCase) generate(ctx context.Context, character *model.Character, triggers []model.ProactiveTrigger, now time.Time) (string, error) {
	memory, err := uc.store.Memory(character.ID)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	data := struct {
		Identity string
		Memory   string
		Now      string
		Triggers []model.ProactiveTrigger
	}{
		Identity: character.Identity,
		Memory:   memory,
		Now:      now.Format("Monday, 2006-01-02 15:04"),
		Triggers: triggers,
	}
	if err := proactiveSystemPrompt.Execute(&buf, data); err != nil {
		return "", goerr.Wrap(err, "failed to execute proactive system prompt template")
	}

	ctx, cancel := context.WithTimeout(ctx, uc.timeout)
	defer cancel()

	turns := []model.Turn{{Role: types.RoleSystem, Content: buf.String()}}
	text, err := uc.client.Complete(ctx, turns)
	if err != nil {
		return "", goerr.Wrap(err, "proactive completion failed")
	}

	// Tags are never executed for proactive messages
	clean, _ := ParseActions(text)
	if strings.TrimSpace(clean) == "" {
		return "", goerr.New("proactive completion returned empty text")
	}
	return clean, nil
}

// EvaluateTriggers returns the conditions of snapshot worth a reminder at now.
// Daily habits are checked from habitStart o'clock; appointments starting
// within lookahead are reported.
func EvaluateTriggers(snapshot *model.DomainSnapshot, now time.Time, habitStart int, lookahead time.Duration) []model.ProactiveTrigger {
	today := now.Format(model.DateLayout)
	var triggers []model.ProactiveTrigger

	if now.Hour() >= habitStart {
		for _, h := range snapshot.Habits {
			if h.Cadence != types.CadenceDaily || h.DoneOn(today) {
				continue
			}
			triggers = append(triggers, model.ProactiveTrigger{
				Kind:        types.TriggerKindHabitPending,
				Description: fmt.Sprintf("The daily habit %q has not been done yet today.", h.Name),
				Key:         fmt.Sprintf("habit:%s:%s", h.ID, today),
			})
		}
	}

	for _, t := range snapshot.Tasks {
		if !t.IsOverdue(today) {
			continue
		}
		triggers = append(triggers, model.ProactiveTrigger{
			Kind:        types.TriggerKindTaskOverdue,
			Description: fmt.Sprintf("The task %q was due on %s and is not done.", t.Title, t.DueDate),
			Key:         fmt.Sprintf("task:%s:%s", t.ID, today),
		})
	}

	for _, a := range snapshot.Appointments {
		if a.Date != today {
			continue
		}
		start, ok := a.StartsAt(now.Location())
		if !ok || start.Before(now) || start.Sub(now) > lookahead {
			continue
		}
		triggers = append(triggers, model.ProactiveTrigger{
			Kind:        types.TriggerKindAppointmentSoon,
			Description: fmt.Sprintf("The appointment %q starts at %s.", a.Title, a.Time),
			Key:         fmt.Sprintf("appointment:%s:%s", a.ID, today),
		})
	}

	return triggers
}
