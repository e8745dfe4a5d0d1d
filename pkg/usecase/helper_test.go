package usecase_test

import (
	"context"
	"iter"
	"sync"
	"testing"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/companion/pkg/domain/interfaces"
	"github.com/secmon-lab/companion/pkg/domain/model"
	"github.com/secmon-lab/companion/pkg/repository/memory"
	"github.com/secmon-lab/companion/pkg/service/life"
	"github.com/secmon-lab/companion/pkg/usecase"
)

// mockCompletion is a CompletionClient with replaceable behavior
type mockCompletion struct {
	streamFn   func(ctx context.Context, turns []model.Turn, opts model.StreamOptions) iter.Seq2[string, error]
	completeFn func(ctx context.Context, turns []model.Turn) (string, error)

	mu    sync.Mutex
	calls [][]model.Turn
}

func (m *mockCompletion) Stream(ctx context.Context, turns []model.Turn, opts model.StreamOptions) iter.Seq2[string, error] {
	m.record(turns)
	if m.streamFn != nil {
		return m.streamFn(ctx, turns, opts)
	}
	return fragments()
}

func (m *mockCompletion) Complete(ctx context.Context, turns []model.Turn) (string, error) {
	m.record(turns)
	if m.completeFn != nil {
		return m.completeFn(ctx, turns)
	}
	return "", nil
}

func (m *mockCompletion) record(turns []model.Turn) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, turns)
}

func (m *mockCompletion) lastTurns() []model.Turn {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		return nil
	}
	return m.calls[len(m.calls)-1]
}

func (m *mockCompletion) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

var _ interfaces.CompletionClient = &mockCompletion{}

// captureEvents binds a Sentry client that records events instead of sending them
func captureEvents(t *testing.T) func() []*sentry.Event {
	t.Helper()

	var mu sync.Mutex
	var events []*sentry.Event
	client, err := sentry.NewClient(sentry.ClientOptions{
		BeforeSend: func(event *sentry.Event, hint *sentry.EventHint) *sentry.Event {
			mu.Lock()
			defer mu.Unlock()
			events = append(events, event)
			return nil
		},
	})
	gt.NoError(t, err).Required()

	hub := sentry.CurrentHub()
	prev := hub.Client()
	hub.BindClient(client)
	t.Cleanup(func() { hub.BindClient(prev) })

	return func() []*sentry.Event {
		mu.Lock()
		defer mu.Unlock()
		out := make([]*sentry.Event, len(events))
		copy(out, events)
		return out
	}
}

// fragments yields each fragment in order
func fragments(parts ...string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for _, p := range parts {
			if !yield(p, nil) {
				return
			}
		}
	}
}

// failingAfter yields parts and then err
func failingAfter(err error, parts ...string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for _, p := range parts {
			if !yield(p, nil) {
				return
			}
		}
		yield("", err)
	}
}

const testSeed = `
[[task]]
id = "t1"
title = "Write report"
priority = "high"
category = "work"
due_date = "2026-10-10"

[[task]]
id = "t2"
title = "Pay rent"
priority = "medium"
category = "home"
completed = true

[[habit]]
id = "h1"
name = "Stretch"
cadence = "daily"

[[habit]]
id = "h2"
name = "Read"
cadence = "daily"
completed_on = ["2026-10-16"]

[[appointment]]
id = "a1"
title = "Dentist"
date = "2026-10-16"
time = "11:00"
`

var testNow = time.Date(2026, 10, 16, 10, 0, 0, 0, time.UTC)

func testClock() time.Time {
	return testNow
}

func newTestCharacters(t *testing.T) *usecase.CharacterRegistry {
	t.Helper()
	registry, err := usecase.NewCharacterRegistry(
		&model.Character{
			ID:       "mika",
			Name:     "Mika",
			Identity: "You are Mika, a cheerful companion.",
			RelationshipLabels: []model.RelationshipLabel{
				{MinLevel: 1, Label: "new friend"},
				{MinLevel: 3, Label: "close friend"},
			},
		},
		&model.Character{
			ID:       "ren",
			Name:     "Ren",
			Identity: "You are Ren, a calm mentor.",
		},
	)
	gt.NoError(t, err).Required()
	return registry
}

func newTestBoard(t *testing.T) *life.Board {
	t.Helper()
	seed, err := life.ParseSeed([]byte(testSeed))
	gt.NoError(t, err).Required()
	return life.New(life.WithSeed(seed), life.WithClock(testClock))
}

func collaborators(board *life.Board) usecase.Collaborators {
	return usecase.Collaborators{
		Tasks:        board,
		Habits:       board,
		Appointments: board,
		XP:           board,
	}
}

type testEnv struct {
	repo   *memory.Memory
	board  *life.Board
	client *mockCompletion
	uc     *usecase.UseCases
}

func newTestEnv(t *testing.T, opts ...usecase.Option) *testEnv {
	t.Helper()
	env := &testEnv{
		repo:   memory.New(),
		board:  newTestBoard(t),
		client: &mockCompletion{},
	}

	opts = append([]usecase.Option{
		usecase.WithOwner("tester"),
		usecase.WithConversationOptions(usecase.WithConversationClock(testClock)),
		usecase.WithProactiveOptions(usecase.WithProactiveClock(testClock)),
		usecase.WithStoreOptions(usecase.WithStoreClock(testClock)),
	}, opts...)

	uc, err := usecase.New(env.repo, newTestCharacters(t), env.client, collaborators(env.board), opts...)
	gt.NoError(t, err).Required()
	env.uc = uc
	return env
}
