package usecase

import (
	"context"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/companion/pkg/domain/interfaces"
	"github.com/secmon-lab/companion/pkg/domain/model"
)

// DefaultOwner keys durable records when no owner ID is configured
const DefaultOwner = "default"

type UseCases struct {
	repo     interfaces.Repository
	collab   Collaborators
	owner    string
	storeOpt []StoreOption
	convOpt  []ConversationOption
	proOpt   []ProactiveOption

	Characters   *CharacterRegistry
	Store        *ConversationStore
	Presence     *Presence
	Executor     *ActionExecutor
	Conversation *ConversationUseCase
	Proactive    *ProactiveUseCase
}

type Option func(*UseCases)

func WithOwner(owner string) Option {
	return func(uc *UseCases) {
		if owner != "" {
			uc.owner = owner
		}
	}
}

func WithStoreOptions(opts ...StoreOption) Option {
	return func(uc *UseCases) {
		uc.storeOpt = append(uc.storeOpt, opts...)
	}
}

func WithConversationOptions(opts ...ConversationOption) Option {
	return func(uc *UseCases) {
		uc.convOpt = append(uc.convOpt, opts...)
	}
}

func WithProactiveOptions(opts ...ProactiveOption) Option {
	return func(uc *UseCases) {
		uc.proOpt = append(uc.proOpt, opts...)
	}
}

// New wires the conversation core. Durable state is not read until Store.Load is called.
func New(repo interfaces.Repository, registry *CharacterRegistry, client interfaces.CompletionClient, collab Collaborators, opts ...Option) (*UseCases, error) {
	if repo == nil {
		return nil, goerr.New("repository is required")
	}
	if registry == nil {
		return nil, goerr.Wrap(ErrNoCharacter, "character registry is required")
	}
	if client == nil {
		return nil, goerr.New("completion client is required")
	}
	if err := collab.Validate(); err != nil {
		return nil, err
	}

	uc := &UseCases{
		repo:       repo,
		collab:     collab,
		owner:      DefaultOwner,
		Characters: registry,
	}
	for _, opt := range opts {
		opt(uc)
	}

	uc.Store = NewConversationStore(repo, uc.owner, registry.IDs(), uc.storeOpt...)
	uc.Presence = NewPresence(registry.Default().ID)
	uc.Executor = NewActionExecutor(collab, uc.Store)
	uc.Conversation = NewConversationUseCase(registry, uc.Store, client, collab, uc.Executor, uc.Presence, uc.convOpt...)
	uc.Proactive = NewProactiveUseCase(registry, uc.Store, client, collab, uc.Presence, uc.proOpt...)

	return uc, nil
}

// Snapshot returns the current domain state
func (uc *UseCases) Snapshot(ctx context.Context) (*model.DomainSnapshot, error) {
	return uc.collab.Snapshot(ctx, time.Now())
}
