package firestore

import (
	"context"
	"net/url"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/companion/pkg/domain/interfaces"
	"github.com/secmon-lab/companion/pkg/domain/types"
)

// ErrNotFound is returned (wrapped) when a document does not exist
var ErrNotFound = interfaces.ErrNotFound

const (
	chatHistoriesCollection     = "chat_histories"
	characterMemoriesCollection = "character_memories"
	firedTriggersCollection     = "fired_triggers"
)

type Firestore struct {
	client          *firestore.Client
	chatHistory     *chatHistoryRepository
	characterMemory *characterMemoryRepository
	firedTrigger    *firedTriggerRepository
}

var _ interfaces.Repository = &Firestore{}

type Option func(*Firestore)

// WithCollectionPrefix prefixes every collection name, e.g. to share a database between environments
func WithCollectionPrefix(prefix string) Option {
	return func(f *Firestore) {
		f.chatHistory.collectionPrefix = prefix
		f.characterMemory.collectionPrefix = prefix
		f.firedTrigger.collectionPrefix = prefix
	}
}

func New(ctx context.Context, projectID, databaseID string, opts ...Option) (*Firestore, error) {
	if databaseID == "" {
		databaseID = firestore.DefaultDatabaseID
	}

	client, err := firestore.NewClientWithDatabase(ctx, projectID, databaseID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client",
			goerr.V("projectID", projectID),
			goerr.V("databaseID", databaseID))
	}

	f := &Firestore{
		client:          client,
		chatHistory:     newChatHistoryRepository(client),
		characterMemory: newCharacterMemoryRepository(client),
		firedTrigger:    newFiredTriggerRepository(client),
	}

	for _, opt := range opts {
		opt(f)
	}

	return f, nil
}

func (f *Firestore) ChatHistory() interfaces.ChatHistoryRepository {
	return f.chatHistory
}

func (f *Firestore) CharacterMemory() interfaces.CharacterMemoryRepository {
	return f.characterMemory
}

func (f *Firestore) FiredTrigger() interfaces.FiredTriggerRepository {
	return f.firedTrigger
}

func (f *Firestore) Close() error {
	if f.client != nil {
		return f.client.Close()
	}
	return nil
}

// ownerDocID builds the document ID of a per-character record. Both parts are
// path-escaped since document IDs must not contain '/'.
func ownerDocID(owner string, characterID types.CharacterID) string {
	return url.PathEscape(owner) + "__" + url.PathEscape(characterID.String())
}
