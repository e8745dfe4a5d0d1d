package firestore

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/companion/pkg/domain/interfaces"
	"github.com/secmon-lab/companion/pkg/domain/model"
	"github.com/secmon-lab/companion/pkg/domain/types"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type characterMemoryDoc struct {
	OwnerID     string    `firestore:"owner_id"`
	CharacterID string    `firestore:"character_id"`
	Content     string    `firestore:"content"`
	UpdatedAt   time.Time `firestore:"updated_at"`
}

func (d *characterMemoryDoc) toModel() *model.CharacterMemory {
	return &model.CharacterMemory{
		Owner:       d.OwnerID,
		CharacterID: types.CharacterID(d.CharacterID),
		Content:     d.Content,
		UpdatedAt:   d.UpdatedAt,
	}
}

type characterMemoryRepository struct {
	client           *firestore.Client
	collectionPrefix string
}

var _ interfaces.CharacterMemoryRepository = &characterMemoryRepository{}

func newCharacterMemoryRepository(client *firestore.Client) *characterMemoryRepository {
	return &characterMemoryRepository{client: client}
}

func (r *characterMemoryRepository) collection() *firestore.CollectionRef {
	return r.client.Collection(r.collectionPrefix + characterMemoriesCollection)
}

func (r *characterMemoryRepository) Get(ctx context.Context, owner string, characterID types.CharacterID) (*model.CharacterMemory, error) {
	snap, err := r.collection().Doc(ownerDocID(owner, characterID)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(ErrNotFound, "character memory not found",
				goerr.V("owner", owner), goerr.V("character_id", characterID))
		}
		return nil, goerr.Wrap(err, "failed to get character memory",
			goerr.V("owner", owner), goerr.V("character_id", characterID))
	}

	var doc characterMemoryDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, goerr.Wrap(err, "failed to decode character memory", goerr.V("doc_id", snap.Ref.ID))
	}
	return doc.toModel(), nil
}

func (r *characterMemoryRepository) Put(ctx context.Context, mem *model.CharacterMemory) error {
	if mem == nil {
		return goerr.New("character memory is nil")
	}

	doc := &characterMemoryDoc{
		OwnerID:     mem.Owner,
		CharacterID: mem.CharacterID.String(),
		Content:     mem.Content,
		UpdatedAt:   mem.UpdatedAt,
	}
	if _, err := r.collection().Doc(ownerDocID(mem.Owner, mem.CharacterID)).Set(ctx, doc); err != nil {
		return goerr.Wrap(err, "failed to save character memory",
			goerr.V("owner", mem.Owner), goerr.V("character_id", mem.CharacterID))
	}
	return nil
}

func (r *characterMemoryRepository) List(ctx context.Context, owner string) ([]*model.CharacterMemory, error) {
	iter := r.collection().Where("owner_id", "==", owner).Documents(ctx)
	defer iter.Stop()

	var out []*model.CharacterMemory
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate character memories", goerr.V("owner", owner))
		}

		var doc characterMemoryDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, goerr.Wrap(err, "failed to decode character memory", goerr.V("doc_id", snap.Ref.ID))
		}
		out = append(out, doc.toModel())
	}
	return out, nil
}
