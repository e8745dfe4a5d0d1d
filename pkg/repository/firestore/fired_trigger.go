package firestore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/companion/pkg/domain/interfaces"
	"github.com/secmon-lab/companion/pkg/domain/model"
	"google.golang.org/api/iterator"
)

type firedTriggerDoc struct {
	OwnerID string    `firestore:"owner_id"`
	Key     string    `firestore:"key"`
	FiredAt time.Time `firestore:"fired_at"`
}

type firedTriggerRepository struct {
	client           *firestore.Client
	collectionPrefix string
}

var _ interfaces.FiredTriggerRepository = &firedTriggerRepository{}

func newFiredTriggerRepository(client *firestore.Client) *firedTriggerRepository {
	return &firedTriggerRepository{client: client}
}

func (r *firedTriggerRepository) collection() *firestore.CollectionRef {
	return r.client.Collection(r.collectionPrefix + firedTriggersCollection)
}

// firedTriggerDocID hashes owner and key; trigger keys carry user-defined IDs.
func firedTriggerDocID(owner, key string) string {
	sum := sha256.Sum256([]byte(owner + "\x00" + key))
	return hex.EncodeToString(sum[:])
}

func (r *firedTriggerRepository) Put(ctx context.Context, trigger *model.FiredTrigger) error {
	if trigger == nil {
		return goerr.New("fired trigger is nil")
	}
	if trigger.Key == "" {
		return goerr.New("fired trigger key is empty", goerr.V("owner", trigger.Owner))
	}

	doc := &firedTriggerDoc{
		OwnerID: trigger.Owner,
		Key:     trigger.Key,
		FiredAt: trigger.FiredAt,
	}
	if _, err := r.collection().Doc(firedTriggerDocID(trigger.Owner, trigger.Key)).Set(ctx, doc); err != nil {
		return goerr.Wrap(err, "failed to save fired trigger",
			goerr.V("owner", trigger.Owner), goerr.V("key", trigger.Key))
	}
	return nil
}

// ListSince requires the composite index (owner_id ASC, fired_at DESC) created by the migrate command.
func (r *firedTriggerRepository) ListSince(ctx context.Context, owner string, since time.Time) ([]*model.FiredTrigger, error) {
	iter := r.collection().
		Where("owner_id", "==", owner).
		Where("fired_at", ">=", since).
		OrderBy("fired_at", firestore.Desc).
		Documents(ctx)
	defer iter.Stop()

	var out []*model.FiredTrigger
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate fired triggers", goerr.V("owner", owner))
		}

		var doc firedTriggerDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, goerr.Wrap(err, "failed to decode fired trigger", goerr.V("doc_id", snap.Ref.ID))
		}
		out = append(out, &model.FiredTrigger{Owner: doc.OwnerID, Key: doc.Key, FiredAt: doc.FiredAt})
	}
	return out, nil
}
