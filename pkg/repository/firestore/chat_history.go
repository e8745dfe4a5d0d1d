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

type actionResultDoc struct {
	Description string `firestore:"description"`
	Success     bool   `firestore:"success"`
}

type messageDoc struct {
	ID        string            `firestore:"id"`
	Role      string            `firestore:"role"`
	Content   string            `firestore:"content"`
	CreatedAt time.Time         `firestore:"created_at"`
	Streaming bool              `firestore:"streaming"`
	Proactive bool              `firestore:"proactive"`
	HadImage  bool              `firestore:"had_image"`
	Results   []actionResultDoc `firestore:"results,omitempty"`
}

type chatHistoryDoc struct {
	OwnerID     string       `firestore:"owner_id"`
	CharacterID string       `firestore:"character_id"`
	Messages    []messageDoc `firestore:"messages"`
	UpdatedAt   time.Time    `firestore:"updated_at"`
}

func toChatHistoryDoc(h *model.ChatHistory) *chatHistoryDoc {
	doc := &chatHistoryDoc{
		OwnerID:     h.Owner,
		CharacterID: h.CharacterID.String(),
		Messages:    make([]messageDoc, 0, len(h.Messages)),
		UpdatedAt:   h.UpdatedAt,
	}
	for _, m := range h.Messages {
		md := messageDoc{
			ID:        m.ID.String(),
			Role:      m.Role.String(),
			Content:   m.Content,
			CreatedAt: m.CreatedAt,
			Streaming: m.Streaming,
			Proactive: m.Proactive,
			HadImage:  m.HadImage,
		}
		for _, r := range m.Results {
			md.Results = append(md.Results, actionResultDoc{Description: r.Description, Success: r.Success})
		}
		doc.Messages = append(doc.Messages, md)
	}
	return doc
}

func fromChatHistoryDoc(d *chatHistoryDoc) *model.ChatHistory {
	h := &model.ChatHistory{
		Owner:       d.OwnerID,
		CharacterID: types.CharacterID(d.CharacterID),
		Messages:    make([]model.Message, 0, len(d.Messages)),
		UpdatedAt:   d.UpdatedAt,
	}
	for _, md := range d.Messages {
		m := model.Message{
			ID:        model.MessageID(md.ID),
			Role:      types.Role(md.Role),
			Content:   md.Content,
			CreatedAt: md.CreatedAt,
			Streaming: md.Streaming,
			Proactive: md.Proactive,
			HadImage:  md.HadImage,
		}
		for _, r := range md.Results {
			m.Results = append(m.Results, model.ActionResult{Description: r.Description, Success: r.Success})
		}
		h.Messages = append(h.Messages, m)
	}
	return h
}

type chatHistoryRepository struct {
	client           *firestore.Client
	collectionPrefix string
}

var _ interfaces.ChatHistoryRepository = &chatHistoryRepository{}

func newChatHistoryRepository(client *firestore.Client) *chatHistoryRepository {
	return &chatHistoryRepository{client: client}
}

func (r *chatHistoryRepository) collection() *firestore.CollectionRef {
	return r.client.Collection(r.collectionPrefix + chatHistoriesCollection)
}

func (r *chatHistoryRepository) Get(ctx context.Context, owner string, characterID types.CharacterID) (*model.ChatHistory, error) {
	snap, err := r.collection().Doc(ownerDocID(owner, characterID)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(ErrNotFound, "chat history not found",
				goerr.V("owner", owner), goerr.V("character_id", characterID))
		}
		return nil, goerr.Wrap(err, "failed to get chat history",
			goerr.V("owner", owner), goerr.V("character_id", characterID))
	}

	var doc chatHistoryDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, goerr.Wrap(err, "failed to decode chat history", goerr.V("doc_id", snap.Ref.ID))
	}
	return fromChatHistoryDoc(&doc), nil
}

func (r *chatHistoryRepository) Put(ctx context.Context, history *model.ChatHistory) error {
	if history == nil {
		return goerr.New("chat history is nil")
	}

	ref := r.collection().Doc(ownerDocID(history.Owner, history.CharacterID))
	if _, err := ref.Set(ctx, toChatHistoryDoc(history)); err != nil {
		return goerr.Wrap(err, "failed to save chat history",
			goerr.V("owner", history.Owner),
			goerr.V("character_id", history.CharacterID),
			goerr.V("messages", len(history.Messages)))
	}
	return nil
}

func (r *chatHistoryRepository) List(ctx context.Context, owner string) ([]*model.ChatHistory, error) {
	iter := r.collection().Where("owner_id", "==", owner).Documents(ctx)
	defer iter.Stop()

	var out []*model.ChatHistory
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate chat histories", goerr.V("owner", owner))
		}

		var doc chatHistoryDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, goerr.Wrap(err, "failed to decode chat history", goerr.V("doc_id", snap.Ref.ID))
		}
		out = append(out, fromChatHistoryDoc(&doc))
	}
	return out, nil
}
