package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/companion/pkg/domain/model"
	"github.com/secmon-lab/companion/pkg/domain/types"
)

type chatHistoryRepository struct {
	db *sql.DB
}

func (r *chatHistoryRepository) Get(ctx context.Context, owner string, characterID types.CharacterID) (*model.ChatHistory, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT messages_json, updated_at FROM chat_history WHERE owner_id = ? AND character_id = ?`,
		owner, characterID.String())

	var raw string
	var updatedAt int64
	if err := row.Scan(&raw, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, goerr.Wrap(ErrNotFound, "chat history not found",
				goerr.V("owner", owner), goerr.V("character_id", characterID))
		}
		return nil, goerr.Wrap(err, "failed to query chat history",
			goerr.V("owner", owner), goerr.V("character_id", characterID))
	}

	return decodeChatHistory(owner, characterID, raw, updatedAt)
}

func (r *chatHistoryRepository) Put(ctx context.Context, history *model.ChatHistory) error {
	if history == nil {
		return goerr.New("chat history is nil")
	}

	raw, err := json.Marshal(history.Messages)
	if err != nil {
		return goerr.Wrap(err, "failed to encode messages", goerr.V("character_id", history.CharacterID))
	}

	_, err = r.db.ExecContext(ctx, `
	INSERT INTO chat_history (owner_id, character_id, messages_json, updated_at)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(owner_id, character_id) DO UPDATE SET
		messages_json = excluded.messages_json,
		updated_at = excluded.updated_at`,
		history.Owner, history.CharacterID.String(), string(raw), history.UpdatedAt.UnixMilli())
	if err != nil {
		return goerr.Wrap(err, "failed to upsert chat history",
			goerr.V("owner", history.Owner), goerr.V("character_id", history.CharacterID))
	}
	return nil
}

func (r *chatHistoryRepository) List(ctx context.Context, owner string) ([]*model.ChatHistory, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT character_id, messages_json, updated_at FROM chat_history WHERE owner_id = ? ORDER BY character_id`,
		owner)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list chat histories", goerr.V("owner", owner))
	}
	defer rows.Close()

	var out []*model.ChatHistory
	for rows.Next() {
		var characterID, raw string
		var updatedAt int64
		if err := rows.Scan(&characterID, &raw, &updatedAt); err != nil {
			return nil, goerr.Wrap(err, "failed to scan chat history", goerr.V("owner", owner))
		}
		h, err := decodeChatHistory(owner, types.CharacterID(characterID), raw, updatedAt)
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to iterate chat histories", goerr.V("owner", owner))
	}
	return out, nil
}

func decodeChatHistory(owner string, characterID types.CharacterID, raw string, updatedAt int64) (*model.ChatHistory, error) {
	var msgs []model.Message
	if err := json.Unmarshal([]byte(raw), &msgs); err != nil {
		return nil, goerr.Wrap(err, "failed to decode messages",
			goerr.V("owner", owner), goerr.V("character_id", characterID))
	}
	return &model.ChatHistory{
		Owner:       owner,
		CharacterID: characterID,
		Messages:    msgs,
		UpdatedAt:   time.UnixMilli(updatedAt).UTC(),
	}, nil
}
