package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/companion/pkg/domain/model"
	"github.com/secmon-lab/companion/pkg/domain/types"
)

type characterMemoryRepository struct {
	db *sql.DB
}

func (r *characterMemoryRepository) Get(ctx context.Context, owner string, characterID types.CharacterID) (*model.CharacterMemory, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT content, updated_at FROM character_memory WHERE owner_id = ? AND character_id = ?`,
		owner, characterID.String())

	mem := &model.CharacterMemory{Owner: owner, CharacterID: characterID}
	var updatedAt int64
	if err := row.Scan(&mem.Content, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, goerr.Wrap(ErrNotFound, "character memory not found",
				goerr.V("owner", owner), goerr.V("character_id", characterID))
		}
		return nil, goerr.Wrap(err, "failed to query character memory",
			goerr.V("owner", owner), goerr.V("character_id", characterID))
	}
	mem.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	return mem, nil
}

func (r *characterMemoryRepository) Put(ctx context.Context, mem *model.CharacterMemory) error {
	if mem == nil {
		return goerr.New("character memory is nil")
	}

	_, err := r.db.ExecContext(ctx, `
	INSERT INTO character_memory (owner_id, character_id, content, updated_at)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(owner_id, character_id) DO UPDATE SET
		content = excluded.content,
		updated_at = excluded.updated_at`,
		mem.Owner, mem.CharacterID.String(), mem.Content, mem.UpdatedAt.UnixMilli())
	if err != nil {
		return goerr.Wrap(err, "failed to upsert character memory",
			goerr.V("owner", mem.Owner), goerr.V("character_id", mem.CharacterID))
	}
	return nil
}

func (r *characterMemoryRepository) List(ctx context.Context, owner string) ([]*model.CharacterMemory, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT character_id, content, updated_at FROM character_memory WHERE owner_id = ? ORDER BY character_id`,
		owner)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list character memories", goerr.V("owner", owner))
	}
	defer rows.Close()

	var out []*model.CharacterMemory
	for rows.Next() {
		var characterID string
		var updatedAt int64
		mem := &model.CharacterMemory{Owner: owner}
		if err := rows.Scan(&characterID, &mem.Content, &updatedAt); err != nil {
			return nil, goerr.Wrap(err, "failed to scan character memory", goerr.V("owner", owner))
		}
		mem.CharacterID = types.CharacterID(characterID)
		mem.UpdatedAt = time.UnixMilli(updatedAt).UTC()
		out = append(out, mem)
	}
	if err := rows.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to iterate character memories", goerr.V("owner", owner))
	}
	return out, nil
}
