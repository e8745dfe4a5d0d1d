package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/companion/pkg/domain/model"
)

type firedTriggerRepository struct {
	db *sql.DB
}

func (r *firedTriggerRepository) Put(ctx context.Context, trigger *model.FiredTrigger) error {
	if trigger == nil {
		return goerr.New("fired trigger is nil")
	}
	if trigger.Key == "" {
		return goerr.New("fired trigger key is empty", goerr.V("owner", trigger.Owner))
	}

	_, err := r.db.ExecContext(ctx, `
	INSERT INTO fired_trigger (owner_id, trigger_key, fired_at)
	VALUES (?, ?, ?)
	ON CONFLICT(owner_id, trigger_key) DO UPDATE SET
		fired_at = excluded.fired_at`,
		trigger.Owner, trigger.Key, trigger.FiredAt.UnixMilli())
	if err != nil {
		return goerr.Wrap(err, "failed to upsert fired trigger",
			goerr.V("owner", trigger.Owner), goerr.V("key", trigger.Key))
	}
	return nil
}

func (r *firedTriggerRepository) ListSince(ctx context.Context, owner string, since time.Time) ([]*model.FiredTrigger, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT trigger_key, fired_at FROM fired_trigger WHERE owner_id = ? AND fired_at >= ? ORDER BY fired_at DESC`,
		owner, since.UnixMilli())
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list fired triggers", goerr.V("owner", owner))
	}
	defer rows.Close()

	var out []*model.FiredTrigger
	for rows.Next() {
		var key string
		var firedAt int64
		if err := rows.Scan(&key, &firedAt); err != nil {
			return nil, goerr.Wrap(err, "failed to scan fired trigger", goerr.V("owner", owner))
		}
		out = append(out, &model.FiredTrigger{Owner: owner, Key: key, FiredAt: time.UnixMilli(firedAt).UTC()})
	}
	if err := rows.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to iterate fired triggers", goerr.V("owner", owner))
	}
	return out, nil
}
