package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/companion/pkg/domain/model"
)

type firedTriggerKey struct {
	owner string
	key   string
}

type firedTriggerRepository struct {
	mu       sync.RWMutex
	triggers map[firedTriggerKey]model.FiredTrigger
}

func newFiredTriggerRepository() *firedTriggerRepository {
	return &firedTriggerRepository{
		triggers: make(map[firedTriggerKey]model.FiredTrigger),
	}
}

func (r *firedTriggerRepository) Put(ctx context.Context, trigger *model.FiredTrigger) error {
	if trigger == nil {
		return goerr.New("fired trigger is nil")
	}
	if trigger.Key == "" {
		return goerr.New("fired trigger key is empty", goerr.V("owner", trigger.Owner))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.triggers[firedTriggerKey{owner: trigger.Owner, key: trigger.Key}] = *trigger
	return nil
}

func (r *firedTriggerRepository) ListSince(ctx context.Context, owner string, since time.Time) ([]*model.FiredTrigger, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*model.FiredTrigger
	for k, tr := range r.triggers {
		if k.owner != owner || tr.FiredAt.Before(since) {
			continue
		}
		copied := tr
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].FiredAt.After(out[j].FiredAt)
	})
	return out, nil
}
