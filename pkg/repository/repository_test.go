package repository_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/companion/pkg/domain/interfaces"
	"github.com/secmon-lab/companion/pkg/domain/model"
	"github.com/secmon-lab/companion/pkg/domain/types"
	"github.com/secmon-lab/companion/pkg/repository/firestore"
	"github.com/secmon-lab/companion/pkg/repository/memory"
	"github.com/secmon-lab/companion/pkg/repository/sqlite"
)

type newRepoFunc func(t *testing.T) interfaces.Repository

func newMemoryRepository(t *testing.T) interfaces.Repository {
	return memory.New()
}

func newSQLiteRepository(t *testing.T) interfaces.Repository {
	t.Helper()

	repo, err := sqlite.New(context.Background(), filepath.Join(t.TempDir(), "companion.db"))
	gt.NoError(t, err).Required()
	t.Cleanup(func() {
		gt.NoError(t, repo.Close())
	})
	return repo
}

func newFirestoreRepository(t *testing.T) interfaces.Repository {
	t.Helper()

	projectID := os.Getenv("TEST_FIRESTORE_PROJECT_ID")
	if projectID == "" {
		t.Skip("TEST_FIRESTORE_PROJECT_ID not set")
	}

	databaseID := os.Getenv("TEST_FIRESTORE_DATABASE_ID")
	if databaseID == "" {
		t.Skip("TEST_FIRESTORE_DATABASE_ID not set")
	}

	ctx := context.Background()
	repo, err := firestore.New(ctx, projectID, databaseID,
		firestore.WithCollectionPrefix(fmt.Sprintf("test_%d_", time.Now().UnixNano())))
	gt.NoError(t, err).Required()
	t.Cleanup(func() {
		gt.NoError(t, repo.Close())
	})
	return repo
}

// uniqueOwner keeps test cases isolated on shared backends
func uniqueOwner() string {
	return fmt.Sprintf("owner-%d", time.Now().UnixNano())
}

func isNotFound(err error) bool {
	return errors.Is(err, interfaces.ErrNotFound)
}

func forEachBackend(t *testing.T, run func(t *testing.T, newRepo newRepoFunc)) {
	t.Run("memory", func(t *testing.T) { run(t, newMemoryRepository) })
	t.Run("sqlite", func(t *testing.T) { run(t, newSQLiteRepository) })
	t.Run("firestore", func(t *testing.T) { run(t, newFirestoreRepository) })
}

func runChatHistoryRepositoryTest(t *testing.T, newRepo newRepoFunc) {
	t.Helper()

	t.Run("Get returns ErrNotFound for unknown character", func(t *testing.T) {
		repo := newRepo(t)
		_, err := repo.ChatHistory().Get(context.Background(), uniqueOwner(), "mika")
		gt.Value(t, err).NotNil()
		gt.Bool(t, isNotFound(err)).True()
	})

	t.Run("Put then Get round trips messages", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		owner := uniqueOwner()
		now := time.Now().UTC().Truncate(time.Millisecond)

		history := &model.ChatHistory{
			Owner:       owner,
			CharacterID: "mika",
			Messages: []model.Message{
				model.NewUserMessage("did I stretch today?", true, now),
				{
					ID:        model.NewMessageID(),
					Role:      types.RoleAssistant,
					Content:   "Marked it done!",
					CreatedAt: now,
					Results:   []model.ActionResult{{Description: "Completed habit", Success: true}},
				},
			},
			UpdatedAt: now,
		}
		gt.NoError(t, repo.ChatHistory().Put(ctx, history)).Required()

		got, err := repo.ChatHistory().Get(ctx, owner, "mika")
		gt.NoError(t, err).Required()
		gt.Value(t, got.CharacterID).Equal(types.CharacterID("mika"))
		gt.Bool(t, got.UpdatedAt.Equal(now)).True()
		gt.Array(t, got.Messages).Length(2).Required()
		gt.Value(t, got.Messages[0].ID).Equal(history.Messages[0].ID)
		gt.Value(t, got.Messages[0].Role).Equal(types.RoleUser)
		gt.Bool(t, got.Messages[0].HadImage).True()
		gt.Bool(t, got.Messages[0].CreatedAt.Equal(now)).True()
		gt.Value(t, got.Messages[1].Content).Equal("Marked it done!")
		gt.Array(t, got.Messages[1].Results).Length(1).Required()
		gt.Bool(t, got.Messages[1].Results[0].Success).True()
	})

	t.Run("Put upserts by owner and character", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		owner := uniqueOwner()
		now := time.Now().UTC()

		gt.NoError(t, repo.ChatHistory().Put(ctx, &model.ChatHistory{
			Owner: owner, CharacterID: "mika", UpdatedAt: now,
			Messages: []model.Message{model.NewUserMessage("first", false, now)},
		})).Required()
		gt.NoError(t, repo.ChatHistory().Put(ctx, &model.ChatHistory{
			Owner: owner, CharacterID: "mika", UpdatedAt: now,
			Messages: []model.Message{
				model.NewUserMessage("first", false, now),
				model.NewUserMessage("second", false, now),
			},
		})).Required()

		got, err := repo.ChatHistory().Get(ctx, owner, "mika")
		gt.NoError(t, err).Required()
		gt.Array(t, got.Messages).Length(2)

		all, err := repo.ChatHistory().List(ctx, owner)
		gt.NoError(t, err).Required()
		gt.Array(t, all).Length(1)
	})

	t.Run("List isolates owners and characters", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		owner := uniqueOwner()
		other := uniqueOwner() + "-other"
		now := time.Now().UTC()

		for _, h := range []*model.ChatHistory{
			{Owner: owner, CharacterID: "mika", UpdatedAt: now},
			{Owner: owner, CharacterID: "sage", UpdatedAt: now},
			{Owner: other, CharacterID: "mika", UpdatedAt: now},
		} {
			gt.NoError(t, repo.ChatHistory().Put(ctx, h)).Required()
		}

		all, err := repo.ChatHistory().List(ctx, owner)
		gt.NoError(t, err).Required()
		gt.Array(t, all).Length(2)
		for _, h := range all {
			gt.Value(t, h.Owner).Equal(owner)
		}
	})

	t.Run("Put rejects nil", func(t *testing.T) {
		repo := newRepo(t)
		gt.Value(t, repo.ChatHistory().Put(context.Background(), nil)).NotNil()
	})
}

func runCharacterMemoryRepositoryTest(t *testing.T, newRepo newRepoFunc) {
	t.Helper()

	t.Run("Get returns ErrNotFound for unknown character", func(t *testing.T) {
		repo := newRepo(t)
		_, err := repo.CharacterMemory().Get(context.Background(), uniqueOwner(), "mika")
		gt.Value(t, err).NotNil()
		gt.Bool(t, isNotFound(err)).True()
	})

	t.Run("Put upserts content", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		owner := uniqueOwner()
		now := time.Now().UTC().Truncate(time.Millisecond)

		gt.NoError(t, repo.CharacterMemory().Put(ctx, &model.CharacterMemory{
			Owner: owner, CharacterID: "mika", Content: "likes tea", UpdatedAt: now,
		})).Required()
		gt.NoError(t, repo.CharacterMemory().Put(ctx, &model.CharacterMemory{
			Owner: owner, CharacterID: "mika", Content: "likes tea\nruns on sundays", UpdatedAt: now,
		})).Required()

		got, err := repo.CharacterMemory().Get(ctx, owner, "mika")
		gt.NoError(t, err).Required()
		gt.Value(t, got.Content).Equal("likes tea\nruns on sundays")
		gt.Bool(t, got.UpdatedAt.Equal(now)).True()

		all, err := repo.CharacterMemory().List(ctx, owner)
		gt.NoError(t, err).Required()
		gt.Array(t, all).Length(1)
	})
}

func runFiredTriggerRepositoryTest(t *testing.T, newRepo newRepoFunc) {
	t.Helper()

	t.Run("ListSince filters by time and orders newest first", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		owner := uniqueOwner()
		base := time.Now().UTC().Truncate(time.Millisecond)

		for i, key := range []string{"habit:h1:2026-10-14", "habit:h1:2026-10-15", "task:t1:2026-10-16"} {
			gt.NoError(t, repo.FiredTrigger().Put(ctx, &model.FiredTrigger{
				Owner:   owner,
				Key:     key,
				FiredAt: base.Add(time.Duration(i) * time.Hour),
			})).Required()
		}

		got, err := repo.FiredTrigger().ListSince(ctx, owner, base.Add(30*time.Minute))
		gt.NoError(t, err).Required()
		gt.Array(t, got).Length(2).Required()
		gt.Value(t, got[0].Key).Equal("task:t1:2026-10-16")
		gt.Value(t, got[1].Key).Equal("habit:h1:2026-10-15")
	})

	t.Run("Put is idempotent per key", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		owner := uniqueOwner()
		now := time.Now().UTC()

		for range 3 {
			gt.NoError(t, repo.FiredTrigger().Put(ctx, &model.FiredTrigger{Owner: owner, Key: "appointment:a1:2026-10-16", FiredAt: now})).Required()
		}

		got, err := repo.FiredTrigger().ListSince(ctx, owner, now.Add(-time.Minute))
		gt.NoError(t, err).Required()
		gt.Array(t, got).Length(1)
	})

	t.Run("Put rejects empty key", func(t *testing.T) {
		repo := newRepo(t)
		err := repo.FiredTrigger().Put(context.Background(), &model.FiredTrigger{Owner: uniqueOwner()})
		gt.Value(t, err).NotNil()
	})
}

func TestChatHistoryRepository(t *testing.T) {
	forEachBackend(t, runChatHistoryRepositoryTest)
}

func TestCharacterMemoryRepository(t *testing.T) {
	forEachBackend(t, runCharacterMemoryRepositoryTest)
}

func TestFiredTriggerRepository(t *testing.T) {
	forEachBackend(t, runFiredTriggerRepositoryTest)
}
