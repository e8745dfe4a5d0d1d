package usecase_test

import (
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/companion/pkg/domain/model"
	"github.com/secmon-lab/companion/pkg/domain/types"
	"github.com/secmon-lab/companion/pkg/usecase"
)

func TestPresenceStreamingLock(t *testing.T) {
	p := usecase.NewPresence("mika")

	gt.Bool(t, p.TryLockStreaming("mika")).True()
	gt.Bool(t, p.TryLockStreaming("mika")).False()
	gt.Bool(t, p.TryLockStreaming("ren")).True()
	gt.Bool(t, p.IsStreaming("mika")).True()

	p.UnlockStreaming("mika")
	gt.Bool(t, p.IsStreaming("mika")).False()
	gt.Bool(t, p.IsStreaming("ren")).True()
}

func TestPresenceUnread(t *testing.T) {
	p := usecase.NewPresence("mika")

	gt.Number(t, p.NotifyUnread("mika")).Equal(1)
	gt.Number(t, p.NotifyUnread("mika")).Equal(2)

	p.SetViewOpen(true)
	gt.Number(t, p.Unread("mika")).Equal(0)
	gt.Number(t, p.NotifyUnread("mika")).Equal(0)

	// the view shows the active character only
	gt.Number(t, p.NotifyUnread("ren")).Equal(1)
	p.SetActive("ren")
	gt.Number(t, p.Unread("ren")).Equal(0)

	p.SetViewOpen(false)
	gt.Number(t, p.NotifyUnread("ren")).Equal(1)
	p.MarkRead("ren")
	gt.Number(t, p.Unread("ren")).Equal(0)
	gt.Value(t, p.Active()).Equal(types.CharacterID("ren"))
}

func TestCharacterRegistry(t *testing.T) {
	registry := newTestCharacters(t)

	gt.Value(t, registry.Default().ID).Equal(types.CharacterID("mika"))
	gt.Value(t, registry.IDs()).Equal([]types.CharacterID{"mika", "ren"})
	gt.Bool(t, registry.Has("ren")).True()
	gt.Bool(t, registry.Has("nobody")).False()

	_, err := registry.Get("nobody")
	gt.Error(t, err).Is(usecase.ErrUnknownCharacter)

	t.Run("relationship label", func(t *testing.T) {
		mika, err := registry.Get("mika")
		gt.NoError(t, err).Required()
		gt.Value(t, mika.LabelFor(0)).Equal("")
		gt.Value(t, mika.LabelFor(2)).Equal("new friend")
		gt.Value(t, mika.LabelFor(7)).Equal("close friend")
	})
}

func TestNewCharacterRegistryErrors(t *testing.T) {
	valid := func(id types.CharacterID) *model.Character {
		return &model.Character{ID: id, Name: "N", Identity: "I"}
	}

	testCases := []struct {
		name       string
		characters []*model.Character
		want       error
	}{
		{name: "empty", want: usecase.ErrNoCharacter},
		{name: "duplicate", characters: []*model.Character{valid("a"), valid("a")}, want: usecase.ErrDuplicateCharacter},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := usecase.NewCharacterRegistry(tc.characters...)
			gt.Error(t, err).Is(tc.want)
		})
	}

	t.Run("invalid id", func(t *testing.T) {
		_, err := usecase.NewCharacterRegistry(valid("Bad ID"))
		gt.Value(t, err).NotNil()
	})

	t.Run("missing identity", func(t *testing.T) {
		_, err := usecase.NewCharacterRegistry(&model.Character{ID: "a", Name: "A"})
		gt.Value(t, err).NotNil()
	})
}
