package model_test

import (
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/companion/pkg/domain/model"
	"github.com/secmon-lab/companion/pkg/domain/types"
)

func TestTask_IsOverdue(t *testing.T) {
	tests := []struct {
		name string
		task model.Task
		want bool
	}{
		{name: "due yesterday", task: model.Task{DueDate: "2026-10-15"}, want: true},
		{name: "due today", task: model.Task{DueDate: "2026-10-16"}, want: false},
		{name: "no due date", task: model.Task{}, want: false},
		{name: "completed", task: model.Task{DueDate: "2026-10-01", Completed: true}, want: false},
		{name: "recurring", task: model.Task{DueDate: "2026-10-01", Recurring: true}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gt.Value(t, tt.task.IsOverdue("2026-10-16")).Equal(tt.want)
		})
	}
}

func TestAppointment_StartsAt(t *testing.T) {
	t.Run("timed appointment", func(t *testing.T) {
		a := model.Appointment{Date: "2026-10-16", Time: "14:30"}
		start, ok := a.StartsAt(time.UTC)
		gt.Bool(t, ok).True()
		gt.Value(t, start).Equal(time.Date(2026, 10, 16, 14, 30, 0, 0, time.UTC))
	})

	t.Run("all-day appointment", func(t *testing.T) {
		a := model.Appointment{Date: "2026-10-16"}
		_, ok := a.StartsAt(time.UTC)
		gt.Bool(t, ok).False()
	})

	t.Run("malformed time", func(t *testing.T) {
		a := model.Appointment{Date: "2026-10-16", Time: "2pm"}
		_, ok := a.StartsAt(time.UTC)
		gt.Bool(t, ok).False()
	})
}

func TestDomainSnapshot_Find(t *testing.T) {
	snap := &model.DomainSnapshot{
		Tasks:   []*model.Task{{ID: "t1", Title: "Write report", Priority: types.PriorityHigh}},
		Habits:  []*model.Habit{{ID: "h1", Name: "Stretch", Cadence: types.CadenceDaily, CompletedOn: []string{"2026-10-15"}}},
		TakenAt: time.Date(2026, 10, 16, 8, 0, 0, 0, time.UTC),
	}

	gt.Value(t, snap.Today()).Equal("2026-10-16")
	gt.Value(t, snap.FindTask("t1")).NotNil()
	gt.Value(t, snap.FindTask("t2")).Nil()

	h := snap.FindHabit("h1")
	gt.Value(t, h).NotNil()
	gt.Bool(t, h.DoneOn("2026-10-15")).True()
	gt.Bool(t, h.DoneOn(snap.Today())).False()
}

func TestCharacter_LabelFor(t *testing.T) {
	c := &model.Character{
		ID:       "mika",
		Name:     "Mika",
		Identity: "You are Mika.",
		RelationshipLabels: []model.RelationshipLabel{
			{MinLevel: 5, Label: "close friend"},
			{MinLevel: 1, Label: "new friend"},
		},
	}
	gt.NoError(t, c.Validate())

	gt.Value(t, c.LabelFor(0)).Equal("")
	gt.Value(t, c.LabelFor(1)).Equal("new friend")
	gt.Value(t, c.LabelFor(4)).Equal("new friend")
	gt.Value(t, c.LabelFor(9)).Equal("close friend")
}

func TestCharacter_Validate(t *testing.T) {
	gt.Value(t, (&model.Character{ID: "mika", Name: "Mika"}).Validate()).NotNil()
	gt.Value(t, (&model.Character{ID: "Mika", Name: "Mika", Identity: "x"}).Validate()).NotNil()
	gt.Value(t, (&model.Character{ID: "mika", Identity: "x"}).Validate()).NotNil()
}

func TestMessage_Clone(t *testing.T) {
	orig := model.Message{
		ID:      model.NewMessageID(),
		Role:    types.RoleAssistant,
		Results: []model.ActionResult{{Description: "done", Success: true}},
	}
	cloned := orig.Clone()
	cloned.Results[0].Success = false

	gt.Bool(t, orig.Results[0].Success).True()
	gt.Value(t, cloned.ID).Equal(orig.ID)
}

func TestNewMessageID_Unique(t *testing.T) {
	a := model.NewMessageID()
	b := model.NewMessageID()
	gt.Value(t, a).NotEqual(b)
}
