package life

import (
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/pelletier/go-toml/v2"
	"github.com/secmon-lab/companion/pkg/domain/model"
	"github.com/secmon-lab/companion/pkg/domain/types"
)

// Seed is the initial board content
type Seed struct {
	Tasks        []SeedTask        `toml:"task"`
	Habits       []SeedHabit       `toml:"habit"`
	Appointments []SeedAppointment `toml:"appointment"`
	XP           map[string]int    `toml:"xp"`
}

type SeedTask struct {
	ID        string `toml:"id"`
	Title     string `toml:"title"`
	Priority  string `toml:"priority"`
	Category  string `toml:"category"`
	DueDate   string `toml:"due_date"`
	Completed bool   `toml:"completed"`
	Recurring bool   `toml:"recurring"`
}

type SeedHabit struct {
	ID          string   `toml:"id"`
	Name        string   `toml:"name"`
	Cadence     string   `toml:"cadence"`
	CompletedOn []string `toml:"completed_on"`
}

type SeedAppointment struct {
	ID          string `toml:"id"`
	Title       string `toml:"title"`
	Date        string `toml:"date"`
	Time        string `toml:"time"`
	Description string `toml:"description"`
}

// ParseSeed decodes and validates a TOML seed
func ParseSeed(data []byte) (*Seed, error) {
	var seed Seed
	if err := toml.Unmarshal(data, &seed); err != nil {
		return nil, goerr.Wrap(err, "failed to parse life seed")
	}
	if err := seed.Validate(); err != nil {
		return nil, err
	}
	return &seed, nil
}

// Validate checks records and ID uniqueness per record kind
func (s *Seed) Validate() error {
	ids := make(map[string]bool)
	for _, t := range s.Tasks {
		if t.ID == "" || t.Title == "" {
			return goerr.New("task id and title are required", goerr.V("id", t.ID))
		}
		if ids["task:"+t.ID] {
			return goerr.New("duplicate task ID", goerr.V("id", t.ID))
		}
		ids["task:"+t.ID] = true
		if _, err := types.ParsePriority(t.Priority); err != nil {
			return goerr.Wrap(err, "invalid task priority", goerr.V("id", t.ID))
		}
		if t.DueDate != "" {
			if _, err := time.Parse(model.DateLayout, t.DueDate); err != nil {
				return goerr.Wrap(err, "invalid task due date", goerr.V("id", t.ID))
			}
		}
	}

	for _, h := range s.Habits {
		if h.ID == "" || h.Name == "" {
			return goerr.New("habit id and name are required", goerr.V("id", h.ID))
		}
		if ids["habit:"+h.ID] {
			return goerr.New("duplicate habit ID", goerr.V("id", h.ID))
		}
		ids["habit:"+h.ID] = true
		if _, err := types.ParseCadence(h.Cadence); err != nil {
			return goerr.Wrap(err, "invalid habit cadence", goerr.V("id", h.ID))
		}
	}

	for _, a := range s.Appointments {
		if a.ID == "" || a.Title == "" {
			return goerr.New("appointment id and title are required", goerr.V("id", a.ID))
		}
		if ids["appointment:"+a.ID] {
			return goerr.New("duplicate appointment ID", goerr.V("id", a.ID))
		}
		ids["appointment:"+a.ID] = true
		if _, err := time.Parse(model.DateLayout, a.Date); err != nil {
			return goerr.Wrap(err, "invalid appointment date", goerr.V("id", a.ID))
		}
		if a.Time != "" {
			if _, err := time.Parse(model.TimeLayout, a.Time); err != nil {
				return goerr.Wrap(err, "invalid appointment time", goerr.V("id", a.ID))
			}
		}
	}

	return nil
}

func (s *Seed) tasks() []*model.Task {
	out := make([]*model.Task, 0, len(s.Tasks))
	for _, t := range s.Tasks {
		out = append(out, &model.Task{
			ID:        t.ID,
			Title:     t.Title,
			Priority:  types.Priority(t.Priority),
			Category:  t.Category,
			DueDate:   t.DueDate,
			Completed: t.Completed,
			Recurring: t.Recurring,
		})
	}
	return out
}

func (s *Seed) habits() []*model.Habit {
	out := make([]*model.Habit, 0, len(s.Habits))
	for _, h := range s.Habits {
		out = append(out, &model.Habit{
			ID:          h.ID,
			Name:        h.Name,
			Cadence:     types.Cadence(h.Cadence),
			CompletedOn: append([]string(nil), h.CompletedOn...),
		})
	}
	return out
}

func (s *Seed) appointments() []*model.Appointment {
	out := make([]*model.Appointment, 0, len(s.Appointments))
	for _, a := range s.Appointments {
		out = append(out, &model.Appointment{
			ID:          a.ID,
			Title:       a.Title,
			Date:        a.Date,
			Time:        a.Time,
			Description: a.Description,
		})
	}
	return out
}
